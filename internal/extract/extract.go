package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtraction        = errors.New("content extraction failed")
)

// supportedExtensions is the fixed allow-list of ingestible formats.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".docx": true,
	".pdf":  true,
}

// Result is the normalized output of content extraction. Text is
// UTF-8 with one structural unit (line, row or paragraph) per line,
// so a chunk's source position can be cited by counting newlines.
type Result struct {
	Text      string
	CharCount int
	FileType  string // text | tabular | document | pdf
	UnitKind  string // line | row | paragraph
	UnitCount int
}

// IsSupported reports whether the (lowercased, dot-prefixed) extension
// is in the allow-list.
func IsSupported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// Extract converts raw file bytes into normalized text. The extension
// decides the decoder; unknown extensions fail with ErrUnsupportedFormat
// and unreadable content fails with ErrExtraction.
func Extract(data []byte, ext string) (*Result, error) {
	ext = strings.ToLower(ext)
	if !IsSupported(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	switch ext {
	case ".txt":
		return extractText(data)
	case ".csv":
		return extractCSV(data)
	case ".docx":
		return extractDocx(data)
	case ".pdf":
		return extractPDF(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// extractText decodes as UTF-8, falling back to Latin-1 when the bytes
// are not valid UTF-8 rather than failing outright.
func extractText(data []byte) (*Result, error) {
	var content string
	if utf8.Valid(data) {
		content = string(data)
	} else {
		content = decodeLatin1(data)
	}
	content = normalizeNewlines(content)
	return &Result{
		Text:      content,
		CharCount: len([]rune(content)),
		FileType:  "text",
		UnitKind:  "line",
		UnitCount: strings.Count(content, "\n") + 1,
	}, nil
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// extractCSV renders each record as one line of column values joined by
// a separator, preserving header-derived column order.
func extractCSV(data []byte) (*Result, error) {
	var content string
	if utf8.Valid(data) {
		content = string(data)
	} else {
		content = decodeLatin1(data)
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	var lines []string
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse csv: %v", ErrExtraction, err)
		}
		lines = append(lines, strings.Join(record, " | "))
		rows++
	}
	if rows == 0 {
		return &Result{FileType: "tabular", UnitKind: "row"}, nil
	}

	text := strings.Join(lines, "\n")
	return &Result{
		Text:      text,
		CharCount: len([]rune(text)),
		FileType:  "tabular",
		UnitKind:  "row",
		UnitCount: rows,
	}, nil
}

// extractPDF extracts plain text from a PDF document.
func extractPDF(data []byte) (*Result, error) {
	if len(data) == 0 {
		return &Result{FileType: "pdf", UnitKind: "line"}, nil
	}
	readerAt := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	text := normalizeNewlines(strings.TrimSpace(string(out)))
	return &Result{
		Text:      text,
		CharCount: len([]rune(text)),
		FileType:  "pdf",
		UnitKind:  "line",
		UnitCount: strings.Count(text, "\n") + 1,
	}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
