// Package chunker splits normalized text into overlapping fixed-size
// segments for embedding. Splitting is deterministic: identical input
// and parameters always reproduce identical chunk boundaries.
package chunker

import "unicode"

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100

	// How far a window end may retract to reach whitespace before
	// giving up and cutting mid-word.
	boundaryLookback = 100
)

// Chunk is one window of the source text. Start and End are rune
// offsets into the normalized text, so consecutive chunks share
// exactly End-overlap..End of the previous one.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Split advances a sliding window of size runes with overlap runes of
// re-use between consecutive windows. A window end that would split a
// word retracts to the nearest preceding whitespace within
// boundaryLookback runes. Text shorter than size yields one chunk;
// empty text yields none.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// adjustBoundary retracts end to just past the nearest preceding
// whitespace when runes[end-1] and runes[end] belong to one word.
func adjustBoundary(runes []rune, start, end int) int {
	if unicode.IsSpace(runes[end]) || unicode.IsSpace(runes[end-1]) {
		return end
	}
	for j := end - 1; j > end-1-boundaryLookback && j > start; j-- {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return end
}
