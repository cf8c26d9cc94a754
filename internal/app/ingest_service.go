package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"docspace/internal/chunker"
	"docspace/internal/embedding"
	"docspace/internal/extract"
	"docspace/internal/model"
)

// IngestService coordinates the per-file pipeline: it accepts uploads
// synchronously (duplicate and format checks), enqueues processing,
// and drives Extract -> Chunk -> Embed -> Store when the worker picks
// the file up. Failures are isolated per file and recorded on its
// status.
type IngestService struct {
	files      FileStore
	chunks     ChunkStore
	workspaces WorkspaceStore
	jobs       JobPublisher
	cache      SearchCache

	primary   embedding.Provider
	fallback  embedding.Provider
	batchSize int

	chunkSize    int
	chunkOverlap int
	maxFileBytes int64
}

type IngestOptions struct {
	Primary      embedding.Provider
	Fallback     embedding.Provider
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int
	MaxFileBytes int64
}

func NewIngestService(
	files FileStore,
	chunks ChunkStore,
	workspaces WorkspaceStore,
	jobs JobPublisher,
	cache SearchCache,
	opts IngestOptions,
) *IngestService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = chunker.DefaultOverlap
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 50 << 20
	}
	return &IngestService{
		files:        files,
		chunks:       chunks,
		workspaces:   workspaces,
		jobs:         jobs,
		cache:        cache,
		primary:      opts.Primary,
		fallback:     opts.Fallback,
		batchSize:    opts.BatchSize,
		chunkSize:    opts.ChunkSize,
		chunkOverlap: opts.ChunkOverlap,
		maxFileBytes: opts.MaxFileBytes,
	}
}

type IngestInput struct {
	WorkspaceID uint
	UserID      uint
	Filename    string
	MimeType    string
	Data        []byte
}

// Ingest validates the upload, creates the file record with status
// uploaded and enqueues processing. Duplicates are detected by a
// filename pre-check and then by content hash, both workspace-scoped;
// either match rejects the upload explicitly.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*model.File, error) {
	if input.WorkspaceID == 0 || input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}

	if err := s.requireMember(input.WorkspaceID, input.UserID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.IsSupported(ext) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, ext)
	}
	if int64(len(input.Data)) > s.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(input.Data), s.maxFileBytes)
	}

	existing, err := s.files.GetByWorkspaceAndFilename(input.WorkspaceID, filename)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, filename)
	}

	sum := sha256.Sum256(input.Data)
	contentHash := hex.EncodeToString(sum[:])
	existing, err = s.files.GetByWorkspaceAndHash(input.WorkspaceID, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: identical content as %q", ErrDuplicateFile, existing.Filename)
	}

	file := &model.File{
		WorkspaceID: input.WorkspaceID,
		UploaderID:  input.UserID,
		Filename:    filename,
		Extension:   ext,
		MimeType:    input.MimeType,
		Size:        int64(len(input.Data)),
		ContentHash: contentHash,
		Content:     input.Data,
		Status:      model.FileStatusUploaded,
	}
	if err := s.files.Create(file); err != nil {
		return nil, err
	}

	if err := s.jobs.PublishFileProcess(ctx, file.ID, file.WorkspaceID); err != nil {
		_ = s.files.DeleteByID(file.ID)
		return nil, fmt.Errorf("enqueue file processing failed: %w", err)
	}
	return file, nil
}

// Process runs the pipeline for one file. It is invoked by the queue
// worker; only the caller that wins the uploaded -> processing
// transition proceeds, so a redelivered or concurrently resubmitted
// job is a no-op.
func (s *IngestService) Process(ctx context.Context, fileID uint) error {
	file, err := s.files.GetByID(fileID)
	if err != nil {
		return err
	}
	if file == nil {
		log.Printf("file %d gone before processing, skipping", fileID)
		return nil
	}

	won, err := s.files.TransitionStatus(fileID, []string{model.FileStatusUploaded}, model.FileStatusProcessing)
	if err != nil {
		return err
	}
	if !won {
		log.Printf("file %d not in uploaded state, skipping", fileID)
		return nil
	}

	result, err := extract.Extract(file.Content, file.Extension)
	if err != nil {
		return s.fail(ctx, file, err)
	}

	pieces := chunker.Split(result.Text, s.chunkSize, s.chunkOverlap)
	if len(pieces) == 0 {
		// No content extracted: the file is ready with zero chunks and
		// simply never appears in search results.
		_, err := s.chunks.ReplaceForFileAndMarkReady(fileID, nil)
		return err
	}

	texts := make([]string, len(pieces))
	for i := range pieces {
		texts[i] = pieces[i].Text
	}

	selector := embedding.NewSelector(s.primary, s.fallback, s.batchSize)
	vectors, provider, err := selector.EmbedAll(ctx, texts)
	if err != nil {
		return s.fail(ctx, file, err)
	}
	if len(vectors) != len(pieces) {
		return s.fail(ctx, file, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(pieces)))
	}

	lines := chunkStartLines(result.Text, pieces)
	records := make([]model.Chunk, len(pieces))
	for i := range pieces {
		records[i] = model.Chunk{
			FileID:      file.ID,
			WorkspaceID: file.WorkspaceID,
			SeqIndex:    pieces[i].Index,
			Content:     pieces[i].Text,
			Provider:    provider.Name(),
			Dimension:   provider.Dimension(),
			SourceLine:  lines[i],
		}
		records[i].SetEmbedding(vectors[i])
	}

	committed, err := s.chunks.ReplaceForFileAndMarkReady(fileID, records)
	if err != nil {
		return s.fail(ctx, file, err)
	}
	if !committed {
		log.Printf("file %d left processing state mid-pipeline, chunk set discarded", fileID)
		return nil
	}

	if err := s.cache.InvalidateWorkspace(ctx, file.WorkspaceID); err != nil {
		log.Printf("invalidate search cache for workspace %d failed: %v", file.WorkspaceID, err)
	}
	return nil
}

func (s *IngestService) fail(ctx context.Context, file *model.File, cause error) error {
	log.Printf("processing file %d (%s) failed: %v", file.ID, file.Filename, cause)
	if _, err := s.files.MarkFailed(file.ID, cause.Error()); err != nil {
		return err
	}
	if err := s.cache.InvalidateWorkspace(ctx, file.WorkspaceID); err != nil {
		log.Printf("invalidate search cache for workspace %d failed: %v", file.WorkspaceID, err)
	}
	return nil
}

// Resubmit resets a failed file to uploaded, discards its prior chunks
// and re-enqueues it. The conditional transition serializes concurrent
// resubmissions: only the first caller proceeds.
func (s *IngestService) Resubmit(ctx context.Context, fileID, userID uint) (*model.File, error) {
	file, err := s.getMemberFile(fileID, userID)
	if err != nil {
		return nil, err
	}

	won, err := s.files.TransitionStatus(fileID, []string{model.FileStatusFailed}, model.FileStatusUploaded)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrFileNotResubmittable
	}

	if err := s.chunks.DeleteByFileID(fileID); err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateWorkspace(ctx, file.WorkspaceID); err != nil {
		log.Printf("invalidate search cache for workspace %d failed: %v", file.WorkspaceID, err)
	}
	if err := s.jobs.PublishFileProcess(ctx, file.ID, file.WorkspaceID); err != nil {
		return nil, fmt.Errorf("enqueue file processing failed: %w", err)
	}

	file.Status = model.FileStatusUploaded
	file.Error = ""
	return file, nil
}

// GetStatus returns the file's lifecycle status and error detail.
func (s *IngestService) GetStatus(fileID, userID uint) (*model.File, error) {
	return s.getMemberFile(fileID, userID)
}

func (s *IngestService) ListFiles(workspaceID, userID uint) ([]model.File, error) {
	if err := s.requireMember(workspaceID, userID); err != nil {
		return nil, err
	}
	return s.files.ListByWorkspace(workspaceID)
}

// DeleteFile removes the file and its chunks. Only the uploader or the
// workspace owner may delete.
func (s *IngestService) DeleteFile(ctx context.Context, fileID, userID uint) error {
	file, err := s.getMemberFile(fileID, userID)
	if err != nil {
		return err
	}
	if file.UploaderID != userID {
		ws, err := s.workspaces.GetByID(file.WorkspaceID)
		if err != nil {
			return err
		}
		if ws == nil || ws.OwnerID != userID {
			return ErrWorkspaceAccess
		}
	}

	if err := s.chunks.DeleteByFileID(fileID); err != nil {
		return err
	}
	if err := s.files.DeleteByID(fileID); err != nil {
		return err
	}
	if err := s.cache.InvalidateWorkspace(ctx, file.WorkspaceID); err != nil {
		log.Printf("invalidate search cache for workspace %d failed: %v", file.WorkspaceID, err)
	}
	return nil
}

func (s *IngestService) requireMember(workspaceID, userID uint) error {
	ok, err := s.workspaces.IsMember(workspaceID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWorkspaceAccess
	}
	return nil
}

func (s *IngestService) getMemberFile(fileID, userID uint) (*model.File, error) {
	if fileID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	file, err := s.files.GetByID(fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	if err := s.requireMember(file.WorkspaceID, userID); err != nil {
		return nil, err
	}
	return file, nil
}

// chunkStartLines maps each chunk's start offset to the 1-based line
// (row/paragraph) number in the normalized text, in one pass.
func chunkStartLines(text string, pieces []chunker.Chunk) []int {
	lines := make([]int, len(pieces))
	next := 0
	line := 1
	pos := 0
	for _, r := range text {
		for next < len(pieces) && pieces[next].Start == pos {
			lines[next] = line
			next++
		}
		if r == '\n' {
			line++
		}
		pos++
	}
	for next < len(pieces) {
		lines[next] = line
		next++
	}
	return lines
}
