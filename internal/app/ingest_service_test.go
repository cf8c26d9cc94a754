package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docspace/internal/chunker"
	"docspace/internal/embedding"
	"docspace/internal/extract"
	"docspace/internal/model"
)

type ingestFixture struct {
	files      *fakeFileStore
	chunks     *fakeChunkStore
	workspaces *fakeWorkspaceStore
	jobs       *fakeJobPublisher
	cache      *fakeSearchCache
	service    *IngestService

	workspaceID uint
	userID      uint
}

func newIngestFixture(t *testing.T, opts IngestOptions) *ingestFixture {
	t.Helper()
	files := newFakeFileStore()
	chunks := newFakeChunkStore(files)
	workspaces := newFakeWorkspaceStore()
	jobs := &fakeJobPublisher{}
	cache := newFakeSearchCache()

	if opts.Primary == nil {
		opts.Primary = &fixedProvider{name: "openai", dim: 8}
	}
	if opts.Fallback == nil {
		opts.Fallback = embedding.NewLocalProvider(4)
	}

	userID := uint(1)
	f := &ingestFixture{
		files:      files,
		chunks:     chunks,
		workspaces: workspaces,
		jobs:       jobs,
		cache:      cache,
		service:    NewIngestService(files, chunks, workspaces, jobs, cache, opts),
		userID:     userID,
	}
	f.workspaceID = workspaces.addWorkspace(userID)
	return f
}

func (f *ingestFixture) upload(t *testing.T, filename string, data []byte) *model.File {
	t.Helper()
	file, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    filename,
		Data:        data,
	})
	require.NoError(t, err)
	return file
}

func TestIngestCreatesUploadedFileAndPublishes(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	file := f.upload(t, "notes.txt", []byte("some text content"))

	assert.Equal(t, model.FileStatusUploaded, file.Status)
	assert.Equal(t, ".txt", file.Extension)
	assert.Equal(t, int64(17), file.Size)
	assert.Len(t, file.ContentHash, 64)
	assert.Equal(t, []uint{file.ID}, f.jobs.published)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	cases := []IngestInput{
		{WorkspaceID: 0, UserID: f.userID, Filename: "a.txt", Data: []byte("x")},
		{WorkspaceID: f.workspaceID, UserID: 0, Filename: "a.txt", Data: []byte("x")},
		{WorkspaceID: f.workspaceID, UserID: f.userID, Filename: "  ", Data: []byte("x")},
		{WorkspaceID: f.workspaceID, UserID: f.userID, Filename: "a.txt", Data: nil},
	}
	for _, input := range cases {
		_, err := f.service.Ingest(context.Background(), input)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestIngestRejectsNonMember(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      99,
		Filename:    "a.txt",
		Data:        []byte("x"),
	})
	assert.ErrorIs(t, err, ErrWorkspaceAccess)
}

func TestIngestRejectsUnsupportedFormat(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    "malware.exe",
		Data:        []byte("x"),
	})
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{MaxFileBytes: 10})

	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    "big.txt",
		Data:        []byte("this is more than ten bytes"),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestIngestRejectsDuplicateFilename(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.upload(t, "report.txt", []byte("first upload"))

	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    "report.txt",
		Data:        []byte("different content entirely"),
	})
	assert.ErrorIs(t, err, ErrDuplicateFile)
}

func TestIngestRejectsDuplicateContent(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.upload(t, "original.txt", []byte("identical bytes"))

	// Same content under a new name is still a duplicate; the hash is
	// authoritative.
	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    "renamed.txt",
		Data:        []byte("identical bytes"),
	})
	require.ErrorIs(t, err, ErrDuplicateFile)
	assert.Contains(t, err.Error(), "original.txt")
}

func TestIngestAllowsSameContentAcrossWorkspaces(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.upload(t, "shared.txt", []byte("identical bytes"))

	otherWS := f.workspaces.addWorkspace(f.userID)
	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: otherWS,
		UserID:      f.userID,
		Filename:    "shared.txt",
		Data:        []byte("identical bytes"),
	})
	assert.NoError(t, err)
}

func TestIngestRollsBackOnPublishFailure(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	f.jobs.err = errors.New("broker unreachable")

	_, err := f.service.Ingest(context.Background(), IngestInput{
		WorkspaceID: f.workspaceID,
		UserID:      f.userID,
		Filename:    "doc.txt",
		Data:        []byte("content"),
	})
	require.Error(t, err)

	// No orphaned record; the same upload succeeds once the broker is
	// back.
	f.jobs.err = nil
	f.upload(t, "doc.txt", []byte("content"))
}

func TestProcessMarksFileReadyWithChunks(t *testing.T) {
	primary := &fixedProvider{name: "openai", dim: 8}
	f := newIngestFixture(t, IngestOptions{Primary: primary, ChunkSize: 50, ChunkOverlap: 10})

	text := strings.Repeat("alpha beta gamma delta ", 10)
	file := f.upload(t, "doc.txt", []byte(text))

	require.NoError(t, f.service.Process(context.Background(), file.ID))

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusReady, stored.Status)

	records := f.chunks.chunks[file.ID]
	require.NotEmpty(t, records)
	for i, c := range records {
		assert.Equal(t, i, c.SeqIndex)
		assert.Equal(t, "openai", c.Provider)
		assert.Equal(t, 8, c.Dimension)
		assert.Len(t, c.EmbeddingVector(), 8)
		assert.Equal(t, file.WorkspaceID, c.WorkspaceID)
	}
}

func TestProcessFallsBackWithoutMixingProviders(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{
		Primary:   &failingProvider{name: "openai", dim: 8},
		Fallback:  embedding.NewLocalProvider(4),
		ChunkSize: 50,
	})

	file := f.upload(t, "doc.txt", []byte(strings.Repeat("words and more words ", 20)))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusReady, stored.Status)

	records := f.chunks.chunks[file.ID]
	require.NotEmpty(t, records)
	for _, c := range records {
		assert.Equal(t, "local", c.Provider)
		assert.Equal(t, 4, c.Dimension)
	}
}

func TestProcessMarksFailedWhenBothProvidersFail(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{
		Primary:  &failingProvider{name: "openai", dim: 8},
		Fallback: &failingProvider{name: "local", dim: 4},
	})

	file := f.upload(t, "doc.txt", []byte("some content to embed"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.Empty(t, f.chunks.chunks[file.ID])
}

func TestProcessMarksFailedOnExtractionError(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	file := f.upload(t, "broken.docx", []byte("not a zip archive"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "extraction")
}

func TestProcessEmptyContentReadyWithZeroChunks(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	file := f.upload(t, "empty.csv", []byte("\n"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusReady, stored.Status)
	assert.Empty(t, f.chunks.chunks[file.ID])
}

func TestProcessSkipsFileNotInUploadedState(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	file := f.upload(t, "doc.txt", []byte("content"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	// A redelivered job sees the file already ready and does nothing.
	before := f.chunks.chunks[file.ID]
	require.NoError(t, f.service.Process(context.Background(), file.ID))
	assert.Equal(t, before, f.chunks.chunks[file.ID])

	stored, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusReady, stored.Status)
}

func TestProcessSkipsDeletedFile(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	assert.NoError(t, f.service.Process(context.Background(), 42))
}

func TestResubmitFailedFile(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{
		Primary:  &failingProvider{name: "openai", dim: 8},
		Fallback: &failingProvider{name: "local", dim: 4},
	})

	file := f.upload(t, "doc.txt", []byte("content"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	resubmitted, err := f.service.Resubmit(context.Background(), file.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusUploaded, resubmitted.Status)
	assert.Empty(t, resubmitted.Error)
	assert.Equal(t, []uint{file.ID, file.ID}, f.jobs.published)
}

func TestResubmitRequiresFailedState(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})

	file := f.upload(t, "doc.txt", []byte("content"))

	_, err := f.service.Resubmit(context.Background(), file.ID, f.userID)
	assert.ErrorIs(t, err, ErrFileNotResubmittable)

	require.NoError(t, f.service.Process(context.Background(), file.ID))
	_, err = f.service.Resubmit(context.Background(), file.ID, f.userID)
	assert.ErrorIs(t, err, ErrFileNotResubmittable)
}

func TestResubmitUnknownFile(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	_, err := f.service.Resubmit(context.Background(), 42, f.userID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestGetStatusRequiresMembership(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	file := f.upload(t, "doc.txt", []byte("content"))

	got, err := f.service.GetStatus(file.ID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusUploaded, got.Status)

	_, err = f.service.GetStatus(file.ID, 99)
	assert.ErrorIs(t, err, ErrWorkspaceAccess)
}

func TestDeleteFileByUploaderRemovesChunks(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	file := f.upload(t, "doc.txt", []byte("content"))
	require.NoError(t, f.service.Process(context.Background(), file.ID))

	require.NoError(t, f.service.DeleteFile(context.Background(), file.ID, f.userID))

	gone, err := f.files.GetByID(file.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Empty(t, f.chunks.chunks[file.ID])
}

func TestDeleteFileByNonOwnerMemberForbidden(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	memberID := uint(2)
	require.NoError(t, f.workspaces.AddMember(f.workspaceID, memberID, "member"))

	file := f.upload(t, "doc.txt", []byte("content"))

	err := f.service.DeleteFile(context.Background(), file.ID, memberID)
	assert.ErrorIs(t, err, ErrWorkspaceAccess)
}

func TestProcessInvalidatesSearchCache(t *testing.T) {
	f := newIngestFixture(t, IngestOptions{})
	file := f.upload(t, "doc.txt", []byte("content"))

	before := f.cache.invalidations
	require.NoError(t, f.service.Process(context.Background(), file.ID))
	assert.Greater(t, f.cache.invalidations, before)
}

func TestChunkStartLines(t *testing.T) {
	text := "first line\nsecond line\nthird line"
	pieces := []chunker.Chunk{
		{Index: 0, Start: 0},
		{Index: 1, Start: 11},
		{Index: 2, Start: 25},
	}
	assert.Equal(t, []int{1, 2, 3}, chunkStartLines(text, pieces))
}
