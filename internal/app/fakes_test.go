package app

import (
	"context"
	"errors"
	"sort"

	"docspace/internal/model"
	"docspace/internal/repository"
)

// In-memory store fakes backing the service tests. They implement the
// consumer interfaces in stores.go with just enough behavior to mirror
// the gorm repositories, including the conditional status transitions.

type fakeFileStore struct {
	nextID uint
	files  map[uint]*model.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[uint]*model.File)}
}

func (s *fakeFileStore) Create(file *model.File) error {
	s.nextID++
	file.ID = s.nextID
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *fakeFileStore) GetByID(id uint) (*model.File, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (s *fakeFileStore) GetByWorkspaceAndFilename(workspaceID uint, filename string) (*model.File, error) {
	for _, f := range s.files {
		if f.WorkspaceID == workspaceID && f.Filename == filename {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeFileStore) GetByWorkspaceAndHash(workspaceID uint, contentHash string) (*model.File, error) {
	for _, f := range s.files {
		if f.WorkspaceID == workspaceID && f.ContentHash == contentHash {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeFileStore) ListByWorkspace(workspaceID uint) ([]model.File, error) {
	var out []model.File
	for _, f := range s.files {
		if f.WorkspaceID == workspaceID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeFileStore) TransitionStatus(id uint, from []string, to string) (bool, error) {
	f, ok := s.files[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if f.Status == status {
			f.Status = to
			f.Error = ""
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeFileStore) MarkFailed(id uint, detail string) (bool, error) {
	f, ok := s.files[id]
	if !ok || f.Status != model.FileStatusProcessing {
		return false, nil
	}
	f.Status = model.FileStatusFailed
	f.Error = detail
	return true, nil
}

func (s *fakeFileStore) DeleteByID(id uint) error {
	delete(s.files, id)
	return nil
}

func (s *fakeFileStore) DeleteByWorkspace(workspaceID uint) error {
	for id, f := range s.files {
		if f.WorkspaceID == workspaceID {
			delete(s.files, id)
		}
	}
	return nil
}

type fakeChunkStore struct {
	files  *fakeFileStore
	nextID uint
	chunks map[uint][]model.Chunk // keyed by file ID
	lists  int
}

func newFakeChunkStore(files *fakeFileStore) *fakeChunkStore {
	return &fakeChunkStore{files: files, chunks: make(map[uint][]model.Chunk)}
}

func (s *fakeChunkStore) ReplaceForFileAndMarkReady(fileID uint, chunks []model.Chunk) (bool, error) {
	f, ok := s.files.files[fileID]
	if !ok || f.Status != model.FileStatusProcessing {
		return false, nil
	}
	f.Status = model.FileStatusReady
	f.Error = ""
	stored := make([]model.Chunk, len(chunks))
	for i := range chunks {
		s.nextID++
		stored[i] = chunks[i]
		stored[i].ID = s.nextID
	}
	s.chunks[fileID] = stored
	return true, nil
}

func (s *fakeChunkStore) ListSearchableByWorkspace(workspaceID uint) ([]repository.SearchableChunk, error) {
	s.lists++
	var fileIDs []uint
	for fileID := range s.chunks {
		fileIDs = append(fileIDs, fileID)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	var out []repository.SearchableChunk
	for _, fileID := range fileIDs {
		f, ok := s.files.files[fileID]
		if !ok || f.WorkspaceID != workspaceID || f.Status != model.FileStatusReady {
			continue
		}
		for _, c := range s.chunks[fileID] {
			out = append(out, repository.SearchableChunk{Chunk: c, Filename: f.Filename})
		}
	}
	return out, nil
}

func (s *fakeChunkStore) DeleteByFileID(fileID uint) error {
	delete(s.chunks, fileID)
	return nil
}

func (s *fakeChunkStore) DeleteByWorkspace(workspaceID uint) error {
	for fileID := range s.chunks {
		if f, ok := s.files.files[fileID]; ok && f.WorkspaceID == workspaceID {
			delete(s.chunks, fileID)
		}
	}
	return nil
}

type fakeWorkspaceStore struct {
	nextID     uint
	workspaces map[uint]*model.Workspace
	members    map[[2]uint]bool
}

func newFakeWorkspaceStore() *fakeWorkspaceStore {
	return &fakeWorkspaceStore{
		workspaces: make(map[uint]*model.Workspace),
		members:    make(map[[2]uint]bool),
	}
}

func (s *fakeWorkspaceStore) addWorkspace(ownerID uint) uint {
	s.nextID++
	s.workspaces[s.nextID] = &model.Workspace{ID: s.nextID, OwnerID: ownerID, Name: "ws"}
	s.members[[2]uint{s.nextID, ownerID}] = true
	return s.nextID
}

func (s *fakeWorkspaceStore) Create(ws *model.Workspace) error {
	s.nextID++
	ws.ID = s.nextID
	cp := *ws
	s.workspaces[ws.ID] = &cp
	s.members[[2]uint{ws.ID, ws.OwnerID}] = true
	return nil
}

func (s *fakeWorkspaceStore) GetByID(id uint) (*model.Workspace, error) {
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, nil
	}
	cp := *ws
	return &cp, nil
}

func (s *fakeWorkspaceStore) ListByUserID(userID uint) ([]model.Workspace, error) {
	var out []model.Workspace
	for id, ws := range s.workspaces {
		if s.members[[2]uint{id, userID}] {
			out = append(out, *ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeWorkspaceStore) IsMember(workspaceID, userID uint) (bool, error) {
	return s.members[[2]uint{workspaceID, userID}], nil
}

func (s *fakeWorkspaceStore) AddMember(workspaceID, userID uint, role string) error {
	s.members[[2]uint{workspaceID, userID}] = true
	return nil
}

func (s *fakeWorkspaceStore) DeleteByID(id uint) error {
	delete(s.workspaces, id)
	for key := range s.members {
		if key[0] == id {
			delete(s.members, key)
		}
	}
	return nil
}

type fakeJobPublisher struct {
	published []uint
	err       error
}

func (p *fakeJobPublisher) PublishFileProcess(_ context.Context, fileID, _ uint) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, fileID)
	return nil
}

type cacheKey struct {
	workspaceID uint
	query       string
	topK        int
}

type fakeSearchCache struct {
	stored        map[cacheKey][]SearchResult
	invalidations int
}

func newFakeSearchCache() *fakeSearchCache {
	return &fakeSearchCache{stored: make(map[cacheKey][]SearchResult)}
}

func (c *fakeSearchCache) GetResults(_ context.Context, workspaceID uint, query string, topK int) ([]SearchResult, bool, error) {
	results, ok := c.stored[cacheKey{workspaceID, query, topK}]
	return results, ok, nil
}

func (c *fakeSearchCache) SetResults(_ context.Context, workspaceID uint, query string, topK int, results []SearchResult) error {
	c.stored[cacheKey{workspaceID, query, topK}] = results
	return nil
}

func (c *fakeSearchCache) InvalidateWorkspace(_ context.Context, workspaceID uint) error {
	for key := range c.stored {
		if key.workspaceID == workspaceID {
			delete(c.stored, key)
		}
	}
	c.invalidations++
	return nil
}

// failingProvider always errors; fixedProvider returns a constant unit
// vector of its dimension.

type failingProvider struct {
	name string
	dim  int
}

func (p *failingProvider) Name() string   { return p.name }
func (p *failingProvider) Dimension() int { return p.dim }

func (p *failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func (p *failingProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

type fixedProvider struct {
	name  string
	dim   int
	calls int
}

func (p *fixedProvider) Name() string   { return p.name }
func (p *fixedProvider) Dimension() int { return p.dim }

func (p *fixedProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	p.calls++
	vec := make([]float32, p.dim)
	vec[0] = 1
	return vec, nil
}

func (p *fixedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		v, err := p.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
