package app

import (
	"context"
	"log"
	"strings"

	"docspace/internal/model"
)

type WorkspaceService struct {
	workspaces WorkspaceStore
	files      FileStore
	chunks     ChunkStore
	cache      SearchCache
}

func NewWorkspaceService(workspaces WorkspaceStore, files FileStore, chunks ChunkStore, cache SearchCache) *WorkspaceService {
	return &WorkspaceService{
		workspaces: workspaces,
		files:      files,
		chunks:     chunks,
		cache:      cache,
	}
}

func (s *WorkspaceService) Create(userID uint, name string) (*model.Workspace, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Workspace"
	}
	ws := &model.Workspace{OwnerID: userID, Name: name}
	if err := s.workspaces.Create(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) List(userID uint) ([]model.Workspace, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.workspaces.ListByUserID(userID)
}

func (s *WorkspaceService) Get(workspaceID, userID uint) (*model.Workspace, error) {
	if workspaceID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	ok, err := s.workspaces.IsMember(workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWorkspaceAccess
	}
	ws, err := s.workspaces.GetByID(workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, ErrWorkspaceNotFound
	}
	return ws, nil
}

// Delete removes the workspace with its files and chunks. Owner only.
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID, userID uint) error {
	if workspaceID == 0 || userID == 0 {
		return ErrInvalidInput
	}
	ws, err := s.workspaces.GetByID(workspaceID)
	if err != nil {
		return err
	}
	if ws == nil {
		return ErrWorkspaceNotFound
	}
	if ws.OwnerID != userID {
		return ErrWorkspaceAccess
	}

	if err := s.chunks.DeleteByWorkspace(workspaceID); err != nil {
		return err
	}
	if err := s.files.DeleteByWorkspace(workspaceID); err != nil {
		return err
	}
	if err := s.workspaces.DeleteByID(workspaceID); err != nil {
		return err
	}
	if err := s.cache.InvalidateWorkspace(ctx, workspaceID); err != nil {
		log.Printf("invalidate search cache for workspace %d failed: %v", workspaceID, err)
	}
	return nil
}
