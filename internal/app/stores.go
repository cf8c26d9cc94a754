package app

import (
	"context"

	"docspace/internal/model"
	"docspace/internal/repository"
)

// Store interfaces are declared where they are consumed so the
// pipeline and search logic can be exercised without MySQL; the gorm
// repositories satisfy them.

type FileStore interface {
	Create(file *model.File) error
	GetByID(id uint) (*model.File, error)
	GetByWorkspaceAndFilename(workspaceID uint, filename string) (*model.File, error)
	GetByWorkspaceAndHash(workspaceID uint, contentHash string) (*model.File, error)
	ListByWorkspace(workspaceID uint) ([]model.File, error)
	TransitionStatus(id uint, from []string, to string) (bool, error)
	MarkFailed(id uint, detail string) (bool, error)
	DeleteByID(id uint) error
	DeleteByWorkspace(workspaceID uint) error
}

type ChunkStore interface {
	ReplaceForFileAndMarkReady(fileID uint, chunks []model.Chunk) (bool, error)
	ListSearchableByWorkspace(workspaceID uint) ([]repository.SearchableChunk, error)
	DeleteByFileID(fileID uint) error
	DeleteByWorkspace(workspaceID uint) error
}

type WorkspaceStore interface {
	Create(ws *model.Workspace) error
	GetByID(id uint) (*model.Workspace, error)
	ListByUserID(userID uint) ([]model.Workspace, error)
	IsMember(workspaceID, userID uint) (bool, error)
	AddMember(workspaceID, userID uint, role string) error
	DeleteByID(id uint) error
}

// JobPublisher hands a file off to the asynchronous processing queue.
type JobPublisher interface {
	PublishFileProcess(ctx context.Context, fileID, workspaceID uint) error
}

// SearchCache memoizes ranked results per workspace and is invalidated
// whenever the workspace's chunk set changes.
type SearchCache interface {
	GetResults(ctx context.Context, workspaceID uint, query string, topK int) ([]SearchResult, bool, error)
	SetResults(ctx context.Context, workspaceID uint, query string, topK int, results []SearchResult) error
	InvalidateWorkspace(ctx context.Context, workspaceID uint) error
}
