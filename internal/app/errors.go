package app

import "errors"

// Core error taxonomy. Structural failures (unsupported format,
// duplicate, oversized) surface synchronously at upload; pipeline
// failures after ingestion started land on the file's status instead.
var (
	ErrWorkspaceNotFound    = errors.New("workspace not found")
	ErrWorkspaceAccess      = errors.New("access denied to workspace")
	ErrFileNotFound         = errors.New("file not found")
	ErrFileTooLarge         = errors.New("file too large")
	ErrDuplicateFile        = errors.New("file already exists in this workspace")
	ErrFileNotResubmittable = errors.New("only failed files can be resubmitted")
	ErrInvalidQuery         = errors.New("invalid search query")
	ErrNoContent            = errors.New("no searchable content in workspace")
)
