package model

import "time"

// File processing lifecycle. Transitions are one-directional:
// uploaded -> processing -> ready|failed. A failed file may be
// resubmitted, which resets it to uploaded and discards its chunks.
const (
	FileStatusUploaded   = "uploaded"
	FileStatusProcessing = "processing"
	FileStatusReady      = "ready"
	FileStatusFailed     = "failed"
)

type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index" json:"workspace_id"`
	UploaderID  uint      `gorm:"not null;index" json:"uploader_id"`
	Filename    string    `gorm:"size:256;not null;index" json:"filename"`
	Extension   string    `gorm:"size:16;not null" json:"extension"`
	MimeType    string    `gorm:"size:128" json:"mime_type"`
	Size        int64     `gorm:"not null" json:"size"`
	ContentHash string    `gorm:"size:64;not null;index" json:"content_hash"`
	Content     []byte    `gorm:"type:longblob" json:"-"`
	Status      string    `gorm:"size:16;not null;index" json:"status"`
	Error       string    `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
