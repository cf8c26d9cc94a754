package model

import "time"

type Workspace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WorkspaceMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;uniqueIndex:idx_ws_member" json:"workspace_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_ws_member" json:"user_id"`
	Role        string    `gorm:"size:16;not null" json:"role"` // owner | member
	CreatedAt   time.Time `json:"created_at"`
}
