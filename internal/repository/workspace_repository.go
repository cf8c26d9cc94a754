package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docspace/internal/model"
)

type WorkspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create inserts the workspace and its owner membership atomically.
func (r *WorkspaceRepository) Create(ws *model.Workspace) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ws).Error; err != nil {
			return err
		}
		member := &model.WorkspaceMember{
			WorkspaceID: ws.ID,
			UserID:      ws.OwnerID,
			Role:        "owner",
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return fmt.Errorf("create workspace failed: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) GetByID(id uint) (*model.Workspace, error) {
	var ws model.Workspace
	if err := r.db.First(&ws, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get workspace failed: %w", err)
	}
	return &ws, nil
}

func (r *WorkspaceRepository) ListByUserID(userID uint) ([]model.Workspace, error) {
	var list []model.Workspace
	err := r.db.
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list workspaces failed: %w", err)
	}
	return list, nil
}

func (r *WorkspaceRepository) IsMember(workspaceID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check workspace membership failed: %w", err)
	}
	return count > 0, nil
}

func (r *WorkspaceRepository) AddMember(workspaceID, userID uint, role string) error {
	member := &model.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role}
	if err := r.db.Create(member).Error; err != nil {
		return fmt.Errorf("add workspace member failed: %w", err)
	}
	return nil
}

// DeleteByID removes the workspace and its memberships. File and chunk
// cleanup is the service's job so cache invalidation happens alongside.
func (r *WorkspaceRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", id).Delete(&model.WorkspaceMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Workspace{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete workspace failed: %w", err)
	}
	return nil
}
