package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docspace/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.File) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(id uint) (*model.File, error) {
	var file model.File
	if err := r.db.First(&file, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByWorkspaceAndFilename(workspaceID uint, filename string) (*model.File, error) {
	var file model.File
	err := r.db.Where("workspace_id = ? AND filename = ?", workspaceID, filename).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file by filename failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) GetByWorkspaceAndHash(workspaceID uint, contentHash string) (*model.File, error) {
	var file model.File
	err := r.db.Where("workspace_id = ? AND content_hash = ?", workspaceID, contentHash).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file by content hash failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByWorkspace(workspaceID uint) ([]model.File, error) {
	var list []model.File
	err := r.db.
		Omit("content").
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	return list, nil
}

// TransitionStatus flips the status with a single conditional write and
// reports whether this caller won the transition. Concurrent
// resubmissions therefore serialize on the status column.
func (r *FileRepository) TransitionStatus(id uint, from []string, to string) (bool, error) {
	res := r.db.Model(&model.File{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{"status": to, "error": ""})
	if res.Error != nil {
		return false, fmt.Errorf("transition file status failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed records the failure detail; only a processing file can fail.
func (r *FileRepository) MarkFailed(id uint, detail string) (bool, error) {
	if len(detail) > 1024 {
		detail = detail[:1024]
	}
	res := r.db.Model(&model.File{}).
		Where("id = ? AND status = ?", id, model.FileStatusProcessing).
		Updates(map[string]interface{}{"status": model.FileStatusFailed, "error": detail})
	if res.Error != nil {
		return false, fmt.Errorf("mark file failed failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *FileRepository) DeleteByID(id uint) error {
	if err := r.db.Delete(&model.File{}, id).Error; err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteByWorkspace(workspaceID uint) error {
	if err := r.db.Where("workspace_id = ?", workspaceID).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete files by workspace failed: %w", err)
	}
	return nil
}
