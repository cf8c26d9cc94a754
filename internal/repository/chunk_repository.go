package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docspace/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// SearchableChunk is a chunk joined with its file's name for citation.
type SearchableChunk struct {
	model.Chunk
	Filename string `json:"filename"`
}

// ReplaceForFileAndMarkReady swaps in the new chunk set and flips the
// file from processing to ready in one transaction. If the file is no
// longer processing (deleted or concurrently resubmitted) nothing is
// written and false is returned, so in-flight chunk writes for a
// removed file are discarded rather than left orphaned.
func (r *ChunkRepository) ReplaceForFileAndMarkReady(fileID uint, chunks []model.Chunk) (bool, error) {
	committed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.File{}).
			Where("id = ? AND status = ?", fileID, model.FileStatusProcessing).
			Updates(map[string]interface{}{"status": model.FileStatusReady, "error": ""})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("file_id = ?", fileID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return err
			}
		}
		committed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("replace chunks for file failed: %w", err)
	}
	return committed, nil
}

// ListSearchableByWorkspace returns all chunks of ready files, joined
// with filenames, in insertion order so equal-score ties stay stable.
func (r *ChunkRepository) ListSearchableByWorkspace(workspaceID uint) ([]SearchableChunk, error) {
	var rows []SearchableChunk
	err := r.db.Table("chunks").
		Select("chunks.*, files.filename AS filename").
		Joins("JOIN files ON files.id = chunks.file_id").
		Where("chunks.workspace_id = ? AND files.status = ?", workspaceID, model.FileStatusReady).
		Order("chunks.file_id ASC, chunks.seq_index ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list searchable chunks failed: %w", err)
	}
	return rows, nil
}

func (r *ChunkRepository) ListByFileID(fileID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("file_id = ?", fileID).Order("seq_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by file failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByWorkspace(workspaceID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Chunk{}).Where("workspace_id = ?", workspaceID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}

func (r *ChunkRepository) DeleteByFileID(fileID uint) error {
	if err := r.db.Where("file_id = ?", fileID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by file failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByWorkspace(workspaceID uint) error {
	if err := r.db.Where("workspace_id = ?", workspaceID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by workspace failed: %w", err)
	}
	return nil
}
