package model

import (
	"encoding/json"
	"time"
)

// Chunk stores one text segment of a file and its embedding vector.
// The vector is stored as a JSON array of float32 for portability.
// All chunks of one file carry the same provider tag and dimension;
// SeqIndex is zero-based and contiguous in original document order.
// Chunks are immutable; re-processing a file replaces its chunk set.
type Chunk struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FileID      uint      `gorm:"not null;index" json:"file_id"`
	WorkspaceID uint      `gorm:"not null;index" json:"workspace_id"`
	SeqIndex    int       `gorm:"not null" json:"seq_index"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Embedding   string    `gorm:"type:mediumtext" json:"-"`
	Provider    string    `gorm:"size:32;not null" json:"provider"`
	Dimension   int       `gorm:"not null" json:"dimension"`
	SourceLine  int       `json:"source_line"` // row/paragraph number of the chunk start
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
