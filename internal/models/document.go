package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// Document 上传的PDF文档
type Document struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	UploadDate time.Time `gorm:"column:upload_date;not null;index" json:"uploadDate"`
	ChunkCount int       `gorm:"column:chunk_count;default:0" json:"chunkCount"`
	FileSize   int64     `gorm:"column:file_size;not null" json:"fileSize"`

	// 关系
	Chunks []DocumentChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UploadDate.IsZero() {
		d.UploadDate = time.Now()
	}
	return nil
}

// DocumentChunk 文档分块
// Embedding 为JSON文本，向量化成功时写入；EmbeddingVector 仅在数据库启用vector扩展时存在
type DocumentChunk struct {
	ID              string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DocumentID      string           `gorm:"column:document_id;type:varchar(36);not null;index" json:"documentId"`
	Content         string           `gorm:"type:text;not null" json:"content"`
	ChunkIndex      int              `gorm:"column:chunk_index;not null;index" json:"chunkIndex"`
	Embedding       *string          `gorm:"type:text" json:"-"`
	EmbeddingVector *pgvector.Vector `gorm:"column:embedding_vector;-:migration" json:"-"`
	CreatedAt       time.Time        `gorm:"column:created_at" json:"createdAt"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
