package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/aihub/docsearch/internal/errors"
)

// ErrVectorSearchUnsupported 存储不支持原生向量检索
var ErrVectorSearchUnsupported = apperrors.NewCapabilityUnavailableError("vector search", nil)

// Document 文档摘要
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	UploadDate time.Time `json:"uploadDate"`
	ChunkCount int       `json:"chunkCount"`
	FileSize   int64     `json:"fileSize"`
}

// StoredChunk 存储中的分块，Embedding 为JSON编码的向量，可能为空
type StoredChunk struct {
	ID         string
	DocumentID string
	Filename   string
	Content    string
	ChunkIndex int
	Embedding  string
}

// RankedChunk 原生向量检索结果，Distance 为余弦距离
type RankedChunk struct {
	StoredChunk
	Distance float64
}

// Store 文档与分块存储
type Store interface {
	CreateDocument(ctx context.Context, filename, text string, byteSize int64) (string, error)
	CreateChunk(ctx context.Context, documentID, text string, index int, vector []float32) (string, error)
	UpdateChunkCount(ctx context.Context, documentID string, count int) error
	ListDocuments(ctx context.Context) ([]Document, error)
	// RankByVector 按余弦距离升序返回带向量的分块，不支持时返回 ErrVectorSearchUnsupported
	RankByVector(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error)
	AllChunksWithVectors(ctx context.Context) ([]StoredChunk, error)
	// ChunksMatchingSubstring 大小写不敏感的子串匹配，按分块序号升序
	ChunksMatchingSubstring(ctx context.Context, text string, limit int) ([]StoredChunk, error)
}

// IngestAborter 入库中途失败时由 Ingestor 调用，释放存储为该文档保留的状态
type IngestAborter interface {
	AbortIngest(documentID string)
}

// EncodeVector 将向量编码为JSON文本
func EncodeVector(vector []float32) (string, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeVector 解析JSON向量
func DecodeVector(raw string) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("decode embedding: empty vector")
	}
	return vector, nil
}
