package knowledge

import (
	"context"
	"sync"

	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
)

// VectorIndex 外部向量索引
type VectorIndex interface {
	Upsert(ctx context.Context, chunk StoredChunk, vector []float32) error
	Search(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error)
}

// LexicalIndex 外部子串索引
type LexicalIndex interface {
	Index(ctx context.Context, chunk StoredChunk) error
	Search(ctx context.Context, text string, limit int) ([]StoredChunk, error)
}

// CompositeStore 以关系库为主存储，原生向量检索和子串检索可交给外部索引
// 外部索引写入失败只记录日志，分块仍可由主存储的余弦层和子串层检索
type CompositeStore struct {
	Store
	vectors VectorIndex
	lexical LexicalIndex
	logger  *zap.Logger

	mu        sync.RWMutex
	filenames map[string]string
}

// NewCompositeStore 组合存储，vectors/lexical 可为nil
func NewCompositeStore(base Store, vectors VectorIndex, lexical LexicalIndex, log *zap.Logger) *CompositeStore {
	return &CompositeStore{
		Store:     base,
		vectors:   vectors,
		lexical:   lexical,
		logger:    logger.OrNop(log),
		filenames: make(map[string]string),
	}
}

func (c *CompositeStore) CreateDocument(ctx context.Context, filename, text string, byteSize int64) (string, error) {
	id, err := c.Store.CreateDocument(ctx, filename, text, byteSize)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.filenames[id] = filename
	c.mu.Unlock()
	return id, nil
}

func (c *CompositeStore) CreateChunk(ctx context.Context, documentID, text string, index int, vector []float32) (string, error) {
	id, err := c.Store.CreateChunk(ctx, documentID, text, index, vector)
	if err != nil {
		return "", err
	}

	chunk := StoredChunk{
		ID:         id,
		DocumentID: documentID,
		Filename:   c.filename(documentID),
		Content:    text,
		ChunkIndex: index,
	}
	if c.vectors != nil && len(vector) > 0 {
		if err := c.vectors.Upsert(ctx, chunk, vector); err != nil {
			indexWriteFailures.WithLabelValues("vector").Inc()
			c.logger.Warn("Vector index write failed",
				zap.String("chunk_id", id),
				zap.Error(err))
		}
	}
	if c.lexical != nil {
		if err := c.lexical.Index(ctx, chunk); err != nil {
			indexWriteFailures.WithLabelValues("lexical").Inc()
			c.logger.Warn("Lexical index write failed",
				zap.String("chunk_id", id),
				zap.Error(err))
		}
	}
	return id, nil
}

// UpdateChunkCount 文档写入完成后释放文件名缓存
func (c *CompositeStore) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	err := c.Store.UpdateChunkCount(ctx, documentID, count)
	c.mu.Lock()
	delete(c.filenames, documentID)
	c.mu.Unlock()
	return err
}

// AbortIngest 分块写入失败时释放文件名缓存
func (c *CompositeStore) AbortIngest(documentID string) {
	c.mu.Lock()
	delete(c.filenames, documentID)
	c.mu.Unlock()
}

func (c *CompositeStore) RankByVector(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error) {
	if c.vectors == nil {
		return c.Store.RankByVector(ctx, vector, limit)
	}
	return c.vectors.Search(ctx, vector, limit)
}

func (c *CompositeStore) ChunksMatchingSubstring(ctx context.Context, text string, limit int) ([]StoredChunk, error) {
	if c.lexical == nil {
		return c.Store.ChunksMatchingSubstring(ctx, text, limit)
	}
	return c.lexical.Search(ctx, text, limit)
}

func (c *CompositeStore) filename(documentID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filenames[documentID]
}
