package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

const (
	milvusFieldChunkID    = "chunk_id"
	milvusFieldDocumentID = "document_id"
	milvusFieldFilename   = "filename"
	milvusFieldContent    = "content"
	milvusFieldChunkIndex = "chunk_index"
	milvusFieldVector     = "vector"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	Dimensions int
	UseTLS     bool
	Timeout    time.Duration
}

// MilvusVectorIndex 基于Milvus的分块向量索引，使用COSINE度量
type MilvusVectorIndex struct {
	client     client.Client
	collection string
	dimensions int
	logger     *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewMilvusVectorIndex 连接Milvus
func NewMilvusVectorIndex(ctx context.Context, opts MilvusOptions, log *zap.Logger) (*MilvusVectorIndex, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "docsearch_chunks"
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = DefaultEmbeddingDimensions
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	milvusClient, err := client.NewClient(dialCtx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, apperrors.NewCapabilityUnavailableError("milvus", fmt.Errorf("failed to create milvus client: %w", err))
	}

	return &MilvusVectorIndex{
		client:     milvusClient,
		collection: opts.Collection,
		dimensions: opts.Dimensions,
		logger:     logger.OrNop(log).Named("milvus"),
	}, nil
}

// ensureCollection 首次使用时建集合、建索引并加载
func (m *MilvusVectorIndex) ensureCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	exists, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: m.collection,
			Description:    "document chunk vectors",
			Fields: []*entity.Field{
				{
					Name:       milvusFieldChunkID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       milvusFieldDocumentID,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:       milvusFieldFilename,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "1024"},
				},
				{
					Name:       milvusFieldContent,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:     milvusFieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       milvusFieldVector,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": strconv.Itoa(m.dimensions)},
				},
			},
		}
		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
		if err != nil {
			return fmt.Errorf("failed to build index params: %w", err)
		}
		if err := m.client.CreateIndex(ctx, m.collection, milvusFieldVector, index, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		m.logger.Info("Created milvus collection",
			zap.String("collection", m.collection),
			zap.Int("dimensions", m.dimensions))
	}

	if err := m.client.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	m.ready = true
	return nil
}

// Upsert 写入或覆盖分块向量
func (m *MilvusVectorIndex) Upsert(ctx context.Context, chunk StoredChunk, vector []float32) error {
	if len(vector) != m.dimensions {
		return apperrors.NewDimensionMismatchError(m.dimensions, len(vector))
	}
	if err := m.ensureCollection(ctx); err != nil {
		return apperrors.NewStorageFailureError("milvus upsert", err)
	}

	_, err := m.client.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar(milvusFieldChunkID, []string{chunk.ID}),
		entity.NewColumnVarChar(milvusFieldDocumentID, []string{chunk.DocumentID}),
		entity.NewColumnVarChar(milvusFieldFilename, []string{chunk.Filename}),
		entity.NewColumnVarChar(milvusFieldContent, []string{chunk.Content}),
		entity.NewColumnInt64(milvusFieldChunkIndex, []int64{int64(chunk.ChunkIndex)}),
		entity.NewColumnFloatVector(milvusFieldVector, m.dimensions, [][]float32{vector}),
	)
	if err != nil {
		return apperrors.NewStorageFailureError("milvus upsert", err)
	}
	return nil
}

// Search 返回按余弦距离升序的分块，距离为 1 - 相似度
func (m *MilvusVectorIndex) Search(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error) {
	if len(vector) != m.dimensions {
		return nil, apperrors.NewDimensionMismatchError(m.dimensions, len(vector))
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if err := m.ensureCollection(ctx); err != nil {
		return nil, apperrors.NewStorageFailureError("milvus search", err)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, apperrors.NewStorageFailureError("milvus search", err)
	}
	searchResults, err := m.client.Search(
		ctx,
		m.collection,
		[]string{},
		"",
		[]string{milvusFieldDocumentID, milvusFieldFilename, milvusFieldContent, milvusFieldChunkIndex},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusFieldVector,
		entity.COSINE,
		limit,
		sp,
	)
	if err != nil {
		return nil, apperrors.NewStorageFailureError("milvus search", err)
	}
	if len(searchResults) == 0 {
		return []RankedChunk{}, nil
	}

	// 只有一个查询向量
	result := searchResults[0]
	if result.Err != nil {
		return nil, apperrors.NewStorageFailureError("milvus search", result.Err)
	}

	var ids, documentIDs, filenames, contents []string
	var indexes []int64
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}
	for _, field := range result.Fields {
		switch field.Name() {
		case milvusFieldDocumentID:
			if col, ok := field.(*entity.ColumnVarChar); ok {
				documentIDs = col.Data()
			}
		case milvusFieldFilename:
			if col, ok := field.(*entity.ColumnVarChar); ok {
				filenames = col.Data()
			}
		case milvusFieldContent:
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		case milvusFieldChunkIndex:
			if col, ok := field.(*entity.ColumnInt64); ok {
				indexes = col.Data()
			}
		}
	}

	ranked := make([]RankedChunk, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		chunk := RankedChunk{
			StoredChunk: StoredChunk{
				ID:         valueAt(ids, i),
				DocumentID: valueAt(documentIDs, i),
				Filename:   valueAt(filenames, i),
				Content:    valueAt(contents, i),
				ChunkIndex: int(valueAt(indexes, i)),
			},
			Distance: 1,
		}
		if i < len(result.Scores) {
			chunk.Distance = 1 - float64(result.Scores[i])
		}
		ranked = append(ranked, chunk)
	}
	return ranked, nil
}

// Ready 检查Milvus连接
func (m *MilvusVectorIndex) Ready() bool {
	if m.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := m.client.ListCollections(ctx)
	return err == nil
}

// Close 关闭客户端
func (m *MilvusVectorIndex) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

func valueAt[T any](values []T, i int) T {
	var zero T
	if i < len(values) {
		return values[i]
	}
	return zero
}
