package knowledge

import (
	"context"
	"strings"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/aihub/docsearch/internal/models"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const chunkColumns = "dc.id, dc.document_id, d.filename, dc.content, dc.chunk_index, dc.embedding"

// GormStore 基于PostgreSQL的文档存储，vectorEnabled 表示数据库已安装pgvector扩展
type GormStore struct {
	db            *gorm.DB
	vectorEnabled bool
	logger        *zap.Logger
}

// NewGormStore 创建数据库存储
func NewGormStore(db *gorm.DB, vectorEnabled bool, log *zap.Logger) *GormStore {
	return &GormStore{
		db:            db,
		vectorEnabled: vectorEnabled,
		logger:        logger.OrNop(log),
	}
}

// VectorEnabled 是否支持原生向量检索
func (s *GormStore) VectorEnabled() bool {
	return s.vectorEnabled
}

func (s *GormStore) CreateDocument(ctx context.Context, filename, text string, byteSize int64) (string, error) {
	doc := models.Document{
		Filename: filename,
		Content:  text,
		FileSize: byteSize,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return "", apperrors.NewStorageFailureError("create document", err)
	}
	return doc.ID, nil
}

// CreateChunk 写入分块；向量列写入失败时退化为只保存JSON向量
func (s *GormStore) CreateChunk(ctx context.Context, documentID, text string, index int, vector []float32) (string, error) {
	chunk := models.DocumentChunk{
		DocumentID: documentID,
		Content:    text,
		ChunkIndex: index,
	}
	if len(vector) > 0 {
		encoded, err := EncodeVector(vector)
		if err != nil {
			return "", apperrors.NewInvalidArgumentError("invalid embedding").WithCause(err)
		}
		chunk.Embedding = &encoded
		if s.vectorEnabled {
			v := pgvector.NewVector(vector)
			chunk.EmbeddingVector = &v
		}
	}

	if chunk.EmbeddingVector != nil {
		err := s.db.WithContext(ctx).Create(&chunk).Error
		if err == nil {
			return chunk.ID, nil
		}
		s.logger.Warn("Vector column write failed, storing JSON embedding only",
			zap.String("document_id", documentID),
			zap.Int("chunk_index", index),
			zap.Error(err))
		chunk.EmbeddingVector = nil
	}

	if err := s.db.WithContext(ctx).Omit("EmbeddingVector").Create(&chunk).Error; err != nil {
		return "", apperrors.NewStorageFailureError("create chunk", err)
	}
	return chunk.ID, nil
}

func (s *GormStore) UpdateChunkCount(ctx context.Context, documentID string, count int) error {
	result := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", documentID).
		Update("chunk_count", count)
	if result.Error != nil {
		return apperrors.NewStorageFailureError("update chunk count", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("document " + documentID)
	}
	return nil
}

func (s *GormStore) ListDocuments(ctx context.Context) ([]Document, error) {
	var rows []models.Document
	err := s.db.WithContext(ctx).
		Order("upload_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageFailureError("list documents", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{
			ID:         row.ID,
			Filename:   row.Filename,
			Content:    row.Content,
			UploadDate: row.UploadDate,
			ChunkCount: row.ChunkCount,
			FileSize:   row.FileSize,
		})
	}
	return docs, nil
}

// RankByVector 使用pgvector的 <=> 余弦距离运算符排序
func (s *GormStore) RankByVector(ctx context.Context, vector []float32, limit int) ([]RankedChunk, error) {
	if !s.vectorEnabled {
		return nil, ErrVectorSearchUnsupported
	}

	var rows []chunkRecord
	err := s.db.WithContext(ctx).Raw(
		"SELECT "+chunkColumns+", dc.embedding_vector <=> ? AS distance "+
			"FROM document_chunks dc JOIN documents d ON dc.document_id = d.id "+
			"WHERE dc.embedding_vector IS NOT NULL "+
			"ORDER BY distance ASC, dc.chunk_index ASC, dc.id ASC LIMIT ?",
		pgvector.NewVector(vector), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageFailureError("rank by vector", err)
	}

	ranked := make([]RankedChunk, 0, len(rows))
	for _, row := range rows {
		ranked = append(ranked, RankedChunk{StoredChunk: row.toStored(), Distance: row.Distance})
	}
	return ranked, nil
}

func (s *GormStore) AllChunksWithVectors(ctx context.Context) ([]StoredChunk, error) {
	var rows []chunkRecord
	err := s.chunkQuery(ctx).
		Where("dc.embedding IS NOT NULL AND dc.embedding <> ''").
		Order("dc.chunk_index ASC, dc.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageFailureError("load chunk vectors", err)
	}
	return toStoredChunks(rows), nil
}

// ChunksMatchingSubstring 反斜杠为PostgreSQL LIKE的默认转义符
func (s *GormStore) ChunksMatchingSubstring(ctx context.Context, text string, limit int) ([]StoredChunk, error) {
	var rows []chunkRecord
	err := s.chunkQuery(ctx).
		Where("LOWER(dc.content) LIKE LOWER(?)", "%"+escapeLike(text)+"%").
		Order("dc.chunk_index ASC, dc.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageFailureError("substring search", err)
	}
	return toStoredChunks(rows), nil
}

func (s *GormStore) chunkQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("document_chunks dc").
		Select(chunkColumns).
		Joins("JOIN documents d ON dc.document_id = d.id")
}

// chunkRecord 查询结果的最小结构
type chunkRecord struct {
	ID         string
	DocumentID string
	Filename   string
	Content    string
	ChunkIndex int
	Embedding  *string
	Distance   float64
}

func (r chunkRecord) toStored() StoredChunk {
	chunk := StoredChunk{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Filename:   r.Filename,
		Content:    r.Content,
		ChunkIndex: r.ChunkIndex,
	}
	if r.Embedding != nil {
		chunk.Embedding = *r.Embedding
	}
	return chunk
}

func toStoredChunks(rows []chunkRecord) []StoredChunk {
	chunks := make([]StoredChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, row.toStored())
	}
	return chunks
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
