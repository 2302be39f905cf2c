package knowledge

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultIngestParallel = 4

// IngestResult 入库结果
type IngestResult struct {
	DocumentID string `json:"id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Embedded   int    `json:"embedded"`
}

// Ingestor 文档入库：分块、向量化、写入分块、最后更新分块数
type Ingestor struct {
	store       Store
	chunker     *Chunker
	embedder    *BatchEmbedder
	maxParallel int
	logger      *zap.Logger
}

// NewIngestor 创建入库器
func NewIngestor(store Store, chunker *Chunker, embedder *BatchEmbedder, maxParallel int, log *zap.Logger) *Ingestor {
	if maxParallel <= 0 {
		maxParallel = DefaultIngestParallel
	}
	return &Ingestor{
		store:       store,
		chunker:     chunker,
		embedder:    embedder,
		maxParallel: maxParallel,
		logger:      logger.OrNop(log),
	}
}

// Ingest 处理已提取的文档文本
// 向量模型不可用时分块不带向量写入，仅能被子串检索命中
func (i *Ingestor) Ingest(ctx context.Context, filename, text string, byteSize int64) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidArgumentError("document text is empty")
	}

	chunks := i.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, apperrors.NewInvalidArgumentError("document produced no text chunks")
	}

	modelAvailable := true
	vectors, err := i.embedder.Embed(ctx, chunks)
	if err != nil {
		if !errors.Is(err, apperrors.ErrCapabilityUnavailable) {
			return nil, err
		}
		i.logger.Warn("Embedding model unavailable, storing chunks without vectors",
			zap.String("filename", filename),
			zap.Error(err))
		vectors = make([][]float32, len(chunks))
		modelAvailable = false
	}

	documentID, err := i.store.CreateDocument(ctx, filename, text, byteSize)
	if err != nil {
		return nil, err
	}
	result := &IngestResult{DocumentID: documentID, Filename: filename}

	embedded, err := i.writeChunks(ctx, documentID, chunks, vectors)
	if err != nil {
		i.logger.Error("Failed to store document chunks",
			zap.String("document_id", documentID),
			zap.Error(err))
		if aborter, ok := i.store.(IngestAborter); ok {
			aborter.AbortIngest(documentID)
		}
		return result, err
	}
	if modelAvailable && embedded < len(chunks) {
		i.logger.Warn("Some chunks stored without vectors",
			zap.String("document_id", documentID),
			zap.Int("missing", len(chunks)-embedded),
			zap.String("failure_policy", string(i.embedder.Policy())))
	}

	// 所有分块写入完成后再更新分块数
	if err := i.store.UpdateChunkCount(ctx, documentID, len(chunks)); err != nil {
		return result, err
	}

	result.Chunks = len(chunks)
	result.Embedded = embedded
	ingestedDocuments.Inc()

	i.logger.Info("Document ingested",
		zap.String("document_id", documentID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedded", embedded))
	return result, nil
}

func (i *Ingestor) writeChunks(ctx context.Context, documentID string, chunks []string, vectors [][]float32) (int, error) {
	withVector := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.maxParallel)
	for idx, chunk := range chunks {
		vector := vectors[idx]
		// 零向量不作为向量保存
		if IsZeroVector(vector) {
			vector = nil
		}
		g.Go(func() error {
			if _, err := i.store.CreateChunk(gctx, documentID, chunk, idx, vector); err != nil {
				return err
			}
			withVector[idx] = vector != nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	embedded := 0
	for _, ok := range withVector {
		if ok {
			embedded++
			ingestedChunks.WithLabelValues("true").Inc()
		} else {
			ingestedChunks.WithLabelValues("false").Inc()
		}
	}
	return embedded, nil
}
