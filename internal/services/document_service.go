package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/kafka"
	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/aihub/docsearch/internal/middleware"
	"go.uber.org/zap"
)

const (
	DefaultContextPassages = 3
	DefaultSearchCacheTTL  = 5 * time.Minute
)

// SearchCache 检索结果缓存
type SearchCache interface {
	GetCache(ctx context.Context, key string, dest interface{}) error
	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateSearches(ctx context.Context) error
}

// DocumentArchive 原始文件归档
type DocumentArchive interface {
	ArchiveDocument(ctx context.Context, documentID, filename string, data []byte) (string, error)
}

// EventPublisher 文档事件发布
type EventPublisher interface {
	PublishDocumentEvent(event *kafka.DocumentEvent) error
}

// UploadResult 上传响应
type UploadResult struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Chunks    int    `json:"chunks"`
	Embedded  int    `json:"embedded"`
	Processed bool   `json:"processed"`
	ObjectKey string `json:"objectKey,omitempty"`
}

// SearchResults 检索响应
type SearchResults struct {
	Results      []knowledge.SearchResult `json:"results"`
	TotalResults int                      `json:"totalResults"`
	Tier         knowledge.SearchTier     `json:"tier"`
	Degraded     bool                     `json:"degraded"`
}

// GenerateResult 回答响应，Sources 为参与生成的上下文
type GenerateResult struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// AskResult 检索加生成
type AskResult struct {
	Answer   string                   `json:"answer"`
	Sources  []knowledge.SearchResult `json:"sources"`
	Tier     knowledge.SearchTier     `json:"tier"`
	Degraded bool                     `json:"degraded"`
}

// DocumentServiceOptions 可选依赖，为nil时对应功能关闭
type DocumentServiceOptions struct {
	Cache           SearchCache
	Archive         DocumentArchive
	Events          EventPublisher
	CacheTTL        time.Duration
	ContextPassages int
	Logger          *zap.Logger
}

// DocumentService 文档上传、检索与问答
type DocumentService struct {
	ingestor    *knowledge.Ingestor
	retriever   *knowledge.Retriever
	synthesizer *knowledge.Synthesizer
	extractor   knowledge.TextExtractor
	store       knowledge.Store

	cache           SearchCache
	archive         DocumentArchive
	events          EventPublisher
	cacheTTL        time.Duration
	contextPassages int
	logger          *zap.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	ingestor *knowledge.Ingestor,
	retriever *knowledge.Retriever,
	synthesizer *knowledge.Synthesizer,
	extractor knowledge.TextExtractor,
	store knowledge.Store,
	opts DocumentServiceOptions,
) *DocumentService {
	if opts.CacheTTL < 0 {
		opts.CacheTTL = 0
	}
	if opts.ContextPassages <= 0 {
		opts.ContextPassages = DefaultContextPassages
	}
	return &DocumentService{
		ingestor:        ingestor,
		retriever:       retriever,
		synthesizer:     synthesizer,
		extractor:       extractor,
		store:           store,
		cache:           opts.Cache,
		archive:         opts.Archive,
		events:          opts.Events,
		cacheTTL:        opts.CacheTTL,
		contextPassages: opts.ContextPassages,
		logger:          logger.OrNop(opts.Logger).Named("document_service"),
	}
}

// Upload 提取PDF文本并入库
// 归档、事件与缓存失效失败只记录日志，不影响入库结果
func (s *DocumentService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperrors.NewInvalidArgumentError("filename is required")
	}
	if !knowledge.IsPDFFilename(filename) {
		return nil, apperrors.NewInvalidFileFormatError("Only PDF files are supported")
	}

	text, err := s.extractor.ExtractText(data)
	if err != nil {
		s.logger.Warn("PDF extraction failed", zap.String("filename", filename), zap.Error(err))
		return nil, err
	}

	ingested, err := s.ingestor.Ingest(ctx, filename, text, int64(len(data)))
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		ID:        ingested.DocumentID,
		Filename:  ingested.Filename,
		Chunks:    ingested.Chunks,
		Embedded:  ingested.Embedded,
		Processed: true,
	}

	if s.archive != nil {
		key, err := s.archive.ArchiveDocument(ctx, result.ID, filename, data)
		if err != nil {
			s.logger.Warn("Failed to archive document", zap.String("document_id", result.ID), zap.Error(err))
		} else {
			result.ObjectKey = key
		}
	}

	if s.events != nil {
		event := &kafka.DocumentEvent{
			Type:       kafka.EventDocumentIngested,
			DocumentID: result.ID,
			Filename:   result.Filename,
			Chunks:     result.Chunks,
			Embedded:   result.Embedded,
			FileSize:   int64(len(data)),
		}
		if err := s.events.PublishDocumentEvent(event); err != nil {
			s.logger.Warn("Failed to publish document event", zap.String("document_id", result.ID), zap.Error(err))
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSearches(ctx); err != nil {
			s.logger.Warn("Failed to invalidate search cache", zap.Error(err))
		}
	}

	return result, nil
}

// ListDocuments 按上传时间倒序
func (s *DocumentService) ListDocuments(ctx context.Context) ([]knowledge.Document, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	return docs, nil
}

// Search 检索分块，降级结果不缓存
func (s *DocumentService) Search(ctx context.Context, query string, limit int) (*SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidQueryError("Query cannot be empty")
	}
	if limit <= 0 {
		limit = knowledge.DefaultSearchLimit
	}

	key := middleware.SearchKey(query, limit)
	if s.cache != nil {
		var cached SearchResults
		err := s.cache.GetCache(ctx, key, &cached)
		if err == nil {
			searchCacheHits.Inc()
			return &cached, nil
		}
		if !errors.Is(err, middleware.ErrCacheMiss) {
			s.logger.Warn("Search cache read failed", zap.Error(err))
		}
	}

	resp, err := s.retriever.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := &SearchResults{
		Results:      resp.Results,
		TotalResults: len(resp.Results),
		Tier:         resp.Tier,
		Degraded:     resp.Degraded,
	}
	if results.Results == nil {
		results.Results = []knowledge.SearchResult{}
	}

	if s.cache != nil && !results.Degraded && s.cacheTTL > 0 {
		if err := s.cache.SetCache(ctx, key, results, s.cacheTTL); err != nil {
			s.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return results, nil
}

// Generate 根据给定上下文生成回答
func (s *DocumentService) Generate(ctx context.Context, query string, passages []string) (*GenerateResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidArgumentError("Query cannot be empty")
	}
	if len(passages) == 0 {
		return nil, apperrors.NewInvalidArgumentError("Context cannot be empty")
	}

	answer, err := s.synthesizer.GenerateAnswer(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Answer: answer, Sources: passages}, nil
}

// Ask 检索后以前N个分块作为上下文生成回答
func (s *DocumentService) Ask(ctx context.Context, query string, limit int) (*AskResult, error) {
	found, err := s.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	result := &AskResult{Tier: found.Tier, Degraded: found.Degraded}
	if len(found.Results) == 0 {
		result.Sources = []knowledge.SearchResult{}
		result.Answer = "No relevant documents were found for this question."
		return result, nil
	}

	sources := found.Results
	if len(sources) > s.contextPassages {
		sources = sources[:s.contextPassages]
	}
	passages := make([]string, len(sources))
	for i, r := range sources {
		passages[i] = r.Content
	}

	answer, err := s.synthesizer.GenerateAnswer(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	result.Answer = answer
	result.Sources = sources
	return result, nil
}
