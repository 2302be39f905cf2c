package knowledge

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultSearchLimit = 10
	// LexicalScore 词法匹配结果的固定得分，仅表示"命中"
	LexicalScore = 0.5
)

// SearchTier 检索层级
type SearchTier string

const (
	TierVector  SearchTier = "vector"
	TierCosine  SearchTier = "cosine"
	TierLexical SearchTier = "lexical"
)

// SearchResult 检索结果
type SearchResult struct {
	Content    string     `json:"content"`
	Score      float64    `json:"score"`
	DocumentID string     `json:"documentId"`
	Filename   string     `json:"filename"`
	ChunkID    string     `json:"chunkId"`
	ChunkIndex int        `json:"chunkIndex"`
	Tier       SearchTier `json:"tier"`
}

// SearchResponse 检索响应，Degraded 表示由较低层级提供结果
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Tier     SearchTier     `json:"tier"`
	Degraded bool           `json:"degraded"`
}

// QueryEmbedder 查询向量化
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

type tierOutcomeKind int

const (
	tierSuccess tierOutcomeKind = iota
	tierUnavailable
	tierEmpty
)

// tierOutcome 单个层级的尝试结果
type tierOutcome struct {
	kind    tierOutcomeKind
	results []SearchResult
	reason  error
}

func success(results []SearchResult) tierOutcome {
	return tierOutcome{kind: tierSuccess, results: results}
}

func unavailable(reason error) tierOutcome {
	return tierOutcome{kind: tierUnavailable, reason: reason}
}

func empty() tierOutcome {
	return tierOutcome{kind: tierEmpty}
}

// Retriever 三级检索：原生向量 -> 应用层余弦 -> 子串匹配
type Retriever struct {
	store    Store
	embedder QueryEmbedder
	logger   *zap.Logger
}

// NewRetriever 创建检索器
func NewRetriever(store Store, embedder QueryEmbedder, log *zap.Logger) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		logger:   logger.OrNop(log),
	}
}

// Search 按得分降序返回最多 limit 条结果；limit<=0 时使用默认值10
func (r *Retriever) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidQueryError("query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	start := time.Now()
	defer func() {
		searchDuration.Observe(time.Since(start).Seconds())
	}()

	queryVector, err := r.embedQuery(ctx, query)
	if err == nil {
		outcome := r.vectorTier(ctx, queryVector, limit)
		if outcome.kind == tierSuccess {
			return r.respond(TierVector, outcome.results), nil
		}
		r.skipTier(TierVector, outcome)

		outcome = r.cosineTier(ctx, queryVector, limit)
		if outcome.kind == tierSuccess {
			return r.respond(TierCosine, outcome.results), nil
		}
		r.skipTier(TierCosine, outcome)
	} else {
		r.skipTier(TierVector, unavailable(err))
	}

	results, err := r.lexicalTier(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return r.respond(TierLexical, results), nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedder == nil {
		return nil, apperrors.NewCapabilityUnavailableError("embedding model", nil)
	}
	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if IsZeroVector(vector) {
		return nil, apperrors.NewCapabilityUnavailableError("query embedding", nil)
	}
	return vector, nil
}

func (r *Retriever) vectorTier(ctx context.Context, queryVector []float32, limit int) tierOutcome {
	ranked, err := r.store.RankByVector(ctx, queryVector, limit)
	if err != nil {
		return unavailable(err)
	}
	if len(ranked) == 0 {
		return empty()
	}

	results := make([]SearchResult, 0, len(ranked))
	for _, chunk := range ranked {
		results = append(results, toSearchResult(chunk.StoredChunk, 1-chunk.Distance, TierVector))
	}
	sortResults(results)
	return success(truncateResults(results, limit))
}

func (r *Retriever) cosineTier(ctx context.Context, queryVector []float32, limit int) tierOutcome {
	chunks, err := r.store.AllChunksWithVectors(ctx)
	if err != nil {
		return unavailable(err)
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := DecodeVector(chunk.Embedding)
		if err != nil {
			r.logger.Warn("Skipping chunk with malformed embedding",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err))
			continue
		}
		score, err := CosineSimilarity(queryVector, vector)
		if err != nil {
			r.logger.Warn("Skipping chunk with mismatched embedding",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err))
			continue
		}
		results = append(results, toSearchResult(chunk, score, TierCosine))
	}

	if len(results) == 0 {
		return empty()
	}
	sortResults(results)
	return success(truncateResults(results, limit))
}

func (r *Retriever) lexicalTier(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	chunks, err := r.store.ChunksMatchingSubstring(ctx, query, limit)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewStorageFailureError("substring search", err)
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, toSearchResult(chunk, LexicalScore, TierLexical))
	}
	sortResults(results)
	return truncateResults(results, limit), nil
}

func (r *Retriever) respond(tier SearchTier, results []SearchResult) *SearchResponse {
	degraded := tier != TierVector
	searchTierCounter.WithLabelValues(string(tier), strconv.FormatBool(degraded)).Inc()
	if degraded {
		r.logger.Info("Search served by fallback tier",
			zap.String("tier", string(tier)),
			zap.Int("results", len(results)))
	}
	if results == nil {
		results = []SearchResult{}
	}
	return &SearchResponse{Results: results, Tier: tier, Degraded: degraded}
}

func (r *Retriever) skipTier(tier SearchTier, outcome tierOutcome) {
	switch outcome.kind {
	case tierUnavailable:
		tierFallbackCounter.WithLabelValues(string(tier), "unavailable").Inc()
		r.logger.Warn("Search tier unavailable, falling back",
			zap.String("tier", string(tier)),
			zap.Error(outcome.reason))
	case tierEmpty:
		tierFallbackCounter.WithLabelValues(string(tier), "empty").Inc()
		r.logger.Debug("Search tier returned no candidates, falling back",
			zap.String("tier", string(tier)))
	}
}

func toSearchResult(chunk StoredChunk, score float64, tier SearchTier) SearchResult {
	return SearchResult{
		Content:    chunk.Content,
		Score:      score,
		DocumentID: chunk.DocumentID,
		Filename:   chunk.Filename,
		ChunkID:    chunk.ID,
		ChunkIndex: chunk.ChunkIndex,
		Tier:       tier,
	}
}

// sortResults 得分降序，同分按分块序号升序
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func truncateResults(results []SearchResult, limit int) []SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
