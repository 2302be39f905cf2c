package knowledge

import (
	"context"
	"fmt"

	"github.com/aihub/docsearch/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultEmbeddingBatchSize = 10

// FailurePolicy 单条文本向量化失败时的处理策略，同一次调用内统一生效
type FailurePolicy string

const (
	// FailurePolicyFail 任一文本失败则整个调用失败
	FailurePolicyFail FailurePolicy = "fail"
	// FailurePolicyZeroVector 失败文本以零向量代替并记录警告
	FailurePolicyZeroVector FailurePolicy = "zero_vector"
)

// ParseFailurePolicy 解析配置中的策略名，未知值按 fail 处理
func ParseFailurePolicy(value string) FailurePolicy {
	if FailurePolicy(value) == FailurePolicyZeroVector {
		return FailurePolicyZeroVector
	}
	return FailurePolicyFail
}

// embeddingOutcome 单条文本的向量化结果
type embeddingOutcome struct {
	vector []float32
	err    error
}

func (o embeddingOutcome) ok() bool {
	return o.err == nil
}

// BatchEmbedder 分批并发向量化，输出顺序与输入一致
type BatchEmbedder struct {
	shared    *SharedEmbedder
	batchSize int
	policy    FailurePolicy
	logger    *zap.Logger
}

// NewBatchEmbedder 创建批量向量化器
func NewBatchEmbedder(shared *SharedEmbedder, batchSize int, policy FailurePolicy, log *zap.Logger) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	if policy == "" {
		policy = FailurePolicyFail
	}
	return &BatchEmbedder{
		shared:    shared,
		batchSize: batchSize,
		policy:    policy,
		logger:    logger.OrNop(log),
	}
}

// Policy 当前失败策略
func (b *BatchEmbedder) Policy() FailurePolicy {
	return b.policy
}

// Dimensions 模型输出维度，模型不可用时返回错误
func (b *BatchEmbedder) Dimensions() (int, error) {
	model, err := b.shared.Get()
	if err != nil {
		return 0, err
	}
	return model.Dimensions(), nil
}

// Embed 为每条文本生成L2归一化向量
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model, err := b.shared.Get()
	if err != nil {
		return nil, err
	}

	outcomes := make([]embeddingOutcome, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := b.embedBatch(ctx, model, texts, outcomes, start, end); err != nil {
			return nil, err
		}
	}

	return b.applyPolicy(outcomes, model.Dimensions())
}

// EmbedOne 单条文本向量化，用于查询
func (b *BatchEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch 并发处理 [start, end) 区间，结果写入对应下标
func (b *BatchEmbedder) embedBatch(ctx context.Context, model Embedder, texts []string, outcomes []embeddingOutcome, start, end int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := start; i < end; i++ {
		g.Go(func() error {
			vector, err := model.Embed(gctx, texts[i])
			if err == nil && len(vector) == 0 {
				err = fmt.Errorf("empty embedding")
			}
			outcomes[i] = embeddingOutcome{vector: vector, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (b *BatchEmbedder) applyPolicy(outcomes []embeddingOutcome, dimensions int) ([][]float32, error) {
	vectors := make([][]float32, len(outcomes))
	for i, outcome := range outcomes {
		if outcome.ok() {
			vectors[i] = NormalizeVector(outcome.vector)
			continue
		}

		embeddingItemFailures.WithLabelValues(string(b.policy)).Inc()

		switch b.policy {
		case FailurePolicyZeroVector:
			b.logger.Warn("Embedding failed, substituting zero vector",
				zap.Int("index", i),
				zap.Int("dimensions", dimensions),
				zap.Error(outcome.err))
			vectors[i] = make([]float32, dimensions)
		default:
			return nil, fmt.Errorf("embed text %d: %w", i, outcome.err)
		}
	}
	return vectors, nil
}
