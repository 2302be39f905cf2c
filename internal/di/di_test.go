package di

import (
	"context"
	"testing"
	"time"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/middleware"
	"github.com/aihub/docsearch/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "3000", Env: "test", MaxUploadSize: 1 << 20},
		Knowledge: config.KnowledgeConfig{
			ChunkSize:      500,
			ChunkOverlap:   50,
			MaxParallel:    2,
			SearchCacheTTL: time.Minute,
			Embedding: config.EmbeddingConfig{
				Dimensions:    384,
				BatchSize:     10,
				FailurePolicy: "fail",
			},
			VectorStore: config.VectorStoreConfig{Provider: "memory"},
			Search:      config.SearchConfig{Provider: "database"},
			Generation: config.GenerationConfig{
				MaxPromptLength: 1000,
				MaxNewTokens:    150,
				ContextPassages: 3,
			},
		},
	}
}

type fixedDimsEmbedder struct {
	dims int
}

func (e fixedDimsEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dims), nil
}

func (e fixedDimsEmbedder) Dimensions() int { return e.dims }

func (e fixedDimsEmbedder) Ready() bool { return true }

func TestCheckEmbeddingDimensions(t *testing.T) {
	embedder := knowledge.NewBatchEmbedder(knowledge.StaticEmbedder(fixedDimsEmbedder{dims: 384}), 4, knowledge.FailurePolicyFail, nil)

	assert.NoError(t, checkEmbeddingDimensions(embedder, 384))
	assert.NoError(t, checkEmbeddingDimensions(embedder, 0))

	err := checkEmbeddingDimensions(embedder, 768)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "384")
}

func TestRegisterProviders_MemoryStack(t *testing.T) {
	previous := config.AppConfig
	config.AppConfig = memoryConfig()
	defer func() { config.AppConfig = previous }()

	container := InitContainer()
	require.NoError(t, RegisterProviders(container))

	err := container.Invoke(func(
		svc *services.DocumentService,
		store knowledge.Store,
		manager *middleware.MiddlewareManager,
		backends *Backends,
		integrations *Integrations,
	) {
		assert.NotNil(t, svc)
		assert.IsType(t, &knowledge.MemoryStore{}, store)
		assert.Nil(t, backends.Database)
		assert.False(t, integrations.Cache.Enabled())

		health, overall := manager.CheckHealth(context.Background())
		// 未配置API Key时模型能力不可用，整体降级
		assert.Equal(t, middleware.StatusDegraded, overall)
		assert.Equal(t, middleware.StatusUnhealthy, health["embedding"].Status)
		assert.Equal(t, middleware.StatusDegraded, health["postgres"].Status)

		ctx := context.Background()
		resp, err := svc.Search(ctx, "anything", 5)
		require.NoError(t, err)
		assert.Equal(t, knowledge.TierLexical, resp.Tier)
		assert.Empty(t, resp.Results)
	})
	require.NoError(t, err)
}

func TestRegisterProviders_ConfigNotLoaded(t *testing.T) {
	previous := config.AppConfig
	config.AppConfig = nil
	defer func() { config.AppConfig = previous }()

	container := InitContainer()
	require.NoError(t, RegisterProviders(container))

	err := container.Invoke(func(svc *services.DocumentService) {})
	assert.Error(t, err)
}
