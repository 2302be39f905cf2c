package di

import (
	"context"
	"fmt"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/database"
	"github.com/aihub/docsearch/internal/errors"
	"github.com/aihub/docsearch/internal/kafka"
	"github.com/aihub/docsearch/internal/knowledge"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/aihub/docsearch/internal/middleware"
	"github.com/aihub/docsearch/internal/services"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Backends 已连接的存储后端，未启用的为nil
type Backends struct {
	Database *database.DatabaseWrapper
	Milvus   *knowledge.MilvusVectorIndex
	Elastic  *knowledge.ElasticsearchLexicalIndex
}

// Close 关闭所有后端连接
func (b *Backends) Close() {
	if b.Milvus != nil {
		b.Milvus.Close()
	}
	if b.Database != nil {
		b.Database.Close()
	}
}

// Integrations 可选的外部集成，未启用的为nil
type Integrations struct {
	Cache   *middleware.RedisService
	Archive *middleware.MinIOService
	Events  *kafka.Producer

	// CacheHealth Redis后台健康检查，由bootstrap启动
	CacheHealth *database.HealthChecker
}

// Close 关闭集成连接
func (i *Integrations) Close() {
	if i.CacheHealth != nil {
		i.CacheHealth.Stop()
	}
	if i.Events != nil {
		i.Events.Close()
	}
	if i.Cache != nil {
		i.Cache.Close()
	}
}

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []interface{}{
		provideConfig,
		provideLogger,
		provideBackends,
		provideStore,
		provideIntegrations,
		provideSharedEmbedder,
		provideSharedGenerator,
		provideBatchEmbedder,
		provideIngestor,
		provideRetriever,
		provideSynthesizer,
		provideExtractor,
		provideDocumentService,
		provideMiddlewareManager,
		errors.NewErrorTranslator,
	}
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return err
		}
	}
	return nil
}

func provideConfig() (*config.Config, error) {
	if config.AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return config.AppConfig, nil
}

func provideLogger() *zap.Logger {
	return logger.GetLogger()
}

// provideBackends 数据库为必需依赖，Milvus/ES连接失败时降级为数据库实现
func provideBackends(cfg *config.Config, log *zap.Logger) (*Backends, error) {
	ctx := context.Background()
	backends := &Backends{}

	if cfg.Knowledge.VectorStore.Provider != "memory" {
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		backends.Database = db
	}

	if cfg.Knowledge.VectorStore.Provider == "milvus" {
		milvusCfg := cfg.Knowledge.VectorStore.Milvus
		index, err := knowledge.NewMilvusVectorIndex(ctx, knowledge.MilvusOptions{
			Address:    milvusCfg.Address,
			Username:   milvusCfg.Username,
			Password:   milvusCfg.Password,
			Database:   milvusCfg.Database,
			Collection: milvusCfg.Collection,
			Dimensions: cfg.Knowledge.Embedding.Dimensions,
		}, log)
		if err != nil {
			log.Warn("Milvus unavailable, using database vector search", zap.Error(err))
		} else {
			backends.Milvus = index
		}
	}

	if cfg.Knowledge.Search.Provider == "elasticsearch" {
		esCfg := cfg.Knowledge.Search.Elasticsearch
		index, err := knowledge.NewElasticsearchLexicalIndex(knowledge.ElasticsearchOptions{
			Addresses: esCfg.Addresses,
			Username:  esCfg.Username,
			Password:  esCfg.Password,
			APIKey:    esCfg.APIKey,
			Index:     esCfg.Index,
		})
		if err != nil {
			log.Warn("Elasticsearch unavailable, using database substring search", zap.Error(err))
		} else {
			backends.Elastic = index
		}
	}

	return backends, nil
}

func provideStore(backends *Backends, log *zap.Logger) knowledge.Store {
	var base knowledge.Store
	if backends.Database != nil {
		base = knowledge.NewGormStore(backends.Database.GetDB(), backends.Database.VectorEnabled(), log)
	} else {
		base = knowledge.NewMemoryStore(true)
	}

	if backends.Milvus == nil && backends.Elastic == nil {
		return base
	}

	// 避免把nil指针装进接口
	var vectors knowledge.VectorIndex
	if backends.Milvus != nil {
		vectors = backends.Milvus
	}
	var lexical knowledge.LexicalIndex
	if backends.Elastic != nil {
		lexical = backends.Elastic
	}
	return knowledge.NewCompositeStore(base, vectors, lexical, log)
}

// provideIntegrations 缓存、归档与事件均为可选，连接失败只记录日志
func provideIntegrations(cfg *config.Config, backends *Backends, log *zap.Logger) *Integrations {
	ctx := context.Background()
	integrations := &Integrations{Cache: middleware.NewRedisService(nil)}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, search cache disabled", zap.Error(err))
		} else {
			integrations.Cache = middleware.NewRedisService(rdb)
			integrations.CacheHealth = database.NewHealthChecker("redis", database.RedisCheck(rdb), infraLogger(backends))
		}
	}

	if cfg.Storage.Enabled {
		archive, err := middleware.NewMinIOService(ctx, cfg.Storage)
		if err != nil {
			log.Warn("MinIO unavailable, uploads will not be archived", zap.Error(err))
		} else {
			integrations.Archive = archive
		}
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Warn("Kafka unavailable, document events disabled", zap.Error(err))
		} else {
			integrations.Events = producer
		}
	}

	return integrations
}

// infraLogger 基础设施检查沿用数据库组件的logrus日志
func infraLogger(backends *Backends) *logrus.Logger {
	if backends.Database != nil {
		return backends.Database.Logger()
	}
	return logrus.StandardLogger()
}

func openAIConfig(cfg *config.Config) knowledge.OpenAIConfig {
	return knowledge.OpenAIConfig{
		APIKey:  cfg.AI.OpenAIAPIKey,
		BaseURL: cfg.AI.OpenAIBaseURL,
	}
}

func provideSharedEmbedder(cfg *config.Config) *knowledge.SharedEmbedder {
	return knowledge.NewSharedEmbedder(func() (knowledge.Embedder, error) {
		return knowledge.NewOpenAIEmbedder(openAIConfig(cfg), cfg.Knowledge.Embedding.Model, cfg.Knowledge.Embedding.Dimensions), nil
	})
}

func provideSharedGenerator(cfg *config.Config) *knowledge.SharedGenerator {
	return knowledge.NewSharedGenerator(func() (knowledge.Generator, error) {
		return knowledge.NewOpenAIGenerator(openAIConfig(cfg), knowledge.GenerationOptions{
			Model:        cfg.AI.CompletionModel,
			MaxNewTokens: cfg.Knowledge.Generation.MaxNewTokens,
			Temperature:  cfg.Knowledge.Generation.Temperature,
		}), nil
	})
}

func provideBatchEmbedder(shared *knowledge.SharedEmbedder, cfg *config.Config, log *zap.Logger) *knowledge.BatchEmbedder {
	embedding := cfg.Knowledge.Embedding
	return knowledge.NewBatchEmbedder(shared, embedding.BatchSize, knowledge.ParseFailurePolicy(embedding.FailurePolicy), log)
}

func provideIngestor(store knowledge.Store, embedder *knowledge.BatchEmbedder, cfg *config.Config, log *zap.Logger) *knowledge.Ingestor {
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	return knowledge.NewIngestor(store, chunker, embedder, cfg.Knowledge.MaxParallel, log)
}

func provideRetriever(store knowledge.Store, embedder *knowledge.BatchEmbedder, log *zap.Logger) *knowledge.Retriever {
	return knowledge.NewRetriever(store, embedder, log)
}

func provideSynthesizer(shared *knowledge.SharedGenerator, cfg *config.Config, log *zap.Logger) *knowledge.Synthesizer {
	return knowledge.NewSynthesizer(shared, cfg.Knowledge.Generation.MaxPromptLength, log)
}

func provideExtractor() knowledge.TextExtractor {
	return knowledge.NewPDFExtractor()
}

type documentServiceParams struct {
	dig.In

	Ingestor     *knowledge.Ingestor
	Retriever    *knowledge.Retriever
	Synthesizer  *knowledge.Synthesizer
	Extractor    knowledge.TextExtractor
	Store        knowledge.Store
	Integrations *Integrations
	Config       *config.Config
	Logger       *zap.Logger
}

func provideDocumentService(p documentServiceParams) *services.DocumentService {
	opts := services.DocumentServiceOptions{
		Cache:           p.Integrations.Cache,
		CacheTTL:        p.Config.Knowledge.SearchCacheTTL,
		ContextPassages: p.Config.Knowledge.Generation.ContextPassages,
		Logger:          p.Logger,
	}
	if p.Integrations.Archive != nil {
		opts.Archive = p.Integrations.Archive
	}
	if p.Integrations.Events != nil {
		opts.Events = p.Integrations.Events
	}
	return services.NewDocumentService(p.Ingestor, p.Retriever, p.Synthesizer, p.Extractor, p.Store, opts)
}

type managerParams struct {
	dig.In

	Backends     *Backends
	Integrations *Integrations
	Embedder     *knowledge.BatchEmbedder
	Generator    *knowledge.SharedGenerator
	Config       *config.Config
}

// provideMiddlewareManager 注册健康检查，只有数据库为必需依赖
func provideMiddlewareManager(p managerParams) *middleware.MiddlewareManager {
	m := middleware.NewMiddlewareManager()

	if db := p.Backends.Database; db != nil {
		m.Register("postgres", db.HealthCheck, true)
		m.RegisterDetails("postgres", func() interface{} { return db.GetHealthStatus() })
	} else {
		m.Disable("postgres", "in-memory store in use")
	}

	if milvus := p.Backends.Milvus; milvus != nil {
		m.Register("milvus", readinessProbe("milvus", milvus.Ready), false)
	}
	if es := p.Backends.Elastic; es != nil {
		m.Register("elasticsearch", readinessProbe("elasticsearch", es.Ready), false)
	}

	if p.Integrations.Cache.Enabled() {
		m.Register("redis", p.Integrations.Cache.HealthCheck, false)
		if checker := p.Integrations.CacheHealth; checker != nil {
			m.RegisterDetails("redis", func() interface{} { return checker.GetHealthResult() })
		}
	} else {
		m.Disable("redis", "Redis not configured")
	}
	if p.Integrations.Archive != nil {
		m.Register("minio", p.Integrations.Archive.HealthCheck, false)
	} else {
		m.Disable("minio", "MinIO not configured")
	}
	if p.Integrations.Events != nil {
		brokers := p.Config.Kafka.Brokers
		m.Register("kafka", func(ctx context.Context) error {
			return kafka.CheckBrokers(ctx, brokers)
		}, false)
	} else {
		m.Disable("kafka", "Kafka not configured")
	}

	expected := p.Config.Knowledge.Embedding.Dimensions
	m.Register("embedding", func(ctx context.Context) error {
		return checkEmbeddingDimensions(p.Embedder, expected)
	}, false)
	m.Register("generation", func(ctx context.Context) error {
		_, err := p.Generator.Get()
		return err
	}, false)

	return m
}

// checkEmbeddingDimensions 模型维度须与配置一致，否则已建的向量列和Milvus集合无法使用
func checkEmbeddingDimensions(embedder *knowledge.BatchEmbedder, expected int) error {
	dims, err := embedder.Dimensions()
	if err != nil {
		return err
	}
	if expected > 0 && dims != expected {
		return fmt.Errorf("embedding model returns %d dimensions, configured %d", dims, expected)
	}
	return nil
}

func readinessProbe(name string, ready func() bool) middleware.Probe {
	return func(ctx context.Context) error {
		if !ready() {
			return fmt.Errorf("%s not ready", name)
		}
		return nil
	}
}
