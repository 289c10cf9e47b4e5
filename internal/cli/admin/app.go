package admin

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docindex/internal/cache"
	"github.com/cloo-solutions/docindex/internal/config"
	"github.com/cloo-solutions/docindex/internal/database"
	"github.com/cloo-solutions/docindex/internal/extract"
	"github.com/cloo-solutions/docindex/internal/openai"
	"github.com/cloo-solutions/docindex/internal/platform/rabbitmq"
	"github.com/cloo-solutions/docindex/internal/platform/redis"
	"github.com/cloo-solutions/docindex/internal/repository"
	"github.com/cloo-solutions/docindex/internal/service"
	"github.com/cloo-solutions/docindex/internal/storage"
	"github.com/cloo-solutions/docindex/internal/tokens"
)

// app holds the services shared by the daemon commands.
type app struct {
	pool      *pgxpool.Pool
	jobs      *repository.IndexJobRepository
	indexer   *service.Indexer
	documents *service.DocumentService
	processor *service.DocumentProcessor
	search    *service.SearchService
	closers   []func()
}

type appOptions struct {
	// events connects to RabbitMQ when configured. Commands that never
	// process documents leave it off.
	events bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &app{pool: pool}
	a.closers = append(a.closers, pool.Close)
	log.Println("connected to database")

	if err := a.wire(ctx, cfg, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config, opts appOptions) error {
	docRepo := repository.NewDocumentRepository(a.pool)
	chunkRepo := repository.NewChunkRepository(a.pool)
	a.jobs = repository.NewIndexJobRepository(a.pool)

	embedder, err := a.embedder(ctx, cfg)
	if err != nil {
		return err
	}

	indexer, err := service.NewIndexer(service.IndexerConfig{
		Chunking:         cfg.ChunkingConfig(),
		EmbedConcurrency: cfg.EmbedConcurrency,
		MaxInputTokens:   tokens.EmbeddingInputLimit,
	}, embedder, chunkRepo, service.WithTokenCounter(tokens.NewCounter(cfg.TokenEncoding)))
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	a.indexer = indexer

	var processorOpts []service.ProcessorOption
	docOpts := []service.DocumentServiceOption{service.WithChunkReader(chunkRepo)}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		processorOpts = append(processorOpts, service.WithObjectReader(s3Client))
		docOpts = append(docOpts, service.WithObjectStorage(s3Client))
	}

	if opts.events && cfg.HasRabbitMQ() {
		conn, err := rabbitmq.New(ctx, cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		processorOpts = append(processorOpts, service.WithEventPublisher(rabbitmq.NewEventPublisher(conn, cfg.RabbitMQQueue)))
		log.Printf("publishing index events to queue '%s'", cfg.RabbitMQQueue)
	}

	stale := service.StaleConfig{
		Version:         indexer.Config().Version,
		MaxChars:        indexer.Config().MaxChars,
		OverlapSegments: indexer.Config().OverlapSegments,
	}
	a.documents = service.NewDocumentService(docRepo, a.jobs, repository.NewTxRunner(a.pool), indexer, stale, docOpts...)
	a.processor = service.NewDocumentProcessor(docRepo, indexer, extract.New(), processorOpts...)
	a.search = service.NewSearchService(chunkRepo, embedder)
	return nil
}

// embedder returns nil when no embedding provider is configured; chunks are
// then indexed text-only and search runs lexically.
func (a *app) embedder(ctx context.Context, cfg *config.Config) (service.Embedder, error) {
	if !cfg.HasOpenAI() {
		log.Println("no embedding provider configured, indexing text only")
		return nil, nil
	}

	openaiCfg := openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		BaseURL:             cfg.OpenAIBaseURL,
		AzureEndpoint:       cfg.AzureEndpoint,
		AzureDeployment:     cfg.AzureDeployment,
	}
	if strings.HasPrefix(cfg.EmbeddingModel, "text-embedding-3") {
		openaiCfg.RequestDimensions = cfg.EmbeddingDimensions
	}
	client := openai.NewClientWithConfig(openaiCfg)

	if !cfg.HasRedis() {
		return client, nil
	}
	rdb, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	log.Printf("embedding cache enabled (ttl %v)", cfg.EmbeddingCacheTTL)
	return cache.NewCachedEmbedder(client, rdb, client.Model(), client.Dimensions(), cfg.EmbeddingCacheTTL), nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
