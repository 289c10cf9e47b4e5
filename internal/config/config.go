package config

import (
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "DOCINDEX"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns     int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxBodyBytes   int64  `envconfig:"MAX_BODY_BYTES" default:"10485760"`
	APIKeys        string `envconfig:"API_KEY"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docindex-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	AzureEndpoint       string `envconfig:"AZURE_OPENAI_ENDPOINT"`
	AzureDeployment     string `envconfig:"AZURE_OPENAI_DEPLOYMENT"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	TokenEncoding       string `envconfig:"TOKEN_ENCODING" default:"cl100k_base"`

	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"168h"`

	RabbitMQURL   string `envconfig:"RABBITMQ_URL"`
	RabbitMQQueue string `envconfig:"RABBITMQ_QUEUE" default:"docindex.events"`

	ChunkMaxChars        int    `envconfig:"CHUNK_MAX_CHARS" default:"1000"`
	ChunkOverlapSegments int    `envconfig:"CHUNK_OVERLAP_SEGMENTS" default:"1"`
	ChunkPrefix          string `envconfig:"CHUNK_PREFIX" default:"doc"`
	EmbedConcurrency     int    `envconfig:"EMBED_CONCURRENCY" default:"1"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// VectorDimensions is the size of the document_chunks.embedding column
// created by the migrations.
const VectorDimensions = 1536

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.ChunkingConfig().Validate(); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.EmbeddingDimensions != VectorDimensions {
		return nil, fmt.Errorf("failed to process config: EMBEDDING_DIMENSIONS must be %d to match the embedding column, got %d",
			VectorDimensions, cfg.EmbeddingDimensions)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasRabbitMQ() bool {
	return c.RabbitMQURL != ""
}

// ChunkingConfig returns the chunker settings. The chunking version is
// fixed by the code, not by the environment.
func (c *Config) ChunkingConfig() chunking.Config {
	cfg := chunking.DefaultConfig()
	cfg.MaxChars = c.ChunkMaxChars
	cfg.OverlapSegments = c.ChunkOverlapSegments
	cfg.Prefix = c.ChunkPrefix
	return cfg
}
