package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the model used for chunk embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions matches the vector(1536) column of document_chunks
	DefaultEmbeddingDimensions = 1536
	// DefaultAzureAPIVersion is used when an Azure endpoint is configured without a version
	DefaultAzureAPIVersion = "2024-02-01"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoEmbeddingData is returned when the API answers without vectors
	ErrNoEmbeddingData = errors.New("no embedding data returned")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api        EmbeddingAPI
	model      string
	dimensions int
}

type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientConfig(cfg)),
		model:      model,
		dimensions: cfg.RequestDimensions,
	}
}

// clientConfig selects the Azure flavour of the API when an Azure endpoint is set.
func clientConfig(cfg Config) openai.ClientConfig {
	if cfg.AzureEndpoint != "" {
		c := openai.DefaultAzureConfig(cfg.APIKey, cfg.AzureEndpoint)
		c.APIVersion = cfg.AzureAPIVersion
		if c.APIVersion == "" {
			c.APIVersion = DefaultAzureAPIVersion
		}
		if cfg.AzureDeployment != "" {
			deployment := cfg.AzureDeployment
			c.AzureModelMapperFunc = func(string) string { return deployment }
		}
		return c
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return c
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}

	return resp.Data[0].Embedding, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	// RequestDimensions asks models that support it (text-embedding-3-*) to shorten vectors.
	RequestDimensions int
	BaseURL           string
	AzureEndpoint     string
	AzureDeployment   string
	AzureAPIVersion   string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg),
		model:      string(model),
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Model returns the embedding model name, used to namespace cached vectors.
func (c *Client) Model() string {
	if c.model == "" {
		return string(DefaultEmbeddingModel)
	}
	return c.model
}

// Dimensions returns the vector size the client enforces.
func (c *Client) Dimensions() int {
	if c.dimensions <= 0 {
		return DefaultEmbeddingDimensions
	}
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.Dimensions() {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(embedding), c.Dimensions())
	}

	return embedding, nil
}
