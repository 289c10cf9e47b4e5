package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/telemetry"
	"github.com/cloo-solutions/docindex/internal/tokens"
	"golang.org/x/sync/errgroup"
)

// Embedder generates vectors for chunk text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkIndex is the search index chunks are written to.
type ChunkIndex interface {
	UpsertChunk(ctx context.Context, chunk domain.IndexedChunk) error
	DeleteChunk(ctx context.Context, id string) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.IndexedChunk, error)
}

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

var ErrMissingDocumentID = errors.New("document id is required")

// IndexerConfig holds the settings of an Indexer.
type IndexerConfig struct {
	Chunking         chunking.Config
	EmbedConcurrency int
	MaxInputTokens   int
}

// DefaultIndexerConfig returns the default indexer settings.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		Chunking:         chunking.DefaultConfig(),
		EmbedConcurrency: 1,
		MaxInputTokens:   tokens.EmbeddingInputLimit,
	}
}

// IndexRequest describes one document to index.
type IndexRequest struct {
	DocumentID  string
	Title       string
	Category    string
	Description string
	Text        string
	Previous    *domain.ChunkingMetadata
}

// ChunkStatus is the outcome for a single chunk.
type ChunkStatus struct {
	ID              string                 `json:"id"`
	Index           int                    `json:"chunk_index"`
	Upserted        bool                   `json:"upserted"`
	EmbeddingStatus domain.EmbeddingStatus `json:"embedding_status"`
	TokenCount      int                    `json:"token_count"`
	Error           string                 `json:"error,omitempty"`
}

// IndexResult aggregates an index run. Metadata is what the caller persists
// on the document when Success is true.
type IndexResult struct {
	Success      bool                     `json:"success"`
	ChunkCount   int                      `json:"chunk_count"`
	Mode         chunking.Mode            `json:"mode"`
	Chunks       []ChunkStatus            `json:"chunks"`
	StaleDeleted []string                 `json:"stale_deleted"`
	StaleFailed  []string                 `json:"stale_failed"`
	Metadata     *domain.ChunkingMetadata `json:"metadata"`
}

// FailedChunks returns how many chunks could not be upserted.
func (r *IndexResult) FailedChunks() int {
	n := 0
	for _, c := range r.Chunks {
		if !c.Upserted {
			n++
		}
	}
	return n
}

// DeleteResult lists chunk ids removed by Indexer.Delete.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// Indexer splits documents into chunks and keeps the chunk index in sync
// with the latest split.
type Indexer struct {
	chunker          *chunking.Chunker
	embedder         Embedder
	index            ChunkIndex
	tokens           TokenCounter
	embedConcurrency int
	maxInputTokens   int
	now              func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithTokenCounter sets the counter used for token_count. Without one
// counts are estimated.
func WithTokenCounter(c TokenCounter) IndexerOption {
	return func(ix *Indexer) {
		ix.tokens = c
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IndexerOption {
	return func(ix *Indexer) {
		ix.now = now
	}
}

// NewIndexer creates an Indexer. embedder may be nil, chunks are then
// indexed text-only.
func NewIndexer(cfg IndexerConfig, embedder Embedder, index ChunkIndex, opts ...IndexerOption) (*Indexer, error) {
	chunker, err := chunking.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	if index == nil {
		return nil, fmt.Errorf("chunk index is required")
	}

	concurrency := cfg.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	ix := &Indexer{
		chunker:          chunker,
		embedder:         embedder,
		index:            index,
		embedConcurrency: concurrency,
		maxInputTokens:   cfg.MaxInputTokens,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Config returns the chunking settings the indexer runs with.
func (ix *Indexer) Config() chunking.Config {
	return ix.chunker.Config()
}

// Preview returns the chunks a document would be split into without
// touching the index.
func (ix *Indexer) Preview(documentID, text string) ([]chunking.Chunk, chunking.Mode) {
	return ix.chunker.Chunks(documentID, text)
}

type embedOutcome struct {
	vector []float32
	status domain.EmbeddingStatus
}

// Index chunks the request text, removes chunks left over from the previous
// run and upserts the new ones. Per chunk failures are reported in the
// result, only invalid requests return an error.
func (ix *Indexer) Index(ctx context.Context, req IndexRequest) (*IndexResult, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, ErrMissingDocumentID
	}

	ctx, span := telemetry.StartSpan(ctx, "Indexer.Index", telemetry.SpanAttributes{
		DocumentID: req.DocumentID,
		Operation:  "index",
	})
	defer span.End()

	cfg := ix.chunker.Config()
	chunks, mode := ix.chunker.Chunks(req.DocumentID, req.Text)
	count := len(chunks)

	result := &IndexResult{
		ChunkCount:   count,
		Mode:         mode,
		Chunks:       make([]ChunkStatus, count),
		StaleDeleted: []string{},
		StaleFailed:  []string{},
	}

	current := make([]string, count)
	for i, c := range chunks {
		current[i] = c.ID(cfg.Prefix)
	}
	previous := domain.PreviousChunkCount(req.Previous)
	stale := chunking.StaleChunkIDs(cfg.Prefix, req.DocumentID, previous, count)
	for _, id := range ix.staleIDs(ctx, req.DocumentID, stale, current) {
		if err := ix.index.DeleteChunk(ctx, id); err != nil {
			log.Printf("Failed to delete stale chunk %s: %v", id, err)
			result.StaleFailed = append(result.StaleFailed, id)
			continue
		}
		result.StaleDeleted = append(result.StaleDeleted, id)
	}

	embeddings := ix.embedAll(ctx, chunks)
	now := ix.now()

	result.Success = true
	for i, c := range chunks {
		id := current[i]
		status := ChunkStatus{
			ID:              id,
			Index:           c.ChunkIndex,
			EmbeddingStatus: embeddings[i].status,
			TokenCount:      ix.countTokens(id, c.Text),
		}

		err := ix.index.UpsertChunk(ctx, domain.IndexedChunk{
			ID:              id,
			DocumentID:      req.DocumentID,
			ChunkIndex:      c.ChunkIndex,
			ChunkCount:      c.ChunkCount,
			Mode:            string(mode),
			Title:           req.Title,
			Category:        req.Category,
			Description:     req.Description,
			Content:         c.Text,
			Embedding:       embeddings[i].vector,
			EmbeddingStatus: embeddings[i].status,
			TokenCount:      status.TokenCount,
			ChunkingVersion: cfg.Version,
			UpdatedAt:       now,
		})
		if err != nil {
			log.Printf("Failed to upsert chunk %s: %v", id, err)
			status.Error = err.Error()
			result.Success = false
		} else {
			status.Upserted = true
		}
		result.Chunks[i] = status
	}

	result.Metadata = &domain.ChunkingMetadata{
		Version:         cfg.Version,
		ChunkCount:      count,
		MaxChars:        cfg.MaxChars,
		OverlapSegments: cfg.OverlapSegments,
		Mode:            string(mode),
		LastIndexedAt:   now,
	}

	span.SetData("chunk_count", count)
	span.SetData("mode", string(mode))
	if !result.Success {
		span.SetError(fmt.Errorf("%d of %d chunks failed to index", result.FailedChunks(), count))
	}

	return result, nil
}

// Delete removes every chunk recorded for a document. Failures are logged
// and reported, never returned.
func (ix *Indexer) Delete(ctx context.Context, documentID string, meta *domain.ChunkingMetadata) *DeleteResult {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	res := &DeleteResult{Deleted: []string{}, Failed: []string{}}
	recorded := chunking.ChunkIDs(ix.chunker.Config().Prefix, documentID, domain.PreviousChunkCount(meta))
	for _, id := range ix.staleIDs(ctx, documentID, recorded, nil) {
		if err := ix.index.DeleteChunk(ctx, id); err != nil {
			log.Printf("Failed to delete chunk %s: %v", id, err)
			res.Failed = append(res.Failed, id)
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}
	return res
}

// staleIDs merges the recorded ids with every chunk the index still holds
// for documentID, minus the ids in keep. Chunks upserted by a run whose
// metadata was never persisted are only found through the listing.
func (ix *Indexer) staleIDs(ctx context.Context, documentID string, recorded, keep []string) []string {
	seen := make(map[string]struct{}, len(recorded)+len(keep))
	for _, id := range keep {
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(recorded))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range recorded {
		add(id)
	}

	indexed, err := ix.index.ListByDocument(ctx, documentID)
	if err != nil {
		log.Printf("Failed to list indexed chunks of document %s: %v", documentID, err)
		return ids
	}
	for _, c := range indexed {
		add(c.ID)
	}
	return ids
}

// embedAll embeds chunks with at most embedConcurrency requests in flight.
// Outcomes keep the chunk order.
func (ix *Indexer) embedAll(ctx context.Context, chunks []chunking.Chunk) []embedOutcome {
	out := make([]embedOutcome, len(chunks))

	var g errgroup.Group
	g.SetLimit(ix.embedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			out[i] = ix.embed(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (ix *Indexer) embed(ctx context.Context, c chunking.Chunk) embedOutcome {
	if ix.embedder == nil || strings.TrimSpace(c.Text) == "" {
		return embedOutcome{status: domain.EmbeddingStatusSkipped}
	}

	vector, err := ix.embedder.GenerateEmbedding(ctx, c.Text)
	if err != nil {
		log.Printf("Failed to embed chunk %d of document %s: %v", c.ChunkIndex, c.SourceDocumentID, err)
		return embedOutcome{status: domain.EmbeddingStatusFailed}
	}
	if len(vector) == 0 {
		return embedOutcome{status: domain.EmbeddingStatusSkipped}
	}
	return embedOutcome{vector: vector, status: domain.EmbeddingStatusEmbedded}
}

func (ix *Indexer) countTokens(id, text string) int {
	var n int
	if ix.tokens != nil {
		n = ix.tokens.Count(text)
	} else {
		n = tokens.Estimate(text)
	}
	if ix.maxInputTokens > 0 && n > ix.maxInputTokens {
		log.Printf("Chunk %s has %d tokens, embedding input limit is %d", id, n, ix.maxInputTokens)
	}
	return n
}
