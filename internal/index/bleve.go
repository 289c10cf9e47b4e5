// Package index provides a local full-text chunk index backed by bleve,
// used for offline indexing and as an alternative to the pgvector store.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/cloo-solutions/docindex/internal/domain"
)

const maxChunksPerDocument = 10000

// bleveChunk is the stored representation of a chunk. Vectors are not kept
// in the local index.
type bleveChunk struct {
	DocumentID      string `json:"document_id"`
	ChunkIndex      int    `json:"chunk_index"`
	ChunkCount      int    `json:"chunk_count"`
	Mode            string `json:"mode"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	Content         string `json:"content"`
	EmbeddingStatus string `json:"embedding_status"`
	TokenCount      int    `json:"token_count"`
	ChunkingVersion int    `json:"chunking_version"`
}

// BleveIndex stores chunks in a bleve index keyed by chunk id.
type BleveIndex struct {
	index bleve.Index
}

// Open opens the index at path, creating it when it does not exist.
func Open(path string) (*BleveIndex, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &BleveIndex{index: idx}, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	idx, err = bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	return &BleveIndex{index: idx}, nil
}

// NewMemOnly creates an in-memory index.
func NewMemOnly() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()
	text := bleve.NewTextFieldMapping()
	numeric := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("document_id", keyword)
	doc.AddFieldMappingsAt("mode", keyword)
	doc.AddFieldMappingsAt("category", keyword)
	doc.AddFieldMappingsAt("embedding_status", keyword)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("chunk_index", numeric)
	doc.AddFieldMappingsAt("chunk_count", numeric)
	doc.AddFieldMappingsAt("token_count", numeric)
	doc.AddFieldMappingsAt("chunking_version", numeric)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// UpsertChunk indexes chunk, replacing any entry with the same id.
func (b *BleveIndex) UpsertChunk(_ context.Context, chunk domain.IndexedChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk id is required")
	}
	doc := bleveChunk{
		DocumentID:      chunk.DocumentID,
		ChunkIndex:      chunk.ChunkIndex,
		ChunkCount:      chunk.ChunkCount,
		Mode:            chunk.Mode,
		Title:           chunk.Title,
		Category:        chunk.Category,
		Description:     chunk.Description,
		Content:         chunk.Content,
		EmbeddingStatus: string(chunk.EmbeddingStatus),
		TokenCount:      chunk.TokenCount,
		ChunkingVersion: chunk.ChunkingVersion,
	}
	if err := b.index.Index(chunk.ID, doc); err != nil {
		return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// DeleteChunk removes id. Deleting an unknown id succeeds.
func (b *BleveIndex) DeleteChunk(_ context.Context, id string) error {
	if err := b.index.Delete(id); err != nil {
		return fmt.Errorf("delete chunk %s: %w", id, err)
	}
	return nil
}

// Search runs a full-text match query over chunk fields.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]domain.ChunkSearchResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]domain.ChunkSearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, domain.ChunkSearchResult{
			Chunk: hitToChunk(hit),
			Score: hit.Score,
		})
	}
	return results, nil
}

// ListByDocument returns the chunks of documentID ordered by chunk index.
func (b *BleveIndex) ListByDocument(ctx context.Context, documentID string) ([]domain.IndexedChunk, error) {
	q := bleve.NewTermQuery(documentID)
	q.SetField("document_id")
	req := bleve.NewSearchRequest(q)
	req.Size = maxChunksPerDocument
	req.Fields = []string{"*"}
	req.SortBy([]string{"chunk_index"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", documentID, err)
	}

	chunks := make([]domain.IndexedChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunks = append(chunks, hitToChunk(hit))
	}
	return chunks, nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close releases the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func hitToChunk(hit *search.DocumentMatch) domain.IndexedChunk {
	chunk := domain.IndexedChunk{ID: hit.ID}
	chunk.DocumentID = stringField(hit, "document_id")
	chunk.Mode = stringField(hit, "mode")
	chunk.Title = stringField(hit, "title")
	chunk.Category = stringField(hit, "category")
	chunk.Description = stringField(hit, "description")
	chunk.Content = stringField(hit, "content")
	chunk.EmbeddingStatus = domain.EmbeddingStatus(stringField(hit, "embedding_status"))
	chunk.ChunkIndex = intField(hit, "chunk_index")
	chunk.ChunkCount = intField(hit, "chunk_count")
	chunk.TokenCount = intField(hit, "token_count")
	chunk.ChunkingVersion = intField(hit, "chunking_version")
	return chunk
}

func stringField(hit *search.DocumentMatch, name string) string {
	if v, ok := hit.Fields[name].(string); ok {
		return v
	}
	return ""
}

func intField(hit *search.DocumentMatch, name string) int {
	if v, ok := hit.Fields[name].(float64); ok {
		return int(v)
	}
	return 0
}
