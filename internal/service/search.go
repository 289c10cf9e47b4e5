package service

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/telemetry"
)

// SearchMode selects how chunks are matched.
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeLexical  SearchMode = "lexical"
)

const (
	defaultSearchLimit  = 10
	maxSearchLimit      = 50
	candidateMultiplier = 3

	rrfK           = 60
	semanticWeight = 1.0
	lexicalWeight  = 0.85
)

// ChunkSearcher queries the chunk index.
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.ChunkSearchResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]domain.ChunkSearchResult, error)
}

// SearchInput is a chunk search request.
type SearchInput struct {
	Query string
	Mode  SearchMode
	Limit int
}

// SearchService answers queries against indexed chunks.
type SearchService struct {
	searcher ChunkSearcher
	embedder Embedder
}

// NewSearchService creates a SearchService. Without an embedder every
// search runs lexically.
func NewSearchService(searcher ChunkSearcher, embedder Embedder) *SearchService {
	return &SearchService{searcher: searcher, embedder: embedder}
}

func normalizeSearchMode(mode SearchMode) SearchMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(SearchModeSemantic):
		return SearchModeSemantic
	case string(SearchModeLexical):
		return SearchModeLexical
	default:
		return SearchModeHybrid
	}
}

// Search returns the best matching chunks for a query.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]domain.ChunkSearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return []domain.ChunkSearchResult{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	mode := normalizeSearchMode(input.Mode)
	if s.embedder == nil {
		mode = SearchModeLexical
	}
	span.SetData("mode", string(mode))

	switch mode {
	case SearchModeLexical:
		return s.searcher.SearchText(ctx, query, limit)
	case SearchModeSemantic:
		vector, err := s.embedder.GenerateEmbedding(ctx, query)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return s.searcher.SearchSimilar(ctx, vector, limit)
	}

	candidates := limit * candidateMultiplier
	lexical, err := s.searcher.SearchText(ctx, query, candidates)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("Query embedding failed, falling back to lexical results: %v", err)
		return truncateResults(lexical, limit), nil
	}
	semantic, err := s.searcher.SearchSimilar(ctx, vector, candidates)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return fuseResults(semantic, lexical, limit), nil
}

// fuseResults merges ranked lists with reciprocal rank fusion.
func fuseResults(semantic, lexical []domain.ChunkSearchResult, limit int) []domain.ChunkSearchResult {
	scores := make(map[string]float64)
	chunks := make(map[string]domain.IndexedChunk)

	add := func(results []domain.ChunkSearchResult, weight float64) {
		for rank, r := range results {
			scores[r.Chunk.ID] += weight / float64(rrfK+rank+1)
			if _, ok := chunks[r.Chunk.ID]; !ok {
				chunks[r.Chunk.ID] = r.Chunk
			}
		}
	}
	add(semantic, semanticWeight)
	add(lexical, lexicalWeight)

	fused := make([]domain.ChunkSearchResult, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, domain.ChunkSearchResult{Chunk: chunks[id], Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Chunk.ID < fused[j].Chunk.ID
	})

	return truncateResults(fused, limit)
}

func truncateResults(results []domain.ChunkSearchResult, limit int) []domain.ChunkSearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
