package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const threeParagraphs = "Alpha paragraph with some text.\n\n" +
	"Bravo paragraph with some text.\n\n" +
	"Charl paragraph with some text."

func smallChunkConfig() IndexerConfig {
	return IndexerConfig{
		Chunking: chunking.Config{
			MaxChars:        50,
			OverlapSegments: 0,
			Version:         1,
			Prefix:          "doc",
		},
		EmbedConcurrency: 2,
	}
}

func newTestIndexer(t *testing.T, cfg IndexerConfig, embedder Embedder, index ChunkIndex) *Indexer {
	t.Helper()
	ix, err := NewIndexer(cfg, embedder, index, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return ix
}

func TestNewIndexer_InvalidChunkingConfig(t *testing.T) {
	cfg := DefaultIndexerConfig()
	cfg.Chunking.MaxChars = 0

	_, err := NewIndexer(cfg, nil, newMemoryChunkIndex())

	var cfgErr *chunking.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "max_chars", cfgErr.Field)
}

func TestNewIndexer_RequiresIndex(t *testing.T) {
	_, err := NewIndexer(DefaultIndexerConfig(), nil, nil)
	assert.Error(t, err)
}

func TestIndexer_Index_SingleChunk(t *testing.T) {
	index := newMemoryChunkIndex()
	embedder := new(MockEmbedder)
	embedder.On("GenerateEmbedding", mock.Anything, "Hola.\n\nMundo.").Return([]float32{0.1, 0.2}, nil)

	ix := newTestIndexer(t, DefaultIndexerConfig(), embedder, index)

	result, err := ix.Index(context.Background(), IndexRequest{
		DocumentID: "d1",
		Title:      "Greeting",
		Category:   "misc",
		Text:       "Hola.\n\nMundo.",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, chunking.ModeGeneric, result.Mode)
	assert.Empty(t, result.StaleDeleted)

	chunk, ok := index.chunks["doc_d1"]
	require.True(t, ok)
	assert.Equal(t, "Hola.\n\nMundo.", chunk.Content)
	assert.Equal(t, "Greeting", chunk.Title)
	assert.Equal(t, "misc", chunk.Category)
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.Equal(t, 1, chunk.ChunkCount)
	assert.Equal(t, "generic", chunk.Mode)
	assert.Equal(t, []float32{0.1, 0.2}, chunk.Embedding)
	assert.Equal(t, domain.EmbeddingStatusEmbedded, chunk.EmbeddingStatus)
	assert.Equal(t, fixedNow, chunk.UpdatedAt)

	require.NotNil(t, result.Metadata)
	assert.Equal(t, domain.ChunkingMetadata{
		Version:         chunking.ChunkVersion,
		ChunkCount:      1,
		MaxChars:        chunking.DefaultMaxChars,
		OverlapSegments: chunking.DefaultOverlapSegments,
		Mode:            "generic",
		LastIndexedAt:   fixedNow,
	}, *result.Metadata)
	embedder.AssertExpectations(t)
}

func TestIndexer_Index_MultipleChunksKeepOrder(t *testing.T) {
	index := newMemoryChunkIndex()
	embedder := new(MockEmbedder)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1}, nil)

	ix := newTestIndexer(t, smallChunkConfig(), embedder, index)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d2", Text: threeParagraphs})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Equal(t, 3, result.ChunkCount)
	for i, status := range result.Chunks {
		assert.Equal(t, i, status.Index)
		assert.Equal(t, chunking.ChunkID("doc", "d2", i, 3), status.ID)
		assert.True(t, status.Upserted)
		assert.Greater(t, status.TokenCount, 0)
	}
	assert.Equal(t, "Alpha paragraph with some text.", index.chunks["doc_d2_chunk_000"].Content)
	assert.Equal(t, "Charl paragraph with some text.", index.chunks["doc_d2_chunk_002"].Content)

	// The legacy single-entry id is stale once the document has several chunks.
	assert.Equal(t, []string{"doc_d2"}, result.StaleDeleted)
}

func TestIndexer_Index_ShrinkDeletesStaleChunks(t *testing.T) {
	index := newMemoryChunkIndex()
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	result, err := ix.Index(context.Background(), IndexRequest{
		DocumentID: "d3",
		Text:       "Short text now.",
		Previous:   &domain.ChunkingMetadata{ChunkCount: 4},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{
		"doc_d3_chunk_000",
		"doc_d3_chunk_001",
		"doc_d3_chunk_002",
		"doc_d3_chunk_003",
	}, result.StaleDeleted)
	assert.Equal(t, []string{"doc_d3"}, index.upserted)
	assert.Equal(t, domain.EmbeddingStatusSkipped, index.chunks["doc_d3"].EmbeddingStatus)
}

func TestIndexer_Index_StaleDeleteFailureIsNotFatal(t *testing.T) {
	index := newMemoryChunkIndex()
	index.failDelete["doc_d4_chunk_002"] = true
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	result, err := ix.Index(context.Background(), IndexRequest{
		DocumentID: "d4",
		Text:       "Only one chunk.",
		Previous:   &domain.ChunkingMetadata{ChunkCount: 3},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"doc_d4_chunk_002"}, result.StaleFailed)
	assert.ElementsMatch(t, []string{"doc_d4_chunk_000", "doc_d4_chunk_001"}, result.StaleDeleted)
}

func TestIndexer_Index_EmptyTextSkipsEmbedding(t *testing.T) {
	index := newMemoryChunkIndex()
	embedder := new(MockEmbedder)
	ix := newTestIndexer(t, DefaultIndexerConfig(), embedder, index)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d5", Text: ""})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ChunkCount)

	chunk := index.chunks["doc_d5"]
	assert.Equal(t, "", chunk.Content)
	assert.Nil(t, chunk.Embedding)
	assert.Equal(t, domain.EmbeddingStatusSkipped, chunk.EmbeddingStatus)
	embedder.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestIndexer_Index_EmbeddingFailureKeepsChunk(t *testing.T) {
	index := newMemoryChunkIndex()
	embedder := new(MockEmbedder)
	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	ix := newTestIndexer(t, DefaultIndexerConfig(), embedder, index)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d6", Text: "Some content."})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.EmbeddingStatusFailed, result.Chunks[0].EmbeddingStatus)
	assert.Equal(t, "Some content.", index.chunks["doc_d6"].Content)
	assert.Nil(t, index.chunks["doc_d6"].Embedding)
}

func TestIndexer_Index_PartialUpsertFailure(t *testing.T) {
	index := newMemoryChunkIndex()
	index.failUpsert["doc_d7_chunk_001"] = true
	ix := newTestIndexer(t, smallChunkConfig(), nil, index)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d7", Text: threeParagraphs})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedChunks())
	assert.NotEmpty(t, result.Chunks[1].Error)
	assert.Contains(t, index.chunks, "doc_d7_chunk_000")
	assert.Contains(t, index.chunks, "doc_d7_chunk_002")
	assert.NotContains(t, index.chunks, "doc_d7_chunk_001")
}

func TestIndexer_Index_FAQMode(t *testing.T) {
	index := newMemoryChunkIndex()
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	result, err := ix.Index(context.Background(), IndexRequest{
		DocumentID: "faq",
		Text:       "1. ¿Qué es esto?\nEs una prueba.\n\n2. ¿Otra pregunta?\nOtra respuesta.",
	})

	require.NoError(t, err)
	assert.Equal(t, chunking.ModeFAQ, result.Mode)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, "faq", index.chunks["doc_faq_chunk_000"].Mode)
}

func TestIndexer_Index_RequiresDocumentID(t *testing.T) {
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, newMemoryChunkIndex())

	_, err := ix.Index(context.Background(), IndexRequest{Text: "x"})

	assert.ErrorIs(t, err, ErrMissingDocumentID)
}

func TestIndexer_Index_UsesTokenCounter(t *testing.T) {
	index := newMemoryChunkIndex()
	ix, err := NewIndexer(DefaultIndexerConfig(), nil, index, WithTokenCounter(constCounter(42)))
	require.NoError(t, err)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d8", Text: "Counted."})

	require.NoError(t, err)
	assert.Equal(t, 42, result.Chunks[0].TokenCount)
	assert.Equal(t, 42, index.chunks["doc_d8"].TokenCount)
}

func TestIndexer_Delete(t *testing.T) {
	tests := []struct {
		name string
		meta *domain.ChunkingMetadata
		want []string
	}{
		{name: "no metadata", meta: nil, want: []string{"doc_d9"}},
		{name: "single chunk", meta: &domain.ChunkingMetadata{ChunkCount: 1}, want: []string{"doc_d9"}},
		{
			name: "several chunks",
			meta: &domain.ChunkingMetadata{ChunkCount: 2},
			want: []string{"doc_d9_chunk_000", "doc_d9_chunk_001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := newMemoryChunkIndex()
			ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

			res := ix.Delete(context.Background(), "d9", tt.meta)

			assert.Equal(t, tt.want, res.Deleted)
			assert.Empty(t, res.Failed)
			assert.Equal(t, tt.want, index.deleted)
		})
	}
}

func TestIndexer_Delete_SwallowsErrors(t *testing.T) {
	index := newMemoryChunkIndex()
	index.failDelete["doc_d10_chunk_000"] = true
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	res := ix.Delete(context.Background(), "d10", &domain.ChunkingMetadata{ChunkCount: 2})

	assert.Equal(t, []string{"doc_d10_chunk_000"}, res.Failed)
	assert.Equal(t, []string{"doc_d10_chunk_001"}, res.Deleted)
}

func TestIndexer_Preview(t *testing.T) {
	ix := newTestIndexer(t, smallChunkConfig(), nil, newMemoryChunkIndex())

	chunks, mode := ix.Preview("p", threeParagraphs)

	assert.Equal(t, chunking.ModeGeneric, mode)
	assert.Len(t, chunks, 3)
}

type constCounter int

func (c constCounter) Count(string) int { return int(c) }

func TestIndexer_Index_RemovesChunksOfUnrecordedRun(t *testing.T) {
	index := newMemoryChunkIndex()
	index.failUpsert["doc_d11_chunk_001"] = true
	ix := newTestIndexer(t, smallChunkConfig(), nil, index)
	ctx := context.Background()

	failed, err := ix.Index(ctx, IndexRequest{DocumentID: "d11", Text: threeParagraphs})
	require.NoError(t, err)
	require.False(t, failed.Success)

	// The failed run's metadata is never persisted, so the caller still
	// passes no previous metadata.
	result, err := ix.Index(ctx, IndexRequest{DocumentID: "d11", Text: "Short."})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []string{"doc_d11_chunk_000", "doc_d11_chunk_002"}, result.StaleDeleted)

	chunks, err := index.ListByDocument(ctx, "d11")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc_d11", chunks[0].ID)

	res := ix.Delete(ctx, "d11", result.Metadata)
	assert.Equal(t, []string{"doc_d11"}, res.Deleted)
	assert.Empty(t, index.chunks)
}

func TestIndexer_Delete_RemovesUnrecordedChunks(t *testing.T) {
	index := newMemoryChunkIndex()
	index.chunks["doc_d12_chunk_004"] = domain.IndexedChunk{ID: "doc_d12_chunk_004", DocumentID: "d12", ChunkIndex: 4, ChunkCount: 5}
	index.chunks["doc_other"] = domain.IndexedChunk{ID: "doc_other", DocumentID: "other", ChunkCount: 1}
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	res := ix.Delete(context.Background(), "d12", &domain.ChunkingMetadata{ChunkCount: 2})

	assert.Equal(t, []string{"doc_d12_chunk_000", "doc_d12_chunk_001", "doc_d12_chunk_004"}, res.Deleted)
	assert.Contains(t, index.chunks, "doc_other")
	assert.NotContains(t, index.chunks, "doc_d12_chunk_004")
}

func TestIndexer_Index_ListFailureFallsBackToRecordedCount(t *testing.T) {
	index := newMemoryChunkIndex()
	index.failList = true
	ix := newTestIndexer(t, DefaultIndexerConfig(), nil, index)

	result, err := ix.Index(context.Background(), IndexRequest{
		DocumentID: "d13",
		Text:       "One chunk.",
		Previous:   &domain.ChunkingMetadata{ChunkCount: 2},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"doc_d13_chunk_000", "doc_d13_chunk_001"}, result.StaleDeleted)
}

func TestIndexer_Index_EmptyVectorIsSkipped(t *testing.T) {
	index := newMemoryChunkIndex()
	embedder := new(MockEmbedder)
	embedder.On("GenerateEmbedding", mock.Anything, "Nothing to embed here.").Return([]float32{}, nil)
	ix := newTestIndexer(t, DefaultIndexerConfig(), embedder, index)

	result, err := ix.Index(context.Background(), IndexRequest{DocumentID: "d14", Text: "Nothing to embed here."})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.EmbeddingStatusSkipped, result.Chunks[0].EmbeddingStatus)
	assert.Equal(t, domain.EmbeddingStatusSkipped, index.chunks["doc_d14"].EmbeddingStatus)
	assert.Nil(t, index.chunks["doc_d14"].Embedding)
	embedder.AssertExpectations(t)
}
