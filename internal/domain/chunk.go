package domain

import "time"

// ChunkingMetadata is stored on a document after a successful index run.
// ChunkCount is what later runs use to find stale chunk ids.
type ChunkingMetadata struct {
	Version         int       `json:"version"`
	ChunkCount      int       `json:"chunk_count"`
	MaxChars        int       `json:"max_chars"`
	OverlapSegments int       `json:"overlap_segments"`
	Mode            string    `json:"mode"`
	LastIndexedAt   time.Time `json:"last_indexed_at"`
}

// PreviousChunkCount returns the chunk count of the last index run. Documents
// without metadata were indexed as a single entry under the bare id.
func PreviousChunkCount(meta *ChunkingMetadata) int {
	if meta == nil || meta.ChunkCount <= 0 {
		return 1
	}
	return meta.ChunkCount
}

// EmbeddingStatus records what happened to a chunk's vector.
type EmbeddingStatus string

const (
	EmbeddingStatusEmbedded EmbeddingStatus = "embedded"
	EmbeddingStatusSkipped  EmbeddingStatus = "skipped"
	EmbeddingStatusFailed   EmbeddingStatus = "failed"
)

// IndexedChunk is one entry of the search index. Document level fields are
// copied onto every chunk so each one can be retrieved on its own.
type IndexedChunk struct {
	ID              string
	DocumentID      string
	ChunkIndex      int
	ChunkCount      int
	Mode            string
	Title           string
	Category        string
	Description     string
	Content         string
	Embedding       []float32
	EmbeddingStatus EmbeddingStatus
	TokenCount      int
	ChunkingVersion int
	UpdatedAt       time.Time
}

// ChunkSearchResult is a chunk matched by a search query.
type ChunkSearchResult struct {
	Chunk IndexedChunk
	Score float64
}
