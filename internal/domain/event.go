package domain

import "time"

// IndexEvent announces the outcome of processing a document.
type IndexEvent struct {
	DocumentID   string         `json:"document_id"`
	Status       DocumentStatus `json:"status"`
	ChunkCount   int            `json:"chunk_count"`
	Mode         string         `json:"mode,omitempty"`
	FailedChunks int            `json:"failed_chunks"`
	Error        string         `json:"error,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
