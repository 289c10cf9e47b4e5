package handlers

import (
	"net/http"

	"github.com/cloo-solutions/docindex/internal/api"
	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/tokens"
)

// ChunkPreviewer splits text with the server's chunking settings.
type ChunkPreviewer interface {
	Config() chunking.Config
	Preview(documentID, text string) ([]chunking.Chunk, chunking.Mode)
}

type ChunkHandler struct {
	previewer ChunkPreviewer
}

func NewChunkHandler(previewer ChunkPreviewer) *ChunkHandler {
	return &ChunkHandler{previewer: previewer}
}

type PreviewRequest struct {
	DocumentID      string `json:"document_id" validate:"max=200"`
	Text            string `json:"text" validate:"required"`
	MaxChars        *int   `json:"max_chars,omitempty" validate:"omitempty,min=1,max=100000"`
	OverlapSegments *int   `json:"overlap_segments,omitempty" validate:"omitempty,min=0,max=100"`
}

type PreviewChunk struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Chars      int    `json:"chars"`
	Tokens     int    `json:"tokens"`
}

type PreviewResponse struct {
	Mode            chunking.Mode  `json:"mode"`
	ChunkCount      int            `json:"chunk_count"`
	MaxChars        int            `json:"max_chars"`
	OverlapSegments int            `json:"overlap_segments"`
	Chunks          []PreviewChunk `json:"chunks"`
}

// Preview returns the chunk plan for a text without indexing anything.
// max_chars and overlap_segments override the server settings for this
// request only.
func (h *ChunkHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	documentID := req.DocumentID
	if documentID == "" {
		documentID = "preview"
	}

	cfg := h.previewer.Config()
	previewer := h.previewer
	if req.MaxChars != nil || req.OverlapSegments != nil {
		if req.MaxChars != nil {
			cfg.MaxChars = *req.MaxChars
		}
		if req.OverlapSegments != nil {
			cfg.OverlapSegments = *req.OverlapSegments
		}
		chunker, err := chunking.New(cfg)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		previewer = chunkerPreviewer{chunker}
	}

	chunks, mode := previewer.Preview(documentID, req.Text)

	out := PreviewResponse{
		Mode:            mode,
		ChunkCount:      len(chunks),
		MaxChars:        cfg.MaxChars,
		OverlapSegments: cfg.OverlapSegments,
		Chunks:          make([]PreviewChunk, len(chunks)),
	}
	for i, c := range chunks {
		out.Chunks[i] = PreviewChunk{
			ID:         c.ID(cfg.Prefix),
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Chars:      len([]rune(c.Text)),
			Tokens:     tokens.Estimate(c.Text),
		}
	}

	api.Success(w, http.StatusOK, out)
}

type chunkerPreviewer struct {
	chunker *chunking.Chunker
}

func (p chunkerPreviewer) Config() chunking.Config {
	return p.chunker.Config()
}

func (p chunkerPreviewer) Preview(documentID, text string) ([]chunking.Chunk, chunking.Mode) {
	return p.chunker.Chunks(documentID, text)
}
