package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/docindex/internal/api"
	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]domain.ChunkSearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
	Mode  string `json:"mode" validate:"omitempty,oneof=hybrid semantic lexical"`
	Limit int    `json:"limit" validate:"min=0,max=50"`
}

type SearchHit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Category   string  `json:"category,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query: req.Query,
		Mode:  service.SearchMode(req.Mode),
		Limit: req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	hits := make([]SearchHit, len(results))
	for i, res := range results {
		hits[i] = SearchHit{
			ChunkID:    res.Chunk.ID,
			DocumentID: res.Chunk.DocumentID,
			ChunkIndex: res.Chunk.ChunkIndex,
			Title:      res.Chunk.Title,
			Category:   res.Chunk.Category,
			Content:    res.Chunk.Content,
			Score:      res.Score,
		}
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": hits,
	})
}
