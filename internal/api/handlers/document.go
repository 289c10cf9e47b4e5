package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/docindex/internal/api"
	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.Document, error)
	InitUpload(ctx context.Context, filename, contentType string) (*service.UploadTarget, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	UpdateContent(ctx context.Context, input service.UpdateContentInput) (*domain.Document, error)
	Reindex(ctx context.Context, id string) (*domain.IndexJob, error)
	Delete(ctx context.Context, id string) (*service.DeleteResult, error)
	ListChunks(ctx context.Context, id string) ([]domain.IndexedChunk, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Category    string `json:"category" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
	Body        string `json:"body" validate:"required_without=SourceKey"`
	SourceKey   string `json:"source_key" validate:"required_without=Body"`
	ContentType string `json:"content_type"`
}

type UpdateContentRequest struct {
	Title       string `json:"title" validate:"max=500"`
	Category    string `json:"category" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
	Body        string `json:"body" validate:"required_without=SourceKey"`
	SourceKey   string `json:"source_key" validate:"required_without=Body"`
	ContentType string `json:"content_type"`
}

type InitUploadRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type"`
}

type DocumentResponse struct {
	ID          string                   `json:"id"`
	Title       string                   `json:"title"`
	Category    string                   `json:"category"`
	Description string                   `json:"description"`
	ContentType string                   `json:"content_type,omitempty"`
	SourceKey   string                   `json:"source_key,omitempty"`
	Status      string                   `json:"status"`
	Error       string                   `json:"error,omitempty"`
	Chunking    *domain.ChunkingMetadata `json:"chunking,omitempty"`
	CreatedAt   string                   `json:"created_at"`
	UpdatedAt   string                   `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Title:       d.Title,
		Category:    d.Category,
		Description: d.Description,
		ContentType: d.ContentType,
		SourceKey:   d.SourceKey,
		Status:      string(d.Status),
		Error:       d.Error,
		Chunking:    d.Chunking,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type JobResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type ChunkResponse struct {
	ID              string `json:"id"`
	ChunkIndex      int    `json:"chunk_index"`
	ChunkCount      int    `json:"chunk_count"`
	Mode            string `json:"mode"`
	Content         string `json:"content"`
	EmbeddingStatus string `json:"embedding_status"`
	TokenCount      int    `json:"token_count"`
	ChunkingVersion int    `json:"chunking_version"`
	UpdatedAt       string `json:"updated_at"`
}

func chunkToResponse(c domain.IndexedChunk) ChunkResponse {
	return ChunkResponse{
		ID:              c.ID,
		ChunkIndex:      c.ChunkIndex,
		ChunkCount:      c.ChunkCount,
		Mode:            c.Mode,
		Content:         c.Content,
		EmbeddingStatus: string(c.EmbeddingStatus),
		TokenCount:      c.TokenCount,
		ChunkingVersion: c.ChunkingVersion,
		UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	doc, err := h.svc.Create(r.Context(), service.CreateInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Body:        req.Body,
		SourceKey:   req.SourceKey,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req InitUploadRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	target, err := h.svc.InitUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, target)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	output, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		Status:   domain.DocumentStatus(q.Get("status")),
		Category: q.Get("category"),
		Cursor:   q.Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *DocumentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateContentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	doc, err := h.svc.UpdateContent(r.Context(), service.UpdateContentInput{
		DocumentID:  id,
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Body:        req.Body,
		SourceKey:   req.SourceKey,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.Reindex(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, JobResponse{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	result, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *DocumentHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	chunks, err := h.svc.ListChunks(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]ChunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkToResponse(c)
	}

	api.Success(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"chunks":      items,
	})
}
