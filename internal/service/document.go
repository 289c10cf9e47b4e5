package service

import (
	"context"
	"log"
	"path"
	"strings"
	"time"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/pagination"
	"github.com/cloo-solutions/docindex/internal/storage"
	"github.com/cloo-solutions/docindex/internal/telemetry"
	"github.com/google/uuid"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, filter DocumentFilter, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Update(ctx context.Context, d *domain.Document) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
	MarkIndexed(ctx context.Context, id string, meta *domain.ChunkingMetadata) error
	Delete(ctx context.Context, id string) error
	ListStaleIDs(ctx context.Context, version, maxChars, overlapSegments int) ([]string, error)
}

// DocumentFilter narrows document listings. Empty fields match everything.
type DocumentFilter struct {
	Status   domain.DocumentStatus
	Category string
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// IndexJobRepositoryInterface defines the repository interface for index job persistence
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	HasActiveJob(ctx context.Context, documentID string) (bool, error)
}

// ObjectStorage is the object store holding uploaded document sources.
type ObjectStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	DeleteObject(ctx context.Context, key string) error
}

// ChunkRemover removes the indexed chunks of a document.
type ChunkRemover interface {
	Delete(ctx context.Context, documentID string, meta *domain.ChunkingMetadata) *DeleteResult
}

// ChunkReader lists the indexed chunks of a document.
type ChunkReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.IndexedChunk, error)
}

// StaleConfig identifies the chunking settings documents are compared against.
type StaleConfig struct {
	Version         int
	MaxChars        int
	OverlapSegments int
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles business logic for documents
type DocumentService struct {
	docs     DocumentRepositoryInterface
	jobs     IndexJobRepositoryInterface
	txRunner TxRunner
	chunks   ChunkRemover
	reader   ChunkReader
	objects  ObjectStorage
	stale    StaleConfig
	uuidGen  UUIDGenerator
	now      func() time.Time
}

// DocumentServiceOption configures a DocumentService.
type DocumentServiceOption func(*DocumentService)

// WithObjectStorage enables uploaded document sources.
func WithObjectStorage(objects ObjectStorage) DocumentServiceOption {
	return func(s *DocumentService) {
		s.objects = objects
	}
}

// WithChunkReader enables listing indexed chunks.
func WithChunkReader(reader ChunkReader) DocumentServiceOption {
	return func(s *DocumentService) {
		s.reader = reader
	}
}

// WithUUIDGenerator overrides id generation.
func WithUUIDGenerator(gen UUIDGenerator) DocumentServiceOption {
	return func(s *DocumentService) {
		s.uuidGen = gen
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) DocumentServiceOption {
	return func(s *DocumentService) {
		s.now = now
	}
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docs DocumentRepositoryInterface,
	jobs IndexJobRepositoryInterface,
	txRunner TxRunner,
	chunks ChunkRemover,
	stale StaleConfig,
	opts ...DocumentServiceOption,
) *DocumentService {
	s := &DocumentService{
		docs:     docs,
		jobs:     jobs,
		txRunner: txRunner,
		chunks:   chunks,
		stale:    stale,
		uuidGen:  &DefaultUUIDGenerator{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput represents the input for creating a document
type CreateInput struct {
	Title       string
	Category    string
	Description string
	Body        string
	SourceKey   string
	ContentType string
}

// UpdateContentInput replaces the content of a document
type UpdateContentInput struct {
	DocumentID  string
	Title       string
	Category    string
	Description string
	Body        string
	SourceKey   string
	ContentType string
}

type ListDocumentsInput struct {
	Status   domain.DocumentStatus
	Category string
	Cursor   string
	Limit    int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// UploadTarget is where a client uploads a document source.
type UploadTarget struct {
	Key       string    `json:"source_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
	uploadURLTTL     = 15 * time.Minute
)

// Create stores a new document and queues its first index job
func (s *DocumentService) Create(ctx context.Context, input CreateInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := s.now()
	doc := domain.NewDocument(s.uuidGen.NewString(), input.Title, input.Category, input.Description, now)
	doc.Body = input.Body
	doc.SourceKey = input.SourceKey
	doc.ContentType = input.ContentType

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, validationError(err)
	}

	if err := s.checkSource(ctx, doc); err != nil {
		return nil, err
	}

	job := s.newJob(doc.ID, now)
	err := s.withTx(ctx, func(docs DocumentRepositoryInterface, jobs IndexJobRepositoryInterface) error {
		if err := docs.Create(ctx, doc); err != nil {
			return err
		}
		return jobs.Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// InitUpload reserves an object key and returns a presigned upload URL for it
func (s *DocumentService) InitUpload(ctx context.Context, filename, contentType string) (*UploadTarget, error) {
	if s.objects == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "source"
	}
	key := "documents/" + s.uuidGen.NewString() + "/" + name

	url, err := s.objects.GenerateUploadURL(ctx, key, contentType)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "storage operation failed", err)
	}

	return &UploadTarget{
		Key:       key,
		UploadURL: url,
		ExpiresAt: s.now().Add(uploadURLTTL),
	}, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetByID", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.docs.GetByID(ctx, id)
}

// List returns one page of documents, newest first
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	if input.Status != "" && !domain.IsValidDocumentStatus(input.Status) {
		return nil, domain.ErrInvalidDocumentStatus
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	result, err := s.docs.ListWithCursor(ctx, DocumentFilter{
		Status:   input.Status,
		Category: input.Category,
	}, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// UpdateContent replaces the document content and queues a new index job.
// Empty metadata fields keep their current value.
func (s *DocumentService) UpdateContent(ctx context.Context, input UpdateContentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.UpdateContent", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "update",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		doc.Title = input.Title
	}
	if input.Category != "" {
		doc.Category = input.Category
	}
	if input.Description != "" {
		doc.Description = input.Description
	}
	doc.Body = input.Body
	doc.SourceKey = input.SourceKey
	doc.ContentType = input.ContentType
	doc.Status = domain.DocumentStatusPending
	doc.Error = ""
	doc.UpdatedAt = s.now()

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, validationError(err)
	}
	if err := s.checkSource(ctx, doc); err != nil {
		return nil, err
	}

	job := s.newJob(doc.ID, doc.UpdatedAt)
	err = s.withTx(ctx, func(docs DocumentRepositoryInterface, jobs IndexJobRepositoryInterface) error {
		if err := docs.Update(ctx, doc); err != nil {
			return err
		}
		return jobs.Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// Reindex queues an index job for an existing document
func (s *DocumentService) Reindex(ctx context.Context, id string) (*domain.IndexJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Reindex", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "reindex",
	})
	defer span.End()

	if _, err := s.docs.GetByID(ctx, id); err != nil {
		return nil, err
	}

	active, err := s.jobs.HasActiveJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrDocumentBusy
	}

	job := s.newJob(id, s.now())
	if err := s.jobs.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, err
	}
	return job, nil
}

// Delete removes a document with its chunks and stored source. Index and
// storage cleanup are best-effort.
func (s *DocumentService) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Deleted: []string{}, Failed: []string{}}
	if s.chunks != nil {
		result = s.chunks.Delete(ctx, doc.ID, doc.Chunking)
	}

	if doc.HasStoredSource() && s.objects != nil {
		if err := s.objects.DeleteObject(ctx, doc.SourceKey); err != nil {
			log.Printf("Failed to delete source object %s: %v", doc.SourceKey, err)
		}
	}

	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		span.SetError(err)
		return nil, err
	}
	return result, nil
}

// ListChunks returns the indexed chunks of a document
func (s *DocumentService) ListChunks(ctx context.Context, id string) ([]domain.IndexedChunk, error) {
	if _, err := s.docs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if s.reader == nil {
		return []domain.IndexedChunk{}, nil
	}
	return s.reader.ListByDocument(ctx, id)
}

// EnqueueStale queues index jobs for documents indexed with other chunking
// settings than the current ones. Documents with an active job are skipped.
func (s *DocumentService) EnqueueStale(ctx context.Context) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.EnqueueStale", telemetry.SpanAttributes{
		Operation: "reindex_stale",
	})
	defer span.End()

	ids, err := s.docs.ListStaleIDs(ctx, s.stale.Version, s.stale.MaxChars, s.stale.OverlapSegments)
	if err != nil {
		return nil, err
	}

	queued := make([]string, 0, len(ids))
	for _, id := range ids {
		active, err := s.jobs.HasActiveJob(ctx, id)
		if err != nil {
			return queued, err
		}
		if active {
			continue
		}
		if err := s.jobs.Create(ctx, s.newJob(id, s.now())); err != nil {
			return queued, err
		}
		queued = append(queued, id)
	}

	span.SetData("queued", len(queued))
	return queued, nil
}

func (s *DocumentService) checkSource(ctx context.Context, doc *domain.Document) error {
	if !doc.HasStoredSource() {
		return nil
	}
	if s.objects == nil {
		return domain.ErrStorageNotConfigured
	}

	meta, err := s.objects.HeadObject(ctx, doc.SourceKey)
	if err != nil {
		log.Printf("Source object %s unavailable: %v", doc.SourceKey, err)
		return domain.ErrSourceNotUploaded
	}
	if doc.ContentType == "" {
		doc.ContentType = meta.ContentType
	}
	return nil
}

func (s *DocumentService) withTx(ctx context.Context, fn func(DocumentRepositoryInterface, IndexJobRepositoryInterface) error) error {
	if s.txRunner == nil {
		return fn(s.docs, s.jobs)
	}
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return fn(repos.Documents(), repos.IndexJobs())
	})
}

func (s *DocumentService) newJob(documentID string, createdAt time.Time) *domain.IndexJob {
	return domain.NewIndexJob(s.uuidGen.NewString(), documentID, domain.IndexJobStatusPending, 0, "", createdAt, nil)
}

func validationError(err error) error {
	if _, ok := err.(*domain.DomainError); ok {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
}
