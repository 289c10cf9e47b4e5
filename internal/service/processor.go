package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/telemetry"
)

// ErrPartialIndex is returned when some chunks of a document were not upserted.
var ErrPartialIndex = errors.New("document partially indexed")

// ProcessorDocumentStore is the document persistence the processor needs.
type ProcessorDocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
	MarkIndexed(ctx context.Context, id string, meta *domain.ChunkingMetadata) error
}

// DocumentIndexer indexes the text of one document.
type DocumentIndexer interface {
	Index(ctx context.Context, req IndexRequest) (*IndexResult, error)
}

// ObjectReader reads stored document sources.
type ObjectReader interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor turns raw document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// EventPublisher announces index outcomes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.IndexEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.IndexEvent) error { return nil }

// DocumentProcessor runs the indexing pipeline for a stored document.
type DocumentProcessor struct {
	docs      ProcessorDocumentStore
	indexer   DocumentIndexer
	extractor TextExtractor
	objects   ObjectReader
	events    EventPublisher
	now       func() time.Time
}

// ProcessorOption configures a DocumentProcessor.
type ProcessorOption func(*DocumentProcessor)

// WithObjectReader enables documents whose source lives in object storage.
func WithObjectReader(r ObjectReader) ProcessorOption {
	return func(p *DocumentProcessor) {
		if r != nil {
			p.objects = r
		}
	}
}

// WithEventPublisher sets where index events are sent.
func WithEventPublisher(e EventPublisher) ProcessorOption {
	return func(p *DocumentProcessor) {
		if e != nil {
			p.events = e
		}
	}
}

// NewDocumentProcessor creates a DocumentProcessor.
func NewDocumentProcessor(docs ProcessorDocumentStore, indexer DocumentIndexer, extractor TextExtractor, opts ...ProcessorOption) *DocumentProcessor {
	p := &DocumentProcessor{
		docs:      docs,
		indexer:   indexer,
		extractor: extractor,
		events:    noopPublisher{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process indexes a document and records the outcome on it. A returned error
// means the document ended in the error status and the job should be retried.
func (p *DocumentProcessor) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentProcessor.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process",
	})
	defer span.End()

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		span.SetError(err)
		return err
	}

	if err := p.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	text, err := p.acquireText(ctx, doc)
	if err != nil {
		err = fmt.Errorf("extract document %s: %w", doc.ID, err)
		p.fail(ctx, doc.ID, err.Error(), nil)
		span.SetError(err)
		return err
	}

	result, err := p.indexer.Index(ctx, IndexRequest{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Category:    doc.Category,
		Description: doc.Description,
		Text:        text,
		Previous:    doc.Chunking,
	})
	if err != nil {
		err = fmt.Errorf("index document %s: %w", doc.ID, err)
		p.fail(ctx, doc.ID, err.Error(), nil)
		span.SetError(err)
		return err
	}

	if !result.Success {
		err = fmt.Errorf("%w: %d of %d chunks failed", ErrPartialIndex, result.FailedChunks(), result.ChunkCount)
		p.fail(ctx, doc.ID, err.Error(), result)
		span.SetError(err)
		return err
	}

	if err := p.docs.MarkIndexed(ctx, doc.ID, result.Metadata); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to store chunking metadata: %w", err)
	}

	p.publish(ctx, domain.IndexEvent{
		DocumentID: doc.ID,
		Status:     domain.DocumentStatusIndexed,
		ChunkCount: result.ChunkCount,
		Mode:       string(result.Mode),
		OccurredAt: p.now(),
	})
	return nil
}

func (p *DocumentProcessor) acquireText(ctx context.Context, doc *domain.Document) (string, error) {
	if !doc.HasStoredSource() {
		return doc.Body, nil
	}
	if p.objects == nil {
		return "", domain.ErrStorageNotConfigured
	}

	data, err := p.objects.GetObject(ctx, doc.SourceKey)
	if err != nil {
		return "", err
	}
	return p.extractor.Extract(ctx, data, doc.ContentType)
}

func (p *DocumentProcessor) fail(ctx context.Context, documentID, reason string, result *IndexResult) {
	if err := p.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusError, reason); err != nil {
		log.Printf("Failed to mark document %s as errored: %v", documentID, err)
	}

	event := domain.IndexEvent{
		DocumentID: documentID,
		Status:     domain.DocumentStatusError,
		Error:      reason,
		OccurredAt: p.now(),
	}
	if result != nil {
		event.ChunkCount = result.ChunkCount
		event.Mode = string(result.Mode)
		event.FailedChunks = result.FailedChunks()
	}
	p.publish(ctx, event)
}

func (p *DocumentProcessor) publish(ctx context.Context, event domain.IndexEvent) {
	if err := p.events.Publish(ctx, event); err != nil {
		log.Printf("Failed to publish index event for %s: %v", event.DocumentID, err)
	}
}
