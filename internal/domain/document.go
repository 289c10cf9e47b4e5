package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the indexing state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusError      DocumentStatus = "error"
)

// Document is a source document whose text is chunked into the search index.
// Content comes either from Body or from the object stored at SourceKey.
type Document struct {
	ID          string
	Title       string
	Category    string
	Description string
	ContentType string
	SourceKey   string
	Body        string
	Status      DocumentStatus
	Error       string
	Chunking    *ChunkingMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a pending Document
func NewDocument(id, title, category, description string, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		Title:       title,
		Category:    category,
		Description: description,
		Status:      DocumentStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// HasStoredSource reports whether the document content lives in object storage.
func (d *Document) HasStoredSource() bool {
	return d.SourceKey != ""
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.Body == "" && d.SourceKey == "" {
		return ErrMissingContent
	}

	if !IsValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// IsValidDocumentStatus checks if a DocumentStatus is valid
func IsValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusIndexed, DocumentStatusError:
		return true
	}
	return false
}
