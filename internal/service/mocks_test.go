package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/pagination"
	"github.com/cloo-solutions/docindex/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, filter DocumentFilter, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockDocumentRepository) MarkIndexed(ctx context.Context, id string, meta *domain.ChunkingMetadata) error {
	args := m.Called(ctx, id, meta)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListStaleIDs(ctx context.Context, version, maxChars, overlapSegments int) ([]string, error) {
	args := m.Called(ctx, version, maxChars, overlapSegments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockIndexJobRepository is a mock implementation of IndexJobRepositoryInterface
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockIndexJobRepository) HasActiveJob(ctx context.Context, documentID string) (bool, error) {
	args := m.Called(ctx, documentID)
	return args.Bool(0), args.Error(1)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockObjectStorage is a mock implementation of ObjectStorage and ObjectReader
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStorage) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectMetadata), args.Error(1)
}

func (m *MockObjectStorage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// memoryChunkIndex is an in-memory ChunkIndex that records calls.
type memoryChunkIndex struct {
	mu         sync.Mutex
	chunks     map[string]domain.IndexedChunk
	upserted   []string
	deleted    []string
	failUpsert map[string]bool
	failDelete map[string]bool
	failList   bool
}

func newMemoryChunkIndex() *memoryChunkIndex {
	return &memoryChunkIndex{
		chunks:     make(map[string]domain.IndexedChunk),
		failUpsert: make(map[string]bool),
		failDelete: make(map[string]bool),
	}
}

func (m *memoryChunkIndex) UpsertChunk(_ context.Context, chunk domain.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert[chunk.ID] {
		return fmt.Errorf("upsert %s refused", chunk.ID)
	}
	m.chunks[chunk.ID] = chunk
	m.upserted = append(m.upserted, chunk.ID)
	return nil
}

func (m *memoryChunkIndex) DeleteChunk(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[id] {
		return fmt.Errorf("delete %s refused", id)
	}
	delete(m.chunks, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memoryChunkIndex) ListByDocument(_ context.Context, documentID string) ([]domain.IndexedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, fmt.Errorf("list %s refused", documentID)
	}
	var out []domain.IndexedChunk
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkIndex != out[j].ChunkIndex {
			return out[i].ChunkIndex < out[j].ChunkIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type fixedUUIDGenerator struct {
	ids []string
	i   int
}

func (g *fixedUUIDGenerator) NewString() string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	return id
}

type recordingPublisher struct {
	events []domain.IndexEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.IndexEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}
