package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIndexJobRepository is a mock implementation of IndexJobRepository
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IndexJob), args.Error(1)
}

func (m *MockIndexJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIndexJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockDocumentProcessor is a mock implementation of DocumentProcessor
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func pendingJob(id, documentID string, retries int32) *domain.IndexJob {
	return &domain.IndexJob{
		ID:         id,
		DocumentID: documentID,
		Status:     domain.IndexJobStatusPending,
		Retries:    retries,
	}
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
	// Immediate pass plus at least one tick.
	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestWorker_StopTwice(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, time.Hour)

	go worker.Start(context.Background())

	worker.Stop()
	assert.NotPanics(t, worker.Stop)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestIndexWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IndexJob{}, nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestIndexWorker_ProcessJobs_Success(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IndexJob{pendingJob("job-1", "doc-1", 0)}, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IndexJobStatusCompleted, "").Return(nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

func TestIndexWorker_ProcessJobs_FailureWithRetry(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IndexJob{pendingJob("job-1", "doc-1", 0)}, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return(errors.New("embedding failed"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IndexJobStatusPending, "retry 1: embedding failed").Return(nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

func TestIndexWorker_ProcessJobs_MaxRetriesExceeded(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IndexJob{pendingJob("job-1", "doc-1", 2)}, nil)
	mockProcessor.On("Process", mock.Anything, "doc-1").Return(errors.New("embedding failed"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IndexJobStatusFailed, "max retries exceeded: embedding failed").Return(nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

func TestIndexWorker_ProcessJobs_MissingDocumentID(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IndexJob{pendingJob("job-1", "", 0)}, nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IndexJobStatusFailed, "job has no document_id").Return(nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestIndexWorker_ProcessJobs_MultipleJobs(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	jobs := []*domain.IndexJob{
		pendingJob("job-1", "doc-1", 0),
		pendingJob("job-2", "doc-2", 0),
	}

	mockRepo.On("GetPendingJobs", mock.Anything).Return(jobs, nil)

	mockProcessor.On("Process", mock.Anything, "doc-1").Return(errors.New("boom"))
	mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IndexJobStatusPending, mock.Anything).Return(nil)

	mockProcessor.On("Process", mock.Anything, "doc-2").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IndexJobStatusCompleted, "").Return(nil)

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockProcessor.AssertExpectations(t)
}

func TestIndexWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockRepo := new(MockIndexJobRepository)
	mockProcessor := new(MockDocumentProcessor)

	mockRepo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewIndexWorker(mockRepo, mockProcessor)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockRepo.AssertExpectations(t)
}
