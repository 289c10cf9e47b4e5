package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobProcessor drains one batch of queued work
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until stopped
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return NewNamedWorker("index", processor, pollInterval)
}

// NewNamedWorker creates a Worker whose log lines carry name
func NewNamedWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs one pass immediately, then polls every interval. It blocks
// until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	log.Printf("%s worker started with poll interval: %v", w.name, w.pollInterval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Error processing %s jobs: %v", w.name, err)
	}
}

// Stop signals the loop and waits for the current pass to finish. Safe to
// call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.doneChan
	log.Printf("%s worker shutdown complete", w.name)
}
