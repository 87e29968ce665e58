package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/dv360-adoption/internal/jobs"
	"github.com/google/uuid"
)

// Queue is an in-memory run queue backed by a buffered channel.
// Runs are not retried: a failed run is recorded as failed and the caller may resubmit.
type Queue struct {
	runChan     chan *jobs.IngestionRun
	closeChan   chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	store       jobs.RunStore
	workerCount int
	closed      bool
}

// NewQueue creates a new in-memory run queue.
// bufferSize determines how many runs can be queued before PublishRun blocks.
func NewQueue(bufferSize, workerCount int, store jobs.RunStore) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Queue{
		runChan:     make(chan *jobs.IngestionRun, bufferSize),
		closeChan:   make(chan struct{}),
		store:       store,
		workerCount: workerCount,
	}
}

// PublishRun implements the Publisher interface.
func (q *Queue) PublishRun(ctx context.Context, run *jobs.IngestionRun) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = jobs.RunStatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	select {
	case q.runChan <- run:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.RunHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.RunHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case run := <-q.runChan:
			if run == nil {
				return
			}

			q.processRun(ctx, run, handler)
		}
	}
}

func (q *Queue) processRun(ctx context.Context, run *jobs.IngestionRun, handler jobs.RunHandler) {
	run.Status = jobs.RunStatusRunning
	now := time.Now()
	run.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveRun(ctx, run)
	}

	err := handler(ctx, run)

	completedAt := time.Now()
	run.CompletedAt = &completedAt

	if err != nil {
		run.Status = jobs.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = jobs.RunStatusCompleted
		run.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveRun(ctx, run)
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight runs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
