package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-alert-dispatch/internal/logging"
)

type Job interface{}

type ProcessFunc func(ctx context.Context, job Job) error

// WorkerPool runs jobs on a fixed number of goroutines. A panicking job is
// recovered and reported as an error so it cannot take down its siblings.
type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	processor  ProcessFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	logger     *slog.Logger
}

func NewWorkerPool(numWorkers int, bufferSize int, processor ProcessFunc) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
		processor:  processor,
		logger:     logging.Component(nil, "worker_pool"),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.run(ctx, job); err != nil {
				wp.logger.Warn("job failed", "worker_id", id, "error", err)
			}
		}
	}
}

func (wp *WorkerPool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return wp.processor(ctx, job)
}

// Submit queues a job. It returns false without queueing once ctx is done,
// so callers never block on a pool whose workers have already exited.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case wp.jobs <- job:
		return true
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobs)
	})
	wp.wg.Wait()
}
