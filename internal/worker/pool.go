// Package worker provides the background pool that drains queued
// evaluation jobs so HTTP handlers can acknowledge runs immediately.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// DefaultQueueSize bounds the pending job queue when none is configured.
const DefaultQueueSize = 64

// Job is one unit of background work: an accepted run waiting for pipeline
// execution, carrying the raw test-case document it was created with.
type Job struct {
	RunID        string
	RunName      string
	SystemPrompt string
	Document     []byte
}

// Handler consumes jobs taken off the queue.
type Handler interface {
	ProcessRun(ctx context.Context, job Job)
}

// Pool is a fixed-size worker pool over a buffered channel queue. At least
// one worker runs between Start and Stop. A job picked up by a worker runs
// to completion; there is no cancellation of in-flight work.
type Pool struct {
	jobs    chan Job
	workers int
	logger  zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool sizes the queue and worker count, clamping both to sane minimums.
func NewPool(workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		logger:  logger.With().Str("component", "run_worker_pool").Logger(),
	}
}

// Start launches the workers against the handler. Each job is processed
// under a fresh background context so finishing work never depends on the
// HTTP request that queued it.
func (p *Pool) Start(handler Handler) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for job := range p.jobs {
				p.logger.Info().
					Int("worker", worker).
					Str("run_id", job.RunID).
					Msg("picked up run job")
				handler.ProcessRun(context.Background(), job)
			}
		}(i)
	}
	p.logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.jobs)).Msg("worker pool started")
}

// Enqueue queues a job, blocking while the queue is full. It must not be
// called after Stop.
func (p *Pool) Enqueue(job Job) {
	p.jobs <- job
}

// Stop closes the queue and waits for in-flight and queued jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
