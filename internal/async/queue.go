// Package async runs pipeline jobs on a bounded worker pool.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
)

// Job is one queued document.
type Job struct {
	JobID       uuid.UUID
	Blocks      []entity.OCRBlock
	Filename    string
	OCRTime     time.Duration
	SubmittedAt time.Time
}

// Queue accepts documents for asynchronous processing.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ProcessorQueue fans queued jobs out to a fixed set of workers, each
// running the full pipeline with a per-job timeout.
type ProcessorQueue struct {
	proc    *pipeline.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc *pipeline.Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					x, err := q.proc.Process(ctx, pipeline.ProcessRequest{
						JobID:    job.JobID,
						Blocks:   job.Blocks,
						Filename: job.Filename,
						OCRTime:  job.OCRTime,
					})
					cancel()

					if err != nil {
						q.logger.Error("async.job.failed",
							"worker_id", workerID, "job_id", job.JobID, "error", err)
						continue
					}
					q.logger.Info("async.job.done",
						"worker_id", workerID,
						"job_id", x.JobID,
						"needs_review", x.NeedsHumanReview,
						"wait_ms", time.Since(job.SubmittedAt).Milliseconds())
				}

				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue adds a job without blocking. A full queue is an error so the
// caller can shed load instead of stalling its request.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrQueueFull)
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("async.job.queued", "job_id", job.JobID, "filename", job.Filename)
		return nil
	default:
		q.logger.Warn("async.queue_full", "job_id", job.JobID)
		return common.NewAppError("QUEUE_FULL", "processing queue is full", common.ErrQueueFull)
	}
}

// Shutdown stops intake and drains in-flight jobs until ctx expires.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
