package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Processor handles execution of a claimed job. It is expected to record the
// job's final status itself.
type Processor interface {
	Process(ctx context.Context, j *Job) error
}

// Observer is told about every job a worker finishes.
type Observer func(j *Job, err error, elapsed time.Duration)

type PoolOption func(*WorkerPool)

// WithPollInterval sets how often idle workers look for pending jobs
// without being notified.
func WithPollInterval(d time.Duration) PoolOption {
	return func(wp *WorkerPool) { wp.pollInterval = d }
}

// WithJobTimeout bounds a single Process call. Zero means no bound.
func WithJobTimeout(d time.Duration) PoolOption {
	return func(wp *WorkerPool) { wp.jobTimeout = d }
}

func WithObserver(fn Observer) PoolOption {
	return func(wp *WorkerPool) { wp.observe = fn }
}

// WorkerPool runs a fixed number of goroutines that claim and process pending
// fetch jobs.
type WorkerPool struct {
	repo         Repository
	processor    Processor
	workers      int
	notify       chan struct{}
	pollInterval time.Duration
	jobTimeout   time.Duration
	observe      Observer
}

func NewWorkerPool(repo Repository, processor Processor, workers int, opts ...PoolOption) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	wp := &WorkerPool{
		repo:         repo,
		processor:    processor,
		workers:      workers,
		notify:       make(chan struct{}, 1),
		pollInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Notify wakes idle workers to check for pending jobs. Non-blocking.
func (wp *WorkerPool) Notify() {
	select {
	case wp.notify <- struct{}{}:
	default:
	}
}

// Run starts worker goroutines and blocks until ctx is cancelled and all
// workers have drained.
func (wp *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range wp.workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wp.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (wp *WorkerPool) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		wp.drain(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-wp.notify:
		case <-ticker.C:
		}
	}
}

func (wp *WorkerPool) drain(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		j, err := wp.repo.ClaimPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // shutting down
			}
			slog.Error("worker: claim pending", "worker", id, "error", err)
			return
		}
		if j == nil {
			return
		}

		slog.Info("worker: processing job", "worker", id, "job", j.ID,
			"currencies", j.CurrencyList(),
			"from", j.StartDate.Format(time.DateOnly), "to", j.EndDate.Format(time.DateOnly))

		start := time.Now()
		err = wp.process(ctx, j)
		if err != nil {
			slog.Error("worker: process job", "worker", id, "job", j.ID, "error", err)
		}
		if wp.observe != nil {
			wp.observe(j, err, time.Since(start))
		}
	}
}

// process runs the processor, recording a panic as a failed job.
func (wp *WorkerPool) process(ctx context.Context, j *Job) (err error) {
	if wp.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			j.Status = StatusFailed
			j.Error = err.Error()
			if uerr := wp.repo.Update(context.WithoutCancel(ctx), j); uerr != nil {
				slog.Error("worker: mark panicked job failed", "job", j.ID, "error", uerr)
			}
		}
	}()

	return wp.processor.Process(ctx, j)
}
