package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/riksbank-cache/internal/apperror"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

var errNoJobRepository = errors.New("job queue not configured")

// Enqueue queues a fetch of [From, To] unless it is already cached. An
// active job for the same range is returned instead of a new one.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResponse, error) {
	if err := req.Validate(s.Today()); err != nil {
		return nil, err
	}
	if s.jobRepo == nil {
		return nil, errNoJobRepository
	}

	cached, err := s.IsCached(ctx, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("check range: %w", err)
	}
	if cached {
		return &EnqueueResponse{Cached: true}, nil
	}

	names := make([]string, len(s.currencies))
	for i, c := range s.currencies {
		names[i] = c.String()
	}

	active, err := s.findActive(ctx, names, req)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return &EnqueueResponse{Job: active}, nil
	}

	j := &job.Job{
		Currencies: names,
		StartDate:  req.From,
		EndDate:    req.To,
		Status:     job.StatusPending,
	}
	err = s.jobRepo.Create(ctx, j)
	if errors.Is(err, job.ErrActiveExists) {
		active, err := s.findActive(ctx, names, req)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return &EnqueueResponse{Job: active}, nil
		}
		return nil, apperror.New(apperror.Conflict, "fetch job for range is already queued")
	}
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify()
	}
	return &EnqueueResponse{Job: j}, nil
}

func (s *Service) findActive(ctx context.Context, names []string, req EnqueueRequest) (*job.Job, error) {
	j, err := s.jobRepo.FindActive(ctx, job.JoinCurrencies(names),
		req.From.Format(series.DateFormat), req.To.Format(series.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return j, nil
}

// Process implements job.Processor. It fetches the job's range and marks the
// job completed or failed.
func (s *Service) Process(ctx context.Context, j *job.Job) error {
	if s.jobRepo == nil {
		return errNoJobRepository
	}

	cs := make([]rate.Currency, 0, len(j.Currencies))
	for _, name := range j.Currencies {
		c, err := rate.ParseCurrency(name)
		if err != nil {
			return s.failJob(ctx, j, err)
		}
		cs = append(cs, c)
	}

	res, err := s.fetch(ctx, cs, j.StartDate, j.EndDate)
	if err != nil {
		return s.failJob(ctx, j, err)
	}

	slog.Info("fetch job completed", "job", j.ID, "range", res.RangeKey,
		"cached", res.Cached(), "already_cached", res.AlreadyCached)

	j.Status = job.StatusCompleted
	j.RecordsCount = res.Cached()
	return s.updateJob(ctx, j)
}

func (s *Service) failJob(ctx context.Context, j *job.Job, err error) error {
	j.Status = job.StatusFailed
	j.Error = err.Error()
	if uerr := s.updateJob(ctx, j); uerr != nil {
		slog.Error("mark job failed", "job", j.ID, "error", uerr)
	}
	return err
}

// updateJob records the outcome even when ctx was cancelled mid-fetch.
func (s *Service) updateJob(ctx context.Context, j *job.Job) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.jobRepo.Update(ctx, j)
}

// ObserveJob records a finished job. It has the shape of job.Observer.
func (s *Service) ObserveJob(j *job.Job, _ error, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveJob(string(j.Status), elapsed)
	}
}
