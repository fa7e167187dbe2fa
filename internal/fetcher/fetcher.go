// Package fetcher downloads Riksbank exports for a date range and turns them
// into per-day cache entries, either directly or through the job queue.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/metrics"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

// Exporter downloads the raw export of one currency over [from, to].
type Exporter interface {
	Export(ctx context.Context, currency rate.Currency, from, to time.Time) (string, error)
}

// Result describes one FetchRange call.
type Result struct {
	RangeKey      string         `json:"rangeKey"`
	AlreadyCached bool           `json:"alreadyCached"`
	Summaries     []rate.Summary `json:"summaries,omitempty"`
}

// Cached returns the number of days handed to the store.
func (r *Result) Cached() int64 {
	var n int64
	for _, s := range r.Summaries {
		n += int64(s.Cached)
	}
	return n
}

// Pending reports whether any currency skipped a day that is not yet
// published. Such a range is left unmarked so a later fetch can complete it.
func (r *Result) Pending() bool {
	for _, s := range r.Summaries {
		if len(s.Unpublished) > 0 {
			return true
		}
	}
	return false
}

type Service struct {
	store      rate.Store
	source     Exporter
	jobRepo    job.Repository
	currencies []rate.Currency
	loc        *time.Location
	now        func() time.Time
	metrics    *metrics.Metrics
	notify     func()
	group      singleflight.Group
}

type Option func(*Service)

// WithCurrencies sets the currencies fetched for every range, in order.
func WithCurrencies(cs ...rate.Currency) Option {
	return func(s *Service) { s.currencies = cs }
}

// WithLocation sets the zone the publication cutoff is read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithJobRepository enables Enqueue and Process.
func WithJobRepository(r job.Repository) Option {
	return func(s *Service) { s.jobRepo = r }
}

func NewService(store rate.Store, source Exporter, opts ...Option) *Service {
	s := &Service{
		store:      store,
		source:     source,
		currencies: rate.Supported,
		loc:        time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotify sets a callback invoked when a new pending job is created.
func (s *Service) SetNotify(fn func()) { s.notify = fn }

func (s *Service) Currencies() []rate.Currency { return s.currencies }

// Today returns the current calendar date in the service's location.
func (s *Service) Today() time.Time { return series.Day(s.now().In(s.loc)) }

// FetchRange caches every configured currency over [from, to] unless the
// range is already marked as cached. The marker is only written once every
// currency has been cached with no unpublished day left. Concurrent calls for
// the same range share one fetch, which is not cancelled with the caller that
// started it.
func (s *Service) FetchRange(ctx context.Context, from, to time.Time) (*Result, error) {
	if err := (EnqueueRequest{From: from, To: to}).Validate(s.Today()); err != nil {
		return nil, err
	}
	return s.fetch(ctx, s.currencies, from, to)
}

func (s *Service) fetch(ctx context.Context, cs []rate.Currency, from, to time.Time) (*Result, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("no currencies to fetch")
	}
	fromKey, toKey := from.Format(series.DateFormat), to.Format(series.DateFormat)
	key := rate.RangeKey(cs, fromKey, toKey)

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetchOnce(shared, key, cs, from, to)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Shared {
		slog.Debug("joined in-flight fetch", "range", key)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Val.(*Result), nil
}

func (s *Service) fetchOnce(ctx context.Context, key string, cs []rate.Currency, from, to time.Time) (*Result, error) {
	res := &Result{RangeKey: key}

	if _, ok, err := s.store.Peek(ctx, key, false); err != nil {
		return nil, fmt.Errorf("check range %s: %w", key, err)
	} else if ok {
		slog.Info("currency range already cached, skipping", "range", key)
		if s.metrics != nil {
			s.metrics.RangeHitsTotal.Inc()
		}
		res.AlreadyCached = true
		return res, nil
	}

	slog.Info("currency range missing from cache, fetching", "range", key)
	cc := rate.NewCurrencyCache(s.store, rate.AnchorAt(to, s.now().In(s.loc)))

	for _, c := range cs {
		payload, err := s.source.Export(ctx, c, from, to)
		if err != nil {
			s.observeExport(c, "upstream_error")
			return nil, fmt.Errorf("fetch %s: %w", c, err)
		}

		sum, err := cc.CacheAllDates(ctx, payload, c)
		if err != nil {
			s.observeExport(c, "rejected")
			return nil, fmt.Errorf("cache %s: %w", c, err)
		}
		s.observeSummary(sum)
		res.Summaries = append(res.Summaries, sum)
	}

	if res.Pending() {
		slog.Info("range has unpublished days, leaving it unmarked", "range", key, "days", res.Cached())
		return res, nil
	}
	if err := s.store.Add(ctx, key, true); err != nil {
		return nil, fmt.Errorf("mark range %s: %w", key, err)
	}
	slog.Info("cached currency range", "range", key, "days", res.Cached())
	return res, nil
}

// IsCached reports whether the configured currencies are marked as cached
// over [from, to].
func (s *Service) IsCached(ctx context.Context, from, to time.Time) (bool, error) {
	key := rate.RangeKey(s.currencies, from.Format(series.DateFormat), to.Format(series.DateFormat))
	_, ok, err := s.store.Peek(ctx, key, false)
	return ok, err
}

func (s *Service) observeExport(c rate.Currency, result string) {
	if s.metrics != nil {
		s.metrics.ExportsTotal.WithLabelValues(c.String(), result).Inc()
	}
}

func (s *Service) observeSummary(sum rate.Summary) {
	if s.metrics == nil {
		return
	}
	c := sum.Currency.String()
	s.metrics.ExportsTotal.WithLabelValues(c, "ok").Inc()
	s.metrics.CachedDaysTotal.WithLabelValues(c).Add(float64(sum.Cached))
	if n := len(sum.Unpublished); n > 0 {
		s.metrics.SkippedDaysTotal.WithLabelValues(c, "unpublished").Add(float64(n))
	}
	if n := len(sum.Faults); n > 0 {
		s.metrics.SkippedDaysTotal.WithLabelValues(c, "fault").Add(float64(n))
	}
}
