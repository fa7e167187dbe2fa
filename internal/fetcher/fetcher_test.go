package fetcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/riksbank-cache/internal/apperror"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/metrics"
	"github.com/ahmethakanbesel/riksbank-cache/internal/platform/sqlite"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/repository/cache"
	jobrepo "github.com/ahmethakanbesel/riksbank-cache/internal/repository/job"
)

type fakeExporter struct {
	mu       sync.Mutex
	payloads map[rate.Currency]string
	errs     map[rate.Currency]error
	calls    []rate.Currency
	count    atomic.Int32
	gate     chan struct{}
}

func (f *fakeExporter) Export(ctx context.Context, c rate.Currency, _, _ time.Time) (string, error) {
	f.count.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err := f.errs[c]; err != nil {
		return "", err
	}
	return f.payloads[c], nil
}

var stockholm = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		return time.FixedZone("CEST", 2*60*60)
	}
	return loc
}()

func clockAt(hour, minute int) func() time.Time {
	return func() time.Time { return time.Date(2023, 5, 15, hour, minute, 0, 0, stockholm) }
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

const (
	eurExport = "Datum;Grupp;Serie;Värde\n2023-05-10;;SEKEURPMI;11.20\n2023-05-12;;SEKEURPMI;11.30\n2023-05-15;;SEKEURPMI;n/a\n"
	usdExport = "Datum;Grupp;Serie;Värde\n2023-05-10;;SEKUSDPMI;10.10\n2023-05-11;;SEKUSDPMI;10.20\n2023-05-15;;SEKUSDPMI;n/a\n"

	eurPublished = "Datum;Grupp;Serie;Värde\n2023-05-10;;SEKEURPMI;11.20\n2023-05-12;;SEKEURPMI;11.30\n2023-05-15;;SEKEURPMI;11.40\n"
	usdPublished = "Datum;Grupp;Serie;Värde\n2023-05-10;;SEKUSDPMI;10.10\n2023-05-11;;SEKUSDPMI;10.20\n2023-05-15;;SEKUSDPMI;10.30\n"
)

func (f *fakeExporter) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = map[rate.Currency]string{rate.CurrencyEUR: eurPublished, rate.CurrencyUSD: usdPublished}
}

func newExporter() *fakeExporter {
	return &fakeExporter{
		payloads: map[rate.Currency]string{rate.CurrencyEUR: eurExport, rate.CurrencyUSD: usdExport},
		errs:     map[rate.Currency]error{},
	}
}

func TestFetchRange(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	m := metrics.New()
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(10, 0)), WithMetrics(m))
	ctx := context.Background()

	res, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.False(t, res.AlreadyCached)
	require.Equal(t, "EUR+USD_2023-05-10_2023-05-15", res.RangeKey)
	require.EqualValues(t, 10, res.Cached())
	require.Equal(t, []rate.Currency{rate.CurrencyEUR, rate.CurrencyUSD}, src.calls)

	require.True(t, res.Pending())

	for key, want := range map[string]any{
		"EUR-SEK_2023-05-11": "11.20",
		"EUR-SEK_2023-05-14": "11.30",
		"USD-SEK_2023-05-14": "10.20",
	} {
		v, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		require.Equal(t, want, v, key)
	}
	for _, key := range []string{"EUR-SEK_2023-05-15", "EUR+USD_2023-05-10_2023-05-15"} {
		_, ok, _ := store.Get(ctx, key)
		require.False(t, ok, key)
	}

	require.Equal(t, 5.0, testutil.ToFloat64(m.CachedDaysTotal.WithLabelValues("EUR")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SkippedDaysTotal.WithLabelValues("USD", "unpublished")))
}

func TestFetchRange_CompletesAfterPublication(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	m := metrics.New()
	now := clockAt(10, 0)
	svc := NewService(store, src, WithLocation(stockholm),
		WithClock(func() time.Time { return now() }), WithMetrics(m))
	ctx := context.Background()

	res, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.True(t, res.Pending())

	now = clockAt(14, 0)
	src.publish()

	res, err = svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.False(t, res.AlreadyCached)
	require.False(t, res.Pending())
	require.Len(t, src.calls, 4)

	for key, want := range map[string]any{
		"EUR-SEK_2023-05-14":            "11.30",
		"EUR-SEK_2023-05-15":            "11.40",
		"USD-SEK_2023-05-15":            "10.30",
		"EUR+USD_2023-05-10_2023-05-15": true,
	} {
		v, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		require.Equal(t, want, v, key)
	}

	res, err = svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.True(t, res.AlreadyCached)
	require.Len(t, src.calls, 4)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RangeHitsTotal))
}

func TestFetchRange_RejectedExportLeavesRangeUnmarked(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(14, 5)))
	ctx := context.Background()

	_, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.ErrorIs(t, err, rate.ErrPublicationOverdue)
	require.Equal(t, []rate.Currency{rate.CurrencyEUR}, src.calls)

	cached, err := svc.IsCached(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.False(t, cached)
}

func TestFetchRange_FutureRange(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(10, 0)))

	_, err := svc.FetchRange(context.Background(), day("2023-05-10"), day("2023-05-17"))
	require.True(t, apperror.Is(err, apperror.BadRequest), "got %v", err)
	require.Zero(t, src.count.Load())
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFetchRange_PartialFailure(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	src.publish()
	src.errs[rate.CurrencyUSD] = errors.New("connection reset")
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(10, 0)))
	ctx := context.Background()

	_, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.ErrorIs(t, err, src.errs[rate.CurrencyUSD])

	// EUR stays cached, the range does not.
	_, ok, _ := store.Get(ctx, "EUR-SEK_2023-05-10")
	require.True(t, ok)
	cached, err := svc.IsCached(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.False(t, cached)

	delete(src.errs, rate.CurrencyUSD)
	res, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.False(t, res.AlreadyCached)

	cached, err = svc.IsCached(ctx, day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.True(t, cached)
}

func TestFetchRange_SharesConcurrentCalls(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	src.gate = make(chan struct{})
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(10, 0)))

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.FetchRange(context.Background(), day("2023-05-10"), day("2023-05-15"))
			if err == nil {
				results[i] = res
			}
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	require.EqualValues(t, 2, src.count.Load())
	for _, res := range results {
		require.NotNil(t, res)
		require.EqualValues(t, 10, res.Cached())
	}
}

func TestFetchRange_CancelledCallerDoesNotCancelSharedFetch(t *testing.T) {
	store := cache.NewMemory()
	src := newExporter()
	src.publish()
	src.gate = make(chan struct{})
	svc := NewService(store, src, WithLocation(stockholm), WithClock(clockAt(14, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.FetchRange(ctx, day("2023-05-10"), day("2023-05-15"))
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan *Result, 1)
	go func() {
		res, err := svc.FetchRange(context.Background(), day("2023-05-10"), day("2023-05-15"))
		if err != nil {
			res = nil
		}
		second <- res
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.gate)
	res := <-second
	require.NotNil(t, res)
	require.EqualValues(t, 12, res.Cached())
	require.EqualValues(t, 2, src.count.Load())
}

func setupJobs(t *testing.T) *jobrepo.Repository {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return jobrepo.NewRepository(db.DB)
}

func TestEnqueue(t *testing.T) {
	repo := setupJobs(t)
	store := cache.NewMemory()
	svc := NewService(store, newExporter(),
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(repo))
	var notified atomic.Int32
	svc.SetNotify(func() { notified.Add(1) })
	ctx := context.Background()

	req := EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-15")}
	first, err := svc.Enqueue(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.NotNil(t, first.Job)
	require.Equal(t, job.StatusPending, first.Job.Status)
	require.Equal(t, []string{"EUR", "USD"}, first.Job.Currencies)
	require.EqualValues(t, 1, notified.Load())

	second, err := svc.Enqueue(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.Job.ID, second.Job.ID)
	require.EqualValues(t, 1, notified.Load())

	require.NoError(t, store.Add(ctx, "EUR+USD_2023-05-01_2023-05-09", true))
	cached, err := svc.Enqueue(ctx, EnqueueRequest{From: day("2023-05-01"), To: day("2023-05-09")})
	require.NoError(t, err)
	require.True(t, cached.Cached)
	require.Nil(t, cached.Job)
}

// staleLookupRepo misses the first FindActive, as a request racing another
// one would.
type staleLookupRepo struct {
	*jobrepo.Repository
	missed atomic.Bool
}

func (r *staleLookupRepo) FindActive(ctx context.Context, currencies, from, to string) (*job.Job, error) {
	if r.missed.CompareAndSwap(false, true) {
		return nil, nil
	}
	return r.Repository.FindActive(ctx, currencies, from, to)
}

func TestEnqueue_ConcurrentRequestReusesJob(t *testing.T) {
	base := setupJobs(t)
	ctx := context.Background()
	existing := &job.Job{
		Currencies: []string{"EUR", "USD"},
		StartDate:  day("2023-05-10"),
		EndDate:    day("2023-05-15"),
		Status:     job.StatusPending,
	}
	require.NoError(t, base.Create(ctx, existing))

	repo := &staleLookupRepo{Repository: base}
	svc := NewService(cache.NewMemory(), newExporter(),
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(repo))
	var notified atomic.Int32
	svc.SetNotify(func() { notified.Add(1) })

	resp, err := svc.Enqueue(ctx, EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-15")})
	require.NoError(t, err)
	require.Equal(t, existing.ID, resp.Job.ID)
	require.Zero(t, notified.Load())

	jobs, err := base.List(ctx, job.StatusPending)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestEnqueue_Validation(t *testing.T) {
	svc := NewService(cache.NewMemory(), newExporter(),
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(setupJobs(t)))

	tests := []struct {
		name string
		req  EnqueueRequest
	}{
		{"missing from", EnqueueRequest{To: day("2023-05-15")}},
		{"missing to", EnqueueRequest{From: day("2023-05-10")}},
		{"single day", EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-10")}},
		{"reversed", EnqueueRequest{From: day("2023-05-12"), To: day("2023-05-10")}},
		{"future", EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-16")}},
		{"too long", EnqueueRequest{From: day("2022-01-01"), To: day("2023-05-15")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Enqueue(context.Background(), tt.req)
			require.True(t, apperror.Is(err, apperror.BadRequest), "got %v", err)
		})
	}
}

func TestProcess(t *testing.T) {
	repo := setupJobs(t)
	store := cache.NewMemory()
	m := metrics.New()
	svc := NewService(store, newExporter(),
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(repo), WithMetrics(m))
	ctx := context.Background()

	resp, err := svc.Enqueue(ctx, EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-15")})
	require.NoError(t, err)

	claimed, err := repo.ClaimPending(ctx)
	require.NoError(t, err)
	require.Equal(t, resp.Job.ID, claimed.ID)

	require.NoError(t, svc.Process(ctx, claimed))
	svc.ObserveJob(claimed, nil, time.Second)

	got, err := repo.Get(ctx, claimed.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.EqualValues(t, 10, got.RecordsCount)
	require.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed")))

	v, err := svc.Rate(ctx, RateRequest{Currency: rate.CurrencyUSD, Date: day("2023-05-13")})
	require.NoError(t, err)
	require.Equal(t, "10.20", v.Rate)
}

func TestProcess_Failure(t *testing.T) {
	repo := setupJobs(t)
	src := newExporter()
	src.errs[rate.CurrencyEUR] = errors.New("upstream down")
	svc := NewService(cache.NewMemory(), src,
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(repo))
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-15")})
	require.NoError(t, err)
	claimed, err := repo.ClaimPending(ctx)
	require.NoError(t, err)

	require.Error(t, svc.Process(ctx, claimed))

	got, err := repo.Get(ctx, claimed.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, got.Status)
	require.Contains(t, got.Error, "upstream down")
}

func TestProcess_WithWorkerPool(t *testing.T) {
	repo := setupJobs(t)
	store := cache.NewMemory()
	src := newExporter()
	src.publish()
	svc := NewService(store, src,
		WithLocation(stockholm), WithClock(clockAt(10, 0)), WithJobRepository(repo))

	pool := job.NewWorkerPool(repo, svc, 1, job.WithPollInterval(20*time.Millisecond), job.WithObserver(svc.ObserveJob))
	svc.SetNotify(pool.Notify)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	resp, err := svc.Enqueue(context.Background(), EnqueueRequest{From: day("2023-05-10"), To: day("2023-05-15")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := repo.Get(context.Background(), resp.Job.ID)
		return err == nil && j.Status == job.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cached, err := svc.IsCached(context.Background(), day("2023-05-10"), day("2023-05-15"))
	require.NoError(t, err)
	require.True(t, cached)
}

func TestRate(t *testing.T) {
	store := cache.NewMemory()
	m := metrics.New()
	svc := NewService(store, newExporter(), WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "EUR-SEK_2023-05-10", "11.20"))

	got, err := svc.Rate(ctx, RateRequest{Currency: rate.CurrencyEUR, Date: day("2023-05-10")})
	require.NoError(t, err)
	require.Equal(t, &RateResponse{Currency: "EUR", Quote: "SEK", Date: "2023-05-10", Rate: "11.20"}, got)

	_, err = svc.Rate(ctx, RateRequest{Currency: rate.CurrencyEUR, Date: day("2023-05-11")})
	require.ErrorIs(t, err, rate.ErrNotFoundOrWrongType)

	_, err = svc.Rate(ctx, RateRequest{Currency: "GBP", Date: day("2023-05-11")})
	require.True(t, apperror.Is(err, apperror.BadRequest))

	require.Equal(t, 1.0, testutil.ToFloat64(m.RateLookupsTotal.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RateLookupsTotal.WithLabelValues("miss")))
}
