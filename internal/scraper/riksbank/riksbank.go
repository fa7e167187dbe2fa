// Package riksbank downloads daily average exchange rates from the Riksbank
// statistics export as semicolon-delimited text.
package riksbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"golang.org/x/time/rate"

	ratepkg "github.com/ahmethakanbesel/riksbank-cache/internal/rate"
)

const (
	DefaultEndpoint = "https://www.riksbank.se/sv/statistik/sok-rantor--valutakurser/"
	dateFormat      = time.DateOnly
	maxBodyBytes    = 8 << 20
)

// ErrUpstream is returned when the export could not be downloaded.
var ErrUpstream = errors.New("riksbank export unavailable")

// StatusError is a non-200 response from the export endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client fetches one currency's export per call.
type Client struct {
	client   *http.Client
	endpoint string
	retries  int
	backoff  time.Duration
	limiter  *rate.Limiter
	retrier  *retrier.Retrier
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: DefaultEndpoint,
		retries:  3,
		backoff:  500 * time.Millisecond,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, o := range opts {
		o(c)
	}
	c.retrier = retrier.New(retrier.ExponentialBackoff(c.retries, c.backoff), transient{})
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithClient sets the HTTP client.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout replaces the HTTP client with one bounded by d per request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client = &http.Client{Timeout: d} }
}

// WithEndpoint overrides the export endpoint.
func WithEndpoint(ep string) Option {
	return func(c *Client) { c.endpoint = ep }
}

// WithRetries sets how many times a transient failure is retried, and the
// first backoff delay. Later delays double.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithRate limits requests to rps per second. Zero or less disables pacing.
func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// ExportURL returns the export URL of currency's SEK rate over [from, to].
func (c *Client) ExportURL(currency ratepkg.Currency, from, to time.Time) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("c", "cAverage")
	q.Set("f", "Day")
	q.Set("from", from.Format(dateFormat))
	q.Set("to", to.Format(dateFormat))
	q.Set(fmt.Sprintf("g130-%s%sPMI", ratepkg.Quote, currency), "on")
	q.Set("s", "Dot")
	q.Set("export", "csv")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Export downloads the raw export of currency over [from, to].
func (c *Client) Export(ctx context.Context, currency ratepkg.Currency, from, to time.Time) (string, error) {
	if from.After(to) {
		return "", fmt.Errorf("start date cannot be after end date")
	}

	u, err := c.ExportURL(currency, from, to)
	if err != nil {
		return "", err
	}

	var body string
	err = c.retrier.RunCtx(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		body, err = c.get(ctx, u)
		if err != nil {
			slog.Warn("riksbank export attempt failed", "currency", currency, "error", err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s %s -> %s: %w", ErrUpstream, currency,
			from.Format(dateFormat), to.Format(dateFormat), err)
	}

	slog.Info("retrieved riksbank export", "currency", currency,
		"from", from.Format(dateFormat), "to", to.Format(dateFormat), "bytes", len(body))
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "*/*")

	resp, err := c.client.Do(req) //nolint:gosec // endpoint is operator configured
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &StatusError{Code: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(b), nil
}

// transient retries network failures, 5xx and 429 responses.
type transient struct{}

func (transient) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retrier.Fail
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code >= 500 || se.Code == http.StatusTooManyRequests {
			return retrier.Retry
		}
		return retrier.Fail
	}
	return retrier.Retry
}
