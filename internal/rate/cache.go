package rate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

// Summary reports what a CacheAllDates call wrote and skipped.
type Summary struct {
	Currency Currency
	Cached   int
	// Unpublished holds dates skipped because they carry the sentinel.
	Unpublished []string
	// Faults holds dates that were still gaps after filling.
	Faults []string
}

// CurrencyCache normalizes source exports into per-day cache entries and
// reads them back.
type CurrencyCache struct {
	store  Store
	anchor Anchor
}

func NewCurrencyCache(store Store, anchor Anchor) *CurrencyCache {
	return &CurrencyCache{store: store, anchor: anchor}
}

func (c *CurrencyCache) Anchor() Anchor { return c.anchor }

// CacheAllDates parses payload, validates it, fills every calendar day in
// its range and adds one entry per day under Key(from, Quote, date).
// Nothing is written unless parsing and validation pass.
func (c *CurrencyCache) CacheAllDates(ctx context.Context, payload string, from Currency) (Summary, error) {
	sum := Summary{Currency: from}

	exp, err := Parse(payload)
	if err != nil {
		return sum, err
	}
	if err := Validate(exp, from, c.anchor); err != nil {
		return sum, err
	}

	dense, err := series.Densify(exp.Series)
	if err != nil {
		return sum, fmt.Errorf("%s: %w", from, err)
	}
	filled := series.ForwardFill(dense)

	// Re-check the parsed range before any write.
	if err := checkRange(exp, from, c.anchor); err != nil {
		return sum, fmt.Errorf("unexpected range while caching: %w", err)
	}

	for _, p := range filled {
		key := Key(from, Quote, p.Key())

		switch p.Rate.Kind {
		case series.Concrete:
			if err := c.store.Add(ctx, key, p.Rate.Value); err != nil {
				return sum, fmt.Errorf("cache %s: %w", key, err)
			}
			sum.Cached++
		case series.Sentinel:
			slog.Info("rate not yet published, skipping", "key", key, "date", p.Key())
			sum.Unpublished = append(sum.Unpublished, p.Key())
		default:
			slog.Error("failed to cache currency rate", "key", key, "date", p.Key(), "rate", p.Rate.Kind.String())
			sum.Faults = append(sum.Faults, p.Key())
		}
	}

	return sum, nil
}

// TryGetCurrencyRate returns the cached rate of from in to on date.
func (c *CurrencyCache) TryGetCurrencyRate(ctx context.Context, date string, from, to Currency) (string, error) {
	key := Key(from, to, date)

	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is not cached", ErrNotFoundOrWrongType, key)
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("%w: %s holds %T", ErrNotFoundOrWrongType, key, v)
	}
	return s, nil
}
