package rate

import (
	"fmt"

	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

// Validate decides whether an export for currency may be cached as of anchor.
// The first failing rule wins.
func Validate(exp *Export, currency Currency, anchor Anchor) error {
	last := exp.LastDate.Format(series.DateFormat)

	if exp.LastRate.Kind == series.Sentinel {
		if !exp.LastDate.Equal(anchor.Date()) {
			return fmt.Errorf("%w: %s: expected %s to carry %q, found it on %s",
				ErrStaleSentinel, currency, anchor.Key(), series.Unavailable, last)
		}
		if anchor.PastCutoff() {
			return fmt.Errorf("%w: %s: %s is still %q",
				ErrPublicationOverdue, currency, last, series.Unavailable)
		}
	}

	return checkRange(exp, currency, anchor)
}

func checkRange(exp *Export, currency Currency, anchor Anchor) error {
	first := exp.FirstDate.Format(series.DateFormat)
	last := exp.LastDate.Format(series.DateFormat)

	if exp.LastDate.After(anchor.Date()) {
		return fmt.Errorf("%w: %s: %s is after %s", ErrFutureDate, currency, last, anchor.Key())
	}
	if !exp.FirstDate.Before(exp.LastDate) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrEmptyRange, currency, first, last)
	}
	return nil
}
