package fetcher

import (
	"context"
	"errors"

	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

// Rate returns the cached SEK rate of req.Currency on req.Date.
func (s *Service) Rate(ctx context.Context, req RateRequest) (*RateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	date := req.Date.Format(series.DateFormat)
	cc := rate.NewCurrencyCache(s.store, rate.NewAnchor(s.now().In(s.loc)))

	v, err := cc.TryGetCurrencyRate(ctx, date, req.Currency, rate.Quote)
	s.observeLookup(err)
	if err != nil {
		return nil, err
	}

	return &RateResponse{
		Currency: req.Currency,
		Quote:    rate.Quote,
		Date:     date,
		Rate:     v,
	}, nil
}

func (s *Service) observeLookup(err error) {
	if s.metrics == nil {
		return
	}
	result := "hit"
	switch {
	case errors.Is(err, rate.ErrNotFoundOrWrongType):
		result = "miss"
	case err != nil:
		result = "error"
	}
	s.metrics.RateLookupsTotal.WithLabelValues(result).Inc()
}
