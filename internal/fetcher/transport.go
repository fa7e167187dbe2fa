package fetcher

import (
	"time"

	"github.com/ahmethakanbesel/riksbank-cache/internal/apperror"
	"github.com/ahmethakanbesel/riksbank-cache/internal/job"
	"github.com/ahmethakanbesel/riksbank-cache/internal/rate"
	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

type EnqueueRequest struct {
	From time.Time
	To   time.Time
}

func (r EnqueueRequest) Validate(today time.Time) *apperror.AppError {
	if r.From.IsZero() {
		return apperror.New(apperror.BadRequest, "from is required")
	}
	if r.To.IsZero() {
		return apperror.New(apperror.BadRequest, "to is required")
	}
	if !r.From.Before(r.To) {
		return apperror.New(apperror.BadRequest, "to must be after from")
	}
	if r.To.After(today) {
		return apperror.New(apperror.BadRequest, "to cannot be in the future")
	}
	if series.DaySpan(r.From, r.To) > series.MaxDays {
		return apperror.New(apperror.BadRequest, "range cannot span more than 356 days")
	}
	return nil
}

type EnqueueResponse struct {
	Cached bool     `json:"cached"`
	Job    *job.Job `json:"job,omitempty"`
}

type RateRequest struct {
	Currency rate.Currency
	Date     time.Time
}

func (r RateRequest) Validate() *apperror.AppError {
	if !r.Currency.IsSupported() {
		return apperror.New(apperror.BadRequest, "currency must be EUR or USD")
	}
	if r.Date.IsZero() {
		return apperror.New(apperror.BadRequest, "date is required")
	}
	return nil
}

type RateResponse struct {
	Currency rate.Currency `json:"currency"`
	Quote    rate.Currency `json:"quote"`
	Date     string        `json:"date"`
	Rate     string        `json:"rate"`
}
