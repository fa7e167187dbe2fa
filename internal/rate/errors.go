package rate

import "errors"

var (
	ErrMalformedSource     = errors.New("malformed source")
	ErrStaleSentinel       = errors.New("sentinel found on a date other than the anchor date")
	ErrPublicationOverdue  = errors.New("rate still unpublished after the daily cutoff")
	ErrFutureDate          = errors.New("end date is after the anchor date")
	ErrEmptyRange          = errors.New("start date is not before end date")
	ErrNotFoundOrWrongType = errors.New("rate not cached or not a string")
)
