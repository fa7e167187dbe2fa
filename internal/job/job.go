package job

import (
	"errors"
	"strings"
	"time"
)

// ErrActiveExists is returned by Create when a pending or running job already
// covers the same currencies and range.
var ErrActiveExists = errors.New("active job exists for range")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is one queued fetch of every listed currency over [StartDate, EndDate].
type Job struct {
	ID           int64     `json:"id"`
	Currencies   []string  `json:"currencies"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	RecordsCount int64     `json:"recordsCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CurrencyList is the stored form of Currencies.
func (j *Job) CurrencyList() string { return JoinCurrencies(j.Currencies) }

func JoinCurrencies(cs []string) string { return strings.Join(cs, ",") }

func SplitCurrencies(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
