// Package series turns a sparse, chronologically ordered date -> rate series
// into a dense daily one.
package series

import (
	"errors"
	"fmt"
	"time"
)

// DateFormat is the layout of every date key in a series.
const DateFormat = time.DateOnly

// Unavailable is the source's "not yet published" marker.
const Unavailable = "n/a"

// MaxDays bounds the number of calendar days a single batch may span.
const MaxDays = 356

var (
	ErrUnreasonableRange  = errors.New("unreasonable date range")
	ErrInconsistentSeries = errors.New("inconsistent series")
)

// Kind tells how much is known about the rate of a single day.
type Kind uint8

const (
	// Absent means the day does not appear in the source at all.
	Absent Kind = iota
	// Blank means the source reported the day with an empty rate column.
	Blank
	// Sentinel means the source reported the day as Unavailable.
	Sentinel
	// Concrete means the day carries a decimal rate.
	Concrete
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Blank:
		return "blank"
	case Sentinel:
		return "sentinel"
	case Concrete:
		return "concrete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Rate is the optional value attached to a day.
type Rate struct {
	Kind  Kind
	Value string
}

func Value(v string) Rate { return Rate{Kind: Concrete, Value: v} }

func NotPublished() Rate { return Rate{Kind: Sentinel, Value: Unavailable} }

func Empty() Rate { return Rate{Kind: Blank} }

func Missing() Rate { return Rate{} }

// Reported reports whether the day was present in the source.
func (r Rate) Reported() bool { return r.Kind != Absent }

// Gap reports whether the day needs a value carried over from an earlier day.
func (r Rate) Gap() bool { return r.Kind == Absent || r.Kind == Blank }

func (r Rate) String() string {
	if r.Gap() {
		return r.Kind.String()
	}
	return r.Value
}

type Point struct {
	Date time.Time
	Rate Rate
}

// Key returns the point's date formatted as YYYY-MM-DD.
func (p Point) Key() string { return p.Date.Format(DateFormat) }

// Series is an ordered list of days. Dates are unique and ascending.
type Series []Point

func (s Series) First() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[0], true
}

func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Lookup returns the rate recorded for date, or a Missing rate.
func (s Series) Lookup(date time.Time) Rate {
	for _, p := range s {
		if p.Date.Equal(date) {
			return p.Rate
		}
	}
	return Missing()
}

// Dates returns the date keys in order.
func (s Series) Dates() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Key()
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD key.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
