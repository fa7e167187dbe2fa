package series

import (
	"fmt"
	"time"
)

// DaySpan returns the inclusive number of calendar days from first to last.
func DaySpan(first, last time.Time) int {
	return int(Day(last).Sub(Day(first)).Hours()/24) + 1
}

// Densify expands s to one point per calendar day between its first and last
// dates. Days not in s are emitted as Missing. A trailing day with no source
// value is dropped rather than guessed.
//
// The span guard and the trailing-day rule both mirror how the Riksbank
// export behaves and are not meant as general policy.
func Densify(s Series) (Series, error) {
	first, ok := s.First()
	if !ok {
		return nil, fmt.Errorf("%w: empty series", ErrInconsistentSeries)
	}
	last, _ := s.Last()

	days := DaySpan(first.Date, last.Date)
	if days <= 1 || days > MaxDays {
		return nil, fmt.Errorf("%w: %d days between %s and %s",
			ErrUnreasonableRange, days, first.Key(), last.Key())
	}

	known := make(map[time.Time]Rate, len(s))
	for _, p := range s {
		known[Day(p.Date)] = p.Rate
	}

	start := Day(first.Date)
	end := Day(last.Date)

	out := make(Series, 0, days)
	for i := range days {
		d := start.AddDate(0, 0, i)
		r := known[d]
		if d.Equal(end) && !r.Reported() {
			continue
		}
		out = append(out, Point{Date: d, Rate: r})
	}

	if p, _ := out.First(); !p.Rate.Reported() {
		return nil, fmt.Errorf("%w: first day %s has no value", ErrInconsistentSeries, p.Key())
	}
	if p, _ := out.Last(); !p.Rate.Reported() {
		return nil, fmt.Errorf("%w: last day %s has no value", ErrInconsistentSeries, p.Key())
	}
	return out, nil
}

// ForwardFill replaces every gap with the closest preceding non-gap rate.
// Gaps before the first non-gap rate are left as they are.
func ForwardFill(s Series) Series {
	out := make(Series, len(s))
	var carry Rate
	for i, p := range s {
		if p.Rate.Gap() {
			if !carry.Gap() {
				p.Rate = carry
			}
		} else {
			carry = p.Rate
		}
		out[i] = p
	}
	return out
}
