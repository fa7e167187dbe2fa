package rate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

const (
	fieldSep  = ";"
	dateField = 0
	rateField = 3
)

// Export is one parsed source payload.
type Export struct {
	Series    series.Series
	FirstDate time.Time
	LastDate  time.Time
	LastRate  series.Rate
}

// Parse reads a delimited export: a header row followed by rows of the form
// "date;_;_;rate". Row order is kept and must be strictly chronological.
func Parse(payload string) (*Export, error) {
	lines := strings.Split(strings.TrimSpace(payload), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformedSource)
	}

	s := make(series.Series, 0, len(lines)-1)
	for i, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		p, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedSource, i+2, err)
		}
		if last, ok := s.Last(); ok && !p.Date.After(last.Date) {
			return nil, fmt.Errorf("%w: row %d: %s does not follow %s",
				ErrMalformedSource, i+2, p.Key(), last.Key())
		}
		s = append(s, p)
	}

	if len(s) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformedSource)
	}

	first, _ := s.First()
	last, _ := s.Last()
	return &Export{
		Series:    s,
		FirstDate: first.Date,
		LastDate:  last.Date,
		LastRate:  last.Rate,
	}, nil
}

func parseRow(line string) (series.Point, error) {
	fields := strings.Split(line, fieldSep)
	if len(fields) <= rateField {
		return series.Point{}, fmt.Errorf("expected at least %d fields, got %d", rateField+1, len(fields))
	}

	date, err := series.ParseDate(strings.TrimSpace(fields[dateField]))
	if err != nil {
		return series.Point{}, fmt.Errorf("invalid date %q", fields[dateField])
	}

	r, err := parseRate(strings.TrimSpace(fields[rateField]))
	if err != nil {
		return series.Point{}, err
	}
	return series.Point{Date: date, Rate: r}, nil
}

func parseRate(v string) (series.Rate, error) {
	switch v {
	case "":
		return series.Empty(), nil
	case series.Unavailable:
		return series.NotPublished(), nil
	}
	if _, err := decimal.NewFromString(v); err != nil {
		return series.Rate{}, fmt.Errorf("invalid rate %q", v)
	}
	return series.Value(v), nil
}
