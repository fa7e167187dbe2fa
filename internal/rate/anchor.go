package rate

import (
	"time"

	"github.com/ahmethakanbesel/riksbank-cache/internal/series"
)

// PublicationCutoff is the local time of day by which the Riksbank publishes
// the day's rate. It encodes the source's SLA and may need to follow it.
const PublicationCutoff = 13*time.Hour + 20*time.Minute

// Anchor is the "today" freshness checks are made against: a calendar date
// plus the wall-clock time used for the publication cutoff.
type Anchor struct {
	date  time.Time
	clock time.Time
}

// NewAnchor anchors on the calendar date of now in now's location.
func NewAnchor(now time.Time) Anchor {
	return Anchor{date: series.Day(now), clock: now}
}

// AnchorAt anchors on date, taking the time of day from clock.
func AnchorAt(date, clock time.Time) Anchor {
	return Anchor{date: series.Day(date), clock: clock}
}

func (a Anchor) Date() time.Time { return a.date }

func (a Anchor) Key() string { return a.date.Format(series.DateFormat) }

// PastCutoff reports whether the anchor's clock reads later than
// PublicationCutoff, at minute resolution.
func (a Anchor) PastCutoff() bool {
	h, m, _ := a.clock.Clock()
	return time.Duration(h)*time.Hour+time.Duration(m)*time.Minute > PublicationCutoff
}
