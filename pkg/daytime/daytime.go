// Package daytime anchors all daily-scoped entities to one civil calendar.
// Day keys and expiry instants are always computed in the service's fixed
// reference time zone, regardless of where clients or servers run.
package daytime

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone = "Europe/Istanbul"

	dayKeyFormat = "2006-01-02"
)

type Calendar struct {
	loc *time.Location
}

func NewCalendar(timezone string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	return &Calendar{loc: loc}, nil
}

// DayKey returns the civil date of t in the reference zone, e.g.
// "2024-06-15". One-per-day entities are keyed by this string.
func (c *Calendar) DayKey(t time.Time) string {
	return t.In(c.loc).Format(dayKeyFormat)
}

// NextMidnight returns the next local-midnight boundary after t as an
// absolute instant. An entity stamped with expiresAt = NextMidnight(now) is
// valid at now and invalid at the boundary or later.
func (c *Calendar) NextMidnight(t time.Time) time.Time {
	local := t.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return midnight.AddDate(0, 0, 1)
}
