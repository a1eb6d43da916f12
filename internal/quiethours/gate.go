// Package quiethours implements the Quiet-Hours Gate (C6): a daily
// wall-clock window during which notification delivery is suppressed.
package quiethours

import (
	"fmt"
	"time"

	"github.com/eloym/formasur/internal/domain"
)

// Gate evaluates a quiet-hours window against a given instant,
// converted into the window's configured time zone.
type Gate struct {
	start    time.Duration // minutes-of-day, as a duration since midnight
	end      time.Duration
	loc      *time.Location
	disabled bool
}

// NewGate parses a QuietHoursWindow. A zero-value window (disabled)
// always allows delivery. Timezone defaults to UTC when unset.
func NewGate(window domain.QuietHoursWindow) (*Gate, error) {
	if window.IsZero() {
		return &Gate{disabled: true}, nil
	}
	start, err := parseClock(window.Start)
	if err != nil {
		return nil, fmt.Errorf("quiet_hours.start: %w", err)
	}
	end, err := parseClock(window.End)
	if err != nil {
		return nil, fmt.Errorf("quiet_hours.end: %w", err)
	}
	zone := window.Timezone
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("quiet_hours.timezone %q: %w", zone, err)
	}
	return &Gate{start: start, end: end, loc: loc}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Allows returns true iff now falls outside the quiet window. When
// start < end the window is a same-day interval [start, end); when
// start > end it spans midnight, the quiet window is [start, 24:00) ∪
// [00:00, end), and delivery is allowed iff end <= current < start.
func (g *Gate) Allows(now time.Time) bool {
	if g.disabled {
		return true
	}
	local := now.In(g.loc)
	current := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute + time.Duration(local.Second())*time.Second

	if g.start < g.end {
		return !(current >= g.start && current < g.end)
	}
	// Spans midnight: quiet window is [start, 24:00) ∪ [00:00, end),
	// so the allowed region is current in [end, start).
	return current >= g.end && current < g.start
}
