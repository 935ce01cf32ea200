// Package schedule provides elapsed-time gates for recurring maintenance
// duties driven from a non-blocking tick loop.
package schedule

import "time"

// Gate tracks when a recurring duty last ran.
//
// A Gate never fires on its own: the owner asks Due on each tick and calls
// Mark after running the duty. A zero or negative interval disables the
// gate. An unmarked gate is due immediately.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate creates a gate that is due once per interval.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Due reports whether the duty should run at the given moment.
func (g *Gate) Due(now time.Time) bool {
	if g.interval <= 0 {
		return false
	}
	if g.last.IsZero() {
		return true
	}
	return now.Sub(g.last) >= g.interval
}

// Mark records that the duty ran at the given moment.
func (g *Gate) Mark(now time.Time) {
	g.last = now
}

// Remaining returns the time until the gate is next due, or zero when it
// already is.
func (g *Gate) Remaining(now time.Time) time.Duration {
	if g.Due(now) {
		return 0
	}
	return g.interval - now.Sub(g.last)
}

// Interval returns the configured interval.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
