package link

import (
	"time"

	"github.com/cenkalti/backoff"
)

// Default retry parameters.
const (
	// DefaultMaxAttempts is the reconnection attempt ceiling per episode.
	DefaultMaxAttempts = 5

	// DefaultRetryInterval paces time-driven reconnection attempts.
	DefaultRetryInterval = 5 * time.Second

	// DefaultSettleDelay is the pause between Disconnect and TryConnect
	// within one attempt.
	DefaultSettleDelay = 500 * time.Millisecond
)

// RetryPolicy bounds reconnection attempts after a link loss.
//
// One policy covers one disconnection episode: the counter grows with each
// attempt, resets only when a connection is confirmed, and once the ceiling
// is reached Escalate reports true exactly once. The attempt cadence comes
// from a constant backoff capped at the ceiling.
type RetryPolicy struct {
	maxAttempts int
	interval    time.Duration
	tries       backoff.BackOff
	attempts    int
	lastAttempt time.Time
	escalated   bool
}

// NewRetryPolicy creates a policy allowing maxAttempts attempts spaced by
// interval. Zero or negative arguments use the defaults.
func NewRetryPolicy(maxAttempts int, interval time.Duration) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		interval:    interval,
		tries:       backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(maxAttempts)),
	}
}

// Begin records an attempt starting at now. It returns false when the
// ceiling is reached; no attempt may run in that case.
func (p *RetryPolicy) Begin(now time.Time) bool {
	if p.tries.NextBackOff() == backoff.Stop {
		return false
	}
	p.attempts++
	p.lastAttempt = now
	return true
}

// Due reports whether enough time has passed since the last attempt for a
// time-driven attempt to run.
func (p *RetryPolicy) Due(now time.Time) bool {
	if p.attempts == 0 {
		return true
	}
	return now.Sub(p.lastAttempt) >= p.interval
}

// Escalate reports whether the fatal escalation should fire. It returns
// true exactly once per episode, and only after the ceiling is reached.
func (p *RetryPolicy) Escalate() bool {
	if p.attempts < p.maxAttempts || p.escalated {
		return false
	}
	p.escalated = true
	return true
}

// Reset clears the episode after a confirmed connection: the counter
// returns to zero and escalation re-arms for a future episode.
func (p *RetryPolicy) Reset() {
	p.attempts = 0
	p.lastAttempt = time.Time{}
	p.escalated = false
	p.tries.Reset()
}

// Attempts returns the number of attempts made this episode.
func (p *RetryPolicy) Attempts() int {
	return p.attempts
}

// MaxAttempts returns the attempt ceiling.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}
