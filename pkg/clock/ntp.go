package clock

import (
	"time"

	"github.com/beevik/ntp"
)

// NTPSyncer queries SNTP servers. It is the production Syncer.
type NTPSyncer struct {
	timeout time.Duration
}

// NewNTPSyncer creates a syncer with the given per-query timeout.
// A zero or negative timeout uses DefaultQueryTimeout.
func NewNTPSyncer(timeout time.Duration) *NTPSyncer {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &NTPSyncer{timeout: timeout}
}

// QueryTime performs a single SNTP exchange with server.
func (n *NTPSyncer) QueryTime(server string) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: n.timeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}
