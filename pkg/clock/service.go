// Package clock maintains network-synchronized wall time for a device.
//
// The device's own clock is never adjusted. A successful sync records the
// offset between a network time source and the local monotonic clock; all
// accessors derive from that offset. Until the first successful sync the
// accessors return sentinels (0 for the epoch, Unavailable for formatted
// strings) so callers can tell real time from an unset clock.
package clock

import (
	"sync"
	"time"

	// Embedded hosts rarely ship a system zone database.
	_ "time/tzdata"

	"github.com/pion/logging"
)

// DefaultServers are the time servers tried in order when a caller supplies
// none.
var DefaultServers = []string{"pool.ntp.org", "time.nist.gov"}

// Unavailable is returned by the formatted accessors when no valid network
// time is held. Callers must check for it before using the value.
const Unavailable = "unavailable"

// DefaultQueryTimeout bounds a single time-server query.
const DefaultQueryTimeout = 5 * time.Second

// Layouts used by the formatted accessors.
const (
	LayoutDate        = "2006-01-02"
	LayoutDateDMY     = "02-01-2006"
	LayoutTimeOfDay   = "15:04:05"
	LayoutDateTime    = "2006-01-02 15:04:05"
	LayoutDateTimeDMY = "02-01-2006 15:04:05"
)

// Syncer obtains the current time from a network time source.
// This allows injection of deterministic sources for testing.
type Syncer interface {
	// QueryTime returns the source's notion of the current time.
	QueryTime(server string) (time.Time, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Syncer queries network time. If nil, an NTP syncer with
	// DefaultQueryTimeout is used.
	Syncer Syncer

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Service holds the synchronized time state.
// Safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	syncer  Syncer
	log     logging.LeveledLogger
	offset  time.Duration // network time minus local time
	valid   bool
	loc     *time.Location // zone from the last Resync; nil until then
	servers []string       // server list from the last Resync
	syncing bool
	nowFunc func() time.Time
}

// NewService creates a Service with no time held; a Resync must succeed
// before the accessors report real values.
func NewService(config ServiceConfig) *Service {
	s := &Service{
		syncer:  config.Syncer,
		nowFunc: time.Now,
	}
	if s.syncer == nil {
		s.syncer = NewNTPSyncer(DefaultQueryTimeout)
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("clock")
	}
	return s
}

// Resync loads the zone, remembers the server list for later background
// syncs, and queries the servers in order until one answers. It blocks for
// at most one query timeout per server and reports whether network time was
// obtained.
//
// tz is an IANA zone name such as "Europe/Amsterdam". With no servers the
// DefaultServers are used.
func (s *Service) Resync(tz string, servers ...string) bool {
	if tz == "" {
		if s.log != nil {
			s.log.Warn("clock: resync requires a timezone")
		}
		return false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("clock: invalid timezone %q: %v", tz, err)
		}
		return false
	}
	if len(servers) == 0 {
		servers = DefaultServers
	}

	s.mu.Lock()
	s.loc = loc
	s.servers = append([]string(nil), servers...)
	s.mu.Unlock()

	return s.query(servers)
}

// ResyncBackground repeats the last sync in a goroutine, for callers that
// must not block. Only one background sync runs at a time. It reports
// whether a sync was launched; onDone (optional) receives the outcome.
func (s *Service) ResyncBackground(onDone func(ok bool)) bool {
	s.mu.Lock()
	if s.syncing || len(s.servers) == 0 {
		s.mu.Unlock()
		return false
	}
	s.syncing = true
	servers := append([]string(nil), s.servers...)
	s.mu.Unlock()

	go func() {
		ok := s.query(servers)
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
		if onDone != nil {
			onDone(ok)
		}
	}()

	return true
}

// Valid reports whether a sync has succeeded since startup.
func (s *Service) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// Epoch returns seconds since the Unix epoch. It returns 0 until a sync has
// succeeded and a zone is known, either from the last Resync or from
// tzOverride (an IANA zone name) for this call alone.
func (s *Service) Epoch(tzOverride string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid {
		return 0
	}
	if s.loc == nil && tzOverride == "" {
		return 0
	}
	return s.nowFunc().Add(s.offset).Unix()
}

// Now returns the synchronized time localized to the configured zone, or to
// tzOverride when given. ok is false until a sync has succeeded.
func (s *Service) Now(tzOverride string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.loc
	if tzOverride != "" {
		l, err := time.LoadLocation(tzOverride)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("clock: invalid timezone %q: %v", tzOverride, err)
			}
			return time.Time{}, false
		}
		loc = l
	}
	if !s.valid || loc == nil {
		return time.Time{}, false
	}
	return s.nowFunc().Add(s.offset).In(loc), true
}

// Date returns the current date as "2006-01-02", or Unavailable.
func (s *Service) Date(tzOverride string) string {
	return s.format(LayoutDate, tzOverride)
}

// DateDMY returns the current date as "02-01-2006", or Unavailable.
func (s *Service) DateDMY(tzOverride string) string {
	return s.format(LayoutDateDMY, tzOverride)
}

// TimeOfDay returns the current time as "15:04:05", or Unavailable.
func (s *Service) TimeOfDay(tzOverride string) string {
	return s.format(LayoutTimeOfDay, tzOverride)
}

// DateTime returns "2006-01-02 15:04:05", or Unavailable.
func (s *Service) DateTime(tzOverride string) string {
	return s.format(LayoutDateTime, tzOverride)
}

// DateTimeDMY returns "02-01-2006 15:04:05", or Unavailable.
func (s *Service) DateTimeDMY(tzOverride string) string {
	return s.format(LayoutDateTimeDMY, tzOverride)
}

// query tries each server in order and records the first answer.
func (s *Service) query(servers []string) bool {
	for _, server := range servers {
		netTime, err := s.syncer.QueryTime(server)
		if err != nil {
			if s.log != nil {
				s.log.Debugf("clock: query to %s failed: %v", server, err)
			}
			continue
		}

		s.mu.Lock()
		s.offset = netTime.Sub(s.nowFunc())
		s.valid = true
		s.mu.Unlock()

		if s.log != nil {
			s.log.Infof("clock: synchronized via %s", server)
		}
		return true
	}

	if s.log != nil {
		s.log.Warnf("clock: no time server answered (%d tried)", len(servers))
	}
	return false
}

// format renders the synchronized time, or Unavailable before a sync.
func (s *Service) format(layout, tzOverride string) string {
	now, ok := s.Now(tzOverride)
	if !ok {
		return Unavailable
	}
	return now.Format(layout)
}
