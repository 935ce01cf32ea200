package uplink

import (
	"net"
	"os"
	"time"

	"github.com/backkem/uplink/pkg/clock"
	"github.com/backkem/uplink/pkg/diag"
	"github.com/backkem/uplink/pkg/discovery"
	"github.com/backkem/uplink/pkg/link"
	"github.com/backkem/uplink/pkg/remote"
	"github.com/backkem/uplink/pkg/update"
	"github.com/pion/logging"
)

// DefaultLocalSinkRate is the rate passed to a local sink that implements
// diag.Opener, typically a serial console baud rate.
const DefaultLocalSinkRate = 115200

// DefaultResyncInterval is the cadence of the periodic background time
// sync.
const DefaultResyncInterval = time.Hour

// restartDelay lets queued diagnostics drain before the default Restart
// exits the process.
const restartDelay = 3 * time.Second

// advertiseRefreshInterval paces re-checks of the service advertisement
// from the maintenance tick.
const advertiseRefreshInterval = 30 * time.Second

// Config holds all configuration for a Supervisor.
type Config struct {
	// Identity - Required
	Hostname string // Name shown in banners and advertised over mDNS

	// Collaborators - Required
	Radio     link.Radio // Physical link driver
	LocalSink diag.Sink  // Always-present output destination

	// Collaborators - Optional
	Portal        link.Portal    // Credential configuration portal
	UpdateChannel update.Channel // Firmware update transport (default: none)
	Syncer        clock.Syncer   // Network time source (default: NTP)

	// LocalSinkRate is handed to LocalSink when it implements diag.Opener
	// (default: 115200).
	LocalSinkRate int

	// ResetRequested reports whether the operator asked for stored
	// credentials to be cleared at boot; ResetSettings performs the
	// clearing. Both optional.
	ResetRequested func() bool
	ResetSettings  func()

	// Callbacks - Optional. Each is a slot that can be overwritten later
	// through the supervisor's registration methods.
	OnPortalStart    func()
	OnUpdateStart    func()
	OnUpdateProgress func()
	OnUpdateEnd      func()

	// Network
	SessionPort int // Diagnostic session port (default: 23)
	UpdatePort  int // Advertised update channel port (default: 3232)

	// Restart performs the fatal escalation after exhausted reconnects or
	// a portal timeout. The default sleeps briefly so output drains, then
	// exits the process with a non-zero status for the host's service
	// manager to restart.
	Restart func()

	// Timing - Optional (zero means the link package defaults)
	ConnectAttempts      int           // Initial link polls before the portal (default: 20)
	ConnectPollInterval  time.Duration // Pause between initial link polls (default: 500ms)
	SettleDelay          time.Duration // Pause inside a reconnection attempt (default: 500ms)
	RetryInterval        time.Duration // Pace of time-driven reconnection attempts (default: 5s)
	MaxReconnectAttempts int           // Reconnection ceiling per episode (default: 5)
	PortalTimeout        time.Duration // Configuration portal bound (default: 240s)

	// ResyncInterval is the cadence of the periodic background time sync
	// (default: 1h). Negative disables it.
	ResyncInterval time.Duration

	// Advanced - Internal use / Testing
	SessionListener net.Listener                // Pre-bound session listener
	ServerFactory   discovery.MDNSServerFactory // mDNS registration seam

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return ErrHostnameRequired
	}

	if c.Radio == nil {
		return ErrRadioRequired
	}

	if c.LocalSink == nil {
		return ErrLocalSinkRequired
	}

	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.LocalSinkRate == 0 {
		c.LocalSinkRate = DefaultLocalSinkRate
	}

	if c.SessionPort == 0 {
		c.SessionPort = remote.DefaultPort
	}

	if c.UpdatePort == 0 {
		c.UpdatePort = discovery.DefaultUpdatePort
	}

	if c.ResyncInterval == 0 {
		c.ResyncInterval = DefaultResyncInterval
	}

	if c.UpdateChannel == nil {
		c.UpdateChannel = update.NopChannel{}
	}

	if c.Restart == nil {
		c.Restart = func() {
			time.Sleep(restartDelay)
			os.Exit(1)
		}
	}
}
