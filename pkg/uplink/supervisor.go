package uplink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/backkem/uplink/pkg/clock"
	"github.com/backkem/uplink/pkg/diag"
	"github.com/backkem/uplink/pkg/discovery"
	"github.com/backkem/uplink/pkg/link"
	"github.com/backkem/uplink/pkg/remote"
	"github.com/backkem/uplink/pkg/schedule"
	"github.com/backkem/uplink/pkg/update"
	"github.com/pion/logging"
)

// Supervisor keeps a device's network link alive and runs the recurring
// connectivity duties. It coordinates the link state machine, the output
// multiplexer, the remote session manager, service advertisement, the
// update channel and the synchronized clock behind one facade.
//
// Begin is the single blocking call; after it returns, the host drives the
// supervisor by calling Tick once per iteration of its own loop.
type Supervisor struct {
	config Config
	radio  link.Radio
	log    logging.LeveledLogger

	// Core managers
	mux        *diag.Mux
	machine    *link.Machine
	sessions   *remote.Manager
	advertiser *discovery.Advertiser
	clock      *clock.Service
	updates    update.Channel

	// Maintenance gates
	advertiseGate *schedule.Gate
	resyncGate    *schedule.Gate

	// Synchronization
	mu    sync.Mutex
	state SupervisorState

	// Callback slots, overwritable through the registration methods
	onPortalStart    func()
	onUpdateStart    func()
	onUpdateProgress func()
	onUpdateEnd      func()
	updateStep       int

	nowFunc func() time.Time
}

// NewSupervisor creates a Supervisor with the given configuration.
// The supervisor is created but not started. Call Begin to connect.
func NewSupervisor(config Config) (*Supervisor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.applyDefaults()

	s := &Supervisor{
		config: config,
		radio:  config.Radio,
		state:  SupervisorStateCreated,
		clock: clock.NewService(clock.ServiceConfig{
			Syncer:        config.Syncer,
			LoggerFactory: config.LoggerFactory,
		}),
		updates:          config.UpdateChannel,
		advertiseGate:    schedule.NewGate(advertiseRefreshInterval),
		resyncGate:       schedule.NewGate(config.ResyncInterval),
		onPortalStart:    config.OnPortalStart,
		onUpdateStart:    config.OnUpdateStart,
		onUpdateProgress: config.OnUpdateProgress,
		onUpdateEnd:      config.OnUpdateEnd,
		nowFunc:          time.Now,
	}

	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("uplink")
	}

	return s, nil
}

// Begin wires the output path and runs the initial connection sequence:
// local sink first, then the session listener and the multiplexer, a
// credential reset check, the link state machine with its portal fallback,
// and finally service advertisement, the update channel and the session
// server. It returns the multiplexer the host should write its own
// diagnostics to.
//
// This is the supervisor's one blocking call: it legitimately waits tens
// of seconds for the first connection or the portal. ctx cancels the
// bounded link wait. A portal timeout is fatal: the failure is reported,
// Restart runs, and the error is returned for configurations whose Restart
// does not exit.
func (s *Supervisor) Begin(ctx context.Context) (*diag.Mux, error) {
	s.mu.Lock()
	if !s.state.CanBegin() {
		s.mu.Unlock()
		return nil, ErrAlreadyBegun
	}
	s.state = SupervisorStateStarting
	s.mu.Unlock()

	// Everything after this point reports through the local sink.
	if opener, ok := s.config.LocalSink.(diag.Opener); ok {
		if err := opener.Open(s.config.LocalSinkRate); err != nil {
			s.setState(SupervisorStateCreated)
			return nil, fmt.Errorf("uplink: opening local sink: %w", err)
		}
	}

	sessions, err := remote.NewManager(remote.ManagerConfig{
		Hostname:      s.config.Hostname,
		Listener:      s.config.SessionListener,
		ListenAddr:    fmt.Sprintf(":%d", s.config.SessionPort),
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		s.setState(SupervisorStateCreated)
		return nil, err
	}
	s.sessions = sessions

	mux, err := diag.NewMux(diag.MuxConfig{
		Sinks:         []diag.Sink{s.config.LocalSink, sessions.Sink()},
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		sessions.Stop()
		s.setState(SupervisorStateCreated)
		return nil, err
	}
	s.mux = mux

	if s.config.ResetRequested != nil && s.config.ResetRequested() {
		mux.Println("Reset requested, clearing stored credentials...")
		if s.config.ResetSettings != nil {
			s.config.ResetSettings()
		}
		mux.Println("Settings cleared!")
	}

	machine, err := link.NewMachine(link.MachineConfig{
		Radio:               s.config.Radio,
		Portal:              s.config.Portal,
		MaxAttempts:         s.config.MaxReconnectAttempts,
		RetryInterval:       s.config.RetryInterval,
		SettleDelay:         s.config.SettleDelay,
		ConnectAttempts:     s.config.ConnectAttempts,
		ConnectPollInterval: s.config.ConnectPollInterval,
		PortalTimeout:       s.config.PortalTimeout,
		OnStateChanged:      s.onLinkStateChanged,
		OnConnectProgress:   func(int) { mux.Printf(".") },
		OnPortalStart: func() {
			mux.Printf("\nConnection failed. Starting configuration portal...\n")
			s.portalStart()
		},
		OnAttempt: func(attempt, max int) {
			mux.Printf("Attempting to reconnect (attempt %d of %d)...\n", attempt, max)
		},
		OnFatal:       s.onLinkFatal,
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		sessions.Stop()
		s.setState(SupervisorStateCreated)
		return nil, err
	}
	s.machine = machine

	mux.Println("Connecting to network...")
	if err := machine.Begin(ctx); err != nil {
		switch {
		case errors.Is(err, link.ErrPortalTimeout):
			mux.Println("Failed to connect. Restarting...")
			mux.Flush()
			s.config.Restart()
		case errors.Is(err, link.ErrConnectFailed):
			mux.Printf("\nConnection failed.\n")
		default:
			// cancelled mid-connect; push pending progress output
			mux.Flush()
		}
		sessions.Stop()
		s.setState(SupervisorStateCreated)
		return nil, err
	}

	mux.Printf("\nConnected!\n")
	mux.Printf("IP address: %s\n", s.LocalAddressString())

	s.startAdvertiser()
	s.startUpdates()

	if err := sessions.Start(); err != nil {
		mux.Println("Error starting session server!")
		if s.log != nil {
			s.log.Warnf("session server: %v", err)
		}
	} else {
		mux.Println("Session server started")
	}

	s.setState(SupervisorStateRunning)
	if s.log != nil {
		s.log.Infof("supervisor running as %q", s.config.Hostname)
	}

	return mux, nil
}

// Tick runs one pass of the maintenance duties, in fixed order: the update
// channel, the session manager, the link state machine, then, while the
// link is up, the advertisement re-check and the gated background time
// sync. Every step is non-blocking; a failed duty is reported through the
// multiplexer and never aborts later duties or future ticks.
//
// The host must call Tick once per iteration of its main loop.
func (s *Supervisor) Tick() {
	if !s.State().IsRunning() {
		return
	}

	s.updates.Poll()
	s.sessions.Poll()
	s.machine.Poll()

	if !s.machine.State().Online() {
		return
	}

	now := s.nowFunc()

	if s.advertiser != nil && s.advertiseGate.Due(now) {
		if err := s.advertiser.EnsureAdvertised(discovery.ServiceTypeSession, discovery.ServiceTypeUpdate); err != nil {
			s.mux.Println("Error setting up service advertisement!")
			if s.log != nil {
				s.log.Warnf("advertisement: %v", err)
			}
		}
		s.advertiseGate.Mark(now)
	}

	if s.resyncGate.Due(now) {
		launched := s.clock.ResyncBackground(func(ok bool) {
			if !ok {
				s.mux.Println("Time sync failed")
			}
		})
		if launched {
			s.resyncGate.Mark(now)
		}
	}
}

// Close shuts the supervisor down: the update channel, the advertised
// services and the session listener are stopped and pending diagnostics
// are flushed.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	switch {
	case s.state == SupervisorStateClosed:
		s.mu.Unlock()
		return ErrAlreadyClosed
	case !s.state.CanClose():
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = SupervisorStateClosing
	s.mu.Unlock()

	// Stop in reverse start order.
	if err := s.updates.Close(); err != nil && s.log != nil {
		s.log.Warnf("closing update channel: %v", err)
	}
	if s.advertiser != nil {
		s.advertiser.Close()
	}
	s.sessions.Stop()
	s.mux.Flush()

	s.setState(SupervisorStateClosed)
	if s.log != nil {
		s.log.Info("supervisor closed")
	}

	return nil
}

// State returns the current supervisor lifecycle state.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLinkUp reports whether the radio currently holds a link.
func (s *Supervisor) IsLinkUp() bool {
	return s.radio.LinkUp()
}

// LocalAddressString returns the device's network address, or "0.0.0.0"
// while the link is down.
func (s *Supervisor) LocalAddressString() string {
	ip := s.radio.LocalAddr()
	if ip == nil {
		return "0.0.0.0"
	}
	return ip.String()
}

// LinkState returns the link machine's lifecycle state.
func (s *Supervisor) LinkState() link.State {
	if s.machine == nil {
		return link.StateIdle
	}
	return s.machine.State()
}

// Reconnect requests a forced reconnection sequence. A request while one
// is already in progress is reported and ignored.
func (s *Supervisor) Reconnect() {
	if !s.State().IsRunning() {
		return
	}
	if !s.machine.State().CanReconnect() {
		s.mux.Println("Reconnection already in progress...")
		return
	}
	s.mux.Println("Manually reconnecting...")
	s.machine.Reconnect()
}

// Callback registration. Each method overwrites its slot; passing nil
// clears it.

// OnPortalStart registers the function called when the configuration
// portal starts.
func (s *Supervisor) OnPortalStart(f func()) {
	s.mu.Lock()
	s.onPortalStart = f
	s.mu.Unlock()
}

// OnUpdateStart registers the function called when an update begins.
func (s *Supervisor) OnUpdateStart(f func()) {
	s.mu.Lock()
	s.onUpdateStart = f
	s.mu.Unlock()
}

// OnUpdateProgress registers the function called as an update progresses.
// It fires at most once per 20% of the transfer.
func (s *Supervisor) OnUpdateProgress(f func()) {
	s.mu.Lock()
	s.onUpdateProgress = f
	s.mu.Unlock()
}

// OnUpdateEnd registers the function called when an update completes.
func (s *Supervisor) OnUpdateEnd(f func()) {
	s.mu.Lock()
	s.onUpdateEnd = f
	s.mu.Unlock()
}

// Time surface. All calls delegate to the clock service and report
// sentinels until a sync has succeeded.

// Resync blocks for a bounded time to load the zone and query the time
// servers, and reports whether network time was obtained. It refuses to
// run while the link is down. A success also re-arms the periodic
// background sync.
//
// tz is an IANA zone name such as "Europe/Amsterdam". With no servers the
// clock package defaults are used.
func (s *Supervisor) Resync(tz string, servers ...string) bool {
	if !s.IsLinkUp() {
		return false
	}
	ok := s.clock.Resync(tz, servers...)
	if ok {
		s.resyncGate.Mark(s.nowFunc())
	}
	return ok
}

// ClockValid reports whether a time sync has succeeded since startup.
func (s *Supervisor) ClockValid() bool {
	return s.clock.Valid()
}

// Epoch returns seconds since the Unix epoch, or 0 before the first
// successful sync.
func (s *Supervisor) Epoch(tzOverride string) int64 {
	return s.clock.Epoch(tzOverride)
}

// Date returns the current date as "2006-01-02", or the unavailable
// sentinel.
func (s *Supervisor) Date(tzOverride string) string {
	return s.clock.Date(tzOverride)
}

// DateDMY returns the current date as "02-01-2006", or the unavailable
// sentinel.
func (s *Supervisor) DateDMY(tzOverride string) string {
	return s.clock.DateDMY(tzOverride)
}

// TimeOfDay returns the current time as "15:04:05", or the unavailable
// sentinel.
func (s *Supervisor) TimeOfDay(tzOverride string) string {
	return s.clock.TimeOfDay(tzOverride)
}

// DateTime returns "2006-01-02 15:04:05", or the unavailable sentinel.
func (s *Supervisor) DateTime(tzOverride string) string {
	return s.clock.DateTime(tzOverride)
}

// DateTimeDMY returns "02-01-2006 15:04:05", or the unavailable sentinel.
func (s *Supervisor) DateTimeDMY(tzOverride string) string {
	return s.clock.DateTimeDMY(tzOverride)
}

// Mux returns the output multiplexer, or nil before Begin.
// Exposed for testing and advanced use cases.
func (s *Supervisor) Mux() *diag.Mux {
	return s.mux
}

// Link returns the link state machine, or nil before Begin.
// Exposed for testing and advanced use cases.
func (s *Supervisor) Link() *link.Machine {
	return s.machine
}

// Sessions returns the remote session manager, or nil before Begin.
// Exposed for testing and advanced use cases.
func (s *Supervisor) Sessions() *remote.Manager {
	return s.sessions
}

// Advertiser returns the service advertiser, or nil before Begin.
// Exposed for testing and advanced use cases.
func (s *Supervisor) Advertiser() *discovery.Advertiser {
	return s.advertiser
}

// Clock returns the synchronized clock service.
// Exposed for testing and advanced use cases.
func (s *Supervisor) Clock() *clock.Service {
	return s.clock
}

// LoggerFactory returns the supervisor's logger factory.
// Returns nil if no logger factory was configured.
func (s *Supervisor) LoggerFactory() logging.LoggerFactory {
	return s.config.LoggerFactory
}

// startAdvertiser registers the session and update services over mDNS.
// Failures are reported and tolerated: the device works without
// advertisement, and the maintenance tick re-checks it.
func (s *Supervisor) startAdvertiser() {
	sessionPort := s.config.SessionPort
	if addr, ok := s.sessions.LocalAddr().(*net.TCPAddr); ok && addr.Port > 0 {
		sessionPort = addr.Port
	}

	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Hostname:      s.config.Hostname,
		SessionPort:   sessionPort,
		UpdatePort:    s.config.UpdatePort,
		ServerFactory: s.config.ServerFactory,
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		s.mux.Println("Error setting up service advertisement!")
		if s.log != nil {
			s.log.Warnf("advertiser: %v", err)
		}
		return
	}
	s.advertiser = adv

	s.mux.Printf("Advertising as [%s.local]\n", s.config.Hostname)
	if err := adv.EnsureAdvertised(discovery.ServiceTypeSession, discovery.ServiceTypeUpdate); err != nil {
		s.mux.Println("Error setting up service advertisement!")
		if s.log != nil {
			s.log.Warnf("advertisement: %v", err)
		}
	}
	s.advertiseGate.Mark(s.nowFunc())
}

// startUpdates arms the update channel with the operator-facing hooks.
func (s *Supervisor) startUpdates() {
	hooks := update.Hooks{
		OnStart: func() {
			s.mu.Lock()
			s.updateStep = 0
			s.mu.Unlock()
			s.mux.Println("Starting update")
			s.updateStart()
		},
		OnProgress: s.updateProgress,
		OnEnd: func() {
			s.mux.Printf("\nUpdate complete!\n")
			s.updateEnd()
		},
		OnError: func(err error) {
			s.mux.Printf("Update error: %v\n", err)
		},
	}

	if err := s.updates.Begin(s.config.Hostname, hooks); err != nil {
		s.mux.Println("Error starting update channel!")
		if s.log != nil {
			s.log.Warnf("update channel: %v", err)
		}
		return
	}
	s.mux.Println("Update channel ready")
}

// updateProgress prints the transfer percentage and forwards to the
// registered slot once per 20% step.
func (s *Supervisor) updateProgress(received, total int64) {
	if total <= 0 {
		return
	}
	s.mux.Printf("Progress: %d%%\r", received*100/total)

	step := int(received * 5 / total)
	s.mu.Lock()
	fire := step > s.updateStep
	if fire {
		s.updateStep = step
	}
	f := s.onUpdateProgress
	s.mu.Unlock()

	if fire && f != nil {
		f()
	}
}

// onLinkStateChanged reports reconnection edges to the operator. The
// initial connection is reported by Begin itself.
func (s *Supervisor) onLinkStateChanged(old, next link.State) {
	switch {
	case old == link.StateConnected && next == link.StateReconnecting:
		s.mux.Println("Link lost.")
	case old == link.StateReconnecting && next == link.StateConnected:
		s.mux.Printf("Link restored. IP address: %s\n", s.LocalAddressString())
	}
}

// onLinkFatal runs the restart escalation once the reconnection ceiling is
// reached.
func (s *Supervisor) onLinkFatal(err error) {
	s.mux.Println("Max reconnect attempts reached! Restarting...")
	s.mux.Flush()
	if s.log != nil {
		s.log.Errorf("fatal: %v", err)
	}
	s.config.Restart()
}

func (s *Supervisor) setState(next SupervisorState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func (s *Supervisor) portalStart() {
	s.mu.Lock()
	f := s.onPortalStart
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

func (s *Supervisor) updateStart() {
	s.mu.Lock()
	f := s.onUpdateStart
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

func (s *Supervisor) updateEnd() {
	s.mu.Lock()
	f := s.onUpdateEnd
	s.mu.Unlock()
	if f != nil {
		f()
	}
}
