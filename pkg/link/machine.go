// Package link drives the lifecycle of a device's network association: the
// initial connect with a configuration-portal fallback, and bounded
// reconnection after a link loss.
//
// Asynchronous link notifications from the radio driver are queued and
// processed by the owner's Poll call, so every state transition happens on
// one goroutine. Begin is the single blocking call; Poll blocks only for
// the settle delay inside a reconnection attempt.
package link

import (
	"context"
	"sync"
	"time"

	"github.com/pion/logging"
)

// eventQueueSize bounds the pending link-event queue.
const eventQueueSize = 16

// DefaultConnectAttempts is the number of link polls during the initial
// connect before falling back to the portal.
const DefaultConnectAttempts = 20

// DefaultConnectPollInterval is the pause between initial link polls.
const DefaultConnectPollInterval = 500 * time.Millisecond

// DefaultPortalTimeout bounds the configuration portal.
const DefaultPortalTimeout = 240 * time.Second

// event is a link notification routed through the machine's queue.
type event int

const (
	eventLinkUp event = iota
	eventLinkDown
	eventReconnect
)

func (e event) String() string {
	switch e {
	case eventLinkUp:
		return "link-up"
	case eventLinkDown:
		return "link-down"
	case eventReconnect:
		return "reconnect-request"
	default:
		return "unknown"
	}
}

// MachineConfig configures a Machine.
type MachineConfig struct {
	// Radio drives the physical link. Required.
	Radio Radio

	// Portal runs credential configuration when the stored credentials do
	// not produce a link. Optional; without one, a failed initial connect
	// returns ErrConnectFailed instead.
	Portal Portal

	// MaxAttempts bounds reconnection attempts per episode (default: 5).
	MaxAttempts int

	// RetryInterval paces time-driven reconnection attempts (default: 5s).
	RetryInterval time.Duration

	// SettleDelay is the pause between Disconnect and TryConnect within a
	// reconnection attempt (default: 500ms). A documented blocking point.
	SettleDelay time.Duration

	// ConnectAttempts is the number of link polls during the initial
	// connect before falling back to the portal (default: 20).
	ConnectAttempts int

	// ConnectPollInterval is the pause between initial link polls
	// (default: 500ms).
	ConnectPollInterval time.Duration

	// PortalTimeout bounds the configuration portal (default: 240s).
	PortalTimeout time.Duration

	// Callbacks - Optional
	OnStateChanged    func(old, next State)
	OnConnectProgress func(poll int)         // once per initial link poll
	OnPortalStart     func()                 // portal is about to run
	OnAttempt         func(attempt, max int) // once per reconnection attempt
	OnFatal           func(err error)        // retries exhausted; fires from Poll

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// applyDefaults fills in default values for unset fields.
func (c *MachineConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = DefaultConnectAttempts
	}
	if c.ConnectPollInterval <= 0 {
		c.ConnectPollInterval = DefaultConnectPollInterval
	}
	if c.PortalTimeout <= 0 {
		c.PortalTimeout = DefaultPortalTimeout
	}
}

// Machine is the connection lifecycle state machine.
//
// OnLinkUp, OnLinkDown and Reconnect only enqueue; Begin and Poll perform
// the transitions. State may be read from any goroutine.
type Machine struct {
	config MachineConfig
	radio  Radio
	portal Portal
	retry  *RetryPolicy
	log    logging.LeveledLogger

	events chan event

	mu    sync.Mutex
	state State

	nowFunc func() time.Time
	sleep   func(d time.Duration)
}

// NewMachine creates a Machine in StateIdle.
func NewMachine(config MachineConfig) (*Machine, error) {
	if config.Radio == nil {
		return nil, ErrRadioRequired
	}
	config.applyDefaults()

	m := &Machine{
		config:  config,
		radio:   config.Radio,
		portal:  config.Portal,
		retry:   NewRetryPolicy(config.MaxAttempts, config.RetryInterval),
		events:  make(chan event, eventQueueSize),
		state:   StateIdle,
		nowFunc: time.Now,
		sleep:   time.Sleep,
	}

	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("link")
	}

	// Arm the driver boundary: radios that emit asynchronous link events
	// deliver them straight into the machine's event queue.
	if n, ok := config.Radio.(Notifier); ok {
		n.Notify(m.OnLinkUp, m.OnLinkDown)
	}

	return m, nil
}

// Begin runs the initial connection sequence: one association attempt with
// the stored credentials, a bounded wait for the link, then the
// configuration portal as fallback. This is the machine's one blocking
// call; ctx cancels the bounded wait but not a portal already running.
//
// ErrPortalTimeout means the portal ran and timed out; the caller should
// treat it as fatal. ErrConnectFailed means no portal was configured and
// the credentials did not produce a link; the machine returns to StateIdle
// and Begin may be called again.
func (m *Machine) Begin(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyBegun
	}
	m.mu.Unlock()

	m.setState(StateConnecting)
	m.radio.TryConnect()

	for i := 0; i < m.config.ConnectAttempts && !m.radio.LinkUp(); i++ {
		m.sleep(m.config.ConnectPollInterval)
		if err := ctx.Err(); err != nil {
			m.setState(StateIdle)
			return err
		}
		if m.config.OnConnectProgress != nil {
			m.config.OnConnectProgress(i + 1)
		}
	}

	if m.radio.LinkUp() {
		m.becomeConnected()
		return nil
	}

	if m.portal == nil {
		m.setState(StateIdle)
		return ErrConnectFailed
	}

	m.setState(StatePortal)
	if m.config.OnPortalStart != nil {
		m.config.OnPortalStart()
	}
	if !m.portal.Start(m.config.PortalTimeout) {
		return ErrPortalTimeout
	}

	m.becomeConnected()
	return nil
}

// OnLinkUp records a link-up notification. Safe to call from any
// goroutine; never blocks.
func (m *Machine) OnLinkUp() {
	m.enqueue(eventLinkUp)
}

// OnLinkDown records a link-down notification. Safe to call from any
// goroutine; never blocks.
func (m *Machine) OnLinkDown() {
	m.enqueue(eventLinkDown)
}

// Reconnect requests a forced reconnection sequence. Honored only while
// Connected; a request during an ongoing reconnection is ignored.
func (m *Machine) Reconnect() {
	m.enqueue(eventReconnect)
}

// Poll drains pending link events and advances the machine. Must be called
// from the owner goroutine.
func (m *Machine) Poll() {
	for {
		select {
		case e := <-m.events:
			m.handle(e)
		default:
			m.timeDriven()
			return
		}
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the reconnection attempt count of the current episode.
func (m *Machine) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry.Attempts()
}

func (m *Machine) enqueue(e event) {
	select {
	case m.events <- e:
	default:
		if m.log != nil {
			m.log.Warnf("event queue full, dropping %s", e)
		}
	}
}

func (m *Machine) handle(e event) {
	switch e {
	case eventLinkUp:
		m.handleLinkUp()
	case eventLinkDown:
		m.handleLinkDown()
	case eventReconnect:
		m.handleReconnectRequest()
	}
}

func (m *Machine) handleLinkUp() {
	switch m.State() {
	case StateConnecting, StatePortal, StateReconnecting:
		m.becomeConnected()
	default:
		// duplicate notification
	}
}

func (m *Machine) handleLinkDown() {
	switch m.State() {
	case StateConnected:
		if m.log != nil {
			m.log.Warn("link lost")
		}
		m.setState(StateReconnecting)
		m.attempt()
	case StateReconnecting:
		// previous attempt failed; the counter carries over
		m.attempt()
	default:
		// Idle, Connecting, Portal: Begin owns the link here
	}
}

func (m *Machine) handleReconnectRequest() {
	if !m.State().CanReconnect() {
		if m.log != nil {
			m.log.Debug("reconnect request ignored")
		}
		return
	}
	m.setState(StateReconnecting)
	m.attempt()
}

// timeDriven advances the machine when no event arrived. Link transitions
// the driver never reported are observed from the radio directly, and in
// Reconnecting a due retry interval runs the next attempt.
func (m *Machine) timeDriven() {
	switch m.State() {
	case StateConnected:
		if !m.radio.LinkUp() {
			// the link dropped without a notification
			m.handleLinkDown()
		}
	case StateReconnecting:
		if m.radio.LinkUp() {
			// the radio recovered without a notification
			m.becomeConnected()
			return
		}

		m.mu.Lock()
		due := m.retry.Due(m.nowFunc())
		m.mu.Unlock()

		if due {
			m.attempt()
		}
	}
}

// attempt runs one reconnection attempt, or escalates when the ceiling is
// reached.
func (m *Machine) attempt() {
	m.mu.Lock()
	ok := m.retry.Begin(m.nowFunc())
	if !ok {
		escalate := m.retry.Escalate()
		m.mu.Unlock()
		if escalate {
			if m.log != nil {
				m.log.Errorf("giving up after %d reconnection attempts", m.retry.MaxAttempts())
			}
			if m.config.OnFatal != nil {
				m.config.OnFatal(ErrRetriesExhausted)
			}
		}
		return
	}
	attempt := m.retry.Attempts()
	m.mu.Unlock()

	if m.log != nil {
		m.log.Infof("reconnection attempt %d/%d", attempt, m.retry.MaxAttempts())
	}
	if m.config.OnAttempt != nil {
		m.config.OnAttempt(attempt, m.retry.MaxAttempts())
	}

	m.radio.Disconnect()
	m.sleep(m.config.SettleDelay)
	m.radio.TryConnect()
}

// becomeConnected records a confirmed connection and resets the retry
// episode.
func (m *Machine) becomeConnected() {
	m.mu.Lock()
	m.retry.Reset()
	m.mu.Unlock()
	m.setState(StateConnected)
}

func (m *Machine) setState(next State) {
	m.mu.Lock()
	old := m.state
	if old == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	m.mu.Unlock()

	if m.log != nil {
		m.log.Infof("state %s -> %s", old, next)
	}
	if m.config.OnStateChanged != nil {
		m.config.OnStateChanged(old, next)
	}
}
