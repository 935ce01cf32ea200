// Package remote accepts diagnostic sessions over TCP and retains exactly
// one: a newer client displaces the current one after a short notice. The
// retained session doubles as a diag.Sink, so the output multiplexer
// delivers to it for as long as it lasts. Session input is discarded; the
// read side only detects the peer going away.
package remote

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/backkem/uplink/pkg/diag"
	"github.com/pion/logging"
)

// DefaultPort is the default diagnostic session port.
const DefaultPort = 23

// pendingQueueSize bounds connections awaiting the next Poll.
const pendingQueueSize = 4

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Hostname appears in the session welcome banner.
	Hostname string

	// Listener is an optional pre-existing listener to use.
	// If nil, a new TCP listener is created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (default ":23").
	// Ignored if Listener is provided.
	ListenAddr string

	// Callbacks - Optional. Both fire from Poll on the owner goroutine.
	OnSessionAttached func(remoteAddr net.Addr)
	OnSessionClosed   func(remoteAddr net.Addr)

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// session is one attached diagnostic client.
type session struct {
	conn    net.Conn
	dropped atomic.Bool
}

// Manager owns the diagnostic session listener and the single retained
// session.
//
// The accept loop only queues connections; Poll, called from the owner's
// tick, performs attachment, displacement and reaping so session changes
// happen on one goroutine.
type Manager struct {
	config   ManagerConfig
	listener net.Listener
	log      logging.LeveledLogger
	pending  chan net.Conn
	closeCh  chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	current *session
	started bool
	closed  bool
}

// NewManager creates a Manager and binds its listener.
func NewManager(config ManagerConfig) (*Manager, error) {
	m := &Manager{
		config:   config,
		listener: config.Listener,
		pending:  make(chan net.Conn, pendingQueueSize),
		closeCh:  make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("remote")
	}

	if m.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = fmt.Sprintf(":%d", DefaultPort)
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		m.listener = listener
	}

	return m, nil
}

// Start begins accepting connections.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	if m.log != nil {
		m.log.Infof("listening for sessions on %s", m.listener.Addr())
	}

	m.wg.Add(1)
	go m.acceptLoop()

	return nil
}

// Stop closes the listener and the retained session.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	current := m.current
	m.current = nil
	m.mu.Unlock()

	close(m.closeCh)
	m.listener.Close()
	if current != nil {
		current.conn.Close()
	}
	m.wg.Wait()

	// The accept loop has exited, so nothing new can land on the queue.
	// Drain connections that never got attached.
	for {
		select {
		case conn := <-m.pending:
			conn.Close()
		default:
			return nil
		}
	}
}

// Poll attaches pending clients, displacing the current session, and reaps
// a session whose peer went away. Non-blocking apart from small writes to
// already-connected sockets; called from the owner's tick.
func (m *Manager) Poll() {
	for {
		select {
		case conn := <-m.pending:
			m.attach(conn)
		default:
			m.reap()
			return
		}
	}
}

// Sink returns the manager's face as a diagnostic sink: live while a
// session is attached and reachable.
func (m *Manager) Sink() diag.Sink {
	return &remoteSink{m: m}
}

// HasSession reports whether a live session is attached.
func (m *Manager) HasSession() bool {
	s := m.session()
	return s != nil && !s.dropped.Load()
}

// RemoteAddr returns the attached peer's address, or nil without a session.
func (m *Manager) RemoteAddr() net.Addr {
	s := m.session()
	if s == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// LocalAddr returns the address the listener is bound to.
func (m *Manager) LocalAddr() net.Addr {
	return m.listener.Addr()
}

// acceptLoop queues incoming connections for the next Poll.
func (m *Manager) acceptLoop() {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.closeCh:
				return
			default:
				continue
			}
		}

		select {
		case m.pending <- conn:
		default:
			// Too many clients between ticks; refuse the newest.
			conn.Close()
			if m.log != nil {
				m.log.Warnf("pending queue full, refusing %s", conn.RemoteAddr())
			}
		}
	}
}

// attach makes conn the retained session, displacing the previous one.
func (m *Manager) attach(conn net.Conn) {
	s := &session{conn: conn}

	m.mu.Lock()
	old := m.current
	m.current = s
	m.mu.Unlock()

	if old != nil {
		if !old.dropped.Load() {
			fmt.Fprintf(old.conn, "Disconnected by a newer client.\r\n")
		}
		old.conn.Close()
		if m.log != nil {
			m.log.Infof("session from %s displaced", old.conn.RemoteAddr())
		}
		if m.config.OnSessionClosed != nil {
			m.config.OnSessionClosed(old.conn.RemoteAddr())
		}
	}

	fmt.Fprintf(conn, "Welcome to [%s]\r\n", m.config.Hostname)

	m.wg.Add(1)
	go m.readLoop(s)

	if m.log != nil {
		m.log.Infof("session attached from %s", conn.RemoteAddr())
	}
	if m.config.OnSessionAttached != nil {
		m.config.OnSessionAttached(conn.RemoteAddr())
	}
}

// reap clears the retained session once its peer is known to be gone.
func (m *Manager) reap() {
	m.mu.Lock()
	s := m.current
	if s == nil || !s.dropped.Load() {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	s.conn.Close()
	if m.log != nil {
		m.log.Infof("session from %s ended", s.conn.RemoteAddr())
	}
	if m.config.OnSessionClosed != nil {
		m.config.OnSessionClosed(s.conn.RemoteAddr())
	}
}

// readLoop discards session input and flags the session when the peer goes
// away.
func (m *Manager) readLoop(s *session) {
	defer m.wg.Done()

	buf := make([]byte, 256)
	for {
		if _, err := s.conn.Read(buf); err != nil {
			s.dropped.Store(true)
			return
		}
	}
}

func (m *Manager) session() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// remoteSink exposes the retained session to the output multiplexer.
type remoteSink struct {
	m *Manager
}

func (r *remoteSink) Write(p []byte) (int, error) {
	s := r.m.session()
	if s == nil || s.dropped.Load() {
		return len(p), nil
	}
	n, err := s.conn.Write(p)
	if err != nil {
		s.dropped.Store(true)
	}
	return n, err
}

// Flush is a no-op: session writes go straight to the socket.
func (r *remoteSink) Flush() error {
	return nil
}

func (r *remoteSink) Live() bool {
	return r.m.HasSession()
}
