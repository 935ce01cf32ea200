package uplink

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/backkem/uplink/pkg/clock"
	"github.com/backkem/uplink/pkg/diag"
	"github.com/backkem/uplink/pkg/discovery"
	"github.com/backkem/uplink/pkg/link"
)

// TestConfig returns a Config suitable for testing: a fake radio that
// connects on the first attempt, an in-memory local sink, an in-memory
// session listener, recorded service advertisement and no real restart.
// Timings are collapsed so tests run fast.
func TestConfig() Config {
	return Config{
		Hostname:        "test-device",
		Radio:           NewFakeRadio(1),
		LocalSink:       NewBufferSink(),
		SessionListener: NewPipeListener(),
		ServerFactory:   &FakeServerFactory{},
		Restart:         func() {},

		ConnectAttempts:     3,
		ConnectPollInterval: time.Nanosecond,
		SettleDelay:         time.Nanosecond,
		RetryInterval:       time.Minute,
		PortalTimeout:       time.Second,
		ResyncInterval:      -1,
	}
}

// FakeRadio is a scriptable in-memory link driver. TryConnect brings the
// link up once ConnectOnTry calls have happened; GoDown and GoUp simulate
// spontaneous link events and fire the armed notifications.
type FakeRadio struct {
	mu           sync.Mutex
	up           bool
	tries        int
	disconnects  int
	connectOnTry int
	onUp, onDown func()
}

// NewFakeRadio creates a FakeRadio whose link comes up on the Nth
// TryConnect. Zero means the link never comes up on its own.
func NewFakeRadio(connectOnTry int) *FakeRadio {
	return &FakeRadio{connectOnTry: connectOnTry}
}

// TryConnect records an association attempt.
func (r *FakeRadio) TryConnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tries++
	if r.connectOnTry > 0 && r.tries >= r.connectOnTry {
		r.up = true
	}
	return true
}

// LinkUp reports whether the fake link is up.
func (r *FakeRadio) LinkUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.up
}

// Disconnect tears the fake link down without firing a notification, the
// way a deliberate local disconnect does.
func (r *FakeRadio) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
	r.up = false
}

// LocalAddr returns a fixed address while the link is up.
func (r *FakeRadio) LocalAddr() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.up {
		return nil
	}
	return net.IPv4(192, 168, 1, 50)
}

// Notify arms the link event notifications.
func (r *FakeRadio) Notify(onUp, onDown func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUp, r.onDown = onUp, onDown
}

// GoDown simulates a spontaneous link loss and fires the down
// notification.
func (r *FakeRadio) GoDown() {
	r.mu.Lock()
	r.up = false
	f := r.onDown
	r.mu.Unlock()
	if f != nil {
		f()
	}
}

// GoUp simulates the link coming back and fires the up notification.
func (r *FakeRadio) GoUp() {
	r.mu.Lock()
	r.up = true
	f := r.onUp
	r.mu.Unlock()
	if f != nil {
		f()
	}
}

// SetConnectOnTry rescripts which TryConnect brings the link up, counted
// from the calls made so far.
func (r *FakeRadio) SetConnectOnTry(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > 0 {
		n += r.tries
	}
	r.connectOnTry = n
}

// Tries returns the number of TryConnect calls so far.
func (r *FakeRadio) Tries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tries
}

// FakePortal is a scriptable configuration portal. On success it brings
// the paired radio's link up, the way a real portal ends with working
// credentials.
type FakePortal struct {
	mu      sync.Mutex
	succeed bool
	radio   *FakeRadio
	started int
	timeout time.Duration
}

// NewFakePortal creates a FakePortal. radio may be nil.
func NewFakePortal(succeed bool, radio *FakeRadio) *FakePortal {
	return &FakePortal{succeed: succeed, radio: radio}
}

// Start records the portal run and reports the scripted outcome.
func (p *FakePortal) Start(timeout time.Duration) bool {
	p.mu.Lock()
	p.started++
	p.timeout = timeout
	ok := p.succeed
	radio := p.radio
	p.mu.Unlock()

	if ok && radio != nil {
		radio.GoUp()
	}
	return ok
}

// Started returns how many times the portal ran.
func (p *FakePortal) Started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// BufferSink is an always-live diagnostic sink that stores output in
// memory. Safe for concurrent use.
type BufferSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	opened bool
	rate   int
}

// NewBufferSink creates an empty BufferSink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// Open records the rate the supervisor opened the sink with.
func (b *BufferSink) Open(rate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = true
	b.rate = rate
	return nil
}

func (b *BufferSink) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Flush is a no-op: the buffer has no device behind it.
func (b *BufferSink) Flush() error {
	return nil
}

// Live always returns true.
func (b *BufferSink) Live() bool {
	return true
}

// String returns everything written so far.
func (b *BufferSink) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Opened reports whether Open ran, and with which rate.
func (b *BufferSink) Opened() (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened, b.rate
}

// FakeServerFactory records mDNS registrations instead of touching the
// network.
type FakeServerFactory struct {
	mu         sync.Mutex
	registered []string
	err        error
}

// FailWith makes every subsequent Register call fail with err.
func (f *FakeServerFactory) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Register records the service and returns an inert server.
func (f *FakeServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (discovery.MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.registered = append(f.registered, service)
	return fakeMDNSServer{}, nil
}

// Registered returns the service strings registered so far.
func (f *FakeServerFactory) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registered...)
}

type fakeMDNSServer struct{}

func (fakeMDNSServer) Shutdown() {}

// FakeSyncer is a clock.Syncer that answers with a fixed time.
type FakeSyncer struct {
	mu      sync.Mutex
	t       time.Time
	err     error
	queries int
}

// NewFakeSyncer creates a FakeSyncer answering t. A non-nil err makes
// every query fail instead.
func NewFakeSyncer(t time.Time, err error) *FakeSyncer {
	return &FakeSyncer{t: t, err: err}
}

// QueryTime returns the scripted time or error.
func (f *FakeSyncer) QueryTime(server string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.t, nil
}

// Queries returns the number of QueryTime calls so far.
func (f *FakeSyncer) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// PipeListener is a net.Listener whose connections are in-memory pipes,
// for exercising the session path without the OS network stack.
//
// net.Pipe connections are synchronous: a session write blocks until the
// test side reads it, so tests must keep a reader draining every dialed
// connection.
type PipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

// NewPipeListener creates an open PipeListener.
func NewPipeListener() *PipeListener {
	return &PipeListener{
		conns: make(chan net.Conn, 4),
		done:  make(chan struct{}),
	}
}

// Dial connects a new client to the listener and returns the client side.
func (l *PipeListener) Dial() (net.Conn, error) {
	client, server := net.Pipe()
	select {
	case l.conns <- server:
		return client, nil
	case <-l.done:
		client.Close()
		server.Close()
		return nil, net.ErrClosed
	}
}

// Accept waits for the next dialed connection.
func (l *PipeListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close releases the listener; blocked Accept and Dial calls fail.
func (l *PipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// Addr returns a placeholder address.
func (l *PipeListener) Addr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// Interface checks.
var (
	_ link.Radio                  = (*FakeRadio)(nil)
	_ link.Notifier               = (*FakeRadio)(nil)
	_ link.Portal                 = (*FakePortal)(nil)
	_ diag.Sink                   = (*BufferSink)(nil)
	_ diag.Opener                 = (*BufferSink)(nil)
	_ discovery.MDNSServerFactory = (*FakeServerFactory)(nil)
	_ clock.Syncer                = (*FakeSyncer)(nil)
	_ net.Listener                = (*PipeListener)(nil)
)
