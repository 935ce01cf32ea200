// Package diag provides the buffered diagnostic output path for a device.
//
// Output fans out to an ordered set of sinks: a local sink (serial console,
// log file) that is always present, and a remote sink that comes and goes
// with network connectivity. A small line buffer batches single-byte writes
// until a line terminator arrives or the buffer fills. Critical sections
// defer line-level flushing so multi-part records reach the sinks in one
// batch.
package diag

import (
	"fmt"
	"sync"

	"github.com/pion/logging"
)

// DefaultBufferSize is the line buffer capacity in bytes.
const DefaultBufferSize = 128

// MuxConfig configures a Mux.
type MuxConfig struct {
	// Sinks are the output destinations in fixed delivery order.
	// Index 0 is conventionally the always-live local sink.
	Sinks []Sink

	// BufferSize is the line buffer capacity in bytes (default: 128).
	BufferSize int

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Mux fans diagnostic output out to every live sink.
//
// Single-byte writes are buffered until a line terminator or a full buffer;
// block writes bypass the buffer after draining it, so ordering is
// preserved. Dead sinks are skipped without error: output to a device whose
// remote peer is gone still reaches the local console.
// Safe for concurrent use.
type Mux struct {
	mu       sync.Mutex
	sinks    []Sink
	buf      []byte
	n        int
	critical bool
	log      logging.LeveledLogger
}

// NewMux creates a Mux delivering to the given sinks.
func NewMux(config MuxConfig) (*Mux, error) {
	if len(config.Sinks) == 0 {
		return nil, ErrNoSinks
	}

	size := config.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	if size < 2 {
		return nil, ErrBufferSize
	}

	m := &Mux{
		sinks: append([]Sink(nil), config.Sinks...),
		buf:   make([]byte, size),
	}

	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("diag")
	}

	return m, nil
}

// WriteByte appends c to the line buffer.
//
// The buffer drains to the live sinks within the same call when the append
// fills it or when c is a line terminator; inside a critical section only
// the full-buffer drain applies. The returned error is always nil; the
// signature satisfies io.ByteWriter.
func (m *Mux) WriteByte(c byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.n] = c
	m.n++

	if m.n >= len(m.buf)-1 {
		m.writeBuffered()
		if !m.critical {
			m.flushSinks()
		}
		return nil
	}

	if c == '\n' && !m.critical {
		m.writeBuffered()
		m.flushSinks()
	}

	return nil
}

// Write sends p to every live sink, draining buffered bytes first so output
// order is preserved. The error is always nil: delivery to dead sinks is
// skipped silently and the local path is assumed reliable.
func (m *Mux) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeBuffered()
	m.writeSinks(p)
	if !m.critical {
		m.flushSinks()
	}

	return len(p), nil
}

// Flush drains any pending buffered bytes and flushes the live sinks. The
// sink-level flush is deferred while a critical section is open.
func (m *Mux) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeBuffered()
	if !m.critical {
		m.flushSinks()
	}
}

// BeginCritical suppresses line-terminator flushing so a multi-part record
// is delivered in one batch. Full-buffer drains still occur.
func (m *Mux) BeginCritical() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical = true
}

// EndCritical re-enables line-level flushing and forces a full drain.
func (m *Mux) EndCritical() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.critical = false
	m.writeBuffered()
	m.flushSinks()
}

// Printf formats and writes operator-facing output.
func (m *Mux) Printf(format string, args ...any) {
	fmt.Fprintf(m, format, args...)
}

// Println writes s followed by a line terminator.
func (m *Mux) Println(s string) {
	m.Printf("%s\n", s)
}

// Buffered returns the number of bytes waiting in the line buffer.
func (m *Mux) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// writeBuffered pushes buffered bytes to every live sink and clears the
// buffer. Callers must hold mu.
func (m *Mux) writeBuffered() {
	if m.n == 0 {
		return
	}
	m.writeSinks(m.buf[:m.n])
	m.n = 0
}

// writeSinks delivers p to every live sink. Callers must hold mu.
func (m *Mux) writeSinks(p []byte) {
	for _, s := range m.sinks {
		if !s.Live() {
			continue
		}
		if _, err := s.Write(p); err != nil && m.log != nil {
			m.log.Tracef("sink write failed: %v", err)
		}
	}
}

// flushSinks flushes every live sink. Callers must hold mu.
func (m *Mux) flushSinks() {
	for _, s := range m.sinks {
		if !s.Live() {
			continue
		}
		if err := s.Flush(); err != nil && m.log != nil {
			m.log.Tracef("sink flush failed: %v", err)
		}
	}
}
