package diag

import "io"

// Sink is a single destination for diagnostic output.
//
// Live is consulted before every delivery; a sink that reports false is
// silently skipped so output degrades to the remaining destinations.
type Sink interface {
	io.Writer

	// Flush pushes sink-internal buffered bytes to the underlying device.
	Flush() error

	// Live reports whether the sink can currently accept output.
	Live() bool
}

// Opener is implemented by sinks whose device needs explicit
// initialization, such as a serial console that must be opened at a
// configured baud rate before it accepts output.
type Opener interface {
	// Open readies the underlying device at the given rate.
	Open(rate int) error
}

// flusher is implemented by writers that buffer internally.
type flusher interface {
	Flush() error
}

// WriterSink adapts an io.Writer into an always-live Sink.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w as a Sink that is always live.
// If w implements Flush() error, Flush is forwarded to it.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush forwards to the wrapped writer when it buffers internally.
func (s *WriterSink) Flush() error {
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Live always returns true; a local writer has no connectivity to lose.
func (s *WriterSink) Live() bool {
	return true
}
