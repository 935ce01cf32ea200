package diag

import (
	"bytes"
	"testing"
)

// flushingWriter is an io.Writer with internal buffering.
type flushingWriter struct {
	bytes.Buffer
	flushed int
}

func (w *flushingWriter) Flush() error {
	w.flushed++
	return nil
}

func TestWriterSink(t *testing.T) {
	t.Run("always live", func(t *testing.T) {
		s := NewWriterSink(&bytes.Buffer{})
		if !s.Live() {
			t.Error("Live() = false, want true")
		}
	})

	t.Run("write passes through", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewWriterSink(&buf)
		n, err := s.Write([]byte("hello"))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != 5 {
			t.Errorf("Write() n = %d, want 5", n)
		}
		if buf.String() != "hello" {
			t.Errorf("buffer = %q, want %q", buf.String(), "hello")
		}
	})

	t.Run("flush forwards to buffering writers", func(t *testing.T) {
		w := &flushingWriter{}
		s := NewWriterSink(w)
		if err := s.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if w.flushed != 1 {
			t.Errorf("flushed = %d, want 1", w.flushed)
		}
	})

	t.Run("flush is a noop for plain writers", func(t *testing.T) {
		s := NewWriterSink(&bytes.Buffer{})
		if err := s.Flush(); err != nil {
			t.Errorf("Flush() error = %v", err)
		}
	})
}
