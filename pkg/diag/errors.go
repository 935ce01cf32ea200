package diag

import "errors"

// Package-level errors.
var (
	// ErrNoSinks is returned when a Mux is created without any sink.
	ErrNoSinks = errors.New("diag: at least one sink is required")

	// ErrBufferSize is returned when the configured buffer size is too small.
	ErrBufferSize = errors.New("diag: buffer size must be at least 2 bytes")
)
