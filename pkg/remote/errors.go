package remote

import "errors"

// Package-level sentinel errors for session operations.
var (
	// ErrClosed is returned when an operation is attempted on a stopped manager.
	ErrClosed = errors.New("remote: closed")

	// ErrAlreadyStarted is returned when Start is called on a running manager.
	ErrAlreadyStarted = errors.New("remote: already started")
)
