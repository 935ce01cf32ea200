package uplink

import "errors"

// Package-level errors.
var (
	// ErrHostnameRequired is returned when Hostname is empty.
	ErrHostnameRequired = errors.New("uplink: hostname is required")

	// ErrRadioRequired is returned when Radio is nil.
	ErrRadioRequired = errors.New("uplink: radio is required")

	// ErrLocalSinkRequired is returned when LocalSink is nil.
	ErrLocalSinkRequired = errors.New("uplink: local sink is required")

	// ErrAlreadyBegun is returned when Begin is called more than once.
	ErrAlreadyBegun = errors.New("uplink: begin already ran")

	// ErrNotStarted is returned when an operation requires a running
	// supervisor.
	ErrNotStarted = errors.New("uplink: supervisor not started")

	// ErrAlreadyClosed is returned when Close is called on a closed
	// supervisor.
	ErrAlreadyClosed = errors.New("uplink: supervisor already closed")
)
