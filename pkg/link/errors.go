package link

import "errors"

// Package-level errors.
var (
	// ErrRadioRequired is returned when a Machine is created without a Radio.
	ErrRadioRequired = errors.New("link: radio is required")

	// ErrAlreadyBegun is returned when Begin is called more than once.
	ErrAlreadyBegun = errors.New("link: begin already ran")

	// ErrConnectFailed is returned when the stored credentials did not
	// produce a link and no portal is configured.
	ErrConnectFailed = errors.New("link: could not establish a link")

	// ErrPortalTimeout is returned when the configuration portal timed out
	// without producing a link. Fatal: the device should restart.
	ErrPortalTimeout = errors.New("link: configuration portal timed out")

	// ErrRetriesExhausted is reported when the reconnection attempt ceiling
	// is reached without the link coming back. Fatal: the device should
	// restart.
	ErrRetriesExhausted = errors.New("link: reconnection attempts exhausted")
)
