package link

import (
	"net"
	"time"
)

// Radio is the physical link driver.
//
// Implementations translate their asynchronous link events into calls to
// Machine.OnLinkUp and Machine.OnLinkDown; both are safe to invoke from any
// goroutine. The methods below must not block beyond trivial bookkeeping:
// association runs in the driver's background and its outcome arrives as a
// link event.
type Radio interface {
	// TryConnect starts an association attempt with the stored credentials.
	// It reports whether the attempt could be started, not whether the link
	// came up.
	TryConnect() bool

	// LinkUp reports whether the link is currently established.
	LinkUp() bool

	// Disconnect tears the link down.
	Disconnect()

	// LocalAddr returns the device's current network address, or nil when
	// the link is down.
	LocalAddr() net.IP
}

// Notifier is implemented by radios that deliver asynchronous link events.
//
// NewMachine arms the notifier with the machine's OnLinkUp and OnLinkDown,
// so the driver boundary is the only place that translates framework
// callbacks into machine events.
type Notifier interface {
	// Notify registers the functions the radio must call on link events.
	// Both are safe to invoke from any goroutine and never block.
	Notify(onUp, onDown func())
}

// Portal runs an on-device configuration portal for entering credentials.
//
// Start blocks until the user completed configuration and the link came up,
// or until timeout passed, and reports which of the two happened. A portal
// timeout is treated as fatal by the caller.
type Portal interface {
	Start(timeout time.Duration) bool
}
