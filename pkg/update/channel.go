// Package update defines the boundary to a firmware update channel.
//
// The transfer mechanics live behind the Channel interface; the supervisor
// arms a channel with lifecycle hooks, services it from the maintenance
// tick and closes it on shutdown.
package update

// Hooks are the lifecycle notifications a Channel delivers while an update
// is in flight. All fields are optional; implementations skip nil hooks.
type Hooks struct {
	// OnStart fires once when a transfer begins.
	OnStart func()

	// OnProgress fires repeatedly during a transfer with the bytes
	// received so far and the total image size. The reporting
	// granularity is up to the implementation.
	OnProgress func(received, total int64)

	// OnEnd fires once when a transfer completes successfully.
	OnEnd func()

	// OnError fires when a transfer fails. The channel stays armed; a
	// later transfer may still succeed.
	OnError func(err error)
}

// Channel is a firmware update transport.
//
// Begin arms the channel under the device's advertised hostname. Poll
// services the channel and must be cheap: it runs on the device's main
// loop every tick. Hooks fire from within Poll on the caller's goroutine.
type Channel interface {
	Begin(hostname string, hooks Hooks) error
	Poll()
	Close() error
}

// NopChannel is a Channel that never delivers an update. It stands in
// when a device is built without an update transport.
type NopChannel struct{}

func (NopChannel) Begin(hostname string, hooks Hooks) error { return nil }

func (NopChannel) Poll() {}

func (NopChannel) Close() error { return nil }
