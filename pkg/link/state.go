package link

// State represents the lifecycle state of the network link.
type State int

const (
	// StateIdle is the initial state before Begin runs.
	StateIdle State = iota

	// StateConnecting means the initial association with stored credentials
	// is in progress.
	StateConnecting

	// StatePortal means the configuration portal is running because the
	// stored credentials did not produce a link.
	StatePortal

	// StateConnected means the link is up.
	StateConnected

	// StateReconnecting means the link dropped and bounded reconnection
	// attempts are in progress.
	StateReconnecting
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StatePortal:
		return "Portal"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the state is one of the defined states.
func (s State) IsValid() bool {
	return s >= StateIdle && s <= StateReconnecting
}

// Online returns true if the link is usable in this state.
func (s State) Online() bool {
	return s == StateConnected
}

// CanReconnect returns true if a manual reconnect request is honored in
// this state.
func (s State) CanReconnect() bool {
	return s == StateConnected
}
