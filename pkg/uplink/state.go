package uplink

// SupervisorState represents the lifecycle state of a Supervisor.
type SupervisorState int

const (
	// SupervisorStateCreated means the supervisor is built but Begin has
	// not run.
	SupervisorStateCreated SupervisorState = iota

	// SupervisorStateStarting means Begin is in progress: the initial
	// connection sequence is running.
	SupervisorStateStarting

	// SupervisorStateRunning means Begin succeeded and the supervisor is
	// being driven by Tick.
	SupervisorStateRunning

	// SupervisorStateClosing means Close has been called and shutdown is
	// in progress.
	SupervisorStateClosing

	// SupervisorStateClosed means the supervisor has been shut down.
	SupervisorStateClosed
)

// String returns a human-readable name for the state.
func (s SupervisorState) String() string {
	switch s {
	case SupervisorStateCreated:
		return "Created"
	case SupervisorStateStarting:
		return "Starting"
	case SupervisorStateRunning:
		return "Running"
	case SupervisorStateClosing:
		return "Closing"
	case SupervisorStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsRunning returns true if the supervisor is in its operational state.
func (s SupervisorState) IsRunning() bool {
	return s == SupervisorStateRunning
}

// CanBegin returns true if Begin can be called in this state.
func (s SupervisorState) CanBegin() bool {
	return s == SupervisorStateCreated
}

// CanClose returns true if Close can be called in this state.
func (s SupervisorState) CanClose() bool {
	return s == SupervisorStateRunning
}
