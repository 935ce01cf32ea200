// Package discovery implements DNS-SD (mDNS) service advertisement for a
// device's network-facing endpoints.
//
// Two services are published: the remote diagnostic session endpoint and
// the firmware update channel. Advertisement is best-effort; a failed
// registration is reported to the caller but never takes the device down.
package discovery

// ServiceType identifies a published DNS-SD service.
type ServiceType int

// ServiceType constants.
const (
	// ServiceTypeUnknown represents an unknown or invalid service type.
	ServiceTypeUnknown ServiceType = iota

	// ServiceTypeSession is the remote diagnostic session endpoint.
	// Service type: _telnet._tcp
	ServiceTypeSession

	// ServiceTypeUpdate is the firmware update channel endpoint.
	// Service type: _uplink-ota._tcp
	ServiceTypeUpdate
)

// DNS-SD service type strings.
const (
	// ServiceSession is the DNS-SD service type for diagnostic sessions.
	ServiceSession = "_telnet._tcp"

	// ServiceUpdate is the DNS-SD service type for the update channel.
	ServiceUpdate = "_uplink-ota._tcp"

	// DefaultDomain is the default mDNS domain.
	DefaultDomain = "local."
)

// String returns a human-readable string for the service type.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeSession:
		return "Session"
	case ServiceTypeUpdate:
		return "Update"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the service type is valid.
func (s ServiceType) IsValid() bool {
	return s == ServiceTypeSession || s == ServiceTypeUpdate
}

// ServiceString returns the DNS-SD service type string.
func (s ServiceType) ServiceString() string {
	switch s {
	case ServiceTypeSession:
		return ServiceSession
	case ServiceTypeUpdate:
		return ServiceUpdate
	default:
		return ""
	}
}
