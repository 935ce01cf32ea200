package discovery

import "testing"

func TestServiceType_String(t *testing.T) {
	tests := []struct {
		s    ServiceType
		want string
	}{
		{ServiceTypeUnknown, "Unknown"},
		{ServiceTypeSession, "Session"},
		{ServiceTypeUpdate, "Update"},
		{ServiceType(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("ServiceType(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestServiceType_IsValid(t *testing.T) {
	tests := []struct {
		s    ServiceType
		want bool
	}{
		{ServiceTypeUnknown, false},
		{ServiceTypeSession, true},
		{ServiceTypeUpdate, true},
		{ServiceType(99), false},
	}

	for _, tt := range tests {
		if got := tt.s.IsValid(); got != tt.want {
			t.Errorf("ServiceType(%d).IsValid() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestServiceType_ServiceString(t *testing.T) {
	tests := []struct {
		s    ServiceType
		want string
	}{
		{ServiceTypeSession, "_telnet._tcp"},
		{ServiceTypeUpdate, "_uplink-ota._tcp"},
		{ServiceTypeUnknown, ""},
		{ServiceType(99), ""},
	}

	for _, tt := range tests {
		if got := tt.s.ServiceString(); got != tt.want {
			t.Errorf("ServiceType(%d).ServiceString() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
