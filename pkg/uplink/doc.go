// Package uplink provides a high-level API for supervising a device's
// network connectivity.
//
// This package is the top-level facade that ties together the lower-level
// components (link state machine, output multiplexer, remote session
// manager, service advertisement, update channel, synchronized clock) into
// an ergonomic, idiomatic Go API.
//
// # Supervising a Device
//
// To supervise a device, use NewSupervisor with a Config, call Begin once,
// then call Tick from the host's main loop:
//
//	sup, err := uplink.NewSupervisor(uplink.Config{
//	    Hostname:  "workshop-sensor",
//	    Radio:     myRadio,  // the physical link driver
//	    Portal:    myPortal, // optional credential portal
//	    LocalSink: diag.NewWriterSink(os.Stdout),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := sup.Begin(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sup.Close()
//
//	out.Println("boot complete")
//	for {
//	    sup.Tick()
//	    doDeviceWork(out)
//	}
//
// Begin blocks while the first connection (or the configuration portal) is
// in progress; everything afterwards is non-blocking. Diagnostics written
// to the returned multiplexer reach the local sink always and any attached
// remote session while it lasts.
//
// # Link Lifecycle
//
// A lost link is reconnected with bounded retries; when they are exhausted
// the supervisor escalates through Config.Restart, which by default exits
// the process so the host's service manager starts it fresh. The same
// escalation applies when the configuration portal times out.
//
// # Testing
//
// For testing, use TestConfig and the fake collaborators:
//
//	cfg := uplink.TestConfig()
//	sup, _ := uplink.NewSupervisor(cfg)
//	out, _ := sup.Begin(context.Background())
//	sup.Tick()
//
// See the cmd/uplink-sim command for a complete simulated device.
package uplink
