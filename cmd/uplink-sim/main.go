// uplink-sim runs a Supervisor against a simulated radio so the whole
// connectivity surface can be exercised on a workstation: the connection
// sequence, diagnostic sessions, service advertisement and link-loss
// recovery.
//
// Usage:
//
//	uplink-sim [options]
//
// Options:
//
//	--hostname      Device name in banners and mDNS records (default: "uplink-sim")
//	--session-port  TCP port for diagnostic sessions (default: 2323)
//	--update-port   Advertised update channel port (default: 3232)
//	--tick          Main loop interval (default: 50ms)
//	--flap          Drop the link this often; 0 keeps it stable (default: 0)
//	--heartbeat     Print uptime this often; 0 stays silent (default: 10s)
//	--tz            IANA zone for an initial time sync (default: none)
//	--verbose       Enable debug logging
//
// Example:
//
//	uplink-sim --flap 30s &
//	telnet localhost 2323
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backkem/uplink/pkg/diag"
	"github.com/backkem/uplink/pkg/uplink"
	"github.com/pion/logging"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		hostname    string
		sessionPort int
		updatePort  int
		tick        time.Duration
		flap        time.Duration
		heartbeat   time.Duration
		tz          string
		verbose     bool
	)

	flags := pflag.NewFlagSet("uplink-sim", pflag.ContinueOnError)
	flags.StringVar(&hostname, "hostname", "uplink-sim", "device name in banners and mDNS records")
	flags.IntVar(&sessionPort, "session-port", 2323, "TCP port for diagnostic sessions")
	flags.IntVar(&updatePort, "update-port", 3232, "advertised update channel port")
	flags.DurationVar(&tick, "tick", 50*time.Millisecond, "main loop interval")
	flags.DurationVar(&flap, "flap", 0, "drop the link this often (0 = stable link)")
	flags.DurationVar(&heartbeat, "heartbeat", 10*time.Second, "print uptime this often (0 = silent)")
	flags.StringVar(&tz, "tz", "", "IANA zone for an initial time sync (empty = no sync)")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	var loggerFactory logging.LoggerFactory
	if verbose {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDebug
		loggerFactory = f
	}

	// The simulated radio associates on the first attempt; the flap timer
	// below rescripts it before every deliberate link drop.
	radio := uplink.NewFakeRadio(1)

	sup, err := uplink.NewSupervisor(uplink.Config{
		Hostname:      hostname,
		Radio:         radio,
		LocalSink:     diag.NewWriterSink(os.Stdout),
		SessionPort:   sessionPort,
		UpdatePort:    updatePort,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux, err := sup.Begin(ctx)
	if err != nil {
		return err
	}

	if tz != "" {
		if sup.Resync(tz) {
			mux.Printf("Time: %s\n", sup.DateTime(""))
		}
	}

	mux.Printf("Session port: %d (try: telnet localhost %d)\n", sessionPort, sessionPort)

	started := time.Now()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var flapCh <-chan time.Time
	if flap > 0 {
		flapTicker := time.NewTicker(flap)
		defer flapTicker.Stop()
		flapCh = flapTicker.C
	}

	var beatCh <-chan time.Time
	if heartbeat > 0 {
		beatTicker := time.NewTicker(heartbeat)
		defer beatTicker.Stop()
		beatCh = beatTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			mux.Println("Shutting down...")
			return sup.Close()
		case <-flapCh:
			radio.SetConnectOnTry(1) // the next reconnection attempt recovers
			radio.GoDown()
		case <-beatCh:
			mux.Printf("uptime %s\n", time.Since(started).Round(time.Second))
		case <-ticker.C:
			sup.Tick()
		}
	}
}
