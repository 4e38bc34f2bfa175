//go:build !(rp2040 || rp2350)

// Command rtcsync-go runs the clock-sync daemon on a host: it opens the
// platform buses, applies an embedded board config and keeps the host clock
// and the RTC chips in step.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rtcsync-go/bus"
	"rtcsync-go/services/bridge"
	"rtcsync-go/services/config"
	"rtcsync-go/services/console"
	"rtcsync-go/services/hal"
	"rtcsync-go/services/heartbeat"
	"rtcsync-go/services/timesource"
	"rtcsync-go/x/timex"
)

func main() {
	plan := flag.String("plan", "host-sim", "resource plan: "+strings.Join(hal.Plans(), ", "))
	device := flag.String("config", "", "embedded config name (default: the plan name): "+strings.Join(config.Devices(), ", "))
	sysClock := flag.Bool("system-clock", false, "apply synced time to the system clock (needs CAP_SYS_TIME)")
	timeout := flag.Duration("timeout", 0, "per-transaction bus timeout (0 = provider default)")
	shell := flag.Bool("console", false, "serve the command console on stdin/stdout")
	flag.Parse()

	if *device == "" {
		*device = *plan
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(16)

	var opts []timesource.Option
	opts = append(opts, timesource.WithBus(b.NewConnection("time")))
	if *sysClock {
		opts = append(opts, timesource.WithSetter(timesource.SetSystemClock))
	}
	ts := timesource.New(timex.System{}, opts...)
	go ts.Run(ctx)

	go bridge.Start(ctx, b.NewConnection("bridge"))
	_ = (&heartbeat.Service{Clock: ts}).Start(ctx, b.NewConnection("heartbeat"))

	if *shell {
		con := console.New(b.NewConnection("console"), os.Stdin, os.Stdout)
		go func() {
			if err := con.Run(ctx); err != nil {
				println("[main] console:", err.Error())
			}
		}()
	}

	// config/* is retained; start order does not matter.
	config.NewConfigService().Start(config.WithDevice(ctx, *device), b.NewConnection("config"))

	println("[main] starting hal on plan", *plan, "with config", *device)
	err := hal.Run(ctx, b.NewConnection("hal"), hal.Options{
		Plan:    *plan,
		Timeout: *timeout,
		Time:    ts,
	})
	if err != nil {
		println("[main] hal:", err.Error())
		os.Exit(1)
	}
}
