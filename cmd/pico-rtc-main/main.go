//go:build rp2040 || rp2350

// Command pico-rtc-main is the RP2 firmware: the board RTC seeds the clock at
// boot, the UART bridge carries state and controls to a peer, and the USB
// serial port serves the command console.
package main

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"rtcsync-go/bus"
	"rtcsync-go/services/bridge"
	"rtcsync-go/services/config"
	"rtcsync-go/services/console"
	"rtcsync-go/services/hal"
	"rtcsync-go/services/heartbeat"
	"rtcsync-go/services/timesource"
	"rtcsync-go/x/timex"
)

const board = "pico"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)

	ts := timesource.New(timex.System{}, timesource.WithBus(b.NewConnection("time")))
	go ts.Run(ctx)

	bridge.UARTDial = func(_ context.Context, u bridge.UARTConfig) (io.ReadWriteCloser, error) {
		return hal.OpenUART(board, "uart0", uint32(u.Baud))
	}
	go bridge.Start(ctx, b.NewConnection("bridge"))
	_ = (&heartbeat.Service{Clock: ts}).Start(ctx, b.NewConnection("heartbeat"))

	con := console.New(b.NewConnection("console"), os.Stdin, os.Stdout)
	go con.Run(ctx)

	go printMemEvery(30 * time.Second)

	config.NewConfigService().Start(config.WithDevice(ctx, board), b.NewConnection("config"))

	println("[main] starting hal.Run …")
	if err := hal.Run(ctx, b.NewConnection("hal"), hal.Options{Plan: board, Time: ts}); err != nil {
		println("[main] hal:", err.Error())
	}
	select {}
}

// printMemEvery prints a compact snapshot of TinyGo runtime memory stats.
// Uses builtin println to avoid fmt overhead/allocations.
func printMemEvery(d time.Duration) {
	var ms runtime.MemStats
	for {
		time.Sleep(d)
		runtime.ReadMemStats(&ms)
		println(
			"[mem]",
			"alloc:", uint32(ms.Alloc),
			"heapInuse:", uint32(ms.HeapInuse),
			"mallocs:", uint32(ms.Mallocs),
			"frees:", uint32(ms.Frees),
		)
	}
}
