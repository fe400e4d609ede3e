// eq3cli queries and modifies the state of an eQ-3 Bluetooth radiator
// thermostat.
//
// Every invocation connects, reads the current status and then runs the
// subcommand; without a subcommand it prints everything it knows:
//
//	eq3cli --mac 00:1A:22:0C:3D:4E
//	eq3cli --mac 00:1A:22:0C:3D:4E temp --target 21.5
//	eq3cli --backend websocket --url ws://esp32.local/ble --mac ... mode --target auto
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
