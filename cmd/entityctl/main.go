// Command entityctl replays optimistic transaction scenarios, hydrates the entity
// store from an indexer mirror and derives deterministic entity ids.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "entityctl:", err)
		stop()
		os.Exit(1)
	}
}
