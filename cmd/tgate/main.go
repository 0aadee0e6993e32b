// Package main is the entry point for the termgate daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/termgate/termgate/cmd/tgate/app"
)

func main() {
	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
