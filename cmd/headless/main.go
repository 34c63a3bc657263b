// Package main provides the entry point for the headless Mac Mini setup CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/headless/pkg/headless/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()
	_ = logging.Close()

	os.Exit(exitCode(err))
}
