// Package main is the entry point for the ranking-api server and CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmethakanbesel/ranking-api/cmd/ranking-api/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
