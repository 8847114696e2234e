package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"tldr/internal/apperr"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd(version, nil)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		cancel()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if apperr.IsAborted(err) {
		return 130
	}
	return 1
}
