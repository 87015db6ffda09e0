package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newScanCommand(ctx, os.Stdout).Execute()
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "vin-scan:", err)
	}
	os.Exit(exitCode(err))
}
