package main

import (
	"chat-relay/internal"
	"chat-relay/runtime"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the server application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		var bindErr *runtime.BindError
		if errors.As(err, &bindErr) {
			fmt.Fprintln(os.Stderr, bindErr.Remediation())
		}
	}
	os.Exit(code)
}

// run wires the server and blocks until a signal arrives.
// Returning instead of exiting lets every defer run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	options, err := config.ServerOptions()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Start the server, a TCP bind failure ends here
	server := runtime.NewServer(log, options)
	if err := server.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("chat server failed to start: %w", err)
	}

	// 4. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 5. Final Cleanup
	if err := server.Shutdown(); err != nil {
		return exitRuntime, err
	}
	log.Info("Program stopped cleanly")
	return exitOK, nil
}
