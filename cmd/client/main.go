package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/omochice/toy-socket-client/internal/client"
	"github.com/omochice/toy-socket-client/internal/logging"
	"github.com/omochice/toy-socket-client/pkg/protocol"
)

func main() {
	defaults := client.DefaultConfig()

	// Parse command-line flags
	serverAddr := flag.String("server", defaults.Address, "Peer address: host:port, tcp://host:port or ws://host:port/path")
	framing := flag.String("framing", defaults.Framing.String(), "Wire framing: fixed or varint")
	frameSize := flag.Int("frame-size", defaults.FrameSize, "Fixed frame size, or varint payload limit, in bytes")
	interval := flag.Duration("interval", defaults.Interval, "Pause between pump cycles")
	sentinel := flag.String("quit", defaults.Sentinel, "Input line that ends the session")
	shutdownTimeout := flag.Duration("shutdown-timeout", defaults.ShutdownTimeout, "How long to wait for queued messages on exit")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		logrus.Fatal(err)
	}

	mode, err := protocol.ParseFraming(*framing)
	if err != nil {
		log.Fatal(err)
	}

	cfg := client.Config{
		Address:         *serverAddr,
		Framing:         mode,
		FrameSize:       *frameSize,
		Interval:        *interval,
		Sentinel:        *sentinel,
		ShutdownTimeout: *shutdownTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := client.New(cfg, os.Stdin, os.Stdout, log)

	// Connect to server
	if err := session.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}

	err = session.Run(ctx)
	session.Printer().Info("Goodbye!")
	if err != nil {
		log.Errorf("Session ended: %v", err)
		stop()
		os.Exit(1)
	}
}
