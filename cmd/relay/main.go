package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/omochice/toy-socket-client/internal/logging"
	"github.com/omochice/toy-socket-client/internal/relay"
	"github.com/omochice/toy-socket-client/pkg/protocol"
)

func main() {
	// Parse command-line flags
	port := flag.String("port", "127.0.0.1:6000", "Address to listen on for both TCP and WebSocket peers")
	framing := flag.String("framing", protocol.FramingFixed.String(), "Wire framing: fixed or varint")
	frameSize := flag.Int("frame-size", protocol.MaxMessageSize, "Fixed frame size, or varint payload limit, in bytes")
	echo := flag.Bool("echo", false, "Also send frames back to the peer that sent them")
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
	codec, err := protocol.NewCodec(mode, *frameSize)
	if err != nil {
		log.Fatal(err)
	}

	srv := relay.New(*port, codec, *echo, log)
	if err := srv.Listen(); err != nil {
		log.Fatal(err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Relay error: %v", err)
		}
	case sig := <-sigChan:
		log.Infof("Received signal %v, shutting down...", sig)
		srv.Stop()
	}

	log.Info("Relay stopped")
}
