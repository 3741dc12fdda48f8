// Package client ties the console input loop and the transport pump into
// one interactive session with a remote peer.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omochice/toy-socket-client/internal/console"
	"github.com/omochice/toy-socket-client/internal/pump"
	"github.com/omochice/toy-socket-client/internal/queue"
	"github.com/omochice/toy-socket-client/internal/transport"
	"github.com/omochice/toy-socket-client/pkg/protocol"
)

var (
	// ErrConnectionLost wraps the error that stopped the pump.
	ErrConnectionLost = errors.New("connection lost")

	// ErrShutdownTimeout is returned when queued messages could not be flushed
	// within ShutdownTimeout and the connection was closed under the pump.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// Config holds the session settings.
type Config struct {
	Address         string
	Framing         protocol.Framing
	FrameSize       int
	Interval        time.Duration
	Sentinel        string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:6000",
		Framing:         protocol.FramingFixed,
		FrameSize:       protocol.MaxMessageSize,
		Interval:        pump.DefaultInterval,
		Sentinel:        console.DefaultSentinel,
		ShutdownTimeout: 2 * time.Second,
	}
}

// Session is one run of the client against a single peer.
type Session struct {
	cfg     Config
	in      io.Reader
	printer *console.Printer
	log     logrus.FieldLogger
	conn    transport.Conn
}

// New creates a Session reading user input from in and printing to out.
func New(cfg Config, in io.Reader, out io.Writer, log logrus.FieldLogger) *Session {
	return &Session{
		cfg:     cfg,
		in:      in,
		printer: console.NewPrinter(out),
		log:     log,
	}
}

// Connect dials the peer. It may be called only once.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		return errors.New("already connected")
	}
	conn, err := Dial(ctx, s.cfg.Address)
	if err != nil {
		return err
	}
	s.conn = conn
	s.log.WithField("peer", conn.RemoteAddr()).Info("Connected")
	return nil
}

// Printer returns the console printer used by the session.
func (s *Session) Printer() *console.Printer {
	return s.printer
}

// Run starts the pump, runs the input loop until it ends or ctx is done, then
// closes the queue and waits for the pump to flush what was already typed. If
// the pump has not finished after ShutdownTimeout it is cancelled and the
// connection is closed, so a write stuck on a stalled peer returns too.
//
// The input loop runs on its own goroutine so cancellation is not held up by
// a blocked read of in. That goroutine ends on the next line or end of input.
func (s *Session) Run(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("not connected to server")
	}

	codec, err := protocol.NewCodec(s.cfg.Framing, s.cfg.FrameSize)
	if err != nil {
		s.conn.Close()
		return err
	}

	q := queue.New()
	p := pump.New(s.conn, q, codec, s.printer, s.log, pump.Config{Interval: s.cfg.Interval})

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- p.Run(pumpCtx)
	}()

	s.printer.Info(fmt.Sprintf("Enter message (or '%s' to exit):", s.sentinel()))
	input := console.NewInput(s.in, q, s.sentinel(), s.printer, s.log)

	inputDone := make(chan inputResult, 1)
	go func() {
		reason, err := input.Run()
		inputDone <- inputResult{reason: reason, err: err}
	}()

	var res inputResult
	select {
	case res = <-inputDone:
	case <-ctx.Done():
		res = inputResult{reason: console.ExitQuit}
		s.log.Debug("Session cancelled")
	}
	q.Close()
	s.log.WithField("reason", res.reason).Debug("Input loop finished")

	timedOut, pumpErr := s.join(pumpDone, cancel)
	if timedOut {
		return ErrShutdownTimeout
	}
	if pumpErr != nil && !errors.Is(pumpErr, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrConnectionLost, pumpErr)
	}
	return res.err
}

type inputResult struct {
	reason console.ExitReason
	err    error
}

// join waits for the pump. It reports true when the pump had to be forced down.
func (s *Session) join(pumpDone <-chan error, cancel context.CancelFunc) (bool, error) {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-pumpDone:
		return false, err
	case <-timer.C:
		s.log.Warn("Pump did not finish in time, closing connection")
		cancel()
		// A pump blocked in Write only returns once the connection is gone.
		if err := s.conn.Close(); err != nil {
			s.log.WithError(err).Debug("Closing connection")
		}
		<-pumpDone
		return true, nil
	}
}

func (s *Session) sentinel() string {
	if s.cfg.Sentinel == "" {
		return console.DefaultSentinel
	}
	return s.cfg.Sentinel
}
