// Package pump moves messages between the outbound queue and the remote
// peer over a single connection.
package pump

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omochice/toy-socket-client/internal/queue"
	"github.com/omochice/toy-socket-client/internal/transport"
	"github.com/omochice/toy-socket-client/pkg/protocol"
)

const (
	// DefaultInterval is the pause between two cycles.
	DefaultInterval = 100 * time.Millisecond

	// DefaultReadSize is the number of bytes requested by one read attempt.
	DefaultReadSize = 4096
)

// Printer receives the traffic the pump handled.
type Printer interface {
	Received(text string)
	Sent(text string)
}

// Config tunes the pump cycle.
type Config struct {
	Interval time.Duration
	ReadSize int
}

// Pump owns the connection. Each cycle it makes one non-blocking read attempt,
// forwards at most one queued message, and then waits.
type Pump struct {
	conn     transport.Conn
	queue    *queue.Queue
	codec    protocol.Codec
	printer  Printer
	log      logrus.FieldLogger
	interval time.Duration

	scratch []byte
	pending []byte
}

// New creates a Pump. Zero Config fields select the defaults.
func New(conn transport.Conn, q *queue.Queue, codec protocol.Codec, printer Printer, log logrus.FieldLogger, cfg Config) *Pump {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultReadSize
	}
	return &Pump{
		conn:     conn,
		queue:    q,
		codec:    codec,
		printer:  printer,
		log:      log.WithField("peer", conn.RemoteAddr()),
		interval: cfg.Interval,
		scratch:  make([]byte, cfg.ReadSize),
	}
}

// Run cycles until the queue is closed and drained, the context is cancelled,
// or the connection fails. The connection is closed and the queue's receive
// side released before Run returns, so later sends fail.
//
// Run returns nil on a normal shutdown, ctx.Err() on cancellation and the
// I/O or protocol error otherwise.
func (p *Pump) Run(ctx context.Context) error {
	defer func() {
		p.queue.CloseReceive()
		if err := p.conn.Close(); err != nil {
			p.log.WithError(err).Debug("Closing connection")
		}
	}()

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		done, err := p.cycle()
		if err != nil {
			return err
		}
		if done {
			p.log.Debug("Outbound queue closed, pump finished")
			return nil
		}

		if p.queue.Len() > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-p.queue.Ready():
		}
	}
}

// cycle performs one inbound and one outbound step.
func (p *Pump) cycle() (bool, error) {
	if err := p.receive(); err != nil {
		return true, err
	}
	return p.send()
}

// receive makes one read attempt and prints every frame completed by it.
// Partial frames stay buffered for the next cycle.
func (p *Pump) receive() error {
	n, readErr := p.conn.TryRead(p.scratch)
	if n > 0 {
		p.pending = append(p.pending, p.scratch[:n]...)
	}

	if err := p.drainFrames(); err != nil {
		return err
	}

	if readErr != nil && !errors.Is(readErr, transport.ErrWouldBlock) {
		p.log.WithError(readErr).Error("Connection lost")
		return fmt.Errorf("receive: %w", readErr)
	}
	return nil
}

func (p *Pump) drainFrames() error {
	consumed := 0
	defer func() {
		if consumed > 0 {
			p.pending = append(p.pending[:0], p.pending[consumed:]...)
		}
	}()

	for consumed < len(p.pending) {
		text, n, err := p.codec.Decode(p.pending[consumed:])
		switch {
		case err == nil:
			consumed += n
			p.printer.Received(text)
		case errors.Is(err, protocol.ErrIncomplete):
			return nil
		case errors.Is(err, protocol.ErrMalformed):
			consumed += n
			p.log.WithError(err).Warn("Skipping malformed frame")
		default:
			p.log.WithError(err).Error("Inbound stream unusable")
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}

// send forwards at most one queued message. It reports true once the
// producer closed the queue and nothing is left.
func (p *Pump) send() (bool, error) {
	msg, status := p.queue.TryReceive()
	switch status {
	case queue.Empty:
		return false, nil
	case queue.Closed:
		return true, nil
	}

	if len(msg) > p.codec.MaxPayload() {
		p.log.WithField("bytes", len(msg)).Warnf("Message longer than %d bytes", p.codec.MaxPayload())
	}

	frame, err := p.codec.Encode(msg)
	if err != nil {
		p.log.WithError(err).Warn("Dropping message")
		return false, nil
	}

	if err := p.conn.Write(frame); err != nil {
		p.log.Errorf("Failed sending: %v", err)
		return true, fmt.Errorf("send: %w", err)
	}

	p.printer.Sent(p.carried(frame, msg))
	return false, nil
}

// carried returns the text frame delivers to the peer, which is shorter than
// msg when the codec truncated it.
func (p *Pump) carried(frame []byte, msg string) string {
	text, _, err := p.codec.Decode(frame)
	if err != nil {
		return msg
	}
	return text
}
