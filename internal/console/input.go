package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultSentinel ends the session when typed on its own line.
const DefaultSentinel = ":quit"

// maxReadErrors bounds consecutive console read failures before giving up.
const maxReadErrors = 5

// ExitReason tells why the input loop stopped.
type ExitReason int

const (
	ExitQuit ExitReason = iota
	ExitEOF
	ExitQueueClosed
	ExitReadError
)

// String returns the string representation of ExitReason
func (r ExitReason) String() string {
	switch r {
	case ExitQuit:
		return "QUIT"
	case ExitEOF:
		return "EOF"
	case ExitQueueClosed:
		return "QUEUE_CLOSED"
	case ExitReadError:
		return "READ_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sender accepts outbound messages. *queue.Queue satisfies it.
type Sender interface {
	Send(msg string) error
}

// Input reads lines from the console and hands them to a Sender.
type Input struct {
	reader   *bufio.Reader
	sender   Sender
	sentinel string
	printer  *Printer
	log      logrus.FieldLogger
}

// NewInput creates an input loop reading from r. An empty sentinel selects DefaultSentinel.
func NewInput(r io.Reader, sender Sender, sentinel string, printer *Printer, log logrus.FieldLogger) *Input {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Input{
		reader:   bufio.NewReader(r),
		sender:   sender,
		sentinel: sentinel,
		printer:  printer,
		log:      log,
	}
}

// Run blocks reading lines until the sentinel, end of input, or a failed send.
func (in *Input) Run() (ExitReason, error) {
	failures := 0
	for {
		line, err := in.reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			failures++
			in.printer.Errorf("Error reading input: %v", err)
			if failures >= maxReadErrors {
				return ExitReadError, fmt.Errorf("reading console input: %w", err)
			}
			continue
		}
		failures = 0

		msg := strings.TrimSpace(line)
		switch {
		case msg == in.sentinel:
			in.log.Debug("Sentinel received, leaving input loop")
			return ExitQuit, nil
		case msg == "":
			// Nothing to send.
		default:
			if err := in.sender.Send(msg); err != nil {
				in.log.WithError(err).Debug("Outbound queue closed, leaving input loop")
				return ExitQueueClosed, nil
			}
		}

		if eof {
			return ExitEOF, nil
		}
	}
}
