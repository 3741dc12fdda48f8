// Package console handles the interactive side of the client: reading lines
// typed by the user and printing traffic.
package console

import (
	"fmt"
	"io"
	"sync"
)

// Printer writes user facing lines. It is safe for concurrent use by the
// input loop and the transport pump.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Received prints a message that arrived from the peer.
func (p *Printer) Received(text string) {
	p.printf("Received: %s\n", text)
}

// Sent confirms a message was written to the peer.
func (p *Printer) Sent(text string) {
	p.printf("Sent: %s\n", text)
}

// Info prints a plain line.
func (p *Printer) Info(text string) {
	p.printf("%s\n", text)
}

// Errorf prints a formatted error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.printf(format+"\n", args...)
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
