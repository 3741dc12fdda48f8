// Package tcp provides the TCP transport for the client.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/omochice/toy-socket-client/internal/transport"
)

// pollSlice is how long a deadline based TryRead waits for data.
const pollSlice = time.Millisecond

// Conn adapts net.Conn to transport.Conn.
type Conn struct {
	conn net.Conn
	raw  syscall.RawConn
}

// NewConn wraps a net.Conn. Connections backed by a socket descriptor are
// read with non-blocking system calls, others through a short read deadline.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{conn: conn}
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			c.raw = raw
		}
	}
	return c
}

// Dial connects to address over TCP.
func Dial(ctx context.Context, address string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewConn(conn), nil
}

// TryRead implements transport.Conn.
func (c *Conn) TryRead(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if c.raw != nil {
		return c.readRaw(buf)
	}
	return c.readDeadline(buf)
}

// readDeadline gives the read pollSlice to complete and maps the timeout to ErrWouldBlock.
func (c *Conn) readDeadline(buf []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollSlice)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(buf)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		if n > 0 {
			return n, nil
		}
		return 0, transport.ErrWouldBlock
	}
	return n, err
}

// Write implements transport.Conn.
func (c *Conn) Write(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

// Close implements transport.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
