// Package ws provides the WebSocket transport for the client.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/toy-socket-client/internal/transport"
)

const (
	// inboxSize is the number of binary messages buffered ahead of TryRead.
	inboxSize = 16

	// closeTimeout bounds the write of the close frame.
	closeTimeout = 100 * time.Millisecond
)

type chunk struct {
	data []byte
	err  error
}

// Conn adapts a gobwas/ws client connection to transport.Conn.
// A background reader owned by Conn receives whole WebSocket messages so
// TryRead never has to stop half way through a WebSocket frame.
type Conn struct {
	conn    net.Conn
	reader  io.Reader
	writeMu sync.Mutex

	inbox   chan chunk
	pending []byte
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a WebSocket connection to a ws:// or wss:// URL.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	var r io.Reader = conn
	if br != nil {
		// The server already sent data after the handshake; br holds it.
		r = br
	}
	return newConn(conn, r), nil
}

// NewConn wraps an already upgraded client side connection.
func NewConn(conn net.Conn) *Conn {
	return newConn(conn, conn)
}

func newConn(conn net.Conn, r io.Reader) *Conn {
	c := &Conn{
		conn:   conn,
		reader: r,
		inbox:  make(chan chunk, inboxSize),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// lockedWriter serialises control frame replies with data frames.
type lockedWriter struct{ c *Conn }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}

func (c *Conn) readLoop() {
	rw := struct {
		io.Reader
		io.Writer
	}{c.reader, lockedWriter{c}}

	for {
		data, err := wsutil.ReadServerBinary(rw)
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			err = io.EOF
		}

		select {
		case c.inbox <- chunk{data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// TryRead implements transport.Conn.
func (c *Conn) TryRead(buf []byte) (int, error) {
	if len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		select {
		case ch := <-c.inbox:
			if ch.err != nil {
				c.err = ch.err
				return 0, ch.err
			}
			c.pending = ch.data
		default:
			return 0, transport.ErrWouldBlock
		}
	}

	n := copy(buf, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements transport.Conn.
// Each call is sent as one binary message.
func (c *Conn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientBinary(c.conn, data)
}

// Close implements transport.Conn.
// It sends a close frame and closes the socket; failures of either are returned.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		// The deadline also wakes a Write stuck on a peer that stopped reading.
		deadlineErr := c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
		c.writeMu.Lock()
		frameErr := wsutil.WriteClientMessage(c.conn, ws.OpClose, nil)
		c.writeMu.Unlock()
		err = errors.Join(deadlineErr, frameErr, c.conn.Close())
	})
	return err
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
