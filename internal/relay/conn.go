package relay

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn abstracts a peer connection for both TCP and WebSocket.
type Conn interface {
	// Read blocks until some bytes of the frame stream arrive.
	// Returns io.EOF when the peer closed.
	Read() ([]byte, error)

	// Write sends frame bytes to the peer.
	Write(data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// tcpConn carries the frame stream directly on the socket.
type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
	buf    []byte
}

func newTCPConn(conn net.Conn, reader *bufio.Reader) *tcpConn {
	return &tcpConn{conn: conn, reader: reader, buf: make([]byte, 4096)}
}

func (c *tcpConn) Read() ([]byte, error) {
	n, err := c.reader.Read(c.buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), c.buf[:n]...), nil
}

func (c *tcpConn) Write(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// closeTimeout bounds the write of the close frame. It also wakes a writer
// blocked on a peer that stopped reading.
const closeTimeout = 100 * time.Millisecond

// wsConn carries the frame stream in binary WebSocket messages.
type wsConn struct {
	conn net.Conn
	rw   io.ReadWriter
	mu   sync.Mutex
}

func newWSConn(conn *bufferedConn) *wsConn {
	c := &wsConn{conn: conn}
	c.rw = struct {
		io.Reader
		io.Writer
	}{conn, lockedWriter{c}}
	return c
}

type lockedWriter struct{ c *wsConn }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.conn.Write(p)
}

func (c *wsConn) Read() ([]byte, error) {
	data, err := wsutil.ReadClientBinary(c.rw)
	if _, ok := err.(wsutil.ClosedError); ok {
		return nil, io.EOF
	}
	return data, err
}

func (c *wsConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerBinary(c.conn, data)
}

func (c *wsConn) Close() error {
	deadlineErr := c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
	c.mu.Lock()
	frameErr := wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
	c.mu.Unlock()
	return errors.Join(deadlineErr, frameErr, c.conn.Close())
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
