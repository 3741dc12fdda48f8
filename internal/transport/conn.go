// Package transport defines the connection used by the transport pump.
package transport

import "errors"

// ErrWouldBlock is returned by TryRead when no data is available yet.
var ErrWouldBlock = errors.New("transport: operation would block")

// Conn abstracts the single connection to the remote peer for both TCP and WebSocket.
type Conn interface {
	// TryRead copies whatever has arrived into buf without waiting.
	// Returns ErrWouldBlock when nothing has arrived and io.EOF once the peer closed.
	TryRead(buf []byte) (int, error)

	// Write sends all of data.
	Write(data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
