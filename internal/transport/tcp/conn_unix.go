//go:build unix

package tcp

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/omochice/toy-socket-client/internal/transport"
)

// readRaw issues a single read(2) on the socket. The runtime keeps the
// descriptor in non-blocking mode, so EAGAIN means no data yet.
func (c *Conn) readRaw(buf []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	err := c.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), buf)
		// Never ask the poller to wait for readiness.
		return true
	})
	if err != nil {
		return 0, err
	}

	switch {
	case opErr == nil && n == 0:
		return 0, io.EOF
	case opErr == nil:
		return n, nil
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EWOULDBLOCK), errors.Is(opErr, unix.EINTR):
		return 0, transport.ErrWouldBlock
	default:
		return 0, os.NewSyscallError("read", opErr)
	}
}
