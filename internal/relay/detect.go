package relay

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"os"
	"time"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

// httpPrefixes are the first four bytes of the HTTP request methods.
var httpPrefixes = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
	[]byte("OPTI"),
	[]byte("PATC"),
	[]byte("DELE"),
	[]byte("CONN"),
}

// detectProtocol peeks at the first bytes to tell a WebSocket upgrade request
// from raw frames. A client that stays silent for timeout is raw TCP: the
// console client only writes once the user types something.
func detectProtocol(conn net.Conn, timeout time.Duration) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocolTCP, reader, err
	}
	peek, err := reader.Peek(4)
	if resetErr := conn.SetReadDeadline(time.Time{}); resetErr != nil {
		return protocolTCP, reader, resetErr
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return protocolTCP, reader, nil
		}
		return protocolTCP, reader, err
	}

	for _, prefix := range httpPrefixes {
		if bytes.HasPrefix(peek, prefix) {
			return protocolHTTP, reader, nil
		}
	}
	return protocolTCP, reader, nil
}
