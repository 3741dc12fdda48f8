package client

import (
	"context"
	"strings"

	"github.com/omochice/toy-socket-client/internal/transport"
	"github.com/omochice/toy-socket-client/internal/transport/tcp"
	"github.com/omochice/toy-socket-client/internal/transport/ws"
)

// Dial opens the connection named by address. ws:// and wss:// URLs use
// WebSocket, anything else is a TCP host:port with an optional tcp:// prefix.
func Dial(ctx context.Context, address string) (transport.Conn, error) {
	switch {
	case strings.HasPrefix(address, "ws://"), strings.HasPrefix(address, "wss://"):
		return ws.Dial(ctx, address)
	default:
		return tcp.Dial(ctx, strings.TrimPrefix(address, "tcp://"))
	}
}
