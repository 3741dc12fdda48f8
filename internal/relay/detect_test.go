package relay

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name  string
		first []byte
		want  protocolType
	}{
		{name: "websocket upgrade", first: []byte("GET /ws HTTP/1.1\r\n"), want: protocolHTTP},
		{name: "other http method", first: []byte("OPTIONS * HTTP/1.1\r\n"), want: protocolHTTP},
		{name: "frame bytes", first: []byte("hello\x00\x00\x00"), want: protocolTCP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()

			go client.Write(tt.first)

			got, reader, err := detectProtocol(server, time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Peeked bytes are still readable.
			peeked, err := reader.Peek(4)
			require.NoError(t, err)
			assert.Equal(t, tt.first[:4], peeked)
		})
	}
}

func TestDetectProtocol_SilentPeerIsTCP(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	got, _, err := detectProtocol(server, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, protocolTCP, got)

	// The deadline was cleared again.
	go client.Write([]byte("late"))
	buf := make([]byte, 4)
	_, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "late", string(buf))
}
