package relay_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-socket-client/internal/logging"
	"github.com/omochice/toy-socket-client/internal/relay"
	wsconn "github.com/omochice/toy-socket-client/internal/transport/ws"
	"github.com/omochice/toy-socket-client/pkg/protocol"
)

func startRelay(t *testing.T, echo bool) *relay.Server {
	t.Helper()

	srv := relay.New("127.0.0.1:0", protocol.NewFixedCodec(0), echo, logging.Discard())
	require.NoError(t, srv.Listen())
	go srv.Serve()
	t.Cleanup(srv.Stop)
	return srv
}

func dialPeer(t *testing.T, srv *relay.Server, want int) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return srv.PeerCount() == want }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func encode(t *testing.T, text string) []byte {
	t.Helper()
	f, err := protocol.NewFixedCodec(0).Encode(text)
	require.NoError(t, err)
	return f
}

func readFrame(t *testing.T, conn net.Conn) string {
	t.Helper()

	buf := make([]byte, protocol.MaxMessageSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)

	text, _, err := protocol.NewFixedCodec(0).Decode(buf)
	require.NoError(t, err)
	return text
}

func TestServer_Addr(t *testing.T) {
	srv := startRelay(t, false)
	assert.NotEmpty(t, srv.Addr())
}

func TestServer_RelaysBetweenTCPPeers(t *testing.T) {
	srv := startRelay(t, false)
	alice := dialPeer(t, srv, 1)
	bob := dialPeer(t, srv, 2)

	_, err := alice.Write(encode(t, "hello bob"))
	require.NoError(t, err)

	assert.Equal(t, "hello bob", readFrame(t, bob))
}

func TestServer_ReassemblesSplitFrames(t *testing.T) {
	srv := startRelay(t, false)
	alice := dialPeer(t, srv, 1)
	bob := dialPeer(t, srv, 2)

	f := encode(t, "in two parts")
	_, err := alice.Write(f[:10])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = alice.Write(f[10:])
	require.NoError(t, err)

	assert.Equal(t, "in two parts", readFrame(t, bob))
}

func TestServer_Echo(t *testing.T) {
	srv := startRelay(t, true)
	alice := dialPeer(t, srv, 1)

	_, err := alice.Write(encode(t, "ping"))
	require.NoError(t, err)

	assert.Equal(t, "ping", readFrame(t, alice))
}

func TestServer_DropsMalformedFrames(t *testing.T) {
	srv := startRelay(t, false)
	alice := dialPeer(t, srv, 1)
	bob := dialPeer(t, srv, 2)

	bad := make([]byte, protocol.MaxMessageSize)
	bad[0] = 0xff
	_, err := alice.Write(append(bad, encode(t, "good")...))
	require.NoError(t, err)

	assert.Equal(t, "good", readFrame(t, bob))
}

func TestServer_WebSocketPeer(t *testing.T) {
	srv := startRelay(t, false)
	tcpPeer := dialPeer(t, srv, 1)

	wsPeer, err := wsconn.Dial(context.Background(), "ws://"+srv.Addr()+"/ws")
	require.NoError(t, err)
	defer wsPeer.Close()
	require.Eventually(t, func() bool { return srv.PeerCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	// WebSocket to TCP.
	require.NoError(t, wsPeer.Write(encode(t, "from ws")))
	assert.Equal(t, "from ws", readFrame(t, tcpPeer))

	// TCP to WebSocket.
	_, err = tcpPeer.Write(encode(t, "from tcp"))
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 128)
	require.Eventually(t, func() bool {
		n, err := wsPeer.TryRead(buf)
		if err == nil {
			got = append(got, buf[:n]...)
		}
		return len(got) >= protocol.MaxMessageSize
	}, 2*time.Second, 5*time.Millisecond)

	text, _, err := protocol.NewFixedCodec(0).Decode(got)
	require.NoError(t, err)
	assert.Equal(t, "from tcp", text)
}

func TestServer_UnregistersOnDisconnect(t *testing.T) {
	srv := startRelay(t, false)
	alice := dialPeer(t, srv, 1)

	alice.Close()
	require.Eventually(t, func() bool { return srv.PeerCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_Stop(t *testing.T) {
	srv := relay.New("127.0.0.1:0", protocol.NewFixedCodec(0), false, logging.Discard())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve() }()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.PeerCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	srv.Stop()
	srv.Stop()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}

	_, err = net.Dial("tcp", srv.Addr())
	assert.Error(t, err)

	// The peer connection was closed by Stop.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}
