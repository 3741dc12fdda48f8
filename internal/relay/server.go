// Package relay implements a frame relay that the client can talk to. TCP and
// WebSocket peers connect on the same port and every frame a peer sends is
// forwarded to the others.
package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"

	"github.com/omochice/toy-socket-client/pkg/protocol"
)

// detectTimeout is how long a new connection may stay silent before it is
// treated as a raw TCP peer.
const detectTimeout = 200 * time.Millisecond

// Server accepts peers and relays frames between them.
type Server struct {
	address  string
	listener net.Listener
	hub      *Hub
	codec    protocol.Codec
	log      logrus.FieldLogger

	conns map[net.Conn]struct{}
	mu    sync.Mutex
	quit  chan struct{}
	wg    sync.WaitGroup
}

// New creates a relay listening on address. Frames are split with codec.
func New(address string, codec protocol.Codec, echo bool, log logrus.FieldLogger) *Server {
	return &Server{
		address: address,
		hub:     NewHub(echo, log),
		codec:   codec,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	s.listener = listener
	s.log.Infof("Relay started on %s (TCP and WebSocket)", listener.Addr().String())
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.WithError(err).Warn("Failed to accept connection")
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Start listens and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes the listener and every peer connection and waits for the
// handlers to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		return
	default:
	}
	close(s.quit)
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// PeerCount returns the number of registered peers.
func (s *Server) PeerCount() int {
	return s.hub.PeerCount()
}

// track records conn so Stop can close it. It reports false once stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// handleConnection determines whether the connection is a WebSocket upgrade or raw TCP.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	log := s.log.WithField("peer", conn.RemoteAddr().String())

	proto, reader, err := detectProtocol(conn, detectTimeout)
	if err != nil {
		log.WithError(err).Debug("Failed to peek connection")
		return
	}

	var peerConn Conn
	switch proto {
	case protocolHTTP:
		bc := &bufferedConn{Conn: conn, reader: reader}
		if _, err := ws.Upgrade(bc); err != nil {
			log.WithError(err).Warn("Failed to upgrade connection")
			return
		}
		peerConn = newWSConn(bc)
		log = log.WithField("transport", "websocket")
	default:
		peerConn = newTCPConn(conn, reader)
		log = log.WithField("transport", "tcp")
	}

	s.servePeer(NewPeer(peerConn), log)
}

// servePeer relays frames from peer until it disconnects.
func (s *Server) servePeer(peer *Peer, log logrus.FieldLogger) {
	s.hub.Register(peer)
	log.Info("Peer connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range peer.Outgoing {
			if err := peer.Conn.Write(frame); err != nil {
				log.WithError(err).Warn("Failed to send frame to peer")
				return
			}
		}
	}()

	defer func() {
		s.hub.Unregister(peer)
		close(peer.Outgoing)
		if err := peer.Conn.Close(); err != nil {
			log.WithError(err).Debug("Closing peer connection")
		}
		<-writerDone
		log.Info("Peer disconnected")
	}()

	var pending []byte
	for {
		data, err := peer.Conn.Read()
		if err != nil {
			log.WithError(err).Debug("Read ended")
			return
		}
		pending = append(pending, data...)

		consumed, err := s.relayFrames(pending, peer, log)
		pending = append(pending[:0], pending[consumed:]...)
		if err != nil {
			log.WithError(err).Warn("Dropping peer with unusable frame stream")
			return
		}
	}
}

// relayFrames broadcasts every complete frame in buf and returns the bytes consumed.
func (s *Server) relayFrames(buf []byte, from *Peer, log logrus.FieldLogger) (int, error) {
	consumed := 0
	for consumed < len(buf) {
		text, n, err := s.codec.Decode(buf[consumed:])
		switch {
		case err == nil:
			frame := append([]byte(nil), buf[consumed:consumed+n]...)
			consumed += n
			log.WithField("text", text).Debug("Relaying frame")
			s.hub.Broadcast(frame, from)
		case errors.Is(err, protocol.ErrIncomplete):
			return consumed, nil
		case errors.Is(err, protocol.ErrMalformed):
			consumed += n
			log.WithError(err).Warn("Dropping malformed frame")
		default:
			return consumed, err
		}
	}
	return consumed, nil
}
