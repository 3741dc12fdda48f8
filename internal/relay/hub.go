package relay

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// outgoingSize is the number of frames buffered per peer.
const outgoingSize = 32

// Peer is a connected client of the relay.
type Peer struct {
	Conn     Conn
	Outgoing chan []byte
}

// NewPeer creates a Peer with an empty outgoing buffer.
func NewPeer(conn Conn) *Peer {
	return &Peer{
		Conn:     conn,
		Outgoing: make(chan []byte, outgoingSize),
	}
}

// Hub tracks connected peers and fans frames out to them.
// TCP and WebSocket peers share a single Hub.
type Hub struct {
	peers map[*Peer]bool
	echo  bool
	log   logrus.FieldLogger
	mu    sync.RWMutex
}

// NewHub creates a Hub. With echo set, frames are also returned to their sender.
func NewHub(echo bool, log logrus.FieldLogger) *Hub {
	return &Hub{
		peers: make(map[*Peer]bool),
		echo:  echo,
		log:   log,
	}
}

// Register adds a peer to the hub.
func (h *Hub) Register(peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[peer] = true
}

// Unregister removes a peer from the hub.
func (h *Hub) Unregister(peer *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, peer)
}

// PeerCount returns number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues frame for every peer except from, unless echo is on.
// A peer whose buffer is full misses the frame.
func (h *Hub) Broadcast(frame []byte, from *Peer) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for peer := range h.peers {
		if peer == from && !h.echo {
			continue
		}
		select {
		case peer.Outgoing <- frame:
		default:
			h.log.WithField("peer", peer.Conn.RemoteAddr()).Warn("Peer buffer full, dropping frame")
		}
	}
}
