// Package transport defines the peer communication interface the relay
// engine consumes and provides implementations for field use (TCP, a
// stand-in for the radio link) and testing (in-memory).
//
// The engine never manages connection lifecycle: peers come and go under
// the transport's control and connectivity changes are pushed through
// Events rather than polled.
package transport

import "errors"

// ErrNoPeers reports a broadcast attempted with no connected peers.
// Non-fatal: the message has already been delivered locally and the
// flooding redundancy of other devices covers the retry.
var ErrNoPeers = errors.New("transport: no connected peers")

// PeerEvent is a connectivity-change push.
type PeerEvent struct {
	Addr      string
	Connected bool // false on disconnect
	Peers     int  // connected peer count after the change
}

// Transport abstracts peer-to-peer frame I/O. Broadcast is
// fire-and-forget relative to the engine's decision logic; a stalled
// peer must not block the caller.
type Transport interface {
	// Start begins listening for incoming peer connections.
	Start() error

	// Connect dials a peer by address. Idempotent if already connected.
	Connect(addr string) error

	// Broadcast sends frame to all currently connected peers.
	Broadcast(frame []byte) error

	// Inbound returns the stream of frames received from any peer.
	// Subscribed once, for the lifetime of the session.
	Inbound() <-chan []byte

	// PeerCount returns the number of currently connected peers.
	PeerCount() int

	// Events returns connectivity-change pushes.
	Events() <-chan PeerEvent

	// Close shuts down the transport and all peer connections.
	Close() error
}
