package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroadcastReachesPeers(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	c := NewMemory()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	require.NoError(t, a.Connect(b.ID()))
	require.NoError(t, a.Connect(c.ID()))
	assert.Equal(t, 2, a.PeerCount())
	assert.Equal(t, 1, b.PeerCount(), "connect wires the reverse direction")

	frame := []byte{1, 2, 3}
	require.NoError(t, a.Broadcast(frame))

	for _, peer := range []*MemoryTransport{b, c} {
		select {
		case got := <-peer.Inbound():
			assert.Equal(t, frame, got)
		default:
			t.Fatalf("peer %s received nothing", peer.ID())
		}
	}
}

func TestMemoryBroadcastCopiesFrames(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	defer a.Close()
	defer b.Close()
	require.NoError(t, a.Connect(b.ID()))

	frame := []byte{1, 2, 3}
	require.NoError(t, a.Broadcast(frame))
	frame[0] = 0xFF

	got := <-b.Inbound()
	assert.Equal(t, []byte{1, 2, 3}, got, "delivered frame must not alias the sender's buffer")
}

func TestMemoryBroadcastNoPeers(t *testing.T) {
	a := NewMemory()
	defer a.Close()
	assert.ErrorIs(t, a.Broadcast([]byte{1}), ErrNoPeers)
}

func TestMemoryConnectUnknownPeer(t *testing.T) {
	a := NewMemory()
	defer a.Close()
	assert.Error(t, a.Connect("mem-does-not-exist"))
}

func TestMemoryPeerEvents(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Connect(b.ID()))

	select {
	case ev := <-a.Events():
		assert.True(t, ev.Connected)
		assert.Equal(t, b.ID(), ev.Addr)
		assert.Equal(t, 1, ev.Peers)
	default:
		t.Fatal("no peer event emitted")
	}

	// Reconnecting an existing peer is idempotent and emits nothing new.
	require.NoError(t, a.Connect(b.ID()))
	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}
