package transport

import (
	"fmt"
	"sync"
)

// MemoryTransport is an in-process transport for tests and multi-device
// simulations. Call Connect(otherTransport.ID()) to wire two transports
// together. A global registry maps string IDs to MemoryTransport
// instances.
type MemoryTransport struct {
	id       string
	incoming chan []byte
	events   chan PeerEvent

	mu    sync.RWMutex
	peers map[string]*MemoryTransport
}

var (
	registryMu sync.Mutex
	registry   = map[string]*MemoryTransport{}
	nextID     int
)

// NewMemory creates a MemoryTransport with a unique ID.
func NewMemory() *MemoryTransport {
	registryMu.Lock()
	nextID++
	id := fmt.Sprintf("mem-%d", nextID)
	t := &MemoryTransport{
		id:       id,
		incoming: make(chan []byte, 1024),
		events:   make(chan PeerEvent, 64),
		peers:    make(map[string]*MemoryTransport),
	}
	registry[id] = t
	registryMu.Unlock()
	return t
}

func (t *MemoryTransport) ID() string { return t.id }

func (t *MemoryTransport) Start() error { return nil }

func (t *MemoryTransport) Connect(addr string) error {
	registryMu.Lock()
	other, ok := registry[addr]
	registryMu.Unlock()
	if !ok {
		return fmt.Errorf("memory transport: no peer with id %q", addr)
	}

	t.addPeer(other)
	other.addPeer(t) // wire the reverse so the other side can send back
	return nil
}

func (t *MemoryTransport) addPeer(other *MemoryTransport) {
	t.mu.Lock()
	_, already := t.peers[other.id]
	t.peers[other.id] = other
	n := len(t.peers)
	t.mu.Unlock()
	if !already {
		t.emit(PeerEvent{Addr: other.id, Connected: true, Peers: n})
	}
}

func (t *MemoryTransport) Broadcast(frame []byte) error {
	t.mu.RLock()
	peers := make([]*MemoryTransport, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	t.mu.RUnlock()

	if len(peers) == 0 {
		return ErrNoPeers
	}
	for _, p := range peers {
		// Copy per peer: frames must stay immutable once handed off.
		buf := make([]byte, len(frame))
		copy(buf, frame)
		select {
		case p.incoming <- buf:
		default:
		}
	}
	return nil
}

func (t *MemoryTransport) Inbound() <-chan []byte { return t.incoming }

func (t *MemoryTransport) Events() <-chan PeerEvent { return t.events }

func (t *MemoryTransport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

func (t *MemoryTransport) Close() error {
	registryMu.Lock()
	delete(registry, t.id)
	registryMu.Unlock()
	return nil
}

func (t *MemoryTransport) emit(ev PeerEvent) {
	select {
	case t.events <- ev:
	default:
	}
}
