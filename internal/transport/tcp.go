package transport

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/goodmartian/beacon/internal/wire"
)

// TCPTransport implements Transport over raw TCP connections. It stands
// in for the radio link on bench setups where every device is reachable
// over IP. Framing: each frame is preceded by a 2-byte big-endian
// length, capped at wire.MaxFrame.
type TCPTransport struct {
	listenAddr string
	listener   net.Listener
	incoming   chan []byte
	events     chan PeerEvent
	log        *zap.Logger

	mu    sync.RWMutex
	peers map[string]net.Conn // addr -> conn
}

// NewTCP creates a TCPTransport listening on listenAddr.
func NewTCP(listenAddr string, log *zap.Logger) *TCPTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &TCPTransport{
		listenAddr: listenAddr,
		incoming:   make(chan []byte, 512),
		events:     make(chan PeerEvent, 64),
		log:        log,
		peers:      make(map[string]net.Conn),
	}
}

func (t *TCPTransport) Start() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}
	t.listener = ln
	go t.acceptLoop()
	return nil
}

func (t *TCPTransport) Connect(addr string) error {
	t.mu.RLock()
	_, already := t.peers[addr]
	t.mu.RUnlock()
	if already {
		return nil
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	t.addPeer(addr, conn)
	return nil
}

func (t *TCPTransport) Broadcast(frame []byte) error {
	t.mu.RLock()
	conns := make([]net.Conn, 0, len(t.peers))
	for _, c := range t.peers {
		conns = append(conns, c)
	}
	t.mu.RUnlock()

	if len(conns) == 0 {
		return ErrNoPeers
	}

	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(frame)))
	for _, c := range conns {
		c.Write(hdr[:])  //nolint:errcheck
		c.Write(frame)   //nolint:errcheck
	}
	return nil
}

func (t *TCPTransport) Inbound() <-chan []byte { return t.incoming }

func (t *TCPTransport) Events() <-chan PeerEvent { return t.events }

func (t *TCPTransport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

func (t *TCPTransport) Close() error {
	if t.listener != nil {
		t.listener.Close()
	}
	t.mu.Lock()
	for _, c := range t.peers {
		c.Close()
	}
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.addPeer(conn.RemoteAddr().String(), conn)
	}
}

func (t *TCPTransport) addPeer(addr string, conn net.Conn) {
	t.mu.Lock()
	t.peers[addr] = conn
	n := len(t.peers)
	t.mu.Unlock()
	t.emit(PeerEvent{Addr: addr, Connected: true, Peers: n})
	go t.readLoop(addr, conn)
}

func (t *TCPTransport) readLoop(addr string, conn net.Conn) {
	defer func() {
		conn.Close()
		t.mu.Lock()
		delete(t.peers, addr)
		n := len(t.peers)
		t.mu.Unlock()
		t.emit(PeerEvent{Addr: addr, Connected: false, Peers: n})
	}()

	for {
		var hdr [2]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		sz := int(binary.BigEndian.Uint16(hdr[:]))
		if sz == 0 || sz > wire.MaxFrame {
			t.log.Warn("invalid frame length from peer",
				zap.String("peer", addr), zap.Int("length", sz))
			return
		}
		buf := make([]byte, sz)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		select {
		case t.incoming <- buf:
		default:
			// Drop if the inbound buffer is full (backpressure).
		}
	}
}

func (t *TCPTransport) emit(ev PeerEvent) {
	select {
	case t.events <- ev:
	default:
	}
}
