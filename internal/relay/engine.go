// Package relay implements the Beacon relay engine.
//
// Design:
//   - One goroutine consumes inbound frames from the transport and runs
//     each through the pipeline: decode, dedup, local delivery, relay
//     decision. A frame that fails decode is dropped and counted; a
//     duplicate ID is dropped silently.
//   - The dedup check and the record are a single atomic ledger call, so
//     two near-simultaneous deliveries of the same ID cannot both pass.
//   - Local delivery always precedes the relay decision and happens even
//     at hop budget zero: a terminal message still matters to this
//     device, it just must not propagate.
//   - Self-originated messages take the same path from the record step:
//     a device marks its own message as seen before broadcasting, so the
//     flood reflecting back from a neighbour is deduplicated like any
//     other duplicate.
//   - Broadcast failures are non-fatal. Delivery has already happened;
//     the flooding redundancy of other devices covers retransmission,
//     this device never retries a hop.
package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goodmartian/beacon/internal/ledger"
	"github.com/goodmartian/beacon/internal/mesh"
	"github.com/goodmartian/beacon/internal/metrics"
	"github.com/goodmartian/beacon/internal/transport"
	"github.com/goodmartian/beacon/internal/wire"
)

const subscriberBuffer = 64

// Config configures an Engine.
type Config struct {
	Self       mesh.DeviceID
	SelfName   string
	Transport  transport.Transport
	Window     time.Duration       // dedup window; defaults to ledger.DefaultWindow
	HopBudgets map[mesh.Kind]uint8 // origination overrides; nil keeps factory defaults
	Logger     *zap.Logger         // defaults to zap.NewNop()
	Metrics    *metrics.Metrics    // defaults to a fresh instance
	Clock      func() time.Time    // defaults to time.Now; tests inject
}

// Engine is the relay protocol engine for one device.
type Engine struct {
	self       mesh.DeviceID
	selfName   string
	tr         transport.Transport
	ledger     *ledger.Ledger
	hopBudgets map[mesh.Kind]uint8
	log        *zap.Logger
	met        *metrics.Metrics
	clock      func() time.Time

	subMu   sync.Mutex
	nextSub int
	subsAll map[int]chan mesh.Message
	subsSOS map[int]chan mesh.Message

	stopOnce sync.Once
	stopCh   chan struct{}
}

var zeroDevice mesh.DeviceID

// New creates an Engine. The transport is injected and owned by the
// caller's environment; the engine only consumes it.
func New(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("relay: transport is required")
	}
	if cfg.Self == zeroDevice {
		return nil, errors.New("relay: device identity is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		self:       cfg.Self,
		selfName:   cfg.SelfName,
		tr:         cfg.Transport,
		ledger:     ledger.New(cfg.Window),
		hopBudgets: cfg.HopBudgets,
		log:        cfg.Logger,
		met:        cfg.Metrics,
		clock:      cfg.Clock,
		subsAll:    make(map[int]chan mesh.Message),
		subsSOS:    make(map[int]chan mesh.Message),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start starts the transport and launches the receive and sweep loops.
func (e *Engine) Start() error {
	if err := e.tr.Start(); err != nil {
		return fmt.Errorf("relay: transport start: %w", err)
	}
	go e.receiveLoop()
	go e.sweepLoop()
	return nil
}

// Stop shuts down the engine and its transport.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.tr.Close() //nolint:errcheck
	})
}

// Self returns the engine's device identity.
func (e *Engine) Self() mesh.DeviceID { return e.self }

// SubscribeAll returns a stream of every locally-delivered message and
// a cancel func. Fan-out is non-blocking: a subscriber that stops
// draining loses messages (counted) rather than stalling the pipeline.
func (e *Engine) SubscribeAll() (<-chan mesh.Message, func()) {
	return e.subscribe(e.subsAll)
}

// SubscribeSOS returns the filtered stream of SOS messages.
func (e *Engine) SubscribeSOS() (<-chan mesh.Message, func()) {
	return e.subscribe(e.subsSOS)
}

func (e *Engine) subscribe(set map[int]chan mesh.Message) (<-chan mesh.Message, func()) {
	ch := make(chan mesh.Message, subscriberBuffer)
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	set[id] = ch
	e.subMu.Unlock()
	cancel := func() {
		e.subMu.Lock()
		delete(set, id)
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) receiveLoop() {
	inbound := e.tr.Inbound()
	for {
		select {
		case <-e.stopCh:
			return
		case frame := <-inbound:
			e.handleFrame(frame)
		}
	}
}

// sweepLoop periodically reclaims expired ledger entries and refreshes
// the size gauge. The ledger also sweeps opportunistically on insert;
// this loop bounds staleness when traffic goes quiet.
func (e *Engine) sweepLoop() {
	interval := e.ledger.Window() / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			removed := e.ledger.EvictExpired(e.clock())
			if removed > 0 {
				e.met.LedgerEvictions.Add(float64(removed))
			}
			e.met.LedgerSize.Set(float64(e.ledger.Len()))
		}
	}
}

// handleFrame runs one inbound frame through the pipeline.
func (e *Engine) handleFrame(frame []byte) {
	e.met.FramesReceived.Inc()

	m, err := wire.Decode(frame)
	if err != nil {
		e.met.DecodeErrors.WithLabelValues(decodeReason(err)).Inc()
		e.log.Debug("dropped undecodable frame",
			zap.Int("bytes", len(frame)), zap.Error(err))
		return
	}

	if !e.ledger.MarkSeen(m.ID, e.clock()) {
		e.met.DuplicatesDropped.Inc()
		return
	}
	e.met.LedgerSize.Set(float64(e.ledger.Len()))

	e.deliver(m)

	if !m.Relayable() {
		e.met.TerminalDrops.Inc()
		return
	}
	fwd, err := m.Relay(e.self)
	if err != nil {
		// Unreachable: Relayable was just checked. Loud, not graceful.
		e.log.Error("relay on exhausted message", zap.String("id", m.ID.String()), zap.Error(err))
		return
	}
	e.broadcast(fwd)
}

// Originate runs a locally-composed message through the self-originated
// path: record in the ledger, deliver locally, broadcast as-is with its
// full hop budget and empty relay path. The first relayer becomes the
// first path entry.
func (e *Engine) Originate(m mesh.Message) error {
	// Encode first: an oversized payload fails here, before any side
	// effect, so a too-large text never half-enters the pipeline.
	frame, err := wire.Encode(m)
	if err != nil {
		return fmt.Errorf("relay: originate: %w", err)
	}

	if !e.ledger.MarkSeen(m.ID, e.clock()) {
		return fmt.Errorf("relay: originate: duplicate message id %s", m.ID)
	}
	e.met.LedgerSize.Set(float64(e.ledger.Len()))
	e.met.Originated.WithLabelValues(m.Kind.String()).Inc()

	e.deliver(m)

	if err := e.tr.Broadcast(frame); err != nil {
		e.met.BroadcastFailures.Inc()
		e.log.Warn("broadcast failed", zap.String("id", m.ID.String()), zap.Error(err))
	}
	return nil
}

func (e *Engine) broadcast(m mesh.Message) {
	frame, err := wire.Encode(m)
	if err != nil {
		// A message that decoded must re-encode; anything else is a defect.
		e.log.Error("re-encode failed", zap.String("id", m.ID.String()), zap.Error(err))
		return
	}
	if err := e.tr.Broadcast(frame); err != nil {
		e.met.BroadcastFailures.Inc()
		e.log.Debug("broadcast failed", zap.String("id", m.ID.String()), zap.Error(err))
		return
	}
	e.met.Relayed.Inc()
}

// deliver fans m out to local consumers. Unconditional: hop budget does
// not gate local delivery.
func (e *Engine) deliver(m mesh.Message) {
	e.met.Delivered.WithLabelValues(m.Kind.String()).Inc()

	e.subMu.Lock()
	targets := make([]chan mesh.Message, 0, len(e.subsAll)+len(e.subsSOS))
	for _, ch := range e.subsAll {
		targets = append(targets, ch)
	}
	if m.Kind == mesh.KindSOS {
		for _, ch := range e.subsSOS {
			targets = append(targets, ch)
		}
	}
	e.subMu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- m:
		default:
			e.met.SubscriberDrops.Inc()
		}
	}
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, wire.ErrTruncated):
		return "truncated"
	case errors.Is(err, wire.ErrOversized):
		return "oversized"
	default:
		return "malformed"
	}
}
