// Package mesh defines the message model for the Beacon relay protocol.
//
// A Message is an immutable value. Relaying never mutates a message in
// place: each hop produces a derived copy with a decremented hop budget
// and the relaying device appended to the path. Two messages with the
// same ID are the same event regardless of payload differences; the
// dedup layer keys on ID alone.
package mesh

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeviceID identifies a device installation. It is generated once and
// persisted; every message originated or relayed by the device carries it.
type DeviceID uuid.UUID

// NewDeviceID generates a random DeviceID.
func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

func (d DeviceID) String() string { return uuid.UUID(d).String() }

// ParseDeviceID parses the canonical UUID string form.
func ParseDeviceID(s string) (DeviceID, error) {
	u, err := uuid.Parse(s)
	return DeviceID(u), err
}

// MarshalText implements encoding.TextMarshaler.
func (d DeviceID) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DeviceID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*d = DeviceID(u)
	return nil
}

// MessageID identifies a message event. Assigned at origination and
// stable across all hops.
type MessageID uuid.UUID

// NewMessageID generates a random MessageID.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

func (m MessageID) String() string { return uuid.UUID(m).String() }

// Kind discriminates message payloads. The numeric values are part of
// the wire contract and must never be reassigned.
type Kind byte

const (
	KindSOS      Kind = 1
	KindMedical  Kind = 2
	KindText     Kind = 3
	KindLocation Kind = 4
	KindBattery  Kind = 5
	KindPing     Kind = 6
	KindHazard   Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindSOS:
		return "sos"
	case KindMedical:
		return "medical"
	case KindText:
		return "text"
	case KindLocation:
		return "location"
	case KindBattery:
		return "battery"
	case KindPing:
		return "ping"
	case KindHazard:
		return "hazard"
	}
	return "unknown"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k >= KindSOS && k <= KindHazard }

// KindFromString maps a kind name back to its Kind. Used by the config
// layer for per-kind overrides.
func KindFromString(s string) (Kind, bool) {
	for k := KindSOS; k <= KindHazard; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Priority orders messages for local queuing and display. It never
// affects relay admission: every relayable message is relayed.
type Priority byte

const (
	PriorityLow      Priority = 0
	PriorityMedium   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Profile is the per-kind origination default: the priority a kind is
// tagged with and the hop budget it starts from.
type Profile struct {
	Priority  Priority
	HopBudget uint8
}

var profiles = map[Kind]Profile{
	KindSOS:      {PriorityCritical, 10},
	KindMedical:  {PriorityHigh, 8},
	KindText:     {PriorityHigh, 6},
	KindLocation: {PriorityHigh, 5},
	KindBattery:  {PriorityLow, 3},
	KindPing:     {PriorityLow, 2},
	KindHazard:   {PriorityMedium, 6},
}

// DefaultProfile returns the origination defaults for k.
func DefaultProfile(k Kind) Profile { return profiles[k] }

// ErrExhaustedTTL is returned by Relay on a message whose hop budget is
// already zero. The relay engine checks Relayable first, so hitting this
// error indicates a logic defect in the caller.
var ErrExhaustedTTL = errors.New("mesh: hop budget exhausted")

// Message is a single mesh packet. Immutable once constructed.
type Message struct {
	ID         MessageID
	SenderID   DeviceID
	SenderName string // advisory label, never used for routing or dedup
	Kind       Kind
	Priority   Priority
	HopBudget  uint8
	CreatedAt  time.Time
	Payload    Payload
	RelayPath  []DeviceID // devices that forwarded this message, in order
}

// New builds a message of the given kind with that kind's default
// priority and hop budget. CreatedAt is truncated to millisecond
// precision, the resolution the wire format carries.
func New(kind Kind, sender DeviceID, senderName string, payload Payload) Message {
	prof := profiles[kind]
	return Message{
		ID:         NewMessageID(),
		SenderID:   sender,
		SenderName: senderName,
		Kind:       kind,
		Priority:   prof.Priority,
		HopBudget:  prof.HopBudget,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Payload:    payload,
	}
}

// NewSOS builds an SOS message carrying the sender's position.
func NewSOS(sender DeviceID, senderName string, lat, lon float64, note string) Message {
	return New(KindSOS, sender, senderName, SOSPayload{Lat: lat, Lon: lon, Note: note})
}

// NewMedical builds a medical-status message.
func NewMedical(sender DeviceID, senderName string, status MedicalStatus, detail string) Message {
	return New(KindMedical, sender, senderName, MedicalPayload{Status: status, Detail: detail})
}

// NewText builds a free-text message.
func NewText(sender DeviceID, senderName string, text string) Message {
	return New(KindText, sender, senderName, TextPayload{Text: text})
}

// NewLocation builds a position-report message.
func NewLocation(sender DeviceID, senderName string, lat, lon float64) Message {
	return New(KindLocation, sender, senderName, LocationPayload{Lat: lat, Lon: lon})
}

// NewBattery builds a battery-level report.
func NewBattery(sender DeviceID, senderName string, percent uint8) Message {
	return New(KindBattery, sender, senderName, BatteryPayload{Percent: percent})
}

// NewPing builds a liveness probe.
func NewPing(sender DeviceID, senderName string) Message {
	return New(KindPing, sender, senderName, PingPayload{})
}

// NewHazard builds a hazard advisory.
func NewHazard(sender DeviceID, senderName string, category string, severity uint8, lat, lon float64) Message {
	return New(KindHazard, sender, senderName, HazardPayload{Category: category, Severity: severity, Lat: lat, Lon: lon})
}

// WithHopBudget returns a copy of m starting from a different hop
// budget. Intended for origination-time overrides from config.
func (m Message) WithHopBudget(budget uint8) Message {
	m.HopBudget = budget
	return m
}

// Relayable reports whether the message may propagate further.
// A message with zero budget is still delivered locally.
func (m Message) Relayable() bool { return m.HopBudget > 0 }

// Relay derives the copy of m that the device `by` forwards: same ID,
// hop budget decremented by one, `by` appended to the relay path. The
// receiver is left untouched. Returns ErrExhaustedTTL when the budget
// is already zero.
func (m Message) Relay(by DeviceID) (Message, error) {
	if m.HopBudget == 0 {
		return Message{}, ErrExhaustedTTL
	}
	out := m
	out.HopBudget--
	out.RelayPath = make([]DeviceID, 0, len(m.RelayPath)+1)
	out.RelayPath = append(out.RelayPath, m.RelayPath...)
	out.RelayPath = append(out.RelayPath, by)
	return out, nil
}
