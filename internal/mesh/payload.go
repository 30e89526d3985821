package mesh

// Payload is the kind-specific body of a message. The set of variants
// is closed: one concrete type per Kind, so kind handling stays
// exhaustive at compile time instead of stringly-keyed maps.
type Payload interface {
	// PayloadKind returns the Kind this payload belongs to.
	PayloadKind() Kind
}

// SOSPayload carries the distress position and an optional note.
type SOSPayload struct {
	Lat  float64
	Lon  float64
	Note string
}

func (SOSPayload) PayloadKind() Kind { return KindSOS }

// MedicalStatus tags a medical message with the sender's condition.
type MedicalStatus byte

const (
	MedicalStable   MedicalStatus = 1
	MedicalInjured  MedicalStatus = 2
	MedicalCritical MedicalStatus = 3
	MedicalTrapped  MedicalStatus = 4
)

func (s MedicalStatus) String() string {
	switch s {
	case MedicalStable:
		return "stable"
	case MedicalInjured:
		return "injured"
	case MedicalCritical:
		return "critical"
	case MedicalTrapped:
		return "trapped"
	}
	return "unknown"
}

// Valid reports whether s is a known status tag.
func (s MedicalStatus) Valid() bool { return s >= MedicalStable && s <= MedicalTrapped }

// MedicalStatusFromString maps a status name back to its tag.
func MedicalStatusFromString(v string) (MedicalStatus, bool) {
	for s := MedicalStable; s <= MedicalTrapped; s++ {
		if s.String() == v {
			return s, true
		}
	}
	return 0, false
}

// MedicalPayload carries a condition tag and free-form detail.
type MedicalPayload struct {
	Status MedicalStatus
	Detail string
}

func (MedicalPayload) PayloadKind() Kind { return KindMedical }

// TextPayload carries a free-text chat message.
type TextPayload struct {
	Text string
}

func (TextPayload) PayloadKind() Kind { return KindText }

// LocationPayload carries a position report.
type LocationPayload struct {
	Lat float64
	Lon float64
}

func (LocationPayload) PayloadKind() Kind { return KindLocation }

// BatteryPayload carries the sender's remaining battery percentage.
type BatteryPayload struct {
	Percent uint8
}

func (BatteryPayload) PayloadKind() Kind { return KindBattery }

// PingPayload is an empty liveness probe.
type PingPayload struct{}

func (PingPayload) PayloadKind() Kind { return KindPing }

// HazardPayload carries a located hazard advisory (fire front, flood
// line, blocked route) with a coarse severity.
type HazardPayload struct {
	Category string
	Severity uint8
	Lat      float64
	Lon      float64
}

func (HazardPayload) PayloadKind() Kind { return KindHazard }
