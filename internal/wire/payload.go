package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/goodmartian/beacon/internal/mesh"
)

// Per-kind payload layouts. Fixed fields first, a single free-form
// string last so its length falls out of the payload length.
//
//	sos       lat 8 | lon 8 | note...
//	medical   status 1 | detail...
//	text      text...
//	location  lat 8 | lon 8
//	battery   percent 1
//	ping      (empty)
//	hazard    severity 1 | lat 8 | lon 8 | category...

func encodePayload(p mesh.Payload) ([]byte, error) {
	switch v := p.(type) {
	case mesh.SOSPayload:
		buf := make([]byte, 0, 16+len(v.Note))
		buf = appendFloat(buf, v.Lat)
		buf = appendFloat(buf, v.Lon)
		return append(buf, v.Note...), nil
	case mesh.MedicalPayload:
		if !v.Status.Valid() {
			return nil, fmt.Errorf("%w: medical status %d", ErrMalformed, v.Status)
		}
		buf := make([]byte, 0, 1+len(v.Detail))
		buf = append(buf, byte(v.Status))
		return append(buf, v.Detail...), nil
	case mesh.TextPayload:
		return []byte(v.Text), nil
	case mesh.LocationPayload:
		buf := make([]byte, 0, 16)
		buf = appendFloat(buf, v.Lat)
		return appendFloat(buf, v.Lon), nil
	case mesh.BatteryPayload:
		return []byte{v.Percent}, nil
	case mesh.PingPayload:
		return nil, nil
	case mesh.HazardPayload:
		buf := make([]byte, 0, 17+len(v.Category))
		buf = append(buf, v.Severity)
		buf = appendFloat(buf, v.Lat)
		buf = appendFloat(buf, v.Lon)
		return append(buf, v.Category...), nil
	case nil:
		return nil, fmt.Errorf("%w: nil payload", ErrMalformed)
	}
	return nil, fmt.Errorf("%w: unhandled payload %T", ErrMalformed, p)
}

func decodePayload(kind mesh.Kind, b []byte) (mesh.Payload, error) {
	switch kind {
	case mesh.KindSOS:
		if len(b) < 16 {
			return nil, fmt.Errorf("%w: sos payload %d bytes", ErrTruncated, len(b))
		}
		return mesh.SOSPayload{
			Lat:  readFloat(b[0:8]),
			Lon:  readFloat(b[8:16]),
			Note: string(b[16:]),
		}, nil
	case mesh.KindMedical:
		if len(b) < 1 {
			return nil, fmt.Errorf("%w: medical payload empty", ErrTruncated)
		}
		status := mesh.MedicalStatus(b[0])
		if !status.Valid() {
			return nil, fmt.Errorf("%w: medical status %d", ErrMalformed, b[0])
		}
		return mesh.MedicalPayload{Status: status, Detail: string(b[1:])}, nil
	case mesh.KindText:
		return mesh.TextPayload{Text: string(b)}, nil
	case mesh.KindLocation:
		if len(b) != 16 {
			return nil, fmt.Errorf("%w: location payload %d bytes", ErrMalformed, len(b))
		}
		return mesh.LocationPayload{Lat: readFloat(b[0:8]), Lon: readFloat(b[8:16])}, nil
	case mesh.KindBattery:
		if len(b) != 1 {
			return nil, fmt.Errorf("%w: battery payload %d bytes", ErrMalformed, len(b))
		}
		return mesh.BatteryPayload{Percent: b[0]}, nil
	case mesh.KindPing:
		if len(b) != 0 {
			return nil, fmt.Errorf("%w: ping payload %d bytes", ErrMalformed, len(b))
		}
		return mesh.PingPayload{}, nil
	case mesh.KindHazard:
		if len(b) < 17 {
			return nil, fmt.Errorf("%w: hazard payload %d bytes", ErrTruncated, len(b))
		}
		return mesh.HazardPayload{
			Severity: b[0],
			Lat:      readFloat(b[1:9]),
			Lon:      readFloat(b[9:17]),
			Category: string(b[17:]),
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, kind)
}

func appendFloat(buf []byte, f float64) []byte {
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
