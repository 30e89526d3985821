// Package wire implements the Beacon frame format.
//
// Frames are variable-length, capped at MaxFrame bytes. The header is
// fixed-offset so that constrained relay-only nodes can classify a frame
// from its first bytes without decoding the payload: the kind
// discriminant is always byte 1 and the hop budget always byte 3.
//
// Layout, big-endian throughout:
//
//	offset 0   version        1 byte
//	offset 1   kind           1 byte
//	offset 2   priority       1 byte
//	offset 3   hop budget     1 byte
//	offset 4   message id     16 bytes
//	offset 20  sender id      16 bytes
//	offset 36  created-at     8 bytes, unix milliseconds
//	offset 44  sender name    1 length byte + bytes
//	...        relay path     1 count byte + 16 bytes per hop
//	...        payload        2 length bytes + kind-specific bytes
//
// Decode is total over arbitrary input: garbage from the radio yields a
// DecodeError, never a panic.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goodmartian/beacon/internal/mesh"
)

const (
	// Version is the current frame format version.
	Version byte = 1

	// MaxFrame is the hard ceiling on encoded frame size, matching the
	// transport's maximum payload.
	MaxFrame = 512

	fixedHeader = 4 + 16 + 16 + 8 // version..created-at
	// minFrame is a frame with empty name, empty path, empty payload.
	minFrame = fixedHeader + 1 + 1 + 2

	maxName = 255
	maxPath = 255
)

var (
	// ErrTruncated reports fewer bytes than the frame's lengths require.
	ErrTruncated = errors.New("wire: truncated frame")
	// ErrMalformed reports a structurally invalid frame.
	ErrMalformed = errors.New("wire: malformed frame")
	// ErrOversized reports a frame exceeding MaxFrame.
	ErrOversized = errors.New("wire: frame exceeds maximum size")
)

// Encode serialises m. It fails with ErrOversized if the encoded frame
// would exceed MaxFrame; a message is never silently truncated.
func Encode(m mesh.Message) ([]byte, error) {
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, m.Kind)
	}
	if len(m.SenderName) > maxName {
		return nil, fmt.Errorf("%w: sender name %d bytes", ErrOversized, len(m.SenderName))
	}
	if len(m.RelayPath) > maxPath {
		return nil, fmt.Errorf("%w: relay path %d hops", ErrOversized, len(m.RelayPath))
	}
	payload, err := encodePayload(m.Payload)
	if err != nil {
		return nil, err
	}

	size := fixedHeader + 1 + len(m.SenderName) + 1 + 16*len(m.RelayPath) + 2 + len(payload)
	if size > MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversized, size)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, Version, byte(m.Kind), byte(m.Priority), m.HopBudget)
	buf = append(buf, m.ID[:]...)
	buf = append(buf, m.SenderID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.CreatedAt.UnixMilli()))
	buf = append(buf, byte(len(m.SenderName)))
	buf = append(buf, m.SenderName...)
	buf = append(buf, byte(len(m.RelayPath)))
	for _, hop := range m.RelayPath {
		buf = append(buf, hop[:]...)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	return buf, nil
}

// Decode parses a frame. The message's kind, payload shape, and all
// lengths are validated; any arbitrary byte string yields a clean error.
func Decode(b []byte) (mesh.Message, error) {
	if len(b) > MaxFrame {
		return mesh.Message{}, fmt.Errorf("%w: %d bytes", ErrOversized, len(b))
	}
	if len(b) < minFrame {
		return mesh.Message{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(b))
	}
	if b[0] != Version {
		return mesh.Message{}, fmt.Errorf("%w: version %d", ErrMalformed, b[0])
	}
	kind := mesh.Kind(b[1])
	if !kind.Valid() {
		return mesh.Message{}, fmt.Errorf("%w: unknown kind %d", ErrMalformed, b[1])
	}
	if b[2] > byte(mesh.PriorityCritical) {
		return mesh.Message{}, fmt.Errorf("%w: priority %d", ErrMalformed, b[2])
	}

	m := mesh.Message{
		Kind:      kind,
		Priority:  mesh.Priority(b[2]),
		HopBudget: b[3],
	}
	copy(m.ID[:], b[4:20])
	copy(m.SenderID[:], b[20:36])
	m.CreatedAt = time.UnixMilli(int64(binary.BigEndian.Uint64(b[36:44]))).UTC()

	off := fixedHeader
	nameLen := int(b[off])
	off++
	if off+nameLen+1 > len(b) {
		return mesh.Message{}, ErrTruncated
	}
	m.SenderName = string(b[off : off+nameLen])
	off += nameLen

	pathLen := int(b[off])
	off++
	if off+16*pathLen+2 > len(b) {
		return mesh.Message{}, ErrTruncated
	}
	if pathLen > 0 {
		m.RelayPath = make([]mesh.DeviceID, pathLen)
		for i := range m.RelayPath {
			copy(m.RelayPath[i][:], b[off:off+16])
			off += 16
		}
	}

	payloadLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if off+payloadLen > len(b) {
		return mesh.Message{}, ErrTruncated
	}
	if off+payloadLen != len(b) {
		return mesh.Message{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(b)-off-payloadLen)
	}
	payload, err := decodePayload(kind, b[off:off+payloadLen])
	if err != nil {
		return mesh.Message{}, err
	}
	m.Payload = payload
	return m, nil
}
