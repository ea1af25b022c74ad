package frame

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed 7-byte on-wire header preceding the payload.
const HeaderSize = 7

// CRCSize is the trailing 2-byte checksum appended in wire order.
const CRCSize = 2

// DefaultMaxPacketSize is LOLAN_MAX_PACKET_SIZE's default: the total
// on-wire frame cap including header and CRC.
const DefaultMaxPacketSize = 128

// MaxPayload returns LOLAN_PACKET_MAX_PAYLOAD_SIZE for a given
// LOLAN_MAX_PACKET_SIZE: the frame cap less header and CRC overhead.
func MaxPayload(maxPacketSize int) int {
	return maxPacketSize - HeaderSize - CRCSize
}

// ErrNotLoLaN signals a buffer that does not parse as a LoLaN frame at all
// (too short, or a version mismatch) — the frame-level NOT_LOLAN outcome;
// callers should silently drop, not log, per §7.
var ErrNotLoLaN = errors.New("frame: not a LoLaN packet")

// ErrCRC signals a structurally plausible frame whose CRC does not
// self-verify — the frame-level GENERROR outcome for corruption.
var ErrCRC = errors.New("frame: CRC check failed")

// ErrPayloadTooLarge signals a Serialize call whose payload would exceed
// the configured maximum frame size.
var ErrPayloadTooLarge = errors.New("frame: payload exceeds maximum packet size")

// ErrUnsupportedType signals a structurally valid frame whose packet_type
// is not one of the types the core dispatches (ACK, INFORM, GET, SET,
// CONTROL) — BEACON, DATA, and MAC are transport-level concerns left to
// the caller, and Parse rejects them rather than pretending to dispatch.
var ErrUnsupportedType = errors.New("frame: packet type not dispatchable")

// ErrSecurityEnabled signals a frame with security_enabled set. The core
// codec does not decrypt or authenticate, so Parse refuses such frames.
var ErrSecurityEnabled = errors.New("frame: security-enabled frame not supported by the core codec")

const versionNibble = 0x3 // bits 4..5 of byte 1, per the canonical revision

// Serialize packs p into wire form. maxPacketSize bounds the total output
// length (header + payload + optional CRC); withCRC controls whether the
// trailing checksum is appended.
func Serialize(p *Packet, maxPacketSize int, withCRC bool) ([]byte, error) {
	total := HeaderSize + len(p.Payload)
	if withCRC {
		total += CRCSize
	}
	if total > maxPacketSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderSize+len(p.Payload), total)

	buf[0] = byte(p.Type&0x07) | byte(p.MultiPart&0x03)<<3
	if p.AckRequired {
		buf[0] |= 1 << 5
	}

	buf[1] = versionNibble << 4
	if p.SecurityEnabled {
		buf[1] |= 1 << 3
	}
	if p.RoutingRequested {
		buf[1] |= 1 << 7
	}

	buf[2] = p.PacketCounter
	binary.LittleEndian.PutUint16(buf[3:5], p.FromID)
	binary.LittleEndian.PutUint16(buf[5:7], p.ToID)
	copy(buf[HeaderSize:], p.Payload)

	if withCRC {
		crc := crc16(buf)
		buf = append(buf, 0, 0)
		binary.BigEndian.PutUint16(buf[len(buf)-2:], crc)
	}
	return buf, nil
}

// Parse decodes buf into a Packet. It rejects buffers shorter than
// HeaderSize+CRCSize, version mismatches, and CRC failures, and copies the
// payload into the returned Packet (the caller's buf is not retained).
func Parse(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize+CRCSize {
		return Packet{}, ErrNotLoLaN
	}
	if (buf[1]>>4)&0x3 != versionNibble {
		return Packet{}, ErrNotLoLaN
	}
	if !verifyCRC(buf) {
		return Packet{}, ErrCRC
	}

	p := Packet{
		Type:             PacketType(buf[0] & 0x07),
		MultiPart:        MultiPart((buf[0] >> 3) & 0x03),
		AckRequired:      buf[0]&(1<<5) != 0,
		SecurityEnabled:  buf[1]&(1<<3) != 0,
		RoutingRequested: buf[1]&(1<<7) != 0,
		PacketCounter:    buf[2],
		FromID:           binary.LittleEndian.Uint16(buf[3:5]),
		ToID:             binary.LittleEndian.Uint16(buf[5:7]),
	}

	if !p.Type.dispatchable() {
		return Packet{}, ErrUnsupportedType
	}
	if p.SecurityEnabled {
		return Packet{}, ErrSecurityEnabled
	}

	payloadEnd := len(buf) - CRCSize
	p.Payload = append([]byte(nil), buf[HeaderSize:payloadEnd]...)
	return p, nil
}
