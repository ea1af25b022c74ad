package frame

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	p := &Packet{
		Type:             Get,
		MultiPart:        MultiPartNone,
		AckRequired:      true,
		RoutingRequested: false,
		PacketCounter:    42,
		FromID:           7,
		ToID:             Broadcast,
		Payload:          []byte{0xA1, 0x00, 0x0B},
	}
	buf, err := Serialize(p, DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Type != p.Type || got.AckRequired != p.AckRequired || got.FromID != p.FromID ||
		got.ToID != p.ToID || got.PacketCounter != p.PacketCounter {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatalf("payload mismatch: got %x, want %x", got.Payload, p.Payload)
	}
}

func TestCRCSelfVerifies(t *testing.T) {
	p := &Packet{Type: Ack, FromID: 1, ToID: 2, Payload: []byte{1, 2, 3}}
	buf, err := Serialize(p, DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !verifyCRC(buf) {
		t.Fatalf("frame does not self-verify")
	}
}

func TestParseRejectsWrongVersion(t *testing.T) {
	p := &Packet{Type: Ack, FromID: 1, ToID: 2}
	buf, err := Serialize(p, DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	buf[1] = (buf[1] &^ 0x30) | (0x1 << 4) // corrupt version bits to 0b01

	if _, err := Parse(buf); err != ErrNotLoLaN {
		t.Fatalf("expected ErrNotLoLaN, got %v", err)
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	if _, err := Parse(make([]byte, 5)); err != ErrNotLoLaN {
		t.Fatalf("expected ErrNotLoLaN for short buffer, got %v", err)
	}
}

func TestParseRejectsCorruptCRC(t *testing.T) {
	p := &Packet{Type: Set, FromID: 1, ToID: 2, Payload: []byte{9, 9}}
	buf, err := Serialize(p, DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	buf[len(buf)-1] ^= 0xFF

	if _, err := Parse(buf); err != ErrCRC {
		t.Fatalf("expected ErrCRC, got %v", err)
	}
}

func TestParseRejectsNonDispatchableType(t *testing.T) {
	p := &Packet{Type: Beacon, FromID: 1, ToID: 2}
	buf, err := Serialize(p, DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := Parse(buf); err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestSerializeRejectsOversize(t *testing.T) {
	p := &Packet{Type: Data, Payload: make([]byte, 200)}
	if _, err := Serialize(p, DefaultMaxPacketSize, true); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
