package cborutil

import (
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/regmap"
)

func mustEncode(t *testing.T, v any) cbor.RawMessage {
	t.Helper()
	b, err := encMode.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return cbor.RawMessage(b)
}

func TestReadValueWidths(t *testing.T) {
	cases := []struct {
		name      string
		v         any
		wantKind  Kind
		wantWidth int
	}{
		{"small uint", uint64(11), KindUint, 1},
		{"uint16 range", uint64(300), KindUint, 2},
		{"uint32 range", uint64(70000), KindUint, 4},
		{"small negative", int64(-19278), KindInt, 2},
		{"float32", float32(3.14), KindFloat, 4},
	}
	for _, c := range cases {
		raw := mustEncode(t, c.v)
		got, err := ReadValue(raw, -1)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got.Kind != c.wantKind || got.Width != c.wantWidth {
			t.Errorf("%s: got kind=%v width=%d, want kind=%v width=%d", c.name, got.Kind, got.Width, c.wantKind, c.wantWidth)
		}
	}
}

func TestDecodeScalarRange(t *testing.T) {
	raw := mustEncode(t, uint64(300))
	if _, _, err := DecodeScalar(raw, regmap.TypeUint8, 1); err != ErrValueOutOfRange {
		t.Fatalf("expected out-of-range, got %v", err)
	}
	data, _, err := DecodeScalar(raw, regmap.TypeUint16, 2)
	if err != nil {
		t.Fatalf("decode uint16: %v", err)
	}
	if data[0] != 0x2C || data[1] != 0x01 {
		t.Fatalf("unexpected bytes: %x", data)
	}
}

func TestDecodeScalarTypeMismatch(t *testing.T) {
	raw := mustEncode(t, "hello")
	if _, _, err := DecodeScalar(raw, regmap.TypeInt32, 4); err != ErrTypeMismatch {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestEncodeDecodeScalarRoundTrip(t *testing.T) {
	raw, err := EncodeScalar(regmap.TypeInt16, []byte{0xD2, 0xB5}) // -18990 little-endian
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, _, err := DecodeScalar(raw, regmap.TypeInt16, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data[0] != 0xD2 || data[1] != 0xB5 {
		t.Fatalf("round trip mismatch: %x", data)
	}
}

func TestPathFromArray(t *testing.T) {
	raw := mustEncode(t, []uint64{1, 2})
	p, err := PathFromArray(raw, 3)
	if err != nil {
		t.Fatalf("decode path: %v", err)
	}
	want := regmap.Path{1, 2, 0}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("path = %v, want %v", p, want)
		}
	}
}

func TestZeroKeyEntryPath(t *testing.T) {
	payload := mustEncode(t, map[uint64]any{0: []uint64{1, 2, 0}, 3: "x"})
	path, _, isPath, ok, err := ZeroKeyEntryWithDepth(payload, 3)
	if err != nil {
		t.Fatalf("zero key: %v", err)
	}
	if !ok || !isPath {
		t.Fatalf("expected a path zero-key entry")
	}
	if path[0] != 1 || path[1] != 2 {
		t.Fatalf("unexpected path: %v", path)
	}
}

func TestZeroKeyEntrySignature(t *testing.T) {
	payload := mustEncode(t, map[uint64]any{0: uint64(1), 1: "bar"})
	_, sig, isPath, ok, err := ZeroKeyEntryWithDepth(payload, 3)
	if err != nil {
		t.Fatalf("zero key: %v", err)
	}
	if !ok || isPath || sig != 1 {
		t.Fatalf("expected signature=1, got isPath=%v sig=%d", isPath, sig)
	}
}

func TestZeroKeyEntryAbsent(t *testing.T) {
	payload := mustEncode(t, map[uint64]any{1: "bar"})
	_, _, _, ok, err := ZeroKeyEntryWithDepth(payload, 3)
	if err != nil {
		t.Fatalf("zero key: %v", err)
	}
	if ok {
		t.Fatalf("expected no zero-key entry")
	}
}

func TestNestedEncoderSingleValue(t *testing.T) {
	enc := NewNestedEncoder(3, 128)
	v := mustEncode(t, uint64(11))
	added, err := enc.Add(regmap.Path{1, 2, 0}, v)
	if err != nil || !added {
		t.Fatalf("add: added=%v err=%v", added, err)
	}
	single, ok := enc.Single()
	if !ok {
		t.Fatalf("expected a single collapsible value")
	}
	if string(single) != string(v) {
		t.Fatalf("value mismatch: %x vs %x", single, v)
	}
}

func TestNestedEncoderMultipleSiblings(t *testing.T) {
	enc := NewNestedEncoder(3, 256)
	v1 := mustEncode(t, uint64(3))
	v2 := mustEncode(t, int64(-5))
	if added, err := enc.Add(regmap.Path{2, 3, 0}, v1); err != nil || !added {
		t.Fatalf("add v1: added=%v err=%v", added, err)
	}
	if added, err := enc.Add(regmap.Path{2, 4, 0}, v2); err != nil || !added {
		t.Fatalf("add v2: added=%v err=%v", added, err)
	}
	pairs, err := enc.Pairs()
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Key != 2 {
		t.Fatalf("expected one top-level key (2), got %+v", pairs)
	}
	// The single top-level entry should itself decode to a 2-entry map {3:.., 4:..}.
	var inner map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(pairs[0].Value, &inner); err != nil {
		t.Fatalf("unmarshal inner map: %v", err)
	}
	if len(inner) != 2 {
		t.Fatalf("expected 2 inner entries, got %d", len(inner))
	}
}

func TestNestedEncoderOverflowRollsBack(t *testing.T) {
	enc := NewNestedEncoder(3, 10) // deliberately tiny budget
	v := mustEncode(t, []byte("this value is much too long to fit"))
	added, err := enc.Add(regmap.Path{1, 0, 0}, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added {
		t.Fatalf("expected overflow rollback, but add succeeded")
	}
	if enc.Count() != 0 {
		t.Fatalf("count should be 0 after rollback, got %d", enc.Count())
	}
	pairs, err := enc.Pairs()
	if err != nil || len(pairs) != 0 {
		t.Fatalf("tree should be empty after rollback: pairs=%v err=%v", pairs, err)
	}
}
