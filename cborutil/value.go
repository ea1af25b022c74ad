// Package cborutil provides the typed CBOR helpers the command layer calls
// into: single-value read/write, path decoding, the zero-key entry
// extractor, and the nested-path variable encoder. It wraps
// github.com/fxamacker/cbor/v2 rather than re-implementing a CBOR codec.
package cborutil

import (
	"errors"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Kind is the decoded CBOR major category a scalar value falls into.
type Kind int

const (
	KindUint Kind = iota
	KindInt
	KindString
	KindFloat
	KindError
)

// ErrUnsupportedCBORType signals a CBOR major type read_value does not
// recognize (e.g. an array or map where a scalar was expected, or a
// float16, which the specification does not support).
var ErrUnsupportedCBORType = errors.New("cborutil: unsupported CBOR item type")

var encMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// Value is the decoded form of a single CBOR scalar item, with enough
// information for a caller to range-check it against a target storage
// width without re-parsing the wire bytes.
type Value struct {
	Kind   Kind
	Uint   uint64
	Int    int64
	Float  float64
	String []byte // text or byte string content
	// Width is the narrowest byte width (1/2/4/8) that losslessly holds
	// Uint/Int/Float — independent of however many bytes the item actually
	// occupied on the wire, per §4.5's "narrowest of 1/2/4/8" rule.
	Width int
}

// ReadValue decodes a single CBOR item (raw must hold exactly one item) and
// classifies it per §4.5: unsigned/negative integers get the narrowest
// width that holds them, byte/text strings come back verbatim (trimmed to
// maxBytes), float32/64 are supported (float16 is not), and everything else
// is ErrUnsupportedCBORType.
func ReadValue(raw cbor.RawMessage, maxBytes int) (Value, error) {
	if len(raw) == 0 {
		return Value{}, ErrUnsupportedCBORType
	}
	majorType := raw[0] >> 5
	switch majorType {
	case 0: // unsigned integer
		var u uint64
		if err := cbor.Unmarshal(raw, &u); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindUint, Uint: u, Width: uintWidth(u)}, nil

	case 1: // negative integer
		var i int64
		if err := cbor.Unmarshal(raw, &i); err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: i, Width: intWidth(i)}, nil

	case 2: // byte string
		var b []byte
		if err := cbor.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		if maxBytes >= 0 && len(b) > maxBytes {
			b = b[:maxBytes]
		}
		return Value{Kind: KindString, String: b, Width: len(b)}, nil

	case 3: // text string
		var s string
		if err := cbor.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		b := []byte(s)
		if maxBytes >= 0 && len(b) > maxBytes {
			b = b[:maxBytes]
		}
		return Value{Kind: KindString, String: b, Width: len(b)}, nil

	case 7: // float / simple
		additional := raw[0] & 0x1f
		switch additional {
		case 26: // float32
			var f float32
			if err := cbor.Unmarshal(raw, &f); err != nil {
				return Value{}, err
			}
			return Value{Kind: KindFloat, Float: float64(f), Width: 4}, nil
		case 27: // float64
			var f float64
			if err := cbor.Unmarshal(raw, &f); err != nil {
				return Value{}, err
			}
			return Value{Kind: KindFloat, Float: f, Width: 8}, nil
		default:
			return Value{}, ErrUnsupportedCBORType
		}

	default:
		return Value{}, ErrUnsupportedCBORType
	}
}

func uintWidth(v uint64) int {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	case v <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

func intWidth(v int64) int {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 1
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 4
	default:
		return 8
	}
}

// WriteValue encodes v (a scalar, or a path array such as []uint64) as a
// CBOR item with the package's canonical encoder, and surfaces encode
// failure (a caller-supplied size limit exceeded, in the streaming
// original) as ErrOutOfMemory so command-layer callers can trigger
// backtracking.
func WriteValue(v any) (cbor.RawMessage, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	return cbor.RawMessage(b), nil
}

// ErrOutOfMemory mirrors the original's MEMERROR: the encoder ran out of
// room for an item. Command-layer callers with a fallback path (INFORM's
// multi-variable backtracking) retry without the offending variable.
var ErrOutOfMemory = errors.New("cborutil: encoder out of space")
