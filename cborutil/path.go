package cborutil

import (
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/regmap"
)

// ErrMalformedPath signals a CBOR array that doesn't decode into a valid
// path: too long, or containing a non-integer / out-of-byte-range element.
var ErrMalformedPath = errors.New("cborutil: malformed path array")

// PathFromArray decodes a CBOR array of non-negative integers (each in
// [0,255]) into a Path of exactly depth elements, zero-padding any missing
// trailing elements. It errors on a non-integer element or length > depth.
func PathFromArray(raw cbor.RawMessage, depth int) (regmap.Path, error) {
	var elems []uint64
	if err := cbor.Unmarshal(raw, &elems); err != nil {
		return nil, ErrMalformedPath
	}
	if len(elems) > depth {
		return nil, ErrMalformedPath
	}
	p := make(regmap.Path, depth)
	for i, e := range elems {
		if e > 255 {
			return nil, ErrMalformedPath
		}
		p[i] = byte(e)
	}
	return p, nil
}

// rootMap decodes payload's outer CBOR item as a map keyed by small
// non-negative integers, preserving each entry's still-encoded value so
// callers can interpret it according to the key.
func rootMap(payload cbor.RawMessage) (map[uint64]cbor.RawMessage, error) {
	var m map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ZeroKeyEntryWithDepth finds payload's root-map entry with key 0, per
// §4.5's "zero-key extractor": if present and an array, it's decoded as a
// path using the caller's configured depth to bound array length; if
// present and an unsigned integer, it's returned clamped to 16 bits as
// signature (used by new-style SET/INFORM framing); ok is false if no
// zero-key entry exists at all.
func ZeroKeyEntryWithDepth(payload cbor.RawMessage, depth int) (path regmap.Path, signature uint16, isPath bool, ok bool, err error) {
	m, mErr := rootMap(payload)
	if mErr != nil {
		return nil, 0, false, false, mErr
	}
	raw, present := m[0]
	if !present {
		return nil, 0, false, false, nil
	}
	if len(raw) == 0 {
		return nil, 0, false, false, ErrMalformedPath
	}
	switch raw[0] >> 5 {
	case 4:
		p, perr := PathFromArray(raw, depth)
		if perr != nil {
			return nil, 0, false, false, perr
		}
		return p, 0, true, true, nil
	case 0:
		var u uint64
		if err := cbor.Unmarshal(raw, &u); err != nil {
			return nil, 0, false, false, err
		}
		if u > 0xFFFF {
			u = 0xFFFF
		}
		return nil, uint16(u), false, true, nil
	default:
		return nil, 0, false, false, ErrMalformedPath
	}
}

// OtherEntries returns payload's root-map entries excluding key 0, keyed by
// their integer key — the old-style SET/INFORM "leaf key -> value" view.
func OtherEntries(payload cbor.RawMessage) (map[uint64]cbor.RawMessage, error) {
	m, err := rootMap(payload)
	if err != nil {
		return nil, err
	}
	delete(m, 0)
	return m, nil
}
