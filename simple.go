package lolan

import (
	"errors"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/cborutil"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/regmap"
)

// Simple client helpers (§4.9): building a one-variable SET, reading back
// whatever an ACK carries, and pulling a single value out of an INFORM —
// without a caller having to walk the general nested-path encoding itself.
var (
	ErrNotAck       = errors.New("lolan: packet is not an ACK")
	ErrNotInform    = errors.New("lolan: packet is not an INFORM")
	ErrBadSignature = errors.New("lolan: new-style INFORM zero-key entry is not status 299")
)

// SimpleCreateSet builds an old-style single-variable SET request for
// path's address (path must be valid and not the root; its last defined
// element becomes the leaf key), addressed to toID,
// and advances the Context's outbound packet counter.
func (c *Context) SimpleCreateSet(toID uint16, path regmap.Path, typ regmap.VarType, data []byte) (frame.Packet, error) {
	depth := c.opts.RegMapDepth
	if !regmap.IsValid(path, depth) {
		return frame.Packet{}, regmap.ErrInvalidPath
	}
	defLvl := regmap.DefinitionLevel(path, depth)
	if defLvl == 0 {
		return frame.Packet{}, regmap.ErrInvalidPath
	}

	raw, err := cborutil.EncodeScalar(typ, data)
	if err != nil {
		return frame.Packet{}, err
	}

	var entries []cborutil.Entry
	if defLvl > 1 {
		pathRaw, err := cborutil.WriteValue(pathPrefix(path, defLvl-1))
		if err != nil {
			return frame.Packet{}, err
		}
		entries = append(entries, cborutil.Entry{Key: 0, Value: pathRaw})
	}
	entries = append(entries, cborutil.Entry{Key: uint64(path[defLvl-1]), Value: raw})

	payload, err := cborutil.EncodeMap(entries)
	if err != nil {
		return frame.Packet{}, err
	}

	pkt := frame.Packet{
		Type:          frame.Set,
		MultiPart:     frame.MultiPartNone,
		FromID:        c.address,
		ToID:          toID,
		PacketCounter: c.counter,
		Payload:       []byte(payload),
	}
	c.counter++
	return pkt, nil
}

func pathPrefix(p regmap.Path, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = uint64(p[i])
	}
	return out
}

// SimpleProcessAck extracts the one value of interest from a reply to a
// simple (single-variable) GET or SET: a bare GET reply, a collapsed
// {0: code} SET reply, or a {0: code, key: value} GET/SET reply. zeroKey
// reports whether the returned value came from the status-code entry
// itself (the short-SET-reply case) rather than a variable's data.
func SimpleProcessAck(pkt frame.Packet) (value cborutil.Value, zeroKey bool, err error) {
	if pkt.Type != frame.Ack {
		return cborutil.Value{}, false, ErrNotAck
	}
	raw := cbor.RawMessage(pkt.Payload)
	if len(raw) == 0 {
		return cborutil.Value{}, false, ErrNotAck
	}
	if raw[0]>>5 != 5 { // not a map: short GET reply, bare value
		v, err := cborutil.ReadValue(raw, -1)
		return v, false, err
	}

	var root map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &root); err != nil {
		return cborutil.Value{}, false, err
	}
	zeroRaw, ok := root[0]
	if !ok {
		return cborutil.Value{}, false, ErrNotAck
	}
	zeroVal, err := cborutil.ReadValue(zeroRaw, 0)
	if err != nil || zeroVal.Kind != cborutil.KindUint {
		return cborutil.Value{}, false, ErrNotAck
	}
	delete(root, 0)

	if leaf, found := firstLeaf(root); found {
		v, err := cborutil.ReadValue(leaf, -1)
		return v, false, err
	}
	// No other entry: the zero-key status code itself is the payload.
	return cborutil.Value{Kind: cborutil.KindUint, Uint: zeroVal.Uint, Width: 2}, true, nil
}

// firstLeaf returns the first non-map value found while walking m in
// ascending key order, descending into nested maps depth-first.
func firstLeaf(m map[uint64]cbor.RawMessage) (cbor.RawMessage, bool) {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		v := m[k]
		if len(v) > 0 && v[0]>>5 == 5 {
			var inner map[uint64]cbor.RawMessage
			if err := cbor.Unmarshal(v, &inner); err == nil {
				if leaf, ok := firstLeaf(inner); ok {
					return leaf, true
				}
			}
			continue
		}
		return v, true
	}
	return nil, false
}

// SimpleExtractFromInform extracts the value at path from pkt, an INFORM
// packet, detecting the legacy and new-style layouts via the zero-key
// entry. found is false when path isn't reported by this particular
// INFORM (not an error: the caller should keep waiting or ask again).
func SimpleExtractFromInform(pkt frame.Packet, path regmap.Path, depth int) (value cborutil.Value, found bool, err error) {
	if pkt.Type != frame.Inform {
		return cborutil.Value{}, false, ErrNotInform
	}
	raw := cbor.RawMessage(pkt.Payload)

	basePath, signature, isPath, ok, err := cborutil.ZeroKeyEntryWithDepth(raw, depth)
	if err != nil {
		return cborutil.Value{}, false, err
	}

	if !ok {
		// No zero-key entry: legacy INFORM with the root as base path.
		basePath = make(regmap.Path, depth)
		isPath = true
	}

	others, err := cborutil.OtherEntries(raw)
	if err != nil {
		return cborutil.Value{}, false, err
	}

	if isPath {
		xdefLvl := regmap.DefinitionLevel(basePath, depth)
		defLvl := regmap.DefinitionLevel(path, depth)
		if xdefLvl+1 != defLvl {
			return cborutil.Value{}, false, nil
		}
		for i := 0; i < xdefLvl; i++ {
			if path[i] != basePath[i] {
				return cborutil.Value{}, false, nil
			}
		}
		leafRaw, present := others[uint64(path[xdefLvl])]
		if !present {
			return cborutil.Value{}, false, nil
		}
		v, err := cborutil.ReadValue(leafRaw, -1)
		return v, err == nil, err
	}

	if signature != 299 {
		return cborutil.Value{}, false, ErrBadSignature
	}
	defLvl := regmap.DefinitionLevel(path, depth)
	cur := others
	for level := 0; level < defLvl; level++ {
		leafRaw, present := cur[uint64(path[level])]
		if !present {
			return cborutil.Value{}, false, nil
		}
		if level == defLvl-1 {
			v, err := cborutil.ReadValue(leafRaw, -1)
			return v, err == nil, err
		}
		if len(leafRaw) == 0 || leafRaw[0]>>5 != 5 {
			return cborutil.Value{}, false, nil
		}
		var inner map[uint64]cbor.RawMessage
		if err := cbor.Unmarshal(leafRaw, &inner); err != nil {
			return cborutil.Value{}, false, err
		}
		cur = inner
	}
	return cborutil.Value{}, false, nil
}
