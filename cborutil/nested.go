package cborutil

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/regmap"
)

// Entry is one key/value pair of a CBOR map being assembled, with the value
// already CBOR-encoded (a scalar, or a nested EncodeMap result).
type Entry struct {
	Key   uint64
	Value cbor.RawMessage
}

// EncodeMap writes entries as a definite-length CBOR map. No CBOR library
// used in this pack exposes "open an indefinite map, add items one at a
// time, close it" the way the original's tinycbor-based encoder does, so
// the header is hand-written here and the already-encoded entry values are
// concatenated via cbor.RawMessage — see DESIGN.md's nested-path encoder
// entry for why this trades indefinite-length streaming for a definite-
// length, build-then-measure tree.
func EncodeMap(entries []Entry) (cbor.RawMessage, error) {
	out := mapHeader(len(entries))
	for _, e := range entries {
		keyBytes, err := encMode.Marshal(e.Key)
		if err != nil {
			return nil, ErrOutOfMemory
		}
		out = append(out, keyBytes...)
		out = append(out, e.Value...)
	}
	return out, nil
}

// mapHeader writes a CBOR major-type-5 (map) initial byte plus argument
// encoding exactly as cbor.Marshal would for a map of length n, without
// requiring the caller to hand it a concrete Go map.
func mapHeader(n int) []byte {
	const majorMap = 5 << 5
	switch {
	case n < 24:
		return []byte{byte(majorMap | n)}
	case n <= 0xFF:
		return []byte{majorMap | 24, byte(n)}
	case n <= 0xFFFF:
		return []byte{majorMap | 25, byte(n >> 8), byte(n)}
	default:
		return []byte{majorMap | 26, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

// node is one level of the in-memory path tree. A node that represents a
// live variable carries hasValue/value; register-map invariant 3 (no path
// is a prefix of another) guarantees a node never needs both a value and
// children at once.
type node struct {
	children map[byte]*node
	order    []byte
	hasValue bool
	value    cbor.RawMessage
}

func newNode() *node {
	return &node{children: make(map[byte]*node)}
}

// placeholderStatusSize is a conservative stand-in for the eventual key-0
// status code while measuring whether a candidate tree fits the payload
// budget: every status code in §6 encodes in at most 3 bytes (uint16 major
// type 0, 1-byte tag + 2-byte value), so reserving that many bytes before
// the real code is chosen never under-counts.
var placeholderStatusSize = func() cbor.RawMessage {
	b, err := encMode.Marshal(uint16(0xFFFF))
	if err != nil {
		panic(err)
	}
	return cbor.RawMessage(b)
}()

// NestedEncoder builds the nested-path tree GET's multi-status replies,
// new-style SET bodies, and new-style INFORMs all share, replacing the
// original's file-scope INITIAL/NORMAL/FINALIZE static state with an
// explicit object per spec.md's Design Notes (so two concurrent encodes,
// e.g. one nested inside a recursive call, never corrupt each other).
type NestedEncoder struct {
	depth    int
	maxBytes int
	root     *node
	count    int
}

// NewNestedEncoder creates an encoder for paths of the given depth, whose
// combined encoding (once a key-0 status entry is added) must not exceed
// maxBytes.
func NewNestedEncoder(depth, maxBytes int) *NestedEncoder {
	return &NestedEncoder{depth: depth, maxBytes: maxBytes, root: newNode()}
}

// Count reports how many variables have been successfully added.
func (e *NestedEncoder) Count() int { return e.count }

type undoStep struct {
	parent *node
	key    byte
}

// Add inserts path/value into the tree and re-measures the encoded result
// including a worst-case key-0 placeholder. If the result would exceed
// maxBytes, the insertion is rolled back and Add returns (false, nil) — the
// MEMERROR/backtrack outcome INFORM and GET both need to distinguish from a
// hard encoding error (added == false, err == nil means "rolled back";
// err != nil means something is actually malformed).
func (e *NestedEncoder) Add(path regmap.Path, value cbor.RawMessage) (added bool, err error) {
	level := regmap.DefinitionLevel(path, e.depth)
	cur := e.root
	var undo []undoStep
	for i := 0; i < level; i++ {
		key := path[i]
		child, ok := cur.children[key]
		if !ok {
			child = newNode()
			cur.children[key] = child
			cur.order = append(cur.order, key)
			undo = append(undo, undoStep{cur, key})
		}
		cur = child
	}
	cur.hasValue = true
	cur.value = value

	pairs, perr := e.Pairs()
	if perr != nil {
		e.rollback(cur, undo)
		return false, perr
	}
	full, eerr := EncodeMap(append([]Entry{{0, placeholderStatusSize}}, pairs...))
	if eerr != nil || len(full) > e.maxBytes {
		e.rollback(cur, undo)
		return false, nil
	}
	e.count++
	return true, nil
}

func (e *NestedEncoder) rollback(leaf *node, undo []undoStep) {
	leaf.hasValue = false
	leaf.value = nil
	for i := len(undo) - 1; i >= 0; i-- {
		step := undo[i]
		delete(step.parent.children, step.key)
		for j, k := range step.parent.order {
			if k == step.key {
				step.parent.order = append(step.parent.order[:j], step.parent.order[j+1:]...)
				break
			}
		}
	}
}

// Pairs returns the root's immediate children as top-level map entries,
// each value fully encoded (recursively, for nested levels). The caller
// (GET/SET/INFORM) combines these with its own key-0 status entry via
// EncodeMap.
func (e *NestedEncoder) Pairs() ([]Entry, error) {
	return encodeChildren(e.root)
}

// Single returns the one variable's value directly when the tree holds
// exactly one variable (the unwrapped single-value GET reply case), and
// false otherwise.
func (e *NestedEncoder) Single() (cbor.RawMessage, bool) {
	if e.count != 1 {
		return nil, false
	}
	n := e.root
	for !n.hasValue {
		if len(n.order) != 1 {
			return nil, false
		}
		n = n.children[n.order[0]]
	}
	return n.value, true
}

func encodeChildren(n *node) ([]Entry, error) {
	out := make([]Entry, 0, len(n.order))
	for _, k := range n.order {
		child := n.children[k]
		v, err := encodeNode(child)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: uint64(k), Value: v})
	}
	return out, nil
}

func encodeNode(n *node) (cbor.RawMessage, error) {
	if n.hasValue && len(n.order) == 0 {
		return n.value, nil
	}
	children, err := encodeChildren(n)
	if err != nil {
		return nil, err
	}
	return EncodeMap(children)
}
