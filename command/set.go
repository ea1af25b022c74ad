package command

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/FloWide/lolan-go/cborutil"
	"github.com/FloWide/lolan-go/clog"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/metrics"
	"github.com/FloWide/lolan-go/options"
	"github.com/FloWide/lolan-go/regmap"
)

type setOutcome struct {
	path regmap.Path
	key  uint64 // old-style leaf key, for flat reply encoding
	code int
}

// ProcessSet interprets a SET request's payload against m, applying
// updates and producing the ACK reply packet, per §4.7. The two payload
// dialects (old-style base-path+leaves vs new-style nested tree under
// signature {0:1}) are distinguished by the zero-key entry.
func ProcessSet(m *regmap.Map, opts options.Options, log clog.Clog, mx *metrics.Metrics, myAddress uint16, req frame.Packet) (frame.Packet, error) {
	id := uuid.New()
	log.Debug("set[%s]: from=%d payload=%s", id, req.FromID, humanize.Bytes(uint64(len(req.Payload))))

	depth := opts.RegMapDepth
	path, signature, isPath, ok, err := cborutil.ZeroKeyEntryWithDepth(req.Payload, depth)
	if err != nil {
		log.Warn("set[%s]: malformed request: %v", id, err)
		return frame.Packet{}, fmt.Errorf("set: %w", ErrMalformedRequest)
	}

	var outcomes []setOutcome
	var problems int
	newStyle := ok && !isPath && signature == 1

	if newStyle {
		var root map[uint64]cbor.RawMessage
		if err := cbor.Unmarshal(req.Payload, &root); err != nil {
			return frame.Packet{}, fmt.Errorf("set: %w", ErrMalformedRequest)
		}
		delete(root, 0)
		outcomes, problems, err = walkNewStyle(m, depth, root)
		if err != nil {
			return frame.Packet{}, err
		}
	} else {
		base := path
		if !ok {
			base = make(regmap.Path, depth)
		}
		others, oerr := cborutil.OtherEntries(req.Payload)
		if oerr != nil {
			return frame.Packet{}, fmt.Errorf("set: %w", ErrMalformedRequest)
		}
		outcomes, problems = processOldStyle(m, depth, base, others)
	}

	payload, code, err := buildSetReply(opts, newStyle, outcomes, problems)
	if err != nil {
		return frame.Packet{}, err
	}
	mx.SetStatus(code)

	reply := frame.Packet{
		Type:          frame.Ack,
		MultiPart:     frame.MultiPartNone,
		FromID:        myAddress,
		ToID:          req.FromID,
		PacketCounter: req.PacketCounter,
		Payload:       payload,
	}
	if opts.CopyRoutingRequestOnAck {
		reply.RoutingRequested = req.RoutingRequested
	}
	log.Debug("set[%s]: replying %s", id, humanize.Bytes(uint64(len(payload))))
	return reply, nil
}

// processOldStyle applies variable-update-from-CBOR to each leaf key,
// reporting one outcome per key in [0,255] (including not-found, since
// 404 is valid in an old-style reply per §4.7). A key outside that range
// can't address any variable and is skipped entirely, the way
// lolanVarUpdateFromCbor/lolan_processSet only ever walk keys that fit the
// path byte they're turned into; it still counts as a problem so the
// overall status code reflects the failed update.
func processOldStyle(m *regmap.Map, depth int, base regmap.Path, others map[uint64]cbor.RawMessage) ([]setOutcome, int) {
	keys := make([]uint64, 0, len(others))
	for k := range others {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]setOutcome, 0, len(keys))
	problems := 0
	for _, k := range keys {
		if k > 255 {
			problems++
			continue
		}
		leafPath := regmap.WithLeaf(base, depth, byte(k))
		code := updateOneVariable(m, leafPath, others[k])
		out = append(out, setOutcome{path: leafPath, key: k, code: code})
	}
	return out, problems
}

// walkNewStyle descends the nested CBOR tree, applying variable-update-
// from-CBOR at each leaf. Only genuinely-found variables are returned as
// outcomes — matching lolanVarFlagToCbor's reply walk, which reports an
// entry only when the register-map entry's AUX bit is set, and AUX is set
// only once a variable is actually found (lolan-utils.c's
// lolanVarUpdateFromCbor). An inner zero key is silently skipped per
// lolanVarBunchUpdateFromCbor — it is not even counted as a problem.
// Too-deep paths, out-of-range keys, and not-found leaves all count as
// problems so the overall status code still reflects them, but none of
// the three ever produces a per-path reply entry.
func walkNewStyle(m *regmap.Map, depth int, entries map[uint64]cbor.RawMessage) ([]setOutcome, int, error) {
	var out []setOutcome
	problems := 0
	var walk func(prefix regmap.Path, level int, m2 map[uint64]cbor.RawMessage) error
	walk = func(prefix regmap.Path, level int, m2 map[uint64]cbor.RawMessage) error {
		keys := make([]uint64, 0, len(m2))
		for k := range m2 {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			if k == 0 {
				continue
			}
			val := m2[k]
			if level >= depth || k > 255 {
				problems++
				continue
			}
			full := make(regmap.Path, depth)
			copy(full, prefix)
			full[level] = byte(k)

			if isCBORMap(val) {
				var inner map[uint64]cbor.RawMessage
				if err := cbor.Unmarshal(val, &inner); err != nil {
					return fmt.Errorf("set: %w", ErrMalformedRequest)
				}
				if err := walk(full, level+1, inner); err != nil {
					return err
				}
				continue
			}
			code := updateOneVariable(m, full, val)
			if code == StatusNotFound {
				problems++
				continue
			}
			out = append(out, setOutcome{path: full, code: code})
		}
		return nil
	}
	if err := walk(make(regmap.Path, depth), 0, entries); err != nil {
		return nil, 0, err
	}
	return out, problems, nil
}

func isCBORMap(raw cbor.RawMessage) bool {
	return len(raw) > 0 && raw[0]>>5 == 5
}

// updateOneVariable applies the variable-update-from-CBOR algorithm (§4.5)
// to the entry at path, returning its per-variable status code.
func updateOneVariable(m *regmap.Map, path regmap.Path, raw cbor.RawMessage) int {
	entry, ok := m.Lookup(path)
	if !ok {
		return StatusNotFound
	}
	if entry.Flags.Has(regmap.FlagRemoteReadOnly) {
		return StatusMethodNotAllowed
	}

	size := entry.Size
	data, actualLen, err := cborutil.DecodeScalar(raw, entry.Flags.Type(), size)
	switch err {
	case nil:
		entry.Storage.SetBytes(data)
		if entry.Flags.Type() == regmap.TypeData {
			_ = m.SetDataActualLength(entry.Storage, maxInt(actualLen, 1))
		}
		_ = m.SetFlag(entry.Storage, regmap.FlagRemoteUpdate|regmap.FlagAux)
		return StatusOK
	case cborutil.ErrTypeMismatch:
		_ = m.SetFlag(entry.Storage, regmap.FlagRemoteUpdateMismatch)
		return StatusTypeMismatch
	case cborutil.ErrValueOutOfRange:
		_ = m.SetFlag(entry.Storage, regmap.FlagRemoteUpdateOutOfRange)
		return StatusOutOfRange
	default:
		_ = m.SetFlag(entry.Storage, regmap.FlagRemoteUpdateMismatch)
		return StatusTypeMismatch
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// buildSetReply returns the reply payload together with the overall status
// code it carries, so callers can feed it to metrics without re-parsing it.
// problems counts updates that failed before ever reaching a per-variable
// outcome (too-deep/invalid-key/new-style-not-found) — they still weigh
// into mainCode even though they never appear in the reply itself.
func buildSetReply(opts options.Options, newStyle bool, outcomes []setOutcome, problems int) ([]byte, int, error) {
	successes, failures := 0, problems
	for _, o := range outcomes {
		if o.code == StatusOK {
			successes++
		} else {
			failures++
		}
	}

	var mainCode int
	switch {
	case len(outcomes) == 0 && problems == 0:
		mainCode = StatusNoContent
	case failures == 0 && successes == 1:
		mainCode = StatusOK
	case failures == 0 && successes > 1:
		mainCode = StatusMultiStatus
	case successes > 0 && failures > 0:
		mainCode = StatusPartialFailure
	default:
		mainCode = StatusTotalFailure
	}

	if opts.SetShortReplyIfOK && failures == 0 && len(outcomes) > 0 {
		payload, err := statusOnly(mainCode)
		return payload, mainCode, err
	}

	if newStyle {
		enc := cborutil.NewNestedEncoder(opts.RegMapDepth, opts.MaxPayload())
		for _, o := range outcomes {
			codeRaw, err := cborutil.WriteValue(int64(o.code))
			if err != nil {
				return nil, 0, err
			}
			if _, err := enc.Add(o.path, codeRaw); err != nil {
				return nil, 0, err
			}
		}
		pairs, err := enc.Pairs()
		if err != nil {
			return nil, 0, err
		}
		payload, err := statusWithPairs(mainCode, pairs)
		return payload, mainCode, err
	}

	pairs := make([]cborutil.Entry, 0, len(outcomes))
	for _, o := range outcomes {
		codeRaw, err := cborutil.WriteValue(int64(o.code))
		if err != nil {
			return nil, 0, err
		}
		pairs = append(pairs, cborutil.Entry{Key: o.key, Value: codeRaw})
	}
	payload, err := statusWithPairs(mainCode, pairs)
	return payload, mainCode, err
}
