package command

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/FloWide/lolan-go/cborutil"
	"github.com/FloWide/lolan-go/clog"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/metrics"
	"github.com/FloWide/lolan-go/options"
	"github.com/FloWide/lolan-go/regmap"
)

// ProcessGet interprets a GET request's payload against m and produces the
// ACK reply packet, per §4.6. The reply echoes req's packet_counter (ACK
// replies never advance the sender's own counter).
func ProcessGet(m *regmap.Map, opts options.Options, log clog.Clog, mx *metrics.Metrics, myAddress uint16, req frame.Packet) (frame.Packet, error) {
	id := uuid.New()
	log.Debug("get[%s]: from=%d payload=%s", id, req.FromID, humanize.Bytes(uint64(len(req.Payload))))

	path, _, isPath, ok, err := cborutil.ZeroKeyEntryWithDepth(req.Payload, opts.RegMapDepth)
	if err != nil || !ok || !isPath {
		log.Warn("get[%s]: malformed request: %v", id, err)
		return frame.Packet{}, fmt.Errorf("get: %w", ErrMalformedRequest)
	}

	payload, code, err := buildGetReply(m, opts, path)
	if err != nil {
		log.Error("get[%s]: encode failed: %v", id, err)
		return frame.Packet{}, err
	}
	mx.GetStatus(code)

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
	log.Debug("get[%s]: replying %s", id, humanize.Bytes(uint64(len(payload))))
	return reply, nil
}

// CreateGet builds a GET request packet addressed to toID for path.
// packetCounter is the originating context's current outbound counter
// (the caller is responsible for advancing it afterward, same as INFORM).
func CreateGet(opts options.Options, myAddress, toID uint16, packetCounter uint8, path regmap.Path) (frame.Packet, error) {
	pathRaw, err := cborutil.WriteValue(pathElems(path, opts.RegMapDepth))
	if err != nil {
		return frame.Packet{}, err
	}
	payload, err := cborutil.EncodeMap([]cborutil.Entry{{Key: 0, Value: pathRaw}})
	if err != nil {
		return frame.Packet{}, err
	}
	return frame.Packet{
		Type:          frame.Get,
		MultiPart:     frame.MultiPartNone,
		FromID:        myAddress,
		ToID:          toID,
		PacketCounter: packetCounter,
		Payload:       []byte(payload),
	}, nil
}

func pathElems(p regmap.Path, depth int) []uint64 {
	level := regmap.DefinitionLevel(p, depth)
	out := make([]uint64, level)
	for i := 0; i < level; i++ {
		out[i] = uint64(p[i])
	}
	return out
}

// buildGetReply returns the reply payload together with the overall status
// code it carries, so callers can feed it to metrics without re-parsing it.
func buildGetReply(m *regmap.Map, opts options.Options, path regmap.Path) ([]byte, int, error) {
	occ := m.Occurrences(path, opts.RegMapRecursion)
	if occ == 0 && opts.RegMapRecursion <= 0 && m.Occurrences(path, -1) > 0 {
		// Variables exist below path, but recursion is disabled.
		payload, err := statusOnly(StatusMethodNotAllowed)
		return payload, StatusMethodNotAllowed, err
	}
	switch {
	case occ == 0:
		payload, err := statusOnly(StatusNotFound)
		return payload, StatusNotFound, err

	case occ == 1:
		entry := findSingle(m, path, opts.RegMapRecursion)
		raw, err := cborutil.EncodeScalar(entry.Flags.Type(), entryBytes(entry))
		if err != nil {
			return nil, 0, err
		}
		// "Exact" per §4.6 means the request's path, zero-padded, matches
		// the single entry's own path precisely — not merely that the
		// request happened to be a (shorter) prefix of it.
		exact := regmap.Compare(path, entry.Path, opts.RegMapDepth) == 0
		if exact && !opts.ForceGetVerboseReply {
			return bareValue(raw), StatusOK, nil
		}
		// A base-path match, or verbose mode forced: wrap at nested path.
		enc := cborutil.NewNestedEncoder(opts.RegMapDepth, opts.MaxPayload())
		added, err := enc.Add(entry.Path, raw)
		if err != nil {
			return nil, 0, err
		}
		if !added {
			payload, err := statusOnly(StatusPayloadTooLarge)
			return payload, StatusPayloadTooLarge, err
		}
		pairs, err := enc.Pairs()
		if err != nil {
			return nil, 0, err
		}
		payload, err := statusWithPairs(StatusOK, pairs)
		return payload, StatusOK, err

	default: // occ >= 2
		if opts.RegMapRecursion <= 0 {
			payload, err := statusOnly(StatusMethodNotAllowed)
			return payload, StatusMethodNotAllowed, err
		}
		enc := cborutil.NewNestedEncoder(opts.RegMapDepth, opts.MaxPayload())
		reported := 0
		for _, e := range matching(m, path, opts.RegMapRecursion) {
			raw, err := cborutil.EncodeScalar(e.Flags.Type(), entryBytes(e))
			if err != nil {
				return nil, 0, err
			}
			added, err := enc.Add(e.Path, raw)
			if err != nil {
				return nil, 0, err
			}
			if !added {
				break
			}
			reported++
		}
		if reported == 0 {
			payload, err := statusOnly(StatusPayloadTooLarge)
			return payload, StatusPayloadTooLarge, err
		}
		pairs, err := enc.Pairs()
		if err != nil {
			return nil, 0, err
		}
		payload, err := statusWithPairs(StatusMultiStatus, pairs)
		return payload, StatusMultiStatus, err
	}
}

// matching returns the live entries sharing path's defined prefix, subject
// to the recursion limit, in register-map (sorted) order.
func matching(m *regmap.Map, path regmap.Path, recursionLimit int) []regmap.Entry {
	depth := m.Depth()
	baseLevel := regmap.DefinitionLevel(path, depth)
	var out []regmap.Entry
	for _, e := range m.Entries() {
		if !regmap.HasPrefix(e.Path, path, depth) {
			continue
		}
		if recursionLimit >= 0 && regmap.DefinitionLevel(e.Path, depth) > baseLevel+recursionLimit {
			continue
		}
		out = append(out, e)
	}
	return out
}

func findSingle(m *regmap.Map, path regmap.Path, recursionLimit int) regmap.Entry {
	matches := matching(m, path, recursionLimit)
	if len(matches) == 0 {
		return regmap.Entry{}
	}
	return matches[0]
}

// entryBytes returns the slice of e's storage bytes actually in use:
// ActualSize when set on a TypeData entry, Size otherwise.
func entryBytes(e regmap.Entry) []byte {
	b := e.Storage.Bytes()
	if e.Flags.Type() == regmap.TypeData && e.ActualSize > 0 && e.ActualSize <= len(b) {
		return b[:e.ActualSize]
	}
	return b
}
