package command

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/FloWide/lolan-go/cborutil"
	"github.com/FloWide/lolan-go/clog"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/metrics"
	"github.com/FloWide/lolan-go/options"
	"github.com/FloWide/lolan-go/regmap"
)

// InformParams controls a single CreateInformEx call, mirroring the
// original's extended lolan_createInformEx signature.
type InformParams struct {
	// Multi allows multiple variables in one INFORM; false reports at most
	// the first matching variable.
	Multi bool
	// Secondary selects INFORMSEC_REQUEST variables instead of the normal
	// LOCAL_UPDATE & INFORM_REQUEST pair.
	Secondary bool
	// MaxPayloadOverride, when > 0, replaces opts.MaxPayload() for this
	// call only.
	MaxPayloadOverride int
	// PayloadOnly returns a packet carrying just the encoded payload,
	// without stamping from/to/packet_counter or advancing the counter.
	PayloadOnly bool
}

// CreateInform is the common case of CreateInformEx: primary selection,
// normal addressing.
func CreateInform(m *regmap.Map, opts options.Options, log clog.Clog, mx *metrics.Metrics, myAddress uint16, packetCounter *uint8, multi bool) (frame.Packet, bool, error) {
	return CreateInformEx(m, opts, log, mx, myAddress, packetCounter, InformParams{Multi: multi})
}

// CreateInformEx scans m for variables pending an INFORM (per §4.8) and, if
// any match, produces the broadcast INFORM packet reporting them. The
// second return value is false ("NO") when nothing needed reporting, in
// which case neither the map's flags nor packetCounter are touched.
func CreateInformEx(m *regmap.Map, opts options.Options, log clog.Clog, mx *metrics.Metrics, myAddress uint16, packetCounter *uint8, p InformParams) (frame.Packet, bool, error) {
	id := uuid.New()

	selFlags := regmap.FlagLocalUpdate | regmap.FlagInformRequest
	if p.Secondary {
		selFlags = regmap.FlagInformSecondaryRequest
	}

	depth := opts.RegMapDepth
	selected := selectEntries(m, selFlags)
	if len(selected) == 0 {
		return frame.Packet{}, false, nil
	}

	budget := opts.MaxPayload()
	if p.MaxPayloadOverride > 0 {
		budget = p.MaxPayloadOverride
	}

	defLvl, basePath, sameShape := informShape(selected, depth)
	newStyle := !sameShape || opts.ForceNewStyleInform

	var payload []byte
	var reported []regmap.Entry
	var err error
	if newStyle {
		payload, reported, err = buildNewStyleInform(selected, depth, budget, p.Multi)
	} else {
		payload, reported, err = buildLegacyInform(basePath, defLvl, selected, depth, budget, p.Multi)
	}
	if err != nil {
		log.Error("inform[%s]: encode failed: %v", id, err)
		return frame.Packet{}, false, err
	}
	if len(reported) < len(selected) {
		mx.InformOverflow()
	}

	for _, e := range reported {
		if p.Secondary {
			_ = m.ClearFlag(e.Storage, regmap.FlagInformSecondaryRequest)
		} else {
			_ = m.ClearFlag(e.Storage, regmap.FlagLocalUpdate)
		}
	}

	mx.InformEmitted()
	log.Debug("inform[%s]: reporting %d/%d variables, %s", id, len(reported), len(selected), humanize.Bytes(uint64(len(payload))))

	if p.PayloadOnly {
		return frame.Packet{Payload: payload}, true, nil
	}

	pkt := frame.Packet{
		Type:          frame.Inform,
		MultiPart:     frame.MultiPartNone,
		FromID:        myAddress,
		ToID:          frame.Broadcast,
		AckRequired:   false,
		PacketCounter: *packetCounter,
		Payload:       payload,
	}
	*packetCounter++
	return pkt, true, nil
}

// selectEntries returns the live entries whose flags carry every bit in
// mask, in register-map (sorted) order.
func selectEntries(m *regmap.Map, mask regmap.Flags) []regmap.Entry {
	var out []regmap.Entry
	for _, e := range m.Entries() {
		if e.Flags.Has(mask) {
			out = append(out, e)
		}
	}
	return out
}

// informShape reports whether every selected variable shares the same
// definition level and base path — the condition for the legacy INFORM
// layout — along with that level and base path.
func informShape(selected []regmap.Entry, depth int) (int, regmap.Path, bool) {
	first := regmap.Normalize(selected[0].Path, depth)
	defLvl := regmap.DefinitionLevel(first, depth)
	basePath := append(regmap.Path(nil), first[:defLvl-1]...)

	same := true
	for _, e := range selected[1:] {
		p := regmap.Normalize(e.Path, depth)
		if regmap.DefinitionLevel(p, depth) != defLvl {
			same = false
			break
		}
		for i := 0; i < defLvl-1; i++ {
			if p[i] != basePath[i] {
				same = false
				break
			}
		}
		if !same {
			break
		}
	}
	return defLvl, basePath, same
}

// buildNewStyleInform encodes the nested-path tree layout: key 0 carries
// status 299, and the remaining entries nest by path element. Overflow on
// the first candidate surfaces as ErrOutOfMemory so the caller can retry
// with Multi disabled; overflow on a later one truncates the batch.
func buildNewStyleInform(selected []regmap.Entry, depth, budget int, multi bool) ([]byte, []regmap.Entry, error) {
	candidates := selected
	if !multi {
		candidates = selected[:1]
	}

	enc := cborutil.NewNestedEncoder(depth, budget)
	var reported []regmap.Entry
	for i, e := range candidates {
		raw, err := cborutil.EncodeScalar(e.Flags.Type(), entryBytes(e))
		if err != nil {
			return nil, nil, err
		}
		added, err := enc.Add(e.Path, raw)
		if err != nil {
			return nil, nil, err
		}
		if !added {
			if i == 0 {
				return nil, nil, cborutil.ErrOutOfMemory
			}
			break
		}
		reported = append(reported, e)
	}

	pairs, err := enc.Pairs()
	if err != nil {
		return nil, nil, err
	}
	payload, err := statusWithPairs(StatusInform, pairs)
	return payload, reported, err
}

// buildLegacyInform encodes the flat layout: an optional key-0 base path
// (omitted when the base is the root) plus one key per variable at the
// shared definition level. Each candidate is tried against the running
// payload size in turn; the first candidate has no fallback, later ones
// that would overflow are simply left for a subsequent call.
func buildLegacyInform(basePath regmap.Path, defLvl int, selected []regmap.Entry, depth, budget int, multi bool) ([]byte, []regmap.Entry, error) {
	candidates := selected
	if !multi {
		candidates = selected[:1]
	}

	var pairs []cborutil.Entry
	if defLvl > 1 {
		pathRaw, err := cborutil.WriteValue(pathElems(basePath, depth))
		if err != nil {
			return nil, nil, err
		}
		pairs = append(pairs, cborutil.Entry{Key: 0, Value: pathRaw})
	}

	var reported []regmap.Entry
	for i, e := range candidates {
		raw, err := cborutil.EncodeScalar(e.Flags.Type(), entryBytes(e))
		if err != nil {
			return nil, nil, err
		}
		leafKey := uint64(e.Path[defLvl-1])
		trial := append(append([]cborutil.Entry(nil), pairs...), cborutil.Entry{Key: leafKey, Value: raw})

		msg, err := cborutil.EncodeMap(trial)
		if err != nil {
			return nil, nil, err
		}
		if len(msg) > budget {
			if i == 0 {
				return nil, nil, cborutil.ErrOutOfMemory
			}
			break
		}
		pairs = trial
		reported = append(reported, e)
	}

	msg, err := cborutil.EncodeMap(pairs)
	if err != nil {
		return nil, nil, err
	}
	return []byte(msg), reported, nil
}
