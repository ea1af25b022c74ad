package lolan

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/FloWide/lolan-go/cborutil"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/options"
	"github.com/FloWide/lolan-go/regmap"
)

func newTestContext(t *testing.T, recursion int, forceNewStyleInform bool) *Context {
	t.Helper()
	opts := options.DefaultOptions()
	opts.RegMapDepth = 3
	opts.RegMapSize = 8
	opts.RegMapRecursion = recursion
	opts.ForceNewStyleInform = forceNewStyleInform
	c, err := New(1, opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func int16Storage(v int16) *regmap.ByteStorage {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(v))
	return regmap.NewByteStorage(buf)
}

func uint32Storage(v uint32) *regmap.ByteStorage {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return regmap.NewByteStorage(buf)
}

func int8Storage(v int8) *regmap.ByteStorage {
	return regmap.NewByteStorage([]byte{byte(v)})
}

func float64Storage(v float64) *regmap.ByteStorage {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return regmap.NewByteStorage(buf)
}

func stringStorage(s string, size int) *regmap.ByteStorage {
	buf := make([]byte, size)
	copy(buf, s)
	return regmap.NewByteStorage(buf)
}

func mustMap(entries []cborutil.Entry) []byte {
	msg, err := cborutil.EncodeMap(entries)
	if err != nil {
		panic(err)
	}
	return []byte(msg)
}

func mustRaw(v any) cbor.RawMessage {
	raw, err := cborutil.WriteValue(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// Scenario 1: bare-value GET reply for an exact single match.
func TestScenarioGetBareReply(t *testing.T) {
	c := newTestContext(t, 2, false)
	st := int16Storage(11)
	if err := c.Register(regmap.Path{1, 2, 0}, regmap.TypeInt16, st, 2, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := frame.Packet{
		Type:          frame.Get,
		FromID:        7,
		PacketCounter: 9,
		Payload:       mustMap([]cborutil.Entry{{Key: 0, Value: mustRaw([]uint64{1, 2})}}),
	}
	reply, ok, err := c.Dispatch(req)
	if err != nil || !ok {
		t.Fatalf("Dispatch: ok=%v err=%v", ok, err)
	}
	if reply.Type != frame.Ack || reply.ToID != 7 || reply.PacketCounter != 9 {
		t.Fatalf("reply envelope = %+v", reply)
	}
	if len(reply.Payload) != 1 || reply.Payload[0] != 0x0B {
		t.Fatalf("reply payload = % x, want bare 0x0B", reply.Payload)
	}
}

// Scenario 2: SET targeting a read-only variable is rejected per-variable,
// the stored value is untouched, and the key is reported as 405.
func TestScenarioSetReadOnlyRejected(t *testing.T) {
	c := newTestContext(t, 2, false)
	st := stringStorage("LoLaN", 5)
	if err := c.Register(regmap.Path{1, 1, 0}, regmap.TypeString, st, 5, true); err != nil {
		t.Fatalf("Register: %v", err)
	}

	req := frame.Packet{
		Type:   frame.Set,
		FromID: 7,
		Payload: mustMap([]cborutil.Entry{
			{Key: 0, Value: mustRaw([]uint64{1})},
			{Key: 1, Value: mustRaw("x")},
		}),
	}
	reply, ok, err := c.Dispatch(req)
	if err != nil || !ok {
		t.Fatalf("Dispatch: ok=%v err=%v", ok, err)
	}

	var got map[uint64]int
	if err := cbor.Unmarshal(reply.Payload, &got); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if got[0] != 471 || got[1] != 405 {
		t.Fatalf("reply = %v, want {0:471 1:405}", got)
	}
	if string(st.Bytes()) != "LoLaN" {
		t.Fatalf("storage mutated: %q", st.Bytes())
	}
}

// Scenario 3: primary multi-INFORM in both legacy and new-style dialects.
func TestScenarioCreateInformLegacyAndNewStyle(t *testing.T) {
	for _, forceNew := range []bool{false, true} {
		c := newTestContext(t, 2, forceNew)
		u := uint32Storage(100)
		i := int8Storage(-5)
		if err := c.Register(regmap.Path{2, 3, 0}, regmap.TypeUint32, u, 4, false); err != nil {
			t.Fatalf("Register u32: %v", err)
		}
		if err := c.Register(regmap.Path{2, 4, 0}, regmap.TypeInt8, i, 1, false); err != nil {
			t.Fatalf("Register int8: %v", err)
		}
		c.SetFlag(u, regmap.FlagLocalUpdate|regmap.FlagInformRequest)
		c.SetFlag(i, regmap.FlagLocalUpdate|regmap.FlagInformRequest)

		pkt, ok, err := c.CreateInform(true)
		if err != nil || !ok {
			t.Fatalf("CreateInform: ok=%v err=%v", ok, err)
		}
		if pkt.Type != frame.Inform || pkt.ToID != frame.Broadcast {
			t.Fatalf("inform envelope = %+v", pkt)
		}

		if !forceNew {
			var got map[uint64]cbor.RawMessage
			require.NoError(t, cbor.Unmarshal(pkt.Payload, &got))
			var base []uint64
			require.NoError(t, cbor.Unmarshal(got[0], &base))
			require.Equal(t, []uint64{2}, base)
			require.Contains(t, got, uint64(3))
			require.Contains(t, got, uint64(4))
		} else {
			var got map[uint64]cbor.RawMessage
			require.NoError(t, cbor.Unmarshal(pkt.Payload, &got))
			var code int
			require.NoError(t, cbor.Unmarshal(got[0], &code))
			require.Equal(t, 299, code)
			var nested map[uint64]cbor.RawMessage
			require.NoError(t, cbor.Unmarshal(got[2], &nested))
			require.Contains(t, nested, uint64(3))
			require.Contains(t, nested, uint64(4))
		}

		if c.GetFlag(u).Has(regmap.FlagLocalUpdate) || c.GetFlag(i).Has(regmap.FlagLocalUpdate) {
			t.Fatalf("LOCAL_UPDATE not cleared after successful INFORM")
		}
	}
}

// Scenario 4: GET on a base path with two children and RECURSION=2.
func TestScenarioGetBasePathMultiStatus(t *testing.T) {
	c := newTestContext(t, 2, false)
	u := uint32Storage(100)
	i := int8Storage(-5)
	if err := c.Register(regmap.Path{2, 3, 0}, regmap.TypeUint32, u, 4, false); err != nil {
		t.Fatalf("Register u32: %v", err)
	}
	if err := c.Register(regmap.Path{2, 4, 0}, regmap.TypeInt8, i, 1, false); err != nil {
		t.Fatalf("Register int8: %v", err)
	}

	req := frame.Packet{
		Type:    frame.Get,
		FromID:  7,
		Payload: mustMap([]cborutil.Entry{{Key: 0, Value: mustRaw([]uint64{2})}}),
	}
	reply, ok, err := c.Dispatch(req)
	if err != nil || !ok {
		t.Fatalf("Dispatch: ok=%v err=%v", ok, err)
	}

	var got map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(reply.Payload, &got))
	var code int
	require.NoError(t, cbor.Unmarshal(got[0], &code))
	require.Equal(t, 207, code)
	var nested map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(got[2], &nested))
	require.Contains(t, nested, uint64(3))
	require.Contains(t, nested, uint64(4))
}

// Scenario 5: new-style SET touching three nested variables.
func TestScenarioSetNewStyleNested(t *testing.T) {
	c := newTestContext(t, 2, false)
	strSt := stringStorage("", 8)
	int16St := int16Storage(0)
	floatSt := float64Storage(0)
	if err := c.Register(regmap.Path{1, 2, 3}, regmap.TypeString, strSt, 8, false); err != nil {
		t.Fatalf("Register string: %v", err)
	}
	if err := c.Register(regmap.Path{1, 2, 4}, regmap.TypeInt16, int16St, 2, false); err != nil {
		t.Fatalf("Register int16: %v", err)
	}
	if err := c.Register(regmap.Path{2, 0, 0}, regmap.TypeFloat64, floatSt, 8, false); err != nil {
		t.Fatalf("Register float64: %v", err)
	}

	inner := mustMap([]cborutil.Entry{
		{Key: 3, Value: mustRaw("bar")},
		{Key: 4, Value: mustRaw(int64(-19278))},
	})
	req := frame.Packet{
		Type:   frame.Set,
		FromID: 7,
		Payload: mustMap([]cborutil.Entry{
			{Key: 0, Value: mustRaw(uint64(1))},
			{Key: 1, Value: cbor.RawMessage(inner)},
			{Key: 2, Value: mustRaw(3.14)},
		}),
	}
	reply, ok, err := c.Dispatch(req)
	if err != nil || !ok {
		t.Fatalf("Dispatch: ok=%v err=%v", ok, err)
	}

	if got := string(strSt.Bytes()[:3]); got != "bar" {
		t.Fatalf("string variable = %q, want %q", got, "bar")
	}
	if got := int16(binary.LittleEndian.Uint16(int16St.Bytes())); got != -19278 {
		t.Fatalf("int16 variable = %d, want -19278", got)
	}
	if got := math.Float64frombits(binary.LittleEndian.Uint64(floatSt.Bytes())); got != 3.14 {
		t.Fatalf("float64 variable = %v, want 3.14", got)
	}

	var decoded map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(reply.Payload, &decoded))
	var level1 map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(decoded[1], &level1))
	var nested map[uint64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(level1[2], &nested))
	var code3, code4 int
	require.NoError(t, cbor.Unmarshal(nested[3], &code3))
	require.Equal(t, 200, code3)
	require.NoError(t, cbor.Unmarshal(nested[4], &code4))
	require.Equal(t, 200, code4)
	var code2 int
	require.NoError(t, cbor.Unmarshal(decoded[2], &code2))
	require.Equal(t, 200, code2)
}

// Scenario 6: a frame whose version nibble doesn't match is NOT_LOLAN.
func TestScenarioParseWrongVersion(t *testing.T) {
	p := &frame.Packet{
		Type:          frame.Get,
		FromID:        1,
		ToID:          2,
		PacketCounter: 1,
		Payload:       []byte{0x01},
	}
	buf, err := frame.Serialize(p, frame.DefaultMaxPacketSize, true)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	buf[1] = (buf[1] &^ 0x30) | 0x50 // force the version nibble to 0x5

	if _, err := frame.Parse(buf); err != frame.ErrNotLoLaN {
		t.Fatalf("Parse wrong-version frame: err = %v, want ErrNotLoLaN", err)
	}
}
