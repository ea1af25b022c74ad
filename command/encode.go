package command

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/cborutil"
)

// statusOnly encodes the short {0: code} reply shape used for 404/405/507
// and for SET's short-reply-if-ok collapse.
func statusOnly(code int) ([]byte, error) {
	codeRaw, err := cborutil.WriteValue(int64(code))
	if err != nil {
		return nil, err
	}
	msg, err := cborutil.EncodeMap([]cborutil.Entry{{Key: 0, Value: codeRaw}})
	if err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

// statusWithPairs encodes {0: code, <pairs...>}, combining an overall status
// with the per-variable or nested entries GET/SET/INFORM attach alongside it.
func statusWithPairs(code int, pairs []cborutil.Entry) ([]byte, error) {
	codeRaw, err := cborutil.WriteValue(int64(code))
	if err != nil {
		return nil, err
	}
	entries := make([]cborutil.Entry, 0, len(pairs)+1)
	entries = append(entries, cborutil.Entry{Key: 0, Value: codeRaw})
	entries = append(entries, pairs...)
	msg, err := cborutil.EncodeMap(entries)
	if err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

// bareValue encodes a single already-encoded CBOR item as the entire reply
// payload, unwrapped (the non-verbose single-match GET reply).
func bareValue(v cbor.RawMessage) []byte {
	return []byte(v)
}
