package cborutil

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/FloWide/lolan-go/regmap"
)

// ErrTypeMismatch signals an incoming CBOR item whose major type is
// incompatible with the target variable's type (text into integer,
// negative int into unsigned, float64 into a 4-byte float slot, ...).
var ErrTypeMismatch = errors.New("cborutil: CBOR item type mismatch")

// ErrValueOutOfRange signals a numerically-compatible item whose value
// can't fit the target storage width, or a string longer than its slot.
var ErrValueOutOfRange = errors.New("cborutil: value out of range for storage")

// EncodeScalar reads size little-endian bytes from data and encodes them as
// the CBOR item matching typ — the write_value half of §4.5.
func EncodeScalar(typ regmap.VarType, data []byte) (cbor.RawMessage, error) {
	switch typ {
	case regmap.TypeInt8:
		return WriteValue(int64(int8(data[0])))
	case regmap.TypeInt16:
		return WriteValue(int64(int16(binary.LittleEndian.Uint16(data))))
	case regmap.TypeInt32:
		return WriteValue(int64(int32(binary.LittleEndian.Uint32(data))))
	case regmap.TypeInt64:
		return WriteValue(int64(binary.LittleEndian.Uint64(data)))
	case regmap.TypeUint8:
		return WriteValue(uint64(data[0]))
	case regmap.TypeUint16:
		return WriteValue(uint64(binary.LittleEndian.Uint16(data)))
	case regmap.TypeUint32:
		return WriteValue(uint64(binary.LittleEndian.Uint32(data)))
	case regmap.TypeUint64:
		return WriteValue(binary.LittleEndian.Uint64(data))
	case regmap.TypeFloat32:
		bits := binary.LittleEndian.Uint32(data)
		return WriteValue(math.Float32frombits(bits))
	case regmap.TypeFloat64:
		bits := binary.LittleEndian.Uint64(data)
		return WriteValue(math.Float64frombits(bits))
	case regmap.TypeString:
		return WriteValue(string(data))
	case regmap.TypeData:
		return WriteValue([]byte(data))
	default:
		return nil, ErrTypeMismatch
	}
}

// DecodeScalar decodes raw against the target variable's type and size,
// returning size little-endian bytes ready to copy into storage. For
// TypeString/TypeData it returns up to size bytes and the content's actual
// length. This is the read half of "variable update from CBOR" (§4.5
// item 3/4): type-incompatible items return ErrTypeMismatch, in-range-but-
// oversized items return ErrValueOutOfRange.
func DecodeScalar(raw cbor.RawMessage, typ regmap.VarType, size int) (data []byte, actualLen int, err error) {
	v, err := ReadValue(raw, -1)
	if err != nil {
		return nil, 0, err
	}

	switch typ {
	case regmap.TypeInt8, regmap.TypeInt16, regmap.TypeInt32, regmap.TypeInt64:
		i, ok := asInt64(v)
		if !ok {
			return nil, 0, ErrTypeMismatch
		}
		if !signedFits(i, size) {
			return nil, 0, ErrValueOutOfRange
		}
		return leInt(i, size), size, nil

	case regmap.TypeUint8, regmap.TypeUint16, regmap.TypeUint32, regmap.TypeUint64:
		u, ok := asUint64(v)
		if !ok {
			return nil, 0, ErrTypeMismatch
		}
		if !unsignedFits(u, size) {
			return nil, 0, ErrValueOutOfRange
		}
		return leUint(u, size), size, nil

	case regmap.TypeFloat32:
		if v.Kind != KindFloat {
			return nil, 0, ErrTypeMismatch
		}
		if size != 4 {
			return nil, 0, ErrValueOutOfRange
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.Float)))
		return b, 4, nil

	case regmap.TypeFloat64:
		if v.Kind != KindFloat {
			return nil, 0, ErrTypeMismatch
		}
		if size != 8 {
			return nil, 0, ErrValueOutOfRange
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.Float))
		return b, 8, nil

	case regmap.TypeString, regmap.TypeData:
		if v.Kind != KindString {
			return nil, 0, ErrTypeMismatch
		}
		if len(v.String) > size {
			return nil, 0, ErrValueOutOfRange
		}
		b := make([]byte, size)
		copy(b, v.String)
		return b, len(v.String), nil

	default:
		return nil, 0, ErrTypeMismatch
	}
}

func asInt64(v Value) (int64, bool) {
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindUint:
		if v.Uint > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint), true
	default:
		return 0, false
	}
}

func asUint64(v Value) (uint64, bool) {
	switch v.Kind {
	case KindUint:
		return v.Uint, true
	case KindInt:
		return 0, false // negative int is never a valid unsigned value
	default:
		return 0, false
	}
}

func signedFits(i int64, size int) bool {
	switch size {
	case 1:
		return i >= math.MinInt8 && i <= math.MaxInt8
	case 2:
		return i >= math.MinInt16 && i <= math.MaxInt16
	case 4:
		return i >= math.MinInt32 && i <= math.MaxInt32
	case 8:
		return true
	default:
		return false
	}
}

func unsignedFits(u uint64, size int) bool {
	switch size {
	case 1:
		return u <= math.MaxUint8
	case 2:
		return u <= math.MaxUint16
	case 4:
		return u <= math.MaxUint32
	case 8:
		return true
	default:
		return false
	}
}

func leInt(i int64, size int) []byte {
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(int8(i))
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(int16(i)))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(int32(i)))
	case 8:
		binary.LittleEndian.PutUint64(b, uint64(i))
	}
	return b
}

func leUint(u uint64, size int) []byte {
	b := make([]byte, size)
	switch size {
	case 1:
		b[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(b, u)
	}
	return b
}
