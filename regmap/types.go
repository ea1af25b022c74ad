package regmap

// VarType identifies the storage kind of a register map entry. It occupies
// the low 4 bits of Flags, mirroring lolan_VarType's placement in the
// original flags word.
type VarType uint8

const (
	TypeInt8 VarType = iota
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeData
)

// IsSigned reports whether t is one of the signed integer kinds.
func (t VarType) IsSigned() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// IsUnsigned reports whether t is one of the unsigned integer kinds.
func (t VarType) IsUnsigned() bool {
	switch t {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating-point kind.
func (t VarType) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// IsInteger reports whether t is any integer kind, signed or unsigned.
func (t VarType) IsInteger() bool {
	return t.IsSigned() || t.IsUnsigned()
}

// ValidSize reports whether size is an allowed storage width for t: each
// integer and float type accepts only its own width (1, 2, 4 or 8 bytes),
// string/data any size ≥ 1.
func (t VarType) ValidSize(size int) bool {
	if size <= 0 {
		return false
	}
	switch t {
	case TypeInt8, TypeUint8:
		return size == 1
	case TypeInt16, TypeUint16:
		return size == 2
	case TypeInt32, TypeUint32, TypeFloat32:
		return size == 4
	case TypeInt64, TypeUint64, TypeFloat64:
		return size == 8
	case TypeString, TypeData:
		return true
	}
	return false
}

// Flags is the per-entry bitmask: the low 4 bits carry VarType, the
// remaining bits carry the boolean flags documented in spec §3.
type Flags uint16

const (
	flagTypeMask Flags = 0x000F

	FlagRemoteUpdate            Flags = 1 << 4
	FlagRemoteReadOnly          Flags = 1 << 5
	FlagRemoteUpdateMismatch    Flags = 1 << 6
	FlagRemoteUpdateOutOfRange  Flags = 1 << 7
	FlagLocalUpdate             Flags = 1 << 8
	FlagInformRequest           Flags = 1 << 9
	FlagInformSecondaryRequest  Flags = 1 << 10
	FlagAux                     Flags = 1 << 11
)

// UserMask is the set of bits toggleable through SetFlag/ClearFlag — every
// flag but the type nibble, which is fixed at registration.
const UserMask = FlagRemoteUpdate | FlagRemoteReadOnly | FlagRemoteUpdateMismatch |
	FlagRemoteUpdateOutOfRange | FlagLocalUpdate | FlagInformRequest |
	FlagInformSecondaryRequest | FlagAux

// Type extracts the VarType nibble.
func (f Flags) Type() VarType { return VarType(f & flagTypeMask) }

// withType returns f with its type nibble replaced by t.
func (f Flags) withType(t VarType) Flags {
	return (f &^ flagTypeMask) | Flags(t)&flagTypeMask
}

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }
