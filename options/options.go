// Package options models the compile-time knobs §6 of the specification
// recognizes (LOLAN_MAX_PACKET_SIZE, LOLAN_REGMAP_SIZE, ...) as a runtime
// struct, the same translation the teacher applies to its own wire-width
// constants (cs104.Config turns CommonAddrSize/InfoObjAddrSize from C
// macros into validated struct fields) — one compiled library, several
// device profiles, instead of a value baked in at compile time.
package options

import (
	"errors"
	"fmt"
)

// Options is the root configuration record for a Context.
type Options struct {
	// MaxPacketSize is LOLAN_MAX_PACKET_SIZE: total on-wire frame cap
	// including header and CRC.
	MaxPacketSize int
	// RegMapSize is LOLAN_REGMAP_SIZE: max variables per context.
	RegMapSize int
	// RegMapDepth is LOLAN_REGMAP_DEPTH: path length D.
	RegMapDepth int
	// VarSizeBits is LOLAN_VARSIZE_BITS: width of the per-variable size
	// counter (8, 16, or 32). Valid checks it; variable sizes are held as
	// int and are not limited by it.
	VarSizeBits int
	// RegMapRecursion is LOLAN_REGMAP_RECURSION: how deep a GET on a base
	// path descends; 0 refuses recursive requests.
	RegMapRecursion int

	// ForceGetVerboseReply always wraps single-value GET replies in the
	// {0:200, value} form instead of emitting the bare value.
	ForceGetVerboseReply bool
	// ForceNewStyleInform disables the legacy INFORM layout.
	ForceNewStyleInform bool
	// SetShortReplyIfOK collapses a SET reply to a single key-0 entry when
	// every update succeeded.
	SetShortReplyIfOK bool
	// CopyRoutingRequestOnAck propagates the routing-requested bit from a
	// request onto its GET/SET reply.
	CopyRoutingRequestOnAck bool
	// AllowVarlenLolanData names LOLAN_ALLOW_VARLEN_LOLANDATA. Nothing reads
	// it: the actual-length field on opaque-data variables is always in use,
	// whatever its value.
	AllowVarlenLolanData bool
}

// DefaultOptions returns the defaults named in §6.
func DefaultOptions() Options {
	return Options{
		MaxPacketSize:   128,
		RegMapSize:      20,
		RegMapDepth:     3,
		VarSizeBits:     8,
		RegMapRecursion: 1,
	}
}

var (
	ErrMaxPacketSize = errors.New("options: MaxPacketSize must be at least 16")
	ErrRegMapSize    = errors.New("options: RegMapSize must be positive")
	ErrRegMapDepth   = errors.New("options: RegMapDepth must be positive")
	ErrVarSizeBits   = errors.New("options: VarSizeBits must be 8, 16, or 32")
	ErrRecursion     = errors.New("options: RegMapRecursion must be >= 0")
)

// Valid fills in zero-valued MaxPacketSize, RegMapSize, RegMapDepth and
// VarSizeBits from DefaultOptions and rejects out-of-range values, mirroring
// cs104.Config.Valid()'s defaulting pattern. RegMapRecursion and the boolean
// switches are kept as given, since zero is a meaningful setting for them.
func (o *Options) Valid() error {
	d := DefaultOptions()
	if o.MaxPacketSize == 0 {
		o.MaxPacketSize = d.MaxPacketSize
	}
	if o.RegMapSize == 0 {
		o.RegMapSize = d.RegMapSize
	}
	if o.RegMapDepth == 0 {
		o.RegMapDepth = d.RegMapDepth
	}
	if o.VarSizeBits == 0 {
		o.VarSizeBits = d.VarSizeBits
	}

	if o.MaxPacketSize < 16 {
		return ErrMaxPacketSize
	}
	if o.RegMapSize <= 0 {
		return ErrRegMapSize
	}
	if o.RegMapDepth <= 0 {
		return ErrRegMapDepth
	}
	switch o.VarSizeBits {
	case 8, 16, 32:
	default:
		return ErrVarSizeBits
	}
	if o.RegMapRecursion < 0 {
		return ErrRecursion
	}
	return nil
}

// MaxPayload returns the usable payload budget given MaxPacketSize (total
// frame cap less the 7-byte header and 2-byte CRC).
func (o Options) MaxPayload() int {
	return o.MaxPacketSize - 9
}

func (o Options) String() string {
	return fmt.Sprintf(
		"Options{MaxPacketSize:%d RegMapSize:%d RegMapDepth:%d VarSizeBits:%d RegMapRecursion:%d}",
		o.MaxPacketSize, o.RegMapSize, o.RegMapDepth, o.VarSizeBits, o.RegMapRecursion,
	)
}
