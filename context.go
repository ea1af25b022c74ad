// Package lolan ties the register map, frame codec, and CBOR command layer
// together into the single entry point a host application drives: a
// Context owning one node's variables, address, and outbound packet
// counter, the way cs104.Client owns one IEC 60870-5-104 connection.
package lolan

import (
	"github.com/FloWide/lolan-go/clog"
	"github.com/FloWide/lolan-go/command"
	"github.com/FloWide/lolan-go/frame"
	"github.com/FloWide/lolan-go/metrics"
	"github.com/FloWide/lolan-go/options"
	"github.com/FloWide/lolan-go/regmap"
)

// Context owns one node's register map, its on-wire address, and its
// outbound packet counter (lolan_ctx). It is not safe for concurrent use:
// a host driving it from multiple goroutines must serialize access itself,
// the same single-threaded contract the original assumes.
type Context struct {
	opts    options.Options
	regmap  *regmap.Map
	address uint16
	counter uint8

	log     clog.Clog
	metrics *metrics.Metrics
}

// New creates a Context for address, applying defaults to opts via
// Options.Valid (which fills the zero-valued size and depth fields). mx may
// be nil, in which case metrics are silently dropped.
func New(address uint16, opts options.Options, mx *metrics.Metrics) (*Context, error) {
	if err := opts.Valid(); err != nil {
		return nil, err
	}
	return &Context{
		opts:    opts,
		regmap:  regmap.NewMap(opts.RegMapSize, opts.RegMapDepth),
		address: address,
		counter: 1,
		log:     clog.NewLogger("lolan"),
		metrics: mx,
	}, nil
}

// SetLogger replaces the Context's logger, e.g. to route through a host's
// existing zap instance.
func (c *Context) SetLogger(log clog.Clog) { c.log = log }

// Address returns the node's current on-wire address.
func (c *Context) Address() uint16 { return c.address }

// SetAddress changes the node's address and resets the outbound packet
// counter, per §5's init/set_address contract.
func (c *Context) SetAddress(address uint16) {
	c.address = address
	c.counter = 1
}

// Depth returns the configured register-map path depth.
func (c *Context) Depth() int { return c.opts.RegMapDepth }

// Options returns the Context's effective (defaulted) configuration.
func (c *Context) Options() options.Options { return c.opts }

// Register inserts a new variable into the map. See regmap.Map.Register for
// the full set of failure conditions.
func (c *Context) Register(path regmap.Path, typ regmap.VarType, storage regmap.Storage, size int, readOnly bool) error {
	return c.regmap.Register(path, typ, storage, size, readOnly)
}

// Remove deletes the variable backed by storage.
func (c *Context) Remove(storage regmap.Storage) error {
	return c.regmap.Remove(storage)
}

// SetFlag, ClearFlag, GetFlag, IsUpdated, and ProcessUpdated delegate
// directly to the register map; see regmap.Map for semantics.
func (c *Context) SetFlag(storage regmap.Storage, mask regmap.Flags) error {
	return c.regmap.SetFlag(storage, mask)
}

func (c *Context) ClearFlag(storage regmap.Storage, mask regmap.Flags) error {
	return c.regmap.ClearFlag(storage, mask)
}

func (c *Context) GetFlag(storage regmap.Storage) regmap.Flags {
	return c.regmap.GetFlag(storage)
}

func (c *Context) IsUpdated(storage regmap.Storage, clear bool) regmap.Result {
	return c.regmap.IsUpdated(storage, clear)
}

func (c *Context) ProcessUpdated(clear bool, callback func(storage regmap.Storage)) regmap.Result {
	return c.regmap.ProcessUpdated(clear, callback)
}

// SetDataActualLength records the in-use length of an opaque-data variable.
func (c *Context) SetDataActualLength(storage regmap.Storage, n int) error {
	return c.regmap.SetDataActualLength(storage, n)
}

// RegMap exposes the underlying register map for callers that need the
// lower-level query surface (Lookup, Occurrences, Entries, ...) directly.
func (c *Context) RegMap() *regmap.Map { return c.regmap }

// Dispatch routes an inbound, already-parsed frame to the matching command
// handler and returns the reply packet to send back, if any. Packet types
// with no reply (INFORM, ACK, CONTROL) yield ok == false.
func (c *Context) Dispatch(req frame.Packet) (reply frame.Packet, ok bool, err error) {
	switch req.Type {
	case frame.Get:
		reply, err = command.ProcessGet(c.regmap, c.opts, c.log, c.metrics, c.address, req)
		return reply, err == nil, err
	case frame.Set:
		reply, err = command.ProcessSet(c.regmap, c.opts, c.log, c.metrics, c.address, req)
		return reply, err == nil, err
	default:
		return frame.Packet{}, false, nil
	}
}

// CreateGet builds a GET request packet addressed to toID for path, and
// advances the Context's outbound packet counter.
func (c *Context) CreateGet(toID uint16, path regmap.Path) (frame.Packet, error) {
	pkt, err := command.CreateGet(c.opts, c.address, toID, c.counter, path)
	if err != nil {
		return frame.Packet{}, err
	}
	c.counter++
	return pkt, nil
}

// CreateInform checks for variables with a pending normal (LOCAL_UPDATE &
// INFORM_REQUEST) INFORM request and, if any are found, produces the
// broadcast INFORM packet reporting them. ok is false when nothing needed
// reporting.
func (c *Context) CreateInform(multi bool) (pkt frame.Packet, ok bool, err error) {
	return command.CreateInform(c.regmap, c.opts, c.log, c.metrics, c.address, &c.counter, multi)
}

// CreateInformEx is the extended form of CreateInform, exposing secondary
// selection, a one-shot payload budget override, and payload-only output.
func (c *Context) CreateInformEx(p command.InformParams) (pkt frame.Packet, ok bool, err error) {
	return command.CreateInformEx(c.regmap, c.opts, c.log, c.metrics, c.address, &c.counter, p)
}

// ParseFrame decodes buf into a Packet, recording frame-level metrics.
func (c *Context) ParseFrame(buf []byte) (frame.Packet, error) {
	pkt, err := frame.Parse(buf)
	if err != nil {
		if err == frame.ErrCRC {
			c.metrics.CRCFailure()
		}
		return frame.Packet{}, err
	}
	c.metrics.FrameParsed()
	return pkt, nil
}

// SerializeFrame encodes pkt to its on-wire form, including the CRC
// trailer, within the Context's configured MaxPacketSize.
func (c *Context) SerializeFrame(pkt frame.Packet) ([]byte, error) {
	return frame.Serialize(&pkt, c.opts.MaxPacketSize, true)
}
