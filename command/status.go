// Package command implements the CBOR command layer: GET, SET, and INFORM
// request/reply processing (C6/C7/C8 of the component table), built on top
// of cborutil and regmap.
package command

import "errors"

// Status codes carried in CBOR replies (§6).
const (
	StatusOK          = 200
	StatusNoContent   = 204
	StatusMultiStatus = 207
	StatusInform      = 299

	StatusNotFound        = 404
	StatusMethodNotAllowed = 405
	StatusPartialFailure  = 470
	StatusTotalFailure    = 471
	StatusTypeMismatch    = 472
	StatusOutOfRange      = 473
	StatusPayloadTooLarge = 507
)

// ErrMalformedRequest signals a request payload that doesn't parse as a
// valid GET/SET command at all (missing or malformed zero-key entry,
// invalid path) — the command-level GENERROR outcome.
var ErrMalformedRequest = errors.New("command: malformed request payload")
