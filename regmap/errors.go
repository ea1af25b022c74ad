package regmap

import "errors"

// Sentinel errors returned by Map's mutating and lookup operations.
var (
	ErrInvalidPath     = errors.New("regmap: invalid path")
	ErrZeroSize        = errors.New("regmap: zero size")
	ErrUnsupportedSize = errors.New("regmap: unsupported size for type")
	ErrDuplicatePath   = errors.New("regmap: duplicate path")
	ErrDuplicateStore  = errors.New("regmap: duplicate storage reference")
	ErrPrefixCollision = errors.New("regmap: path collides with an existing entry's prefix")
	ErrMapFull         = errors.New("regmap: register map full")
	ErrNotFound        = errors.New("regmap: no matching entry")
	ErrNotData         = errors.New("regmap: actual-length field only valid for data variables")
	ErrActualLength    = errors.New("regmap: invalid actual length")
)
