package vecstore

import "errors"

// Sentinel errors returned by Store operations. The root vectorlite package
// wraps these into its public *Error type at the API boundary, attaching
// collection/segment context; vecstore itself stays free of that dependency
// to avoid an import cycle (vectorlite imports vecstore, not vice versa).
var (
	ErrNotFound          = errors.New("vecstore: not found")
	ErrAlreadyExists     = errors.New("vecstore: already exists")
	ErrDimensionMismatch = errors.New("vecstore: dimension mismatch")
	ErrInvalidVector     = errors.New("vecstore: invalid vector")
)
