package vectorlite

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in spec §7. Use errors.Is against these;
// use errors.As against *Error to recover structured context.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrInvalidVector      = errors.New("invalid vector")
	ErrCorrupt            = errors.New("corrupt")
	ErrVersionUnsupported = errors.New("version unsupported")
	ErrLocked             = errors.New("locked")
	ErrConflictEpoch      = errors.New("conflict epoch")
	ErrIO                 = errors.New("io")
	ErrUnsupported        = errors.New("unsupported")
)

// Error is the uniform error type returned by vectorlite's public API.
//
// It carries optional structured context (collection, vector id, segment,
// blob key) alongside the underlying cause, following the same
// wrap(err, withX(...)) shape the rest of this codebase's ancestry uses.
//
//	var verr *vectorlite.Error
//	if errors.As(err, &verr) {
//	    fmt.Println(verr.CollectionName, verr.VectorID)
//	}
type Error struct {
	CollectionName string
	VectorID       uint32
	HasVectorID    bool
	SegmentName    string
	Key            string
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}

	suffix := e.suffix()
	if suffix == "" {
		return msg
	}

	if msg == "" {
		return suffix
	}

	return msg + " " + suffix
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.CollectionName != "" {
		parts = append(parts, "collection="+e.CollectionName)
	}

	if e.HasVectorID {
		parts = append(parts, fmt.Sprintf("id=%d", e.VectorID))
	}

	if e.SegmentName != "" {
		parts = append(parts, "segment="+e.SegmentName)
	}

	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	if len(parts) == 0 {
		return ""
	}

	s := "("
	for i, p := range parts {
		if i > 0 {
			s += " "
		}
		s += p
	}

	return s + ")"
}

// errOpt configures an *Error during construction via wrap.
type errOpt func(*Error)

func withCollection(name string) errOpt {
	return func(e *Error) { e.CollectionName = name }
}

func withVectorID(id uint32) errOpt {
	return func(e *Error) {
		e.VectorID = id
		e.HasVectorID = true
	}
}

func withSegment(name string) errOpt {
	return func(e *Error) { e.SegmentName = name }
}

func withKey(key string) errOpt {
	return func(e *Error) { e.Key = key }
}

// wrap attaches structured context to err, producing an *Error. Returns nil
// if err is nil. If err is already *Error with no new options, it is
// returned unchanged; otherwise context is merged, inheriting from an
// existing *Error found directly in the chain (not through fmt.Errorf).
func wrap(err error, opts ...errOpt) error {
	if err == nil {
		return nil
	}

	existing, isDirect := err.(*Error) //nolint:errorlint // direct-type check is intentional

	if isDirect && len(opts) == 0 {
		return existing
	}

	e := &Error{Err: err}

	if isDirect {
		*e = *existing
		e.Err = existing.Err
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
