package npy

import (
	"errors"
	"fmt"
)

// Sentinel errors for the decode taxonomy. Every failure returned by this
// package and the npz/pointcloud packages unwraps to one of these.
var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrMalformedHeader    = errors.New("malformed header")
	ErrMissingField       = errors.New("missing header field")
	ErrInvalidShape       = errors.New("invalid shape")
	ErrUnsupportedDType   = errors.New("unsupported dtype")
	ErrUnsupportedLayout  = errors.New("unsupported layout")
	ErrTruncated          = errors.New("truncated payload")
	ErrNotAZip            = errors.New("not a zip archive")
	ErrCorruptArchive     = errors.New("corrupt archive")
	ErrNoPointCloudArray  = errors.New("no point cloud array")
)

// FormatError describes a malformed or unsupported input.
//
// Kind is one of the sentinel errors above; errors.Is(err, ErrTruncated)
// works on any *FormatError of that kind.
type FormatError struct {
	Kind   error
	Field  string // header field name, for ErrMissingField
	DType  string // dtype code, for ErrUnsupportedDType
	Entry  string // archive member name, when decoding inside an .npz
	Detail string
	cause  error
}

// Errorf builds a FormatError of the given kind.
func Errorf(kind error, format string, args ...interface{}) *FormatError {
	return &FormatError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Field != "":
		msg += fmt.Sprintf(" %q", e.Field)
	case e.DType != "":
		msg += fmt.Sprintf(" %q", e.DType)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Entry != "" {
		msg = fmt.Sprintf("entry %s: %s", e.Entry, msg)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and any underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// WithCause attaches the underlying error (e.g. a zip reader failure).
func (e *FormatError) WithCause(err error) *FormatError {
	e.cause = err
	return e
}

// InEntry returns a copy of err annotated with an archive member name.
// Non-FormatError values are wrapped as ErrCorruptArchive.
func InEntry(err error, entry string) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		cp := *fe
		cp.Entry = entry
		return &cp
	}
	return &FormatError{Kind: ErrCorruptArchive, Entry: entry, cause: err}
}

// IsFormatError reports whether err belongs to the decode taxonomy.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
