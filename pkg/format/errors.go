package format

import (
	"errors"
	"fmt"
)

// FormatError reports a violation of the byte-level contract. Offset is
// the absolute byte position where the problem was detected, or -1 when
// no position applies.
type FormatError struct {
	Reason string
	Offset int64
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return "nytprof: " + e.Reason
	}
	return fmt.Sprintf("nytprof: %s at offset %d", e.Reason, e.Offset)
}

// Errorf builds a FormatError at the given offset.
func Errorf(offset int64, format string, args ...any) *FormatError {
	return &FormatError{Reason: fmt.Sprintf(format, args...), Offset: offset}
}

// IOError wraps a failure of the underlying storage.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("nytprof: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("nytprof: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UsageError reports a contract violation by the caller.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("nytprof: %s: %s", e.Op, e.Reason)
}

// IsFormatError reports whether err wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsIOError reports whether err wraps an *IOError.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsUsageError reports whether err wraps a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// OffsetOf returns the offset carried by a wrapped FormatError, or -1.
func OffsetOf(err error) int64 {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Offset
	}
	return -1
}
