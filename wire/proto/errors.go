package proto

import (
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned by Encode when the total frame length would
// exceed the protocol ceiling
var ErrPayloadTooLarge = errors.New("proto: message exceeds protocol length ceiling")

// ErrTooManyCodecs is returned by Encode when a startup message declares
// more codecs than its one-byte list length can carry
var ErrTooManyCodecs = errors.New("proto: startup declares more codecs than the count byte can carry")

// --------------------------------------------------------------------------
// Frame errors
// --------------------------------------------------------------------------

// FrameReason classifies a frame decoding failure
type FrameReason int

const (
	// UnknownTag means the stream produced a tag byte outside the protocol's
	// message set
	UnknownTag FrameReason = iota
	// Truncated means the stream ended before a declared-length message was
	// complete
	Truncated
	// LengthMismatch means the declared length is invalid or the payload
	// parse consumed a different byte count than declared
	LengthMismatch
)

// String returns the name of a frame failure reason
func (r FrameReason) String() string {
	switch r {
	case UnknownTag:
		return "unknown tag"
	case Truncated:
		return "truncated frame"
	case LengthMismatch:
		return "length mismatch"
	default:
		return "unknown"
	}
}

// FrameError reports a malformed byte stream. All frame errors are
// connection-fatal: after one, the stream position is undefined and no
// further decoding is attempted.
type FrameError struct {
	Reason FrameReason
	Detail string
}

func (e *FrameError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("proto: frame error: %s", e.Reason)
	}
	return fmt.Sprintf("proto: frame error: %s (%s)", e.Reason, e.Detail)
}

// frameErrorf builds a FrameError with a formatted detail string
func frameErrorf(reason FrameReason, format string, args ...interface{}) error {
	return &FrameError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsFrameError reports whether err is (or wraps) a FrameError
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}
