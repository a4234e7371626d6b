package frame

import (
	"errors"
	"fmt"
)

// Error categories. Every decode failure matches ErrInvalidData and every
// rejected caller input matches ErrInvalidInput under errors.Is.
var (
	ErrInvalidData  = errors.New("frame: invalid data")
	ErrInvalidInput = errors.New("frame: invalid input")
)

var (
	ErrMalformedLength   = fmt.Errorf("%w: could not parse length", ErrInvalidData)
	ErrFrameTooLarge     = fmt.Errorf("%w: frame size too big", ErrInvalidData)
	ErrHeaderTooLong     = fmt.Errorf("%w: frame head too long", ErrInvalidData)
	ErrMissingTerminator = fmt.Errorf("%w: missing terminator", ErrInvalidData)

	ErrPayloadTooLarge = fmt.Errorf("%w: payload too big", ErrInvalidInput)
	ErrInvalidConfig   = fmt.Errorf("%w: invalid config", ErrInvalidInput)
)

var (
	// ErrWouldBlock reports that the transport cannot make progress right
	// now. It is control flow, not a failure: retry after readiness.
	ErrWouldBlock = errors.New("frame: operation would block")

	ErrDetached = errors.New("frame: transport detached")
)

// ErrorKind maps a decode error onto a short stable label for logs and
// metrics. Errors outside this package map to "io".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedLength):
		return "malformed_length"
	case errors.Is(err, ErrFrameTooLarge):
		return "frame_too_large"
	case errors.Is(err, ErrHeaderTooLong):
		return "header_too_long"
	case errors.Is(err, ErrMissingTerminator):
		return "missing_terminator"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrWouldBlock):
		return "would_block"
	default:
		return "io"
	}
}
