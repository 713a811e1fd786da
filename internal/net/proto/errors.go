package proto

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage reports a truncated or structurally invalid frame.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMessageType reports a tag byte with no registered layout.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrOversizedMessage reports a frame above the configured size limit.
	ErrOversizedMessage = errors.New("oversized message")
	// ErrFieldOverflow reports a string or collection too long for its u16 prefix.
	ErrFieldOverflow = errors.New("field exceeds u16 length prefix")
)

// DecodeError carries the failing tag and byte offset of a decode failure.
type DecodeError struct {
	Type   MessageType
	Offset int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("decode %s at byte %d: %s: %v", e.Type, e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s at byte %d: %v", e.Type, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
