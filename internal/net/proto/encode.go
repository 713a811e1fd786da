package proto

import "fmt"

// Encode renders msg as one binary frame.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	w := NewWriter(msg.Type(), 64)
	msg.encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return data, nil
}

// MustEncode panics on encode failure. Only for fixed-size messages built by
// the server itself.
func MustEncode(msg Message) []byte {
	data, err := Encode(msg)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses one frame. Failures are *DecodeError wrapping
// ErrMalformedMessage or ErrUnknownMessageType; Decode never panics.
// Bytes after a complete payload are ignored.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty frame", Err: ErrMalformedMessage}
	}
	t := MessageType(data[0])
	ctor, ok := constructors[t]
	if !ok {
		return nil, &DecodeError{Type: t, Err: ErrUnknownMessageType}
	}
	msg := ctor()
	r := NewReader(data[1:])
	msg.decode(r)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Type: t, Offset: r.Offset() + 1, Reason: r.reason, Err: err}
	}
	return msg, nil
}

// DecodeLimited rejects frames larger than limit before parsing.
func DecodeLimited(data []byte, limit int) (Message, error) {
	if limit > 0 && len(data) > limit {
		t := MessageType(0)
		if len(data) > 0 {
			t = MessageType(data[0])
		}
		return nil, &DecodeError{Type: t, Offset: limit, Reason: fmt.Sprintf("%d bytes", len(data)), Err: ErrOversizedMessage}
	}
	return Decode(data)
}
