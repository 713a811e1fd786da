package proto

import "fmt"

// Batch wraps already-encoded frames: count u16, then u16 length + bytes each.
type Batch struct {
	Payloads [][]byte
}

func (*Batch) Type() MessageType { return TypeBatch }

func (m *Batch) encode(w *Writer) {
	w.Count(len(m.Payloads))
	for _, p := range m.Payloads {
		w.Count(len(p))
		w.Raw(p)
	}
}

func (m *Batch) decode(r *Reader) {
	n := r.Count(2)
	m.Payloads = make([][]byte, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		size := int(r.Uint16())
		if size == 0 {
			r.failf("empty batch entry")
			return
		}
		m.Payloads = append(m.Payloads, r.Raw(size))
	}
}

// EncodeBatch returns the single payload unchanged, or a BATCH envelope when
// there is more than one.
func EncodeBatch(payloads [][]byte) ([]byte, error) {
	switch len(payloads) {
	case 0:
		return nil, fmt.Errorf("encode batch: no payloads")
	case 1:
		return payloads[0], nil
	}
	size := 3
	for _, p := range payloads {
		size += 2 + len(p)
	}
	w := NewWriter(TypeBatch, size)
	(&Batch{Payloads: payloads}).encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// Unbatch returns the ordered payloads inside a BATCH frame, or the frame
// itself when it is not an envelope.
func Unbatch(frame []byte) ([][]byte, error) {
	if len(frame) == 0 || MessageType(frame[0]) != TypeBatch {
		return [][]byte{frame}, nil
	}
	msg, err := Decode(frame)
	if err != nil {
		return nil, err
	}
	return msg.(*Batch).Payloads, nil
}
