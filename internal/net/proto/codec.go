package proto

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Writer appends little-endian fields to a frame. The first failure sticks.
type Writer struct {
	buf []byte
	err error
}

// NewWriter starts a frame tagged with t.
func NewWriter(t MessageType, sizeHint int) *Writer {
	buf := make([]byte, 1, max(sizeHint, 16))
	buf[0] = byte(t)
	return &Writer{buf: buf}
}

func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Float32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Text(s string) {
	if len(s) > math.MaxUint16 {
		w.fail(ErrFieldOverflow)
		return
	}
	w.Uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Count writes a u16 collection length.
func (w *Writer) Count(n int) {
	if n < 0 || n > math.MaxUint16 {
		w.fail(ErrFieldOverflow)
		return
	}
	w.Uint16(uint16(n))
}

func (w *Writer) Raw(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Bytes returns the finished frame or the first encoding error.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Reader consumes little-endian fields. Reads past the end, invalid UTF-8 or
// implausible counts mark the reader failed and return zero values.
type Reader struct {
	buf    []byte
	off    int
	err    error
	reason string
}

func NewReader(p []byte) *Reader {
	return &Reader{buf: p}
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) need(n int, reason string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.Remaining() < n {
		r.failf(reason)
		return false
	}
	return true
}

func (r *Reader) failf(reason string) {
	if r.err == nil {
		r.err = ErrMalformedMessage
		r.reason = reason
	}
}

func (r *Reader) Uint8() uint8 {
	if !r.need(1, "truncated u8") {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *Reader) Uint16() uint16 {
	if !r.need(2, "truncated u16") {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *Reader) Uint32() uint32 {
	if !r.need(4, "truncated u32") {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

// Float32 rejects NaN and infinities so they never reach the simulation.
func (r *Reader) Float32() float32 {
	if !r.need(4, "truncated f32") {
		return 0
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		r.failf("non-finite f32")
		return 0
	}
	r.off += 4
	return v
}

func (r *Reader) Bool() bool {
	v := r.Uint8()
	if v > 1 {
		r.failf("invalid bool")
		return false
	}
	return v == 1
}

func (r *Reader) Text() string {
	n := int(r.Uint16())
	if !r.need(n, "truncated string") {
		return ""
	}
	raw := r.buf[r.off : r.off+n]
	if !utf8.Valid(raw) {
		r.failf("invalid utf-8")
		return ""
	}
	r.off += n
	return string(raw)
}

// Count reads a u16 collection length and rejects counts that could not fit
// in the remaining bytes given the smallest possible entry size.
func (r *Reader) Count(minEntry int) int {
	n := int(r.Uint16())
	if r.err != nil {
		return 0
	}
	if n*minEntry > r.Remaining() {
		r.failf("count exceeds frame")
		return 0
	}
	return n
}

func (r *Reader) Raw(n int) []byte {
	if !r.need(n, "truncated bytes") {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}
