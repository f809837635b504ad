package plum

import (
	"github.com/wippyai/plum/errors"
)

// Buffer unpacks a sequence of values from a growing byte stream.
//
// An insufficient_bytes failure leaves the buffer untouched so the caller
// may Append more bytes and retry.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer creates a buffer over b.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Append adds bytes to the end of the stream.
func (b *Buffer) Append(p []byte) {
	if b.pos > 0 && b.pos == len(b.data) {
		b.data = b.data[:0]
		b.pos = 0
	}
	b.data = append(b.data, p...)
}

// Unpack consumes the next value.
func (b *Buffer) Unpack(t Transform) (any, error) {
	r := NewReader(b.data[b.pos:], b.pos)
	v, err := t.Unpack(r, nil)
	if err != nil {
		_, _, derr := unpackDumpAt(t, b.data[b.pos:], b.pos, false)
		if derr == nil {
			derr = annotate(errors.PhaseUnpack, err, nil)
		}
		return nil, derr
	}
	b.pos = r.Offset()
	return v, nil
}

// Remaining returns the number of unconsumed bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

// Offset returns the position of the next unconsumed byte in the buffered data.
func (b *Buffer) Offset() int {
	return b.pos
}

// Close fails with excess_bytes when bytes remain unconsumed.
func (b *Buffer) Close() error {
	if n := b.Remaining(); n > 0 {
		return errors.New(errors.PhaseUnpack, errors.KindExcessBytes).
			Offset(b.pos).
			Value(n).
			Detail("%d unconsumed bytes", n).
			Build()
	}
	return nil
}
