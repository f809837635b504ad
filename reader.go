package plum

import (
	"fmt"

	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Reader is a bounded cursor over bytes being unpacked.
type Reader struct {
	buf  []byte
	pos  int
	base int
}

// NewReader creates a reader whose offsets start at base.
func NewReader(b []byte, base int) *Reader {
	return &Reader{buf: b, base: base}
}

// Next consumes n bytes.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New(errors.PhaseUnpack, errors.KindInvalidValue).
			Detail("negative length %d", n).
			Build()
	}
	if rem := r.Remaining(); n > rem {
		return nil, errors.InsufficientBytes(n, rem)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Take consumes n bytes like Next. When fewer remain and rec is non-nil,
// the bytes that are present are consumed into rec before failing.
func (r *Reader) Take(n int, rec *dump.Record, format string) ([]byte, error) {
	b, err := r.Next(n)
	if err != nil && rec != nil {
		rest := r.Rest()
		rec.Format = format
		rec.Raw = append([]byte{}, rest...)
		rec.Value = fmt.Sprintf("<insufficient bytes, %d too few>", n-len(rest))
	}
	return b, err
}

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if rem := r.Remaining(); n > rem {
		return nil, errors.InsufficientBytes(n, rem)
	}
	return r.buf[r.pos : r.pos+n], nil
}

// Rest consumes and returns every remaining byte.
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Offset returns the absolute offset of the next byte.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Sub consumes n bytes and returns a reader limited to them.
func (r *Reader) Sub(n int) (*Reader, error) {
	off := r.Offset()
	b, err := r.Next(n)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: b, base: off}, nil
}

// SubAvailable consumes up to n bytes and returns a reader over what was
// present along with the shortfall.
func (r *Reader) SubAvailable(n int) (*Reader, int) {
	off := r.Offset()
	short := 0
	if rem := r.Remaining(); n > rem {
		short = n - rem
		n = rem
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return &Reader{buf: b, base: off}, short
}

// Excess consumes the remaining bytes, describing them in rec when it is
// non-nil. It returns the number of bytes consumed.
func (r *Reader) Excess(rec *dump.Record) int {
	n := r.Remaining()
	rest := r.Rest()
	if rec != nil && n > 0 {
		rec.Raw = append([]byte{}, rest...)
		rec.Value = fmt.Sprintf("<excess bytes, %d unconsumed>", n)
	}
	return n
}
