package transform

import (
	"fmt"
	"math"
	"strconv"

	"fortio.org/safecast"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
)

// Int packs integers of one to eight bytes.
type Int struct {
	name   string
	size   int
	order  plum.ByteOrder
	signed bool
}

var (
	Uint8    = NewInt(1, plum.BigEndian, false)
	Sint8    = NewInt(1, plum.BigEndian, true)
	Uint16BE = NewInt(2, plum.BigEndian, false)
	Uint16LE = NewInt(2, plum.LittleEndian, false)
	Sint16BE = NewInt(2, plum.BigEndian, true)
	Sint16LE = NewInt(2, plum.LittleEndian, true)
	Uint32BE = NewInt(4, plum.BigEndian, false)
	Uint32LE = NewInt(4, plum.LittleEndian, false)
	Sint32BE = NewInt(4, plum.BigEndian, true)
	Sint32LE = NewInt(4, plum.LittleEndian, true)
	Uint64BE = NewInt(8, plum.BigEndian, false)
	Uint64LE = NewInt(8, plum.LittleEndian, false)
	Sint64BE = NewInt(8, plum.BigEndian, true)
	Sint64LE = NewInt(8, plum.LittleEndian, true)
)

// NewInt creates an integer transform. It panics when size is outside 1..8.
func NewInt(size int, order plum.ByteOrder, signed bool) *Int {
	if size < 1 || size > 8 {
		panic(fmt.Sprintf("transform: integer size %d not in 1..8", size))
	}
	name := "uint"
	if signed {
		name = "int"
	}
	name += strconv.Itoa(size * 8)
	if size > 1 {
		name += order.Suffix()
	}
	return &Int{name: name, size: size, order: order, signed: signed}
}

// Named returns a copy of t reported under a different format name.
func (t *Int) Named(name string) *Int {
	c := *t
	c.name = name
	return &c
}

func (t *Int) Name() string { return t.name }
func (t *Int) Size() int    { return t.size }

// Hint returns the natural Go type of unpacked values.
func (t *Int) Hint() string {
	bits := t.naturalBits()
	if t.signed {
		return "int" + strconv.Itoa(bits)
	}
	return "uint" + strconv.Itoa(bits)
}

func (t *Int) Signed() bool              { return t.signed }
func (t *Int) ByteOrder() plum.ByteOrder { return t.order }

func (t *Int) naturalBits() int {
	switch {
	case t.size == 1:
		return 8
	case t.size == 2:
		return 16
	case t.size <= 4:
		return 32
	default:
		return 64
	}
}

func (t *Int) mask() uint64 {
	if t.size == 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(t.size)) - 1
}

// Range describes the permitted values.
func (t *Int) Range() string {
	bits := 8 * uint(t.size)
	if t.signed {
		hi := uint64(1)<<(bits-1) - 1
		return fmt.Sprintf("-%d..%d", hi+1, hi)
	}
	return fmt.Sprintf("0..%d", t.mask())
}

// Raw converts v to its two's complement bit pattern, checking the range.
func (t *Int) Raw(v any) (uint64, error) {
	neg, mag, ok := coerce.Integer(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhasePack, v, "an integer")
	}
	bits := 8 * uint(t.size)

	if !t.signed {
		if neg && mag != 0 {
			return 0, errors.OutOfRange(errors.PhasePack, v, t.name, t.Range())
		}
		if mag > t.mask() {
			return 0, errors.OutOfRange(errors.PhasePack, v, t.name, t.Range())
		}
		return mag, nil
	}

	limit := uint64(1) << (bits - 1)
	if neg {
		if mag > limit {
			return 0, errors.OutOfRange(errors.PhasePack, v, t.name, t.Range())
		}
		return (^mag + 1) & t.mask(), nil
	}
	if mag >= limit {
		return 0, errors.OutOfRange(errors.PhasePack, v, t.name, t.Range())
	}
	return mag, nil
}

// FromInt converts a Go int, typically a computed length, to a raw value.
func (t *Int) FromInt(n int) (uint64, error) {
	if t.signed {
		return t.Raw(n)
	}
	u, err := safecast.Conv[uint64](n)
	if err != nil {
		return 0, errors.OutOfRange(errors.PhasePack, n, t.name, t.Range())
	}
	return t.Raw(u)
}

// Int64 interprets a raw bit pattern as a Go int64.
func (t *Int) Int64(raw uint64) int64 {
	if t.signed {
		return signExtend(raw, 8*t.size)
	}
	return int64(raw)
}

// Natural converts a raw bit pattern to the natural Go type.
func (t *Int) Natural(raw uint64) any {
	if t.signed {
		s := signExtend(raw, 8*t.size)
		switch t.naturalBits() {
		case 8:
			return int8(s)
		case 16:
			return int16(s)
		case 32:
			return int32(s)
		}
		return s
	}
	switch t.naturalBits() {
	case 8:
		return uint8(raw)
	case 16:
		return uint16(raw)
	case 32:
		return uint32(raw)
	}
	return raw
}

func signExtend(raw uint64, bits int) int64 {
	shift := 64 - uint(bits)
	return int64(raw<<shift) >> shift
}

// Encode renders raw in t's byte order.
func (t *Int) Encode(raw uint64) []byte {
	b := make([]byte, t.size)
	t.order.PutUint(b, raw)
	return b
}

// Decode reads raw from b in t's byte order.
func (t *Int) Decode(b []byte) uint64 {
	return t.order.Uint(b)
}

func (t *Int) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	raw, err := t.Raw(v)
	if err != nil {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	b := t.Encode(raw)
	w.Write(b)
	if rec != nil {
		rec.Fill(t.name, t.Natural(raw), b)
	}
	return nil
}

func (t *Int) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	b, err := r.Take(t.size, rec, t.name)
	if err != nil {
		return nil, err
	}
	v := t.Natural(t.Decode(b))
	if rec != nil {
		rec.Fill(t.name, v, b)
	}
	return v, nil
}

// Normalize converts any in-range integer to the natural Go type.
func (t *Int) Normalize(v any) (any, error) {
	raw, err := t.Raw(v)
	if err != nil {
		return nil, err
	}
	return t.Natural(raw), nil
}
