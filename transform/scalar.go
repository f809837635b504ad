package transform

import (
	"math"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
)

// Bool packs a boolean as one byte, 0 or 1.
var Bool = &boolTransform{}

type boolTransform struct{}

func (*boolTransform) Name() string { return "bool" }
func (*boolTransform) Hint() string { return "bool" }
func (*boolTransform) Size() int    { return 1 }

func (t *boolTransform) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	b, ok := coerce.ToBool(v)
	if !ok {
		if rec != nil {
			rec.Format = "bool"
			rec.Value = dump.Repr(v)
		}
		return errors.TypeMismatch(errors.PhasePack, v, "a bool")
	}
	var c byte
	if b {
		c = 1
	}
	_ = w.WriteByte(c)
	if rec != nil {
		rec.Fill("bool", b, []byte{c})
	}
	return nil
}

func (t *boolTransform) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	b, err := r.Take(1, rec, "bool")
	if err != nil {
		return nil, err
	}
	if b[0] > 1 {
		if rec != nil {
			rec.Fill("bool", b[0], b)
		}
		return nil, errors.InvalidValue(b[0], "bool", "{0, 1}")
	}
	v := b[0] == 1
	if rec != nil {
		rec.Fill("bool", v, b)
	}
	return v, nil
}

func (t *boolTransform) Normalize(v any) (any, error) {
	b, ok := coerce.ToBool(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhasePack, v, "a bool")
	}
	return b, nil
}

// Float packs IEEE 754 floating point numbers.
type Float struct {
	name  string
	size  int
	order plum.ByteOrder
}

var (
	Float32BE = &Float{name: "float32be", size: 4, order: plum.BigEndian}
	Float32LE = &Float{name: "float32le", size: 4, order: plum.LittleEndian}
	Float64BE = &Float{name: "float64be", size: 8, order: plum.BigEndian}
	Float64LE = &Float{name: "float64le", size: 8, order: plum.LittleEndian}
)

func (t *Float) Name() string { return t.name }
func (t *Float) Size() int    { return t.size }

func (t *Float) Hint() string {
	if t.size == 4 {
		return "float32"
	}
	return "float64"
}

func (t *Float) convert(v any) (any, uint64, error) {
	f, ok := coerce.ToFloat64(v)
	if !ok {
		return nil, 0, errors.TypeMismatch(errors.PhasePack, v, "a number")
	}
	if t.size == 8 {
		return f, math.Float64bits(f), nil
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return nil, 0, errors.OutOfRange(errors.PhasePack, v, t.name, "±3.4e38")
	}
	f32 := float32(f)
	return f32, uint64(math.Float32bits(f32)), nil
}

func (t *Float) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	nv, raw, err := t.convert(v)
	if err != nil {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	b := make([]byte, t.size)
	t.order.PutUint(b, raw)
	w.Write(b)
	if rec != nil {
		rec.Fill(t.name, nv, b)
	}
	return nil
}

func (t *Float) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	b, err := r.Take(t.size, rec, t.name)
	if err != nil {
		return nil, err
	}
	raw := t.order.Uint(b)
	var v any
	if t.size == 4 {
		v = math.Float32frombits(uint32(raw))
	} else {
		v = math.Float64frombits(raw)
	}
	if rec != nil {
		rec.Fill(t.name, v, b)
	}
	return v, nil
}

func (t *Float) Normalize(v any) (any, error) {
	nv, _, err := t.convert(v)
	return nv, err
}

// None packs nothing and unpacks nil.
var None = &noneTransform{}

type noneTransform struct{}

func (*noneTransform) Name() string { return "none" }
func (*noneTransform) Hint() string { return "nil" }
func (*noneTransform) Size() int    { return 0 }

func (*noneTransform) Pack(_ *plum.Writer, v any, rec *dump.Record) error {
	if rec != nil {
		rec.Format = "none"
		rec.Value = dump.Repr(v)
	}
	if v != nil {
		return errors.TypeMismatch(errors.PhasePack, v, "nil")
	}
	return nil
}

func (*noneTransform) Unpack(_ *plum.Reader, rec *dump.Record) (any, error) {
	if rec != nil {
		rec.Format = "none"
		rec.Value = "nil"
	}
	return nil, nil
}
