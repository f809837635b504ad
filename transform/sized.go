package transform

import (
	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
)

// Sized prefixes an inner value with its byte length.
//
// The size field holds len(inner)/ratio + offset.
type Sized struct {
	inner  plum.Transform
	size   *Int
	name   string
	ratio  int
	offset int
}

// NewSized creates a length-prefixed transform. A ratio below one is treated
// as one.
func NewSized(inner plum.Transform, size *Int, ratio, offset int) *Sized {
	if ratio < 1 {
		ratio = 1
	}
	return &Sized{
		inner:  inner,
		size:   size,
		name:   "sized(" + inner.Name() + ")",
		ratio:  ratio,
		offset: offset,
	}
}

func (t *Sized) Name() string { return t.name }
func (t *Sized) Hint() string { return t.inner.Hint() }

func (t *Sized) Size() int {
	if n := t.inner.Size(); n >= 0 {
		return t.size.Size() + n
	}
	return plum.Variable
}

// SizeValue computes the size field for n inner bytes.
func SizeValue(n, ratio, offset int) (int, error) {
	if ratio < 1 {
		ratio = 1
	}
	if n%ratio != 0 {
		return 0, errors.New(errors.PhasePack, errors.KindLengthMismatch).
			Value(n).
			Detail("%d bytes is not a multiple of %d", n, ratio).
			Build()
	}
	return n/ratio + offset, nil
}

// ByteCount inverts SizeValue.
func ByteCount(size int, ratio, offset int) (int, error) {
	if ratio < 1 {
		ratio = 1
	}
	n := (size - offset) * ratio
	if n < 0 {
		return 0, errors.New(errors.PhaseUnpack, errors.KindInvalidValue).
			Value(size).
			Detail("size %d below offset %d", size, offset).
			Build()
	}
	return n, nil
}

func (t *Sized) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	var sizeRec, dataRec *dump.Record
	if rec != nil {
		rec.Format = t.name
		sizeRec = rec.Add("--size--")
		dataRec = rec.Add("--data--")
	}

	slot := w.Reserve(t.size.Size())
	start := w.Len()
	if err := t.inner.Pack(w, v, dataRec); err != nil {
		return err
	}

	sv, err := SizeValue(w.Len()-start, t.ratio, t.offset)
	if err != nil {
		return err
	}
	raw, err := t.size.FromInt(sv)
	if err != nil {
		return err
	}
	b := t.size.Encode(raw)
	w.Patch(slot, b)
	if sizeRec != nil {
		sizeRec.Fill(t.size.Name(), t.size.Natural(raw), b)
	}
	return nil
}

func (t *Sized) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	var sizeRec *dump.Record
	if rec != nil {
		rec.Format = t.name
		sizeRec = rec.Add("--size--")
	}

	sv, err := t.size.Unpack(r, sizeRec)
	if err != nil {
		return nil, err
	}
	size, ok := coerce.ToInt(sv)
	if !ok {
		return nil, errors.InvalidValue(sv, t.size.Name(), "a size that fits in int")
	}
	n, err := ByteCount(size, t.ratio, t.offset)
	if err != nil {
		return nil, err
	}
	return UnpackExact(r, n, t.inner, rec, "--data--")
}

// UnpackExact unpacks inner from exactly the next n bytes. When parent is
// non-nil the inner record is added to it under access.
//
// When fewer than n bytes remain, the present bytes are still unpacked into
// the record before failing with insufficient_bytes. Bytes inside the slice
// that inner leaves unconsumed fail with excess_bytes scoped to access.
func UnpackExact(r *plum.Reader, n int, inner plum.Transform, parent *dump.Record, access string) (any, error) {
	if rem := r.Remaining(); n > rem && parent == nil {
		return nil, errors.InsufficientBytes(n, rem)
	}

	var rec *dump.Record
	if parent != nil {
		rec = parent.Add(access)
	}

	have := r.Remaining()
	sub, short := r.SubAvailable(n)
	v, err := inner.Unpack(sub, rec)
	if short > 0 {
		if err == nil && sub.Remaining() > 0 {
			sub.Excess(parent.Add(access))
		}
		return nil, errors.InsufficientBytes(n, have)
	}
	if err != nil {
		return nil, err
	}
	if sub.Remaining() > 0 {
		off := sub.Offset()
		var xrec *dump.Record
		if parent != nil {
			xrec = parent.Add(access)
		}
		extra := sub.Excess(xrec)
		e := errors.New(errors.PhaseUnpack, errors.KindExcessBytes).
			Offset(off).
			Value(extra).
			Detail("%d unconsumed bytes in %s", extra, access).
			Build()
		return nil, e
	}
	return v, nil
}

func (t *Sized) Normalize(v any) (any, error) {
	return plum.Normalize(t.inner, v)
}

// Exact confines an inner transform to exactly n bytes.
type Exact struct {
	inner plum.Transform
	n     int
}

// NewExact creates a transform whose values occupy exactly n bytes.
func NewExact(inner plum.Transform, n int) *Exact {
	return &Exact{inner: inner, n: n}
}

func (t *Exact) Name() string { return t.inner.Name() }
func (t *Exact) Hint() string { return t.inner.Hint() }
func (t *Exact) Size() int    { return t.n }

func (t *Exact) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	start := w.Len()
	if err := t.inner.Pack(w, v, rec); err != nil {
		return err
	}
	if n := w.Len() - start; n != t.n {
		return errors.LengthMismatch(errors.PhasePack, t.n, n)
	}
	return nil
}

func (t *Exact) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	if rec == nil {
		return UnpackExact(r, t.n, t.inner, nil, "")
	}
	// Unpack into a scratch parent so the inner record takes rec's place.
	var scratch dump.Record
	v, err := UnpackExact(r, t.n, t.inner, &scratch, "")
	access := rec.Access
	switch len(scratch.Children) {
	case 0:
	case 1:
		*rec = *scratch.Children[0]
		rec.Access = access
	default:
		rec.Format = t.Name()
		rec.Children = scratch.Children
	}
	return v, err
}

func (t *Exact) Normalize(v any) (any, error) {
	return plum.Normalize(t.inner, v)
}
