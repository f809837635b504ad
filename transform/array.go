package transform

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
)

// Array packs a repeated element.
//
// The element count comes from one of: a fixed dimension list, a count
// prefix, or the end of the input. Multi-dimensional arrays unpack as nested
// []any values.
type Array struct {
	elem  plum.Transform
	count *Int
	name  string
	dims  []int
}

// GreedyArray unpacks elements until the input is exhausted.
func GreedyArray(elem plum.Transform) *Array {
	return &Array{elem: elem, name: elem.Name() + "[]"}
}

// FixedArray packs exactly the product of dims elements.
func FixedArray(elem plum.Transform, dims ...int) *Array {
	a := &Array{elem: elem}
	return a.WithDims(dims...)
}

// PrefixedArray writes the element count with count before the elements.
func PrefixedArray(elem plum.Transform, count *Int) *Array {
	return &Array{elem: elem, count: count, name: elem.Name() + "[" + count.Name() + "]"}
}

// WithDims returns a fixed-dimension copy of a.
func (a *Array) WithDims(dims ...int) *Array {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = "[" + strconv.Itoa(d) + "]"
	}
	return &Array{
		elem: a.elem,
		name: a.elem.Name() + strings.Join(parts, ""),
		dims: append([]int(nil), dims...),
	}
}

func (a *Array) Name() string         { return a.name }
func (a *Array) Hint() string         { return "[]any" }
func (a *Array) Elem() plum.Transform { return a.elem }
func (a *Array) Dims() []int          { return append([]int(nil), a.dims...) }
func (a *Array) IsGreedy() bool       { return a.dims == nil && a.count == nil }

// Size is the fixed byte size when both the dimensions and the element
// size are known.
func (a *Array) Size() int {
	if a.dims == nil {
		return plum.Variable
	}
	es := a.elem.Size()
	if es < 0 {
		return plum.Variable
	}
	n, ok := product(es, a.dims)
	if !ok {
		return plum.Variable
	}
	return n
}

// product multiplies n by every dimension, reporting false on overflow or a
// negative dimension.
func product(n int, dims []int) (int, bool) {
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Len returns the number of top-level items of a fixed array.
func (a *Array) Len() int {
	if len(a.dims) == 0 {
		return -1
	}
	return a.dims[0]
}

// Item returns the transform and byte offset of item i of a fixed array
// with fixed-size elements. Nested dimensions yield sub-arrays.
func (a *Array) Item(i int) (plum.Transform, int, error) {
	if len(a.dims) == 0 || a.Size() < 0 {
		return nil, 0, errors.New(errors.PhaseView, errors.KindUnsupported).
			Type(a.name).
			Detail("item access needs a fixed-size array").
			Build()
	}
	if i < 0 || i >= a.dims[0] {
		return nil, 0, errors.New(errors.PhaseView, errors.KindOutOfRange).
			Type(a.name).
			Value(i).
			Detail("index %d out of range 0..%d", i, a.dims[0]-1).
			Build()
	}
	var item plum.Transform = a.elem
	if len(a.dims) > 1 {
		item = a.WithDims(a.dims[1:]...)
	}
	return item, i * item.Size(), nil
}

// items converts any slice value to []any.
func items(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (a *Array) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	if rec != nil {
		rec.Format = a.name
	}

	vals, ok := items(v)
	if !ok {
		if rec != nil {
			rec.Value = dump.Repr(v)
		}
		return errors.TypeMismatch(errors.PhasePack, v, "a slice")
	}

	if a.count != nil {
		raw, err := a.count.FromInt(len(vals))
		if err != nil {
			if rec != nil {
				rec.Add("--count--").Value = strconv.Itoa(len(vals))
			}
			return err
		}
		b := a.count.Encode(raw)
		w.Write(b)
		if rec != nil {
			rec.Add("--count--").Fill(a.count.Name(), a.count.Natural(raw), b)
		}
	}

	return a.packDims(w, vals, a.dims, rec)
}

func (a *Array) packDims(w *plum.Writer, vals []any, dims []int, rec *dump.Record) error {
	if len(dims) > 0 && len(vals) != dims[0] {
		return errors.LengthMismatch(errors.PhasePack, dims[0], len(vals))
	}

	for i, ev := range vals {
		var child *dump.Record
		if rec != nil {
			child = rec.Add(dump.Index(i))
		}

		if len(dims) > 1 {
			sub, ok := items(ev)
			if !ok {
				if child != nil {
					child.Value = dump.Repr(ev)
				}
				return errors.TypeMismatch(errors.PhasePack, ev, "a slice")
			}
			if child != nil {
				child.Format = a.elem.Name() + dimSuffix(dims[1:])
			}
			if err := a.packDims(w, sub, dims[1:], child); err != nil {
				return err
			}
			continue
		}

		if err := a.elem.Pack(w, ev, child); err != nil {
			return err
		}
	}
	return nil
}

func dimSuffix(dims []int) string {
	var b strings.Builder
	for _, d := range dims {
		b.WriteString("[" + strconv.Itoa(d) + "]")
	}
	return b.String()
}

func (a *Array) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	if rec != nil {
		rec.Format = a.name
	}

	if a.elem.Size() == 0 {
		return nil, errors.New(errors.PhaseUnpack, errors.KindUnsupported).
			Type(a.name).
			Detail("array of zero-size elements").
			Build()
	}

	switch {
	case a.count != nil:
		var crec *dump.Record
		if rec != nil {
			crec = rec.Add("--count--")
		}
		cv, err := a.count.Unpack(r, crec)
		if err != nil {
			return nil, err
		}
		n, err := countOf(a.count, cv)
		if err != nil {
			return nil, err
		}
		if err := a.fits(r, []int{n}); err != nil {
			return nil, err
		}
		return a.unpackN(r, n, rec)

	case a.dims == nil:
		var out []any
		for i := 0; r.Remaining() > 0; i++ {
			var child *dump.Record
			if rec != nil {
				child = rec.Add(dump.Index(i))
			}
			ev, err := a.elem.Unpack(r, child)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	}

	if err := a.fits(r, a.dims); err != nil {
		return nil, err
	}
	return a.unpackDims(r, a.dims, rec)
}

// maxEmptyItems bounds the item count of arrays whose items consume no
// input, such as rows of a matrix with a zero inner dimension.
const maxEmptyItems = 1 << 16

// fits rejects a count read off the wire before anything is allocated for
// it. Fixed-size elements must fit in the remaining input. Items that
// consume no input are capped at maxEmptyItems here for fixed shapes and
// by progress for variable-size elements.
func (a *Array) fits(r *plum.Reader, dims []int) error {
	if len(dims) == 0 {
		return nil
	}
	for _, d := range dims {
		if d < 0 {
			return errors.InvalidValue(d, a.name, "a non-negative dimension")
		}
	}
	rows, ok := product(1, dims[1:])
	if !ok {
		return errors.New(errors.PhaseUnpack, errors.KindOutOfRange).
			Type(a.name).
			Value(dims).
			Detail("dimensions %v overflow", dims).
			Build()
	}
	if rows == 0 {
		if dims[0] > maxEmptyItems {
			return errors.New(errors.PhaseUnpack, errors.KindOutOfRange).
				Type(a.name).
				Value(dims[0]).
				Detail("%d empty items exceed the limit of %d", dims[0], maxEmptyItems).
				Build()
		}
		return nil
	}
	es := a.elem.Size()
	if es < 0 {
		return nil
	}
	rem := r.Remaining()
	need, ok := product(es, dims)
	if !ok || need > rem {
		if !ok {
			need = math.MaxInt
		}
		return errors.InsufficientBytes(need, rem)
	}
	return nil
}

func countOf(t *Int, v any) (int, error) {
	n, ok := coerce.ToInt(v)
	if !ok || n < 0 {
		return 0, errors.InvalidValue(v, t.Name(), "a non-negative count")
	}
	return n, nil
}

func (a *Array) unpackN(r *plum.Reader, n int, rec *dump.Record) ([]any, error) {
	out := make([]any, 0, min(n, 1024))
	for i := range n {
		var child *dump.Record
		if rec != nil {
			child = rec.Add(dump.Index(i))
		}
		start := r.Offset()
		ev, err := a.elem.Unpack(r, child)
		if err != nil {
			return nil, err
		}
		if err := a.progress(r, start, i, n); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// progress fails once more than maxEmptyItems of n items consumed no input.
func (a *Array) progress(r *plum.Reader, start, i, n int) error {
	if r.Offset() != start || i < maxEmptyItems || n <= maxEmptyItems {
		return nil
	}
	return errors.New(errors.PhaseUnpack, errors.KindOutOfRange).
		Type(a.name).
		Value(n).
		Detail("%d empty items exceed the limit of %d", n, maxEmptyItems).
		Build()
}

func (a *Array) unpackDims(r *plum.Reader, dims []int, rec *dump.Record) ([]any, error) {
	if len(dims) == 1 {
		return a.unpackN(r, dims[0], rec)
	}
	out := make([]any, 0, min(dims[0], 1024))
	for i := range dims[0] {
		var child *dump.Record
		if rec != nil {
			child = rec.Add(dump.Index(i))
			child.Format = a.elem.Name() + dimSuffix(dims[1:])
		}
		start := r.Offset()
		sub, err := a.unpackDims(r, dims[1:], child)
		if err != nil {
			return nil, err
		}
		if err := a.progress(r, start, i, dims[0]); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// Normalize converts v to nested []any of normalized elements.
func (a *Array) Normalize(v any) (any, error) {
	return a.normalizeDims(v, a.dims)
}

func (a *Array) normalizeDims(v any, dims []int) (any, error) {
	vals, ok := items(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhasePack, v, "a slice")
	}
	if len(dims) > 0 && len(vals) != dims[0] {
		return nil, errors.LengthMismatch(errors.PhasePack, dims[0], len(vals))
	}
	out := make([]any, len(vals))
	for i, ev := range vals {
		var err error
		if len(dims) > 1 {
			out[i], err = a.normalizeDims(ev, dims[1:])
		} else {
			out[i], err = plum.Normalize(a.elem, ev)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
