package view

import (
	"fmt"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/transform"
)

// BitField reads and writes one bit-field of a group integer.
type BitField interface {
	Name() string
	Get(raw uint64) (any, error)
	Put(raw uint64, v any) (uint64, error)
}

// Location is where a named field lives inside a buffer.
type Location struct {
	// Transform is the field's type, or the containing bit-field type when
	// Field is set.
	Transform plum.Transform
	// Group is the containing integer when Field is set.
	Group *transform.Int
	Field BitField
	// Offset is absolute within the buffer.
	Offset int
}

// FieldLocator is implemented by types whose fields can be viewed.
type FieldLocator interface {
	LocateField(buf []byte, off int, name string) (Location, error)
}

// View is a typed window onto a borrowed buffer.
type View struct {
	t     plum.Transform
	group *transform.Int
	field BitField
	buf   []byte
	off   int
	size  int
}

// New creates a view of t at off in buf.
//
// Fixed-size types are viewed directly. For variable-size types the bytes
// are unpacked once to learn the extent.
func New(t plum.Transform, buf []byte, off int) (*View, error) {
	if off < 0 || off > len(buf) {
		return nil, errors.New(errors.PhaseView, errors.KindOutOfRange).
			Type(t.Name()).
			Value(off).
			Detail("offset %d outside buffer of %d bytes", off, len(buf)).
			Build()
	}

	size := t.Size()
	if size >= 0 {
		if off+size > len(buf) {
			return nil, errors.New(errors.PhaseView, errors.KindInsufficientBytes).
				Type(t.Name()).
				Offset(off).
				Detail("%d bytes needed, %d available", size, len(buf)-off).
				Build()
		}
		return &View{t: t, buf: buf, off: off, size: size}, nil
	}

	r := plum.NewReader(buf[off:], off)
	if _, err := t.Unpack(r, nil); err != nil {
		return nil, errors.New(errors.PhaseView, errors.KindUnsupported).
			Type(t.Name()).
			Offset(off).
			Cause(err).
			Detail("variable-size type does not unpack at this offset").
			Build()
	}
	return &View{t: t, buf: buf, off: off, size: r.Offset() - off}, nil
}

// Type returns the viewed transform.
func (v *View) Type() plum.Transform { return v.t }

// Offset returns the byte offset in the buffer.
func (v *View) Offset() int { return v.off }

// Size returns the number of bytes covered.
func (v *View) Size() int { return v.size }

// Bytes returns the covered bytes. The slice aliases the buffer.
func (v *View) Bytes() []byte {
	return v.buf[v.off : v.off+v.size : v.off+v.size]
}

// Get unpacks the viewed value.
func (v *View) Get() (any, error) {
	if v.field != nil {
		raw := v.group.Decode(v.Bytes())
		val, err := v.field.Get(raw)
		if err != nil {
			return nil, v.wrap(err)
		}
		return val, nil
	}
	val, err := plum.Unpack(v.t, v.Bytes())
	if err != nil {
		return nil, v.wrap(err)
	}
	return val, nil
}

// Set packs val and writes it in place. The packed length must equal the
// viewed size.
func (v *View) Set(val any) error {
	if v.field != nil {
		if ro, ok := v.field.(interface{ ReadOnly() bool }); ok && ro.ReadOnly() {
			return errors.New(errors.PhaseView, errors.KindReadOnly).
				Path(v.field.Name()).
				Offset(v.off).
				Detail("bit-field %q is read-only", v.field.Name()).
				Build()
		}
		raw := v.group.Decode(v.Bytes())
		raw, err := v.field.Put(raw, val)
		if err != nil {
			return v.wrap(err)
		}
		copy(v.Bytes(), v.group.Encode(raw))
		return nil
	}

	b, err := plum.Pack(v.t, val)
	if err != nil {
		return v.wrap(err)
	}
	if len(b) != v.size {
		return errors.New(errors.PhaseView, errors.KindLengthMismatch).
			Type(v.t.Name()).
			Offset(v.off).
			Value(val).
			Detail("expected length %d, got %d", v.size, len(b)).
			Build()
	}
	copy(v.Bytes(), b)
	return nil
}

// Cast reinterprets the same offset as another type.
func (v *View) Cast(t plum.Transform) (*View, error) {
	return New(t, v.buf, v.off)
}

// Field returns a view of a named field.
func (v *View) Field(name string) (*View, error) {
	loc, ok := v.t.(FieldLocator)
	if !ok || v.field != nil {
		return nil, errors.New(errors.PhaseView, errors.KindUnsupported).
			Type(v.t.Name()).
			Detail("%s has no named fields", v.t.Name()).
			Build()
	}
	l, err := loc.LocateField(v.buf[:v.off+v.size], v.off, name)
	if err != nil {
		return nil, err
	}
	if l.Field != nil {
		return &View{
			t:     l.Transform,
			group: l.Group,
			field: l.Field,
			buf:   v.buf,
			off:   l.Offset,
			size:  l.Group.Size(),
		}, nil
	}
	return New(l.Transform, v.buf[:v.off+v.size], l.Offset)
}

// Item returns a view of element i of a fixed-size array.
func (v *View) Item(i int) (*View, error) {
	a, ok := v.t.(*transform.Array)
	if !ok {
		return nil, errors.New(errors.PhaseView, errors.KindUnsupported).
			Type(v.t.Name()).
			Detail("%s is not an array", v.t.Name()).
			Build()
	}
	item, off, err := a.Item(i)
	if err != nil {
		return nil, err
	}
	return New(item, v.buf, v.off+off)
}

// Dump unpacks the viewed bytes with provenance, offsets relative to the
// buffer.
func (v *View) Dump() (*dump.Dump, error) {
	_, d, err := plum.UnpackDump(v.t, v.Bytes())
	if d != nil {
		d.Offset = v.off
	}
	return d, err
}

func (v *View) String() string {
	val, err := v.Get()
	if err != nil {
		return fmt.Sprintf("<view %s at %d: %v>", v.t.Name(), v.off, err)
	}
	return fmt.Sprintf("<view %s at %d: %s>", v.t.Name(), v.off, dump.Repr(val))
}

func (v *View) wrap(err error) error {
	e, ok := errors.As(err)
	if !ok {
		return errors.Wrap(errors.PhaseView, errors.KindInvalidValue, err, "")
	}
	cp := *e
	if cp.HasOffset {
		cp.Offset += v.off
	} else {
		cp.Offset, cp.HasOffset = v.off, true
	}
	return &cp
}
