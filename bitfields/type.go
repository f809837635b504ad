package bitfields

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/bits"
	"github.com/wippyai/plum/internal/coerce"
	"github.com/wippyai/plum/transform"
	"github.com/wippyai/plum/view"
)

// Builder declares a bit-field type.
type Builder struct {
	name       string
	specs      []FieldSpec
	nbytes     int
	defRaw     uint64
	order      plum.ByteOrder
	fieldOrder FieldOrder
}

// Declare starts a bit-field type declaration. The defaults are big endian
// and LeastToMost field order.
func Declare(name string) *Builder {
	return &Builder{name: name, order: plum.BigEndian, fieldOrder: LeastToMost}
}

// NBytes sets the integer width. Zero selects the minimum.
func (b *Builder) NBytes(n int) *Builder {
	b.nbytes = n
	return b
}

// ByteOrder sets the integer byte order.
func (b *Builder) ByteOrder(o plum.ByteOrder) *Builder {
	b.order = o
	return b
}

// FieldOrder sets where unpositioned fields go.
func (b *Builder) FieldOrder(o FieldOrder) *Builder {
	b.fieldOrder = o
	return b
}

// Default sets the initial integer for bits no field default covers.
func (b *Builder) Default(raw uint64) *Builder {
	b.defRaw = raw
	return b
}

// Field declares a bit-field of nbits bits.
func (b *Builder) Field(name string, nbits int, opts ...FieldOption) *Builder {
	b.specs = append(b.specs, Spec(name, nbits, opts...))
	return b
}

// Build resolves the layout.
func (b *Builder) Build() (*Type, error) {
	g, err := NewGroup(b.name, b.specs, b.nbytes, b.fieldOrder)
	if err != nil {
		plum.Logger().Warn("bit-field declaration failed",
			zap.String("type", b.name),
			zap.Error(err))
		return nil, err
	}

	t := &Type{
		name:  b.name,
		group: g,
		order: b.order,
		int:   transform.NewInt(g.nbytes, b.order, false).Named(b.name),
	}

	raw := b.defRaw & bits.Mask(g.nbytes*8)
	for _, f := range g.fields {
		if f.hasDef {
			raw, _ = f.Put(raw, f.def)
		}
	}
	t.defRaw = raw

	plum.Logger().Debug("declared bit-field type",
		zap.String("type", b.name),
		zap.Int("fields", len(g.fields)),
		zap.Int("size", g.nbytes))
	return t, nil
}

// MustBuild is like Build but panics on declaration errors.
func (b *Builder) MustBuild() *Type {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// Type is a declared bit-field integer type.
type Type struct {
	group  *Group
	int    *transform.Int
	name   string
	defRaw uint64
	order  plum.ByteOrder
}

func (t *Type) Name() string              { return t.name }
func (t *Type) Hint() string              { return "*bitfields.Bits" }
func (t *Type) Size() int                 { return t.group.nbytes }
func (t *Type) ByteOrder() plum.ByteOrder { return t.order }
func (t *Type) Group() *Group             { return t.group }
func (t *Type) Fields() []*Field          { return t.group.fields }

// Int returns the unsigned integer transform of the whole value.
func (t *Type) Int() *transform.Int { return t.int }

// Field returns the named field.
func (t *Type) Field(name string) (*Field, bool) {
	return t.group.Field(name)
}

// FromRaw wraps an integer without validation.
func (t *Type) FromRaw(raw uint64) *Bits {
	return &Bits{t: t, raw: raw & bits.Mask(t.group.nbytes*8)}
}

// Zero returns an instance holding the declared defaults.
func (t *Type) Zero() *Bits {
	return t.FromRaw(t.defRaw)
}

// New creates an instance from field values. Missing fields keep their
// defaults.
func (t *Type) New(vals map[string]any) (*Bits, error) {
	raw := t.defRaw
	for name, v := range vals {
		f, ok := t.group.byName[name]
		if !ok {
			return nil, errors.New(errors.PhaseAccess, errors.KindUnknownMember).
				Type(t.name).
				Path(name).
				Detail("%s has no bit-field %q", t.name, name).
				Build()
		}
		var err error
		raw, err = f.Put(raw, v)
		if err != nil {
			return nil, err
		}
	}
	return t.FromRaw(raw), nil
}

// MustNew is like New but panics on error.
func (t *Type) MustNew(vals map[string]any) *Bits {
	b, err := t.New(vals)
	if err != nil {
		panic(err)
	}
	return b
}

// coerce accepts *Bits of t, field maps and plain integers.
func (t *Type) coerce(v any) (*Bits, error) {
	switch x := v.(type) {
	case *Bits:
		if x.t != t {
			return nil, errors.TypeMismatch(errors.PhasePack, v, t.name)
		}
		return x, nil
	case map[string]any:
		b, err := t.New(x)
		if err != nil {
			if e, ok := errors.As(err); ok && e.Phase == errors.PhaseAccess {
				cp := *e
				cp.Phase = errors.PhasePack
				cp.Kind = errors.KindTypeMismatch
				return nil, &cp
			}
			return nil, err
		}
		return b, nil
	}

	raw, ok := coerce.ToUint64(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhasePack, v, t.name+", map or integer")
	}
	if raw > bits.Mask(t.group.nbytes*8) {
		return nil, errors.OutOfRange(errors.PhasePack, v, t.name, t.int.Range())
	}
	return t.FromRaw(raw), nil
}

func (t *Type) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	b, err := t.coerce(v)
	if err != nil {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	out := t.int.Encode(b.raw)
	w.Write(out)
	if rec != nil {
		t.record(rec, b.raw, out)
	}
	return nil
}

func (t *Type) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	p, err := r.Take(t.group.nbytes, rec, t.name)
	if err != nil {
		return nil, err
	}
	raw := t.int.Decode(p)
	if rec != nil {
		t.record(rec, raw, p)
	}
	b := t.FromRaw(raw)
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (t *Type) record(rec *dump.Record, raw uint64, p []byte) {
	rec.Format = t.name
	rec.Value = fmt.Sprintf("0x%0*x", t.group.nbytes*2, raw)
	rec.Raw = append([]byte{}, p...)
	t.group.Record(rec, raw)
}

// Normalize converts maps and integers to *Bits.
func (t *Type) Normalize(v any) (any, error) {
	return t.coerce(v)
}

// Bits is an instance of a bit-field type.
type Bits struct {
	t   *Type
	raw uint64
}

// Type returns the declared type.
func (b *Bits) Type() *Type { return b.t }

// Int returns the integer value.
func (b *Bits) Int() uint64 { return b.raw }

func (b *Bits) validate() error {
	for _, f := range b.t.group.fields {
		if _, err := f.Get(b.raw); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the named field value.
func (b *Bits) Get(name string) (any, error) {
	f, ok := b.t.group.byName[name]
	if !ok {
		return nil, errors.New(errors.PhaseAccess, errors.KindUnknownMember).
			Type(b.t.name).
			Path(name).
			Build()
	}
	return f.Get(b.raw)
}

// MustGet is like Get but panics on error.
func (b *Bits) MustGet(name string) any {
	v, err := b.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set replaces the named field value.
func (b *Bits) Set(name string, v any) error {
	f, ok := b.t.group.byName[name]
	if !ok {
		return errors.New(errors.PhaseAccess, errors.KindUnknownMember).
			Type(b.t.name).
			Path(name).
			Build()
	}
	if f.readOnly {
		return errors.New(errors.PhaseAccess, errors.KindReadOnly).
			Type(b.t.name).
			Path(name).
			Detail("bit-field %q is read-only", name).
			Build()
	}
	raw, err := f.Put(b.raw, v)
	if err != nil {
		return err
	}
	b.raw = raw
	return nil
}

// Bit reports bit i of the integer.
func (b *Bits) Bit(i int) bool {
	return b.raw>>uint(i)&1 == 1
}

// SetBit sets or clears bit i of the integer.
func (b *Bits) SetBit(i int, v bool) error {
	if i < 0 || i >= b.t.group.nbytes*8 {
		return errors.New(errors.PhaseAccess, errors.KindOutOfRange).
			Type(b.t.name).
			Value(i).
			Detail("bit %d not in 0..%d", i, b.t.group.nbytes*8-1).
			Build()
	}
	if v {
		b.raw |= 1 << uint(i)
	} else {
		b.raw &^= 1 << uint(i)
	}
	return nil
}

// Equal compares the integers with ignored fields masked out.
func (b *Bits) Equal(other any) bool {
	mask := b.t.group.EqualMask()
	switch o := other.(type) {
	case *Bits:
		return o != nil && o.t == b.t && b.raw&mask == o.raw&mask
	case map[string]any:
		ob, err := b.t.New(o)
		return err == nil && b.raw&mask == ob.raw&mask
	}
	if u, ok := coerce.ToUint64(other); ok {
		return b.raw&mask == u&mask
	}
	return false
}

// Clone returns an independent copy.
func (b *Bits) Clone() *Bits {
	c := *b
	return &c
}

// AsMap returns every field value.
func (b *Bits) AsMap() map[string]any {
	m, err := b.t.group.Decode(b.raw)
	if err != nil {
		m = make(map[string]any, len(b.t.group.fields))
		for _, f := range b.t.group.fields {
			m[f.name] = bits.Extract(b.raw, f.lsb, f.size)
		}
	}
	return m
}

func (b *Bits) String() string {
	parts := make([]string, 0, len(b.t.group.fields))
	for _, f := range b.t.group.fields {
		v, err := f.Get(b.raw)
		s := dump.Repr(v)
		if err != nil {
			s = fmt.Sprint(bits.Extract(b.raw, f.lsb, f.size))
		}
		parts = append(parts, f.name+"="+s)
	}
	return b.t.name + "(" + strings.Join(parts, ", ") + ")"
}

// FieldNames returns the field names in declaration order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.group.fields))
	for i, f := range t.group.fields {
		names[i] = f.name
	}
	return slices.Clip(names)
}

// LocateField places a bit-field of a value stored at off in buf.
func (t *Type) LocateField(buf []byte, off int, name string) (view.Location, error) {
	f, ok := t.group.byName[name]
	if !ok {
		return view.Location{}, errors.New(errors.PhaseView, errors.KindUnknownMember).
			Type(t.name).
			Path(name).
			Detail("%s has no bit-field %q", t.name, name).
			Build()
	}
	return view.Location{Transform: t, Group: t.int, Field: f, Offset: off}, nil
}
