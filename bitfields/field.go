package bitfields

import (
	"fmt"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/bits"
	"github.com/wippyai/plum/internal/coerce"
	"github.com/wippyai/plum/transform"
)

type kindCode uint8

const (
	kindUint kindCode = iota
	kindSigned
	kindBool
	kindEnum
	kindNested
)

// Kind selects how a bit-field's bits convert to a Go value.
type Kind struct {
	enum   *transform.Enum
	nested *Type
	code   kindCode
}

var (
	// Uint yields unsigned integers of the smallest natural width.
	Uint = Kind{code: kindUint}
	// Signed yields two's complement integers.
	Signed = Kind{code: kindSigned}
	// Bool yields booleans; the field must be one bit wide.
	Bool = Kind{code: kindBool}
)

// EnumOf yields members of e.
func EnumOf(e *transform.Enum) Kind {
	return Kind{code: kindEnum, enum: e}
}

// Nested yields *Bits of another bit-field type.
func Nested(t *Type) Kind {
	return Kind{code: kindNested, nested: t}
}

func (k Kind) String() string {
	switch k.code {
	case kindSigned:
		return "signed"
	case kindBool:
		return "bool"
	case kindEnum:
		return k.enum.Name()
	case kindNested:
		return k.nested.Name()
	}
	return "uint"
}

// FieldOrder decides where unpositioned fields go.
type FieldOrder = bits.Order

const (
	LeastToMost = bits.LeastToMost
	MostToLeast = bits.MostToLeast
)

// FieldSpec is a bit-field declaration.
type FieldSpec struct {
	Default    any
	Kind       Kind
	Name       string
	Size       int
	LSB        int
	HasDefault bool
	Ignore     bool
	ReadOnly   bool
}

// FieldOption configures a FieldSpec.
type FieldOption func(*FieldSpec)

// LSB positions the field's least significant bit.
func LSB(n int) FieldOption {
	return func(s *FieldSpec) { s.LSB = n }
}

// As selects the field kind.
func As(k Kind) FieldOption {
	return func(s *FieldSpec) { s.Kind = k }
}

// Default sets the value used when none is given.
func Default(v any) FieldOption {
	return func(s *FieldSpec) {
		s.Default = v
		s.HasDefault = true
	}
}

// Ignore excludes the field's bits from equality.
func Ignore() FieldOption {
	return func(s *FieldSpec) { s.Ignore = true }
}

// ReadOnly rejects Set after construction.
func ReadOnly() FieldOption {
	return func(s *FieldSpec) { s.ReadOnly = true }
}

// Spec builds a FieldSpec from options.
func Spec(name string, size int, opts ...FieldOption) FieldSpec {
	s := FieldSpec{Name: name, Size: size, LSB: bits.Unpositioned, Kind: Uint}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Field is a resolved bit-field.
type Field struct {
	def      any
	kind     Kind
	name     string
	lsb      int
	size     int
	hasDef   bool
	ignore   bool
	readOnly bool
}

func (f *Field) Name() string   { return f.name }
func (f *Field) LSB() int       { return f.lsb }
func (f *Field) Size() int      { return f.size }
func (f *Field) Kind() Kind     { return f.kind }
func (f *Field) Ignored() bool  { return f.ignore }
func (f *Field) ReadOnly() bool { return f.readOnly }

// Mask returns the field mask in group position.
func (f *Field) Mask() uint64 {
	return bits.Mask(f.size) << uint(f.lsb)
}

// DefaultValue returns the declared default.
func (f *Field) DefaultValue() (any, bool) {
	return f.def, f.hasDef
}

func naturalUint(v uint64, size int) any {
	switch {
	case size <= 8:
		return uint8(v)
	case size <= 16:
		return uint16(v)
	case size <= 32:
		return uint32(v)
	}
	return v
}

func naturalInt(v int64, size int) any {
	switch {
	case size <= 8:
		return int8(v)
	case size <= 16:
		return int16(v)
	case size <= 32:
		return int32(v)
	}
	return v
}

// Get decodes the field from a group integer.
func (f *Field) Get(raw uint64) (any, error) {
	v := bits.Extract(raw, f.lsb, f.size)
	switch f.kind.code {
	case kindSigned:
		return naturalInt(bits.SignExtend(v, f.size), f.size), nil
	case kindBool:
		return v == 1, nil
	case kindEnum:
		e := f.kind.enum
		if m, ok := e.Lookup(int64(v)); ok {
			return m, nil
		}
		if e.Strict() {
			return nil, errors.New(errors.PhaseUnpack, errors.KindInvalidValue).
				Path(f.name).
				Type(e.Name()).
				Value(v).
				Detail("%d is not a valid value, accepted %s", v, e.Accepted()).
				Build()
		}
		return naturalUint(v, f.size), nil
	case kindNested:
		return f.kind.nested.FromRaw(v), nil
	}
	return naturalUint(v, f.size), nil
}

// Encode converts v to the field's bit pattern, unshifted.
func (f *Field) Encode(v any) (uint64, error) {
	switch f.kind.code {
	case kindSigned:
		n, ok := coerce.ToInt64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhasePack, v, "an integer")
		}
		lo, hi := bits.SignedRange(f.size)
		if n < lo || n > hi {
			return 0, f.outOfRange(v, fmt.Sprintf("%d..%d", lo, hi))
		}
		return uint64(n) & bits.Mask(f.size), nil

	case kindBool:
		b, ok := coerce.ToBool(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhasePack, v, "a bool")
		}
		if b {
			return 1, nil
		}
		return 0, nil

	case kindEnum:
		nv, err := f.kind.enum.Normalize(v)
		if err != nil {
			return 0, err
		}
		var code uint64
		if m, ok := nv.(transform.EnumValue); ok {
			code = uint64(m.Value)
		} else {
			code, _ = coerce.ToUint64(nv)
		}
		if code > bits.Mask(f.size) {
			return 0, f.outOfRange(v, fmt.Sprintf("0..%d", bits.Mask(f.size)))
		}
		return code, nil

	case kindNested:
		b, err := f.kind.nested.coerce(v)
		if err != nil {
			return 0, err
		}
		return b.raw & bits.Mask(f.size), nil
	}

	u, ok := coerce.ToUint64(v)
	if !ok {
		if _, isInt := coerce.ToInt64(v); isInt {
			return 0, f.outOfRange(v, fmt.Sprintf("0..%d", bits.Mask(f.size)))
		}
		return 0, errors.TypeMismatch(errors.PhasePack, v, "an unsigned integer")
	}
	if u > bits.Mask(f.size) {
		return 0, f.outOfRange(v, fmt.Sprintf("0..%d", bits.Mask(f.size)))
	}
	return u, nil
}

// Put returns raw with the field replaced by v.
func (f *Field) Put(raw uint64, v any) (uint64, error) {
	u, err := f.Encode(v)
	if err != nil {
		return raw, err
	}
	return bits.Insert(raw, f.lsb, f.size, u), nil
}

// Normalize returns the value Get would produce after storing v.
func (f *Field) Normalize(v any) (any, error) {
	u, err := f.Encode(v)
	if err != nil {
		return nil, err
	}
	return f.Get(u << uint(f.lsb))
}

func (f *Field) outOfRange(v any, permitted string) error {
	return errors.New(errors.PhasePack, errors.KindOutOfRange).
		Path(f.name).
		Type(f.kind.String()).
		Value(v).
		Detail("value %v out of range for %d-bit field, permitted %s", v, f.size, permitted).
		Build()
}

// Hint describes Go values of the field.
func (f *Field) Hint() string {
	switch f.kind.code {
	case kindSigned:
		return fmt.Sprintf("%T", naturalInt(0, f.size))
	case kindBool:
		return "bool"
	case kindEnum:
		return "transform.EnumValue"
	case kindNested:
		return "*bitfields.Bits"
	}
	return fmt.Sprintf("%T", naturalUint(0, f.size))
}

var _ plum.Normalizer = (*Field)(nil)
