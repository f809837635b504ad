package bitfields

import (
	"fmt"

	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/bits"
)

// Group is a resolved set of bit-fields sharing one integer.
type Group struct {
	byName  map[string]*Field
	fields  []*Field
	nbytes  int
	ignored uint64
}

// NewGroup resolves field positions and widths. typeName is used in
// declaration errors.
func NewGroup(typeName string, specs []FieldSpec, nbytes int, order FieldOrder) (*Group, error) {
	decl := make([]bits.Field, len(specs))
	for i, s := range specs {
		decl[i] = bits.Field{Name: s.Name, Size: s.Size, LSB: s.LSB}
	}

	resolved, err := bits.Resolve(decl, nbytes, order)
	if err != nil {
		if e, ok := errors.As(err); ok && e.Type == "" {
			e.Type = typeName
		}
		return nil, err
	}

	g := &Group{
		byName: make(map[string]*Field, len(specs)),
		nbytes: resolved.NBytes,
	}
	for i, s := range specs {
		if _, dup := g.byName[s.Name]; dup {
			return nil, errors.Declaration(errors.KindDuplicateMember, typeName, "bit-field %q declared twice", s.Name)
		}
		if err := checkKind(typeName, s); err != nil {
			return nil, err
		}
		f := &Field{
			def:      s.Default,
			kind:     s.Kind,
			name:     s.Name,
			lsb:      resolved.Fields[i].LSB,
			size:     s.Size,
			hasDef:   s.HasDefault,
			ignore:   s.Ignore,
			readOnly: s.ReadOnly,
		}
		if f.hasDef {
			if _, err := f.Encode(f.def); err != nil {
				return nil, errors.New(errors.PhaseDeclare, errors.KindInvalidValue).
					Type(typeName).
					Path(s.Name).
					Cause(err).
					Detail("bad default for bit-field %q", s.Name).
					Build()
			}
		}
		if f.ignore {
			g.ignored |= f.Mask()
		}
		g.fields = append(g.fields, f)
		g.byName[f.name] = f
	}
	return g, nil
}

func checkKind(typeName string, s FieldSpec) error {
	switch s.Kind.code {
	case kindBool:
		if s.Size != 1 {
			return errors.Declaration(errors.KindInvalidValue, typeName, "bool bit-field %q must be 1 bit, not %d", s.Name, s.Size)
		}
	case kindEnum:
		if s.Kind.enum == nil {
			return errors.Declaration(errors.KindInvalidValue, typeName, "bit-field %q has a nil enum", s.Name)
		}
	case kindNested:
		if s.Kind.nested == nil {
			return errors.Declaration(errors.KindInvalidValue, typeName, "bit-field %q has a nil nested type", s.Name)
		}
		if need := s.Kind.nested.group.topBit(); s.Size < need {
			return errors.Declaration(errors.KindTypeTooSmall, typeName,
				"bit-field %q has %d bits, nested %s needs %d", s.Name, s.Size, s.Kind.nested.Name(), need)
		}
	}
	return nil
}

func (g *Group) topBit() int {
	top := 0
	for _, f := range g.fields {
		top = max(top, f.lsb+f.size)
	}
	return top
}

// Fields returns the fields in declaration order.
func (g *Group) Fields() []*Field {
	return g.fields
}

// Field returns the named field.
func (g *Group) Field(name string) (*Field, bool) {
	f, ok := g.byName[name]
	return f, ok
}

// NBytes returns the group width in bytes.
func (g *Group) NBytes() int {
	return g.nbytes
}

// EqualMask returns the bits that take part in equality.
func (g *Group) EqualMask() uint64 {
	return bits.Mask(g.nbytes*8) &^ g.ignored
}

// Decode returns every field value of raw.
func (g *Group) Decode(raw uint64) (map[string]any, error) {
	out := make(map[string]any, len(g.fields))
	for _, f := range g.fields {
		v, err := f.Get(raw)
		if err != nil {
			return nil, err
		}
		out[f.name] = v
	}
	return out, nil
}

// Record adds one child per field to rec describing raw. Recording stops
// after the first field that does not decode.
func (g *Group) Record(rec *dump.Record, raw uint64) {
	for _, f := range g.fields {
		c := rec.Add(f.name)
		c.Bits = &dump.BitRange{LSB: f.lsb, Size: f.size}
		c.Format = f.kind.String()
		v, err := f.Get(raw)
		if err != nil {
			c.Value = fmt.Sprintf("%d <invalid>", bits.Extract(raw, f.lsb, f.size))
			return
		}
		c.Value = dump.Repr(v)
	}
}
