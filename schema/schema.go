package schema

import (
	"cmp"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
)

// Document is a decoded schema file.
type Document struct {
	Enums      []EnumDecl      `toml:"enum"`
	BitFields  []BitFieldsDecl `toml:"bitfields"`
	Structures []StructDecl    `toml:"structure"`
}

// EnumDecl declares an enumeration.
type EnumDecl struct {
	Values  map[string]int64 `toml:"values"`
	Name    string           `toml:"name"`
	Base    string           `toml:"base"`
	Lenient bool             `toml:"lenient"`
}

// BitFieldsDecl declares a bit-field integer type.
type BitFieldsDecl struct {
	Name       string      `toml:"name"`
	ByteOrder  string      `toml:"byte_order"`
	FieldOrder string      `toml:"field_order"`
	Fields     []FieldDecl `toml:"field"`
	NBytes     int         `toml:"nbytes"`
	Default    uint64      `toml:"default"`
}

// FieldDecl declares one bit-field.
type FieldDecl struct {
	Default  any    `toml:"default"`
	LSB      *int   `toml:"lsb"`
	Name     string `toml:"name"`
	Kind     string `toml:"kind"`
	Bits     int    `toml:"bits"`
	Ignore   bool   `toml:"ignore"`
	ReadOnly bool   `toml:"readonly"`
}

// StructDecl declares a structure.
type StructDecl struct {
	Name       string       `toml:"name"`
	Extends    string       `toml:"extends"`
	ByteOrder  string       `toml:"byte_order"`
	FieldOrder string       `toml:"field_order"`
	Members    []MemberDecl `toml:"member"`
}

// MemberDecl declares one structure member. A member with Bits is a
// bit-field, one with Size is sized by another member and one with Dims is
// an array dimensioned by other members.
type MemberDecl struct {
	Default    any      `toml:"default"`
	LSB        *int     `toml:"lsb"`
	Name       string   `toml:"name"`
	Type       string   `toml:"type"`
	Elem       string   `toml:"elem"`
	Count      string   `toml:"count"`
	Size       string   `toml:"size"`
	Kind       string   `toml:"kind"`
	Dims       []string `toml:"dims"`
	Length     int      `toml:"length"`
	Pad        int      `toml:"pad"`
	Ratio      int      `toml:"ratio"`
	SizeOffset int      `toml:"size_offset"`
	Bits       int      `toml:"bits"`
	NBytes     int      `toml:"nbytes"`
	Compute    bool     `toml:"compute"`
	Ignore     bool     `toml:"ignore"`
	ReadOnly   bool     `toml:"readonly"`
	NewGroup   bool     `toml:"new_group"`
}

// Registry holds the types declared by a schema.
type Registry struct {
	types map[string]plum.Transform
	names []string
}

// Load reads and declares the schema file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSchema, errors.KindNotFound, err, "read schema "+path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	plum.Logger().Debug("loaded schema",
		zap.String("path", path),
		zap.Int("types", len(r.names)))
	return r, nil
}

// Parse decodes and declares a schema document. Unknown keys are rejected.
func Parse(data []byte) (*Registry, error) {
	var doc Document
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSchema, errors.KindInvalidValue, err, "parse TOML")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.PhaseSchema, errors.KindUnknownMember).
			Value(keys).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}
	return Declare(&doc)
}

// Declare declares every type of doc.
func Declare(doc *Document) (*Registry, error) {
	r := &Registry{types: make(map[string]plum.Transform)}
	for i := range doc.Enums {
		if err := r.declareEnum(&doc.Enums[i]); err != nil {
			return nil, err
		}
	}
	for i := range doc.BitFields {
		if err := r.declareBitFields(&doc.BitFields[i]); err != nil {
			return nil, err
		}
	}
	for i := range doc.Structures {
		if err := r.declareStruct(&doc.Structures[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup returns a declared type, or a builtin one when nothing with that
// name was declared.
func (r *Registry) Lookup(name string) (plum.Transform, bool) {
	if t, ok := r.types[name]; ok {
		return t, true
	}
	return Builtin(name)
}

// Structure returns a declared structure.
func (r *Registry) Structure(name string) (*structure.Type, bool) {
	t, ok := r.types[name].(*structure.Type)
	return t, ok
}

// Names lists the declared types in declaration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

func (r *Registry) add(name string, t plum.Transform) error {
	if _, dup := r.types[name]; dup {
		return entryError(errors.KindDuplicateMember, name, nil, "type %q declared twice", name)
	}
	if _, ok := builtins[name]; ok || name == "array" || name == "optional" {
		return entryError(errors.KindDuplicateMember, name, nil, "type %q shadows a builtin", name)
	}
	r.types[name] = t
	r.names = append(r.names, name)
	return nil
}

func (r *Registry) declareEnum(d *EnumDecl) error {
	if d.Name == "" {
		return entryError(errors.KindInvalidValue, "enum", nil, "enum without a name")
	}
	baseName := cmp.Or(d.Base, "u8")
	base, ok := intType(baseName)
	if !ok {
		return entryError(errors.KindUnknownMember, d.Name, nil, "enum base %q is not an integer type", baseName)
	}
	members := make([]transform.EnumMember, 0, len(d.Values))
	for name, v := range d.Values {
		members = append(members, transform.EnumMember{Name: name, Value: v})
	}
	slices.SortFunc(members, func(a, b transform.EnumMember) int {
		return cmp.Or(cmp.Compare(a.Value, b.Value), cmp.Compare(a.Name, b.Name))
	})
	e := transform.NewEnum(d.Name, base, members...)
	if d.Lenient {
		e = e.Lenient()
	}
	return r.add(d.Name, e)
}

func (r *Registry) declareBitFields(d *BitFieldsDecl) error {
	b := bitfields.Declare(d.Name).NBytes(d.NBytes).Default(d.Default)
	order, err := byteOrder(d.Name, d.ByteOrder, plum.BigEndian)
	if err != nil {
		return err
	}
	forder, err := fieldOrder(d.Name, d.FieldOrder, bitfields.LeastToMost)
	if err != nil {
		return err
	}
	b.ByteOrder(order).FieldOrder(forder)
	for _, f := range d.Fields {
		var opts []bitfields.FieldOption
		if f.LSB != nil {
			opts = append(opts, bitfields.LSB(*f.LSB))
		}
		if f.Kind != "" {
			k, err := r.kind(d.Name, f.Name, f.Kind)
			if err != nil {
				return err
			}
			opts = append(opts, bitfields.As(k))
		}
		if f.Default != nil {
			opts = append(opts, bitfields.Default(f.Default))
		}
		if f.Ignore {
			opts = append(opts, bitfields.Ignore())
		}
		if f.ReadOnly {
			opts = append(opts, bitfields.ReadOnly())
		}
		b.Field(f.Name, f.Bits, opts...)
	}
	t, err := b.Build()
	if err != nil {
		return entryError(errors.KindOf(err), d.Name, err, "bitfields %q", d.Name)
	}
	return r.add(d.Name, t)
}

func (r *Registry) declareStruct(d *StructDecl) error {
	b := structure.Declare(d.Name)
	if d.Extends != "" {
		base, ok := r.Structure(d.Extends)
		if !ok {
			return entryError(errors.KindUnknownMember, d.Name, nil, "base structure %q is not declared", d.Extends)
		}
		b.Extends(base)
	}
	if d.ByteOrder != "" {
		order, err := byteOrder(d.Name, d.ByteOrder, plum.BigEndian)
		if err != nil {
			return err
		}
		b.ByteOrder(order)
	}
	if d.FieldOrder != "" {
		forder, err := fieldOrder(d.Name, d.FieldOrder, bitfields.MostToLeast)
		if err != nil {
			return err
		}
		b.FieldOrder(forder)
	}
	for i := range d.Members {
		if err := r.declareMember(b, d.Name, &d.Members[i]); err != nil {
			return err
		}
	}
	t, err := b.Build()
	if err != nil {
		return entryError(errors.KindOf(err), d.Name, err, "structure %q", d.Name)
	}
	return r.add(d.Name, t)
}

func (r *Registry) declareMember(b *structure.Builder, owner string, m *MemberDecl) error {
	var opts []structure.Option
	if m.Default != nil {
		opts = append(opts, structure.Default(m.Default))
	}
	if m.Compute {
		opts = append(opts, structure.Compute())
	}
	if m.Ignore {
		opts = append(opts, structure.Ignore())
	}
	if m.ReadOnly {
		opts = append(opts, structure.ReadOnly())
	}

	if m.Bits > 0 {
		if m.LSB != nil {
			opts = append(opts, structure.LSB(*m.LSB))
		}
		if m.NBytes > 0 {
			opts = append(opts, structure.NBytes(m.NBytes))
		}
		if m.NewGroup {
			opts = append(opts, structure.NewGroup())
		}
		if m.Kind != "" {
			k, err := r.kind(owner, m.Name, m.Kind)
			if err != nil {
				return err
			}
			opts = append(opts, structure.As(k))
		}
		b.BitField(m.Name, m.Bits, opts...)
		return nil
	}

	t, err := r.resolve(owner, m)
	if err != nil {
		return err
	}
	switch {
	case m.Size != "":
		if m.Ratio > 0 {
			opts = append(opts, structure.Ratio(m.Ratio))
		}
		if m.SizeOffset != 0 {
			opts = append(opts, structure.SizeOffset(m.SizeOffset))
		}
		b.Sized(m.Name, t, m.Size, opts...)
	case len(m.Dims) > 0:
		b.Dimmed(m.Name, t, m.Dims, opts...)
	default:
		b.Member(m.Name, t, opts...)
	}
	return nil
}

// resolve maps a member's type name to a transform. Dimmed members name
// their element type.
func (r *Registry) resolve(owner string, m *MemberDecl) (plum.Transform, error) {
	switch m.Type {
	case "array":
		elem, err := r.named(owner, m.Name, m.Elem)
		if err != nil {
			return nil, err
		}
		switch {
		case m.Length > 0:
			return transform.FixedArray(elem, m.Length), nil
		case m.Count != "":
			count, ok := intType(m.Count)
			if !ok {
				return nil, entryError(errors.KindUnknownMember, owner, nil, "member %q: count type %q is not an integer type", m.Name, m.Count)
			}
			return transform.PrefixedArray(elem, count), nil
		}
		return transform.GreedyArray(elem), nil
	case "optional":
		elem, err := r.named(owner, m.Name, m.Elem)
		if err != nil {
			return nil, err
		}
		return transform.NewOptional(elem), nil
	}

	t, err := r.named(owner, m.Name, m.Type)
	if err != nil {
		return nil, err
	}
	if m.Length <= 0 {
		return t, nil
	}
	switch x := t.(type) {
	case *transform.Bytes:
		if m.Pad != 0 {
			return transform.PaddedBytes(m.Length, byte(m.Pad)), nil
		}
		return transform.FixedBytes(m.Length), nil
	case *transform.Str:
		return x.Fixed(m.Length, byte(m.Pad)), nil
	}
	return nil, entryError(errors.KindInvalidValue, owner, nil, "member %q: type %q takes no length", m.Name, m.Type)
}

func (r *Registry) named(owner, member, name string) (plum.Transform, error) {
	if name == "" {
		return nil, entryError(errors.KindInvalidValue, owner, nil, "member %q has no type", member)
	}
	t, ok := r.Lookup(name)
	if !ok {
		return nil, entryError(errors.KindUnknownMember, owner, nil, "member %q: unknown type %q", member, name)
	}
	return t, nil
}

// kind resolves a bit-field kind: uint, int, bool, a declared enum or a
// declared bit-field type.
func (r *Registry) kind(owner, field, name string) (bitfields.Kind, error) {
	switch name {
	case "uint":
		return bitfields.Uint, nil
	case "int":
		return bitfields.Signed, nil
	case "bool":
		return bitfields.Bool, nil
	}
	switch t := r.types[name].(type) {
	case *transform.Enum:
		return bitfields.EnumOf(t), nil
	case *bitfields.Type:
		return bitfields.Nested(t), nil
	}
	return bitfields.Kind{}, entryError(errors.KindUnknownMember, owner, nil, "field %q: unknown bit-field kind %q", field, name)
}

func byteOrder(owner, name string, def plum.ByteOrder) (plum.ByteOrder, error) {
	switch name {
	case "":
		return def, nil
	case "big", "be":
		return plum.BigEndian, nil
	case "little", "le":
		return plum.LittleEndian, nil
	}
	return def, entryError(errors.KindInvalidValue, owner, nil, "byte order %q, want big or little", name)
}

func fieldOrder(owner, name string, def bitfields.FieldOrder) (bitfields.FieldOrder, error) {
	switch name {
	case "":
		return def, nil
	case "least_to_most", "lsb_first":
		return bitfields.LeastToMost, nil
	case "most_to_least", "msb_first":
		return bitfields.MostToLeast, nil
	}
	return def, entryError(errors.KindInvalidValue, owner, nil, "field order %q, want least_to_most or most_to_least", name)
}

func entryError(kind errors.Kind, entry string, cause error, format string, args ...any) error {
	b := errors.New(errors.PhaseSchema, kind).
		Type(entry).
		Detail(format, args...)
	if cause != nil {
		b = b.Cause(cause)
	}
	return b.Build()
}
