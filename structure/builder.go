package structure

import (
	"go.uber.org/zap"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/bits"
	"github.com/wippyai/plum/transform"
)

// Builder declares a structure type.
type Builder struct {
	err        error
	base       *Type
	own        map[string]bool
	name       string
	specs      []*memberSpec
	order      plum.ByteOrder
	fieldOrder bitfields.FieldOrder
}

// Declare starts a structure declaration. Bit-field groups default to big
// endian with the first declared field most significant.
func Declare(name string) *Builder {
	return &Builder{
		name:       name,
		own:        make(map[string]bool),
		order:      plum.BigEndian,
		fieldOrder: bitfields.MostToLeast,
	}
}

// Extends inherits the members of base. Members redeclared afterwards
// replace the inherited member in place. The byte and field orders of base
// carry over unless set again.
func (b *Builder) Extends(base *Type) *Builder {
	b.base = base
	b.order = base.order
	b.fieldOrder = base.fieldOrder
	specs := make([]*memberSpec, 0, len(base.specs)+len(b.specs))
	specs = append(specs, base.specs...)
	for _, s := range b.specs {
		specs = place(specs, s)
	}
	b.specs = specs
	return b
}

// ByteOrder sets the byte order of bit-field groups.
func (b *Builder) ByteOrder(o plum.ByteOrder) *Builder {
	b.order = o
	return b
}

// FieldOrder sets where unpositioned bit-fields go within a group.
func (b *Builder) FieldOrder(o bitfields.FieldOrder) *Builder {
	b.fieldOrder = o
	return b
}

// Member declares a member with a fixed transform. Pass a nil transform
// together with FormatFunc to select the transform per instance.
func (b *Builder) Member(name string, t plum.Transform, opts ...Option) *Builder {
	return b.add(&memberSpec{name: name, format: t, mkind: Plain}, opts)
}

// Sized declares a member whose byte length is carried by sizeMember.
func (b *Builder) Sized(name string, t plum.Transform, sizeMember string, opts ...Option) *Builder {
	return b.add(&memberSpec{name: name, format: t, mkind: SizedMember, sizeBy: sizeMember, ratio: 1}, opts)
}

// Dimmed declares an array member whose dimensions are carried by the dims
// members, outermost first.
func (b *Builder) Dimmed(name string, elem plum.Transform, dims []string, opts ...Option) *Builder {
	return b.add(&memberSpec{name: name, format: elem, mkind: DimmedMember, dimsBy: dims}, opts)
}

// BitField declares an nbits wide bit-field member. Consecutive bit-field
// members share a group unless NewGroup is given.
func (b *Builder) BitField(name string, nbits int, opts ...Option) *Builder {
	return b.add(&memberSpec{
		name:  name,
		mkind: BitFieldMember,
		nbits: nbits,
		lsb:   bits.Unpositioned,
		kind:  bitfields.Uint,
	}, opts)
}

func (b *Builder) add(s *memberSpec, opts []Option) *Builder {
	for _, o := range opts {
		o(s)
	}
	if b.own[s.name] && b.err == nil {
		b.err = errors.Declaration(errors.KindDuplicateMember, b.name, "member %q declared twice", s.name)
	}
	b.own[s.name] = true
	b.specs = place(b.specs, s)
	return b
}

// place replaces the member of the same name or appends s.
func place(specs []*memberSpec, s *memberSpec) []*memberSpec {
	for i, old := range specs {
		if old.name == s.name {
			specs[i] = s
			return specs
		}
	}
	return append(specs, s)
}

// Build resolves the layout and compiles the pack and unpack plans.
func (b *Builder) Build() (*Type, error) {
	t, err := b.build()
	if err != nil {
		plum.Logger().Warn("structure declaration failed",
			zap.String("type", b.name),
			zap.Error(err))
		return nil, err
	}
	plum.Logger().Debug("declared structure",
		zap.String("type", t.name),
		zap.Int("members", len(t.members)),
		zap.Int("steps", len(t.steps)),
		zap.Int("size", t.size))
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

func (b *Builder) build() (*Type, error) {
	if b.err != nil {
		return nil, b.err
	}

	t := &Type{
		name:       b.name,
		base:       b.base,
		specs:      append([]*memberSpec(nil), b.specs...),
		byName:     make(map[string]*Member, len(b.specs)),
		order:      b.order,
		fieldOrder: b.fieldOrder,
	}

	for i, s := range t.specs {
		if err := b.checkSpec(s); err != nil {
			return nil, err
		}
		m := &Member{spec: s, index: i, offset: plum.Variable}
		t.members = append(t.members, m)
		t.byName[s.name] = m
	}

	for _, m := range t.members {
		if err := b.wire(t, m); err != nil {
			return nil, err
		}
	}
	for _, m := range t.members {
		if m.spec.compute && len(m.controls) == 0 {
			return nil, errors.New(errors.PhaseDeclare, errors.KindUnassociatedComputedMember).
				Type(b.name).
				Path(m.Name()).
				Detail("computed member %q controls no member", m.Name()).
				Build()
		}
		if m.spec.compute || m.spec.defFunc != nil || m.IsController() {
			t.hasDerived = true
		}
	}

	if err := b.group(t); err != nil {
		return nil, err
	}
	if err := b.layout(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Builder) checkSpec(s *memberSpec) error {
	switch {
	case s.name == "":
		return errors.Declaration(errors.KindInvalidValue, b.name, "member with empty name")
	case s.bitOpts && s.mkind != BitFieldMember:
		return errors.Declaration(errors.KindInvalidValue, b.name, "bit-field options on %s member %q", s.mkind, s.name)
	case s.sizeOpts && s.mkind != SizedMember:
		return errors.Declaration(errors.KindInvalidValue, b.name, "size options on %s member %q", s.mkind, s.name)
	case s.mkind != BitFieldMember && s.format == nil && s.formatFunc == nil:
		return errors.Declaration(errors.KindInvalidValue, b.name, "member %q has no transform", s.name)
	case s.mkind == DimmedMember && len(s.dimsBy) == 0:
		return errors.Declaration(errors.KindInvalidValue, b.name, "dimmed member %q has no dimensions", s.name)
	case s.mkind == SizedMember && s.ratio < 1:
		return errors.Declaration(errors.KindInvalidValue, b.name, "sized member %q has ratio %d", s.name, s.ratio)
	}
	return nil
}

// wire links a sized or dimmed member to its controllers.
func (b *Builder) wire(t *Type, m *Member) error {
	var names []string
	switch m.spec.mkind {
	case SizedMember:
		names = []string{m.spec.sizeBy}
	case DimmedMember:
		names = m.spec.dimsBy
	default:
		return nil
	}

	for _, name := range names {
		c, ok := t.byName[name]
		if !ok {
			return errors.New(errors.PhaseDeclare, errors.KindUnknownMember).
				Type(b.name).
				Path(m.Name()).
				Detail("member %q is controlled by undeclared member %q", m.Name(), name).
				Build()
		}
		if c.index >= m.index {
			return errors.New(errors.PhaseDeclare, errors.KindAmbiguousLayout).
				Type(b.name).
				Path(m.Name()).
				Detail("member %q precedes its controller %q", m.Name(), name).
				Build()
		}
		if c.spec.mkind != Plain || c.spec.formatFunc != nil || !plum.IsFixed(c.spec.format) {
			return errors.New(errors.PhaseDeclare, errors.KindAmbiguousLayout).
				Type(b.name).
				Path(name).
				Detail("controller %q of %q has no fixed size", name, m.Name()).
				Build()
		}
		ci, ok := c.spec.format.(*transform.Int)
		if !ok {
			return errors.Declaration(errors.KindInvalidValue, b.name,
				"controller %q of %q must be an integer member, not %s", name, m.Name(), c.spec.format.Name())
		}
		c.ctrlInt = ci
		c.controls = append(c.controls, m)
		if m.spec.mkind == SizedMember {
			m.sizeBy = c
		} else {
			m.dimsBy = append(m.dimsBy, c)
		}
	}
	return nil
}

// group collects runs of bit-field members and resolves their positions.
func (b *Builder) group(t *Type) error {
	var run []*Member
	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		g, err := b.resolveGroup(run)
		if err != nil {
			return err
		}
		t.groups = append(t.groups, g)
		run = nil
		return nil
	}

	for _, m := range t.members {
		if m.spec.mkind != BitFieldMember {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if m.spec.newGroup {
			if err := flush(); err != nil {
				return err
			}
		}
		run = append(run, m)
	}
	return flush()
}

func (b *Builder) resolveGroup(run []*Member) (*group, error) {
	specs := make([]bitfields.FieldSpec, len(run))
	nbytes := 0
	for i, m := range run {
		opts := []bitfields.FieldOption{bitfields.As(m.spec.kind)}
		if m.spec.lsb != bits.Unpositioned {
			opts = append(opts, bitfields.LSB(m.spec.lsb))
		}
		if m.spec.hasDef {
			opts = append(opts, bitfields.Default(m.spec.def))
		}
		if m.spec.ignore {
			opts = append(opts, bitfields.Ignore())
		}
		if m.spec.readOnly {
			opts = append(opts, bitfields.ReadOnly())
		}
		specs[i] = bitfields.Spec(m.Name(), m.spec.nbits, opts...)
		nbytes = max(nbytes, m.spec.nbytes)
	}

	bg, err := bitfields.NewGroup(b.name, specs, nbytes, b.fieldOrder)
	if err != nil {
		return nil, err
	}

	g := &group{
		bits:    bg,
		int:     transform.NewInt(bg.NBytes(), b.order, false),
		members: run,
		offset:  plum.Variable,
	}
	for _, m := range run {
		m.group = g
		m.field, _ = bg.Field(m.Name())
	}
	return g, nil
}

// layout orders the steps, assigns static offsets and compiles the plan.
func (b *Builder) layout(t *Type) error {
	off := 0
	var seen *group
	for _, m := range t.members {
		if m.group != nil {
			if m.group == seen {
				m.offset = m.group.offset
				continue
			}
			seen = m.group
			m.group.offset = off
			m.offset = off
			t.steps = append(t.steps, compileGroup(m.group))
			off = advance(off, m.group.int.Size())
			continue
		}

		m.offset = off
		t.steps = append(t.steps, compileMember(m))
		size := plum.Variable
		if st, ok := m.static(); ok {
			size = st.Size()
		}
		off = advance(off, size)
	}
	t.size = off

	for i, m := range t.members {
		st, ok := m.static()
		if !ok || !plum.IsGreedy(st) {
			continue
		}
		if i != len(t.members)-1 {
			return errors.New(errors.PhaseDeclare, errors.KindAmbiguousLayout).
				Type(b.name).
				Path(m.Name()).
				Detail("greedy member %q is followed by %q", m.Name(), t.members[i+1].Name()).
				Build()
		}
	}
	return nil
}

func advance(off, size int) int {
	if off < 0 || size < 0 {
		return plum.Variable
	}
	return off + size
}
