package structure

import (
	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/transform"
)

// MemberKind distinguishes member declarations.
type MemberKind uint8

const (
	Plain MemberKind = iota
	SizedMember
	DimmedMember
	BitFieldMember
)

func (k MemberKind) String() string {
	switch k {
	case SizedMember:
		return "sized"
	case DimmedMember:
		return "dimmed"
	case BitFieldMember:
		return "bit-field"
	}
	return "plain"
}

// memberSpec is a member as declared, before layout resolution.
type memberSpec struct {
	def        any
	format     plum.Transform
	formatFunc func(*Struct) (plum.Transform, error)
	defFunc    func(*Struct) (any, error)
	onSet      func(*Struct, any) error
	kind       bitfields.Kind
	name       string
	sizeBy     string
	dimsBy     []string
	mkind      MemberKind
	ratio      int
	sizeOffset int
	nbits      int
	lsb        int
	nbytes     int
	hasDef     bool
	ignore     bool
	readOnly   bool
	compute    bool
	newGroup   bool
	bitOpts    bool
	sizeOpts   bool
}

// Member is a resolved member of a built type.
type Member struct {
	spec *memberSpec

	// size controller of a sized member
	sizeBy *Member
	// dimension controllers of a dimmed member
	dimsBy []*Member
	// members whose size or dimensions this member carries
	controls []*Member

	ctrlInt *transform.Int
	group   *group
	field   *bitfields.Field

	index  int
	offset int
}

func (m *Member) Name() string     { return m.spec.name }
func (m *Member) Index() int       { return m.index }
func (m *Member) Kind() MemberKind { return m.spec.mkind }
func (m *Member) Ignored() bool    { return m.spec.ignore }
func (m *Member) ReadOnly() bool   { return m.spec.readOnly }
func (m *Member) Computed() bool   { return m.spec.compute }

// Offset returns the static byte offset, or plum.Variable when earlier
// members have data-dependent sizes. Bit-field members report the offset of
// their group.
func (m *Member) Offset() int { return m.offset }

// Format returns the declared transform: the element transform of dimmed
// members, the inner transform of sized members, nil for bit-fields and
// members with a FormatFunc.
func (m *Member) Format() plum.Transform { return m.spec.format }

// Field returns the bit-field of a bit-field member.
func (m *Member) Field() *bitfields.Field { return m.field }

// Controllers names the members carrying this member's size or dimensions.
func (m *Member) Controllers() []string {
	if m.sizeBy != nil {
		return []string{m.sizeBy.Name()}
	}
	out := make([]string, len(m.dimsBy))
	for i, d := range m.dimsBy {
		out[i] = d.Name()
	}
	return out
}

// IsController reports whether the member carries another member's size
// or dimensions.
func (m *Member) IsController() bool { return len(m.controls) > 0 }

// static returns the member's transform when it does not depend on
// instance values.
func (m *Member) static() (plum.Transform, bool) {
	if m.spec.formatFunc != nil || m.spec.mkind != Plain {
		return nil, false
	}
	return m.spec.format, true
}

// transform resolves the member's transform against s.
func (m *Member) transform(s *Struct) (plum.Transform, error) {
	if m.spec.formatFunc != nil {
		return m.spec.formatFunc(s)
	}
	return m.spec.format, nil
}

// normalizer returns the transform used to normalize assigned values.
func (m *Member) normalizer() plum.Transform {
	if m.spec.formatFunc != nil {
		return nil
	}
	switch m.spec.mkind {
	case Plain, SizedMember:
		return m.spec.format
	case DimmedMember:
		if len(m.dimsBy) == 1 {
			return transform.GreedyArray(m.spec.format)
		}
	}
	return nil
}

// group is a run of bit-field members sharing one integer.
type group struct {
	bits    *bitfields.Group
	int     *transform.Int
	members []*Member
	offset  int
}
