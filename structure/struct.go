package structure

import (
	"strings"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Struct is an instance of a structure type.
type Struct struct {
	t    *Type
	vals []any
	set  []bool
}

// Type returns the instance's type.
func (s *Struct) Type() *Type { return s.t }

// store assigns v, normalized when the member's transform accepts it.
// Values that do not normalize are kept as given and fail on pack.
func (s *Struct) store(m *Member, v any) {
	if nt := m.normalizer(); nt != nil {
		if nv, err := plum.Normalize(nt, v); err == nil {
			v = nv
		}
	} else if m.field != nil {
		if nv, err := m.field.Normalize(v); err == nil {
			v = nv
		}
	}
	s.vals[m.index], s.set[m.index] = v, true
}

// Get returns a member value. Unset members return nil.
func (s *Struct) Get(name string) (any, error) {
	m, err := s.t.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.vals[m.index], nil
}

// MustGet is like Get but panics on error.
func (s *Struct) MustGet(name string) any {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set assigns a member. Assigning a sized or dimmed member marks its
// controllers for recomputation on the next pack, unless the member was
// declared with OnSet.
func (s *Struct) Set(name string, v any) error {
	m, err := s.t.lookup(name)
	if err != nil {
		return err
	}
	return s.assign(m, v)
}

func (s *Struct) assign(m *Member, v any) error {
	if m.spec.readOnly {
		return errors.New(errors.PhaseAccess, errors.KindReadOnly).
			Type(s.t.name).
			Path(m.Name()).
			Detail("member %q is read-only", m.Name()).
			Build()
	}
	s.store(m, v)

	if m.spec.onSet != nil {
		return m.spec.onSet(s, v)
	}
	if m.sizeBy != nil {
		s.Unset(m.sizeBy.Name())
	}
	for _, c := range m.dimsBy {
		s.Unset(c.Name())
	}
	return nil
}

// At returns the value of member i.
func (s *Struct) At(i int) (any, error) {
	if i < 0 || i >= len(s.vals) {
		return nil, s.indexError(i)
	}
	return s.vals[i], nil
}

// SetAt assigns member i like Set.
func (s *Struct) SetAt(i int, v any) error {
	if i < 0 || i >= len(s.vals) {
		return s.indexError(i)
	}
	return s.assign(s.t.members[i], v)
}

func (s *Struct) indexError(i int) error {
	return errors.New(errors.PhaseAccess, errors.KindOutOfRange).
		Type(s.t.name).
		Value(i).
		Detail("member index %d out of range 0..%d", i, len(s.vals)-1).
		Build()
}

// IsSet reports whether a member has a value.
func (s *Struct) IsSet(name string) bool {
	m, ok := s.t.byName[name]
	return ok && s.set[m.index]
}

// Unset clears a member so that controllers and DefaultFunc members are
// derived again on pack.
func (s *Struct) Unset(name string) {
	if m, ok := s.t.byName[name]; ok {
		s.vals[m.index], s.set[m.index] = nil, false
	}
}

// Values returns the member values in declaration order.
func (s *Struct) Values() []any {
	return append([]any(nil), s.vals...)
}

// AsMap returns the set members. Nested instances and bit-field values
// become maps too.
func (s *Struct) AsMap() Fields {
	out := make(Fields, len(s.vals))
	for i, m := range s.t.members {
		if s.set[i] {
			out[m.Name()] = plain(s.vals[i])
		}
	}
	return out
}

func plain(v any) any {
	switch x := v.(type) {
	case *Struct:
		return x.AsMap()
	case *bitfields.Bits:
		return x.AsMap()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// Clone returns a shallow copy.
func (s *Struct) Clone() *Struct {
	return &Struct{
		t:    s.t,
		vals: append([]any(nil), s.vals...),
		set:  append([]bool(nil), s.set...),
	}
}

// Pack converts the instance to bytes.
func (s *Struct) Pack() ([]byte, error) {
	return plum.Pack(s.t, s)
}

// Dump packs the instance while recording provenance.
func (s *Struct) Dump() (*dump.Dump, error) {
	_, d, err := plum.PackDump(s.t, s)
	return d, err
}

// normalized round-trips s through pack and unpack when a derived member
// (controller, computed or DefaultFunc member) is unset.
func (s *Struct) normalized() (*Struct, error) {
	if !s.t.hasDerived {
		return s, nil
	}
	pending := false
	for _, m := range s.t.members {
		derived := m.spec.compute || m.spec.defFunc != nil || m.IsController()
		if derived && !s.set[m.index] {
			pending = true
			break
		}
	}
	if !pending {
		return s, nil
	}
	b, err := s.Pack()
	if err != nil {
		return nil, err
	}
	return s.t.UnpackStruct(b)
}

// Equal compares the members that are not ignored. other may be an
// instance of the same type or a field map.
func (s *Struct) Equal(other any) bool {
	var o *Struct
	switch x := other.(type) {
	case *Struct:
		o = x
	case map[string]any:
		var err error
		if o, err = s.t.New(x); err != nil {
			return false
		}
	default:
		return false
	}
	if o.t != s.t {
		return false
	}

	a, b := s, o
	if na, err := a.normalized(); err == nil {
		a = na
	}
	if nb, err := b.normalized(); err == nil {
		b = nb
	}

	for i, m := range s.t.members {
		if m.spec.ignore {
			continue
		}
		if a.set[i] != b.set[i] {
			return false
		}
		if a.set[i] && !plum.Equal(a.vals[i], b.vals[i]) {
			return false
		}
	}
	return true
}

// String renders the set members, for example "Header(tag=1, len=2)".
func (s *Struct) String() string {
	var b strings.Builder
	b.WriteString(s.t.name)
	b.WriteByte('(')
	first := true
	for i, m := range s.t.members {
		if !s.set[i] {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(m.Name())
		b.WriteByte('=')
		b.WriteString(dump.Repr(s.vals[i]))
	}
	b.WriteByte(')')
	return b.String()
}
