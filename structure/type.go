package structure

import (
	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Type is a built structure type. It implements plum.Transform.
type Type struct {
	base       *Type
	byName     map[string]*Member
	name       string
	specs      []*memberSpec
	members    []*Member
	groups     []*group
	steps      []step
	size       int
	order      plum.ByteOrder
	fieldOrder bitfields.FieldOrder
	hasDerived bool
}

func (t *Type) Name() string { return t.name }
func (t *Type) Hint() string { return "*structure.Struct" }

// Size returns the sum of member sizes, or plum.Variable.
func (t *Type) Size() int { return t.size }

// Base returns the type t extends, or nil.
func (t *Type) Base() *Type { return t.base }

func (t *Type) ByteOrder() plum.ByteOrder { return t.order }

// Members returns the members in declaration order.
func (t *Type) Members() []*Member {
	return append([]*Member(nil), t.members...)
}

// Member returns the named member.
func (t *Type) Member(name string) (*Member, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// MemberNames returns the member names in declaration order.
func (t *Type) MemberNames() []string {
	out := make([]string, len(t.members))
	for i, m := range t.members {
		out[i] = m.Name()
	}
	return out
}

// IsGreedy reports whether the last member consumes to the end of input.
func (t *Type) IsGreedy() bool {
	if len(t.members) == 0 {
		return false
	}
	st, ok := t.members[len(t.members)-1].static()
	return ok && plum.IsGreedy(st)
}

func (t *Type) blank() *Struct {
	return &Struct{
		t:    t,
		vals: make([]any, len(t.members)),
		set:  make([]bool, len(t.members)),
	}
}

// New creates an instance. Members start with their defaults; vals
// override them. Read-only members may be given here.
func (t *Type) New(vals Fields) (*Struct, error) {
	s := t.blank()
	for _, m := range t.members {
		if m.spec.hasDef {
			s.store(m, m.spec.def)
		}
	}
	for name, v := range vals {
		m, err := t.lookup(name)
		if err != nil {
			return nil, err
		}
		s.store(m, v)
	}
	return s, nil
}

// MustNew is like New but panics on error.
func (t *Type) MustNew(vals Fields) *Struct {
	s, err := t.New(vals)
	if err != nil {
		panic(err)
	}
	return s
}

// Make creates an instance from positional values in declaration order.
// Missing trailing values keep their defaults; a nil value leaves the
// member unset.
func (t *Type) Make(vals ...any) (*Struct, error) {
	if len(vals) > len(t.members) {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Type(t.name).
			Detail("%s has %d members, got %d values", t.name, len(t.members), len(vals)).
			Build()
	}
	s, err := t.New(nil)
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			s.set[i], s.vals[i] = false, nil
			continue
		}
		s.store(t.members[i], v)
	}
	return s, nil
}

func (t *Type) lookup(name string) (*Member, error) {
	m, ok := t.byName[name]
	if !ok {
		return nil, errors.New(errors.PhaseAccess, errors.KindUnknownMember).
			Type(t.name).
			Path(name).
			Detail("%s has no member %q", t.name, name).
			Build()
	}
	return m, nil
}

// coerce accepts instances of t and field maps.
func (t *Type) coerce(v any) (*Struct, error) {
	switch x := v.(type) {
	case *Struct:
		if x.t != t {
			return nil, errors.TypeMismatch(errors.PhasePack, v, t.name)
		}
		return x, nil
	case map[string]any:
		s, err := t.New(x)
		if err != nil {
			if e, ok := errors.As(err); ok {
				cp := *e
				cp.Phase = errors.PhasePack
				cp.Kind = errors.KindTypeMismatch
				return nil, &cp
			}
			return nil, err
		}
		return s, nil
	}
	return nil, errors.TypeMismatch(errors.PhasePack, v, t.name+" or map")
}

func (t *Type) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	s, err := t.coerce(v)
	if err != nil {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	return t.pack(s, w, rec)
}

func (t *Type) pack(s *Struct, w *plum.Writer, rec *dump.Record) error {
	if rec != nil {
		rec.Format = t.name
	}
	st := &packState{s: s.Clone(), w: w, rec: rec}
	for _, step := range t.steps {
		if err := step.pack(st); err != nil {
			return err
		}
	}
	return nil
}

func (t *Type) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	if rec != nil {
		rec.Format = t.name
	}
	st := &unpackState{s: t.blank(), r: r, rec: rec}
	for _, step := range t.steps {
		if err := step.unpack(st); err != nil {
			return nil, err
		}
	}
	return st.s, nil
}

// Normalize converts maps to instances and derives unset controllers and
// computed members.
func (t *Type) Normalize(v any) (any, error) {
	s, err := t.coerce(v)
	if err != nil {
		return nil, err
	}
	return s.normalized()
}

// UnpackStruct unpacks b into an instance.
func (t *Type) UnpackStruct(b []byte) (*Struct, error) {
	return plum.UnpackAs[*Struct](t, b)
}
