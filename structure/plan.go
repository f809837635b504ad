package structure

import (
	"fmt"
	"reflect"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
	"github.com/wippyai/plum/transform"
)

// step packs and unpacks one member or one bit-field group.
type step struct {
	pack   func(*packState) error
	unpack func(*unpackState) error
}

type slot struct {
	rec *dump.Record
	off int
}

type packState struct {
	s     *Struct
	w     *plum.Writer
	rec   *dump.Record
	slots map[int]slot
}

type unpackState struct {
	s   *Struct
	r   *plum.Reader
	rec *dump.Record
}

func (st *packState) child(access string) *dump.Record {
	if st.rec == nil {
		return nil
	}
	return st.rec.Add(access)
}

func (st *unpackState) child(access string) *dump.Record {
	if st.rec == nil {
		return nil
	}
	return st.rec.Add(access)
}

// mark records the member that failed before its transform ran.
func (st *packState) mark(m *Member, v any, set bool) {
	if st.rec == nil {
		return
	}
	c := st.rec.Add(m.Name())
	c.Value = "<unset>"
	if set {
		c.Value = dump.Repr(v)
	}
}

// value returns the member's value, running its DefaultFunc when unset.
func (st *packState) value(m *Member) (any, error) {
	s := st.s
	if s.set[m.index] {
		return s.vals[m.index], nil
	}
	if fn := m.spec.defFunc; fn != nil {
		v, err := fn(s)
		if err != nil {
			return nil, errors.New(errors.PhasePack, errors.KindInvalidValue).
				Path(m.Name()).
				Cause(err).
				Detail("default of %q failed", m.Name()).
				Build()
		}
		s.vals[m.index], s.set[m.index] = v, true
		return v, nil
	}
	return nil, errors.New(errors.PhasePack, errors.KindTypeMismatch).
		Path(m.Name()).
		Detail("member %q has no value", m.Name()).
		Build()
}

// reserve leaves room for a controller computed later.
func (st *packState) reserve(c *Member) {
	n := c.ctrlInt.Size()
	sl := slot{off: st.w.Reserve(n)}
	if st.rec != nil {
		sl.rec = st.rec.Add(c.Name())
		sl.rec.Format = c.ctrlInt.Name()
		sl.rec.Value = "<pending>"
		sl.rec.Raw = make([]byte, n)
	}
	if st.slots == nil {
		st.slots = make(map[int]slot)
	}
	st.slots[c.index] = sl
}

func (st *packState) pending(c *Member) bool {
	_, ok := st.slots[c.index]
	return ok
}

// settle patches the reserved controller c with n.
func (st *packState) settle(c, m *Member, n int) error {
	sl, ok := st.slots[c.index]
	if !ok {
		return nil
	}
	delete(st.slots, c.index)

	raw, err := c.ctrlInt.FromInt(n)
	if err != nil {
		return errors.New(errors.PhasePack, errors.KindOutOfRange).
			Path(c.Name()).
			Type(c.ctrlInt.Name()).
			Value(n).
			Detail("%s of %q computed as %d, permitted %s", c.Name(), m.Name(), n, c.ctrlInt.Range()).
			Build()
	}
	b := c.ctrlInt.Encode(raw)
	st.w.Patch(sl.off, b)

	v := c.ctrlInt.Natural(raw)
	st.s.vals[c.index], st.s.set[c.index] = v, true
	if sl.rec != nil {
		sl.rec.Fill(c.ctrlInt.Name(), v, b)
	}
	return nil
}

func compileMember(m *Member) step {
	switch m.spec.mkind {
	case SizedMember:
		return compileSized(m)
	case DimmedMember:
		return compileDimmed(m)
	}
	return compilePlain(m)
}

func compilePlain(m *Member) step {
	deferred := m.IsController() && m.spec.defFunc == nil
	return step{
		pack: func(st *packState) error {
			if deferred && !st.s.set[m.index] {
				st.reserve(m)
				return nil
			}
			v, err := st.value(m)
			if err != nil {
				st.mark(m, nil, false)
				return err
			}
			t, err := m.transform(st.s)
			if err != nil {
				st.mark(m, v, true)
				return formatError(errors.PhasePack, m, err)
			}
			return t.Pack(st.w, v, st.child(m.Name()))
		},
		unpack: func(st *unpackState) error {
			rec := st.child(m.Name())
			t, err := m.transform(st.s)
			if err != nil {
				return formatError(errors.PhaseUnpack, m, err)
			}
			v, err := t.Unpack(st.r, rec)
			if err != nil {
				return err
			}
			st.s.store(m, v)
			return nil
		},
	}
}

func compileSized(m *Member) step {
	ctrl := m.sizeBy
	ratio, offset := m.spec.ratio, m.spec.sizeOffset
	return step{
		pack: func(st *packState) error {
			v, err := st.value(m)
			if err != nil {
				st.mark(m, nil, false)
				return err
			}
			inner, err := m.transform(st.s)
			if err != nil {
				st.mark(m, v, true)
				return formatError(errors.PhasePack, m, err)
			}
			start := st.w.Len()
			if err := inner.Pack(st.w, v, st.child(m.Name())); err != nil {
				return err
			}
			if !st.pending(ctrl) {
				return nil
			}
			n, err := transform.SizeValue(st.w.Len()-start, ratio, offset)
			if err != nil {
				return err
			}
			return st.settle(ctrl, m, n)
		},
		unpack: func(st *unpackState) error {
			size, err := controlValue(errors.PhaseUnpack, st.s, ctrl)
			if err != nil {
				return err
			}
			n, err := transform.ByteCount(size, ratio, offset)
			if err != nil {
				return err
			}
			inner, err := m.transform(st.s)
			if err != nil {
				return formatError(errors.PhaseUnpack, m, err)
			}
			v, err := transform.UnpackExact(st.r, n, inner, st.rec, m.Name())
			if err != nil {
				return err
			}
			st.s.store(m, v)
			return nil
		},
	}
}

func compileDimmed(m *Member) step {
	return step{
		pack: func(st *packState) error {
			v, err := st.value(m)
			if err != nil {
				st.mark(m, nil, false)
				return err
			}
			elem, err := m.transform(st.s)
			if err != nil {
				st.mark(m, v, true)
				return formatError(errors.PhasePack, m, err)
			}

			shape := shapeOf(v, len(m.dimsBy))
			dims := make([]int, len(m.dimsBy))
			for k, c := range m.dimsBy {
				if st.pending(c) {
					dims[k] = shape[k]
					continue
				}
				if dims[k], err = controlValue(errors.PhasePack, st.s, c); err != nil {
					st.mark(m, v, true)
					return err
				}
			}

			arr := transform.FixedArray(elem, dims...)
			if err := arr.Pack(st.w, v, st.child(m.Name())); err != nil {
				return err
			}
			for k, c := range m.dimsBy {
				if err := st.settle(c, m, dims[k]); err != nil {
					return err
				}
			}
			return nil
		},
		unpack: func(st *unpackState) error {
			dims := make([]int, len(m.dimsBy))
			for k, c := range m.dimsBy {
				n, err := controlValue(errors.PhaseUnpack, st.s, c)
				if err != nil {
					return err
				}
				dims[k] = n
			}
			elem, err := m.transform(st.s)
			if err != nil {
				return formatError(errors.PhaseUnpack, m, err)
			}
			v, err := transform.FixedArray(elem, dims...).Unpack(st.r, st.child(m.Name()))
			if err != nil {
				return err
			}
			st.s.store(m, v)
			return nil
		},
	}
}

func compileGroup(g *group) step {
	n := g.int.Size()
	return step{
		pack: func(st *packState) error {
			var raw uint64
			for _, m := range g.members {
				v, err := st.value(m)
				if err == nil {
					raw, err = m.field.Put(raw, v)
				}
				if err != nil {
					if st.rec != nil {
						grec := st.rec.Add("")
						grec.Format = g.int.Name()
						c := grec.Add(m.Name())
						c.Bits = &dump.BitRange{LSB: m.field.LSB(), Size: m.field.Size()}
						c.Format = m.field.Kind().String()
						c.Value = "<unset>"
						if st.s.set[m.index] {
							c.Value = dump.Repr(v)
						}
					}
					return err
				}
			}
			out := g.int.Encode(raw)
			st.w.Write(out)
			if st.rec != nil {
				recordGroup(st.rec.Add(""), g, raw, out)
			}
			return nil
		},
		unpack: func(st *unpackState) error {
			rec := st.child("")
			p, err := st.r.Take(n, rec, g.int.Name())
			if err != nil {
				return err
			}
			raw := g.int.Decode(p)
			if rec != nil {
				recordGroup(rec, g, raw, p)
			}
			for _, m := range g.members {
				v, err := m.field.Get(raw)
				if err != nil {
					return err
				}
				st.s.store(m, v)
			}
			return nil
		},
	}
}

func recordGroup(rec *dump.Record, g *group, raw uint64, p []byte) {
	rec.Format = g.int.Name()
	rec.Value = fmt.Sprintf("0x%0*x", len(p)*2, raw)
	rec.Raw = append([]byte{}, p...)
	g.bits.Record(rec, raw)
}

// controlValue reads a controller as a non-negative count.
func controlValue(phase errors.Phase, s *Struct, c *Member) (int, error) {
	v := s.vals[c.index]
	n, ok := coerce.ToInt(v)
	if !s.set[c.index] || !ok || n < 0 {
		return 0, errors.New(phase, errors.KindInvalidValue).
			Path(c.Name()).
			Type(c.ctrlInt.Name()).
			Value(v).
			Detail("%s is not a usable size, accepted a non-negative integer", dump.Repr(v)).
			Build()
	}
	return n, nil
}

func formatError(phase errors.Phase, m *Member, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.New(phase, errors.KindInvalidValue).
		Path(m.Name()).
		Cause(err).
		Detail("no format for %q", m.Name()).
		Build()
}

// shapeOf returns the lengths of the first depth nesting levels of v.
func shapeOf(v any, depth int) []int {
	shape := make([]int, depth)
	rv := reflect.ValueOf(v)
	for k := range depth {
		for rv.IsValid() && rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			break
		}
		shape[k] = rv.Len()
		if rv.Len() == 0 {
			break
		}
		rv = rv.Index(0)
	}
	return shape
}
