package structure

import (
	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/transform"
	"github.com/wippyai/plum/view"
)

// LocateField places a member of an instance stored at off in buf. Members
// at static offsets are located directly; otherwise the instance is
// unpacked once to find the member's bytes.
func (t *Type) LocateField(buf []byte, off int, name string) (view.Location, error) {
	m, ok := t.byName[name]
	if !ok {
		return view.Location{}, errors.New(errors.PhaseView, errors.KindUnknownMember).
			Type(t.name).
			Path(name).
			Detail("%s has no member %q", t.name, name).
			Build()
	}

	if m.offset >= 0 {
		if g := m.group; g != nil {
			return view.Location{Transform: g.int, Group: g.int, Field: m.field, Offset: off + m.offset}, nil
		}
		if st, ok := m.static(); ok {
			return view.Location{Transform: st, Offset: off + m.offset}, nil
		}
	}

	root := &dump.Record{}
	v, err := t.Unpack(plum.NewReader(buf[off:], off), root)
	if err != nil {
		return view.Location{}, errors.New(errors.PhaseView, errors.KindUnsupported).
			Type(t.name).
			Path(name).
			Offset(off).
			Cause(err).
			Detail("cannot locate %q without unpacking", name).
			Build()
	}
	s := v.(*Struct)

	pos := off
	for _, rec := range root.Children {
		if rec.Access == "" && m.group != nil {
			for _, c := range rec.Children {
				if c.Access == name {
					return view.Location{Transform: m.group.int, Group: m.group.int, Field: m.field, Offset: pos}, nil
				}
			}
		}
		if rec.Access == name {
			tr, err := m.located(s, rec.Size())
			if err != nil {
				return view.Location{}, err
			}
			return view.Location{Transform: tr, Offset: pos}, nil
		}
		pos += rec.Size()
	}
	return view.Location{}, errors.New(errors.PhaseView, errors.KindNotFound).
		Type(t.name).
		Path(name).
		Detail("member %q not found in unpacked bytes", name).
		Build()
}

// located returns a fixed-size transform for the member as unpacked in s.
func (m *Member) located(s *Struct, size int) (plum.Transform, error) {
	tr, err := m.transform(s)
	if err != nil {
		return nil, formatError(errors.PhaseView, m, err)
	}
	switch m.spec.mkind {
	case SizedMember:
		return transform.NewExact(tr, size), nil
	case DimmedMember:
		dims := make([]int, len(m.dimsBy))
		for k, c := range m.dimsBy {
			if dims[k], err = controlValue(errors.PhaseView, s, c); err != nil {
				return nil, err
			}
		}
		return transform.FixedArray(tr, dims...), nil
	}
	if tr.Size() < 0 {
		return transform.NewExact(tr, size), nil
	}
	return tr, nil
}
