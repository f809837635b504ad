package transform

import (
	"net/netip"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Optional packs a one byte presence tag followed by the inner value when
// the value is non-nil.
type Optional struct {
	inner plum.Transform
	name  string
}

// NewOptional wraps inner with a presence tag.
func NewOptional(inner plum.Transform) *Optional {
	return &Optional{inner: inner, name: "option<" + inner.Name() + ">"}
}

func (t *Optional) Name() string { return t.name }
func (t *Optional) Hint() string { return t.inner.Hint() + " or nil" }

func (t *Optional) Size() int {
	if t.inner.Size() == 0 {
		return 1
	}
	return plum.Variable
}

func (t *Optional) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	var tagRec, valRec *dump.Record
	if rec != nil {
		rec.Format = t.name
		tagRec = rec.Add("--present--")
	}
	if v == nil {
		_ = w.WriteByte(0)
		if tagRec != nil {
			tagRec.Fill("uint8", false, []byte{0})
		}
		return nil
	}
	_ = w.WriteByte(1)
	if tagRec != nil {
		tagRec.Fill("uint8", true, []byte{1})
		valRec = rec.Add("--value--")
	}
	return t.inner.Pack(w, v, valRec)
}

func (t *Optional) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	var tagRec, valRec *dump.Record
	if rec != nil {
		rec.Format = t.name
		tagRec = rec.Add("--present--")
	}
	b, err := r.Take(1, tagRec, "uint8")
	if err != nil {
		return nil, err
	}
	switch b[0] {
	case 0:
		if tagRec != nil {
			tagRec.Fill("uint8", false, b)
		}
		return nil, nil
	case 1:
		if tagRec != nil {
			tagRec.Fill("uint8", true, b)
			valRec = rec.Add("--value--")
		}
		return t.inner.Unpack(r, valRec)
	}
	if tagRec != nil {
		tagRec.Fill("uint8", b[0], b)
	}
	return nil, errors.InvalidValue(b[0], t.name, "{0, 1}")
}

func (t *Optional) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return plum.Normalize(t.inner, v)
}

// IPAddr packs IPv4 or IPv6 addresses.
type IPAddr struct {
	name string
	size int
}

var (
	IPv4 = &IPAddr{name: "ipv4", size: 4}
	IPv6 = &IPAddr{name: "ipv6", size: 16}
)

func (t *IPAddr) Name() string { return t.name }
func (t *IPAddr) Hint() string { return "netip.Addr" }
func (t *IPAddr) Size() int    { return t.size }

func (t *IPAddr) addr(v any) (netip.Addr, error) {
	var a netip.Addr
	switch x := v.(type) {
	case netip.Addr:
		a = x
	case string:
		var err error
		a, err = netip.ParseAddr(x)
		if err != nil {
			return a, errors.New(errors.PhasePack, errors.KindTypeMismatch).
				Type(t.name).
				Value(v).
				Cause(err).
				Build()
		}
	case []byte:
		var ok bool
		a, ok = netip.AddrFromSlice(x)
		if !ok {
			return a, errors.LengthMismatch(errors.PhasePack, t.size, len(x))
		}
	case [4]byte:
		a = netip.AddrFrom4(x)
	case [16]byte:
		a = netip.AddrFrom16(x)
	default:
		return a, errors.TypeMismatch(errors.PhasePack, v, "netip.Addr")
	}

	if t.size == 4 {
		a = a.Unmap()
		if !a.Is4() {
			return a, errors.OutOfRange(errors.PhasePack, v, t.name, "IPv4 addresses")
		}
		return a, nil
	}
	if a.Is4() {
		a = netip.AddrFrom16(a.As16())
	}
	return a.WithZone(""), nil
}

func (t *IPAddr) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	a, err := t.addr(v)
	if err != nil {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	b := a.AsSlice()
	w.Write(b)
	if rec != nil {
		rec.Fill(t.name, a, b)
	}
	return nil
}

func (t *IPAddr) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	b, err := r.Take(t.size, rec, t.name)
	if err != nil {
		return nil, err
	}
	a, _ := netip.AddrFromSlice(b)
	if rec != nil {
		rec.Fill(t.name, a, b)
	}
	return a, nil
}

func (t *IPAddr) Normalize(v any) (any, error) {
	return t.addr(v)
}

// Alias reports an existing transform under another name.
type Alias struct {
	plum.Transform
	name string
}

// NewAlias creates an alias of t.
func NewAlias(name string, t plum.Transform) *Alias {
	return &Alias{Transform: t, name: name}
}

func (a *Alias) Name() string { return a.name }

func (a *Alias) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	err := a.Transform.Pack(w, v, rec)
	if rec != nil {
		rec.Format = a.name
	}
	return err
}

func (a *Alias) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	v, err := a.Transform.Unpack(r, rec)
	if rec != nil {
		rec.Format = a.name
	}
	return v, err
}

func (a *Alias) Normalize(v any) (any, error) {
	return plum.Normalize(a.Transform, v)
}

func (a *Alias) IsGreedy() bool {
	return plum.IsGreedy(a.Transform)
}
