package transform

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
)

// EnumMember names one code of an enumeration.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumValue is an unpacked enumeration member.
type EnumValue struct {
	Enum  string
	Name  string
	Value int64
}

func (v EnumValue) String() string {
	return v.Enum + "." + v.Name
}

func (v EnumValue) DumpString() string {
	return v.String() + " (" + strconv.FormatInt(v.Value, 10) + ")"
}

// Enum maps integer codes to named members.
//
// A strict enumeration rejects codes without a member. A lenient one passes
// them through as the raw integer so they survive a round trip.
type Enum struct {
	name    string
	base    *Int
	members []EnumMember
	byName  map[string]int64
	byValue map[int64]string
	strict  bool
}

// NewEnum creates a strict enumeration over base.
func NewEnum(name string, base *Int, members ...EnumMember) *Enum {
	e := &Enum{
		name:    name,
		base:    base,
		members: slices.Clone(members),
		byName:  make(map[string]int64, len(members)),
		byValue: make(map[int64]string, len(members)),
		strict:  true,
	}
	for _, m := range members {
		e.byName[m.Name] = m.Value
		if _, dup := e.byValue[m.Value]; !dup {
			e.byValue[m.Value] = m.Name
		}
	}
	return e
}

// Lenient returns a copy of e that accepts unknown codes.
func (e *Enum) Lenient() *Enum {
	c := *e
	c.strict = false
	return &c
}

// Strict reports whether unknown codes are rejected.
func (e *Enum) Strict() bool { return e.strict }

func (e *Enum) Name() string          { return e.name }
func (e *Enum) Hint() string          { return "transform.EnumValue" }
func (e *Enum) Size() int             { return e.base.Size() }
func (e *Enum) Base() *Int            { return e.base }
func (e *Enum) Members() []EnumMember { return slices.Clone(e.members) }

// Member returns the value of the named member.
func (e *Enum) Member(name string) (EnumValue, bool) {
	code, ok := e.byName[name]
	if !ok {
		return EnumValue{}, false
	}
	return EnumValue{Enum: e.name, Name: name, Value: code}, true
}

// MustMember is like Member but panics for unknown names.
func (e *Enum) MustMember(name string) EnumValue {
	v, ok := e.Member(name)
	if !ok {
		panic(fmt.Sprintf("transform: enum %s has no member %q", e.name, name))
	}
	return v
}

// Lookup returns the member for a code.
func (e *Enum) Lookup(code int64) (EnumValue, bool) {
	name, ok := e.byValue[code]
	if !ok {
		return EnumValue{}, false
	}
	return EnumValue{Enum: e.name, Name: name, Value: code}, true
}

// Accepted lists the member names and codes.
func (e *Enum) Accepted() string {
	parts := make([]string, len(e.members))
	for i, m := range e.members {
		parts[i] = m.Name + "=" + strconv.FormatInt(m.Value, 10)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// code resolves v, which may be an EnumValue, a member name or an integer.
func (e *Enum) code(v any) (int64, error) {
	switch x := v.(type) {
	case EnumValue:
		if x.Enum != e.name && x.Enum != "" {
			return 0, errors.TypeMismatch(errors.PhasePack, v, e.name)
		}
		if _, ok := e.byValue[x.Value]; !ok && e.strict {
			return 0, errors.OutOfRange(errors.PhasePack, v, e.name, e.Accepted())
		}
		return x.Value, nil
	case string:
		code, ok := e.byName[x]
		if !ok {
			return 0, errors.OutOfRange(errors.PhasePack, v, e.name, e.Accepted())
		}
		return code, nil
	}

	code, ok := coerce.ToInt64(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhasePack, v, e.name+" member, name or code")
	}
	if _, known := e.byValue[code]; !known && e.strict {
		return 0, errors.OutOfRange(errors.PhasePack, v, e.name, e.Accepted())
	}
	return code, nil
}

func (e *Enum) raw(v any) (uint64, error) {
	if u, ok := v.(uint64); ok && u > math.MaxInt64 && !e.strict {
		return e.base.Raw(u)
	}
	code, err := e.code(v)
	if err != nil {
		return 0, err
	}
	return e.base.Raw(code)
}

// value converts a raw pattern to an EnumValue or, for unknown codes, the
// base integer.
func (e *Enum) value(raw uint64) (any, bool) {
	code := e.base.Int64(raw)
	if m, ok := e.Lookup(code); ok {
		return m, true
	}
	return e.base.Natural(raw), false
}

func (e *Enum) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	raw, err := e.raw(v)
	if err != nil {
		if rec != nil {
			rec.Format = e.name
			rec.Value = dump.Repr(v)
		}
		return err
	}
	b := e.base.Encode(raw)
	w.Write(b)
	if rec != nil {
		nv, _ := e.value(raw)
		rec.Fill(e.name, nv, b)
	}
	return nil
}

func (e *Enum) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	b, err := r.Take(e.base.Size(), rec, e.name)
	if err != nil {
		return nil, err
	}
	raw := e.base.Decode(b)
	v, known := e.value(raw)
	if rec != nil {
		rec.Fill(e.name, v, b)
	}
	if !known && e.strict {
		return nil, errors.InvalidValue(v, e.name, e.Accepted())
	}
	return v, nil
}

func (e *Enum) Normalize(v any) (any, error) {
	raw, err := e.raw(v)
	if err != nil {
		return nil, err
	}
	nv, _ := e.value(raw)
	return nv, nil
}
