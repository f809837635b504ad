package witschema

import (
	"strconv"
	"sync"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
)

// Variant and result members.
const (
	CaseMember  = "case"
	ValueMember = "value"
)

var (
	// Handle is the transform of own and borrow resource handles.
	Handle = transform.Uint32LE.Named("handle")
	// String is a u32 length-prefixed UTF-8 string.
	String = transform.NewSized(transform.UTF8, transform.Uint32LE, 1, 0)
)

// Compiler derives transforms from WIT types and caches them per type
// definition. It is safe for concurrent use.
type Compiler struct {
	cache sync.Map // *wit.TypeDef -> plum.Transform
}

// NewCompiler creates a compiler with an empty cache.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile returns the transform for t.
func (c *Compiler) Compile(t wit.Type) (plum.Transform, error) {
	return c.compile(t, nil)
}

// MustCompile is like Compile but panics on error.
func (c *Compiler) MustCompile(t wit.Type) plum.Transform {
	tr, err := c.Compile(t)
	if err != nil {
		panic(err)
	}
	return tr
}

func (c *Compiler) compile(t wit.Type, path []string) (plum.Transform, error) {
	switch t := t.(type) {
	case wit.Bool:
		return transform.Bool, nil
	case wit.U8:
		return transform.Uint8, nil
	case wit.U16:
		return transform.Uint16LE, nil
	case wit.U32:
		return transform.Uint32LE, nil
	case wit.U64:
		return transform.Uint64LE, nil
	case wit.S8:
		return transform.Sint8, nil
	case wit.S16:
		return transform.Sint16LE, nil
	case wit.S32:
		return transform.Sint32LE, nil
	case wit.S64:
		return transform.Sint64LE, nil
	case wit.F32:
		return transform.Float32LE, nil
	case wit.F64:
		return transform.Float64LE, nil
	case wit.Char:
		return transform.Uint32LE, nil
	case wit.String:
		return String, nil
	case *wit.TypeDef:
		if t == nil {
			return nil, unsupported(path, "nil type definition")
		}
		if cached, ok := c.cache.Load(t); ok {
			return cached.(plum.Transform), nil
		}
		tr, err := c.compileTypeDef(t, path)
		if err != nil {
			return nil, err
		}
		actual, _ := c.cache.LoadOrStore(t, tr)
		plum.Logger().Debug("compiled wit type",
			zap.String("type", typeName(t, "")),
			zap.String("transform", tr.Name()),
			zap.Int("size", tr.Size()))
		return actual.(plum.Transform), nil
	default:
		return nil, unsupported(path, "unsupported WIT type: %T", t)
	}
}

func (c *Compiler) compileTypeDef(td *wit.TypeDef, path []string) (plum.Transform, error) {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		return c.compileRecord(td, kind, path)
	case *wit.List:
		elem, err := c.compile(kind.Type, sub(path, "[]"))
		if err != nil {
			return nil, err
		}
		return transform.PrefixedArray(elem, transform.Uint32LE), nil
	case *wit.Tuple:
		return c.compileTuple(td, kind, path)
	case *wit.Enum:
		names := make([]string, len(kind.Cases))
		for i, ec := range kind.Cases {
			names[i] = ec.Name
		}
		return discriminant(typeName(td, "enum"), names), nil
	case *wit.Flags:
		return c.compileFlags(td, kind, path)
	case *wit.Option:
		inner, err := c.compile(kind.Type, sub(path, "some"))
		if err != nil {
			return nil, err
		}
		return transform.NewOptional(inner), nil
	case *wit.Result:
		cases := []variantCase{{name: "ok", typ: kind.OK}, {name: "err", typ: kind.Err}}
		return c.compileCases(typeName(td, "result"), cases, path)
	case *wit.Variant:
		cases := make([]variantCase, len(kind.Cases))
		for i, vc := range kind.Cases {
			cases[i] = variantCase{name: vc.Name, typ: vc.Type}
		}
		return c.compileCases(typeName(td, "variant"), cases, path)
	case *wit.Own, *wit.Borrow:
		return Handle, nil
	case wit.Type:
		// type alias
		return c.compile(kind, path)
	default:
		return nil, unsupported(path, "unsupported WIT type kind: %T", td.Kind)
	}
}

func (c *Compiler) compileRecord(td *wit.TypeDef, r *wit.Record, path []string) (plum.Transform, error) {
	b := structure.Declare(typeName(td, "record")).ByteOrder(plum.LittleEndian)
	for _, f := range r.Fields {
		ft, err := c.compile(f.Type, sub(path, f.Name))
		if err != nil {
			return nil, err
		}
		b.Member(f.Name, ft)
	}
	t, err := b.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDeclare, errors.KindUnsupported, err, "record "+typeName(td, "record"))
	}
	return t, nil
}

func (c *Compiler) compileTuple(td *wit.TypeDef, tup *wit.Tuple, path []string) (plum.Transform, error) {
	ts := make([]plum.Transform, len(tup.Types))
	for i, et := range tup.Types {
		tr, err := c.compile(et, sub(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		ts[i] = tr
	}
	name := ""
	if td.Name != nil {
		name = *td.Name
	}
	return transform.Tuple(name, ts...), nil
}

func (c *Compiler) compileFlags(td *wit.TypeDef, f *wit.Flags, path []string) (plum.Transform, error) {
	n := len(f.Flags)
	if n == 0 || n > 64 {
		return nil, unsupported(path, "flags type needs 1 to 64 flags, got %d", n)
	}
	b := bitfields.Declare(typeName(td, "flags")).
		NBytes(flagBytes(n)).
		ByteOrder(plum.LittleEndian).
		FieldOrder(bitfields.LeastToMost)
	for _, fl := range f.Flags {
		b.Field(fl.Name, 1, bitfields.As(bitfields.Bool))
	}
	t, err := b.Build()
	if err != nil {
		return nil, err
	}
	return t, nil
}

type variantCase struct {
	name string
	typ  wit.Type
}

// compileCases declares a two member structure: the case discriminant and
// a payload whose transform follows the case.
func (c *Compiler) compileCases(name string, cases []variantCase, path []string) (plum.Transform, error) {
	names := make([]string, len(cases))
	payloads := make([]plum.Transform, len(cases))
	for i, vc := range cases {
		names[i] = vc.name
		payloads[i] = transform.None
		if vc.typ == nil {
			continue
		}
		tr, err := c.compile(vc.typ, sub(path, vc.name))
		if err != nil {
			return nil, err
		}
		payloads[i] = tr
	}
	disc := discriminant(name+".case", names)

	payload := func(s *structure.Struct) (plum.Transform, error) {
		v, err := s.Get(CaseMember)
		if err != nil {
			return nil, err
		}
		ev, err := disc.Normalize(v)
		if err != nil {
			return nil, err
		}
		e, ok := ev.(transform.EnumValue)
		if !ok || e.Value < 0 || int(e.Value) >= len(payloads) {
			return nil, errors.InvalidValue(v, disc.Name(), disc.Accepted())
		}
		return payloads[e.Value], nil
	}

	t, err := structure.Declare(name).
		ByteOrder(plum.LittleEndian).
		Member(CaseMember, disc).
		Member(ValueMember, transform.None, structure.Default(nil), structure.FormatFunc(payload)).
		Build()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// discriminant declares an enum over the smallest integer holding every
// case index.
func discriminant(name string, cases []string) *transform.Enum {
	base := transform.Uint8
	switch {
	case len(cases) > 1<<16:
		base = transform.Uint32LE
	case len(cases) > 1<<8:
		base = transform.Uint16LE
	}
	members := make([]transform.EnumMember, len(cases))
	for i, n := range cases {
		members[i] = transform.EnumMember{Name: n, Value: int64(i)}
	}
	return transform.NewEnum(name, base, members...)
}

func flagBytes(n int) int {
	switch {
	case n <= 8:
		return 1
	case n <= 16:
		return 2
	case n <= 32:
		return 4
	default:
		return 8
	}
}

func typeName(td *wit.TypeDef, fallback string) string {
	if td.Name != nil && *td.Name != "" {
		return *td.Name
	}
	return fallback
}

func sub(path []string, seg string) []string {
	return append(path[:len(path):len(path)], seg)
}

func unsupported(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseDeclare, errors.KindUnsupported).
		Path(path...).
		Detail(format, args...).
		Build()
}
