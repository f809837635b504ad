package witschema_test

import (
	"bytes"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
	"github.com/wippyai/plum/witschema"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func compile(t *testing.T, typ wit.Type) plum.Transform {
	t.Helper()
	tr, err := witschema.NewCompiler().Compile(typ)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	return tr
}

func roundTrip(t *testing.T, tr plum.Transform, v any, want []byte) any {
	t.Helper()
	got, err := plum.Pack(tr, v)
	if err != nil {
		t.Fatalf("Pack(%v) error: %v", v, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack(%v) = % x, want % x", v, got, want)
	}
	out, err := plum.Unpack(tr, got)
	if err != nil {
		t.Fatalf("Unpack(% x) error: %v", got, err)
	}
	return out
}

func TestCompile_Primitives(t *testing.T) {
	tests := []struct {
		witType wit.Type
		name    string
		value   any
		want    []byte
	}{
		{wit.Bool{}, "bool", true, []byte{0x01}},
		{wit.U8{}, "u8", uint8(0xfe), []byte{0xfe}},
		{wit.S8{}, "s8", int8(-2), []byte{0xfe}},
		{wit.U16{}, "u16", uint16(0x0102), []byte{0x02, 0x01}},
		{wit.S16{}, "s16", int16(-2), []byte{0xfe, 0xff}},
		{wit.U32{}, "u32", uint32(0x01020304), []byte{0x04, 0x03, 0x02, 0x01}},
		{wit.S32{}, "s32", int32(-1), []byte{0xff, 0xff, 0xff, 0xff}},
		{wit.U64{}, "u64", uint64(1), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{wit.S64{}, "s64", int64(-1), bytes.Repeat([]byte{0xff}, 8)},
		{wit.F32{}, "f32", float32(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{wit.F64{}, "f64", float64(1), []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{wit.Char{}, "char", uint32('A'), []byte{0x41, 0, 0, 0}},
		{wit.String{}, "string", "hi", []byte{0x02, 0, 0, 0, 'h', 'i'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := compile(t, tt.witType)
			got := roundTrip(t, tr, tt.value, tt.want)
			if diff := cmp.Diff(tt.value, got); diff != "" {
				t.Errorf("Unpack() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompile_Record(t *testing.T) {
	point := named("point", &wit.Record{
		Fields: []wit.Field{
			{Name: "x", Type: wit.S32{}},
			{Name: "label", Type: wit.String{}},
		},
	})

	tr := compile(t, point)
	st, ok := tr.(*structure.Type)
	if !ok {
		t.Fatalf("Compile(record) = %T, want *structure.Type", tr)
	}
	if st.Name() != "point" {
		t.Errorf("Name() = %q, want point", st.Name())
	}
	if diff := cmp.Diff([]string{"x", "label"}, st.MemberNames()); diff != "" {
		t.Errorf("MemberNames() mismatch (-want +got):\n%s", diff)
	}

	out := roundTrip(t, tr, structure.Fields{"x": -1, "label": "hi"},
		[]byte{0xff, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, 'h', 'i'})
	s := out.(*structure.Struct)
	if got := s.MustGet("x"); got != int32(-1) {
		t.Errorf("x = %v, want -1", got)
	}
	if got := s.MustGet("label"); got != "hi" {
		t.Errorf("label = %v, want hi", got)
	}
}

func TestCompile_ListAndTuple(t *testing.T) {
	list := &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	out := roundTrip(t, compile(t, list), []any{1, 2}, []byte{0x02, 0, 0, 0, 0x01, 0x02})
	if diff := cmp.Diff([]any{uint8(1), uint8(2)}, out); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	tuple := &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U16{}, wit.Bool{}}}}
	out = roundTrip(t, compile(t, tuple), []any{uint16(3), false}, []byte{0x03, 0x00, 0x00})
	if diff := cmp.Diff([]any{uint16(3), false}, out); diff != "" {
		t.Errorf("tuple mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_Enum(t *testing.T) {
	color := named("color", &wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}})
	tr := compile(t, color)
	out := roundTrip(t, tr, "green", []byte{0x01})
	if ev, ok := out.(transform.EnumValue); !ok || ev.Name != "green" {
		t.Errorf("Unpack() = %v, want color.green", out)
	}

	cases := make([]wit.EnumCase, 300)
	for i := range cases {
		cases[i] = wit.EnumCase{Name: "c" + strconv.Itoa(i)}
	}
	wide := compile(t, &wit.TypeDef{Kind: &wit.Enum{Cases: cases}})
	if wide.Size() != 2 {
		t.Errorf("Size() of 300 case enum = %d, want 2", wide.Size())
	}
}

func TestCompile_Flags(t *testing.T) {
	perms := named("perms", &wit.Flags{Flags: []wit.Flag{{Name: "read"}, {Name: "write"}, {Name: "exec"}}})
	tr := compile(t, perms)
	bt, ok := tr.(*bitfields.Type)
	if !ok {
		t.Fatalf("Compile(flags) = %T, want *bitfields.Type", tr)
	}
	if bt.Size() != 1 {
		t.Errorf("Size() = %d, want 1", bt.Size())
	}

	out := roundTrip(t, tr, map[string]any{"read": true, "exec": true}, []byte{0x05})
	b := out.(*bitfields.Bits)
	if b.MustGet("write") != false || b.MustGet("exec") != true {
		t.Errorf("Unpack() = %v, want read and exec", b)
	}
}

func TestCompile_OptionAndHandles(t *testing.T) {
	opt := &wit.TypeDef{Kind: &wit.Option{Type: wit.U32{}}}
	tr := compile(t, opt)
	if out := roundTrip(t, tr, nil, []byte{0x00}); out != nil {
		t.Errorf("Unpack(none) = %v, want nil", out)
	}
	if out := roundTrip(t, tr, 5, []byte{0x01, 0x05, 0, 0, 0}); out != uint32(5) {
		t.Errorf("Unpack(some) = %v, want 5", out)
	}

	for _, kind := range []wit.TypeDefKind{&wit.Own{}, &wit.Borrow{}} {
		h := compile(t, &wit.TypeDef{Kind: kind})
		if h != witschema.Handle {
			t.Errorf("Compile(%T) = %s, want handle", kind, h.Name())
		}
	}
}

func TestCompile_Variant(t *testing.T) {
	shape := named("shape", &wit.Variant{Cases: []wit.Case{
		{Name: "none"},
		{Name: "circle", Type: wit.U32{}},
		{Name: "label", Type: wit.String{}},
	}})
	tr := compile(t, shape)

	tests := []struct {
		name  string
		value structure.Fields
		want  []byte
		check any
	}{
		{"none", structure.Fields{"case": "none"}, []byte{0x00}, nil},
		{"circle", structure.Fields{"case": "circle", "value": 7}, []byte{0x01, 0x07, 0, 0, 0}, uint32(7)},
		{"label", structure.Fields{"case": 2, "value": "ab"}, []byte{0x02, 0x02, 0, 0, 0, 'a', 'b'}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := roundTrip(t, tr, tt.value, tt.want)
			s := out.(*structure.Struct)
			if ev := s.MustGet(witschema.CaseMember).(transform.EnumValue); ev.Name != tt.name {
				t.Errorf("case = %v, want %s", ev, tt.name)
			}
			if got := s.MustGet(witschema.ValueMember); got != tt.check {
				t.Errorf("value = %v, want %v", got, tt.check)
			}
		})
	}

	_, err := plum.Unpack(tr, []byte{0x05})
	if !errors.IsUnpack(err) {
		t.Errorf("Unpack(bad case) error = %v, want unpack error", err)
	}
}

func TestCompile_Result(t *testing.T) {
	res := &wit.TypeDef{Kind: &wit.Result{OK: wit.U8{}, Err: wit.String{}}}
	tr := compile(t, res)
	roundTrip(t, tr, structure.Fields{"case": "ok", "value": 9}, []byte{0x00, 0x09})
	roundTrip(t, tr, structure.Fields{"case": "err", "value": "x"}, []byte{0x01, 0x01, 0, 0, 0, 'x'})

	empty := &wit.TypeDef{Kind: &wit.Result{}}
	roundTrip(t, compile(t, empty), structure.Fields{"case": "err"}, []byte{0x01})
}

func TestCompile_Alias(t *testing.T) {
	inner := named("size", &wit.List{Type: wit.U8{}})
	alias := named("bytes", inner)
	c := witschema.NewCompiler()
	a := c.MustCompile(alias)
	b := c.MustCompile(inner)
	if a != b {
		t.Error("alias compiled to a different transform than its target")
	}
}

func TestCompile_Cache(t *testing.T) {
	rec := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{{Name: "a", Type: wit.U8{}}}}}
	c := witschema.NewCompiler()

	var wg sync.WaitGroup
	results := make([]plum.Transform, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.MustCompile(rec)
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		if r != results[0] {
			t.Errorf("result %d is a different transform", i)
		}
	}
}

func TestCompile_Unsupported(t *testing.T) {
	rec := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "bad", Type: &wit.TypeDef{Kind: &wit.Flags{}}},
	}}}
	_, err := witschema.NewCompiler().Compile(rec)
	if !errors.HasKind(err, errors.KindUnsupported) {
		t.Fatalf("Compile() error = %v, want unsupported", err)
	}
	e, _ := errors.As(err)
	if e.PathString() != "bad" {
		t.Errorf("PathString() = %q, want bad", e.PathString())
	}
}
