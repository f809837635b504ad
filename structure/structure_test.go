package structure_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
)

func headerType(t *testing.T) *structure.Type {
	t.Helper()
	typ, err := structure.Declare("Header").
		Member("tag", transform.Uint8).
		Member("len", transform.Uint16BE).
		Sized("payload", transform.GreedyBytes(), "len").
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return typ
}

func mustPack(t *testing.T, s *structure.Struct) []byte {
	t.Helper()
	b, err := s.Pack()
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	return b
}

func TestSized_ComputedLength(t *testing.T) {
	typ := headerType(t)

	s := typ.MustNew(structure.Fields{"tag": 1, "payload": []byte("hi")})
	got := mustPack(t, s)
	want := []byte{0x01, 0x00, 0x02, 'h', 'i'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}
	if s.IsSet("len") {
		t.Error("Pack() assigned the controller of the packed instance")
	}

	u, err := typ.UnpackStruct(want)
	if err != nil {
		t.Fatalf("Unpack() error: %v", err)
	}
	wantVals := structure.Fields{"tag": uint8(1), "len": uint16(2), "payload": []byte("hi")}
	if diff := cmp.Diff(wantVals, u.AsMap()); diff != "" {
		t.Errorf("Unpack() mismatch (-want +got):\n%s", diff)
	}
	if !u.Equal(s) {
		t.Errorf("unpacked %v not equal to packed %v", u, s)
	}
	if u.String() != "Header(tag=1, len=2, payload=b'hi')" {
		t.Errorf("String() = %q", u.String())
	}
}

func TestController_ExplicitValueKept(t *testing.T) {
	typ := headerType(t)

	s := typ.MustNew(structure.Fields{"tag": 1, "len": 5, "payload": []byte("hi")})
	got := mustPack(t, s)
	if !bytes.Equal(got, []byte{0x01, 0x00, 0x05, 'h', 'i'}) {
		t.Fatalf("Pack() = % x, want explicit len 5", got)
	}

	_, err := typ.UnpackStruct(got)
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindInsufficientBytes {
		t.Fatalf("Unpack() error = %v, want insufficient_bytes", err)
	}
	if e.PathString() != "payload" || e.Offset != 3 {
		t.Errorf("error at %q offset %d, want payload offset 3", e.PathString(), e.Offset)
	}
	if e.Dump == nil || !bytes.Equal(e.Dump.Bytes(), got) {
		t.Errorf("error dump does not cover the present bytes")
	}
}

func TestController_SetInvalidates(t *testing.T) {
	typ := headerType(t)

	s := typ.MustNew(structure.Fields{"tag": 1, "len": 5, "payload": []byte("hi")})
	if err := s.Set("payload", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if s.IsSet("len") {
		t.Fatal("Set(payload) kept the stale controller")
	}
	got := mustPack(t, s)
	if !bytes.Equal(got, []byte{0x01, 0x00, 0x03, 'a', 'b', 'c'}) {
		t.Errorf("Pack() = % x", got)
	}
}

func TestController_OnSet(t *testing.T) {
	var seen any
	typ := structure.Declare("Keep").
		Member("len", transform.Uint8).
		Sized("data", transform.GreedyBytes(), "len", structure.OnSet(func(s *structure.Struct, v any) error {
			seen = v
			return nil
		})).
		MustBuild()

	s := typ.MustNew(structure.Fields{"len": 1, "data": []byte("a")})
	if err := s.Set("data", []byte("xyz")); err != nil {
		t.Fatal(err)
	}
	if !s.IsSet("len") {
		t.Error("OnSet member invalidated its controller")
	}
	if !bytes.Equal(seen.([]byte), []byte("xyz")) {
		t.Errorf("OnSet saw %v", seen)
	}
	if got := mustPack(t, s); !bytes.Equal(got, []byte{0x01, 'x', 'y', 'z'}) {
		t.Errorf("Pack() = % x", got)
	}
}

func TestSized_RatioAndOffset(t *testing.T) {
	typ := structure.Declare("Words").
		Member("n", transform.Uint8).
		Sized("words", transform.GreedyArray(transform.Uint16BE), "n", structure.Ratio(2), structure.SizeOffset(1)).
		MustBuild()

	s := typ.MustNew(structure.Fields{"words": []int{1, 2, 3}})
	got := mustPack(t, s)
	want := []byte{0x04, 0, 1, 0, 2, 0, 3}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}

	u, err := typ.UnpackStruct(want)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{uint16(1), uint16(2), uint16(3)}, u.MustGet("words")); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
}

func TestSized_ExcessScopedToMember(t *testing.T) {
	typ := structure.Declare("Framed").
		Member("len", transform.Uint8).
		Sized("body", transform.Uint16BE, "len").
		Member("tail", transform.Uint8).
		MustBuild()

	if typ.Size() != plum.Variable {
		t.Errorf("Size() = %d, want variable", typ.Size())
	}

	in := []byte{0x03, 0x00, 0x01, 0xff, 0x07}
	_, err := typ.UnpackStruct(in)
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindExcessBytes {
		t.Fatalf("Unpack() error = %v, want excess_bytes", err)
	}
	if e.PathString() != "body" || e.Offset != 3 {
		t.Errorf("error at %q offset %d, want body offset 3", e.PathString(), e.Offset)
	}
}

func TestUnpack_Insufficient(t *testing.T) {
	typ := headerType(t)
	_, err := typ.UnpackStruct([]byte{0x01, 0x00})
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindInsufficientBytes {
		t.Fatalf("got %v", err)
	}
	if e.PathString() != "len" || e.Offset != 1 {
		t.Errorf("error at %q offset %d, want len offset 1", e.PathString(), e.Offset)
	}
	if !errors.Retryable(err) {
		t.Error("insufficient bytes should be retryable")
	}
}

func TestFixedType_SizeAndExcess(t *testing.T) {
	typ := structure.Declare("Point").
		Member("x", transform.Sint16LE).
		Member("y", transform.Sint16LE).
		MustBuild()

	if typ.Size() != 4 {
		t.Fatalf("Size() = %d", typ.Size())
	}
	s, err := typ.Make(-1, 2)
	if err != nil {
		t.Fatal(err)
	}
	b := mustPack(t, s)
	if len(b) != typ.Size() {
		t.Errorf("packed %d bytes, size %d", len(b), typ.Size())
	}

	_, err = typ.UnpackStruct(append(b, 0))
	if !errors.HasKind(err, errors.KindExcessBytes) {
		t.Errorf("one byte longer: got %v", err)
	}
	_, err = typ.UnpackStruct(b[:3])
	if !errors.HasKind(err, errors.KindInsufficientBytes) {
		t.Errorf("one byte shorter: got %v", err)
	}
}

func TestBitFieldGroup(t *testing.T) {
	typ := structure.Declare("IPv4Head").
		BitField("version", 4).
		BitField("ihl", 4).
		Member("tos", transform.Uint8).
		MustBuild()

	if typ.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", typ.Size())
	}

	s := typ.MustNew(structure.Fields{"version": 4, "ihl": 5, "tos": 0})
	got := mustPack(t, s)
	if !bytes.Equal(got, []byte{0x45, 0x00}) {
		t.Fatalf("Pack() = % x, want 45 00", got)
	}

	u, d, err := plum.UnpackDump(typ, got)
	if err != nil {
		t.Fatal(err)
	}
	want := structure.Fields{"version": uint8(4), "ihl": uint8(5), "tos": uint8(0)}
	if diff := cmp.Diff(want, u.(*structure.Struct).AsMap()); diff != "" {
		t.Errorf("Unpack() mismatch (-want +got):\n%s", diff)
	}

	rows := d.Rows()
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if r := rows[2]; r.Path != "version" || r.Bits == nil || r.Bits.LSB != 4 || r.Offset != 0 {
		t.Errorf("version row = %+v", r)
	}
	if r := rows[4]; r.Path != "tos" || r.Offset != 1 {
		t.Errorf("tos row = %+v", r)
	}
}

func TestBitFieldGroup_LeastToMostAndKinds(t *testing.T) {
	mode := transform.NewEnum("Mode", transform.Uint8,
		transform.EnumMember{Name: "off", Value: 0},
		transform.EnumMember{Name: "on", Value: 1},
	)
	typ := structure.Declare("Ctl").
		ByteOrder(plum.LittleEndian).
		FieldOrder(bitfields.LeastToMost).
		BitField("a", 3, structure.LSB(0)).
		BitField("b", 5, structure.LSB(3)).
		BitField("mode", 1, structure.As(bitfields.EnumOf(mode)), structure.NewGroup()).
		BitField("delta", 7, structure.As(bitfields.Signed)).
		MustBuild()

	s := typ.MustNew(structure.Fields{"a": 3, "b": 10, "mode": "on", "delta": -2})
	got := mustPack(t, s)
	want := []byte{0x53, 0xfd}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}

	u, err := typ.UnpackStruct(want)
	if err != nil {
		t.Fatal(err)
	}
	if u.MustGet("mode") != mode.MustMember("on") || u.MustGet("delta") != int8(-2) {
		t.Errorf("Unpack() = %v", u)
	}
}

func TestBitField_PackErrorPath(t *testing.T) {
	typ := structure.Declare("Pair").
		Member("id", transform.Uint8).
		BitField("hi", 4).
		BitField("lo", 4).
		MustBuild()

	_, err := typ.MustNew(structure.Fields{"id": 1, "hi": 1, "lo": 16}).Pack()
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindOutOfRange {
		t.Fatalf("got %v", err)
	}
	if e.PathString() != "lo" || e.Offset != 1 {
		t.Errorf("error at %q offset %d", e.PathString(), e.Offset)
	}
	if !strings.Contains(e.Detail, "0..15") {
		t.Errorf("detail %q does not name the permitted range", e.Detail)
	}
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*structure.Type, error)
		kind  errors.Kind
	}{
		{
			name: "greedy not last",
			build: structure.Declare("T").
				Member("data", transform.GreedyBytes()).
				Member("tail", transform.Uint8).
				Build,
			kind: errors.KindAmbiguousLayout,
		},
		{
			name: "controlled before controller",
			build: structure.Declare("T").
				Sized("data", transform.GreedyBytes(), "len").
				Member("len", transform.Uint8).
				Build,
			kind: errors.KindAmbiguousLayout,
		},
		{
			name: "variable size controller",
			build: structure.Declare("T").
				Member("len", transform.ZeroTermUTF8).
				Sized("data", transform.GreedyBytes(), "len").
				Build,
			kind: errors.KindAmbiguousLayout,
		},
		{
			name: "non-integer controller",
			build: structure.Declare("T").
				Member("len", transform.FixedBytes(2)).
				Sized("data", transform.GreedyBytes(), "len").
				Build,
			kind: errors.KindInvalidValue,
		},
		{
			name: "computed without controlled member",
			build: structure.Declare("T").
				Member("n", transform.Uint8, structure.Compute()).
				Member("x", transform.Uint8).
				Build,
			kind: errors.KindUnassociatedComputedMember,
		},
		{
			name: "duplicate member",
			build: structure.Declare("T").
				Member("a", transform.Uint8).
				Member("a", transform.Uint8).
				Build,
			kind: errors.KindDuplicateMember,
		},
		{
			name: "unknown controller",
			build: structure.Declare("T").
				Sized("data", transform.GreedyBytes(), "nope").
				Build,
			kind: errors.KindUnknownMember,
		},
		{
			name: "overlapping bit-fields",
			build: structure.Declare("T").
				BitField("a", 4, structure.LSB(0)).
				BitField("b", 4, structure.LSB(2)).
				Build,
			kind: errors.KindOverlappingField,
		},
		{
			name: "group too small",
			build: structure.Declare("T").
				BitField("a", 12, structure.NBytes(1)).
				Build,
			kind: errors.KindTypeTooSmall,
		},
		{
			name: "bit option on plain member",
			build: structure.Declare("T").
				Member("a", transform.Uint8, structure.LSB(1)).
				Build,
			kind: errors.KindInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if err == nil {
				t.Fatal("expected declaration error")
			}
			if !errors.IsDeclaration(err) || errors.KindOf(err) != tt.kind {
				t.Errorf("got %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestSizedGreedyNotLastIsAllowed(t *testing.T) {
	_, err := structure.Declare("T").
		Member("len", transform.Uint8).
		Sized("data", transform.GreedyBytes(), "len").
		Member("crc", transform.Uint8).
		Build()
	if err != nil {
		t.Errorf("size-controlled greedy member rejected: %v", err)
	}
}

func TestExtends(t *testing.T) {
	base := structure.Declare("Base").
		Member("a", transform.Uint8).
		Member("b", transform.Uint32BE).
		MustBuild()
	derived := structure.Declare("Derived").
		Extends(base).
		Member("b", transform.Uint8).
		Member("c", transform.Uint8).
		MustBuild()

	if diff := cmp.Diff([]string{"a", "b", "c"}, derived.MemberNames()); diff != "" {
		t.Errorf("members (-want +got):\n%s", diff)
	}
	if base.Size() != 5 || derived.Size() != 3 {
		t.Errorf("sizes = %d, %d", base.Size(), derived.Size())
	}
	if derived.Base() != base {
		t.Error("Base() mismatch")
	}

	s, err := derived.Make(1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := mustPack(t, s); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Pack() = % x", got)
	}
}

func TestDimmed(t *testing.T) {
	typ := structure.Declare("Grid").
		Member("rows", transform.Uint8).
		Member("cols", transform.Uint8).
		Dimmed("grid", transform.Uint8, []string{"rows", "cols"}).
		MustBuild()

	s := typ.MustNew(structure.Fields{"grid": [][]int{{1, 2, 3}, {4, 5, 6}}})
	got := mustPack(t, s)
	want := []byte{2, 3, 1, 2, 3, 4, 5, 6}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}

	u, err := typ.UnpackStruct(want)
	if err != nil {
		t.Fatal(err)
	}
	wantGrid := []any{
		[]any{uint8(1), uint8(2), uint8(3)},
		[]any{uint8(4), uint8(5), uint8(6)},
	}
	if diff := cmp.Diff(wantGrid, u.MustGet("grid")); diff != "" {
		t.Errorf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestDimmed_LengthMismatch(t *testing.T) {
	typ := structure.Declare("E").
		Member("n", transform.Uint8).
		Dimmed("arr", transform.Uint8, []string{"n"}).
		MustBuild()

	_, err := typ.MustNew(structure.Fields{"n": 2, "arr": []int{1, 2, 3}}).Pack()
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindLengthMismatch {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "expected length 2, got 3") {
		t.Errorf("error does not name the counts: %v", e.Summary())
	}
	if e.PathString() != "arr" {
		t.Errorf("path = %q", e.PathString())
	}

	fixed := structure.Declare("E2").
		Member("arr", transform.FixedArray(transform.Uint8, 2)).
		MustBuild()
	_, err = fixed.MustNew(structure.Fields{"arr": []int{1, 2, 3}}).Pack()
	if !errors.HasKind(err, errors.KindLengthMismatch) {
		t.Errorf("fixed array: got %v", err)
	}
}

func TestDimmed_HostileCounts(t *testing.T) {
	typ := structure.Declare("Matrix").
		Member("r", transform.Uint32BE).
		Member("c", transform.Uint32BE).
		Dimmed("m", transform.Uint8, []string{"r", "c"}).
		MustBuild()

	tests := []struct {
		name string
		in   []byte
		kind errors.Kind
	}{
		{"rows beyond input", []byte{0x7f, 0xff, 0xff, 0xff, 0, 0, 0, 1}, errors.KindInsufficientBytes},
		{"product overflows", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, errors.KindInsufficientBytes},
		{"cells beyond input", []byte{0, 0, 0, 2, 0, 0, 0, 2, 1, 2, 3}, errors.KindInsufficientBytes},
		{"empty rows beyond limit", []byte{0x7f, 0xff, 0xff, 0xff, 0, 0, 0, 0}, errors.KindOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := typ.UnpackStruct(tt.in)
			e, ok := errors.As(err)
			if !ok || e.Kind != tt.kind {
				t.Fatalf("Unpack() error = %v, want %s", err, tt.kind)
			}
			if e.PathString() != "m" {
				t.Errorf("error at %q, want m", e.PathString())
			}
		})
	}

	u, err := typ.UnpackStruct([]byte{0, 0, 0, 3, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Unpack() of empty rows: %v", err)
	}
	if diff := cmp.Diff([]any{[]any{}, []any{}, []any{}}, u.MustGet("m")); diff != "" {
		t.Errorf("m mismatch (-want +got):\n%s", diff)
	}
}

func TestDump_BytesMatchEncoding(t *testing.T) {
	point := structure.Declare("Point").
		Member("x", transform.Sint16LE).
		Member("y", transform.Sint16LE).
		MustBuild()
	mixed := structure.Declare("Mixed").
		BitField("ver", 4).
		BitField("flags", 4).
		Member("size", transform.Uint8, structure.Compute()).
		Member("n", transform.Uint8).
		Dimmed("vals", transform.Uint8, []string{"n"}).
		Sized("name", transform.GreedyBytes(), "size").
		Member("pt", point).
		MustBuild()

	tests := []struct {
		name   string
		typ    *structure.Type
		fields structure.Fields
		want   []byte
	}{
		{
			name:   "sized payload",
			typ:    headerType(t),
			fields: structure.Fields{"tag": 1, "payload": []byte("hi")},
			want:   []byte{0x01, 0x00, 0x02, 'h', 'i'},
		},
		{
			name: "mixed members",
			typ:  mixed,
			fields: structure.Fields{
				"ver": 4, "flags": 5,
				"vals": []int{1, 2, 3},
				"name": []byte("hey"),
				"pt":   structure.Fields{"x": 1, "y": -1},
			},
			want: []byte{0x45, 0x03, 0x03, 1, 2, 3, 'h', 'e', 'y', 0x01, 0x00, 0xff, 0xff},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, d, err := plum.PackDump(tt.typ, tt.typ.MustNew(tt.fields))
			if err != nil {
				t.Fatalf("PackDump() error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("PackDump() = % x, want % x", got, tt.want)
			}
			if !bytes.Equal(d.Bytes(), got) {
				t.Errorf("pack dump bytes = % x, want % x", d.Bytes(), got)
			}

			v, d, err := plum.UnpackDump(tt.typ, got)
			if err != nil {
				t.Fatalf("UnpackDump() error: %v", err)
			}
			if !bytes.Equal(d.Bytes(), got) {
				t.Errorf("unpack dump bytes = % x, want % x", d.Bytes(), got)
			}
			if !v.(*structure.Struct).Equal(tt.typ.MustNew(tt.fields)) {
				t.Errorf("UnpackDump() = %v, want %v", v, tt.fields)
			}

			for i := range len(got) {
				if _, err := tt.typ.UnpackStruct(got[:i]); err == nil {
					t.Errorf("Unpack() of the %d-byte prefix succeeded", i)
				}
			}
		})
	}
}

func TestFormatFunc(t *testing.T) {
	body := func(s *structure.Struct) (plum.Transform, error) {
		switch s.MustGet("kind") {
		case uint8(1):
			return transform.Uint16BE, nil
		case uint8(2):
			return transform.UTF8, nil
		}
		return nil, fmt.Errorf("unknown kind %v", s.MustGet("kind"))
	}
	typ := structure.Declare("Msg").
		Member("kind", transform.Uint8).
		Member("body", nil, structure.FormatFunc(body)).
		MustBuild()

	tests := []struct {
		in   structure.Fields
		want []byte
		body any
	}{
		{structure.Fields{"kind": 1, "body": 0x0102}, []byte{1, 1, 2}, uint16(0x0102)},
		{structure.Fields{"kind": 2, "body": "hey"}, []byte{2, 'h', 'e', 'y'}, "hey"},
	}
	for _, tt := range tests {
		got := mustPack(t, typ.MustNew(tt.in))
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Pack(%v) = % x, want % x", tt.in, got, tt.want)
			continue
		}
		u, err := typ.UnpackStruct(got)
		if err != nil {
			t.Fatal(err)
		}
		if u.MustGet("body") != tt.body {
			t.Errorf("body = %#v, want %#v", u.MustGet("body"), tt.body)
		}
	}

	_, err := typ.UnpackStruct([]byte{3, 0})
	e, ok := errors.As(err)
	if !ok || e.Phase != errors.PhaseUnpack || e.PathString() != "body" {
		t.Errorf("unknown variant: got %v", err)
	}
}

func TestEquality_ComputedNormalized(t *testing.T) {
	typ := structure.Declare("Packet").
		Member("len", transform.Uint8, structure.Compute()).
		Sized("data", transform.GreedyBytes(), "len").
		Member("note", transform.Uint8, structure.Ignore(), structure.Default(0)).
		MustBuild()

	a := typ.MustNew(structure.Fields{"data": []byte("xyz")})
	b, err := typ.UnpackStruct([]byte{3, 'x', 'y', 'z', 9})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) || !plum.Equal(b, a) {
		t.Errorf("%v != %v", a, b)
	}
	if a.Equal(typ.MustNew(structure.Fields{"data": []byte("xyy")})) {
		t.Error("different data compared equal")
	}
	if !b.Equal(structure.Fields{"data": []byte("xyz")}) {
		t.Error("field map comparison failed")
	}
}

func TestNestedErrorPath(t *testing.T) {
	header := headerType(t)
	outer := structure.Declare("Outer").
		Member("hdr", header).
		Member("crc", transform.Uint8).
		MustBuild()

	_, err := plum.Pack(outer, map[string]any{
		"hdr": map[string]any{"tag": 300, "payload": []byte("a")},
		"crc": 1,
	})
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindOutOfRange {
		t.Fatalf("got %v", err)
	}
	if e.PathString() != "hdr.tag" || e.Offset != 0 {
		t.Errorf("error at %q offset %d, want hdr.tag offset 0", e.PathString(), e.Offset)
	}
	if !strings.Contains(e.Detail, "0..255") {
		t.Errorf("detail %q does not name the range", e.Detail)
	}

	b, err := plum.Pack(outer, map[string]any{
		"hdr": map[string]any{"tag": 7, "payload": []byte("a")},
		"crc": 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{7, 0, 1, 'a', 1}) {
		t.Errorf("Pack() = % x", b)
	}
}

func TestMissingValue(t *testing.T) {
	typ := headerType(t)
	_, err := typ.MustNew(structure.Fields{"payload": []byte("a")}).Pack()
	e, ok := errors.As(err)
	if !ok || e.Kind != errors.KindTypeMismatch || e.PathString() != "tag" {
		t.Errorf("got %v", err)
	}
}

func TestDefaultFuncAndReadOnly(t *testing.T) {
	typ := structure.Declare("Summed").
		Member("ver", transform.Uint8, structure.ReadOnly(), structure.Default(1)).
		Member("data", transform.FixedBytes(3)).
		Member("sum", transform.Uint8, structure.DefaultFunc(func(s *structure.Struct) (any, error) {
			total := 0
			for _, c := range s.MustGet("data").([]byte) {
				total += int(c)
			}
			return total & 0xff, nil
		})).
		MustBuild()

	s := typ.MustNew(structure.Fields{"data": []byte{1, 2, 3}})
	if got := mustPack(t, s); !bytes.Equal(got, []byte{1, 1, 2, 3, 6}) {
		t.Errorf("Pack() = % x", got)
	}
	if s.IsSet("sum") {
		t.Error("Pack() assigned the DefaultFunc member")
	}

	if err := s.Set("ver", 2); !errors.HasKind(err, errors.KindReadOnly) {
		t.Errorf("Set(read-only) = %v", err)
	}
	s2, err := typ.New(structure.Fields{"ver": 3, "data": []byte{0, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if s2.MustGet("ver") != uint8(3) {
		t.Errorf("ver = %v", s2.MustGet("ver"))
	}
}

func TestAccess(t *testing.T) {
	typ := headerType(t)

	if _, err := typ.New(structure.Fields{"nope": 1}); !errors.HasKind(err, errors.KindUnknownMember) {
		t.Errorf("New(unknown) = %v", err)
	}
	if _, err := typ.Make(1, 2, 3, 4); !errors.HasKind(err, errors.KindTypeMismatch) {
		t.Errorf("Make(too many) = %v", err)
	}

	s, err := typ.Make(1, nil, []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.At(0); v != uint8(1) {
		t.Errorf("At(0) = %v", v)
	}
	if _, err := s.At(3); !errors.HasKind(err, errors.KindOutOfRange) {
		t.Errorf("At(3) = %v", err)
	}
	if err := s.SetAt(0, 9); err != nil {
		t.Fatal(err)
	}
	if got := mustPack(t, s); !bytes.Equal(got, []byte{9, 0, 2, 'h', 'i'}) {
		t.Errorf("Pack() = % x", got)
	}

	c := s.Clone()
	_ = c.Set("tag", 1)
	if s.MustGet("tag") != uint8(9) {
		t.Error("Clone shares values")
	}
	if len(s.Values()) != 3 {
		t.Errorf("Values() = %v", s.Values())
	}

	d, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d.Bytes(), []byte{9, 0, 2, 'h', 'i'}) {
		t.Errorf("dump bytes = % x", d.Bytes())
	}
	rows := d.Rows()
	if r := rows[2]; r.Path != "len" || r.Value != "2" || r.Offset != 1 {
		t.Errorf("len row = %+v", r)
	}
}
