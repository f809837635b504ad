package structure_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
	"github.com/wippyai/plum/view"
)

func TestView_FixedStructure(t *testing.T) {
	typ := structure.Declare("Reg").
		Member("id", transform.Uint16BE).
		BitField("ready", 1, structure.As(bitfields.Bool)).
		BitField("level", 7).
		Member("crc", transform.Uint8).
		MustBuild()

	buf := []byte{0x00, 0x07, 0x85, 0xaa}
	v, err := view.New(typ, buf, 0)
	if err != nil {
		t.Fatal(err)
	}

	id, err := v.Field("id")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := id.Get(); got != uint16(7) {
		t.Errorf("id = %v", got)
	}

	ready, err := v.Field("ready")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := ready.Get(); got != true {
		t.Errorf("ready = %v", got)
	}

	level, err := v.Field("level")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := level.Get(); got != uint8(5) {
		t.Errorf("level = %v", got)
	}
	if err := level.Set(9); err != nil {
		t.Fatal(err)
	}

	crc, err := v.Field("crc")
	if err != nil {
		t.Fatal(err)
	}
	if err := crc.Set(0x55); err != nil {
		t.Fatal(err)
	}
	if err := crc.Set(0x155); !errors.HasKind(err, errors.KindOutOfRange) {
		t.Errorf("crc.Set(0x155) = %v", err)
	}

	want := []byte{0x00, 0x07, 0x89, 0x55}
	if !bytes.Equal(buf, want) {
		t.Errorf("buf = % x, want % x", buf, want)
	}

	s, err := v.Get()
	if err != nil {
		t.Fatal(err)
	}
	if s.(*structure.Struct).MustGet("level") != uint8(9) {
		t.Errorf("unpacked view = %v", s)
	}
}

func TestView_VariableStructure(t *testing.T) {
	typ := headerType(t)
	buf := []byte{0xee, 0x01, 0x00, 0x02, 'h', 'i'}

	v, err := view.New(typ, buf, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Size() != 5 {
		t.Fatalf("Size() = %d", v.Size())
	}

	length, err := v.Field("len")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := length.Get(); got != uint16(2) {
		t.Errorf("len = %v", got)
	}

	payload, err := v.Field("payload")
	if err != nil {
		t.Fatal(err)
	}
	if payload.Offset() != 4 || payload.Size() != 2 {
		t.Errorf("payload at %d size %d", payload.Offset(), payload.Size())
	}
	if err := payload.Set([]byte("yo")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0xee, 0x01, 0x00, 0x02, 'y', 'o'}) {
		t.Errorf("buf = % x", buf)
	}
	if err := payload.Set([]byte("abc")); !errors.HasKind(err, errors.KindLengthMismatch) {
		t.Errorf("Set(longer) = %v", err)
	}

	if _, err := v.Field("nope"); !errors.HasKind(err, errors.KindUnknownMember) {
		t.Errorf("Field(nope) = %v", err)
	}
}

func TestView_CastStructure(t *testing.T) {
	a := structure.Declare("A").
		Member("x", transform.Uint16BE).
		MustBuild()
	b := structure.Declare("B").
		Member("hi", transform.Uint8).
		Member("lo", transform.Uint8).
		MustBuild()

	buf := []byte{0x12, 0x34}
	va, err := view.New(a, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	vb, err := va.Cast(b)
	if err != nil {
		t.Fatal(err)
	}
	lo, err := vb.Field("lo")
	if err != nil {
		t.Fatal(err)
	}
	if err := lo.Set(0); err != nil {
		t.Fatal(err)
	}
	x, err := va.Field("x")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := x.Get(); got != uint16(0x1200) {
		t.Errorf("x = %#x", got)
	}
}
