package plum_test

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/transform"
)

func TestPack_ErrorCarriesDump(t *testing.T) {
	tr := transform.NewItems("hdr", transform.Keyed(
		transform.Key("tag", transform.Scalar(transform.Uint8)),
		transform.Key("length", transform.Scalar(transform.Uint16BE)),
	))

	_, err := plum.Pack(tr, map[string]any{"tag": 1, "length": 70000})
	e, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if e.Kind != errors.KindOutOfRange {
		t.Errorf("Kind = %s, want out_of_range", e.Kind)
	}
	if got := e.PathString(); got != "length" {
		t.Errorf("path = %q, want length", got)
	}
	if e.Offset != 1 {
		t.Errorf("offset = %d, want 1", e.Offset)
	}
	if e.Dump == nil {
		t.Fatal("error has no dump")
	}
	if !bytes.Equal(e.Dump.Bytes(), []byte{1}) {
		t.Errorf("dump bytes = % x, want 01", e.Dump.Bytes())
	}
	if !strings.Contains(err.Error(), "0..65535") {
		t.Errorf("message %q does not name the range", err.Error())
	}
}

func TestUnpack_ExcessAtTopLevel(t *testing.T) {
	_, err := plum.Unpack(transform.Uint8, []byte{1, 2})
	if !errors.HasKind(err, errors.KindExcessBytes) {
		t.Fatalf("err = %v, want excess_bytes", err)
	}
	e, _ := errors.As(err)
	if !bytes.Equal(e.Dump.Bytes(), []byte{1, 2}) {
		t.Errorf("dump bytes = % x, want 01 02", e.Dump.Bytes())
	}
}

func TestUnpackDump_ReturnsDumpOnSuccess(t *testing.T) {
	v, d, err := plum.UnpackDump(transform.Uint16LE, []byte{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if v != uint16(1) {
		t.Errorf("value = %v, want 1", v)
	}
	rows := d.Rows()
	if len(rows) != 1 || rows[0].Format != "uint16le" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestUnpackAs(t *testing.T) {
	v, err := plum.UnpackAs[uint16](transform.Uint16BE, []byte{0, 7})
	if err != nil || v != 7 {
		t.Errorf("UnpackAs() = %v, %v", v, err)
	}

	_, err = plum.UnpackAs[string](transform.Uint8, []byte{0})
	if !errors.HasKind(err, errors.KindTypeMismatch) {
		t.Errorf("err = %v, want type_mismatch", err)
	}
}

func TestSizeOf(t *testing.T) {
	n, err := plum.SizeOf(transform.FixedArray(transform.Uint32LE, 3))
	if err != nil || n != 12 {
		t.Errorf("SizeOf() = %d, %v", n, err)
	}
	if _, err := plum.SizeOf(transform.GreedyBytes()); !errors.HasKind(err, errors.KindUnsupported) {
		t.Errorf("err = %v, want unsupported", err)
	}
}

func TestAppendPack(t *testing.T) {
	b, err := plum.AppendPack([]byte{0xaa}, transform.Uint8, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{0xaa, 1}) {
		t.Errorf("AppendPack() = % x", b)
	}
}

// failing is a transform returning a plain error to check wrapping.
type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Hint() string { return "any" }
func (failing) Size() int    { return 0 }
func (failing) Pack(_ *plum.Writer, _ any, rec *dump.Record) error {
	if rec != nil {
		rec.Format = "failing"
	}
	return stderrors.New("boom")
}
func (failing) Unpack(*plum.Reader, *dump.Record) (any, error) {
	return nil, stderrors.New("boom")
}

func TestPack_WrapsForeignErrors(t *testing.T) {
	_, err := plum.Pack(failing{}, 1)
	e, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if e.Phase != errors.PhasePack || e.Cause == nil {
		t.Errorf("got phase %s cause %v", e.Phase, e.Cause)
	}
}

func TestBuffer_Streaming(t *testing.T) {
	msg := transform.NewSized(transform.GreedyBytes(), transform.Uint8, 1, 0)
	buf := plum.NewBuffer([]byte{3, 'a'})

	_, err := buf.Unpack(msg)
	if !errors.Retryable(err) {
		t.Fatalf("err = %v, want retryable insufficient_bytes", err)
	}
	if buf.Remaining() != 2 {
		t.Errorf("failed unpack consumed bytes: remaining %d", buf.Remaining())
	}

	buf.Append([]byte{'b', 'c', 1})
	v, err := buf.Unpack(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v.([]byte), []byte("abc")) {
		t.Errorf("value = %q, want abc", v)
	}

	if err := buf.Close(); !errors.HasKind(err, errors.KindExcessBytes) {
		t.Errorf("Close() = %v, want excess_bytes", err)
	}
	if _, err := buf.Unpack(transform.Uint8); err != nil {
		t.Fatal(err)
	}
	if err := buf.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"bytes", []byte("a"), []byte("a"), true},
		{"bytes differ", []byte("a"), []byte("b"), false},
		{"nested", []any{uint8(1), []any{"x"}}, []any{uint8(1), []any{"x"}}, true},
		{"map", map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"map missing", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"types differ", uint8(1), uint16(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plum.Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestByteOrder(t *testing.T) {
	b := make([]byte, 3)
	plum.LittleEndian.PutUint(b, 0x010203)
	if !bytes.Equal(b, []byte{3, 2, 1}) {
		t.Errorf("PutUint = % x", b)
	}
	if plum.BigEndian.Uint([]byte{1, 2}) != 0x0102 {
		t.Error("Uint big endian")
	}
}

func TestWriter_ReservePatch(t *testing.T) {
	w := plum.NewWriter(nil)
	slot := w.Reserve(2)
	w.Write([]byte{9})
	w.Patch(slot, []byte{1, 2})
	if !bytes.Equal(w.Bytes(), []byte{1, 2, 9}) {
		t.Errorf("Bytes() = % x", w.Bytes())
	}
}
