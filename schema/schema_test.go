package schema_test

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/schema"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
)

const packetSchema = `
[[enum]]
name = "Kind"
values = { data = 1, ack = 2 }

[[bitfields]]
name = "Flags"
nbytes = 1
  [[bitfields.field]]
  name = "urgent"
  bits = 1
  kind = "bool"
  [[bitfields.field]]
  name = "prio"
  bits = 3

[[structure]]
name = "Packet"
  [[structure.member]]
  name = "kind"
  type = "Kind"
  [[structure.member]]
  name = "flags"
  type = "Flags"
  [[structure.member]]
  name = "len"
  type = "u16be"
  compute = true
  [[structure.member]]
  name = "body"
  type = "bytes"
  size = "len"
`

func mustParse(t *testing.T, doc string) *schema.Registry {
	t.Helper()
	r, err := schema.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return r
}

func TestParse_Packet(t *testing.T) {
	r := mustParse(t, packetSchema)

	if diff := cmp.Diff([]string{"Kind", "Flags", "Packet"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	pkt, ok := r.Structure("Packet")
	if !ok {
		t.Fatal("Structure(Packet) not found")
	}
	s := pkt.MustNew(structure.Fields{
		"kind":  "ack",
		"flags": map[string]any{"urgent": true, "prio": 2},
		"body":  []byte("ok"),
	})
	got, err := s.Pack()
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	want := []byte{0x02, 0x05, 0x00, 0x02, 'o', 'k'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}

	out, err := pkt.UnpackStruct(got)
	if err != nil {
		t.Fatalf("UnpackStruct() error: %v", err)
	}
	if !out.Equal(s) {
		t.Errorf("UnpackStruct() = %v, want %v", out, s)
	}
	if ev := out.MustGet("kind").(transform.EnumValue); ev.Name != "ack" {
		t.Errorf("kind = %v, want Kind.ack", ev)
	}
	if f := out.MustGet("flags").(*bitfields.Bits); f.MustGet("prio") != uint8(2) {
		t.Errorf("flags.prio = %v, want 2", f.MustGet("prio"))
	}
}

func TestParse_MemberForms(t *testing.T) {
	r := mustParse(t, `
[[structure]]
name = "Point"
byte_order = "little"
  [[structure.member]]
  name = "x"
  type = "s16le"
  [[structure.member]]
  name = "y"
  type = "s16le"

[[structure]]
name = "Shape"
  [[structure.member]]
  name = "label"
  type = "ascii"
  length = 4
  [[structure.member]]
  name = "n"
  type = "u8"
  [[structure.member]]
  name = "points"
  type = "Point"
  dims = ["n"]
  [[structure.member]]
  name = "tags"
  type = "array"
  elem = "zstr"
  count = "u8"
  [[structure.member]]
  name = "ver"
  bits = 4
  default = 1
  [[structure.member]]
  name = "hdr"
  bits = 4
`)
	shape, _ := r.Structure("Shape")
	s := shape.MustNew(structure.Fields{
		"label":  "ab",
		"points": []any{structure.Fields{"x": 1, "y": -1}},
		"tags":   []any{"a"},
		"hdr":    3,
	})
	got, err := s.Pack()
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	want := []byte{
		'a', 'b', 0, 0,
		0x01,
		0x01, 0x00, 0xff, 0xff,
		0x01, 'a', 0x00,
		0x13,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Pack() = % x, want % x", got, want)
	}
}

func TestLookup_Builtins(t *testing.T) {
	r := mustParse(t, "")
	for _, name := range []string{"u8", "s64le", "f32be", "zstr", "ipv6"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("Lookup(%q) not found", name)
		}
	}
	if _, ok := r.Lookup("u128"); ok {
		t.Error("Lookup(u128) found a type")
	}
	if !slices.Contains(schema.Builtins(), "array") {
		t.Error("Builtins() lacks array")
	}

	u16, _ := r.Lookup("u16le")
	b, err := plum.Pack(u16, 0x0102)
	if err != nil || !bytes.Equal(b, []byte{0x02, 0x01}) {
		t.Errorf("Pack(u16le) = % x, %v", b, err)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		kind  errors.Kind
		entry string
	}{
		{
			name: "unknown type",
			doc: `[[structure]]
name = "S"
  [[structure.member]]
  name = "a"
  type = "Nope"`,
			kind:  errors.KindUnknownMember,
			entry: "S",
		},
		{
			name: "declaration error carries entry",
			doc: `[[structure]]
name = "S"
  [[structure.member]]
  name = "a"
  type = "u8"
  [[structure.member]]
  name = "b"
  type = "bytes"
  size = "missing"`,
			kind:  errors.KindUnknownMember,
			entry: "S",
		},
		{
			name: "overlap",
			doc: `[[bitfields]]
name = "B"
nbytes = 1
  [[bitfields.field]]
  name = "a"
  bits = 4
  lsb = 0
  [[bitfields.field]]
  name = "b"
  bits = 4
  lsb = 2`,
			kind:  errors.KindOverlappingField,
			entry: "B",
		},
		{
			name: "duplicate",
			doc: `[[enum]]
name = "E"
[[enum]]
name = "E"`,
			kind:  errors.KindDuplicateMember,
			entry: "E",
		},
		{
			name: "shadows builtin",
			doc: `[[enum]]
name = "u8"`,
			kind:  errors.KindDuplicateMember,
			entry: "u8",
		},
		{
			name:  "unknown key",
			doc:   "[[enum]]\nname = \"E\"\ncolour = 1",
			kind:  errors.KindUnknownMember,
			entry: "",
		},
		{
			name: "bad byte order",
			doc: `[[structure]]
name = "S"
byte_order = "middle"`,
			kind:  errors.KindInvalidValue,
			entry: "S",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.doc))
			e, ok := errors.As(err)
			if !ok {
				t.Fatalf("Parse() error = %v, want *errors.Error", err)
			}
			if e.Phase != errors.PhaseSchema || e.Kind != tt.kind {
				t.Errorf("Parse() error = %v, want [schema] %s", err, tt.kind)
			}
			if e.Type != tt.entry {
				t.Errorf("error entry = %q, want %q", e.Type, tt.entry)
			}
		})
	}
}

func TestParse_InvalidTOML(t *testing.T) {
	_, err := schema.Parse([]byte("[[structure]\n"))
	if !errors.HasKind(err, errors.KindInvalidValue) {
		t.Errorf("Parse() error = %v, want invalid_value", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packet.toml")
	if err := os.WriteFile(path, []byte(packetSchema), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := schema.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := r.Lookup("Packet"); !ok {
		t.Error("Lookup(Packet) not found")
	}

	_, err = schema.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.HasKind(err, errors.KindNotFound) || !strings.Contains(err.Error(), "missing.toml") {
		t.Errorf("Load(missing) error = %v, want not_found naming the file", err)
	}
}
