package dump

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// BitRange locates a bit-field within the raw bytes of its parent record.
type BitRange struct {
	LSB  int
	Size int
}

// MSB returns the index of the most significant bit of the range.
func (b BitRange) MSB() int {
	return b.LSB + b.Size - 1
}

func (b BitRange) String() string {
	return fmt.Sprintf("[%d:%d]", b.LSB, b.MSB())
}

// Record is one node of the provenance tree.
type Record struct {
	Bits     *BitRange
	Access   string
	Value    string
	Format   string
	Raw      []byte
	Children []*Record
	Separate bool
}

// Add appends a child record with the given access segment.
func (r *Record) Add(access string) *Record {
	c := &Record{Access: access}
	r.Children = append(r.Children, c)
	return c
}

// Fill sets the leaf columns in one call. Raw is copied.
func (r *Record) Fill(format string, value any, raw []byte) {
	r.Format = format
	r.Value = Repr(value)
	r.Raw = append([]byte(nil), raw...)
}

// Bytes returns the provenance bytes under r.
func (r *Record) Bytes() []byte {
	var out []byte
	r.collect(&out)
	return out
}

func (r *Record) collect(out *[]byte) {
	if r.Raw != nil {
		*out = append(*out, r.Raw...)
		return
	}
	for _, c := range r.Children {
		c.collect(out)
	}
}

// Size returns the number of provenance bytes under r.
func (r *Record) Size() int {
	if r.Raw != nil {
		return len(r.Raw)
	}
	n := 0
	for _, c := range r.Children {
		n += c.Size()
	}
	return n
}

// Dump is the root of a provenance tree plus the offset of its first byte.
type Dump struct {
	Records []*Record
	Offset  int
}

// Add appends a root record with the given access segment.
func (d *Dump) Add(access string) *Record {
	r := &Record{Access: access}
	d.Records = append(d.Records, r)
	return r
}

// Bytes returns the concatenated provenance bytes of the dump.
func (d *Dump) Bytes() []byte {
	var out []byte
	for _, r := range d.Records {
		r.collect(&out)
	}
	return out
}

// Row is one flattened record.
type Row struct {
	Bits     *BitRange
	Access   string
	Path     string
	Value    string
	Format   string
	Raw      []byte
	Offset   int
	Depth    int
	Separate bool
}

// Rows flattens the dump in traversal order.
func (d *Dump) Rows() []Row {
	var rows []Row
	off := d.Offset
	for _, r := range d.Records {
		off = flatten(r, nil, 0, off, false, &rows)
	}
	return rows
}

func flatten(r *Record, parent []string, depth, off int, inBits bool, rows *[]Row) int {
	path := appendSegment(parent, r.Access)
	*rows = append(*rows, Row{
		Bits:     r.Bits,
		Access:   r.Access,
		Path:     JoinPath(path),
		Value:    r.Value,
		Format:   r.Format,
		Raw:      r.Raw,
		Offset:   off,
		Depth:    depth,
		Separate: r.Separate,
	})

	if r.Raw != nil {
		for _, c := range r.Children {
			flatten(c, path, depth+1, off, true, rows)
		}
		if inBits {
			return off
		}
		return off + len(r.Raw)
	}

	next := off
	for _, c := range r.Children {
		next = flatten(c, path, depth+1, next, inBits, rows)
	}
	return next
}

// Last returns the final record in traversal order together with its
// absolute byte offset and access path segments.
func (d *Dump) Last() (*Record, int, []string) {
	var (
		last     *Record
		lastOff  int
		lastPath []string
	)

	var walk func(r *Record, parent []string, off int) int
	walk = func(r *Record, parent []string, off int) int {
		path := appendSegment(parent, r.Access)
		last, lastOff, lastPath = r, off, path
		if r.Raw != nil {
			for _, c := range r.Children {
				walk(c, path, off)
			}
			return off + len(r.Raw)
		}
		next := off
		for _, c := range r.Children {
			next = walk(c, path, next)
		}
		return next
	}

	off := d.Offset
	for _, r := range d.Records {
		off = walk(r, nil, off)
	}
	return last, lastOff, lastPath
}

func appendSegment(parent []string, access string) []string {
	if access == "" {
		return parent
	}
	out := make([]string, len(parent), len(parent)+1)
	copy(out, parent)
	return append(out, access)
}

// JoinPath joins access segments into a dotted path. Index segments such as
// "[2]" attach without a separator.
func JoinPath(segs []string) string {
	var b strings.Builder
	for _, s := range segs {
		if s == "" {
			continue
		}
		if b.Len() > 0 && !strings.HasPrefix(s, "[") {
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	return b.String()
}

// Index returns the access segment for a sequence position.
func Index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// Key returns the access segment for a keyed item.
func Key(k string) string {
	return "[" + strconv.Quote(k) + "]"
}

// Stringer lets values control their dump representation.
type Stringer interface {
	DumpString() string
}

// Repr formats a value for the Value column.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case Stringer:
		return x.DumpString()
	case string:
		return strconv.Quote(x)
	case []byte:
		return reprBytes(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return reprFloat(float64(x), 32)
	case float64:
		return reprFloat(x, 64)
	case fmt.Stringer:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		return reprMap(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return fmt.Sprintf("%v", v)
}

func reprBytes(b []byte) string {
	var s strings.Builder
	s.WriteString("b'")
	for _, c := range b {
		switch {
		case c == '\'' || c == '\\':
			s.WriteByte('\\')
			s.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			s.WriteByte(c)
		default:
			fmt.Fprintf(&s, "\\x%02x", c)
		}
	}
	s.WriteByte('\'')
	return s.String()
}

func reprFloat(f float64, bits int) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func reprMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + Repr(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
