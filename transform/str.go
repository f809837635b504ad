package transform

import (
	"bytes"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// StrSpec configures a text string transform.
type StrSpec struct {
	// Encoding converts between UTF-8 and the wire encoding. Nil means UTF-8.
	Encoding encoding.Encoding
	Name     string
	// Size is the fixed byte width. Zero means the string is terminated or
	// consumes the remaining bytes.
	Size int
	// MaxRune rejects runes above it when non-zero, e.g. 0x7f for ASCII.
	MaxRune rune
	// TermWidth is the terminator width for zero-terminated strings in
	// multi-byte encodings. Zero means one byte.
	TermWidth      int
	Pad            byte
	Padded         bool
	ZeroTerminated bool
}

// Str packs text strings.
type Str struct {
	spec StrSpec
}

var (
	UTF8          = NewStr(StrSpec{Name: "str"})
	ASCII         = NewStr(StrSpec{Name: "ascii", MaxRune: 0x7f})
	Latin1        = NewStr(StrSpec{Name: "latin1", Encoding: charmap.ISO8859_1})
	Windows1252   = NewStr(StrSpec{Name: "cp1252", Encoding: charmap.Windows1252})
	UTF16LE       = NewStr(StrSpec{Name: "utf16le", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), TermWidth: 2})
	UTF16BE       = NewStr(StrSpec{Name: "utf16be", Encoding: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), TermWidth: 2})
	ZeroTermUTF8  = NewStr(StrSpec{Name: "zstr", ZeroTerminated: true})
	ZeroTermASCII = NewStr(StrSpec{Name: "zascii", MaxRune: 0x7f, ZeroTerminated: true})
)

// NewStr creates a string transform.
func NewStr(spec StrSpec) *Str {
	if spec.Name == "" {
		spec.Name = "str"
		if spec.Size > 0 {
			spec.Name += "[" + strconv.Itoa(spec.Size) + "]"
		}
	}
	if spec.TermWidth == 0 {
		spec.TermWidth = 1
	}
	return &Str{spec: spec}
}

// Fixed returns a copy of t with a fixed byte width, right-padded with pad.
func (t *Str) Fixed(size int, pad byte) *Str {
	spec := t.spec
	spec.Size = size
	spec.Pad = pad
	spec.Padded = true
	spec.Name = t.spec.Name + "[" + strconv.Itoa(size) + "]"
	return NewStr(spec)
}

func (t *Str) Name() string { return t.spec.Name }
func (t *Str) Hint() string { return "string" }

func (t *Str) Size() int {
	if t.spec.Size > 0 {
		return t.spec.Size
	}
	return plum.Variable
}

func (t *Str) IsGreedy() bool {
	return t.spec.Size == 0 && !t.spec.ZeroTerminated
}

func (t *Str) encode(s string) ([]byte, error) {
	if t.spec.MaxRune > 0 {
		for _, r := range s {
			if r > t.spec.MaxRune {
				return nil, errors.OutOfRange(errors.PhasePack, s, t.spec.Name,
					"runes up to U+"+strconv.FormatInt(int64(t.spec.MaxRune), 16))
			}
		}
	}
	if t.spec.Encoding == nil {
		return []byte(s), nil
	}
	b, err := t.spec.Encoding.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.New(errors.PhasePack, errors.KindOutOfRange).
			Type(t.spec.Name).
			Value(s).
			Cause(err).
			Detail("not representable in %s", t.spec.Name).
			Build()
	}
	return b, nil
}

func (t *Str) decode(b []byte) (string, error) {
	if t.spec.MaxRune > 0 {
		for _, c := range b {
			if rune(c) > t.spec.MaxRune && t.spec.Encoding == nil {
				return "", errors.InvalidValue(c, t.spec.Name, "bytes up to 0x"+strconv.FormatInt(int64(t.spec.MaxRune), 16))
			}
		}
	}
	if t.spec.Encoding == nil {
		if !utf8.Valid(b) {
			return "", errors.InvalidValue(b, t.spec.Name, "valid UTF-8")
		}
		return string(b), nil
	}
	out, err := t.spec.Encoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.New(errors.PhaseUnpack, errors.KindInvalidValue).
			Type(t.spec.Name).
			Cause(err).
			Detail("cannot decode %s", t.spec.Name).
			Build()
	}
	return string(out), nil
}

func (t *Str) terminator() []byte {
	return make([]byte, t.spec.TermWidth)
}

// findTerm returns the index of the first aligned terminator in b.
func (t *Str) findTerm(b []byte) int {
	w := t.spec.TermWidth
	term := t.terminator()
	for i := 0; i+w <= len(b); i += w {
		if bytes.Equal(b[i:i+w], term) {
			return i
		}
	}
	return -1
}

func (t *Str) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	fail := func(err error) error {
		if rec != nil {
			rec.Format = t.spec.Name
			rec.Value = dump.Repr(v)
		}
		return err
	}

	s, ok := v.(string)
	if !ok {
		b, isBytes := v.([]byte)
		if !isBytes {
			return fail(errors.TypeMismatch(errors.PhasePack, v, "a string"))
		}
		s = string(b)
	}

	b, err := t.encode(s)
	if err != nil {
		return fail(err)
	}
	if t.spec.ZeroTerminated {
		b = append(b, t.terminator()...)
	}

	if size := t.spec.Size; size > 0 && len(b) != size {
		if len(b) > size || (!t.spec.Padded && !t.spec.ZeroTerminated) {
			return fail(errors.LengthMismatch(errors.PhasePack, size, len(b)))
		}
		for len(b) < size {
			b = append(b, t.spec.Pad)
		}
	}

	w.Write(b)
	if rec != nil {
		rec.Fill(t.spec.Name, s, b)
	}
	return nil
}

func (t *Str) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	var raw, text []byte

	switch {
	case t.spec.Size > 0:
		var err error
		raw, err = r.Take(t.spec.Size, rec, t.spec.Name)
		if err != nil {
			return nil, err
		}
		text = raw
		if t.spec.ZeroTerminated {
			i := t.findTerm(raw)
			if i < 0 {
				if rec != nil {
					rec.Fill(t.spec.Name, raw, raw)
				}
				return nil, errors.InvalidValue(raw, t.spec.Name, "zero-terminated text within "+strconv.Itoa(t.spec.Size)+" bytes")
			}
			text = raw[:i]
		} else if t.spec.Padded {
			text = trimPad(raw, t.spec.Pad)
		}

	case t.spec.ZeroTerminated:
		rest, _ := r.Peek(r.Remaining())
		i := t.findTerm(rest)
		if i < 0 {
			need := len(rest) + t.spec.TermWidth - len(rest)%t.spec.TermWidth
			_, err := r.Take(need, rec, t.spec.Name)
			if rec != nil {
				rec.Value = "<missing terminator>"
			}
			return nil, err
		}
		raw, _ = r.Next(i + t.spec.TermWidth)
		text = raw[:i]

	default:
		raw = r.Rest()
		text = raw
	}

	s, err := t.decode(text)
	if err != nil {
		if rec != nil {
			rec.Fill(t.spec.Name, raw, raw)
		}
		return nil, err
	}
	if rec != nil {
		rec.Fill(t.spec.Name, s, raw)
	}
	return s, nil
}

func (t *Str) Normalize(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, errors.TypeMismatch(errors.PhasePack, v, "a string")
}
