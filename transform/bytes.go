package transform

import (
	"bytes"
	"strconv"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Bytes packs raw byte blobs.
type Bytes struct {
	name   string
	size   int
	pad    byte
	padded bool
}

// FixedBytes packs exactly n bytes.
func FixedBytes(n int) *Bytes {
	return &Bytes{name: "bytes[" + strconv.Itoa(n) + "]", size: n}
}

// PaddedBytes packs up to n bytes, right-padded with pad. Trailing pad bytes
// are trimmed on unpack.
func PaddedBytes(n int, pad byte) *Bytes {
	return &Bytes{name: "bytes[" + strconv.Itoa(n) + "]", size: n, pad: pad, padded: true}
}

// GreedyBytes consumes every remaining byte.
func GreedyBytes() *Bytes {
	return &Bytes{name: "bytes", size: plum.Variable}
}

func (t *Bytes) Name() string   { return t.name }
func (t *Bytes) Hint() string   { return "[]byte" }
func (t *Bytes) Size() int      { return t.size }
func (t *Bytes) IsGreedy() bool { return t.size < 0 }

func toBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	}
	return nil, false
}

func (t *Bytes) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	b, ok := toBytes(v)
	if !ok {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return errors.TypeMismatch(errors.PhasePack, v, "[]byte")
	}

	out := b
	if t.size >= 0 && len(b) != t.size {
		if !t.padded || len(b) > t.size {
			if rec != nil {
				rec.Format = t.name
				rec.Value = dump.Repr(v)
			}
			return errors.LengthMismatch(errors.PhasePack, t.size, len(b))
		}
		out = make([]byte, t.size)
		copy(out, b)
		for i := len(b); i < t.size; i++ {
			out[i] = t.pad
		}
	}

	w.Write(out)
	if rec != nil {
		rec.Fill(t.name, b, out)
	}
	return nil
}

func (t *Bytes) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	var raw []byte
	if t.size < 0 {
		raw = r.Rest()
	} else {
		var err error
		raw, err = r.Take(t.size, rec, t.name)
		if err != nil {
			return nil, err
		}
	}

	v := raw
	if t.padded {
		v = trimPad(raw, t.pad)
	}
	v = bytes.Clone(v)
	if v == nil {
		v = []byte{}
	}
	if rec != nil {
		rec.Fill(t.name, v, raw)
	}
	return v, nil
}

func (t *Bytes) Normalize(v any) (any, error) {
	b, ok := toBytes(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhasePack, v, "[]byte")
	}
	if t.padded {
		b = trimPad(b, t.pad)
	}
	return bytes.Clone(b), nil
}

func trimPad(b []byte, pad byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == pad {
		n--
	}
	return b[:n]
}
