package plum

import (
	"github.com/wippyai/plum/dump"
)

// Variable is the Size of transforms whose byte length depends on the value.
const Variable = -1

// Transform converts values to bytes and back.
//
// rec is nil on the fast path. When it is non-nil, leaf transforms fill
// its Value, Raw and Format; composite transforms add one child record per
// contained value. On failure the record holds whatever was consumed or
// produced up to that point.
type Transform interface {
	// Name is the format name shown in dumps and errors.
	Name() string
	// Hint describes the Go type of values this transform produces.
	Hint() string
	// Size is the fixed byte size, or Variable.
	Size() int
	Pack(w *Writer, v any, rec *dump.Record) error
	Unpack(r *Reader, rec *dump.Record) (any, error)
}

// Normalizer is implemented by transforms that map accepted input values to
// the canonical value their Unpack would produce.
type Normalizer interface {
	Normalize(v any) (any, error)
}

// Greedy is implemented by transforms that consume every remaining byte.
type Greedy interface {
	IsGreedy() bool
}

// Equaler is implemented by values with their own equality.
type Equaler interface {
	Equal(other any) bool
}

// IsGreedy reports whether t consumes to the end of its input.
func IsGreedy(t Transform) bool {
	g, ok := t.(Greedy)
	return ok && g.IsGreedy()
}

// IsFixed reports whether t has a static byte size.
func IsFixed(t Transform) bool {
	return t.Size() >= 0
}

// Normalize returns the canonical form of v for t.
func Normalize(t Transform, v any) (any, error) {
	if n, ok := t.(Normalizer); ok {
		return n.Normalize(v)
	}
	return v, nil
}
