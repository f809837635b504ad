package transform

import (
	"sort"
	"strings"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Shape describes one level of a heterogeneous aggregate.
type Shape interface {
	shape()
}

type scalarShape struct {
	t plum.Transform
}

type sequenceShape struct {
	items []Shape
}

type keyedShape struct {
	keys []KeyShape
}

func (scalarShape) shape()   {}
func (sequenceShape) shape() {}
func (keyedShape) shape()    {}

// KeyShape is one named entry of a keyed shape.
type KeyShape struct {
	Shape Shape
	Key   string
}

// Scalar is a leaf holding a single transform.
func Scalar(t plum.Transform) Shape {
	return scalarShape{t: t}
}

// Sequence is a positional tuple of shapes. Values are []any.
func Sequence(items ...Shape) Shape {
	return sequenceShape{items: items}
}

// Keyed is an ordered set of named shapes. Values are map[string]any and
// pack in declaration order.
func Keyed(keys ...KeyShape) Shape {
	return keyedShape{keys: keys}
}

// Key is shorthand for a KeyShape.
func Key(key string, s Shape) KeyShape {
	return KeyShape{Key: key, Shape: s}
}

// Items packs a heterogeneous aggregate described by a shape.
type Items struct {
	shape Shape
	name  string
}

// NewItems creates an items transform.
func NewItems(name string, shape Shape) *Items {
	if name == "" {
		name = "items"
	}
	return &Items{shape: shape, name: name}
}

func (t *Items) Name() string { return t.name }

func (t *Items) Hint() string {
	switch t.shape.(type) {
	case keyedShape:
		return "map[string]any"
	case sequenceShape:
		return "[]any"
	}
	return "any"
}

func (t *Items) Size() int {
	return shapeSize(t.shape)
}

func shapeSize(s Shape) int {
	switch x := s.(type) {
	case scalarShape:
		return x.t.Size()
	case sequenceShape:
		total := 0
		for _, it := range x.items {
			n := shapeSize(it)
			if n < 0 {
				return plum.Variable
			}
			total += n
		}
		return total
	case keyedShape:
		total := 0
		for _, k := range x.keys {
			n := shapeSize(k.Shape)
			if n < 0 {
				return plum.Variable
			}
			total += n
		}
		return total
	}
	return plum.Variable
}

// mismatch collects every structural difference between a value and a shape.
type mismatch struct {
	missing []string
	extra   []string
	wrong   []string
}

func (m *mismatch) empty() bool {
	return len(m.missing) == 0 && len(m.extra) == 0 && len(m.wrong) == 0
}

func (m *mismatch) check(s Shape, v any, path []string) {
	switch x := s.(type) {
	case sequenceShape:
		vals, ok := items(v)
		if !ok {
			m.wrong = append(m.wrong, describePath(path)+" (want sequence)")
			return
		}
		for i := len(vals); i < len(x.items); i++ {
			m.missing = append(m.missing, describePath(append(path, dump.Index(i))))
		}
		for i := len(x.items); i < len(vals); i++ {
			m.extra = append(m.extra, describePath(append(path, dump.Index(i))))
		}
		for i := 0; i < len(vals) && i < len(x.items); i++ {
			m.check(x.items[i], vals[i], appendPath(path, dump.Index(i)))
		}

	case keyedShape:
		mv, ok := v.(map[string]any)
		if !ok {
			m.wrong = append(m.wrong, describePath(path)+" (want map)")
			return
		}
		known := make(map[string]bool, len(x.keys))
		for _, k := range x.keys {
			known[k.Key] = true
			ev, ok := mv[k.Key]
			if !ok {
				m.missing = append(m.missing, describePath(append(path, k.Key)))
				continue
			}
			m.check(k.Shape, ev, appendPath(path, k.Key))
		}
		var extra []string
		for k := range mv {
			if !known[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			m.extra = append(m.extra, describePath(append(path, k)))
		}
	}
}

func appendPath(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

func describePath(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return dump.JoinPath(path)
}

func (m *mismatch) err(v any) error {
	var parts []string
	if len(m.missing) > 0 {
		parts = append(parts, "missing "+strings.Join(m.missing, ", "))
	}
	if len(m.extra) > 0 {
		parts = append(parts, "extra "+strings.Join(m.extra, ", "))
	}
	if len(m.wrong) > 0 {
		parts = append(parts, "wrong shape "+strings.Join(m.wrong, ", "))
	}
	return errors.New(errors.PhasePack, errors.KindTypeMismatch).
		Value(v).
		Detail("%s", strings.Join(parts, "; ")).
		Build()
}

func (t *Items) Pack(w *plum.Writer, v any, rec *dump.Record) error {
	var m mismatch
	m.check(t.shape, v, nil)
	if !m.empty() {
		if rec != nil {
			rec.Format = t.name
			rec.Value = dump.Repr(v)
		}
		return m.err(v)
	}
	if rec != nil {
		rec.Format = t.name
	}
	return packShape(w, t.shape, v, rec)
}

func packShape(w *plum.Writer, s Shape, v any, rec *dump.Record) error {
	switch x := s.(type) {
	case scalarShape:
		return x.t.Pack(w, v, rec)
	case sequenceShape:
		vals, _ := items(v)
		for i, it := range x.items {
			var child *dump.Record
			if rec != nil {
				child = rec.Add(dump.Index(i))
			}
			if err := packShape(w, it, vals[i], child); err != nil {
				return err
			}
		}
	case keyedShape:
		mv := v.(map[string]any)
		for _, k := range x.keys {
			var child *dump.Record
			if rec != nil {
				child = rec.Add(k.Key)
			}
			if err := packShape(w, k.Shape, mv[k.Key], child); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Items) Unpack(r *plum.Reader, rec *dump.Record) (any, error) {
	if rec != nil {
		rec.Format = t.name
	}
	return unpackShape(r, t.shape, rec)
}

func unpackShape(r *plum.Reader, s Shape, rec *dump.Record) (any, error) {
	switch x := s.(type) {
	case scalarShape:
		return x.t.Unpack(r, rec)
	case sequenceShape:
		out := make([]any, len(x.items))
		for i, it := range x.items {
			var child *dump.Record
			if rec != nil {
				child = rec.Add(dump.Index(i))
			}
			v, err := unpackShape(r, it, child)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case keyedShape:
		out := make(map[string]any, len(x.keys))
		for _, k := range x.keys {
			var child *dump.Record
			if rec != nil {
				child = rec.Add(k.Key)
			}
			v, err := unpackShape(r, k.Shape, child)
			if err != nil {
				return nil, err
			}
			out[k.Key] = v
		}
		return out, nil
	}
	return nil, errors.Unsupported(errors.PhaseUnpack, "unknown shape")
}

// Normalize returns v with every leaf normalized by its transform.
func (t *Items) Normalize(v any) (any, error) {
	var m mismatch
	m.check(t.shape, v, nil)
	if !m.empty() {
		return nil, m.err(v)
	}
	return normalizeShape(t.shape, v)
}

func normalizeShape(s Shape, v any) (any, error) {
	switch x := s.(type) {
	case scalarShape:
		return plum.Normalize(x.t, v)
	case sequenceShape:
		vals, _ := items(v)
		out := make([]any, len(vals))
		for i, it := range x.items {
			nv, err := normalizeShape(it, vals[i])
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case keyedShape:
		mv := v.(map[string]any)
		out := make(map[string]any, len(mv))
		for _, k := range x.keys {
			nv, err := normalizeShape(k.Shape, mv[k.Key])
			if err != nil {
				return nil, err
			}
			out[k.Key] = nv
		}
		return out, nil
	}
	return v, nil
}

// Tuple is shorthand for a sequence of scalar transforms.
func Tuple(name string, ts ...plum.Transform) *Items {
	shapes := make([]Shape, len(ts))
	for i, t := range ts {
		shapes[i] = Scalar(t)
	}
	if name == "" {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = t.Name()
		}
		name = "(" + strings.Join(parts, ", ") + ")"
	}
	return NewItems(name, Sequence(shapes...))
}
