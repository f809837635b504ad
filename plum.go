package plum

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
)

// Pack converts v to bytes.
//
// The first attempt records nothing. When it fails, packing is repeated
// with diagnostics and the returned error carries the dump, the access path
// of the failing field and its byte offset.
func Pack(t Transform, v any) ([]byte, error) {
	w := getWriter()
	defer putWriter(w)

	if err := t.Pack(w, v, nil); err != nil {
		return nil, packDiagnose(t, v, err)
	}
	return bytes.Clone(w.Bytes()), nil
}

// AppendPack packs v and appends the bytes to dst.
func AppendPack(dst []byte, t Transform, v any) ([]byte, error) {
	w := NewWriter(dst)
	if err := t.Pack(w, v, nil); err != nil {
		return dst, packDiagnose(t, v, err)
	}
	return w.Bytes(), nil
}

// PackDump packs v while recording provenance. The dump is returned on
// failure too.
func PackDump(t Transform, v any) ([]byte, *dump.Dump, error) {
	d := &dump.Dump{}
	w := NewWriter(nil)
	if err := t.Pack(w, v, d.Add("")); err != nil {
		return nil, d, annotate(errors.PhasePack, err, d)
	}
	return w.Bytes(), d, nil
}

func packDiagnose(t Transform, v any, fast error) error {
	Logger().Debug("pack failed, recording diagnostics",
		zap.String("transform", t.Name()),
		zap.String("kind", string(errors.KindOf(fast))))

	_, _, err := PackDump(t, v)
	if err == nil {
		// diagnostic pass disagreed with the fast path
		return annotate(errors.PhasePack, fast, nil)
	}
	return err
}

// Unpack converts b to a value. Every byte must be consumed.
func Unpack(t Transform, b []byte) (any, error) {
	r := NewReader(b, 0)
	v, err := t.Unpack(r, nil)
	if err == nil && r.Remaining() > 0 {
		err = errors.ExcessBytes(r.Remaining())
	}
	if err != nil {
		return nil, unpackDiagnose(t, b, 0, err)
	}
	return v, nil
}

// UnpackDump unpacks b while recording provenance. The dump is returned on
// failure too.
func UnpackDump(t Transform, b []byte) (any, *dump.Dump, error) {
	return unpackDumpAt(t, b, 0, true)
}

func unpackDumpAt(t Transform, b []byte, base int, exact bool) (any, *dump.Dump, error) {
	d := &dump.Dump{Offset: base}
	root := d.Add("")
	r := NewReader(b, base)

	v, err := t.Unpack(r, root)
	if err != nil {
		return nil, d, annotate(errors.PhaseUnpack, err, d)
	}
	if exact && r.Remaining() > 0 {
		off := r.Offset()
		n := r.Excess(d.Add(""))
		e := errors.ExcessBytes(n)
		e.Offset, e.HasOffset = off, true
		return nil, d, annotate(errors.PhaseUnpack, e, d)
	}
	return v, d, nil
}

func unpackDiagnose(t Transform, b []byte, base int, fast error) error {
	Logger().Debug("unpack failed, recording diagnostics",
		zap.String("transform", t.Name()),
		zap.String("kind", string(errors.KindOf(fast))))

	_, _, err := unpackDumpAt(t, b, base, true)
	if err == nil {
		return annotate(errors.PhaseUnpack, fast, nil)
	}
	return err
}

// UnpackAs unpacks b and asserts the result type.
func UnpackAs[T any](t Transform, b []byte) (T, error) {
	var zero T
	v, err := Unpack(t, b)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseUnpack, v, fmt.Sprintf("%T", zero))
	}
	return out, nil
}

// SizeOf returns the fixed byte size of t.
func SizeOf(t Transform) (int, error) {
	if n := t.Size(); n >= 0 {
		return n, nil
	}
	return 0, errors.New(errors.PhaseAccess, errors.KindUnsupported).
		Type(t.Name()).
		Detail("size varies with the value").
		Build()
}

// annotate locates err in the dump: the last record in traversal order is
// the failing field. Errors that are not *errors.Error are wrapped so
// callers always see the access path.
func annotate(phase errors.Phase, err error, d *dump.Dump) error {
	e, ok := errors.As(err)
	if !ok {
		kind := errors.KindInvalidValue
		if phase == errors.PhasePack {
			kind = errors.KindTypeMismatch
		}
		e = errors.Wrap(phase, kind, err, "")
	} else {
		cp := *e
		e = &cp
	}

	if d == nil {
		return e
	}

	e.Dump = d
	rec, off, path := d.Last()
	if rec != nil {
		e.Path = path
		if !e.HasOffset {
			e.Offset, e.HasOffset = off, true
		}
		if e.Type == "" {
			e.Type = rec.Format
		}
	}
	return e
}
