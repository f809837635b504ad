package structure

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/internal/coerce"
	"github.com/wippyai/plum/transform"
)

// Bind creates an instance from the exported fields of a Go struct.
// Members are matched by `plum:"name"` tag, case-insensitive name, or the
// snake_case or kebab-case form of the Go field name. Zero pointers and nil
// slices leave members unset.
func (t *Type) Bind(v any) (*Struct, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.TypeMismatch(errors.PhaseAccess, v, "non-nil struct pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.TypeMismatch(errors.PhaseAccess, v, "struct")
	}

	s, err := t.New(nil)
	if err != nil {
		return nil, err
	}
	for _, m := range t.members {
		f, ok := findGoField(rv.Type(), m.Name())
		if !ok {
			continue
		}
		fv := rv.FieldByIndex(f.Index)
		if (fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Slice) && fv.IsNil() {
			continue
		}

		val := fv.Interface()
		if nested, ok := m.spec.format.(*Type); ok && m.spec.mkind == Plain {
			if val, err = nested.Bind(val); err != nil {
				return nil, prefix(err, m.Name())
			}
		}
		s.store(m, val)
	}
	return s, nil
}

// UnpackInto unpacks b and stores the members in the Go struct ptr.
func (t *Type) UnpackInto(b []byte, ptr any) error {
	s, err := t.UnpackStruct(b)
	if err != nil {
		return err
	}
	return s.Into(ptr)
}

// Into stores the set members in the exported fields of the Go struct ptr
// points to. Members without a matching field are skipped.
func (s *Struct) Into(ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.TypeMismatch(errors.PhaseAccess, ptr, "non-nil struct pointer")
	}
	return s.into(rv.Elem())
}

func (s *Struct) into(dst reflect.Value) error {
	for i, m := range s.t.members {
		if !s.set[i] {
			continue
		}
		f, ok := findGoField(dst.Type(), m.Name())
		if !ok {
			continue
		}
		if err := assignGo(dst.FieldByIndex(f.Index), s.vals[i]); err != nil {
			return prefix(err, m.Name())
		}
	}
	return nil
}

// assignGo converts an unpacked value to dst's Go type.
func assignGo(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return assignGo(dst.Elem(), v)
	}

	switch x := v.(type) {
	case *Struct:
		if dst.Kind() == reflect.Struct {
			return x.into(dst)
		}
	case *bitfields.Bits:
		if dst.Kind() == reflect.Struct {
			for name, fv := range x.AsMap() {
				if f, ok := findGoField(dst.Type(), name); ok {
					if err := assignGo(dst.FieldByIndex(f.Index), fv); err != nil {
						return prefix(err, name)
					}
				}
			}
			return nil
		}
		return assignGo(dst, x.Int())
	case transform.EnumValue:
		if dst.Kind() == reflect.String {
			dst.SetString(x.Name)
			return nil
		}
		return assignGo(dst, x.Value)
	case []any:
		switch dst.Kind() {
		case reflect.Slice:
			out := reflect.MakeSlice(dst.Type(), len(x), len(x))
			for i, e := range x {
				if err := assignGo(out.Index(i), e); err != nil {
					return prefix(err, dump.Index(i))
				}
			}
			dst.Set(out)
			return nil
		case reflect.Array:
			if dst.Len() != len(x) {
				return errors.LengthMismatch(errors.PhaseAccess, dst.Len(), len(x))
			}
			for i, e := range x {
				if err := assignGo(dst.Index(i), e); err != nil {
					return prefix(err, dump.Index(i))
				}
			}
			return nil
		}
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := coerce.ToInt64(v)
		if !ok || dst.OverflowInt(n) {
			return errors.TypeMismatch(errors.PhaseAccess, v, dst.Type().String())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := coerce.ToUint64(v)
		if !ok || dst.OverflowUint(n) {
			return errors.TypeMismatch(errors.PhaseAccess, v, dst.Type().String())
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		n, ok := coerce.ToFloat64(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseAccess, v, dst.Type().String())
		}
		dst.SetFloat(n)
		return nil
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case rv.Type().ConvertibleTo(dst.Type()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		return errors.TypeMismatch(errors.PhaseAccess, v, dst.Type().String())
	}
	return nil
}

func prefix(err error, seg string) error {
	e, ok := errors.As(err)
	if !ok {
		return err
	}
	cp := *e
	cp.Path = append([]string{seg}, e.Path...)
	return &cp
}

// findGoField matches by: 1) plum:"name" tag, 2) case-insensitive, 3) snake or kebab case.
func findGoField(goType reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)
		if !field.IsExported() {
			continue
		}

		if tag := field.Tag.Get("plum"); tag != "" {
			if tag == "-" {
				continue
			}
			if tag == name {
				return field, true
			}
			continue
		}

		if strings.EqualFold(field.Name, name) {
			return field, true
		}
		if toSnakeCase(field.Name, '_') == name || toSnakeCase(field.Name, '-') == name {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func toSnakeCase(s string, sep byte) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteByte(sep)
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
