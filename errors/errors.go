package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/plum/dump"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDeclare Phase = "declare" // type declaration
	PhasePack    Phase = "pack"    // value to bytes
	PhaseUnpack  Phase = "unpack"  // bytes to value
	PhaseView    Phase = "view"    // in-place buffer access
	PhaseAccess  Phase = "access"  // instance field access
	PhaseSchema  Phase = "schema"  // schema file loading
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfRange     Kind = "out_of_range"
	KindLengthMismatch Kind = "length_mismatch"

	KindInsufficientBytes Kind = "insufficient_bytes"
	KindExcessBytes       Kind = "excess_bytes"
	KindInvalidValue      Kind = "invalid_value"

	KindOverlappingField           Kind = "overlapping_field"
	KindTypeTooSmall               Kind = "type_too_small"
	KindAmbiguousLayout            Kind = "ambiguous_layout"
	KindUnassociatedComputedMember Kind = "unassociated_computed_member"
	KindDuplicateMember            Kind = "duplicate_member"
	KindUnknownMember              Kind = "unknown_member"

	KindUnsupported Kind = "unsupported"
	KindReadOnly    Kind = "read_only"
	KindNotFound    Kind = "not_found"
)

// Error is the structured error type used throughout plum
type Error struct {
	Value     any
	Cause     error
	Dump      *dump.Dump
	Phase     Phase
	Kind      Kind
	Type      string
	Detail    string
	Path      []string
	Offset    int
	HasOffset bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Summary())

	if e.Dump != nil && len(e.Dump.Records) > 0 {
		b.WriteString("\n\n")
		b.WriteString(e.Dump.String())
	}

	return b.String()
}

// Summary renders the one-line message without the dump table.
func (e *Error) Summary() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(dump.JoinPath(e.Path))
	}

	if e.HasOffset {
		b.WriteString(" (offset ")
		b.WriteString(strconv.Itoa(e.Offset))
		b.WriteByte(')')
	}

	if e.Type != "" {
		b.WriteString(": ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// PathString returns the dotted access path.
func (e *Error) PathString() string {
	return dump.JoinPath(e.Path)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the byte offset of the failing field
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	b.err.HasOffset = true
	return b
}

// Type sets the format name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Dump attaches the diagnostic dump
func (b *Builder) Dump(d *dump.Dump) *Builder {
	b.err.Dump = d
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, value any, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Value:  value,
		Detail: fmt.Sprintf("value %s is not %s", describe(value), want),
	}
}

// OutOfRange creates an out of range error naming the permitted range
func OutOfRange(phase Phase, value any, format, permitted string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Type:   format,
		Value:  value,
		Detail: fmt.Sprintf("value %v out of range, permitted %s", value, permitted),
	}
}

// LengthMismatch creates a length mismatch error
func LengthMismatch(phase Phase, expected, actual int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLengthMismatch,
		Value:  actual,
		Detail: fmt.Sprintf("expected length %d, got %d", expected, actual),
	}
}

// InsufficientBytes creates an insufficient bytes error
func InsufficientBytes(need, have int) *Error {
	return &Error{
		Phase:  PhaseUnpack,
		Kind:   KindInsufficientBytes,
		Detail: fmt.Sprintf("%d too few bytes, needed %d, only %d available", need-have, need, have),
	}
}

// ExcessBytes creates an excess bytes error
func ExcessBytes(extra int) *Error {
	return &Error{
		Phase:  PhaseUnpack,
		Kind:   KindExcessBytes,
		Value:  extra,
		Detail: fmt.Sprintf("%d unconsumed bytes", extra),
	}
}

// InvalidValue creates an invalid value error naming the accepted set
func InvalidValue(value any, format, accepted string) *Error {
	return &Error{
		Phase:  PhaseUnpack,
		Kind:   KindInvalidValue,
		Type:   format,
		Value:  value,
		Detail: fmt.Sprintf("%v is not a valid value, accepted %s", value, accepted),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Declaration creates a declaration error for the named type
func Declaration(kind Kind, typeName string, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   kind,
		Type:   typeName,
		Detail: detail,
	}
}

// OverlappingField creates an overlapping bit-field declaration error
func OverlappingField(typeName, a, b string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindOverlappingField,
		Type:   typeName,
		Path:   []string{a},
		Value:  []string{a, b},
		Detail: fmt.Sprintf("bit-field %q overlaps bit-field %q", a, b),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsPack reports whether err is a pack failure.
func IsPack(err error) bool {
	e, ok := As(err)
	return ok && e.Phase == PhasePack
}

// IsUnpack reports whether err is an unpack failure.
func IsUnpack(err error) bool {
	e, ok := As(err)
	return ok && e.Phase == PhaseUnpack
}

// IsDeclaration reports whether err is a type declaration failure.
func IsDeclaration(err error) bool {
	e, ok := As(err)
	return ok && e.Phase == PhaseDeclare
}

// Retryable reports whether repeating the operation with more bytes may
// succeed. Only insufficient_bytes qualifies.
func Retryable(err error) bool {
	return HasKind(err, KindInsufficientBytes)
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%v (%T)", v, v)
}
