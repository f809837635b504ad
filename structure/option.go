package structure

import (
	"github.com/wippyai/plum"
	"github.com/wippyai/plum/bitfields"
)

// Fields maps member names to values.
type Fields = map[string]any

// Option configures a member declaration.
type Option func(*memberSpec)

// Default sets the value a new instance starts with.
func Default(v any) Option {
	return func(s *memberSpec) {
		s.def = v
		s.hasDef = true
	}
}

// DefaultFunc derives the value at pack time when none was set.
func DefaultFunc(fn func(*Struct) (any, error)) Option {
	return func(s *memberSpec) { s.defFunc = fn }
}

// Ignore excludes the member from equality.
func Ignore() Option {
	return func(s *memberSpec) { s.ignore = true }
}

// ReadOnly rejects Set after construction.
func ReadOnly() Option {
	return func(s *memberSpec) { s.readOnly = true }
}

// Compute marks a controller whose value is always derived from the member
// it controls unless set explicitly. Computed members are ignored in
// equality.
func Compute() Option {
	return func(s *memberSpec) {
		s.compute = true
		s.ignore = true
	}
}

// FormatFunc selects the member's transform from the values of earlier
// members.
func FormatFunc(fn func(*Struct) (plum.Transform, error)) Option {
	return func(s *memberSpec) { s.formatFunc = fn }
}

// Ratio sets the bytes per size unit of a sized member.
func Ratio(n int) Option {
	return func(s *memberSpec) {
		s.ratio = n
		s.sizeOpts = true
	}
}

// SizeOffset is added to the size value of a sized member.
func SizeOffset(n int) Option {
	return func(s *memberSpec) {
		s.sizeOffset = n
		s.sizeOpts = true
	}
}

// OnSet replaces the automatic controller invalidation of a sized or
// dimmed member. fn runs after the value is stored.
func OnSet(fn func(*Struct, any) error) Option {
	return func(s *memberSpec) { s.onSet = fn }
}

// LSB positions a bit-field member within its group.
func LSB(n int) Option {
	return func(s *memberSpec) {
		s.lsb = n
		s.bitOpts = true
	}
}

// NBytes sets the width of the bit-field group the member belongs to.
func NBytes(n int) Option {
	return func(s *memberSpec) {
		s.nbytes = n
		s.bitOpts = true
	}
}

// As selects the kind of a bit-field member.
func As(k bitfields.Kind) Option {
	return func(s *memberSpec) {
		s.kind = k
		s.bitOpts = true
	}
}

// NewGroup starts a new bit-field group at this member.
func NewGroup() Option {
	return func(s *memberSpec) {
		s.newGroup = true
		s.bitOpts = true
	}
}
