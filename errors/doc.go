// Package errors provides structured error types for the plum library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the access path of the failing field, its byte offset,
// the format name, and, for pack and unpack failures, the diagnostic dump
// accumulated up to the point of failure.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseUnpack, errors.KindInsufficientBytes).
//		Path("header", "length").
//		Type("uint16").
//		Detail("need 2 bytes, have 1").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfRange(errors.PhasePack, 300, "uint8", "0..255")
//	err := errors.LengthMismatch(errors.PhasePack, 2, 3)
//
// Pack, unpack and declaration failures are all *Error values; the Phase
// tells them apart. All errors implement the standard error interface and
// support errors.Is/As.
package errors
