// Package view provides in-place field access over borrowed buffers.
//
// A View never owns its buffer. Writes through a view mutate the caller's
// bytes directly, and casting a view reinterprets the same bytes as another
// type. Views perform no locking; callers sharing a buffer between
// goroutines must synchronize access themselves.
//
//	v, _ := view.New(header, buf, 0)
//	length, _ := v.Field("len")
//	_ = length.Set(42) // buf is updated in place
//
// Views over WebAssembly linear memory alias the guest memory. They become
// invalid when the memory grows.
package view
