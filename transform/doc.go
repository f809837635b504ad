// Package transform provides the primitive and composite transforms.
//
// Primitive transforms cover integers of one to eight bytes, booleans,
// floats, enumerations, byte blobs, text strings and arrays. Composite
// transforms wrap other transforms: Sized adds a length prefix, Items packs
// heterogeneous tuples and keyed aggregates, Optional adds a presence tag.
//
// All transforms are immutable after construction and safe for concurrent
// use.
package transform
