// Package bitfields declares fixed-width integer types whose bits are
// partitioned into named fields.
//
// A declared *Type is a plum.Transform. It packs *Bits values, maps of field
// values or plain integers, and unpacks to *Bits:
//
//	flags := bitfields.Declare("Flags").
//		Field("a", 3, bitfields.LSB(0)).
//		Field("b", 5, bitfields.LSB(3)).
//		MustBuild()
//
//	b, _ := plum.Pack(flags, map[string]any{"a": 3, "b": 10}) // 0x53
//
// Unpositioned fields are placed contiguously in declaration order starting
// at bit 0, or from the top of the integer with FieldOrder(MostToLeast).
package bitfields
