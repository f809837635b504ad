// Package structure declares record types whose members are packed in
// declaration order.
//
// A type is declared once with a Builder and then used like any other
// transform:
//
//	header := structure.Declare("Header").
//		Member("tag", transform.Uint8).
//		Member("len", transform.Uint16BE).
//		Sized("payload", transform.GreedyBytes(), "len").
//		MustBuild()
//
//	b, _ := header.MustNew(structure.Fields{"tag": 1, "payload": []byte("hi")}).Pack()
//	// b == 01 00 02 68 69
//
// Build resolves offsets, groups bit-field members into shared integers and
// wires controllers (members carrying another member's size or dimensions)
// to the members they control. When a controller has no value at pack time
// it is computed from the controlled member once that member is packed; an
// explicit value is always kept.
//
// Types are immutable after Build and safe for concurrent use. *Struct
// instances are not.
package structure
