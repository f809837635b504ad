// Package schema declares enums, bit-field types and structures from TOML
// documents.
//
//	[[enum]]
//	name = "Kind"
//	base = "u8"
//	values = { data = 1, ack = 2 }
//
//	[[bitfields]]
//	name = "Flags"
//	nbytes = 1
//	  [[bitfields.field]]
//	  name = "urgent"
//	  bits = 1
//	  kind = "bool"
//
//	[[structure]]
//	name = "Packet"
//	  [[structure.member]]
//	  name = "kind"
//	  type = "Kind"
//	  [[structure.member]]
//	  name = "len"
//	  type = "u16be"
//	  compute = true
//	  [[structure.member]]
//	  name = "body"
//	  type = "bytes"
//	  size = "len"
//
// Member types are builtin names (u8, s16le, f32be, bytes, str, zstr, ipv4,
// array and the like, see Builtins) or names declared earlier in the
// document. Enums are declared first, then bit-field types, then
// structures in document order.
package schema
