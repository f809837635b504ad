// Package witschema derives transforms from WebAssembly Interface Type
// definitions.
//
// The derived layout is a packed little-endian rendition of the WIT type,
// not the canonical ABI memory layout: there is no alignment padding,
// strings and lists carry a u32 length prefix and variants a minimal
// discriminant. It suits wire formats and snapshots that describe their
// payloads with WIT.
//
//	c := witschema.NewCompiler()
//	t, err := c.Compile(typeDef)
//	b, err := plum.Pack(t, value)
//
// Records become *structure.Type values, so unpacked records are
// *structure.Struct instances with the WIT field names.
package witschema
