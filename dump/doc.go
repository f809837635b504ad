// Package dump records byte provenance for pack and unpack operations.
//
// Every transform that receives a non-nil *Record fills it with the access
// segment, a value representation, the raw bytes it produced or consumed and
// its format name. Composite transforms add one child per contained value.
// Concatenating the Raw bytes of the records in traversal order reproduces
// the packed or unpacked bytes exactly; a record that carries Raw bytes is
// not descended for bytes, which lets bit-field records keep per-field
// children next to the shared group bytes.
//
// A Dump renders as a table with one row per record:
//
//	+--------+-------------+-------+-------+--------+
//	| Offset | Access      | Value | Bytes | Format |
//	+--------+-------------+-------+-------+--------+
//	| 0      | tag         | 1     | 01    | uint8  |
//	| 1      | len         | 2     | 00 02 | uint16 |
//	+--------+-------------+-------+-------+--------+
package dump
