// Package plum provides declarative binary structure and bit-field marshalling.
//
// A Transform converts Go values to bytes and back. Primitive transforms
// (integers, enumerations, byte blobs, text strings, arrays) live in the
// transform package; declared record types are built by the structure and
// bitfields packages and are themselves Transforms, so they nest freely.
//
// # Architecture Overview
//
//	plum/            Transform protocol, Reader/Writer cursors, Pack/Unpack
//	├── dump/        Byte-provenance records and the diagnostic table
//	├── errors/      Structured error types with access path and dump
//	├── transform/   Primitive and composite transforms
//	├── bitfields/   Declared bit-field integer types
//	├── structure/   Declared record types with controller wiring
//	├── view/        In-place field access over borrowed buffers
//	├── witschema/   Transforms derived from WIT type definitions
//	├── schema/      Types declared in TOML schema files
//	└── cmd/plumdump Command line pack/unpack/dump tool
//
// # Quick Start
//
//	hdr := structure.Declare("Header").
//		Member("tag", transform.Uint8).
//		Member("len", transform.Uint16BE, structure.Compute()).
//		Sized("payload", transform.GreedyBytes(), "len").
//		MustBuild()
//
//	b, err := plum.Pack(hdr, hdr.New(structure.Fields{"tag": 1, "payload": []byte("hi")}))
//	// b == 01 00 02 68 69
//
//	v, err := plum.Unpack(hdr, b)
//
// # Two-Pass Error Reporting
//
// Pack and Unpack first run without diagnostics. When that fails they repeat
// the operation while recording a dump.Dump and return an *errors.Error whose
// access path and byte offset identify the failing field. PackDump and
// UnpackDump always record.
//
// # Concurrency
//
// Built types are immutable and safe for concurrent use on distinct buffers.
// Type declaration is expected to happen once during initialization.
package plum
