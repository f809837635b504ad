package schema

import (
	"maps"
	"slices"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/transform"
)

var builtins = map[string]plum.Transform{
	"u8":      transform.Uint8,
	"s8":      transform.Sint8,
	"u16be":   transform.Uint16BE,
	"u16le":   transform.Uint16LE,
	"s16be":   transform.Sint16BE,
	"s16le":   transform.Sint16LE,
	"u32be":   transform.Uint32BE,
	"u32le":   transform.Uint32LE,
	"s32be":   transform.Sint32BE,
	"s32le":   transform.Sint32LE,
	"u64be":   transform.Uint64BE,
	"u64le":   transform.Uint64LE,
	"s64be":   transform.Sint64BE,
	"s64le":   transform.Sint64LE,
	"f32be":   transform.Float32BE,
	"f32le":   transform.Float32LE,
	"f64be":   transform.Float64BE,
	"f64le":   transform.Float64LE,
	"bool":    transform.Bool,
	"none":    transform.None,
	"ipv4":    transform.IPv4,
	"ipv6":    transform.IPv6,
	"bytes":   transform.GreedyBytes(),
	"str":     transform.UTF8,
	"ascii":   transform.ASCII,
	"latin1":  transform.Latin1,
	"cp1252":  transform.Windows1252,
	"utf16le": transform.UTF16LE,
	"utf16be": transform.UTF16BE,
	"zstr":    transform.ZeroTermUTF8,
	"zascii":  transform.ZeroTermASCII,
}

// Builtins lists the builtin type names.
func Builtins() []string {
	names := slices.Collect(maps.Keys(builtins))
	names = append(names, "array", "optional")
	slices.Sort(names)
	return names
}

// Builtin returns the builtin transform with the given name.
func Builtin(name string) (plum.Transform, bool) {
	t, ok := builtins[name]
	return t, ok
}

func intType(name string) (*transform.Int, bool) {
	t, ok := builtins[name].(*transform.Int)
	return t, ok
}
