package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/plum/bitfields"
	"github.com/wippyai/plum/dump"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/structure"
	"github.com/wippyai/plum/transform"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4"))

func tableOptions() dump.TableOptions {
	if color.NoColor {
		return dump.TableOptions{}
	}
	return dump.TableOptions{Header: func(s string) string { return headerStyle.Render(s) }}
}

// readInput decodes an argument: "-" reads stdin, "@path" reads a file and
// anything else is hex, optionally with 0x prefixes, spaces or colons.
func readInput(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	}
	return parseHex(arg)
}

func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", " ", "", ":", "", "\n", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

// plainValue converts unpacked values to maps, slices and scalars that
// encode cleanly as JSON and msgpack.
func plainValue(v any) any {
	switch x := v.(type) {
	case *structure.Struct:
		return plainValue(map[string]any(x.AsMap()))
	case *bitfields.Bits:
		return plainValue(x.AsMap())
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	case transform.EnumValue:
		return x.Name
	case []byte:
		return hex.EncodeToString(x)
	case netip.Addr:
		return x.String()
	}
	return v
}

// result is the outcome of one unpacked input.
type result struct {
	Value any        `json:"value,omitempty" msgpack:"value,omitempty"`
	Dump  *dump.Dump `json:"-" msgpack:"-"`
	Err   error      `json:"-" msgpack:"-"`
	Input string     `json:"input" msgpack:"input"`
	Error string     `json:"error,omitempty" msgpack:"error,omitempty"`
}

func writeResults(w, errw io.Writer, format string, results []result) error {
	for i := range results {
		results[i].Value = plainValue(results[i].Value)
		if err := results[i].Err; err != nil {
			results[i].Error = err.Error()
			if e, ok := errors.As(err); ok {
				results[i].Error = e.Summary()
			}
		}
	}

	switch format {
	case "table":
		for _, r := range results {
			fmt.Fprintf(w, "%s\n", r.Input)
			if r.Err != nil {
				printError(errw, r.Input, r.Err)
				continue
			}
			fmt.Fprintln(w, r.Dump.Table(tableOptions()))
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "msgpack":
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(results)
	}
	return fmt.Errorf("unknown output format %q, want table, json or msgpack", format)
}
