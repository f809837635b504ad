package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/plum"
)

func newPackCmd(opts *options) *cobra.Command {
	var (
		typeName string
		value    string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "pack --type T --json VALUE",
		Short: "Pack a JSON value and print the bytes and their dump",
		Long: `Pack a JSON value with the named type. Objects fill structure members and
bit-fields by name; strings prefixed with "hex:" become raw bytes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.lookup(typeName)
			if err != nil {
				printError(cmd.ErrOrStderr(), "schema", err)
				return err
			}
			v, err := decodeJSON(value)
			if err != nil {
				return err
			}
			b, d, err := plum.PackDump(t, v)
			if err != nil {
				printError(cmd.ErrOrStderr(), typeName, err)
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, hex.EncodeToString(b))
			if !quiet {
				fmt.Fprintln(out, d.Table(tableOptions()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "type to pack")
	cmd.Flags().StringVar(&value, "json", "", "value as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the hex bytes")
	return cmd
}

// decodeJSON decodes s keeping integers exact.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid --json value: %w", err)
	}
	return fromJSON(v)
}

func fromJSON(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		if n, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return n, nil
		}
		return x.Float64()
	case string:
		if rest, ok := strings.CutPrefix(x, "hex:"); ok {
			return parseHex(rest)
		}
		return x, nil
	case map[string]any:
		for k, e := range x {
			nv, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			x[k] = nv
		}
		return x, nil
	case []any:
		for i, e := range x {
			nv, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			x[i] = nv
		}
		return x, nil
	}
	return v, nil
}
