package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/schema"
)

func newTypesCmd(opts *options) *cobra.Command {
	var builtins bool
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the types declared by the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.registry()
			if err != nil {
				printError(cmd.ErrOrStderr(), "schema", err)
				return err
			}
			names := r.Names()
			if builtins {
				names = append(names, schema.Builtins()...)
			}

			tbl := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "SIZE", "VALUES")
			if !color.NoColor {
				tbl.StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return lipgloss.NewStyle()
				})
			}
			for _, name := range names {
				t, ok := r.Lookup(name)
				if !ok {
					// array and optional need an element type
					continue
				}
				tbl.Row(name, sizeString(t), t.Hint())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&builtins, "builtins", false, "also list builtin types")
	return cmd
}

func sizeString(t plum.Transform) string {
	if n := t.Size(); n >= 0 {
		return strconv.Itoa(n)
	}
	return "variable"
}
