package main

import (
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/plum"
)

func newUnpackCmd(opts *options) *cobra.Command {
	var (
		typeName string
		output   string
		jobs     int
	)
	cmd := &cobra.Command{
		Use:   "unpack --type T INPUT...",
		Short: "Unpack inputs and print their dumps",
		Long: `Unpack each input with the named type. An input is hex, @file or - for
stdin. Inputs are unpacked concurrently and printed in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.lookup(typeName)
			if err != nil {
				printError(cmd.ErrOrStderr(), "schema", err)
				return err
			}

			results := make([]result, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(1, min(jobs, len(args))))
			for i, arg := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					results[i] = unpackInput(t, arg, cmd.InOrStdin())
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := writeResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), output, results); err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					return r.Err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "type to unpack")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table|json|msgpack)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "inputs unpacked at once")
	return cmd
}

func unpackInput(t plum.Transform, arg string, stdin io.Reader) result {
	r := result{Input: arg}
	b, err := readInput(arg, stdin)
	if err != nil {
		r.Err = err
		return r
	}
	r.Value, r.Dump, r.Err = plum.UnpackDump(t, b)
	return r
}
