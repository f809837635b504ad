// Command plumdump packs and unpacks binary data described by a TOML schema
// and prints the byte provenance of every value.
//
//	plumdump types   --schema packet.toml
//	plumdump unpack  --schema packet.toml --type Packet 0200020161 @capture.bin
//	plumdump pack    --schema packet.toml --type Packet --json '{"kind":"ack","body":"hi"}'
//	plumdump inspect --schema packet.toml
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/schema"
)

type options struct {
	schema  string
	color   string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "plumdump",
		Short:         "Pack and unpack binary data described by a schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				plum.SetLogger(l)
			}
			color.NoColor = !opts.useColor(cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = plum.Logger().Sync()
		},
	}
	root.PersistentFlags().StringVar(&opts.schema, "schema", "", "TOML schema file")
	root.PersistentFlags().StringVar(&opts.color, "color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log type declarations")

	root.AddCommand(newTypesCmd(opts))
	root.AddCommand(newUnpackCmd(opts))
	root.AddCommand(newPackCmd(opts))
	root.AddCommand(newInspectCmd(opts))
	return root
}

func (o *options) useColor(w io.Writer) bool {
	switch o.color {
	case "on":
		return true
	case "off":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// registry loads the schema, or an empty registry of builtins when no
// schema was given.
func (o *options) registry() (*schema.Registry, error) {
	if o.schema == "" {
		return schema.Parse(nil)
	}
	return schema.Load(o.schema)
}

func (o *options) lookup(name string) (plum.Transform, error) {
	if name == "" {
		return nil, fmt.Errorf("--type is required")
	}
	r, err := o.registry()
	if err != nil {
		return nil, err
	}
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("type %q is not declared in %s", name, o.schemaName())
	}
	return t, nil
}

func (o *options) schemaName() string {
	if o.schema == "" {
		return "the builtin types"
	}
	return o.schema
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	pathColor = color.New(color.FgYellow)
)

// printError writes the one-line summary in color followed by the dump
// table when the error carries one.
func printError(w io.Writer, label string, err error) {
	e, ok := errors.As(err)
	if !ok {
		errColor.Fprintf(w, "%s: %v\n", label, err)
		return
	}
	errColor.Fprintf(w, "%s: [%s] %s", label, e.Phase, e.Kind)
	if len(e.Path) > 0 {
		fmt.Fprint(w, " at ")
		pathColor.Fprint(w, e.PathString())
	}
	if e.HasOffset {
		fmt.Fprintf(w, " (offset %d)", e.Offset)
	}
	if e.Detail != "" {
		fmt.Fprintf(w, ": %s", e.Detail)
	}
	fmt.Fprintln(w)
	if e.Dump != nil && len(e.Dump.Records) > 0 {
		fmt.Fprintln(w, e.Dump.Table(tableOptions()))
	}
}
