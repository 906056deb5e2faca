// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/luthersystems/bsl/analysis"
	"github.com/luthersystems/bsl/store"
	"github.com/spf13/cobra"
)

func (c *cli) exportCommand() *cobra.Command {
	var (
		format  string
		out     string
		variant string
	)
	cmd := &cobra.Command{
		Use:   "export [flags] DIR",
		Short: "Write the call graph of a module dump",
		Long: `Write the call graph of a module dump.

Formats:
  json    registry and call sites of every variant
  dot     Graphviz digraph per variant; edges are labelled with call counts
  sqlite  append a run to the database at --out and print its id

Output goes to stdout unless --out is given.  The sqlite format requires
--out.

Examples:
  bsl export --format dot --variant managed ./dump | dot -Tsvg > graph.svg
  bsl export --format sqlite --out graph.db ./dump`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results func(*analysis.Context) []*analysis.Result
			switch variant {
			case "":
				results = (*analysis.Context).Results
			default:
				v, ok := analysis.ParseVariant(variant)
				if !ok {
					return usageError(fmt.Errorf("unknown variant %q", variant))
				}
				results = func(ac *analysis.Context) []*analysis.Result {
					return []*analysis.Result{ac.Result(v)}
				}
			}
			switch format {
			case "json", "dot":
			case "sqlite":
				if out == "" || out == "-" {
					return usageError(fmt.Errorf("--format sqlite requires --out"))
				}
			default:
				return usageError(fmt.Errorf("unknown format %q", format))
			}

			ac, err := c.analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format == "sqlite" {
				return c.exportSQLite(cmd, out, args[0], ac)
			}
			return c.writeOutput(out, func(w io.Writer) error {
				if format == "json" {
					return analysis.WriteJSON(w, results(ac)...)
				}
				for _, r := range results(ac) {
					if err := analysis.WriteDOT(w, r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", `Output format: "json", "dot", or "sqlite".`)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout).")
	cmd.Flags().StringVar(&variant, "variant", "", `Export one variant: "managed" or "ordinary".`)
	return cmd
}

func (c *cli) exportSQLite(cmd *cobra.Command, path, root string, ac *analysis.Context) error {
	s, err := store.Open(path)
	if err != nil {
		return usageError(err)
	}
	defer s.Close()
	id, err := s.Save(cmd.Context(), root, ac)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	c.log.Debug("saved run", "path", path, "run", id)
	_, err = fmt.Fprintln(c.stdout, id)
	return err
}

// writeOutput calls write with stdout or the created file path.
func (c *cli) writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(c.stdout)
	}
	f, err := os.Create(path) //nolint:gosec // CLI tool writes user-specified files
	if err != nil {
		return usageError(err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
