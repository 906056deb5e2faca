// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/luthersystems/bsl/analysis"
	"github.com/luthersystems/bsl/workspace"
	"github.com/spf13/cobra"
)

func (c *cli) analyzeCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze [flags] DIR",
		Short: "Build the call graph of a module dump",
		Long: `Build the call graph of a module dump.

Every module is preprocessed and parsed for the managed and the ordinary
application.  Calls are resolved against the registry of declared
procedures and functions, and bare calls to common module functions are
qualified with the module name.  A summary per variant is printed unless
--json is given.

Examples:
  bsl analyze ./dump
  bsl analyze --json ./dump > graph.json
  bsl analyze --fail-fast=false --exclude-area Тесты ./dump`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := c.analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return analysis.WriteJSON(c.stdout, ac.Results()...)
			}
			return writeSummary(c.stdout, ac)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the registry and call graph as JSON.")
	return cmd
}

// analyze runs the pipeline over dir and reports warnings.  Failures are
// rendered and returned as an exitError.
func (c *cli) analyze(ctx context.Context, dir string) (*analysis.Context, error) {
	d, err := workspace.Open(dir, c.workspaceOptions())
	if err != nil {
		return nil, usageError(err)
	}
	return c.analyzeSource(ctx, d)
}

func (c *cli) analyzeSource(ctx context.Context, src workspace.Source) (*analysis.Context, error) {
	ac, err := analysis.Run(ctx, src, c.analysisOptions())
	if err != nil {
		return nil, c.reportFailure(err)
	}
	if err := c.report(unitDiagnostics(ac)); err != nil {
		return nil, err
	}
	return ac, nil
}

func writeSummary(w io.Writer, ac *analysis.Context) error {
	for _, r := range ac.Results() {
		_, n := r.Rewritten()
		_, err := fmt.Fprintf(w, "%s: %d modules, %d functions, %d edges, %d calls rewritten\n",
			r.Variant, len(r.Units), r.Registry.Len(), r.Graph.Len(), n)
		if err != nil {
			return err
		}
	}
	return nil
}
