// Copyright © 2024 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/luthersystems/bsl/workspace"
	"github.com/spf13/cobra"
)

func (c *cli) watchCommand() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [flags] DIR",
		Short: "Re-analyze a module dump whenever its modules change",
		Long: `Re-analyze a module dump whenever its modules change.

The dump is analyzed once, then again after each burst of changes to its
module files.  A summary is printed after each analysis and failures are
reported without stopping the watch.  Interrupt to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := workspace.Open(args[0], c.workspaceOptions())
			if err != nil {
				return usageError(err)
			}
			analyze := func() {
				ac, err := c.analyzeSource(ctx, d)
				var xerr *exitError
				switch {
				case err == nil:
					_ = writeSummary(c.stdout, ac)
				case errors.As(err, &xerr) && xerr.err == nil:
				default:
					fmt.Fprintf(c.stderr, "bsl: %v\n", err)
				}
			}
			analyze()
			w, err := d.NewWatcher(debounce, c.log, func(paths []string) {
				c.log.Debug("modules changed", "paths", paths)
				fmt.Fprintf(c.stdout, "%d modules changed\n", len(paths))
				analyze()
			})
			if err != nil {
				return usageError(err)
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", workspace.DefaultDebounce,
		"Quiet period after a change before analyzing.")
	return cmd
}
