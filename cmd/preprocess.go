// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io"

	"github.com/luthersystems/bsl/analysis"
	"github.com/luthersystems/bsl/preproc"
	"github.com/spf13/cobra"
)

func (c *cli) preprocessCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "preprocess [flags] FILE...",
		Short: "Print module files specialized for a target",
		Long: `Print module files specialized for a target.

The target is a variant ("managed" or "ordinary") or a platform symbol
(ТонкийКлиент, ТолстыйКлиентОбычноеПриложение or their English names).
Dropped text is replaced by its newlines, so line numbers are preserved.

Examples:
  bsl preprocess ОбщийМодуль.Общий.Модуль.txt
  bsl preprocess --target ordinary --exclude-area Тесты Модуль.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(target)
			if err != nil {
				return usageError(err)
			}
			files, err := expandArgs(args, c.v.GetStringSlice(keyExclude))
			if err != nil {
				return usageError(err)
			}
			pp := preproc.New(t, &preproc.Options{
				ExcludeAreas: c.v.GetStringSlice(keyExcludeAreas),
				Retain:       c.v.GetStringSlice(keyRetain),
			})
			for _, path := range files {
				text, err := readModule(path)
				if err != nil {
					return usageError(err)
				}
				out, err := pp.Execute(path, text)
				if err != nil {
					return c.reportFailure(err)
				}
				if _, err := io.WriteString(c.stdout, out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "managed", "Variant or platform symbol to specialize for.")
	return cmd
}

func parseTarget(s string) (preproc.Target, error) {
	if v, ok := analysis.ParseVariant(s); ok {
		return v.Target(), nil
	}
	if t, ok := preproc.ParseTarget(s); ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown target %q", s)
}
