// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/token"
	"github.com/spf13/cobra"
)

func (c *cli) tokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [flags] FILE...",
		Short: "Print the tokens of module files",
		Long: `Print the tokens of module files, one per line as LOCATION TYPE TEXT.

Characters the lexer does not recognize are reported and skipped unless
--strict is given, in which case the first one ends the file's tokens with
an ERROR token and the command fails.  A DIR/... argument expands to the
module files below DIR.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expandArgs(args, c.v.GetStringSlice(keyExclude))
			if err != nil {
				return usageError(err)
			}
			var opts []lexer.Option
			if c.v.GetBool(keyStrict) {
				opts = append(opts, lexer.Strict())
			}
			ok := true
			for _, path := range files {
				text, err := readModule(path)
				if err != nil {
					return usageError(err)
				}
				lex := lexer.New(token.NewScanner(path, text), opts...)
				for {
					tok := lex.ReadToken()
					if _, err := fmt.Fprintf(c.stdout, "%v\t%v\t%q\n", tok.Source, tok.Type, tok.Text); err != nil {
						return err
					}
					if tok.Type == token.ERROR {
						ok = false
					}
					if tok.Type == token.EOF || tok.Type == token.ERROR {
						break
					}
				}
				if err := c.report(lexDiagnostics(lex.Diagnostics())); err != nil {
					return err
				}
			}
			if !ok {
				return failed
			}
			return nil
		},
	}
}

// readModule returns the text of a module file without its byte order mark.
func readModule(path string) (string, error) {
	b, err := os.ReadFile(path) //nolint:gosec // CLI tool reads user-specified files
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(string(b), "\ufeff"), nil
}
