// Copyright © 2018 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/luthersystems/bsl/diagnostic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const rootLong = `bsl analyzes a directory of 1C:Enterprise module dumps.  It preprocesses
each module for the managed and ordinary application, parses it, builds the
registry of declared procedures and functions, resolves every call site and
qualifies bare calls to common module functions.

Getting started:
  bsl analyze ./dump                 Print a summary per variant
  bsl analyze --json ./dump          Print the call graph as JSON
  bsl export --format dot ./dump     Write the call graph for Graphviz
  bsl export --format sqlite --out graph.db ./dump
  bsl watch ./dump                   Re-analyze when modules change
  bsl tokens Module.txt              Dump the tokens of a module
  bsl preprocess --target ordinary Module.txt

Module files are named as the configurator dumps them:
  Конфигурация.МодульУправляемогоПриложения.txt
  ОбщийМодуль.<Name>.Модуль.txt
  <Type>.<Object>.Форма.<Form>.Форма.Модуль.txt

Settings are read from flags, BSL_* environment variables and the config
file ($HOME/.bsl.yaml unless --config is given).  Keys: exclude_areas,
retain, directives, global_modules, ordinary_forms, exclude, parallel,
fail_fast, strict.

Exit codes:
  0  Success
  1  A module failed to preprocess or parse
  2  Bad invocation (invalid flags, unreadable input)`

// cli holds the state shared by the commands of one root command.
type cli struct {
	v       *viper.Viper
	cfgFile string
	color   string
	verbose bool
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	log     *slog.Logger
}

// NewCommand returns the bsl root command.
func NewCommand(opts ...Option) *cobra.Command {
	c := &cli{
		v:      viper.New(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	root := &cobra.Command{
		Use:           "bsl",
		Short:         "bsl - call graph analysis for 1C:Enterprise modules",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.bsl.yaml)")
	flags.StringVar(&c.color, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log debug messages to stderr.")
	c.addAnalysisFlags(flags)

	root.AddCommand(
		c.analyzeCommand(),
		c.exportCommand(),
		c.watchCommand(),
		c.tokensCommand(),
		c.preprocessCommand(),
	)
	return root
}

// Execute runs the bsl command line and exits the process.  This is called
// by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, NewCommand(), os.Args[1:])
	stop()
	os.Exit(code)
}

// run executes root with args and returns the process exit code.
func run(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var xerr *exitError
	if errors.As(err, &xerr) {
		if xerr.err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "bsl: %v\n", xerr.err)
		}
		return xerr.code
	}
	fmt.Fprintf(root.ErrOrStderr(), "bsl: %v\n", err)
	return 2
}

// exitError ends the process with code.  A nil err means the failure was
// already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// usageError reports a bad invocation.
func usageError(err error) error {
	return &exitError{code: 2, err: err}
}

// failed reports that diagnostics were already rendered.
var failed = &exitError{code: 1}

// initConfig reads in config file and ENV variables if set.
func (c *cli) initConfig() error {
	if _, err := diagnostic.ParseColorMode(c.color); err != nil {
		return usageError(err)
	}
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.log = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))

	if c.cfgFile != "" {
		// Use config file from the flag.
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			// Search config in home directory with name ".bsl" (without extension).
			c.v.AddConfigPath(home)
			c.v.SetConfigName(".bsl")
		}
	}

	c.v.SetEnvPrefix("BSL")
	c.v.AutomaticEnv() // read in environment variables that match

	err := c.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		c.log.Debug("using config file", "path", c.v.ConfigFileUsed())
	case c.cfgFile == "" && errors.As(err, &notFound):
	default:
		return usageError(fmt.Errorf("config: %w", err))
	}
	return nil
}
