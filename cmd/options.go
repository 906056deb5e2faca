// Copyright © 2024 The ELPS authors

package cmd

import (
	"io"

	"github.com/luthersystems/bsl/analysis"
	"github.com/luthersystems/bsl/workspace"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Option configures NewCommand.
type Option func(*cli)

// WithOutput redirects the standard output and error of the commands.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *cli) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithViper makes the commands read settings from v.  Flags are bound to v.
func WithViper(v *viper.Viper) Option {
	return func(c *cli) { c.v = v }
}

// Configuration keys and the flags bound to them.
const (
	keyExcludeAreas  = "exclude_areas"
	keyRetain        = "retain"
	keyDirectives    = "directives"
	keyGlobalModules = "global_modules"
	keyOrdinaryForms = "ordinary_forms"
	keyExclude       = "exclude"
	keyParallel      = "parallel"
	keyFailFast      = "fail_fast"
	keyStrict        = "strict"
)

func (c *cli) addAnalysisFlags(flags *pflag.FlagSet) {
	flags.StringSlice("exclude-area", nil, "Drop the #Область regions with this name (may be repeated).")
	flags.StringSlice("retain", nil, "Keep #Если blocks testing this symbol for the parser (may be repeated).")
	flags.StringSlice("directive", nil, "Register only functions with this compilation directive or none.")
	flags.StringSlice("global-module", nil, "Common module whose exports may be called unqualified.")
	flags.StringSlice("ordinary-form", nil, "Glob over <Object>.<Form> names of ordinary forms.")
	flags.StringSlice("exclude", nil, "Glob over file names to skip (may be repeated).")
	flags.Int("parallel", 0, "Modules processed concurrently (default: GOMAXPROCS).")
	flags.Bool("fail-fast", true, "Stop at the first module that fails.")
	flags.Bool("strict", false, "Fail on characters the lexer does not recognize.")

	bind := map[string]string{
		keyExcludeAreas:  "exclude-area",
		keyRetain:        "retain",
		keyDirectives:    "directive",
		keyGlobalModules: "global-module",
		keyOrdinaryForms: "ordinary-form",
		keyExclude:       "exclude",
		keyParallel:      "parallel",
		keyFailFast:      "fail-fast",
		keyStrict:        "strict",
	}
	for key, name := range bind {
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}
}

func (c *cli) analysisOptions() *analysis.Options {
	opts := analysis.DefaultOptions()
	opts.ExcludeAreas = c.v.GetStringSlice(keyExcludeAreas)
	opts.Retain = c.v.GetStringSlice(keyRetain)
	opts.Directives = c.v.GetStringSlice(keyDirectives)
	opts.GlobalModules = c.v.GetStringSlice(keyGlobalModules)
	opts.Parallel = c.v.GetInt(keyParallel)
	opts.CollectErrors = !c.v.GetBool(keyFailFast)
	opts.Strict = c.v.GetBool(keyStrict)
	opts.Logger = c.log
	return opts
}

func (c *cli) workspaceOptions() *workspace.Options {
	return &workspace.Options{
		OrdinaryForms: c.v.GetStringSlice(keyOrdinaryForms),
		Exclude:       c.v.GetStringSlice(keyExclude),
	}
}
