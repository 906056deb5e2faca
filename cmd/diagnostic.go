// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/luthersystems/bsl/analysis"
	"github.com/luthersystems/bsl/diagnostic"
	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/rdparser"
	"github.com/luthersystems/bsl/parser/token"
	"github.com/luthersystems/bsl/preproc"
)

func (c *cli) newRenderer() (*diagnostic.Renderer, error) {
	mode, err := diagnostic.ParseColorMode(c.color)
	if err != nil {
		return nil, usageError(err)
	}
	return &diagnostic.Renderer{Color: mode}, nil
}

// report renders diagnostics to stderr.
func (c *cli) report(diags []diagnostic.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	r, err := c.newRenderer()
	if err != nil {
		return err
	}
	return r.RenderAll(c.stderr, diags)
}

// reportFailure renders err and returns the error that ends the command
// with exit code 1.
func (c *cli) reportFailure(err error) error {
	if rerr := c.report(errorDiagnostics(err)); rerr != nil {
		return rerr
	}
	return failed
}

// errorDiagnostics converts an error, which may join the failures of many
// modules, to diagnostics.
func errorDiagnostics(err error) []diagnostic.Diagnostic {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var diags []diagnostic.Diagnostic
		for _, err := range joined.Unwrap() {
			diags = append(diags, errorDiagnostics(err)...)
		}
		return diags
	}
	return []diagnostic.Diagnostic{errorDiagnostic(err)}
}

func errorDiagnostic(err error) diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  err.Error(),
	}
	var (
		merr *analysis.ModuleError
		perr *rdparser.ParseError
		derr *preproc.DirectiveError
		lerr *token.LocationError
	)
	if errors.As(err, &merr) {
		d.Message = merr.Err.Error()
		d.Notes = append(d.Notes, fmt.Sprintf("in module %v.%s (%v)", merr.Kind, merr.Name, merr.Variant))
	}
	switch {
	case errors.As(err, &perr):
		d.Message = perr.Condition + ": " + perr.Msg
		d.Spans = spanAt(perr.Source)
	case errors.As(err, &derr):
		d.Message = fmt.Sprintf("%v: %s", preproc.ErrMalformedDirective, derr.Msg)
		d.Spans = spanAt(derr.Source)
	case errors.As(err, &lerr):
		d.Message = lerr.Err.Error()
		d.Spans = spanAt(lerr.Source)
	case errors.Is(err, context.Canceled):
		d.Message = "interrupted"
	}
	return d
}

// lexDiagnostics converts skipped characters to warnings.  A character
// reported for several variants is reported once.
func lexDiagnostics(errs []*lexer.LexError) []diagnostic.Diagnostic {
	seen := make(map[string]bool)
	var diags []diagnostic.Diagnostic
	for _, lerr := range errs {
		key := lerr.Error()
		if seen[key] {
			continue
		}
		seen[key] = true
		diags = append(diags, diagnostic.Diagnostic{
			Severity: diagnostic.SeverityWarning,
			Message:  fmt.Sprintf("unexpected character %q", lerr.Char),
			Spans:    spanAt(lerr.Source),
			Notes:    []string{"the character was skipped; use --strict to make it an error"},
		})
	}
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Spans, diags[j].Spans
		if len(a) == 0 || len(b) == 0 {
			return len(a) < len(b)
		}
		if a[0].File != b[0].File {
			return a[0].File < b[0].File
		}
		if a[0].Line != b[0].Line {
			return a[0].Line < b[0].Line
		}
		return a[0].Col < b[0].Col
	})
	return diags
}

func unitDiagnostics(c *analysis.Context) []diagnostic.Diagnostic {
	var errs []*lexer.LexError
	for _, r := range c.Results() {
		for _, u := range r.Units {
			errs = append(errs, u.Diagnostics...)
		}
	}
	return lexDiagnostics(errs)
}

func spanAt(loc *token.Location) []diagnostic.Span {
	if loc == nil {
		return nil
	}
	file := loc.File
	if loc.Path != "" {
		file = loc.Path
	}
	return []diagnostic.Span{{File: file, Line: loc.Line, Col: loc.Col}}
}
