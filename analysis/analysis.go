// Copyright © 2024 The ELPS authors

// Package analysis builds the call graph of a configuration.
//
// Run loads every module, preprocesses and parses it once for each platform
// variant the module is compiled for, registers the declared procedures and
// functions, and resolves the calls between them.  Every module must parse
// before any call is resolved.  Finally bare calls of common module functions
// are rewritten in place into their qualified form Модуль.Ф().
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/astutil"
	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/preproc"
	"github.com/luthersystems/bsl/workspace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrRewritten is returned when the calls of a Result are rewritten twice.
var ErrRewritten = errors.New("call sites are already rewritten")

// CallExtractor finds the call sites in a procedure body.
type CallExtractor interface {
	Calls(tree *ast.Tree, body ast.NodeID) []astutil.Call
}

// CallExtractorFunc implements CallExtractor.
type CallExtractorFunc func(tree *ast.Tree, body ast.NodeID) []astutil.Call

// Calls implements CallExtractor.
func (fn CallExtractorFunc) Calls(tree *ast.Tree, body ast.NodeID) []astutil.Call {
	return fn(tree, body)
}

// Options control a Run.
type Options struct {
	// ExcludeAreas names the #Область regions dropped with their content.
	ExcludeAreas []string
	// Retain lists preprocessor symbols whose conditional blocks are kept
	// verbatim for the parser.
	Retain []string
	// Directives, when not empty, restricts the registry to functions
	// without a compilation directive or with one of the listed directives.
	Directives []string
	// GlobalModules are common modules whose exported functions may be
	// called without qualification from any module.
	GlobalModules []string
	// Parallel bounds the modules parsed or rewritten concurrently.  Zero
	// means GOMAXPROCS.
	Parallel int
	// CollectErrors reports every module failure instead of stopping at the
	// first one.  No result is produced in either case.
	CollectErrors bool
	// Strict makes an unrecognized character a parse failure.
	Strict bool
	// SkipRewrite leaves call sites unqualified.  Result.Rewrite may be
	// called later.
	SkipRewrite bool

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	// Extractor defaults to astutil.Calls.
	Extractor CallExtractor
}

// DefaultOptions returns the options used when Run is passed nil.
func DefaultOptions() *Options {
	return &Options{}
}

// Unit is a module parsed for one variant.
type Unit struct {
	Module  *workspace.Module
	Variant Variant
	// Text is the preprocessed module text the tree was parsed from.
	Text        string
	Tree        *ast.Tree
	Diagnostics []*lexer.LexError
}

// Result is the analysis of one variant.
type Result struct {
	Variant  Variant
	Units    []*Unit
	Registry *Registry
	Graph    *Graph

	a         *analyzer
	mu        sync.Mutex
	rewritten bool
	rewrites  int
}

// Rewrite qualifies the bare calls to common module functions.  It fails
// with ErrRewritten if the calls were already rewritten.
func (r *Result) Rewrite(ctx context.Context) error {
	return r.a.rewrite(ctx, r)
}

// Rewritten reports whether the calls were rewritten and how many sites
// changed.
func (r *Result) Rewritten() (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rewritten, r.rewrites
}

// Context holds the results of a Run.
type Context struct {
	results map[Variant]*Result
}

// Result returns the analysis of variant v.
func (c *Context) Result(v Variant) *Result {
	return c.results[v]
}

// Results returns the analyses in Variants order.
func (c *Context) Results() []*Result {
	results := make([]*Result, 0, len(c.results))
	for _, v := range Variants {
		results = append(results, c.results[v])
	}
	return results
}

// Run analyzes the modules of src.
func Run(ctx context.Context, src workspace.Source, opts *Options) (*Context, error) {
	a := newAnalyzer(opts)
	ctx, span := a.tracer.Start(ctx, "bsl.run")
	defer span.End()
	c, err := a.run(ctx, src)
	if err != nil {
		return nil, fail(span, err)
	}
	return c, nil
}

type analyzer struct {
	opts       *Options
	log        *slog.Logger
	tracer     trace.Tracer
	extractor  CallExtractor
	directives directiveFilter
	pp         map[Variant]*preproc.Preprocessor
	lexOpts    []lexer.Option
}

func newAnalyzer(opts *Options) *analyzer {
	if opts == nil {
		opts = DefaultOptions()
	}
	a := &analyzer{
		opts:       opts,
		log:        opts.Logger,
		extractor:  opts.Extractor,
		directives: newDirectiveFilter(opts.Directives),
		pp:         make(map[Variant]*preproc.Preprocessor, len(Variants)),
	}
	if a.log == nil {
		a.log = slog.New(slog.DiscardHandler)
	}
	if a.extractor == nil {
		a.extractor = CallExtractorFunc(astutil.Calls)
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	a.tracer = tp.Tracer("github.com/luthersystems/bsl/analysis")
	for _, v := range Variants {
		a.pp[v] = preproc.New(v.Target(), &preproc.Options{
			ExcludeAreas: opts.ExcludeAreas,
			Retain:       opts.Retain,
		})
	}
	if opts.Strict {
		a.lexOpts = append(a.lexOpts, lexer.Strict())
	}
	return a
}

func (a *analyzer) parallel() int {
	if a.opts.Parallel > 0 {
		return a.opts.Parallel
	}
	return runtime.GOMAXPROCS(0)
}

func (a *analyzer) run(ctx context.Context, src workspace.Source) (*Context, error) {
	mods, err := a.load(ctx, src)
	if err != nil {
		return nil, err
	}
	units, err := a.parse(ctx, mods)
	if err != nil {
		return nil, err
	}
	c := &Context{results: make(map[Variant]*Result, len(Variants))}
	for _, v := range Variants {
		r := &Result{Variant: v, a: a}
		for _, u := range units {
			if u.Variant == v {
				r.Units = append(r.Units, u)
			}
		}
		a.register(ctx, r)
		if err := a.resolve(ctx, r); err != nil {
			return nil, err
		}
		c.results[v] = r
	}
	if a.opts.SkipRewrite {
		return c, nil
	}
	for _, r := range c.Results() {
		if err := a.rewrite(ctx, r); err != nil {
			return nil, err
		}
	}
	return c, nil
}
