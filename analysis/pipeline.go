// Copyright © 2024 The ELPS authors

package analysis

import (
	"context"
	"errors"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/astutil"
	"github.com/luthersystems/bsl/parser"
	"github.com/luthersystems/bsl/parser/token"
	"github.com/luthersystems/bsl/workspace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (a *analyzer) load(ctx context.Context, src workspace.Source) ([]*workspace.Module, error) {
	ctx, span := a.tracer.Start(ctx, "bsl.load")
	defer span.End()
	mods, err := src.Modules(ctx)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("bsl.modules", len(mods)))
	a.log.Info("loaded modules", "count", len(mods))
	return mods, nil
}

// parse preprocesses and parses every module for each variant it applies
// to.  Units are returned in module order.
func (a *analyzer) parse(ctx context.Context, mods []*workspace.Module) ([]*Unit, error) {
	ctx, span := a.tracer.Start(ctx, "bsl.parse")
	defer span.End()

	type job struct {
		m *workspace.Module
		v Variant
	}
	var jobs []job
	for _, m := range mods {
		for _, v := range Variants {
			if v.Applies(m) {
				jobs = append(jobs, job{m, v})
			}
		}
	}
	span.SetAttributes(attribute.Int("bsl.units", len(jobs)))

	units := make([]*Unit, len(jobs))
	errs := make([]error, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel())
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := a.parseUnit(gctx, j.m, j.v)
			if err != nil && !a.opts.CollectErrors {
				return err
			}
			units[i], errs[i] = u, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fail(span, err)
	}
	return units, nil
}

func (a *analyzer) parseUnit(ctx context.Context, m *workspace.Module, v Variant) (*Unit, error) {
	_, span := a.tracer.Start(ctx, "bsl.parse.unit", trace.WithAttributes(
		semconv.CodeFilepath(m.Path),
		attribute.String("bsl.module", m.String()),
		attribute.String("bsl.variant", v.String()),
	))
	defer span.End()
	name := m.Path
	if name == "" {
		name = m.String()
	}
	text, err := a.pp[v].Execute(name, m.Text)
	if err != nil {
		return nil, fail(span, moduleError(m, v, err))
	}
	tree, diags, err := parser.Parse(name, text, a.lexOpts...)
	if err != nil {
		return nil, fail(span, moduleError(m, v, err))
	}
	for _, d := range diags {
		a.log.Debug("skipped character", "module", m.String(), "variant", v.String(), "error", d)
	}
	a.log.Debug("parsed module", "module", m.String(), "variant", v.String(), "nodes", tree.Len())
	return &Unit{
		Module:      m,
		Variant:     v,
		Text:        text,
		Tree:        tree,
		Diagnostics: diags,
	}, nil
}

// register builds the registry of r from its units.  The first declaration
// of a key wins.
func (a *analyzer) register(ctx context.Context, r *Result) {
	_, span := a.tracer.Start(ctx, "bsl.registry",
		trace.WithAttributes(attribute.String("bsl.variant", r.Variant.String())))
	defer span.End()
	r.Registry = newRegistry()
	for _, u := range r.Units {
		for _, id := range u.Tree.Funcs() {
			n := u.Tree.At(id)
			if !a.directives.keep(n.Annot) {
				continue
			}
			f := &Function{
				Key:       FunctionKey(u.Module.Kind, u.Module.Name, n.Text),
				Kind:      u.Module.Kind,
				Module:    u.Module.Name,
				Name:      n.Text,
				Params:    paramNames(u.Tree, id),
				Export:    n.Is(ast.FlagExport),
				Function:  n.Is(ast.FlagFunction),
				Directive: n.Annot,
				Source:    n.Source,
				Unit:      u,
				Node:      id,
			}
			if prev, ok := r.Registry.add(f); !ok {
				a.log.Warn("duplicate function", "function", f.Key, "location", f.Source.String(),
					"previous", prev.Source.String())
			}
		}
	}
	span.SetAttributes(attribute.Int("bsl.functions", r.Registry.Len()))
}

func paramNames(tree *ast.Tree, fn ast.NodeID) []string {
	params := tree.At(tree.Cell(fn, 0)).Cells
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = tree.At(p).Text
	}
	return names
}

// resolve builds the call graph of r.
func (a *analyzer) resolve(ctx context.Context, r *Result) error {
	ctx, span := a.tracer.Start(ctx, "bsl.calls",
		trace.WithAttributes(attribute.String("bsl.variant", r.Variant.String())))
	defer span.End()
	r.Graph = newGraph()
	moduleVars := make(map[*Unit]map[string]bool)
	discarded := 0
	for _, f := range r.Registry.Functions() {
		if err := ctx.Err(); err != nil {
			return fail(span, err)
		}
		vars, ok := moduleVars[f.Unit]
		if !ok {
			vars = astutil.ModuleVars(f.Unit.Tree)
			moduleVars[f.Unit] = vars
		}
		locals := astutil.Locals(f.Unit.Tree, f.Node)
		for _, call := range a.extractor.Calls(f.Unit.Tree, f.Body()) {
			if call.Qualified() && (locals[token.Fold(call.Root)] || vars[token.Fold(call.Root)]) {
				discarded++
				continue
			}
			callee, ok := a.classify(r.Registry, f, call)
			if !ok {
				discarded++
				continue
			}
			r.Graph.add(f.Key, callee.Key, &CallSite{
				Unit:      f.Unit,
				Node:      call.Node,
				Source:    call.Source,
				Qualified: call.Qualified(),
			})
		}
	}
	span.SetAttributes(attribute.Int("bsl.edges", r.Graph.Len()))
	a.log.Info("resolved calls", "variant", r.Variant.String(), "functions", r.Registry.Len(),
		"edges", r.Graph.Len(), "discarded", discarded)
	return nil
}

// classify returns the registered function a call from caller refers to.
// A qualified call Модуль.Ф() names a common module function.  A bare call
// names a function of the caller's module, else the eponymous function of
// the common module it names, else an exported function of a global common
// module.
func (a *analyzer) classify(reg *Registry, caller *Function, call astutil.Call) (*Function, bool) {
	if call.Qualified() {
		return reg.Lookup(workspace.CommonModule.String() + "." + call.Name)
	}
	if f, ok := reg.Lookup(FunctionKey(caller.Kind, caller.Module, call.Name)); ok {
		return f, true
	}
	if f, ok := reg.Lookup(FunctionKey(workspace.CommonModule, call.Name, call.Name)); ok {
		return f, true
	}
	for _, g := range a.opts.GlobalModules {
		if f, ok := reg.Lookup(FunctionKey(workspace.CommonModule, g, call.Name)); ok && f.Export {
			return f, true
		}
	}
	return nil, false
}

type rewriteJob struct {
	site   *CallSite
	module string
}

// rewrite qualifies every bare call of a common module function in r.
// Trees are rewritten concurrently, each by a single goroutine.
func (a *analyzer) rewrite(ctx context.Context, r *Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rewritten {
		return ErrRewritten
	}
	ctx, span := a.tracer.Start(ctx, "bsl.rewrite",
		trace.WithAttributes(attribute.String("bsl.variant", r.Variant.String())))
	defer span.End()

	byUnit := make(map[*Unit][]rewriteJob)
	var order []*Unit
	count := 0
	for _, e := range r.Graph.Edges() {
		callee, ok := r.Registry.Get(e.Callee)
		if !ok || callee.Kind != workspace.CommonModule {
			continue
		}
		for _, s := range e.Sites {
			if s.Qualified || s.Rewritten {
				continue
			}
			if _, seen := byUnit[s.Unit]; !seen {
				order = append(order, s.Unit)
			}
			byUnit[s.Unit] = append(byUnit[s.Unit], rewriteJob{s, callee.Module})
			count++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel())
	for _, u := range order {
		jobs := byUnit[u]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, j := range jobs {
				if err := qualify(u.Tree, j.site, j.module); err != nil {
					return moduleError(u.Module, u.Variant, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(span, err)
	}
	r.rewritten = true
	r.rewrites = count
	span.SetAttributes(attribute.Int("bsl.rewrites", count))
	a.log.Info("rewrote calls", "variant", r.Variant.String(), "count", count)
	return nil
}

// qualify replaces the call of site with Dotted(Ident(module), call).  The
// dotted node takes the call's slot and the call becomes its second cell.
func qualify(tree *ast.Tree, site *CallSite, module string) error {
	src := tree.At(site.Node).Source
	dotted := tree.New(ast.Dotted, "", src, tree.New(ast.Ident, module, src))
	if err := tree.Replace(site.Node, dotted); err != nil {
		return err
	}
	tree.Append(dotted, site.Node)
	site.Node = dotted
	site.Rewritten = true
	return nil
}
