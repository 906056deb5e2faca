// Copyright © 2024 The ELPS authors

package analysis

import (
	"strings"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/token"
	"github.com/luthersystems/bsl/workspace"
)

// Function describes a procedure or function declared by a module.
type Function struct {
	// Key is "<Kind>.<Module>.<Name>" with the casing of the declaration.
	Key    string
	Kind   workspace.Kind
	Module string
	Name   string
	Params []string
	// Export is set for procedures declared Экспорт.
	Export bool
	// Function is set for Функция declarations, which return a value.
	Function bool
	// Directive is the compilation directive preceding the declaration,
	// e.g. "&НаКлиенте", or "".
	Directive string
	Source    *token.Location
	Unit      *Unit
	Node      ast.NodeID
}

// Body returns the statement block of f.
func (f *Function) Body() ast.NodeID {
	return f.Unit.Tree.Cell(f.Node, 1)
}

// FunctionKey returns the registry key of the function name declared in module
// name of kind.
func FunctionKey(kind workspace.Kind, module, name string) string {
	return kind.String() + "." + module + "." + name
}

// Registry maps function keys to functions.  Lookups ignore case.
type Registry struct {
	funcs []*Function
	keys  map[string]*Function
	index map[string]*Function
}

func newRegistry() *Registry {
	return &Registry{
		keys:  make(map[string]*Function),
		index: make(map[string]*Function),
	}
}

// add registers f unless a function with the same folded key exists, in
// which case add returns the existing function and false.
func (r *Registry) add(f *Function) (*Function, bool) {
	folded := token.Fold(f.Key)
	if prev, ok := r.index[folded]; ok {
		return prev, false
	}
	r.funcs = append(r.funcs, f)
	r.keys[f.Key] = f
	r.index[folded] = f
	return f, true
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.funcs)
}

// Functions returns the registered functions in registration order.
func (r *Registry) Functions() []*Function {
	return r.funcs
}

// Get returns the function registered under key exactly.
func (r *Registry) Get(key string) (*Function, bool) {
	f, ok := r.keys[key]
	return f, ok
}

// Lookup returns the function whose key equals name ignoring case.
func (r *Registry) Lookup(name string) (*Function, bool) {
	if f, ok := r.keys[name]; ok {
		return f, true
	}
	f, ok := r.index[token.Fold(name)]
	return f, ok
}

// Module returns the functions of a module in registration order.
func (r *Registry) Module(kind workspace.Kind, name string) []*Function {
	var funcs []*Function
	for _, f := range r.funcs {
		if f.Kind == kind && token.EqualFold(f.Module, name) {
			funcs = append(funcs, f)
		}
	}
	return funcs
}

// directiveFilter reports whether a function with a directive is kept.
// Functions without a directive are always kept.
type directiveFilter map[string]bool

func newDirectiveFilter(directives []string) directiveFilter {
	if len(directives) == 0 {
		return nil
	}
	filter := make(directiveFilter, len(directives))
	for _, d := range directives {
		filter[token.Fold(strings.TrimPrefix(d, "&"))] = true
	}
	return filter
}

func (filter directiveFilter) keep(directive string) bool {
	if filter == nil || directive == "" {
		return true
	}
	return filter[token.Fold(strings.TrimPrefix(directive, "&"))]
}
