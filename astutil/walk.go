// Copyright © 2024 The ELPS authors

// Package astutil provides shared syntax tree walking utilities.
//
// These helpers are used by the analysis package to find the call sites and
// the local names of a procedure body.
package astutil

import (
	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/token"
)

// Call is a call site found in a procedure body.
type Call struct {
	// Node is the Call node.  For a qualified call it is the first step of
	// the enclosing Dotted node.
	Node ast.NodeID
	// Name is the callee as written, "Ф" or "Модуль.Ф".
	Name string
	// Root is the identifier qualifying the callee, "" for a bare call.
	Root   string
	Source *token.Location
}

// Qualified reports whether the call is written Root.Name(...).
func (c Call) Qualified() bool {
	return c.Root != ""
}

// Calls returns the call sites below id in source order.  A bare call is a
// Call node that is not a step of a dotted chain.  A qualified call is a
// chain whose root is an identifier and whose first step is a call.  Method
// calls deeper in a chain are not call sites, but their arguments are
// searched.
func Calls(tree *ast.Tree, id ast.NodeID) []Call {
	var calls []Call
	var visit func(id ast.NodeID)
	visit = func(id ast.NodeID) {
		tree.Walk(id, func(id ast.NodeID, n *ast.Node) bool {
			switch n.Kind {
			case ast.Call:
				calls = append(calls, Call{Node: id, Name: n.Text, Source: n.Source})
			case ast.Dotted:
				root, first := tree.At(n.Cells[0]), n.Cells[1]
				if step := tree.At(first); root.Kind == ast.Ident && step.Kind == ast.Call {
					calls = append(calls, Call{
						Node:   first,
						Name:   root.Text + "." + step.Text,
						Root:   root.Text,
						Source: n.Source,
					})
				} else {
					visit(n.Cells[0])
				}
				for _, step := range n.Cells[1:] {
					for _, c := range tree.At(step).Cells {
						visit(c)
					}
				}
				return false
			}
			return true
		})
	}
	visit(id)
	return calls
}

// Locals returns the case-folded names bound inside the procedure fn:
// parameters, Перем declarations, assignment targets and loop variables.
func Locals(tree *ast.Tree, fn ast.NodeID) map[string]bool {
	defs := make(map[string]bool)
	tree.Walk(fn, func(id ast.NodeID, n *ast.Node) bool {
		switch n.Kind {
		case ast.Param, ast.VarDecl:
			defs[token.Fold(n.Text)] = true
		case ast.Assign, ast.For, ast.ForEach:
			if v := tree.At(n.Cells[0]); v.Kind == ast.Ident {
				defs[token.Fold(v.Text)] = true
			}
		}
		return true
	})
	return defs
}

// ModuleVars returns the case-folded names declared by module-level Перем
// statements, including those inside retained preprocessor blocks.
func ModuleVars(tree *ast.Tree) map[string]bool {
	defs := make(map[string]bool)
	tree.Walk(tree.Root, func(id ast.NodeID, n *ast.Node) bool {
		switch n.Kind {
		case ast.Module, ast.PreprocIf, ast.PreprocArm, ast.Block:
			return true
		case ast.VarDecl:
			defs[token.Fold(n.Text)] = true
		}
		return false
	})
	return defs
}
