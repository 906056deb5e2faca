// Copyright © 2018 The ELPS authors

// Package parser turns preprocessed module text into a syntax tree.
package parser

import (
	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/rdparser"
	"github.com/luthersystems/bsl/parser/token"
)

// Parse parses text as the module name.  The returned diagnostics list the
// characters the lexer skipped, and are returned even when parsing fails.
func Parse(name, text string, opts ...lexer.Option) (*ast.Tree, []*lexer.LexError, error) {
	p := rdparser.New(token.NewScanner(name, text), opts...)
	tree, err := p.ParseModule()
	return tree, p.Diagnostics(), err
}
