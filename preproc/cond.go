// Copyright © 2024 The ELPS authors

package preproc

import (
	"github.com/luthersystems/bsl/parser/token"
)

// cond is a parsed condition of #Если or #ИначеЕсли.
type cond struct {
	op   token.Type // IDENT, NOT, AND or OR
	sym  string
	x, y *cond
}

func (c *cond) eval(holds func(string) bool) bool {
	switch c.op {
	case token.NOT:
		return !c.x.eval(holds)
	case token.AND:
		return c.x.eval(holds) && c.y.eval(holds)
	case token.OR:
		return c.x.eval(holds) || c.y.eval(holds)
	default:
		return holds(c.sym)
	}
}

// mentions reports whether any symbol of c is in the folded set syms.
func (c *cond) mentions(syms map[string]bool) bool {
	if c == nil || len(syms) == 0 {
		return false
	}
	switch c.op {
	case token.IDENT:
		return syms[token.Fold(c.sym)]
	case token.NOT:
		return c.x.mentions(syms)
	}
	return c.x.mentions(syms) || c.y.mentions(syms)
}

type condParser struct {
	dir  *token.Token
	toks []*token.Token
	i    int
}

// parseCond parses the tokens between an instruction and its Тогда.
//
//	or   = and { Или and }
//	and  = not { И not }
//	not  = Не not | atom
//	atom = symbol | "(" or ")"
func parseCond(dir *token.Token, toks []*token.Token) (*cond, error) {
	p := &condParser{dir: dir, toks: toks}
	c, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.i < len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.i].Text)
	}
	return c, nil
}

func (p *condParser) peek(typ token.Type) bool {
	return p.i < len(p.toks) && p.toks[p.i].Type == typ
}

func (p *condParser) or() (*cond, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek(token.OR) {
		p.i++
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		x = &cond{op: token.OR, x: x, y: y}
	}
	return x, nil
}

func (p *condParser) and() (*cond, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.peek(token.AND) {
		p.i++
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		x = &cond{op: token.AND, x: x, y: y}
	}
	return x, nil
}

func (p *condParser) not() (*cond, error) {
	if p.peek(token.NOT) {
		p.i++
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return &cond{op: token.NOT, x: x}, nil
	}
	return p.atom()
}

func (p *condParser) atom() (*cond, error) {
	switch {
	case p.peek(token.IDENT):
		c := &cond{op: token.IDENT, sym: p.toks[p.i].Text}
		p.i++
		return c, nil
	case p.peek(token.PAREN_L):
		p.i++
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.peek(token.PAREN_R) {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.i++
		return c, nil
	case p.i < len(p.toks):
		return nil, p.errorf("unexpected %q", p.toks[p.i].Text)
	default:
		return nil, p.errorf("missing symbol")
	}
}

func (p *condParser) errorf(format string, v ...interface{}) error {
	loc := p.dir
	if p.i < len(p.toks) {
		loc = p.toks[p.i]
	}
	err := directiveErrorf(loc, format, v...)
	err.Directive = p.dir.Text
	return err
}
