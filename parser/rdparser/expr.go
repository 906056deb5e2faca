// Copyright © 2024 The ELPS authors

package rdparser

import (
	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/token"
)

// ParseExpression parses an expression.  Operators bind, loosest first:
// Или, И, Не, comparisons, + and -, * / %, unary sign.
func (p *Parser) ParseExpression() (ast.NodeID, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.NodeID, error) {
	return p.parseBinary(p.parseAnd, token.OR)
}

func (p *Parser) parseAnd() (ast.NodeID, error) {
	return p.parseBinary(p.parseNot, token.AND)
}

func (p *Parser) parseNot() (ast.NodeID, error) {
	if !p.Accept(token.NOT) {
		return p.parseComparison()
	}
	op := p.src.Token
	x, err := p.parseNot()
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.Unary, op.Type.String(), op.Source, x), nil
}

func (p *Parser) parseComparison() (ast.NodeID, error) {
	return p.parseBinary(p.parseAdditive,
		token.EQ, token.NEQ, token.LT, token.GT, token.LE, token.GE)
}

func (p *Parser) parseAdditive() (ast.NodeID, error) {
	return p.parseBinary(p.parseMultiplicative, token.PLUS, token.MINUS)
}

func (p *Parser) parseMultiplicative() (ast.NodeID, error) {
	return p.parseBinary(p.parseUnary, token.TIMES, token.DIVIDE, token.MOD)
}

// parseBinary parses a left-associative chain of ops over operands.
func (p *Parser) parseBinary(operand func() (ast.NodeID, error), ops ...token.Type) (ast.NodeID, error) {
	x, err := operand()
	if err != nil {
		return ast.NoNode, err
	}
	for p.Accept(ops...) {
		op := p.src.Token
		y, err := operand()
		if err != nil {
			return ast.NoNode, err
		}
		x = p.tree.New(ast.Binary, op.Type.String(), op.Source, x, y)
	}
	return x, nil
}

func (p *Parser) parseUnary() (ast.NodeID, error) {
	if !p.Accept(token.MINUS, token.PLUS) {
		return p.parsePostfix()
	}
	op := p.src.Token
	x, err := p.parseUnary()
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.Unary, op.Type.String(), op.Source, x), nil
}

// parsePostfix parses a primary expression followed by member accesses,
// method calls and indexing.
func (p *Parser) parsePostfix() (ast.NodeID, error) {
	loc := p.PeekLocation()
	root, err := p.parsePrimary()
	if err != nil {
		return ast.NoNode, err
	}
	var steps []ast.NodeID
	for {
		var step ast.NodeID
		switch {
		case p.Accept(token.DOT):
			step, err = p.parseMember()
		case p.Accept(token.BRACKET_L):
			step, err = p.parseIndex()
		default:
			if len(steps) == 0 {
				return root, nil
			}
			return p.tree.New(ast.Dotted, "", loc, append([]ast.NodeID{root}, steps...)...), nil
		}
		if err != nil {
			return ast.NoNode, err
		}
		steps = append(steps, step)
	}
}

// parseMember parses the name after a dot.  Member names may be keywords.
func (p *Parser) parseMember() (ast.NodeID, error) {
	if !p.src.Accept(isMemberName) {
		return ast.NoNode, p.unexpected("member name")
	}
	name := p.src.Token
	if p.PeekType() != token.PAREN_L {
		return p.tree.New(ast.Ident, name.Text, name.Source), nil
	}
	args, err := p.parseArgs()
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.Call, name.Text, name.Source, args...), nil
}

func isMemberName(tok *token.Token) bool {
	return tok.Type == token.IDENT || tok.Type.IsKeyword()
}

func (p *Parser) parseIndex() (ast.NodeID, error) {
	loc := p.Location()
	x, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := p.expect(token.BRACKET_R); err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.Index, "", loc, x), nil
}

func (p *Parser) parsePrimary() (ast.NodeID, error) {
	tok := p.src.Peek()
	switch tok.Type {
	case token.IDENT:
		p.src.Scan()
		if p.PeekType() != token.PAREN_L {
			return p.tree.New(ast.Ident, tok.Text, tok.Source), nil
		}
		args, err := p.parseArgs()
		if err != nil {
			return ast.NoNode, err
		}
		return p.tree.New(ast.Call, tok.Text, tok.Source, args...), nil
	case token.NUMBER:
		p.src.Scan()
		return p.tree.New(ast.Number, tok.Text, tok.Source), nil
	case token.DATE:
		p.src.Scan()
		return p.tree.New(ast.Date, tok.Text, tok.Source), nil
	case token.STRING:
		return p.parseString(), nil
	case token.TRUE, token.FALSE:
		p.src.Scan()
		return p.tree.New(ast.Bool, tok.Text, tok.Source), nil
	case token.UNDEFINED:
		p.src.Scan()
		return p.tree.New(ast.Undefined, "", tok.Source), nil
	case token.NULL:
		p.src.Scan()
		return p.tree.New(ast.Null, "", tok.Source), nil
	case token.PAREN_L:
		p.src.Scan()
		x, err := p.ParseExpression()
		if err != nil {
			return ast.NoNode, err
		}
		if _, err := p.expect(token.PAREN_R); err != nil {
			return ast.NoNode, err
		}
		return x, nil
	case token.NEW:
		return p.parseNew()
	case token.QUESTION:
		return p.parseTernary()
	}
	return ast.NoNode, p.unexpected("expression")
}

// parseString joins adjacent string literals into one node.
func (p *Parser) parseString() ast.NodeID {
	p.src.Scan()
	first := p.src.Token
	text := first.Text
	for p.Accept(token.STRING) {
		text += " " + p.TokenText()
	}
	return p.tree.New(ast.String, text, first.Source)
}

// parseNew parses `Новый Тип(args)` and `Новый(type, args)`.
func (p *Parser) parseNew() (ast.NodeID, error) {
	p.src.Scan()
	loc := p.Location()
	if p.Accept(token.IDENT) {
		name := p.TokenText()
		var args []ast.NodeID
		if p.PeekType() == token.PAREN_L {
			var err error
			args, err = p.parseArgs()
			if err != nil {
				return ast.NoNode, err
			}
		}
		return p.tree.New(ast.New, name, loc, args...), nil
	}
	if p.PeekType() != token.PAREN_L {
		return ast.NoNode, p.unexpected("type name")
	}
	args, err := p.parseArgs()
	if err != nil {
		return ast.NoNode, err
	}
	if len(args) == 0 {
		return ast.NoNode, p.errorf("parse-error", "Новый() requires a type argument")
	}
	node := p.tree.New(ast.New, "", loc, args...)
	p.tree.At(node).Flags |= ast.FlagDynamic
	return node, nil
}

func (p *Parser) parseTernary() (ast.NodeID, error) {
	p.src.Scan()
	loc := p.Location()
	args, err := p.parseArgs()
	if err != nil {
		return ast.NoNode, err
	}
	if len(args) != 3 {
		return ast.NoNode, &ParseError{
			Condition: "parse-error",
			Msg:       "?() takes exactly three arguments",
			Source:    loc,
		}
	}
	for _, a := range args {
		if p.tree.At(a).Kind == ast.Skip {
			return ast.NoNode, &ParseError{
				Condition: "parse-error",
				Msg:       "?() arguments cannot be omitted",
				Source:    loc,
			}
		}
	}
	return p.tree.New(ast.Ternary, "", loc, args...), nil
}

// parseArgs parses a parenthesized argument list.  An omitted argument
// yields a Skip node.
func (p *Parser) parseArgs() ([]ast.NodeID, error) {
	if _, err := p.expect(token.PAREN_L); err != nil {
		return nil, err
	}
	if p.Accept(token.PAREN_R) {
		return nil, nil
	}
	var args []ast.NodeID
	for {
		var arg ast.NodeID
		switch p.PeekType() {
		case token.COMMA, token.PAREN_R:
			arg = p.tree.New(ast.Skip, "", p.PeekLocation())
		default:
			var err error
			arg, err = p.ParseExpression()
			if err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
		if p.Accept(token.COMMA) {
			continue
		}
		if _, err := p.expect(token.PAREN_R); err != nil {
			return nil, err
		}
		return args, nil
	}
}
