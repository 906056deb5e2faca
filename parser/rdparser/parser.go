// Copyright © 2018 The ELPS authors

package rdparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/token"
)

// ParseError is a grammar violation.  Parsing stops at the first ParseError
// and no tree is produced.
type ParseError struct {
	Condition string
	Msg       string
	Source    *token.Location
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("%v: %s: %s", err.Source, err.Condition, err.Msg)
}

// Parser is a recursive descent parser for module text.
type Parser struct {
	name string
	src  *TokenSource
	lex  *lexer.Lexer
	tree *ast.Tree
}

// NewFromSource initializes and returns a Parser that reads tokens from src.
func NewFromSource(name string, src *TokenSource) *Parser {
	return &Parser{
		name: name,
		src:  src,
	}
}

// New initializes and returns a new Parser that reads tokens from scanner.
func New(scanner *token.Scanner, opts ...lexer.Option) *Parser {
	lex := lexer.New(scanner, opts...)
	p := NewFromSource(scanner.File(), NewTokenStreamSource(lex))
	p.lex = lex
	return p
}

// Diagnostics returns the characters skipped by the lexer.
func (p *Parser) Diagnostics() []*lexer.LexError {
	if p.lex == nil {
		return nil
	}
	return p.lex.Diagnostics()
}

// ParseModule parses the complete input as a module.
func (p *Parser) ParseModule() (*ast.Tree, error) {
	p.tree = ast.NewTree(p.name)
	defer func() { p.tree = nil }()
	mod := p.tree.New(ast.Module, "", p.PeekLocation())
	p.tree.Root = mod
	if err := p.parseItems(mod); err != nil {
		return nil, err
	}
	if !p.src.IsEOF() {
		return nil, p.unexpected("declaration or statement")
	}
	return p.tree, nil
}

// parseItems parses module items into parent until EOF or a closing keyword.
func (p *Parser) parseItems(parent ast.NodeID) error {
	for !p.atClose() {
		switch p.PeekType() {
		case token.SEMI:
			p.src.Scan()
			continue
		case token.DIRECTIVE, token.PROCEDURE, token.FUNCTION:
			if err := p.parseDeclaration(parent); err != nil {
				return err
			}
			continue
		case token.DEF_IF:
			id, err := p.parsePreprocIf(true)
			if err != nil {
				return err
			}
			p.tree.Append(parent, id)
			continue
		}
		sep, err := p.parseStatement(parent)
		if err != nil {
			return err
		}
		if err := p.separator(sep); err != nil {
			return err
		}
	}
	return nil
}

// parseBlock parses a statement list ending before EOF or a closing keyword.
// The caller checks that the closing keyword is the one it expects.
func (p *Parser) parseBlock() (ast.NodeID, error) {
	block := p.tree.New(ast.Block, "", p.PeekLocation())
	for !p.atClose() {
		if p.Accept(token.SEMI) {
			p.tree.Append(block, p.tree.New(ast.Empty, "", p.Location()))
			continue
		}
		sep, err := p.parseStatement(block)
		if err != nil {
			return ast.NoNode, err
		}
		if err := p.separator(sep); err != nil {
			return ast.NoNode, err
		}
	}
	return block, nil
}

func (p *Parser) separator(required bool) error {
	if !required || p.Accept(token.SEMI) || p.atClose() {
		return nil
	}
	if p.PeekType() == token.ERROR {
		return p.scanError()
	}
	return p.errorf("parse-error", "missing ; before %s", describe(p.src.Peek()))
}

// atClose reports whether the next token ends the enclosing statement list.
func (p *Parser) atClose() bool {
	switch p.PeekType() {
	case token.EOF,
		token.ELSE_IF, token.ELSE, token.END_IF, token.END_DO, token.EXCEPT, token.END_TRY,
		token.END_PROCEDURE, token.END_FUNCTION,
		token.DEF_ELSE_IF, token.DEF_ELSE, token.DEF_ENDIF:
		return true
	}
	return false
}

func (p *Parser) parseDeclaration(parent ast.NodeID) error {
	var annot string
	for p.Accept(token.DIRECTIVE) {
		annot = p.TokenText()
	}
	switch p.PeekType() {
	case token.PROCEDURE, token.FUNCTION:
		id, err := p.parseFunc(annot)
		if err != nil {
			return err
		}
		p.tree.Append(parent, id)
		return nil
	case token.VAR:
		p.src.Scan()
		if err := p.parseVars(parent, annot); err != nil {
			return err
		}
		return p.separator(true)
	}
	return p.unexpected("procedure, function or variable declaration")
}

func (p *Parser) parseFunc(annot string) (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	end := token.END_PROCEDURE
	var flags ast.Flags
	if open.Type == token.FUNCTION {
		end = token.END_FUNCTION
		flags |= ast.FlagFunction
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := p.expect(token.PAREN_L); err != nil {
		return ast.NoNode, err
	}
	params := p.tree.New(ast.ParamList, "", p.Location())
	if !p.Accept(token.PAREN_R) {
		for {
			param, err := p.parseParam()
			if err != nil {
				return ast.NoNode, err
			}
			p.tree.Append(params, param)
			if p.Accept(token.COMMA) {
				continue
			}
			if _, err := p.expect(token.PAREN_R); err != nil {
				return ast.NoNode, err
			}
			break
		}
	}
	if p.Accept(token.EXPORT) {
		flags |= ast.FlagExport
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.NoNode, err
	}
	if err := p.close(open, end); err != nil {
		return ast.NoNode, err
	}
	fn := p.tree.New(ast.Func, name.Text, open.Source, params, body)
	n := p.tree.At(fn)
	n.Flags = flags
	n.Annot = annot
	return fn, nil
}

func (p *Parser) parseParam() (ast.NodeID, error) {
	var flags ast.Flags
	if p.Accept(token.VAL) {
		flags |= ast.FlagVal
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return ast.NoNode, err
	}
	param := p.tree.New(ast.Param, name.Text, name.Source)
	p.tree.At(param).Flags = flags
	if p.Accept(token.EQ) {
		def, err := p.ParseExpression()
		if err != nil {
			return ast.NoNode, err
		}
		p.tree.Append(param, def)
	}
	return param, nil
}

// parseVars parses the names following Перем into parent.
func (p *Parser) parseVars(parent ast.NodeID, annot string) error {
	for {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		v := p.tree.New(ast.VarDecl, name.Text, name.Source)
		p.tree.At(v).Annot = annot
		if p.Accept(token.EXPORT) {
			p.tree.At(v).Flags |= ast.FlagExport
		}
		p.tree.Append(parent, v)
		if !p.Accept(token.COMMA) {
			return nil
		}
	}
}

// parsePreprocIf parses a conditional block left in place by the
// preprocessor.  At module level the arms hold module items.
func (p *Parser) parsePreprocIf(module bool) (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	node := p.tree.New(ast.PreprocIf, "", open.Source)
	cond, err := p.preprocCond(open)
	if err != nil {
		return ast.NoNode, err
	}
	sawElse := false
	for {
		armLoc := p.Location()
		var body ast.NodeID
		if module {
			body = p.tree.New(ast.Block, "", p.PeekLocation())
			err = p.parseItems(body)
		} else {
			body, err = p.parseBlock()
		}
		if err != nil {
			return ast.NoNode, err
		}
		p.tree.Append(node, p.tree.New(ast.PreprocArm, cond, armLoc, body))
		switch {
		case !sawElse && p.Accept(token.DEF_ELSE_IF):
			cond, err = p.preprocCond(p.src.Token)
			if err != nil {
				return ast.NoNode, err
			}
		case !sawElse && p.Accept(token.DEF_ELSE):
			sawElse = true
			cond = ""
		default:
			if err := p.close(open, token.DEF_ENDIF); err != nil {
				return ast.NoNode, err
			}
			return node, nil
		}
	}
}

// preprocCond returns the text of a condition up to its Тогда.
func (p *Parser) preprocCond(dir *token.Token) (string, error) {
	var words []string
	for !p.Accept(token.THEN, token.DEF_THEN) {
		switch p.PeekType() {
		case token.IDENT, token.NOT, token.AND, token.OR, token.PAREN_L, token.PAREN_R:
			p.src.Scan()
			words = append(words, p.TokenText())
		default:
			return "", p.unexpected(fmt.Sprintf("condition of %s", dir.Text))
		}
	}
	if len(words) == 0 {
		return "", &ParseError{
			Condition: "parse-error",
			Msg:       fmt.Sprintf("%s has an empty condition", dir.Text),
			Source:    p.Location(),
		}
	}
	return strings.Join(words, " "), nil
}

// parseStatement parses one statement into block.  The returned value
// reports whether the statement must be followed by a separator.
func (p *Parser) parseStatement(block ast.NodeID) (bool, error) {
	var (
		id  ast.NodeID
		err error
	)
	switch p.PeekType() {
	case token.IF:
		id, err = p.parseIf()
	case token.WHILE:
		id, err = p.parseWhile()
	case token.FOR:
		id, err = p.parseFor()
	case token.FOR_EACH:
		id, err = p.parseForEach()
	case token.TRY:
		id, err = p.parseTry()
	case token.RAISE:
		id, err = p.parseOptionalValue(ast.Raise)
	case token.RETURN:
		id, err = p.parseOptionalValue(ast.Return)
	case token.BREAK:
		p.src.Scan()
		id = p.tree.New(ast.Break, "", p.Location())
	case token.CONTINUE:
		p.src.Scan()
		id = p.tree.New(ast.Continue, "", p.Location())
	case token.GOTO:
		p.src.Scan()
		loc := p.Location()
		label, lerr := p.expect(token.LABEL)
		if lerr != nil {
			return false, lerr
		}
		id = p.tree.New(ast.Goto, label.Text[1:], loc)
	case token.LABEL:
		p.src.Scan()
		label := p.src.Token
		if _, err := p.expect(token.COLON); err != nil {
			return false, err
		}
		p.tree.Append(block, p.tree.New(ast.Label, label.Text[1:], label.Source))
		return false, nil
	case token.VAR:
		p.src.Scan()
		return true, p.parseVars(block, "")
	case token.DEF_IF:
		id, err = p.parsePreprocIf(false)
	case token.IDENT:
		id, err = p.parseSimpleStatement()
	default:
		return false, p.unexpected("statement")
	}
	if err != nil {
		return false, err
	}
	p.tree.Append(block, id)
	return true, nil
}

func (p *Parser) parseIf() (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	cond, body, err := p.parseCondBlock()
	if err != nil {
		return ast.NoNode, err
	}
	node := p.tree.New(ast.If, "", open.Source, cond, body)
	for p.Accept(token.ELSE_IF) {
		loc := p.Location()
		cond, body, err := p.parseCondBlock()
		if err != nil {
			return ast.NoNode, err
		}
		p.tree.Append(node, p.tree.New(ast.ElseIf, "", loc, cond, body))
	}
	if p.Accept(token.ELSE) {
		loc := p.Location()
		body, err := p.parseBlock()
		if err != nil {
			return ast.NoNode, err
		}
		p.tree.Append(node, p.tree.New(ast.Else, "", loc, body))
	}
	if err := p.close(open, token.END_IF); err != nil {
		return ast.NoNode, err
	}
	return node, nil
}

// parseCondBlock parses `expr Тогда block`.
func (p *Parser) parseCondBlock() (ast.NodeID, ast.NodeID, error) {
	cond, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, ast.NoNode, err
	}
	if _, err := p.expect(token.THEN); err != nil {
		return ast.NoNode, ast.NoNode, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.NoNode, ast.NoNode, err
	}
	return cond, body, nil
}

func (p *Parser) parseWhile() (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	cond, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	body, err := p.parseLoopBody(open)
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.While, "", open.Source, cond, body), nil
}

func (p *Parser) parseFor() (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	v, err := p.expect(token.IDENT)
	if err != nil {
		return ast.NoNode, err
	}
	ident := p.tree.New(ast.Ident, v.Text, v.Source)
	if _, err := p.expect(token.EQ); err != nil {
		return ast.NoNode, err
	}
	from, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return ast.NoNode, err
	}
	to, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	body, err := p.parseLoopBody(open)
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.For, "", open.Source, ident, from, to, body), nil
}

func (p *Parser) parseForEach() (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	v, err := p.expect(token.IDENT)
	if err != nil {
		return ast.NoNode, err
	}
	ident := p.tree.New(ast.Ident, v.Text, v.Source)
	if _, err := p.expect(token.IN); err != nil {
		return ast.NoNode, err
	}
	coll, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	body, err := p.parseLoopBody(open)
	if err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.ForEach, "", open.Source, ident, coll, body), nil
}

// parseLoopBody parses `Цикл block КонецЦикла`.
func (p *Parser) parseLoopBody(open *token.Token) (ast.NodeID, error) {
	if _, err := p.expect(token.DO); err != nil {
		return ast.NoNode, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return ast.NoNode, err
	}
	if err := p.close(open, token.END_DO); err != nil {
		return ast.NoNode, err
	}
	return body, nil
}

func (p *Parser) parseTry() (ast.NodeID, error) {
	p.src.Scan()
	open := p.src.Token
	body, err := p.parseBlock()
	if err != nil {
		return ast.NoNode, err
	}
	if err := p.close(open, token.EXCEPT); err != nil {
		return ast.NoNode, err
	}
	handler, err := p.parseBlock()
	if err != nil {
		return ast.NoNode, err
	}
	if err := p.close(open, token.END_TRY); err != nil {
		return ast.NoNode, err
	}
	return p.tree.New(ast.Try, "", open.Source, body, handler), nil
}

// parseOptionalValue parses Возврат or ВызватьИсключение with an optional
// operand.
func (p *Parser) parseOptionalValue(kind ast.Kind) (ast.NodeID, error) {
	p.src.Scan()
	node := p.tree.New(kind, "", p.Location())
	if !startsExpression(p.PeekType()) {
		return node, nil
	}
	x, err := p.ParseExpression()
	if err != nil {
		return ast.NoNode, err
	}
	p.tree.Append(node, x)
	return node, nil
}

// parseSimpleStatement parses an assignment or a procedure call.
func (p *Parser) parseSimpleStatement() (ast.NodeID, error) {
	loc := p.PeekLocation()
	target, err := p.parsePostfix()
	if err != nil {
		return ast.NoNode, err
	}
	if p.Accept(token.EQ) {
		if isCall(p.tree, target) {
			return ast.NoNode, p.errorf("parse-error", "cannot assign to the result of a call")
		}
		value, err := p.ParseExpression()
		if err != nil {
			return ast.NoNode, err
		}
		return p.tree.New(ast.Assign, "", loc, target, value), nil
	}
	if !isCall(p.tree, target) {
		return ast.NoNode, p.unexpected("= or procedure call")
	}
	return p.tree.New(ast.CallStmt, "", loc, target), nil
}

// isCall reports whether id is a call or a chain ending with a method call.
func isCall(tree *ast.Tree, id ast.NodeID) bool {
	n := tree.At(id)
	switch n.Kind {
	case ast.Call:
		return true
	case ast.Dotted:
		return tree.At(n.Cells[len(n.Cells)-1]).Kind == ast.Call
	}
	return false
}

func startsExpression(typ token.Type) bool {
	switch typ {
	case token.IDENT, token.NUMBER, token.STRING, token.DATE, token.TRUE, token.FALSE,
		token.UNDEFINED, token.NULL, token.NEW, token.NOT, token.MINUS, token.PLUS,
		token.PAREN_L, token.QUESTION:
		return true
	}
	return false
}

// close expects the keyword typ that ends the construct opened by open.
func (p *Parser) close(open *token.Token, typ token.Type) error {
	if p.Accept(typ) {
		return nil
	}
	if p.PeekType() == token.ERROR {
		return p.scanError()
	}
	return p.errorf("unmatched-syntax", "%s at %v expects %v, found %s",
		open.Text, open.Source, typ, describe(p.src.Peek()))
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	if p.Accept(typ) {
		return p.src.Token, nil
	}
	return nil, p.unexpected(typ.String())
}

func (p *Parser) unexpected(want string) error {
	if p.PeekType() == token.ERROR {
		return p.scanError()
	}
	return p.errorf("parse-error", "unexpected %s, expected %s", describe(p.src.Peek()), want)
}

func describe(tok *token.Token) string {
	if tok.Type == token.EOF {
		return "end of module"
	}
	return strconv.Quote(tok.Text)
}

func (p *Parser) PeekType() token.Type {
	return p.src.Peek().Type
}

func (p *Parser) PeekLocation() *token.Location {
	return p.src.Peek().Source
}

func (p *Parser) TokenText() string {
	return p.src.Token.Text
}

func (p *Parser) Location() *token.Location {
	return p.src.Token.Source
}

func (p *Parser) Accept(typ ...token.Type) bool {
	return p.src.AcceptType(typ...)
}

// errorf reports an error at the next unconsumed token.
func (p *Parser) errorf(condition string, format string, v ...interface{}) error {
	return &ParseError{
		Condition: condition,
		Msg:       fmt.Sprintf(format, v...),
		Source:    p.PeekLocation(),
	}
}

func (p *Parser) scanError() error {
	tok := p.src.Peek()
	return &ParseError{
		Condition: "scan-error",
		Msg:       tok.Text,
		Source:    tok.Source,
	}
}
