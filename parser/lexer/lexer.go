// Copyright © 2018 The ELPS authors

package lexer

import (
	"fmt"

	"github.com/luthersystems/bsl/parser/token"
)

type LexFn func(*Lexer) *token.Token

// LexError describes a character that no lexical rule accepts.  In the default
// permissive mode the character is skipped and a LexError is recorded.
type LexError struct {
	Char   rune
	Source *token.Location
}

func (err *LexError) Error() string {
	return fmt.Sprintf("%v: unexpected character %q", err.Source, err.Char)
}

// Option configures a Lexer.
type Option func(*Lexer)

// Strict makes an unrecognized character a terminal ERROR token instead of a
// recorded diagnostic.
func Strict() Option {
	return func(lex *Lexer) {
		lex.strict = true
	}
}

type Lexer struct {
	scanner *token.Scanner
	lex     LexFn
	strict  bool
	diags   []*LexError
}

func New(s *token.Scanner, opts ...Option) *Lexer {
	lex := &Lexer{
		scanner: s,
		lex:     (*Lexer).readToken,
	}
	for _, opt := range opts {
		opt(lex)
	}
	return lex
}

// ReadToken returns the next token in the input.  After an ERROR token or at
// the end of the input every call returns an EOF token.
func (lex *Lexer) ReadToken() *token.Token {
	return lex.lex(lex)
}

// Diagnostics returns the characters skipped so far.
func (lex *Lexer) Diagnostics() []*LexError {
	return lex.diags
}

func (lex *Lexer) readToken() *token.Token {
	for {
		lex.skipWhitespace()
		if lex.scanner.ScanRune() != nil {
			return lex.scanner.EmitToken(token.EOF)
		}
		switch c := lex.scanner.Rune(); c {
		case '(':
			return lex.charToken(token.PAREN_L)
		case ')':
			return lex.charToken(token.PAREN_R)
		case '[':
			return lex.charToken(token.BRACKET_L)
		case ']':
			return lex.charToken(token.BRACKET_R)
		case ',':
			return lex.charToken(token.COMMA)
		case ';':
			return lex.charToken(token.SEMI)
		case '.':
			return lex.charToken(token.DOT)
		case ':':
			return lex.charToken(token.COLON)
		case '?':
			return lex.charToken(token.QUESTION)
		case '+':
			return lex.charToken(token.PLUS)
		case '-':
			return lex.charToken(token.MINUS)
		case '*':
			return lex.charToken(token.TIMES)
		case '%':
			return lex.charToken(token.MOD)
		case '=':
			return lex.charToken(token.EQ)
		case '<':
			switch {
			case lex.scanner.AcceptRune('>'):
				return lex.charToken(token.NEQ)
			case lex.scanner.AcceptRune('='):
				return lex.charToken(token.LE)
			}
			return lex.charToken(token.LT)
		case '>':
			if lex.scanner.AcceptRune('=') {
				return lex.charToken(token.GE)
			}
			return lex.charToken(token.GT)
		case '/':
			if lex.scanner.AcceptRune('/') {
				lex.scanner.AcceptSeqNot("\n")
				lex.scanner.Ignore()
				continue
			}
			return lex.charToken(token.DIVIDE)
		case '"':
			return lex.readString()
		case '\'':
			return lex.readDate()
		case '&':
			lex.scanner.AcceptSeq(token.IsWord)
			return lex.charToken(token.DIRECTIVE)
		case '~':
			if lex.scanner.Accept(token.IsWordStart) {
				lex.scanner.AcceptSeq(token.IsWord)
				return lex.charToken(token.LABEL)
			}
		case '#':
			if lex.scanner.Accept(token.IsWordStart) {
				return lex.readPreproc()
			}
		default:
			if token.IsDigit(c) {
				return lex.readNumber()
			}
			if token.IsWordStart(c) {
				return lex.readWord()
			}
		}
		if tok := lex.unexpected(); tok != nil {
			return tok
		}
	}
}

// unexpected handles the rune just scanned which matches no rule.  It returns
// nil when the rune was skipped.
func (lex *Lexer) unexpected() *token.Token {
	err := &LexError{
		Char:   lex.scanner.Rune(),
		Source: lex.scanner.LocStart(),
	}
	if lex.strict {
		return lex.errorf("unexpected character %q", err.Char)
	}
	lex.diags = append(lex.diags, err)
	lex.scanner.Ignore()
	return nil
}

func (lex *Lexer) readEOF() *token.Token {
	lex.scanner.AcceptSeq(func(rune) bool { return true })
	lex.scanner.Ignore()
	return lex.scanner.EmitToken(token.EOF)
}

func (lex *Lexer) charToken(typ token.Type) *token.Token {
	return lex.scanner.EmitToken(typ)
}

// errorf emits a terminal ERROR token.  Unlike other tokens the text of an
// ERROR token is a message rather than source text.
func (lex *Lexer) errorf(format string, v ...interface{}) *token.Token {
	tok := &token.Token{
		Type:   token.ERROR,
		Text:   fmt.Sprintf(format, v...),
		Source: lex.scanner.LocStart(),
	}
	lex.scanner.Ignore()
	lex.lex = (*Lexer).readEOF
	return tok
}

func (lex *Lexer) readWord() *token.Token {
	lex.scanner.AcceptSeq(token.IsWord)
	text := lex.scanner.Text()
	if token.IsForEachWord(text) {
		return lex.charToken(token.FOR_EACH)
	}
	typ := token.Lookup(text)
	if typ == token.FOR {
		m := lex.scanner.Mark()
		lex.scanner.AcceptSeqSpace()
		n := len(lex.scanner.Text())
		if lex.scanner.Accept(token.IsWordStart) {
			lex.scanner.AcceptSeq(token.IsWord)
			if token.IsEachWord(lex.scanner.Text()[n:]) {
				return lex.charToken(token.FOR_EACH)
			}
		}
		lex.scanner.Reset(m)
	}
	return lex.charToken(typ)
}

func (lex *Lexer) readPreproc() *token.Token {
	lex.scanner.AcceptSeq(token.IsWord)
	name := lex.scanner.Text()[1:]
	typ, ok := token.LookupPreproc(name)
	if !ok {
		return lex.errorf("unknown preprocessor instruction: #%s", name)
	}
	return lex.charToken(typ)
}

func (lex *Lexer) readNumber() *token.Token {
	lex.scanner.AcceptSeqDigit() // the first digit already scanned
	m := lex.scanner.Mark()
	if lex.scanner.AcceptRune('.') && lex.scanner.AcceptSeqDigit() == 0 {
		lex.scanner.Reset(m)
	}
	return lex.charToken(token.NUMBER)
}

// readString scans a string literal.  Quotes are escaped by doubling and a
// literal may continue over several lines.
func (lex *Lexer) readString() *token.Token {
	for {
		lex.scanner.AcceptSeqNot(`"`)
		if !lex.scanner.AcceptRune('"') {
			return lex.errorf("unterminated string literal")
		}
		if !lex.scanner.AcceptRune('"') {
			return lex.charToken(token.STRING)
		}
	}
}

func (lex *Lexer) readDate() *token.Token {
	lex.scanner.AcceptSeqDigit()
	if !lex.scanner.AcceptRune('\'') {
		return lex.errorf("invalid date literal starting: %s", lex.scanner.Text())
	}
	return lex.charToken(token.DATE)
}

func (lex *Lexer) skipWhitespace() {
	lex.scanner.AcceptSeqSpace()
	lex.scanner.Ignore()
}
