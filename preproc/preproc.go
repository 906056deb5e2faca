// Copyright © 2024 The ELPS authors

// Package preproc specializes module text for one platform target.  It
// evaluates conditional compilation blocks, strips region markers and drops
// the content of excluded regions.  The transform is text to text: text that
// is dropped is replaced by its newlines so that positions reported by later
// stages still refer to lines of the original module.
package preproc

import (
	"errors"
	"strings"

	"github.com/luthersystems/bsl/parser/lexer"
	"github.com/luthersystems/bsl/parser/token"
)

// Target is a platform symbol that conditional compilation blocks test.
type Target string

const (
	ThinClient                     Target = "ТонкийКлиент"
	ThickClientOrdinaryApplication Target = "ТолстыйКлиентОбычноеПриложение"
)

var targetAliases = map[Target]string{
	ThinClient:                     "ThinClient",
	ThickClientOrdinaryApplication: "ThickClientOrdinaryApplication",
}

// Matches reports whether the condition symbol sym names target t.
func (t Target) Matches(sym string) bool {
	if token.EqualFold(sym, string(t)) {
		return true
	}
	alias, ok := targetAliases[t]
	return ok && token.EqualFold(sym, alias)
}

// ParseTarget maps a symbol in either spelling to a known target.
func ParseTarget(sym string) (Target, bool) {
	for t := range targetAliases {
		if t.Matches(sym) {
			return t, true
		}
	}
	return "", false
}

type Options struct {
	// ExcludeAreas names regions whose content is dropped.
	ExcludeAreas []string
	// Retain names symbols whose conditional blocks are left in the output
	// verbatim, directives included.
	Retain []string
}

type Preprocessor struct {
	target  Target
	exclude map[string]bool
	retain  map[string]bool
}

func New(target Target, opts *Options) *Preprocessor {
	p := &Preprocessor{
		target:  target,
		exclude: make(map[string]bool),
		retain:  make(map[string]bool),
	}
	if opts != nil {
		for _, name := range opts.ExcludeAreas {
			p.exclude[token.Fold(name)] = true
		}
		for _, sym := range opts.Retain {
			p.retain[token.Fold(sym)] = true
		}
	}
	return p
}

// Execute is shorthand for New(target, opts).Execute(name, text).
func Execute(name string, text string, target Target, opts *Options) (string, error) {
	return New(target, opts).Execute(name, text)
}

// Execute returns text specialized for the preprocessor's target.  The name
// identifies text in error locations.
func (p *Preprocessor) Execute(name string, text string) (string, error) {
	toks, err := scan(name, text)
	if err != nil {
		return "", err
	}
	st := &state{p: p, src: text, toks: toks}
	return st.run()
}

func scan(name string, text string) ([]*token.Token, error) {
	lex := lexer.New(token.NewScanner(name, text))
	var toks []*token.Token
	for {
		tok := lex.ReadToken()
		switch tok.Type {
		case token.ERROR:
			if strings.HasPrefix(tok.Text, "unknown preprocessor instruction") {
				return nil, &DirectiveError{Msg: tok.Text, Source: tok.Source}
			}
			return nil, &token.LocationError{Err: errors.New(tok.Text), Source: tok.Source}
		case token.EOF:
			return append(toks, tok), nil
		}
		toks = append(toks, tok)
	}
}

type frameKind int

const (
	frameCond frameKind = iota
	frameRegion
	frameInsert
	frameDelete
)

type frame struct {
	kind     frameKind
	parent   bool // the enclosing text is kept
	active   bool // the current branch is kept
	taken    bool // some branch of the chain has been selected
	retained bool
	sawElse  bool
	open     *token.Token
}

type state struct {
	p     *Preprocessor
	src   string
	toks  []*token.Token
	i     int
	pos   int // src[:pos] has been written to out
	out   strings.Builder
	stack []*frame
}

func (st *state) run() (string, error) {
	for st.i = 0; st.i < len(st.toks); st.i++ {
		tok := st.toks[st.i]
		if !tok.Type.IsPreproc() {
			continue
		}
		st.keep(tok.Source.Pos)
		if err := st.directive(tok); err != nil {
			return "", err
		}
	}
	st.keep(len(st.src))
	if len(st.stack) > 0 {
		f := st.stack[len(st.stack)-1]
		return "", directiveErrorf(f.open, "%s is not closed", f.open.Text)
	}
	return st.out.String(), nil
}

func (st *state) active() bool {
	if len(st.stack) == 0 {
		return true
	}
	return st.stack[len(st.stack)-1].active
}

// keep copies source text up to end, or only its newlines when the current
// text is being dropped.
func (st *state) keep(end int) {
	if st.active() {
		st.out.WriteString(st.src[st.pos:end])
	} else {
		st.strip(end)
	}
	st.pos = end
}

// strip drops source text up to end, preserving newlines.
func (st *state) strip(end int) {
	st.out.WriteString(strings.Repeat("\n", strings.Count(st.src[st.pos:end], "\n")))
	st.pos = end
}

func (st *state) push(f *frame) {
	f.parent = st.active()
	st.stack = append(st.stack, f)
}

func (st *state) top(tok *token.Token, kind frameKind) (*frame, error) {
	if len(st.stack) == 0 {
		return nil, directiveErrorf(tok, "%s without matching opening instruction", tok.Text)
	}
	f := st.stack[len(st.stack)-1]
	if f.kind != kind {
		return nil, directiveErrorf(tok, "%s does not match %s opened at %v", tok.Text, f.open.Text, f.open.Source)
	}
	return f, nil
}

func (st *state) pop() {
	st.stack = st.stack[:len(st.stack)-1]
}

func (st *state) directive(tok *token.Token) error {
	switch tok.Type {
	case token.DEF_IF:
		c, end, err := st.condition(tok)
		if err != nil {
			return err
		}
		f := &frame{kind: frameCond, open: tok}
		st.push(f)
		if f.parent && c.mentions(st.p.retain) {
			f.retained = true
			f.active = true
			st.keep(end)
			return nil
		}
		f.active = f.parent && c.eval(st.holds)
		f.taken = f.active
		st.strip(end)
	case token.DEF_ELSE_IF:
		f, err := st.top(tok, frameCond)
		if err != nil {
			return err
		}
		if f.sawElse {
			return directiveErrorf(tok, "%s follows #Иначе", tok.Text)
		}
		c, end, err := st.condition(tok)
		if err != nil {
			return err
		}
		if f.retained {
			st.keep(end)
			return nil
		}
		f.active = f.parent && !f.taken && c.eval(st.holds)
		f.taken = f.taken || f.active
		st.strip(end)
	case token.DEF_ELSE:
		f, err := st.top(tok, frameCond)
		if err != nil {
			return err
		}
		if f.sawElse {
			return directiveErrorf(tok, "duplicate %s", tok.Text)
		}
		f.sawElse = true
		if f.retained {
			st.keep(tok.End())
			return nil
		}
		f.active = f.parent && !f.taken
		f.taken = true
		st.strip(tok.End())
	case token.DEF_ENDIF:
		f, err := st.top(tok, frameCond)
		if err != nil {
			return err
		}
		if f.retained {
			st.keep(tok.End())
			if st.toks[st.i+1].Type != token.SEMI {
				st.out.WriteString("\n;")
			}
		} else {
			st.strip(tok.End())
		}
		st.pop()
	case token.DEF_THEN:
		return directiveErrorf(tok, "%s without #Если", tok.Text)
	case token.AREA:
		name := st.toks[st.i+1]
		if name.Type != token.IDENT && !name.Type.IsKeyword() {
			return directiveErrorf(tok, "%s requires a region name", tok.Text)
		}
		st.i++
		f := &frame{kind: frameRegion, open: tok}
		st.push(f)
		f.active = f.parent && !st.p.exclude[token.Fold(name.Text)]
		st.strip(name.End())
	case token.INSERT:
		f := &frame{kind: frameInsert, open: tok}
		st.push(f)
		f.active = f.parent
		st.strip(tok.End())
	case token.DELETE:
		st.push(&frame{kind: frameDelete, open: tok})
		st.strip(tok.End())
	case token.AREA_END, token.INSERT_END, token.DELETE_END:
		kind := map[token.Type]frameKind{
			token.AREA_END:   frameRegion,
			token.INSERT_END: frameInsert,
			token.DELETE_END: frameDelete,
		}[tok.Type]
		if _, err := st.top(tok, kind); err != nil {
			return err
		}
		st.pop()
		st.strip(tok.End())
	}
	return nil
}

// holds evaluates a condition symbol for the target.  Retained symbols never
// hold in a block that was not retained at its opening instruction.
func (st *state) holds(sym string) bool {
	if st.p.retain[token.Fold(sym)] {
		return false
	}
	return st.p.target.Matches(sym)
}

// condition parses the condition following tok and leaves st.i at the
// terminating Тогда.  The returned offset is the end of the Тогда token.
func (st *state) condition(tok *token.Token) (*cond, int, error) {
	j := st.i + 1
	for ; j < len(st.toks); j++ {
		t := st.toks[j]
		switch t.Type {
		case token.IDENT, token.NOT, token.AND, token.OR, token.PAREN_L, token.PAREN_R:
			continue
		case token.THEN, token.DEF_THEN:
		case token.EOF:
			return nil, 0, directiveErrorf(tok, "%s is missing Тогда", tok.Text)
		default:
			return nil, 0, directiveErrorf(t, "unexpected %q in condition of %s", t.Text, tok.Text)
		}
		break
	}
	c, err := parseCond(tok, st.toks[st.i+1:j])
	if err != nil {
		return nil, 0, err
	}
	st.i = j
	return c, st.toks[j].End(), nil
}
