// Copyright © 2018 The ELPS authors

package token

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scanner facilitates construction of tokens from module text.  Module texts
// are small and are always loaded whole, so the scanner works directly on a
// string and token text is always an exact slice of the source.
type Scanner struct {
	file string
	path string
	src  string

	start     int // byte offset of the current token
	startLine int
	startCol  int

	next int // byte offset of the rune following c
	line int // line of the rune at next
	col  int // column of the rune at next
	c    rune
}

// NewScanner initializes and returns a new Scanner over src.
func NewScanner(file string, src string) *Scanner {
	s := &Scanner{
		file: file,
		src:  src,
		line: 1,
		col:  1,
	}
	s.Ignore()
	return s
}

// SetPath associates a physical location (e.g. filesystem path) with s to aid
// in debugging projects which scan many files.
func (s *Scanner) SetPath(path string) {
	s.path = path
}

// File returns the name of the source stream.
func (s *Scanner) File() string {
	return s.file
}

// Source returns the complete text being scanned.
func (s *Scanner) Source() string {
	return s.src
}

// EmitToken returns a token containing the text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) EmitToken(typ Type) *Token {
	tok := &Token{
		Type:   typ,
		Text:   s.Text(),
		Source: s.LocStart(),
	}
	s.Ignore()
	return tok
}

// Ignore causes the scanner to skip all text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) Ignore() {
	s.start = s.next
	s.startLine = s.line
	s.startCol = s.col
}

// Text returns a string containing text scanned since the last call to either
// EmitToken or Ignore.
func (s *Scanner) Text() string {
	return s.src[s.start:s.next]
}

// Rune returns the last rune that was scanned.
func (s *Scanner) Rune() rune {
	return s.c
}

// Peek returns the next rune to be scanned.  Peek returns a false second value
// at the end of the input.  An invalid utf-8 byte is returned as
// utf8.RuneError so that callers may skip it like any other unknown rune.
func (s *Scanner) Peek() (rune, bool) {
	if s.next >= len(s.src) {
		return 0, false
	}
	c, _ := utf8.DecodeRuneInString(s.src[s.next:])
	return c, true
}

// PeekString reports whether the unscanned input begins with prefix.
func (s *Scanner) PeekString(prefix string) bool {
	return strings.HasPrefix(s.src[s.next:], prefix)
}

// ScanRune scans a rune from the input for inclusion in the current token.
// ScanRune returns io.EOF when no input remains.
func (s *Scanner) ScanRune() error {
	if s.next >= len(s.src) {
		return io.EOF
	}
	c, n := utf8.DecodeRuneInString(s.src[s.next:])
	s.c = c
	s.next += n
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return nil
}

func (s *Scanner) EOF() bool {
	return s.next >= len(s.src)
}

// Mark is a saved scanner position which can be restored with Reset.
type Mark struct {
	next int
	line int
	col  int
	c    rune
}

// Mark returns the current scanner position.
func (s *Scanner) Mark() Mark {
	return Mark{next: s.next, line: s.line, col: s.col, c: s.c}
}

// Reset rewinds the scanner to m, which must have been taken during the
// current token.
func (s *Scanner) Reset(m Mark) {
	s.next = m.next
	s.line = m.line
	s.col = m.col
	s.c = m.c
}

func (s *Scanner) Accept(fn func(rune) bool) bool {
	peek, ok := s.Peek()
	if !ok || !fn(peek) {
		return false
	}
	return s.ScanRune() == nil
}

func (s *Scanner) AcceptRune(c rune) bool {
	peek, ok := s.Peek()
	if !ok || peek != c {
		return false
	}
	return s.ScanRune() == nil
}

func (s *Scanner) AcceptDigit() bool {
	return s.Accept(IsDigit)
}

func (s *Scanner) AcceptSpace() bool {
	return s.Accept(IsSpace)
}

func (s *Scanner) AcceptAny(charset string) bool {
	return s.Accept(func(c rune) bool { return strings.ContainsRune(charset, c) })
}

func (s *Scanner) AcceptSeq(fn func(rune) bool) int {
	var n int
	for s.Accept(fn) {
		n++
	}
	return n
}

func (s *Scanner) AcceptSeqDigit() int {
	return s.AcceptSeq(IsDigit)
}

func (s *Scanner) AcceptSeqSpace() int {
	return s.AcceptSeq(IsSpace)
}

// AcceptSeqNot scans runes up to, but not including, the first rune in
// charset.
func (s *Scanner) AcceptSeqNot(charset string) int {
	return s.AcceptSeq(func(c rune) bool { return !strings.ContainsRune(charset, c) })
}

// LocStart returns a Location referencing the beginning of the current token.
func (s *Scanner) LocStart() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.start,
		Line: s.startLine,
		Col:  s.startCol,
	}
}

// Loc returns a Location referencing the current scanner position, just past
// the last scanned rune.
func (s *Scanner) Loc() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.next,
		Line: s.line,
		Col:  s.col,
	}
}

// IsDigit reports whether c is an ASCII decimal digit.
func IsDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

// IsSpace reports whether c separates tokens.  The byte order mark is treated
// as whitespace because module dumps frequently start with one.
func IsSpace(c rune) bool {
	return c == '\ufeff' || unicode.IsSpace(c)
}

// IsWordStart reports whether c may begin an identifier.
func IsWordStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

// IsWord reports whether c may continue an identifier.
func IsWord(c rune) bool {
	return IsWordStart(c) || unicode.IsDigit(c)
}
