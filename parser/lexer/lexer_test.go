// Copyright © 2018 The ELPS authors

package lexer

import (
	"fmt"
	"testing"

	"github.com/luthersystems/bsl/parser/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input  string
		tokens []*token.Token
	}{
		{``, []*token.Token{
			testToken(token.EOF, ""),
		}},
		{`Перем абв;`, []*token.Token{
			testToken(token.VAR, "Перем"),
			testToken(token.IDENT, "абв"),
			testToken(token.SEMI, ";"),
			testToken(token.EOF, ""),
		}},
		{`Если ЕСЛИ если If`, []*token.Token{
			testToken(token.IF, "Если"),
			testToken(token.IF, "ЕСЛИ"),
			testToken(token.IF, "если"),
			testToken(token.IF, "If"),
			testToken(token.EOF, ""),
		}},
		{"Для  Каждого\tДля\t\n Каждого ДляКаждого For Each", []*token.Token{
			testToken(token.FOR_EACH, "Для  Каждого"),
			testToken(token.FOR_EACH, "Для\t\n Каждого"),
			testToken(token.FOR_EACH, "ДляКаждого"),
			testToken(token.FOR_EACH, "For Each"),
			testToken(token.EOF, ""),
		}},
		{`Для Сч = 1 По 10 Цикл`, []*token.Token{
			testToken(token.FOR, "Для"),
			testToken(token.IDENT, "Сч"),
			testToken(token.EQ, "="),
			testToken(token.NUMBER, "1"),
			testToken(token.TO, "По"),
			testToken(token.NUMBER, "10"),
			testToken(token.DO, "Цикл"),
			testToken(token.EOF, ""),
		}},
		{`+-*/%=<><=>=< >()[],;.:?`, []*token.Token{
			testToken(token.PLUS, "+"),
			testToken(token.MINUS, "-"),
			testToken(token.TIMES, "*"),
			testToken(token.DIVIDE, "/"),
			testToken(token.MOD, "%"),
			testToken(token.EQ, "="),
			testToken(token.NEQ, "<>"),
			testToken(token.LE, "<="),
			testToken(token.GE, ">="),
			testToken(token.LT, "<"),
			testToken(token.GT, ">"),
			testToken(token.PAREN_L, "("),
			testToken(token.PAREN_R, ")"),
			testToken(token.BRACKET_L, "["),
			testToken(token.BRACKET_R, "]"),
			testToken(token.COMMA, ","),
			testToken(token.SEMI, ";"),
			testToken(token.DOT, "."),
			testToken(token.COLON, ":"),
			testToken(token.QUESTION, "?"),
			testToken(token.EOF, ""),
		}},
		{`10 0.5 3.Свойство '20240101'`, []*token.Token{
			testToken(token.NUMBER, "10"),
			testToken(token.NUMBER, "0.5"),
			testToken(token.NUMBER, "3"),
			testToken(token.DOT, "."),
			testToken(token.IDENT, "Свойство"),
			testToken(token.DATE, "'20240101'"),
			testToken(token.EOF, ""),
		}},
		{"\"абв\" \"\" \"а\"\"б\" \"стр1\n|стр2\"", []*token.Token{
			testToken(token.STRING, `"абв"`),
			testToken(token.STRING, `""`),
			testToken(token.STRING, `"а""б"`),
			testToken(token.STRING, "\"стр1\n|стр2\""),
			testToken(token.EOF, ""),
		}},
		{"а // комментарий \"\n б", []*token.Token{
			testToken(token.IDENT, "а"),
			testToken(token.IDENT, "б"),
			testToken(token.EOF, ""),
		}},
		{`&НаКлиенте ~Метка: Перейти ~Метка;`, []*token.Token{
			testToken(token.DIRECTIVE, "&НаКлиенте"),
			testToken(token.LABEL, "~Метка"),
			testToken(token.COLON, ":"),
			testToken(token.GOTO, "Перейти"),
			testToken(token.LABEL, "~Метка"),
			testToken(token.SEMI, ";"),
			testToken(token.EOF, ""),
		}},
		{`#Если Сервер #Тогда #КонецЕсли #Region Р #EndRegion`, []*token.Token{
			testToken(token.DEF_IF, "#Если"),
			testToken(token.IDENT, "Сервер"),
			testToken(token.DEF_THEN, "#Тогда"),
			testToken(token.DEF_ENDIF, "#КонецЕсли"),
			testToken(token.AREA, "#Region"),
			testToken(token.IDENT, "Р"),
			testToken(token.AREA_END, "#EndRegion"),
			testToken(token.EOF, ""),
		}},
		{`а #Прагма б`, []*token.Token{
			testToken(token.IDENT, "а"),
			testToken(token.ERROR, "unknown preprocessor instruction: #Прагма"),
			testToken(token.EOF, ""),
		}},
		{`"незакрытая`, []*token.Token{
			testToken(token.ERROR, "unterminated string literal"),
			testToken(token.EOF, ""),
		}},
		{`а $ б`, []*token.Token{
			testToken(token.IDENT, "а"),
			testToken(token.IDENT, "б"),
			testToken(token.EOF, ""),
		}},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			tokens := readAll(t, New(token.NewScanner("test", test.input)))
			assert.Equal(t, test.tokens, tokens, test.input)
		})
	}
}

func TestLexerTerminalError(t *testing.T) {
	lex := New(token.NewScanner("test", "#Неизвестно а б"))
	tok := lex.ReadToken()
	assert.Equal(t, token.ERROR, tok.Type)
	assert.Contains(t, tok.Text, "#Неизвестно")
	for i := 0; i < 3; i++ {
		assert.Equal(t, token.EOF, lex.ReadToken().Type)
	}
}

func TestLexerDiagnostics(t *testing.T) {
	lex := New(token.NewScanner("test", "а $\nб @"))
	tokens := readAll(t, lex)
	require.Len(t, tokens, 3)
	diags := lex.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, '$', diags[0].Char)
	assert.Equal(t, "test:1:3", diags[0].Source.String())
	assert.Equal(t, '@', diags[1].Char)
	assert.Equal(t, 2, diags[1].Source.Line)
	assert.Equal(t, "test:2:3: unexpected character '@'", diags[1].Error())
}

func TestLexerStrict(t *testing.T) {
	lex := New(token.NewScanner("test", "а $ б"), Strict())
	tokens := readAll(t, lex)
	require.Len(t, tokens, 3)
	assert.Equal(t, token.ERROR, tokens[1].Type)
	assert.Equal(t, `unexpected character '$'`, tokens[1].Text)
	assert.Empty(t, lex.Diagnostics())
}

func TestLexerLocation(t *testing.T) {
	lex := New(token.NewScanner("test", "Процедура Тест()\n\tСообщить(1);"))
	var toks []*token.Token
	for {
		tok := lex.ReadToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	require.True(t, len(toks) > 5)
	assert.Equal(t, "test:2:2", toks[4].Source.String())
	assert.Equal(t, "Сообщить", toks[4].Text)
	src := "Процедура Тест()\n\tСообщить(1);"
	for _, tok := range toks {
		assert.Equal(t, tok.Text, src[tok.Source.Pos:tok.End()])
	}
}

func readAll(t *testing.T, lex *Lexer) []*token.Token {
	var tokens []*token.Token
	for i := 0; ; i++ {
		if i > 100000 {
			t.Fatalf("apparent infinite scanning loop")
		}
		tok := lex.ReadToken()
		tok.Source = nil
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

func testToken(typ token.Type, text string) *token.Token {
	return &token.Token{
		Type: typ,
		Text: text,
	}
}
