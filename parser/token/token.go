// Copyright © 2024 The ELPS authors

package token

import (
	"fmt"
	"sync"

	"golang.org/x/text/cases"
)

type Token struct {
	Type   Type
	Text   string // raw source text of the token
	Source *Location
}

// End returns the byte offset just past the token in its source text.
func (tok *Token) End() int {
	return tok.Source.Pos + len(tok.Text)
}

func (tok *Token) String() string {
	if tok.Type.IsKeyword() || tok.Type == IDENT {
		return fmt.Sprintf("%v %q", tok.Type, tok.Text)
	}
	return tok.Type.String()
}

type Type uint

// Type constants used by the lexer, preprocessor and parser.
const (
	INVALID Type = iota
	ERROR
	EOF

	// Atoms & literals
	IDENT
	NUMBER
	STRING
	DATE
	DIRECTIVE // &НаКлиенте
	LABEL     // ~Метка

	// Operators & delimiters
	PLUS
	MINUS
	TIMES
	DIVIDE
	MOD
	EQ
	NEQ
	LT
	GT
	LE
	GE
	PAREN_L
	PAREN_R
	BRACKET_L
	BRACKET_R
	COMMA
	SEMI
	DOT
	COLON
	QUESTION

	keywordStart
	IF
	THEN
	ELSE_IF
	ELSE
	END_IF
	FOR
	FOR_EACH
	TO
	IN
	WHILE
	DO
	END_DO
	CONTINUE
	BREAK
	FUNCTION
	END_FUNCTION
	PROCEDURE
	END_PROCEDURE
	GOTO
	UNDEFINED
	NULL
	VAL
	VAR
	EXPORT
	TRUE
	FALSE
	NOT
	AND
	OR
	NEW
	TRY
	EXCEPT
	END_TRY
	RAISE
	RETURN
	keywordEnd

	preprocStart
	DEF_IF
	DEF_THEN
	DEF_ELSE_IF
	DEF_ELSE
	DEF_ENDIF
	AREA
	AREA_END
	INSERT
	INSERT_END
	DELETE
	DELETE_END
	preprocEnd

	numTokenTypes
)

var typeStrings = [numTokenTypes]string{
	INVALID:       "invalid",
	ERROR:         "error",
	EOF:           "EOF",
	IDENT:         "ident",
	NUMBER:        "number",
	STRING:        "string",
	DATE:          "date",
	DIRECTIVE:     "directive",
	LABEL:         "label",
	PLUS:          "+",
	MINUS:         "-",
	TIMES:         "*",
	DIVIDE:        "/",
	MOD:           "%",
	EQ:            "=",
	NEQ:           "<>",
	LT:            "<",
	GT:            ">",
	LE:            "<=",
	GE:            ">=",
	PAREN_L:       "(",
	PAREN_R:       ")",
	BRACKET_L:     "[",
	BRACKET_R:     "]",
	COMMA:         ",",
	SEMI:          ";",
	DOT:           ".",
	COLON:         ":",
	QUESTION:      "?",
	IF:            "IF",
	THEN:          "THEN",
	ELSE_IF:       "ELSE_IF",
	ELSE:          "ELSE",
	END_IF:        "END_IF",
	FOR:           "FOR",
	FOR_EACH:      "FOR_EACH",
	TO:            "TO",
	IN:            "IN",
	WHILE:         "WHILE",
	DO:            "DO",
	END_DO:        "END_DO",
	CONTINUE:      "CONTINUE",
	BREAK:         "BREAK",
	FUNCTION:      "FUNCTION",
	END_FUNCTION:  "END_FUNCTION",
	PROCEDURE:     "PROCEDURE",
	END_PROCEDURE: "END_PROCEDURE",
	GOTO:          "GOTO",
	UNDEFINED:     "UNDEFINED",
	NULL:          "NULL",
	VAL:           "VAL",
	VAR:           "VAR",
	EXPORT:        "EXPORT",
	TRUE:          "TRUE",
	FALSE:         "FALSE",
	NOT:           "NOT",
	AND:           "AND",
	OR:            "OR",
	NEW:           "NEW",
	TRY:           "TRY",
	EXCEPT:        "EXCEPT",
	END_TRY:       "END_TRY",
	RAISE:         "RAISE",
	RETURN:        "RETURN",
	DEF_IF:        "DEF_IF",
	DEF_THEN:      "DEF_THEN",
	DEF_ELSE_IF:   "DEF_ELSE_IF",
	DEF_ELSE:      "DEF_ELSE",
	DEF_ENDIF:     "DEF_ENDIF",
	AREA:          "AREA",
	AREA_END:      "AREA_END",
	INSERT:        "INSERT",
	INSERT_END:    "INSERT_END",
	DELETE:        "DELETE",
	DELETE_END:    "DELETE_END",
}

func (typ Type) String() string {
	if typ >= numTokenTypes || typeStrings[typ] == "" {
		return typeStrings[INVALID]
	}
	return typeStrings[typ]
}

// IsKeyword reports whether typ is a reserved word of the language proper.
func (typ Type) IsKeyword() bool {
	return keywordStart < typ && typ < keywordEnd
}

// IsPreproc reports whether typ is a preprocessor instruction.
func (typ Type) IsPreproc() bool {
	return preprocStart < typ && typ < preprocEnd
}

// Reserved words, keyed by their case-folded spelling.  The platform accepts
// the Russian and the English spelling of every keyword interchangeably.
var keywords = foldTable(map[string]Type{
	"если":              IF,
	"тогда":             THEN,
	"иначеесли":         ELSE_IF,
	"иначе":             ELSE,
	"конецесли":         END_IF,
	"для":               FOR,
	"по":                TO,
	"из":                IN,
	"пока":              WHILE,
	"цикл":              DO,
	"конеццикла":        END_DO,
	"продолжить":        CONTINUE,
	"прервать":          BREAK,
	"функция":           FUNCTION,
	"конецфункции":      END_FUNCTION,
	"процедура":         PROCEDURE,
	"конецпроцедуры":    END_PROCEDURE,
	"перейти":           GOTO,
	"неопределено":      UNDEFINED,
	"знач":              VAL,
	"перем":             VAR,
	"экспорт":           EXPORT,
	"истина":            TRUE,
	"ложь":              FALSE,
	"не":                NOT,
	"и":                 AND,
	"или":               OR,
	"новый":             NEW,
	"попытка":           TRY,
	"исключение":        EXCEPT,
	"конецпопытки":      END_TRY,
	"вызватьисключение": RAISE,
	"возврат":           RETURN,
	"null":              NULL,

	"if":           IF,
	"then":         THEN,
	"elsif":        ELSE_IF,
	"else":         ELSE,
	"endif":        END_IF,
	"for":          FOR,
	"to":           TO,
	"in":           IN,
	"while":        WHILE,
	"do":           DO,
	"enddo":        END_DO,
	"continue":     CONTINUE,
	"break":        BREAK,
	"function":     FUNCTION,
	"endfunction":  END_FUNCTION,
	"procedure":    PROCEDURE,
	"endprocedure": END_PROCEDURE,
	"goto":         GOTO,
	"undefined":    UNDEFINED,
	"val":          VAL,
	"var":          VAR,
	"export":       EXPORT,
	"true":         TRUE,
	"false":        FALSE,
	"not":          NOT,
	"and":          AND,
	"or":           OR,
	"new":          NEW,
	"try":          TRY,
	"except":       EXCEPT,
	"endtry":       END_TRY,
	"raise":        RAISE,
	"return":       RETURN,
})

// Preprocessor instructions live in their own namespace; the names are
// stored without the leading '#'.
var preprocs = foldTable(map[string]Type{
	"если":          DEF_IF,
	"тогда":         DEF_THEN,
	"иначеесли":     DEF_ELSE_IF,
	"иначе":         DEF_ELSE,
	"конецесли":     DEF_ENDIF,
	"область":       AREA,
	"конецобласти":  AREA_END,
	"вставка":       INSERT,
	"конецвставки":  INSERT_END,
	"удаление":      DELETE,
	"конецудаления": DELETE_END,

	"if":        DEF_IF,
	"then":      DEF_THEN,
	"elsif":     DEF_ELSE_IF,
	"else":      DEF_ELSE,
	"endif":     DEF_ENDIF,
	"region":    AREA,
	"endregion": AREA_END,
	"insert":    INSERT,
	"endinsert": INSERT_END,
	"delete":    DELETE,
	"enddelete": DELETE_END,
})

// The second word of the compound FOR_EACH keyword.
var eachWords = foldTable(map[string]Type{
	"каждого": FOR_EACH,
	"each":    FOR_EACH,
})

func foldTable(m map[string]Type) map[string]Type {
	folded := make(map[string]Type, len(m))
	for k, v := range m {
		folded[Fold(k)] = v
	}
	return folded
}

// Fold returns the case-folded form of s used for every case-insensitive
// identity comparison of names in the language.
func Fold(s string) string {
	c := folders.Get().(cases.Caser)
	defer folders.Put(c)
	return c.String(s)
}

// folders holds cases.Fold Casers, which are not safe for concurrent use.
var folders = sync.Pool{
	New: func() interface{} { return cases.Fold() },
}

// EqualFold reports whether a and b are the same name ignoring case.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Lookup maps identifier text to its keyword type.  Text that is not a
// reserved word is an IDENT.
func Lookup(text string) Type {
	if typ, ok := keywords[Fold(text)]; ok {
		return typ
	}
	return IDENT
}

// LookupPreproc maps the name of a preprocessor instruction (without '#') to
// its type.  The second value is false for an unknown instruction.
func LookupPreproc(name string) (Type, bool) {
	typ, ok := preprocs[Fold(name)]
	return typ, ok
}

// IsEachWord reports whether text completes a FOR keyword into FOR_EACH.
func IsEachWord(text string) bool {
	_, ok := eachWords[Fold(text)]
	return ok
}

// IsForEachWord reports whether text already spells both halves of FOR_EACH
// without separating whitespace (e.g. "ДляКаждого").
func IsForEachWord(text string) bool {
	switch Fold(text) {
	case Fold("ДляКаждого"), Fold("ForEach"):
		return true
	}
	return false
}

type Location struct {
	File string // a name representing the source stream
	Path string // a physical location which may differ from File
	Pos  int    // byte offset
	Line int    // line number (starting at 1 when tracked)
	Col  int    // rune column within the line (starting at 1 when tracked)
}

func (loc *Location) String() string {
	switch {
	case loc == nil:
		return "<unknown>"
	case loc.Pos < 0:
		return loc.File
	case loc.Line == 0:
		return fmt.Sprintf("%s[%d]", loc.File, loc.Pos)
	case loc.Col == 0:
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	}
}

type LocationError struct {
	Err    error
	Source *Location
}

func (err *LocationError) Error() string {
	return fmt.Sprintf("%s: %s", err.Source, err.Err)
}

func (err *LocationError) Unwrap() error {
	return err.Err
}
