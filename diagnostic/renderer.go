// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

// DefaultNoteWidth is the column at which notes wrap when Renderer.Width is
// zero.
const DefaultNoteWidth = 80

const bom = "\ufeff"

// Renderer formats diagnostics as annotated source snippets.
type Renderer struct {
	// Color controls ANSI color output. Default is ColorAuto.
	Color ColorMode

	// Width is the wrap column for notes.  A negative Width disables
	// wrapping.
	Width int

	// SourceReader reads module contents. If nil, os.ReadFile is used.
	SourceReader func(string) ([]byte, error)
}

// Render writes a single diagnostic to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) error {
	p := choosePalette(r.Color, fileFromWriter(w))
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	r.writeHeader(ew, d, p)
	for _, span := range d.Spans {
		r.writeSpan(ew, span, p)
	}
	for _, note := range d.Notes {
		r.writeNote(ew, note, p)
	}

	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// RenderAll writes all diagnostics to w separated by blank lines.
func (r *Renderer) RenderAll(w io.Writer, diags []Diagnostic) error {
	for i, d := range diags {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := r.Render(w, d); err != nil {
			return err
		}
	}
	return nil
}

// errWriter wraps a writer and captures the first error, short-circuiting
// subsequent writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (r *Renderer) writeHeader(ew *errWriter, d Diagnostic, p palette) {
	var sevColor string
	switch d.Severity {
	case SeverityError:
		sevColor = p.boldRed
	case SeverityWarning:
		sevColor = p.yellow
	case SeverityNote:
		sevColor = p.boldCyan
	}
	ew.printf("%s%s%s%s: %s%s%s\n",
		sevColor, p.bold, d.Severity, p.reset,
		p.bold, d.Message, p.reset)
}

// writeNote writes a note, wrapping long text under its "= note:" prefix.
func (r *Renderer) writeNote(ew *errWriter, note string, p palette) {
	const prefix = "   = note: "
	width := r.Width
	if width == 0 {
		width = DefaultNoteWidth
	}
	if width > 0 && width > len(prefix) {
		note = wordwrap.String(note, width-len(prefix))
	}
	lines := strings.SplitN(note, "\n", 2)
	ew.printf("   %s=%s note: %s\n", p.boldCyan, p.reset, lines[0])
	if len(lines) > 1 {
		ew.print(indent.String(lines[1], uint(len(prefix))))
		ew.print("\n")
	}
}

func (r *Renderer) writeSpan(ew *errWriter, span Span, p palette) {
	loc := span.File
	if span.Line > 0 {
		loc = fmt.Sprintf("%s:%d", span.File, span.Line)
		if span.Col > 0 {
			loc = fmt.Sprintf("%s:%d:%d", span.File, span.Line, span.Col)
		}
	}
	ew.printf("  %s-->%s %s\n", p.boldBlue, p.reset, loc)

	source := r.readSourceLine(span.File, span.Line)
	if source == "" {
		ew.printf("   %s|%s\n", p.boldBlue, p.reset)
		return
	}
	line := []rune(source)

	lineStr := fmt.Sprintf("%d", span.Line)
	pad := strings.Repeat(" ", len(lineStr))

	ew.printf(" %s%s |%s\n", p.boldBlue, pad, p.reset)
	displaySource := strings.ReplaceAll(source, "\t", "    ")
	ew.printf(" %s%s |%s  %s\n", p.boldBlue, lineStr, p.reset, displaySource)

	col := span.Col
	endCol := span.EndCol
	if col <= 0 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}
	if endCol <= 0 {
		endCol = detectEndCol(line, col)
	}
	if endCol < col {
		endCol = col
	}
	underLen := endCol - col + 1

	displayCol := displayWidth(line[:col-1])
	underPad := strings.Repeat(" ", displayCol)
	underline := strings.Repeat("^", underLen)

	ew.printf(" %s%s |%s  %s%s%s%s", p.boldBlue, pad, p.reset, underPad, p.boldRed, underline, p.reset)
	if span.Label != "" {
		ew.printf(" %s%s%s", p.boldRed, span.Label, p.reset)
	}
	ew.print("\n")
	ew.printf(" %s%s |%s\n", p.boldBlue, pad, p.reset)
}

func (r *Renderer) readSourceLine(file string, line int) string {
	if line <= 0 || file == "" {
		return ""
	}
	reader := r.SourceReader
	if reader == nil {
		reader = func(name string) ([]byte, error) {
			return os.ReadFile(name) //nolint:gosec // reads user-specified modules for display
		}
	}
	data, err := reader(file)
	if err != nil {
		return ""
	}
	data = bytes.TrimPrefix(data, []byte(bom))
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for i := 1; scanner.Scan(); i++ {
		if i == line {
			return strings.TrimSuffix(scanner.Text(), "\r")
		}
	}
	return ""
}

// detectEndCol returns the last column of the word starting at col.  A
// non-word character is underlined alone.
func detectEndCol(line []rune, col int) int {
	if col <= 0 || col > len(line) {
		return col
	}
	end := col - 1
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	if end == col-1 {
		return col
	}
	return end
}

func isWordRune(c rune) bool {
	return c == '_' || c == '&' || c == '#' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// displayWidth returns the display width of runes, expanding tabs to 4 spaces.
func displayWidth(s []rune) int {
	w := 0
	for _, ch := range s {
		if ch == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}

// fileFromWriter attempts to extract an *os.File from a writer for terminal
// detection. Returns nil if the writer is not backed by a file.
func fileFromWriter(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
