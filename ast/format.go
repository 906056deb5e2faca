// Copyright © 2024 The ELPS authors

package ast

import (
	"strconv"
	"strings"
)

// Format returns id and its descendants as an s-expression, e.g.
//
//	(dotted (ident "Мод") (call "Ф" (number "1")))
func (t *Tree) Format(id NodeID) string {
	var b strings.Builder
	t.format(&b, id)
	return b.String()
}

func (t *Tree) format(b *strings.Builder, id NodeID) {
	if id == NoNode {
		b.WriteString("()")
		return
	}
	n := t.nodes[id]
	b.WriteByte('(')
	b.WriteString(n.Kind.String())
	if n.Text != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(n.Text))
	}
	if n.Annot != "" {
		b.WriteString(" ")
		b.WriteString(n.Annot)
	}
	for _, f := range []struct {
		flag Flags
		name string
	}{
		{FlagFunction, ":function"},
		{FlagExport, ":export"},
		{FlagVal, ":val"},
		{FlagDynamic, ":dynamic"},
	} {
		if n.Is(f.flag) {
			b.WriteByte(' ')
			b.WriteString(f.name)
		}
	}
	for _, c := range n.Cells {
		b.WriteByte(' ')
		t.format(b, c)
	}
	b.WriteByte(')')
}
