// Copyright © 2024 The ELPS authors

package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

type jsonGraph struct {
	Variant   string         `json:"variant"`
	Functions []jsonFunction `json:"functions"`
	Calls     []jsonEdge     `json:"calls"`
}

type jsonFunction struct {
	Key       string   `json:"key"`
	Params    []string `json:"params"`
	Export    bool     `json:"export,omitempty"`
	Function  bool     `json:"function,omitempty"`
	Directive string   `json:"directive,omitempty"`
	File      string   `json:"file"`
	Line      int      `json:"line"`
}

type jsonEdge struct {
	Caller string     `json:"caller"`
	Callee string     `json:"callee"`
	Sites  []jsonSite `json:"sites"`
}

type jsonSite struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Col       int    `json:"col"`
	Rewritten bool   `json:"rewritten,omitempty"`
}

// WriteJSON writes the registry and call graph of results to w as JSON, one
// object per variant.
func WriteJSON(w io.Writer, results ...*Result) error {
	out := make([]jsonGraph, 0, len(results))
	for _, r := range results {
		g := jsonGraph{
			Variant:   r.Variant.String(),
			Functions: []jsonFunction{},
			Calls:     []jsonEdge{},
		}
		for _, f := range r.Registry.Functions() {
			fn := jsonFunction{
				Key:       f.Key,
				Params:    f.Params,
				Export:    f.Export,
				Function:  f.Function,
				Directive: f.Directive,
			}
			if f.Source != nil {
				fn.File, fn.Line = f.Source.File, f.Source.Line
			}
			g.Functions = append(g.Functions, fn)
		}
		for _, e := range r.Graph.Edges() {
			edge := jsonEdge{Caller: e.Caller, Callee: e.Callee}
			for _, s := range e.Sites {
				site := jsonSite{Rewritten: s.Rewritten}
				if s.Source != nil {
					site.File, site.Line, site.Col = s.Source.File, s.Source.Line, s.Source.Col
				}
				edge.Sites = append(edge.Sites, site)
			}
			g.Calls = append(g.Calls, edge)
		}
		out = append(out, g)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteDOT writes the call graph of r to w in Graphviz format.  Edges are
// labelled with their number of call sites.
func WriteDOT(w io.Writer, r *Result) error {
	if _, err := fmt.Fprintf(w, "digraph %s {\n", strconv.Quote(r.Variant.String())); err != nil {
		return err
	}
	for _, f := range r.Registry.Functions() {
		shape := "box"
		if f.Function {
			shape = "ellipse"
		}
		if _, err := fmt.Fprintf(w, "\t%s [shape=%s];\n", strconv.Quote(f.Key), shape); err != nil {
			return err
		}
	}
	for _, e := range r.Graph.Edges() {
		_, err := fmt.Fprintf(w, "\t%s -> %s [label=%d];\n",
			strconv.Quote(e.Caller), strconv.Quote(e.Callee), len(e.Sites))
		if err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}
