// Copyright © 2024 The ELPS authors

package analysis

import (
	"sort"

	"github.com/luthersystems/bsl/ast"
	"github.com/luthersystems/bsl/parser/token"
)

// CallSite is one call from a caller to a callee.
type CallSite struct {
	Unit *Unit
	// Node is the Call node.  After the call is rewritten it is the Dotted
	// node that qualifies the call.
	Node   ast.NodeID
	Source *token.Location
	// Qualified is set when the call was written Модуль.Ф().
	Qualified bool
	Rewritten bool
}

// Edge is the set of calls from Caller to Callee, keyed by function key.
type Edge struct {
	Caller string
	Callee string
	Sites  []*CallSite
}

// Graph maps a caller to its callees and each pair to its call sites in
// source order.
type Graph struct {
	edges   map[string]map[string][]*CallSite
	callers map[string]map[string]bool
}

func newGraph() *Graph {
	return &Graph{
		edges:   make(map[string]map[string][]*CallSite),
		callers: make(map[string]map[string]bool),
	}
}

func (g *Graph) add(caller, callee string, site *CallSite) {
	callees := g.edges[caller]
	if callees == nil {
		callees = make(map[string][]*CallSite)
		g.edges[caller] = callees
	}
	callees[callee] = append(callees[callee], site)
	if g.callers[callee] == nil {
		g.callers[callee] = make(map[string]bool)
	}
	g.callers[callee][caller] = true
}

// Len returns the number of caller-callee pairs.
func (g *Graph) Len() int {
	n := 0
	for _, callees := range g.edges {
		n += len(callees)
	}
	return n
}

// Callees returns the sorted keys of the functions called by caller.
func (g *Graph) Callees(caller string) []string {
	return sortedKeys(g.edges[caller])
}

// Callers returns the sorted keys of the functions calling callee.
func (g *Graph) Callers(callee string) []string {
	return sortedKeys(g.callers[callee])
}

// Sites returns the calls from caller to callee in source order.
func (g *Graph) Sites(caller, callee string) []*CallSite {
	return g.edges[caller][callee]
}

// Edges returns every edge sorted by caller and callee.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, caller := range sortedKeys(g.edges) {
		for _, callee := range g.Callees(caller) {
			edges = append(edges, Edge{
				Caller: caller,
				Callee: callee,
				Sites:  g.edges[caller][callee],
			})
		}
	}
	return edges
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
