// Copyright © 2024 The ELPS authors

// Package ast is the syntax tree of a parsed module.
//
// A Tree is an arena of nodes addressed by NodeID.  Every node except the
// root is held by exactly one child slot of its owner, and records that slot
// in Node.Owner.  Tree surgery is a slot rewrite: Replace moves a node into
// the slot of another node and updates both owner records, so no node is ever
// reachable from two parents.
package ast

import (
	"fmt"

	"github.com/luthersystems/bsl/parser/token"
)

// NodeID addresses a node within its Tree.
type NodeID int32

// NoNode is the NodeID of a missing node.
const NoNode NodeID = -1

// Kind is the variant of a node.  Cell layouts are described per kind.
type Kind uint8

const (
	InvalidKind Kind = iota

	// Declarations
	Module    // Cells: VarDecl, Func, statements and PreprocIf in source order
	Func      // Text: name; Annot: directive; Cells: [ParamList, Block]
	ParamList // Cells: Param...
	Param     // Text: name; Cells: [default]?
	VarDecl   // Text: name
	Block     // Cells: statements

	// Statements
	Assign     // Cells: [target, value]
	If         // Cells: [cond, Block, ElseIf..., Else?]
	ElseIf     // Cells: [cond, Block]
	Else       // Cells: [Block]
	While      // Cells: [cond, Block]
	For        // Cells: [Ident, from, to, Block]
	ForEach    // Cells: [Ident, collection, Block]
	Try        // Cells: [Block, Block]
	Raise      // Cells: [message]?
	Return     // Cells: [value]?
	Break      //
	Continue   //
	Goto       // Text: label
	Label      // Text: label
	CallStmt   // Cells: [call expression]
	PreprocIf  // Cells: PreprocArm...
	PreprocArm // Text: condition text, empty for #Иначе; Cells: [Block]
	Empty      //

	// Expressions
	Ident     // Text: name
	Number    // Text: literal
	String    // Text: literal, quotes included
	Date      // Text: literal, quotes included
	Bool      // Text: literal
	Undefined //
	Null      //
	Binary    // Text: operator; Cells: [x, y]
	Unary     // Text: operator; Cells: [x]
	Dotted    // Cells: [root, step...]
	Call      // Text: name; Cells: arguments
	Index     // Cells: [index] as a step of Dotted
	New       // Text: type name; Cells: arguments
	Ternary   // Cells: [cond, then, else]
	Skip      // an omitted argument

	numKinds
)

var kindStrings = [numKinds]string{
	InvalidKind: "invalid",
	Module:      "module",
	Func:        "func",
	ParamList:   "params",
	Param:       "param",
	VarDecl:     "var",
	Block:       "block",
	Assign:      "assign",
	If:          "if",
	ElseIf:      "elseif",
	Else:        "else",
	While:       "while",
	For:         "for",
	ForEach:     "foreach",
	Try:         "try",
	Raise:       "raise",
	Return:      "return",
	Break:       "break",
	Continue:    "continue",
	Goto:        "goto",
	Label:       "label",
	CallStmt:    "callstmt",
	PreprocIf:   "#if",
	PreprocArm:  "#arm",
	Empty:       "empty",
	Ident:       "ident",
	Number:      "number",
	String:      "string",
	Date:        "date",
	Bool:        "bool",
	Undefined:   "undefined",
	Null:        "null",
	Binary:      "binary",
	Unary:       "unary",
	Dotted:      "dotted",
	Call:        "call",
	Index:       "index",
	New:         "new",
	Ternary:     "ternary",
	Skip:        "skip",
}

func (k Kind) String() string {
	if k >= numKinds {
		return kindStrings[InvalidKind]
	}
	return kindStrings[k]
}

type Flags uint8

const (
	FlagFunction Flags = 1 << iota // Func returns a value
	FlagExport                     // Func or VarDecl is exported
	FlagVal                        // Param is passed by value
	FlagDynamic                    // New names its type with an expression
)

// Slot is a child position: cell Index of node Parent.
type Slot struct {
	Parent NodeID
	Index  int
}

var noSlot = Slot{Parent: NoNode}

type Node struct {
	Kind   Kind
	Text   string
	Flags  Flags
	Annot  string
	Source *token.Location
	Owner  Slot
	Cells  []NodeID
}

func (n *Node) Is(f Flags) bool {
	return n.Flags&f != 0
}

// Tree holds the nodes of one parsed module variant.  A Tree is not safe for
// concurrent mutation.
type Tree struct {
	Name  string
	Root  NodeID
	nodes []*Node
}

func NewTree(name string) *Tree {
	return &Tree{Name: name, Root: NoNode}
}

// Len returns the number of nodes allocated in t, attached or not.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// At returns the node id.  The pointer remains valid as t grows.
func (t *Tree) At(id NodeID) *Node {
	return t.nodes[id]
}

// New allocates a node owning cells.  The cells must be detached.
func (t *Tree) New(kind Kind, text string, src *token.Location, cells ...NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, &Node{
		Kind:   kind,
		Text:   text,
		Source: src,
		Owner:  noSlot,
	})
	for _, c := range cells {
		t.Append(id, c)
	}
	return id
}

// Append adds child as the last cell of parent.
func (t *Tree) Append(parent NodeID, child NodeID) {
	p := t.nodes[parent]
	t.nodes[child].Owner = Slot{Parent: parent, Index: len(p.Cells)}
	p.Cells = append(p.Cells, child)
}

// Cell returns cell i of id, or NoNode when id has fewer cells.
func (t *Tree) Cell(id NodeID, i int) NodeID {
	n := t.nodes[id]
	if i < 0 || i >= len(n.Cells) {
		return NoNode
	}
	return n.Cells[i]
}

// Parent returns the owner of id, or NoNode for the root or a detached node.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].Owner.Parent
}

// Replace puts repl into the slot that holds old.  Afterwards repl has the
// owner old had and old is detached, so it can be attached below repl.
func (t *Tree) Replace(old NodeID, repl NodeID) error {
	if old == repl {
		return fmt.Errorf("replace node %d with itself", old)
	}
	if !t.valid(old) || !t.valid(repl) {
		return fmt.Errorf("replace node %d with %d: no such node", old, repl)
	}
	o, r := t.nodes[old], t.nodes[repl]
	if o.Owner.Parent == NoNode {
		return fmt.Errorf("replace node %d: node has no owner", old)
	}
	if r.Owner.Parent != NoNode || repl == t.Root {
		return fmt.Errorf("replace node %d: replacement %d is attached", old, repl)
	}
	slot := o.Owner
	t.nodes[slot.Parent].Cells[slot.Index] = repl
	r.Owner = slot
	o.Owner = noSlot
	return nil
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Walk calls fn for id and its descendants, depth-first in cell order.  The
// children of a node are skipped when fn returns false.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, n *Node) bool) {
	if id == NoNode {
		return
	}
	n := t.nodes[id]
	if !fn(id, n) {
		return
	}
	for _, c := range n.Cells {
		t.Walk(c, fn)
	}
}

// Funcs returns the procedures and functions declared by the module in
// source order, including those inside retained preprocessor blocks.
func (t *Tree) Funcs() []NodeID {
	var funcs []NodeID
	t.Walk(t.Root, func(id NodeID, n *Node) bool {
		switch n.Kind {
		case Module, PreprocIf, PreprocArm, Block:
			return true
		case Func:
			funcs = append(funcs, id)
		}
		return false
	})
	return funcs
}

// Validate checks that every node reachable from the root is held by exactly
// one slot and that each node's owner record names that slot.
func (t *Tree) Validate() error {
	if t.Root == NoNode {
		return fmt.Errorf("tree %s has no root", t.Name)
	}
	if owner := t.nodes[t.Root].Owner; owner.Parent != NoNode {
		return fmt.Errorf("tree %s: root %d has owner %d", t.Name, t.Root, owner.Parent)
	}
	seen := make(map[NodeID]bool, len(t.nodes))
	var check func(id NodeID) error
	check = func(id NodeID) error {
		if seen[id] {
			return fmt.Errorf("tree %s: node %d is reachable twice", t.Name, id)
		}
		seen[id] = true
		for i, c := range t.nodes[id].Cells {
			if !t.valid(c) {
				return fmt.Errorf("tree %s: node %d cell %d: invalid node %d", t.Name, id, i, c)
			}
			if owner := t.nodes[c].Owner; owner != (Slot{Parent: id, Index: i}) {
				return fmt.Errorf("tree %s: node %d at %d[%d] records owner %d[%d]",
					t.Name, c, id, i, owner.Parent, owner.Index)
			}
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(t.Root)
}
