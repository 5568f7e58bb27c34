package syntax

import (
	"refit/internal/source"
)

// NodeID indexes a node in its Tree. NoNode means absent.
type NodeID uint32

const NoNode NodeID = 0

// Node is one element of the syntax tree. Children are owned by ID; Parent is
// a lookup link only.
type Node struct {
	Kind     Kind
	Type     string // grammar node type, e.g. "object_creation_expression"
	Field    string // field name under the parent, if any
	Named    bool   // false for punctuation and keyword tokens
	Span     source.Span
	Parent   NodeID
	Children []NodeID
}

// Placement says on which side of its anchor a comment sits.
type Placement uint8

const (
	Leading Placement = iota
	Trailing
)

// Comment is a side-table entry. Comments never appear in Node.Children.
type Comment struct {
	Span      source.Span
	Anchor    NodeID
	Placement Placement
	Block     bool
}

// Tree is an immutable syntax tree over one file snapshot.
type Tree struct {
	File     *source.File
	Root     NodeID
	Comments []Comment
	Errors   []source.Span

	nodes *Arena[Node]
}

// Node returns the node for id or nil.
func (t *Tree) Node(id NodeID) *Node {
	return t.nodes.Get(uint32(id))
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return int(t.nodes.Len())
}

// Kind returns the node kind, KindOther for NoNode.
func (t *Tree) Kind(id NodeID) Kind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindOther
}

// Span returns the node span.
func (t *Tree) Span(id NodeID) source.Span {
	if n := t.Node(id); n != nil {
		return n.Span
	}
	return source.Span{}
}

// Text returns the original source text of the node.
func (t *Tree) Text(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	return t.File.Text(n.Span)
}

// Parent returns the parent of id.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return NoNode
}

// Field returns the first child stored under the given field name.
func (t *Tree) Field(id NodeID, name string) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.Node(c).Field == name {
			return c
		}
	}
	return NoNode
}

// Fields returns every child stored under the given field name.
func (t *Tree) Fields(id NodeID, name string) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, c := range n.Children {
		if t.Node(c).Field == name {
			out = append(out, c)
		}
	}
	return out
}

// Named returns the named children of id in source order.
func (t *Tree) Named(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.Children))
	for _, c := range n.Children {
		if t.Node(c).Named {
			out = append(out, c)
		}
	}
	return out
}

// FirstOf returns the first direct child of the given kind.
func (t *Tree) FirstOf(id NodeID, kind Kind) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.Node(c).Kind == kind {
			return c
		}
	}
	return NoNode
}

// ChildrenOf returns the direct children of the given kind.
func (t *Tree) ChildrenOf(id NodeID, kind Kind) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, c := range n.Children {
		if t.Node(c).Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// HasToken reports whether id has an anonymous child token with the given text.
func (t *Tree) HasToken(id NodeID, tok string) bool {
	n := t.Node(id)
	if n == nil {
		return false
	}
	for _, c := range n.Children {
		cn := t.Node(c)
		if !cn.Named && t.File.Text(cn.Span) == tok {
			return true
		}
	}
	return false
}

// Ancestor returns the nearest proper ancestor whose kind is one of kinds.
func (t *Tree) Ancestor(id NodeID, kinds ...Kind) NodeID {
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		k := t.Kind(p)
		for _, want := range kinds {
			if k == want {
				return p
			}
		}
	}
	return NoNode
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for p := id; p != NoNode; p = t.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// Walk visits id and its descendants in preorder. Returning false from fn
// skips the children of that node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// Enclosing returns the smallest named node whose span covers [start, end).
// An empty selection at a token boundary prefers the token that starts there.
func (t *Tree) Enclosing(start, end uint32) NodeID {
	cur := t.Root
	if !t.Span(cur).ContainsOffset(start) {
		return NoNode
	}
	for {
		next, fallback := NoNode, NoNode
		for _, c := range t.Node(cur).Children {
			cn := t.Node(c)
			if !cn.Named || cn.Span.Start > start || end > cn.Span.End {
				continue
			}
			if start < cn.Span.End || cn.Span.Empty() {
				next = c
				break
			}
			if start == end {
				// каретка сразу после токена
				fallback = c
			}
		}
		if next == NoNode {
			next = fallback
		}
		if next == NoNode {
			return cur
		}
		cur = next
	}
}

// Statement returns the nearest node at or above id that sits in statement
// position: a child of a block, switch group or lambda/loop body.
func (t *Tree) Statement(id NodeID) NodeID {
	for cur := id; cur != NoNode; cur = t.Parent(cur) {
		if t.IsStatement(cur) {
			return cur
		}
	}
	return NoNode
}

// IsStatement reports whether id is a statement node in statement position.
func (t *Tree) IsStatement(id NodeID) bool {
	n := t.Node(id)
	if n == nil || !n.Kind.IsStatement() {
		return false
	}
	switch t.Kind(n.Parent) {
	case KindBlock, KindSwitchGroup, KindProgram:
		return true
	case KindIf, KindFor, KindForEach, KindWhile, KindDo:
		switch n.Field {
		case "body", "consequence", "alternative":
			return true
		}
		return false
	case KindSwitchRule:
		return n.Kind != KindSwitch
	}
	return false
}

// InError reports whether id overlaps a syntax error region.
func (t *Tree) InError(id NodeID) bool {
	sp := t.Span(id)
	for _, e := range t.Errors {
		if e.Overlaps(sp) || (e.Empty() && sp.Start < e.Start && e.Start < sp.End) {
			return true
		}
	}
	return false
}

// CommentsOf returns the comments anchored to id with the given placement.
func (t *Tree) CommentsOf(id NodeID, placement Placement) []Comment {
	var out []Comment
	for _, c := range t.Comments {
		if c.Anchor == id && c.Placement == placement {
			out = append(out, c)
		}
	}
	return out
}

// CommentsIn returns the comments whose span lies inside sp.
func (t *Tree) CommentsIn(sp source.Span) []Comment {
	var out []Comment
	for _, c := range t.Comments {
		if sp.Contains(c.Span) {
			out = append(out, c)
		}
	}
	return out
}
