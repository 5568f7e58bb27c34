package syntax

import (
	"fmt"

	"fortio.org/safecast"

	"refit/internal/source"
)

// Builder accumulates nodes for one file and produces an immutable Tree.
type Builder struct {
	file     *source.File
	nodes    *Arena[Node]
	comments []Comment
	errors   []source.Span
}

// NewBuilder creates a builder for file. capHint sizes the node arena.
func NewBuilder(file *source.File, capHint uint) *Builder {
	return &Builder{
		file:  file,
		nodes: NewArena[Node](capHint),
	}
}

// Add stores n under parent and returns its id. Pass NoNode for the root.
func (b *Builder) Add(parent NodeID, n Node) NodeID {
	n.Parent = parent
	n.Children = nil
	id := NodeID(b.nodes.Allocate(n))
	if p := b.nodes.Get(uint32(parent)); p != nil {
		p.Children = append(p.Children, id)
	}
	return id
}

// AddComment records a comment; its anchor is computed by Finish.
func (b *Builder) AddComment(sp source.Span, block bool) {
	b.comments = append(b.comments, Comment{Span: sp, Block: block})
}

// AddError records a syntax error region.
func (b *Builder) AddError(sp source.Span) {
	b.errors = append(b.errors, sp)
}

// Finish freezes the builder into a Tree rooted at root.
func (b *Builder) Finish(root NodeID) *Tree {
	t := &Tree{
		File:   b.file,
		Root:   root,
		Errors: b.errors,
		nodes:  b.nodes,
	}
	t.Comments = make([]Comment, 0, len(b.comments))
	for _, c := range b.comments {
		t.Comments = append(t.Comments, t.anchor(c))
	}
	b.nodes = nil
	return t
}

// anchor attaches a comment to the statement-level node it trails on the same
// line, or else to the node that follows it.
func (t *Tree) anchor(c Comment) Comment {
	content := t.File.Content
	p := int(c.Span.Start) - 1
	for p >= 0 && (content[p] == ' ' || content[p] == '\t') {
		p--
	}
	if p >= 0 && content[p] != '\n' {
		off := offsetOf(p)
		id := t.Enclosing(off, off+1)
		end := t.Span(id).End
		for par := t.Parent(id); par != NoNode && par != t.Root && t.Span(par).End == end; par = t.Parent(par) {
			id = par
		}
		c.Anchor = id
		c.Placement = Trailing
		return c
	}

	q := int(c.Span.End)
	for q < len(content) && (content[q] == ' ' || content[q] == '\t' || content[q] == '\n' || content[q] == '\r') {
		q++
	}
	c.Placement = Leading
	if q >= len(content) {
		c.Anchor = t.Root
		return c
	}
	off := offsetOf(q)
	id := t.Enclosing(off, off+1)
	for par := t.Parent(id); par != NoNode && par != t.Root && t.Span(par).Start == off; par = t.Parent(par) {
		id = par
	}
	c.Anchor = id
	return c
}

func offsetOf(i int) uint32 {
	off, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("comment offset overflow: %w", err))
	}
	return off
}
