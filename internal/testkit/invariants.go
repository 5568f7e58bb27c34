// Package testkit holds structural checks shared by parser and rule tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"refit/internal/syntax"
)

// CheckTreeInvariants runs the span invariants every rule relies on:
//  1. every span lies within the file content and points at the file
//  2. every child lies within its parent and links back to it
//  3. siblings are ordered and do not overlap
//  4. comments lie within the file and anchor to an existing node
func CheckTreeInvariants(t *syntax.Tree) error {
	if t == nil || t.File == nil {
		return fmt.Errorf("nil tree or file")
	}
	root := t.Node(t.Root)
	if root == nil {
		return fmt.Errorf("root node %d not found", t.Root)
	}
	lenContent, err := safecast.Conv[uint32](len(t.File.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if root.Span.End > lenContent || root.Span.Start > root.Span.End {
		return fmt.Errorf("root span %v outside content of %d bytes", root.Span, lenContent)
	}

	var walkErr error
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		if walkErr != nil {
			return false
		}
		n := t.Node(id)
		if n.Span.File != t.File.ID {
			walkErr = fmt.Errorf("node %d (%s) points to file %d, want %d", id, n.Type, n.Span.File, t.File.ID)
			return false
		}
		var prevEnd uint32
		for i, c := range n.Children {
			child := t.Node(c)
			if child == nil {
				walkErr = fmt.Errorf("node %d: child %d missing", id, c)
				return false
			}
			if child.Parent != id {
				walkErr = fmt.Errorf("node %d (%s): parent link %d, want %d", c, child.Type, child.Parent, id)
				return false
			}
			if !n.Span.Contains(child.Span) {
				walkErr = fmt.Errorf("node %d (%s) span %v escapes parent %d (%s) span %v", c, child.Type, child.Span, id, n.Type, n.Span)
				return false
			}
			if i > 0 && child.Span.Start < prevEnd {
				walkErr = fmt.Errorf("node %d (%s) overlaps its previous sibling under %d", c, child.Type, id)
				return false
			}
			prevEnd = child.Span.End
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	for i, c := range t.Comments {
		if c.Span.End > lenContent || c.Span.Start >= c.Span.End {
			return fmt.Errorf("comment %d span %v outside content", i, c.Span)
		}
		if c.Anchor != syntax.NoNode && t.Node(c.Anchor) == nil {
			return fmt.Errorf("comment %d anchors to missing node %d", i, c.Anchor)
		}
	}
	return nil
}
