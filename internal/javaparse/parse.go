// Package javaparse turns Java source into a syntax.Tree using tree-sitter.
package javaparse

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"refit/internal/diag"
	"refit/internal/source"
	"refit/internal/syntax"
)

// ErrNoFile is returned when Parse is called without a file.
var ErrNoFile = errors.New("javaparse: nil file")

// Result bundles the tree with the syntax diagnostics found while building it.
type Result struct {
	Tree        *syntax.Tree
	Diagnostics []diag.Diagnostic
}

// Parse parses file and converts the concrete tree into a syntax.Tree.
// Syntax errors do not fail the call; they are reported in Result.Diagnostics
// and recorded as Tree.Errors.
func Parse(ctx context.Context, file *source.File) (*Result, error) {
	if file == nil {
		return nil, ErrNoFile
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, file.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	bag := diag.NewBag(64)
	conv := &converter{
		file: file,
		b:    syntax.NewBuilder(file, uint(root.ChildCount())*8+16),
		// вложенные ERROR-узлы дают одинаковые спаны
		rep: diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
	}
	rootID := conv.node(syntax.NoNode, root, "")
	bag.Sort()
	res := &Result{
		Tree:        conv.b.Finish(rootID),
		Diagnostics: bag.Items(),
	}
	return res, nil
}

type converter struct {
	file *source.File
	b    *syntax.Builder
	rep  diag.Reporter
}

func (c *converter) span(n *sitter.Node) source.Span {
	return source.Span{File: c.file.ID, Start: n.StartByte(), End: n.EndByte()}
}

func (c *converter) node(parent syntax.NodeID, n *sitter.Node, field string) syntax.NodeID {
	typ := n.Type()
	sp := c.span(n)

	kind := syntax.KindOther
	if n.IsNamed() {
		kind = kindOf[typ]
	}
	switch {
	case n.IsError():
		kind = syntax.KindError
		c.b.AddError(sp)
		c.rep.Report(diag.SynError, diag.SevError, sp, "syntax error", nil, nil)
	case n.IsMissing():
		c.b.AddError(sp)
		c.rep.Report(diag.SynMissing, diag.SevError, sp, fmt.Sprintf("missing %s", typ), nil, nil)
	}

	id := c.b.Add(parent, syntax.Node{
		Kind:  kind,
		Type:  typ,
		Field: field,
		Named: n.IsNamed(),
		Span:  sp,
	})

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "line_comment":
			c.b.AddComment(c.span(child), false)
			continue
		case "block_comment":
			c.b.AddComment(c.span(child), true)
			continue
		}
		c.node(id, child, n.FieldNameForChild(i))
	}
	return id
}
