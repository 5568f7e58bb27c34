package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refit/internal/source"
)

func TestCommentAnchors(t *testing.T) {
	src := "int x; // tail\n// lead\nint y;\n"
	fs := source.NewFileSet()
	f := fs.Get(fs.AddVirtual("A.java", []byte(src)))
	span := func(start, end uint32) source.Span {
		return source.Span{File: f.ID, Start: start, End: end}
	}

	b := NewBuilder(f, 4)
	root := b.Add(NoNode, Node{Type: "program", Named: true, Span: span(0, 30)})
	first := b.Add(root, Node{Type: "local_variable_declaration", Named: true, Span: span(0, 6)})
	second := b.Add(root, Node{Type: "local_variable_declaration", Named: true, Span: span(23, 29)})
	b.AddComment(span(7, 14), false)
	b.AddComment(span(15, 22), false)
	tree := b.Finish(root)

	require.Len(t, tree.Comments, 2)
	assert.Equal(t, first, tree.Comments[0].Anchor)
	assert.Equal(t, Trailing, tree.Comments[0].Placement)
	assert.Equal(t, second, tree.Comments[1].Anchor)
	assert.Equal(t, Leading, tree.Comments[1].Placement)
}

func TestOffsetOfOverflow(t *testing.T) {
	assert.Equal(t, uint32(7), offsetOf(7))
	assert.Panics(t, func() { offsetOf(-1) })
}
