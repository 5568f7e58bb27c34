package testkit

import (
	"strings"
	"testing"

	"refit/internal/source"
	"refit/internal/syntax"
)

func file(src string) *source.File {
	fs := source.NewFileSet()
	return fs.Get(fs.AddVirtual("A.java", []byte(src)))
}

func TestCheckTreeInvariants(t *testing.T) {
	src := "class A { }"
	cases := []struct {
		name  string
		build func(b *syntax.Builder, span func(start, end uint32) source.Span) syntax.NodeID
		want  string
	}{
		{"ok", func(b *syntax.Builder, span func(start, end uint32) source.Span) syntax.NodeID {
			root := b.Add(syntax.NoNode, syntax.Node{Type: "program", Span: span(0, 11)})
			cls := b.Add(root, syntax.Node{Type: "class_declaration", Named: true, Span: span(0, 11)})
			b.Add(cls, syntax.Node{Type: "class", Span: span(0, 5)})
			b.Add(cls, syntax.Node{Type: "identifier", Named: true, Span: span(6, 7)})
			return root
		}, ""},
		{"escapes parent", func(b *syntax.Builder, span func(start, end uint32) source.Span) syntax.NodeID {
			root := b.Add(syntax.NoNode, syntax.Node{Type: "program", Span: span(0, 7)})
			b.Add(root, syntax.Node{Type: "class_body", Span: span(8, 11)})
			return root
		}, "escapes parent"},
		{"overlap", func(b *syntax.Builder, span func(start, end uint32) source.Span) syntax.NodeID {
			root := b.Add(syntax.NoNode, syntax.Node{Type: "program", Span: span(0, 11)})
			b.Add(root, syntax.Node{Type: "a", Span: span(0, 7)})
			b.Add(root, syntax.Node{Type: "b", Span: span(6, 11)})
			return root
		}, "overlaps"},
		{"past content", func(b *syntax.Builder, span func(start, end uint32) source.Span) syntax.NodeID {
			return b.Add(syntax.NoNode, syntax.Node{Type: "program", Span: span(0, 40)})
		}, "outside content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := file(src)
			span := func(start, end uint32) source.Span {
				return source.Span{File: f.ID, Start: start, End: end}
			}
			b := syntax.NewBuilder(f, 8)
			tree := b.Finish(tc.build(b, span))
			err := CheckTreeInvariants(tree)
			switch {
			case tc.want == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tc.want != "" && (err == nil || !strings.Contains(err.Error(), tc.want)):
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestCheckTreeInvariantsNil(t *testing.T) {
	if err := CheckTreeInvariants(nil); err == nil {
		t.Fatal("expected error for nil tree")
	}
}
