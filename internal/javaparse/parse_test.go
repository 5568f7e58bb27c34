package javaparse

import (
	"context"
	"strings"
	"testing"

	"refit/internal/diag"
	"refit/internal/source"
	"refit/internal/syntax"
	"refit/internal/testkit"
)

func parseString(t *testing.T, src string) *Result {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("Test.java", []byte(src)))
	res, err := Parse(context.Background(), file)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := testkit.CheckTreeInvariants(res.Tree); err != nil {
		t.Fatalf("tree invariants: %v", err)
	}
	return res
}

func findKind(tree *syntax.Tree, kind syntax.Kind) syntax.NodeID {
	found := syntax.NoNode
	tree.Walk(tree.Root, func(id syntax.NodeID) bool {
		if found != syntax.NoNode {
			return false
		}
		if tree.Kind(id) == kind {
			found = id
			return false
		}
		return true
	})
	return found
}

func TestParseMapsKindsAndFields(t *testing.T) {
	src := `class A {
    void m() throws Exception {
        int x = 1; // one
        x++;
    }
}
`
	res := parseString(t, src)
	tree := res.Tree
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if tree.Kind(tree.Root) != syntax.KindProgram {
		t.Fatalf("root kind = %v", tree.Kind(tree.Root))
	}

	method := findKind(tree, syntax.KindMethod)
	if method == syntax.NoNode {
		t.Fatal("method not found")
	}
	if got := tree.Text(tree.Field(method, "name")); got != "m" {
		t.Errorf("method name = %q", got)
	}
	if tree.FirstOf(method, syntax.KindThrows) == syntax.NoNode {
		t.Error("throws clause not found")
	}

	local := findKind(tree, syntax.KindLocalVar)
	comments := tree.CommentsOf(local, syntax.Trailing)
	if len(comments) != 1 || tree.File.Text(comments[0].Span) != "// one" {
		t.Errorf("trailing comments of local = %+v", comments)
	}

	off := uint32(strings.Index(src, "x++"))
	id := tree.Enclosing(off, off)
	if tree.Kind(id) != syntax.KindIdent {
		t.Errorf("Enclosing kind = %v", tree.Kind(id))
	}
	if st := tree.Statement(id); tree.Kind(st) != syntax.KindExprStmt {
		t.Errorf("Statement kind = %v", tree.Kind(st))
	}
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	res := parseString(t, "class A { void m() { int x = ; } }")
	if len(res.Tree.Errors) == 0 {
		t.Fatal("expected error regions")
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected diagnostics")
	}
	for _, d := range res.Diagnostics {
		if d.Severity != diag.SevError {
			t.Errorf("severity = %v", d.Severity)
		}
	}
}

func TestCacheReusesResult(t *testing.T) {
	cache, err := NewCache(4)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("A.java", []byte("class A {}")))

	first, err := cache.Parse(context.Background(), file)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := cache.Parse(context.Background(), file)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first != second {
		t.Error("expected cached result to be reused")
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d", cache.Len())
	}
}
