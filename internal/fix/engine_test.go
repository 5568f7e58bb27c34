package fix

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"refit/internal/diag"
	"refit/internal/source"
)

func TestGatherCandidatesSkipsDuplicateFixIDs(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("A.java", []byte(""))
	span := source.Span{File: fileID, Start: 0, End: 0}

	diagnostics := []diag.Diagnostic{{
		Code:    diag.RuleInfo,
		Message: "convert to lambda",
		Primary: span,
		Fixes: []diag.Fix{
			{ID: "fix-duplicate", Title: "first", Edits: []diag.TextEdit{{Span: span, NewText: ";"}}},
			{ID: "fix-duplicate", Title: "second", Edits: []diag.TextEdit{{Span: span, NewText: ";"}}},
			{Title: "empty"},
		},
	}}

	candidates, skips := gatherCandidates(diagnostics)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if len(skips) != 2 {
		t.Fatalf("expected 2 skipped fixes, got %d", len(skips))
	}
	if skips[0].Reason != "duplicate fix id" || skips[1].Reason != "fix has no edits" {
		t.Fatalf("unexpected skip reasons: %+v", skips)
	}
}

func TestSpliceAppliesBackToFront(t *testing.T) {
	src := []byte("a + b + c")
	out, err := Splice(src, []diag.TextEdit{
		{Span: source.Span{Start: 0, End: 1}, NewText: "x", OldText: "a"},
		{Span: source.Span{Start: 8, End: 9}, NewText: "zz", OldText: "c"},
		{Span: source.Span{Start: 4, End: 4}, NewText: "("},
	})
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if string(out) != "x + (b + zz" {
		t.Fatalf("got %q", out)
	}
	if string(src) != "a + b + c" {
		t.Fatalf("input modified: %q", src)
	}
}

func TestSpliceRejectsConflictsAndStaleGuards(t *testing.T) {
	src := []byte("abcdef")
	_, err := Splice(src, []diag.TextEdit{
		{Span: source.Span{Start: 0, End: 3}, NewText: "x"},
		{Span: source.Span{Start: 2, End: 4}, NewText: "y"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	_, err = Splice(src, []diag.TextEdit{{Span: source.Span{Start: 0, End: 3}, NewText: "x", OldText: "xyz"}})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	_, err = Splice(src, []diag.TextEdit{{Span: source.Span{Start: 4, End: 40}, NewText: "x"}})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for out of range span, got %v", err)
	}
}

func TestSpansConflict(t *testing.T) {
	mk := func(s, e uint32) diag.TextEdit { return diag.TextEdit{Span: source.Span{Start: s, End: e}} }
	tests := []struct {
		a, b diag.TextEdit
		want bool
	}{
		{mk(1, 1), mk(1, 1), false},
		{mk(1, 1), mk(0, 3), true},
		{mk(0, 1), mk(1, 1), false},
		{mk(0, 2), mk(1, 3), true},
		{mk(0, 2), mk(2, 3), false},
	}
	for i, tt := range tests {
		if got := spansConflict(tt.a, tt.b); got != tt.want {
			t.Errorf("case %d: spansConflict = %v, want %v", i, got, tt.want)
		}
	}
}

func TestApplyWritesFilesAndSkipsConflicts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.java")
	if err := os.WriteFile(path, []byte("class A {\r\n  int x;\r\n}\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	span := source.Span{File: id, Start: 12, End: 15}
	if got := fs.Get(id).Text(span); got != "int" {
		t.Fatalf("span text = %q", got)
	}

	diagnostics := []diag.Diagnostic{{
		Code:    diag.RuleInfo,
		Primary: span,
		Fixes: []diag.Fix{
			New("widen", []diag.TextEdit{{Span: span, NewText: "long", OldText: "int"}},
				WithApplicability(diag.FixApplicabilityAlwaysSafe), WithID("widen")),
			New("other", []diag.TextEdit{{Span: span, NewText: "short", OldText: "int"}},
				WithApplicability(diag.FixApplicabilityAlwaysSafe), WithID("other")),
			New("risky", []diag.TextEdit{{Span: span, NewText: "var"}}, WithID("risky")),
		},
	}}

	res, err := Apply(fs, diagnostics, ApplyOptions{Mode: ApplyModeAll})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0].ID != "widen" {
		t.Fatalf("applied = %+v", res.Applied)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "class A {\r\n  long x;\r\n}\r\n" {
		t.Fatalf("file content = %q", data)
	}
	if len(res.FileChanges) != 1 || res.FileChanges[0].Path != "A.java" {
		t.Fatalf("changes = %+v", res.FileChanges)
	}
}

func TestApplyRefusesVirtualFiles(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("A.java", []byte("int x;"))
	span := source.Span{File: id, Start: 0, End: 3}
	_, err := Apply(fs, []diag.Diagnostic{{
		Primary: span,
		Fixes:   []diag.Fix{New("widen", []diag.TextEdit{{Span: span, NewText: "long"}})},
	}}, ApplyOptions{Mode: ApplyModeOnce})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("expected ErrNoFixes, got %v", err)
	}
}
