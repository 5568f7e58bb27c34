package diag

import (
	"testing"

	"refit/internal/source"
)

func TestBagSort(t *testing.T) {
	b := NewBag(8)
	b.Add(New(SevWarning, BindUnknownType, source.Span{Start: 10, End: 12}, "unknown type Foo"))
	b.Add(New(SevWarning, SynError, source.Span{Start: 3, End: 4}, "odd token"))
	b.Add(New(SevError, SynError, source.Span{Start: 3, End: 4}, "unexpected token"))
	b.Sort()

	items := b.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", len(items))
	}
	if items[0].Severity != SevError || items[1].Severity != SevWarning || items[2].Code != BindUnknownType {
		t.Errorf("unexpected order: %+v", items)
	}
	if !b.HasErrors() {
		t.Error("expected an error")
	}
	items[0].Message = "changed"
	if b.Items()[0].Message == "changed" {
		t.Error("Items must return a copy")
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(New(SevError, SynError, source.Span{}, "a")) {
		t.Fatal("first add rejected")
	}
	if b.Add(New(SevError, SynError, source.Span{}, "b")) {
		t.Fatal("add past limit accepted")
	}
	if b.Len() != 1 || b.Dropped() != 1 {
		t.Fatalf("len=%d dropped=%d", b.Len(), b.Dropped())
	}
}

func TestDedupReporter(t *testing.T) {
	b := NewBag(4)
	r := NewDedupReporter(BagReporter{Bag: b})
	sp := source.Span{Start: 1, End: 2}
	r.Report(SynMissing, SevError, sp, "missing ';'", nil, nil)
	r.Report(SynMissing, SevError, sp, "missing ';'", nil, nil)
	r.Report(SynMissing, SevError, sp, "missing ')'", nil, nil)
	if b.Len() != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", b.Len())
	}
}

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSetWithBase("/workspace")
	file := fs.Add("/workspace/src/Main.java", []byte("a\nb\n"), 0)

	ds := []Diagnostic{
		New(SevError, SynError, source.Span{File: file, Start: 0, End: 1}, "first line\nsecond").
			WithNote(source.Span{File: file, Start: 2, End: 3}, "note line"),
		New(SevWarning, BindUnknownType, source.Span{File: file, Start: 2, End: 3}, "another"),
	}
	want := "error SYN2001 src/Main.java:1:1 first line second\n" +
		"note SYN2001 src/Main.java:2:1 note line\n" +
		"warning BND3001 src/Main.java:2:1 another\n"
	if got := FormatShort(ds, fs, true); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\ngot:\n%s", want, got)
	}
	if got := FormatShort(ds[:1], fs, false); got != "error SYN2001 src/Main.java:1:1 first line second\n" {
		t.Fatalf("notes leaked: %q", got)
	}
}

func TestCodeID(t *testing.T) {
	tests := map[Code]string{
		SynError:        "SYN2001",
		BindUnknownType: "BND3001",
		FixStale:        "FIX4002",
		RuleTimeout:     "RUL5002",
		UnknownCode:     "E0000",
	}
	for code, want := range tests {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}
