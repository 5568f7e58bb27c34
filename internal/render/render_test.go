package render

import (
	"strings"
	"testing"

	"refit/internal/source"
)

func virtual(t *testing.T, src string) *source.File {
	t.Helper()
	fs := source.NewFileSet()
	return fs.Get(fs.AddVirtual("A.java", []byte(src)))
}

func TestMinimizeTrimsCommonAffixes(t *testing.T) {
	src := "int x = compute(a, b);\n"
	sf := virtual(t, src)
	sp := source.Span{File: sf.ID, Start: 0, End: uint32(len(src) - 1)}
	e := Minimize(sf, sp, "int x = compute(a, c);")
	if e.NewText != "c" || e.OldText != "b" {
		t.Fatalf("edit = %+v", e)
	}
	if got := sf.Text(e.Span); got != "b" {
		t.Errorf("span text = %q", got)
	}

	same := Minimize(sf, sp, sf.Text(sp))
	if !same.Span.Empty() || same.NewText != "" {
		t.Errorf("identity edit = %+v", same)
	}
	if edits := Replace(sf, sp, sf.Text(sp)); len(edits) != 0 {
		t.Errorf("Replace identity = %+v", edits)
	}
}

func TestMinimizeKeepsRuneBoundaries(t *testing.T) {
	src := `s = "привет";`
	sf := virtual(t, src)
	sp := source.Span{File: sf.ID, Start: 0, End: uint32(len(src))}
	e := Minimize(sf, sp, `s = "пример";`)
	if !strings.HasPrefix(src[e.Span.Start:], e.OldText) {
		t.Fatalf("guard %q does not match source", e.OldText)
	}
	if e.OldText != "вет" || e.NewText != "мер" {
		t.Errorf("edit = %+v", e)
	}
	got := src[:e.Span.Start] + e.NewText + src[e.Span.End:]
	if got != `s = "пример";` {
		t.Errorf("applied = %q", got)
	}
}

func TestReindent(t *testing.T) {
	opt := DefaultOptions()
	text := "{\n        a();\n\n            b();\n    }"
	got := Reindent(text, "    ", "\t", FormattingOptions{TabWidth: 4, IndentWidth: 4, UseTabs: true})
	if want := "{\n\t\ta();\n\n\t\t\tb();\n\t}"; got != want {
		t.Errorf("Reindent = %q, want %q", got, want)
	}

	spaces := Reindent("x\n\t\ty", "\t", "  ", opt)
	if spaces != "x\n      y" {
		t.Errorf("tab expansion = %q", spaces)
	}
	if one := Reindent("single", "    ", "", opt); one != "single" {
		t.Errorf("single line changed: %q", one)
	}
}

func TestDedentAndWidth(t *testing.T) {
	opt := DefaultOptions()
	if got := Dedent("    a\n      b\n\n    c", opt); got != "a\n  b\n\nc" {
		t.Errorf("Dedent = %q", got)
	}
	if w := Width("\t  ", opt); w != 6 {
		t.Errorf("Width = %d", w)
	}
	if p := Pad(6, FormattingOptions{TabWidth: 4, UseTabs: true}); p != "\t  " {
		t.Errorf("Pad = %q", p)
	}
}

func TestWriterIndentsAndCopies(t *testing.T) {
	src := "class A {\n    void m() {\n        a(); // keep\n        b();\n    }\n}\n"
	sf := virtual(t, src)
	body := strings.Index(src, "a();")
	end := strings.Index(src, "b();") + len("b();")
	sp := source.Span{File: sf.ID, Start: uint32(body), End: uint32(end)}

	if ind := IndentOf(sf, uint32(body)); ind != "        " {
		t.Fatalf("IndentOf = %q", ind)
	}

	w := NewWriter(sf, DefaultOptions(), "    ")
	w.WriteString("try {")
	w.Newline()
	w.IndentPush()
	w.CopyStatements(sp)
	w.IndentPop()
	w.WriteString("} catch (Exception e) {")
	w.Newline()
	w.WriteString("}")
	want := "try {\n        a(); // keep\n        b();\n    } catch (Exception e) {\n    }"
	if got := w.String(); got != want {
		t.Errorf("writer output:\n%s\nwant:\n%s", got, want)
	}

	c := NewWriter(sf, DefaultOptions(), "")
	c.Copy(sp)
	if c.String() != sf.Text(sp) {
		t.Errorf("Copy = %q", c.String())
	}
	c.Space()
	c.Space()
	if !strings.HasSuffix(c.String(), "b(); ") {
		t.Errorf("Space = %q", c.String())
	}
}
