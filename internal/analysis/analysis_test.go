package analysis

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"refit/internal/binding"
	"refit/internal/javaparse"
	"refit/internal/source"
	"refit/internal/syntax"
)

func setup(t *testing.T, src string) (*syntax.Tree, *binding.Index) {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("Test.java", []byte(src)))
	res, err := javaparse.Parse(context.Background(), file)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cat, err := binding.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	return res.Tree, binding.NewIndex(res.Tree, cat)
}

// find returns the outermost node of kind starting at the first occurrence of needle.
func find(t *testing.T, tree *syntax.Tree, needle string, kind syntax.Kind) syntax.NodeID {
	t.Helper()
	off := strings.Index(string(tree.File.Content), needle)
	if off < 0 {
		t.Fatalf("%q not in source", needle)
	}
	found := syntax.NoNode
	tree.Walk(tree.Root, func(id syntax.NodeID) bool {
		if found != syntax.NoNode {
			return false
		}
		sp := tree.Span(id)
		if sp.Start == uint32(off) && tree.Kind(id) == kind {
			found = id
			return false
		}
		return sp.Start <= uint32(off) && uint32(off) < sp.End
	})
	if found == syntax.NoNode {
		t.Fatalf("no %v at %q", kind, needle)
	}
	return found
}

func TestCaptureAndEffectivelyFinal(t *testing.T) {
	tree, x := setup(t, `class A {
    int field;
    void m(int p) {
        int fixed = 1;
        int moved = 2;
        moved++;
        int late;
        late = 3;
        Runnable r = () -> {
            int inner = fixed + moved + late + p + field;
            System.out.println(inner);
        };
    }
}
`)
	lambda := find(t, tree, "() -> {", syntax.KindLambda)
	cs, err := Capture(tree, x, tree.Field(lambda, "body"), lambda)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	got := map[string]bool{}
	var order []string
	for _, c := range cs {
		got[c.Name] = c.EffectivelyFinal
		order = append(order, c.Name)
	}
	want := []string{"fixed", "moved", "late", "p", "field"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("captures = %v, want %v", order, want)
	}
	if !got["fixed"] || got["moved"] || !got["late"] || !got["p"] {
		t.Errorf("effectively final = %v", got)
	}
	if cs.AllFinal() {
		t.Error("AllFinal with a reassigned capture")
	}
	if cs.UsesThis() {
		t.Error("UsesThis without this")
	}
}

func TestCaptureUnresolvable(t *testing.T) {
	tree, x := setup(t, `class A {
    void m() {
        Runnable r = () -> mystery.run();
    }
}
`)
	lambda := find(t, tree, "() ->", syntax.KindLambda)
	_, err := Capture(tree, x, tree.Field(lambda, "body"), lambda)
	if !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
}

func TestCaptureThis(t *testing.T) {
	tree, x := setup(t, `class A {
    void m() {
        Runnable r = new Runnable() {
            public void run() { System.out.println(this); }
        };
    }
}
`)
	run := find(t, tree, "public void run", syntax.KindMethod)
	cs, err := Capture(tree, x, tree.Field(run, "body"), tree.Parent(run))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !cs.UsesThis() {
		t.Error("this not reported")
	}
}

func TestExceptionSet(t *testing.T) {
	_, x := setup(t, "class A {}\n")
	s := NewExceptionSet(x, "IOException", "FileNotFoundException", "IOException", "InterruptedException")
	if got := s.Types(); !reflect.DeepEqual(got, []string{"IOException", "FileNotFoundException", "InterruptedException"}) {
		t.Fatalf("Types = %v", got)
	}
	if !s.Covers("EOFException") {
		t.Error("IOException should cover EOFException")
	}
	if s.Covers("Exception") {
		t.Error("Exception is not covered by its subtypes")
	}
	if got := s.Minus([]string{"IOException"}).Types(); !reflect.DeepEqual(got, []string{"InterruptedException"}) {
		t.Errorf("Minus = %v", got)
	}
	if got := s.SpecificFirst(); !reflect.DeepEqual(got, []string{"FileNotFoundException", "IOException", "InterruptedException"}) {
		t.Errorf("SpecificFirst = %v", got)
	}
}

func TestExceptionsAndUnhandled(t *testing.T) {
	tree, x := setup(t, `import java.io.*;
class A {
    void read() throws IOException {}
    void m() throws InterruptedException {
        try {
            read();
            Thread.sleep(1);
        } catch (IOException e) {
            throw new IllegalStateException(e);
        }
        Runnable r = () -> read();
        Thread.sleep(2);
        read();
    }
}
`)
	try := find(t, tree, "try {", syntax.KindTry)
	if got := Exceptions(tree, x, try).Types(); !reflect.DeepEqual(got, []string{"InterruptedException"}) {
		t.Errorf("Exceptions(try) = %v", got)
	}

	lambdaStmt := find(t, tree, "Runnable r", syntax.KindLocalVar)
	if got := Exceptions(tree, x, lambdaStmt); !got.Empty() {
		t.Errorf("lambda body leaked %v", got.Types())
	}

	sleep := find(t, tree, "Thread.sleep(2)", syntax.KindCall)
	set, b := Unhandled(tree, x, sleep)
	if !set.Empty() || b.Kind != syntax.KindMethod {
		t.Errorf("Unhandled(sleep) = %v, %v", set.Types(), b.Kind)
	}

	last := find(t, tree, "read();\n    }\n}", syntax.KindCall)
	set, _ = Unhandled(tree, x, last)
	if got := set.Types(); !reflect.DeepEqual(got, []string{"IOException"}) {
		t.Errorf("Unhandled(read) = %v", got)
	}
}

func TestUnhandledInsideLambda(t *testing.T) {
	tree, x := setup(t, `import java.util.concurrent.*;
class A {
    void info(String s) throws InterruptedException {}
    void m() {
        Runnable r = () -> info("a");
        Callable<String> c = () -> { info("b"); return "b"; };
    }
}
`)
	set, b := Unhandled(tree, x, find(t, tree, `info("a")`, syntax.KindCall))
	if !b.InLambda() {
		t.Fatalf("boundary = %v", b.Kind)
	}
	if got := set.Types(); !reflect.DeepEqual(got, []string{"InterruptedException"}) {
		t.Errorf("Unhandled = %v", got)
	}
	set, _ = Unhandled(tree, x, find(t, tree, `info("b")`, syntax.KindCall))
	if !set.Empty() {
		t.Errorf("Callable.call declares Exception, got %v", set.Types())
	}
}

func TestNames(t *testing.T) {
	tree, _ := setup(t, `class A {
    void m(Exception e, int e1) {}
}
`)
	m := find(t, tree, "void m", syntax.KindMethod)
	if got := UniqueName(tree, tree.Field(m, "body"), "e"); got != "e2" {
		t.Errorf("UniqueName = %q", got)
	}
	if got := UniqueName(tree, tree.Field(m, "body"), "ex"); got != "ex" {
		t.Errorf("UniqueName = %q", got)
	}
	for in, want := range map[string]string{
		"names":           "name",
		"entries":         "entry",
		"this.getItems()": "item",
		"c":               "element",
		"boxes.matches":   "match",
	} {
		if got := ElementName(in); got != want {
			t.Errorf("ElementName(%q) = %q, want %q", in, got, want)
		}
	}
}
