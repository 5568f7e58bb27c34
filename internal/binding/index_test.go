package binding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refit/internal/javaparse"
	"refit/internal/source"
	"refit/internal/syntax"
)

func index(t *testing.T, src string) *Index {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("Test.java", []byte(src)))
	res, err := javaparse.Parse(context.Background(), file)
	require.NoError(t, err)
	require.Empty(t, res.Diagnostics)
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	return NewIndex(res.Tree, cat)
}

// nodeAt returns the innermost node of the given kind whose text starts at
// the n-th occurrence of needle.
func nodeAt(t *testing.T, x *Index, needle string, n int, kind syntax.Kind) syntax.NodeID {
	t.Helper()
	tree := x.Tree()
	src := string(tree.File.Content)
	off := -1
	for i := 0; i <= n; i++ {
		next := strings.Index(src[off+1:], needle)
		require.GreaterOrEqual(t, next, 0, "occurrence %d of %q", i, needle)
		off += next + 1
	}
	found := syntax.NoNode
	tree.Walk(tree.Root, func(id syntax.NodeID) bool {
		sp := tree.Span(id)
		if sp.Start > uint32(off) || sp.End <= uint32(off) {
			return false
		}
		if sp.Start == uint32(off) && tree.Kind(id) == kind {
			found = id
		}
		return true
	})
	require.NotEqual(t, syntax.NoNode, found, "no %v at %q", kind, needle)
	return found
}

func TestCatalogDecodes(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Greater(t, cat.Len(), 50)

	callable, ok := cat.Lookup("java.util.concurrent.Callable<String>")
	require.True(t, ok)
	assert.Equal(t, TypeInterface, callable.Kind)

	sys, ok := cat.Lookup("System")
	require.True(t, ok)
	assert.Equal(t, "PrintStream", sys.Fields["out"])
}

func TestParseCatalogRejectsBadParams(t *testing.T) {
	_, err := ParseCatalog(`
[[types]]
name = "X"
  [[types.methods]]
  name = "m"
  params = ["nameless"]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed parameter")
}

func TestSymbolsResolveToNearestDeclaration(t *testing.T) {
	x := index(t, `class A {
    int count;
    void m(int n) {
        int count = n;
        Runnable r = () -> System.out.println(count);
    }
    int get() { return count; }
}
`)
	local := nodeAt(t, x, "count)", 0, syntax.KindIdent)
	sym, ok := x.Symbol(local)
	require.True(t, ok)
	assert.Equal(t, SymLocal, sym.Kind)
	assert.Equal(t, "int", sym.Type)

	field := nodeAt(t, x, "count; }", 0, syntax.KindIdent)
	sym, ok = x.Symbol(field)
	require.True(t, ok)
	assert.True(t, sym.IsField())
	assert.Equal(t, "A", sym.Owner)

	param := nodeAt(t, x, "n;", 0, syntax.KindIdent)
	sym, ok = x.Symbol(param)
	require.True(t, ok)
	assert.Equal(t, SymParam, sym.Kind)
	assert.Len(t, x.References(sym), 1)

	// member names are not variable references
	println := nodeAt(t, x, "println", 0, syntax.KindIdent)
	_, ok = x.Symbol(println)
	assert.False(t, ok)
}

func TestDeclaredTypes(t *testing.T) {
	x := index(t, `import java.util.*;
class A {
    String[] names;
    void m(List<String> items, Map<String, Integer> ages) {
        var first = items.get(0);
        int n = names.length;
        Integer age = ages.get(first);
        for (String s : items) { s.trim(); }
        long total = n + 1L;
        String label = "n=" + n;
    }
}
`)
	cases := []struct {
		needle string
		kind   syntax.Kind
		want   string
	}{
		{"items.get(0)", syntax.KindCall, "String"},
		{"first);", syntax.KindIdent, "String"},
		{"names.length", syntax.KindFieldAccess, "int"},
		{"ages.get(first)", syntax.KindCall, "Integer"},
		{"s.trim()", syntax.KindIdent, "String"},
		{"n + 1L", syntax.KindBinary, "long"},
		{`"n=" + n`, syntax.KindBinary, "String"},
	}
	for _, tc := range cases {
		id := nodeAt(t, x, tc.needle, 0, tc.kind)
		got, ok := x.DeclaredType(id)
		if assert.True(t, ok, tc.needle) {
			assert.Equal(t, tc.want, got, tc.needle)
		}
	}
}

func TestTargetTypeAndFunctionalMethod(t *testing.T) {
	x := index(t, `import java.util.concurrent.*;
class A {
    void run(Runnable r) {}
    void m(ExecutorService ex) {
        run(() -> {});
        Callable<String> c = () -> "x";
        Comparator<String> cmp = (a, b) -> a.length() - b.length();
    }
}
`)
	arg := nodeAt(t, x, "() -> {}", 0, syntax.KindLambda)
	target, ok := x.TargetType(arg)
	require.True(t, ok)
	assert.Equal(t, "Runnable", target)

	init := nodeAt(t, x, `() -> "x"`, 0, syntax.KindLambda)
	target, ok = x.TargetType(init)
	require.True(t, ok)
	fm, ok := x.FunctionalMethod(target)
	require.True(t, ok)
	assert.Equal(t, "call", fm.Name)
	assert.Equal(t, "String", fm.Result)
	assert.Equal(t, []string{"Exception"}, fm.Throws)

	// Comparator redeclares equals; it is still functional
	fm, ok = x.FunctionalMethod("Comparator<String>")
	require.True(t, ok)
	assert.Equal(t, "compare", fm.Name)
	assert.Equal(t, "String", fm.Params[0].Type)

	a := nodeAt(t, x, "a.length()", 0, syntax.KindIdent)
	typ, ok := x.DeclaredType(a)
	require.True(t, ok)
	assert.Equal(t, "String", typ)

	_, ok = x.FunctionalMethod("List<String>")
	assert.False(t, ok)
}

func TestThrownAndChecked(t *testing.T) {
	x := index(t, `import java.io.*;
class A {
    void read(String p) throws IOException, Custom {}
    void m() throws Exception {
        read("x");
        Thread.sleep(10);
        new FileInputStream("f");
        unknown();
    }
}
class Custom extends Exception {}
`)
	thrown, ok := x.Thrown(nodeAt(t, x, `read("x")`, 0, syntax.KindCall))
	require.True(t, ok)
	assert.Equal(t, []string{"IOException", "Custom"}, thrown)

	thrown, ok = x.Thrown(nodeAt(t, x, "Thread.sleep", 0, syntax.KindCall))
	require.True(t, ok)
	assert.Equal(t, []string{"InterruptedException"}, thrown)

	thrown, ok = x.Thrown(nodeAt(t, x, "new FileInputStream", 0, syntax.KindNew))
	require.True(t, ok)
	assert.Equal(t, []string{"FileNotFoundException"}, thrown)

	_, ok = x.Thrown(nodeAt(t, x, "unknown()", 0, syntax.KindCall))
	assert.False(t, ok)

	assert.True(t, x.IsChecked("Custom"))
	assert.True(t, x.IsChecked("FileNotFoundException"))
	assert.False(t, x.IsChecked("IllegalStateException"))
	assert.False(t, x.IsChecked("NoSuchThing"))
	assert.True(t, x.IsSubtype("FileNotFoundException", "IOException"))
	assert.True(t, x.IsSubtype("Custom", "Object"))
	assert.False(t, x.IsSubtype("int", "Object"))
}

func TestAnonymousClassScope(t *testing.T) {
	x := index(t, `class A {
    int v;
    void m() {
        Runnable r = new Runnable() {
            int v;
            public void run() { helper(v); }
            void helper(int x) {}
        };
    }
}
`)
	ref := nodeAt(t, x, "v); }", 0, syntax.KindIdent)
	sym, ok := x.Symbol(ref)
	require.True(t, ok)
	assert.Empty(t, sym.Owner, "anonymous field shadows the outer one")

	cands := x.Candidates(nodeAt(t, x, "helper(v)", 0, syntax.KindCall))
	require.Len(t, cands, 1)
	assert.Equal(t, "helper", cands[0].Name)
}

func TestTypeHelpers(t *testing.T) {
	assert.Equal(t, "List", Erasure("java.util.List<String>"))
	assert.Equal(t, "String", Erasure("String[]"))
	assert.Equal(t, []string{"String", "List<Integer>"}, TypeArgs("Map<String, List<Integer>>"))
	assert.Equal(t, []string{"Number"}, TypeArgs("List<? extends Number>"))
	assert.Equal(t, "Map<K, List<String>>", Substitute("Map<K, List<V>>", []string{"V"}, []string{"String"}))
	assert.Equal(t, "Integer", Boxed("int"))
	assert.True(t, IsArray("int..."))
	assert.Equal(t, "int", ElementType("int..."))
}
