package rules

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/fix"
	"refit/internal/javaparse"
	"refit/internal/render"
	"refit/internal/source"
	"refit/internal/testkit"
)

// Each testdata archive holds one Java input and one section per expected
// rewrite, named by its label. The comment carries directives:
//
//	rule <id>         rule to run (required)
//	count <n>         exact number of rewrites, default the number of sections
//	warning <text>    every rewrite carries this warning
//
// The caret is written /*|*/, a selection /*[*/ ... /*]*/. An archive with no
// output sections expects the rule not to apply.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txt")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txt"), func(t *testing.T) {
			runGolden(t, file)
		})
	}
}

type directives struct {
	rule    string
	count   int
	warning string
}

func parseDirectives(t *testing.T, comment []byte) directives {
	t.Helper()
	d := directives{count: -1}
	sc := bufio.NewScanner(bytes.NewReader(comment))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "rule":
			d.rule = arg
		case "count":
			n, err := strconv.Atoi(arg)
			require.NoError(t, err, "count")
			d.count = n
		case "warning":
			d.warning = arg
		default:
			t.Fatalf("unknown directive %q", line)
		}
	}
	require.NotEmpty(t, d.rule, "missing rule directive")
	return d
}

// stripMarkers removes the caret or selection markers and returns the
// clean source with the selection.
func stripMarkers(t *testing.T, src string) (string, uint32, uint32) {
	t.Helper()
	if i := strings.Index(src, "/*|*/"); i >= 0 {
		return src[:i] + src[i+len("/*|*/"):], uint32(i), 0
	}
	i := strings.Index(src, "/*[*/")
	j := strings.Index(src, "/*]*/")
	require.True(t, i >= 0 && j > i, "input has no caret or selection")
	clean := src[:i] + src[i+5:j] + src[j+5:]
	return clean, uint32(i), uint32(j - i - 5)
}

func parseJava(t *testing.T, src string) (*javaparse.Result, *binding.Index) {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("Test.java", []byte(src)))
	res, err := javaparse.Parse(context.Background(), file)
	require.NoError(t, err)
	require.NoError(t, testkit.CheckTreeInvariants(res.Tree))
	cat, err := binding.DefaultCatalog()
	require.NoError(t, err)
	return res, binding.NewIndex(res.Tree, cat)
}

func runGolden(t *testing.T, file string) {
	ar, err := txtar.ParseFile(file)
	require.NoError(t, err)
	d := parseDirectives(t, ar.Comment)
	kind, ok := Lookup(d.rule)
	require.True(t, ok, "unknown rule %q", d.rule)

	var input string
	want := map[string]string{}
	for _, f := range ar.Files {
		if f.Name == "input.java" {
			input = string(f.Data)
			continue
		}
		want[f.Name] = string(f.Data)
	}
	require.NotEmpty(t, input, "missing input.java")
	src, off, length := stripMarkers(t, input)

	res, idx := parseJava(t, src)
	ctx := NewContext(res.Tree, idx, off, length, render.DefaultOptions())
	rws, err := kind.Run(ctx)
	if len(want) == 0 && d.count <= 0 {
		if err == nil {
			for _, rw := range rws {
				t.Errorf("unexpected rewrite %q", rw.Label)
			}
			return
		}
		assert.True(t, errors.Is(err, ErrNotApplicable) || errors.Is(err, analysis.ErrUnresolvable), "err = %v", err)
		return
	}
	require.NoError(t, err)
	if d.count >= 0 {
		assert.Len(t, rws, d.count)
	} else {
		assert.Len(t, rws, len(want))
	}

	seen := map[string]bool{}
	for _, rw := range rws {
		if d.warning != "" {
			assert.Equal(t, d.warning, rw.Warning, "warning of %q", rw.Label)
		}
		exp, ok := want[rw.Label]
		if !ok {
			continue
		}
		seen[rw.Label] = true
		out, err := fix.Splice([]byte(src), rw.Edits)
		require.NoError(t, err, "splice %q", rw.Label)
		assert.Equal(t, trimLines(exp), trimLines(string(out)), "rewrite %q", rw.Label)
	}
	for label := range want {
		assert.True(t, seen[label], "no rewrite labelled %q", label)
	}
}

func trimLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

func TestLookupCoversAllRules(t *testing.T) {
	all := All()
	require.Len(t, all, int(kindCount)-1)
	ids := map[string]bool{}
	for _, k := range all {
		info := k.Info()
		assert.NotEmpty(t, info.Family, "family of %s", info.ID)
		assert.False(t, ids[info.ID], "duplicate id %s", info.ID)
		ids[info.ID] = true
		got, ok := Lookup(info.ID)
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := Lookup("no-such-rule")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestRunWithoutTree(t *testing.T) {
	for _, k := range All() {
		_, err := k.Run(nil)
		assert.ErrorIs(t, err, ErrNotApplicable, k.String())
	}
}

func TestUnescapeSegment(t *testing.T) {
	got, breaks := unescapeSegment(`a\n\"b\"\t\\`)
	assert.True(t, breaks)
	assert.Equal(t, "a\n\"b\"\\t\\\\", got)

	got, breaks = unescapeSegment(`plain`)
	assert.False(t, breaks)
	assert.Equal(t, "plain", got)
}

func TestBlockLine(t *testing.T) {
	assert.Equal(t, `50%% of %s`, blockLine("50% of \x00", true))
	assert.Equal(t, `50% kept`, blockLine("50% kept", false))
	assert.Equal(t, `say \"""`, blockLine(`say """`, false))
	assert.Equal(t, `tail\s`, markTrailingSpace("tail "))
	assert.Equal(t, `tail`, markTrailingSpace("tail"))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Name", capitalize("name"))
	assert.Equal(t, "Ёж", capitalize("ёж"))
	assert.Equal(t, "", capitalize(""))
}

func TestSurroundDropsTrailingBlanks(t *testing.T) {
	src := "import java.io.FileNotFoundException;\n\nclass A {\n    void open() throws FileNotFoundException {\n    }\n\n    void test() {\n        open();   \n    }\n}\n"
	res, idx := parseJava(t, src)
	ctx := NewContext(res.Tree, idx, uint32(strings.Index(src, "open();")), 0, render.DefaultOptions())
	rws, err := KindUncaughtException.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rws)
	require.Equal(t, "Surround with try/catch for FileNotFoundException", rws[0].Label)

	out, err := fix.Splice([]byte(src), rws[0].Edits)
	require.NoError(t, err)
	want := "    void test() {\n        try {\n            open();\n        } catch (FileNotFoundException e) {\n        }\n    }\n"
	assert.Contains(t, string(out), want)
}
