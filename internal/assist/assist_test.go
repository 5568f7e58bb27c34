package assist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/render"
	"refit/internal/rules"
	"refit/internal/source"
	"refit/internal/syntax"
	"refit/internal/trace"
)

const lambdaSrc = `import java.io.IOException;

class A {
    void info(String msg) throws IOException {
    }

    void test() {
        Runnable r = () -> info("x");
    }
}
`

func snapshot(t *testing.T, src string) *Snapshot {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("A.java", []byte(src)))
	cat, err := binding.DefaultCatalog()
	require.NoError(t, err)
	snap, err := NewSnapshot(context.Background(), nil, cat, file, render.DefaultOptions())
	require.NoError(t, err)
	return snap
}

func caret(t *testing.T, src, needle string) int {
	t.Helper()
	i := strings.Index(src, needle)
	require.GreaterOrEqual(t, i, 0, "needle %q", needle)
	return i
}

func TestComputeProposalsRanksHandlerFirst(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	props, err := ComputeProposals(context.Background(), snap, caret(t, lambdaSrc, `info("x")`), 0)
	require.NoError(t, err)
	require.NotEmpty(t, props)

	first := props[0]
	assert.Equal(t, "uncaught-exception", first.RuleID)
	assert.Equal(t, "Surround with try/catch for IOException", first.Label)
	assert.True(t, first.Status.OK)

	handlers := 0
	for i, p := range props {
		if p.RuleID == "uncaught-exception" {
			handlers++
		}
		if i > 0 {
			assert.GreaterOrEqual(t, props[i-1].Relevance, p.Relevance, "order at %d", i)
		}
	}
	assert.Equal(t, 1, handlers)

	preview, err := first.Preview()
	require.NoError(t, err)
	assert.Contains(t, preview, "} catch (IOException e) {")
}

func TestComputeProposalsArguments(t *testing.T) {
	_, err := ComputeProposals(context.Background(), nil, 0, 0)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snap := snapshot(t, lambdaSrc)
	_, err = ComputeProposals(context.Background(), snap, len(lambdaSrc)+1, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ComputeProposals(context.Background(), snap, 10, len(lambdaSrc))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ComputeProposals(context.Background(), snap, -1, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// пустой список не ошибка
	props, err := ComputeProposals(context.Background(), snap, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestComputeProposalsIsDeterministic(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	at := caret(t, lambdaSrc, `info("x")`)
	a, err := ComputeProposals(context.Background(), snap, at, 0)
	require.NoError(t, err)
	b, err := ComputeProposals(context.Background(), snap, at, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDisabledRules(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	e := Engine{Parallelism: 1, Disabled: map[string]bool{"uncaught-exception": true}}
	props, err := e.ComputeProposals(context.Background(), snap, caret(t, lambdaSrc, `info("x")`), 0)
	require.NoError(t, err)
	require.NotEmpty(t, props)
	for _, p := range props {
		assert.NotEqual(t, "uncaught-exception", p.RuleID)
	}
}

// panicky blows up inside every rule that asks for a functional method.
type panicky struct{ binding.Resolver }

func (panicky) FunctionalMethod(string) (binding.Method, bool) {
	panic("boom")
}

func TestPanickingRuleIsIsolated(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	snap.Resolver = panicky{snap.Resolver}
	ring := trace.NewRingTracer(256, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)

	props, err := ComputeProposals(ctx, snap, caret(t, lambdaSrc, `info("x")`), 0)
	require.NoError(t, err)
	for _, p := range props {
		assert.NotEqual(t, "lambda-to-anon", p.RuleID)
	}
	var failed []string
	for _, ev := range ring.Failures() {
		failed = append(failed, ev.Name)
		assert.Contains(t, ev.Detail, "panicked")
	}
	assert.Contains(t, failed, "rule:lambda-to-anon")
}

// slow stalls every thrown-types query.
type slow struct{ binding.Resolver }

func (s slow) Thrown(call syntax.NodeID) ([]string, bool) {
	time.Sleep(300 * time.Millisecond)
	return s.Resolver.Thrown(call)
}

func TestSlowRuleIsDropped(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	snap.Resolver = slow{snap.Resolver}
	ring := trace.NewRingTracer(256, trace.LevelError)
	ctx := trace.WithTracer(context.Background(), ring)

	e := Engine{RuleTimeout: 20 * time.Millisecond}
	props, err := e.ComputeProposals(ctx, snap, caret(t, lambdaSrc, `info("x")`), 0)
	require.NoError(t, err)
	for _, p := range props {
		assert.NotEqual(t, "uncaught-exception", p.RuleID)
	}
	var dropped bool
	for _, ev := range ring.Failures() {
		if ev.Name == "rule:uncaught-exception" {
			dropped = strings.Contains(ev.Detail, "deadline exceeded")
		}
	}
	assert.True(t, dropped)
}

func TestApplyTwiceIsStale(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	props, err := ComputeProposals(context.Background(), snap, caret(t, lambdaSrc, `info("x")`), 0)
	require.NoError(t, err)
	require.NotEmpty(t, props)

	doc := NewBuffer(snap.File.Content)
	require.NoError(t, props[0].Apply(doc))
	assert.Equal(t, 1, doc.Generation())
	want, err := props[0].Preview()
	require.NoError(t, err)
	assert.Equal(t, want, string(doc.Content()))

	err = props[0].Apply(doc)
	assert.ErrorIs(t, err, ErrStaleDocument)
	assert.Equal(t, 1, doc.Generation())
}

func TestApplyDetectsGuardMismatch(t *testing.T) {
	p := Proposal{Edits: []diag.TextEdit{{
		Span:    source.Span{Start: 0, End: 3},
		NewText: "xyz",
		OldText: "abc",
	}}}
	err := p.Apply(NewBuffer([]byte("abd and more")))
	assert.ErrorIs(t, err, ErrStaleDocument)

	doc := NewBuffer([]byte("abc and more"))
	require.NoError(t, p.Apply(doc))
	assert.Equal(t, "xyz and more", string(doc.Content()))
}

func TestAssembleOrdersAndDeduplicates(t *testing.T) {
	snap := snapshot(t, lambdaSrc)
	edit := func(text string) []diag.TextEdit {
		return []diag.TextEdit{{Span: source.Span{Start: 0, End: 0}, NewText: text}}
	}
	kinds := []rules.Kind{rules.KindAnonToLambda, rules.KindUncaughtException, rules.KindClassToRecord}
	results := []ruleResult{
		{rewrites: []rules.Rewrite{{Label: "a1", Relevance: 50, Edits: edit("a")}}},
		{rewrites: []rules.Rewrite{
			{Label: "u1", Relevance: 100, Edits: edit("u")},
			{Label: "u2", Relevance: 50, Edits: edit("a")}, // same edits as a1, ranks lower
			{Label: "u3", Relevance: 50, Edits: edit("v")},
		}},
		{rewrites: []rules.Rewrite{
			{Label: "r1", Relevance: 50, Warning: "careful", Edits: edit("r")},
			{Label: "empty", Relevance: 99},
		}},
	}
	props := assemble(snap, kinds, results)

	var labels []string
	for _, p := range props {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{"u1", "a1", "u3", "r1"}, labels)
	assert.False(t, props[3].Status.OK)
	assert.Equal(t, "warning: careful", props[3].Status.String())
}

func TestDiagnosticsCarryOneFixEach(t *testing.T) {
	edit := []diag.TextEdit{{Span: source.Span{Start: 1, End: 2}, NewText: "x"}}
	props := []Proposal{
		{RuleID: "a", Label: "first", Status: Status{OK: true}, Edits: edit},
		{RuleID: "b", Label: "empty", Status: Status{OK: true}},
		{RuleID: "c", Label: "risky", Status: Status{Reason: "drops setters"}, Edits: edit},
	}
	ds := Diagnostics(props)
	require.Len(t, ds, 2)

	assert.Equal(t, diag.RuleInfo, ds[0].Code)
	require.Len(t, ds[0].Fixes, 1)
	assert.Equal(t, "1", ds[0].Fixes[0].ID)
	assert.True(t, ds[0].Fixes[0].IsPreferred)
	assert.Equal(t, diag.FixApplicabilityAlwaysSafe, ds[0].Fixes[0].Applicability)

	assert.Equal(t, diag.RuleWarning, ds[1].Code)
	assert.Equal(t, "3", ds[1].Fixes[0].ID)
	assert.Equal(t, diag.FixApplicabilityManualReview, ds[1].Fixes[0].Applicability)
	require.Len(t, ds[1].Notes, 1)
	assert.Equal(t, "drops setters", ds[1].Notes[0].Msg)
}

// unhandledAt re-parses src and returns the checked exceptions escaping the
// call at needle.
func unhandledAt(t *testing.T, src, needle string) []string {
	t.Helper()
	snap := snapshot(t, src)
	require.Empty(t, snap.Diagnostics, "rewrite broke the syntax:\n%s", src)
	at := caret(t, src, needle)
	call := snap.Tree.Enclosing(uint32(at), uint32(at+len(needle)))
	require.NotEqual(t, syntax.NoNode, call)
	set, _ := analysis.Unhandled(snap.Tree, snap.Resolver, call)
	return set.Types()
}

func TestHandlersLeaveNothingUnhandled(t *testing.T) {
	src := `import java.io.IOException;

class A {
    void work() throws IOException, InterruptedException {
    }

    void test() {
        try {
            work();
        } catch (InterruptedException e) {
        }
    }
}
`
	require.Equal(t, []string{"IOException"}, unhandledAt(t, src, "work();"))

	snap := snapshot(t, src)
	props, err := ComputeProposals(context.Background(), snap, caret(t, src, "work();"), 0)
	require.NoError(t, err)
	var applied []string
	for _, p := range props {
		if p.RuleID != "uncaught-exception" {
			continue
		}
		out, err := p.Preview()
		require.NoError(t, err, p.Label)
		assert.Empty(t, unhandledAt(t, out, "work();"), "after %q:\n%s", p.Label, out)
		applied = append(applied, p.Label)
	}
	assert.Contains(t, applied, "Add catch clause for IOException")
	assert.Contains(t, applied, "Add throws declaration for IOException")
}

func TestMultiCatchRanksBetweenTypes(t *testing.T) {
	src := `import java.io.IOException;

class A {
    void work() throws IOException, InterruptedException {
    }

    void test() {
        work();
    }
}
`
	snap := snapshot(t, src)
	props, err := ComputeProposals(context.Background(), snap, caret(t, src, "work();"), 0)
	require.NoError(t, err)

	var labels []string
	for _, p := range props {
		if p.RuleID == "uncaught-exception" {
			labels = append(labels, p.Label)
		}
	}
	assert.Equal(t, []string{
		"Surround with try/catch for IOException",
		"Add throws declaration for IOException",
		"Surround with try/multi-catch",
		"Surround with try/catch for InterruptedException",
		"Add throws declaration for InterruptedException",
	}, labels)
}
