// Package assist computes the quick-assist proposals for a caret or
// selection: it runs every enabled rule against one immutable snapshot,
// isolates their failures and returns a deduplicated, ranked list.
package assist

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/javaparse"
	"refit/internal/render"
	"refit/internal/rules"
	"refit/internal/source"
	"refit/internal/syntax"
	"refit/internal/trace"
)

var (
	// ErrNoSnapshot is returned for a nil snapshot or one without a tree.
	ErrNoSnapshot = errors.New("assist: no snapshot")
	// ErrOutOfRange is returned when the selection lies outside the file.
	ErrOutOfRange = errors.New("assist: selection out of range")
)

// DefaultRuleTimeout bounds one rule run when Engine.RuleTimeout is unset.
const DefaultRuleTimeout = 2 * time.Second

// Snapshot is one immutable version of a source file with its tree and
// resolver. It may be shared by concurrent requests.
type Snapshot struct {
	File     *source.File
	Tree     *syntax.Tree
	Resolver binding.Resolver
	Options  render.FormattingOptions

	// Diagnostics holds the parser's syntax errors.
	Diagnostics []diag.Diagnostic
}

// NewSnapshot parses file with cache (nil parses directly) and indexes it
// against cat.
func NewSnapshot(ctx context.Context, cache *javaparse.Cache, cat *binding.Catalog, file *source.File, opt render.FormattingOptions) (*Snapshot, error) {
	res, err := cache.Parse(ctx, file)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		File:        file,
		Tree:        res.Tree,
		Resolver:    binding.NewIndex(res.Tree, cat),
		Options:     opt,
		Diagnostics: res.Diagnostics,
	}, nil
}

// Engine holds the execution policy of ComputeProposals. The zero value
// runs every rule with GOMAXPROCS workers and DefaultRuleTimeout.
type Engine struct {
	Parallelism int
	RuleTimeout time.Duration
	Disabled    map[string]bool // rule IDs
}

// ComputeProposals runs the default engine.
func ComputeProposals(ctx context.Context, snap *Snapshot, offset, length int) ([]Proposal, error) {
	var e Engine
	return e.ComputeProposals(ctx, snap, offset, length)
}

// ruleResult is one rule's slot; each worker writes only its own.
type ruleResult struct {
	rewrites []rules.Rewrite
}

// ComputeProposals returns the proposals applicable at [offset,
// offset+length). Only invalid arguments are errors; a rule that panics,
// fails or times out is dropped and traced.
func (e *Engine) ComputeProposals(ctx context.Context, snap *Snapshot, offset, length int) ([]Proposal, error) {
	if snap == nil || snap.Tree == nil || snap.File == nil {
		return nil, ErrNoSnapshot
	}
	size := len(snap.File.Content)
	if offset < 0 || length < 0 || offset > size || offset+length > size {
		return nil, fmt.Errorf("%w: %d+%d in %d bytes", ErrOutOfRange, offset, length, size)
	}
	off, err := safecast.Conv[uint32](offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	n, err := safecast.Conv[uint32](length)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRequest, "compute", trace.CurrentSpan(ctx))
	span.WithExtra("file", snap.File.Path)
	span.WithExtra("offset", fmt.Sprint(offset))

	kinds := e.enabled()
	results := make([]ruleResult, len(kinds))

	jobs := e.Parallelism
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(kinds), 1)))
	for i, k := range kinds {
		g.Go(func() error {
			rws, err := e.runRule(gctx, snap, k, off, n, tracer, span.ID())
			if err != nil {
				// ни одна ошибка правила не прерывает запрос
				return nil
			}
			results[i] = ruleResult{rewrites: rws}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End(err.Error())
		return nil, err
	}

	out := assemble(snap, kinds, results)
	span.End(fmt.Sprintf("%d proposals", len(out)))
	return out, nil
}

func (e *Engine) enabled() []rules.Kind {
	var out []rules.Kind
	for _, k := range rules.All() {
		if !e.Disabled[k.String()] {
			out = append(out, k)
		}
	}
	return out
}

// runRule evaluates one rule under recover and the per-rule timeout.
func (e *Engine) runRule(ctx context.Context, snap *Snapshot, k rules.Kind, off, n uint32, tracer trace.Tracer, parent uint64) ([]rules.Rewrite, error) {
	span := trace.Begin(tracer, trace.ScopeRule, "rule:"+k.String(), parent)
	timeout := e.RuleTimeout
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rws []rules.Rewrite
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var res outcome
		defer func() {
			if r := recover(); r != nil {
				res = outcome{err: fmt.Errorf("rule %s panicked: %v", k, r)}
			}
			done <- res
		}()
		rc := rules.NewContext(snap.Tree, snap.Resolver, off, n, snap.Options)
		rc.Trace, rc.Span = tracer, span.ID()
		res.rws, res.err = k.Run(rc)
	}()

	select {
	case res := <-done:
		switch {
		case res.err == nil:
			span.End(fmt.Sprintf("%d rewrites", len(res.rws)))
			return res.rws, nil
		case errors.Is(res.err, rules.ErrNotApplicable):
			span.End("not applicable")
		case errors.Is(res.err, analysis.ErrUnresolvable):
			trace.Point(tracer, trace.ScopeNode, "unresolvable", res.err.Error(), span.ID())
			span.End("unresolvable")
		default:
			trace.Failure(tracer, trace.ScopeRule, "rule:"+k.String(), res.err, parent)
			span.End("failed")
		}
		return nil, res.err
	case <-rctx.Done():
		// результат опоздавшего правила отбрасывается
		err := fmt.Errorf("rule %s: %w", k, rctx.Err())
		trace.Failure(tracer, trace.ScopeRule, "rule:"+k.String(), err, parent)
		span.End("dropped")
		return nil, err
	}
}

type ranked struct {
	Proposal
	order int // registration order of the rule
	seq   int // emission order within the rule
}

// assemble turns rule results into proposals, drops duplicates by their
// resulting text and sorts by relevance, rule order and emission order.
func assemble(snap *Snapshot, kinds []rules.Kind, results []ruleResult) []Proposal {
	var all []ranked
	for i, k := range kinds {
		for j, rw := range results[i].rewrites {
			if len(rw.Edits) == 0 {
				continue
			}
			p := Proposal{
				RuleID:    k.String(),
				Label:     rw.Label,
				Relevance: rw.Relevance,
				Status:    Status{OK: rw.Warning == ""},
				Edits:     rw.Edits,
				file:      snap.File,
			}
			if rw.Warning != "" {
				p.Status.Reason = rw.Warning
			}
			all = append(all, ranked{Proposal: p, order: int(k), seq: j})
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		x, y := all[a], all[b]
		if x.Relevance != y.Relevance {
			return x.Relevance > y.Relevance
		}
		if x.order != y.order {
			return x.order < y.order
		}
		return x.seq < y.seq
	})

	seen := map[string]bool{}
	out := make([]Proposal, 0, len(all))
	for _, r := range all {
		key := editsKey(r.Edits)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r.Proposal)
	}
	return out
}

// editsKey identifies an edit set independently of edit order.
func editsKey(edits []diag.TextEdit) string {
	parts := make([]string, len(edits))
	for i, e := range edits {
		parts[i] = fmt.Sprintf("%d:%d:%q", e.Span.Start, e.Span.End, e.NewText)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x00")
}
