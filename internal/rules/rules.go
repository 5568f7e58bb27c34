// Package rules holds the closed set of rewrite rules. Each rule is a
// predicate plus a builder over an immutable syntax tree: it inspects the
// node at the caret, asks the analyzer and the resolver what it needs and
// returns rewrites as text edits. Rules never mutate the tree.
package rules

import (
	"errors"
	"fmt"

	"refit/internal/diag"
)

// ErrNotApplicable is returned when a rule's precondition does not hold at
// the location. It is never shown to the user.
var ErrNotApplicable = errors.New("rules: not applicable")

// Kind identifies a rule. The set is closed; Run dispatches exhaustively.
type Kind uint8

const (
	KindAnonToLambda Kind = iota + 1
	KindLambdaToAnon
	KindLambdaExprToBlock
	KindLambdaBlockToExpr
	KindSwitchToExpr
	KindSwitchToStmt
	KindUncaughtException
	KindTextBlock
	KindIndexLoopToForEach
	KindIteratorLoopToForEach
	KindMergeCatch
	KindSplitCatch
	KindClassToRecord

	kindCount
)

// Info describes a rule for listings and configuration.
type Info struct {
	ID     string
	Family string
	Title  string
}

var infos = [kindCount]Info{
	KindAnonToLambda:          {"anon-to-lambda", "lambda", "Convert anonymous class to lambda"},
	KindLambdaToAnon:          {"lambda-to-anon", "lambda", "Convert lambda to anonymous class"},
	KindLambdaExprToBlock:     {"lambda-expr-to-block", "lambda", "Convert lambda expression body to block"},
	KindLambdaBlockToExpr:     {"lambda-block-to-expr", "lambda", "Convert lambda block body to expression"},
	KindSwitchToExpr:          {"switch-to-expr", "switch", "Convert switch statement to switch expression"},
	KindSwitchToStmt:          {"switch-to-stmt", "switch", "Convert switch expression to switch statement"},
	KindUncaughtException:     {"uncaught-exception", "exceptions", "Handle uncaught checked exceptions"},
	KindTextBlock:             {"text-block", "strings", "Convert string concatenation to text block"},
	KindIndexLoopToForEach:    {"index-loop-to-foreach", "loops", "Convert index loop to enhanced for"},
	KindIteratorLoopToForEach: {"iterator-loop-to-foreach", "loops", "Convert iterator loop to enhanced for"},
	KindMergeCatch:            {"merge-catch", "exceptions", "Merge catch clauses into multi-catch"},
	KindSplitCatch:            {"split-catch", "exceptions", "Split multi-catch into separate clauses"},
	KindClassToRecord:         {"class-to-record", "records", "Convert class to record"},
}

// All returns every rule in registration order.
func All() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := Kind(1); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Lookup finds a rule by ID.
func Lookup(id string) (Kind, bool) {
	for _, k := range All() {
		if infos[k].ID == id {
			return k, true
		}
	}
	return 0, false
}

// Info returns the rule's description.
func (k Kind) Info() Info {
	if k == 0 || k >= kindCount {
		return Info{ID: "unknown"}
	}
	return infos[k]
}

func (k Kind) String() string {
	return k.Info().ID
}

// Rewrite is one result of a rule: a label, a relevance used for ranking and
// the edits against the snapshot the rule ran on.
type Rewrite struct {
	Label     string
	Relevance int
	Warning   string // non-empty downgrades the proposal to a warning
	Edits     []diag.TextEdit
}

// Run evaluates the rule at ctx. A rule that does not apply returns
// ErrNotApplicable or analysis.ErrUnresolvable.
func (k Kind) Run(ctx *Context) ([]Rewrite, error) {
	if ctx == nil || ctx.Tree == nil || ctx.Covering() == 0 {
		return nil, ErrNotApplicable
	}
	switch k {
	case KindAnonToLambda:
		return anonToLambda(ctx)
	case KindLambdaToAnon:
		return lambdaToAnon(ctx)
	case KindLambdaExprToBlock:
		return lambdaExprToBlock(ctx)
	case KindLambdaBlockToExpr:
		return lambdaBlockToExpr(ctx)
	case KindSwitchToExpr:
		return switchToExpr(ctx)
	case KindSwitchToStmt:
		return switchToStmt(ctx)
	case KindUncaughtException:
		return uncaughtException(ctx)
	case KindTextBlock:
		return textBlock(ctx)
	case KindIndexLoopToForEach:
		return indexLoopToForEach(ctx)
	case KindIteratorLoopToForEach:
		return iteratorLoopToForEach(ctx)
	case KindMergeCatch:
		return mergeCatch(ctx)
	case KindSplitCatch:
		return splitCatch(ctx)
	case KindClassToRecord:
		return classToRecord(ctx)
	}
	return nil, fmt.Errorf("rules: unknown kind %d", k)
}

// single wraps one rewrite, or reports non-applicability for an empty edit.
func single(rw Rewrite) ([]Rewrite, error) {
	if len(rw.Edits) == 0 {
		return nil, ErrNotApplicable
	}
	return []Rewrite{rw}, nil
}
