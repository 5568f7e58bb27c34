package rules

import (
	"refit/internal/syntax"
)

// lambdaExprToBlock: `x -> e` to `x -> { return e; }`, or `{ e; }` when the
// functional method returns void.
func lambdaExprToBlock(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	lambda := ctx.find(syntax.KindLambda, syntax.KindBlock, syntax.KindClassBody)
	if lambda == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	body := t.Field(lambda, "body")
	if body == syntax.NoNode || t.Kind(body) == syntax.KindBlock {
		return nil, ErrNotApplicable
	}
	void, ok := lambdaReturnsVoid(ctx, lambda)
	if !ok {
		return nil, ErrNotApplicable
	}

	w := ctx.writer(ctx.indent(lambda))
	w.WriteString("{")
	w.Newline()
	w.IndentPush()
	expr := renderReindent(ctx, ctx.text(body), ctx.indent(lambda), w.Indent())
	if void {
		w.WriteString(expr + ";")
	} else {
		w.WriteString("return " + expr + ";")
	}
	w.Newline()
	w.IndentPop()
	w.WriteString("}")

	return single(Rewrite{
		Label:     "Convert to lambda block body",
		Relevance: relevanceSimplify,
		Edits:     ctx.replace(body, w.String()),
	})
}

// lambdaBlockToExpr: `x -> { return e; }` or `x -> { e; }` to `x -> e`.
func lambdaBlockToExpr(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	lambda := ctx.find(syntax.KindLambda, syntax.KindClassBody)
	if lambda == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	body := t.Field(lambda, "body")
	if t.Kind(body) != syntax.KindBlock {
		return nil, ErrNotApplicable
	}
	// каретка может стоять и внутри тела
	stmts := statements(t, body)
	if len(stmts) != 1 || len(t.CommentsIn(ctx.span(body))) > 0 {
		return nil, ErrNotApplicable
	}
	stmt := stmts[0]
	expr := exprOf(t, stmt)
	switch t.Kind(stmt) {
	case syntax.KindReturn, syntax.KindExprStmt:
	default:
		return nil, ErrNotApplicable
	}
	if expr == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	if t.Kind(stmt) == syntax.KindExprStmt {
		if void, ok := lambdaReturnsVoid(ctx, lambda); ok && !void {
			return nil, ErrNotApplicable
		}
	}

	text := reindentExpr(ctx, expr, stmt, ctx.indent(lambda)+ctx.unit())
	return single(Rewrite{
		Label:     "Convert to lambda expression body",
		Relevance: relevanceSimplify,
		Edits:     ctx.replace(body, text),
	})
}

// lambdaReturnsVoid reports whether the lambda's functional method is void.
func lambdaReturnsVoid(ctx *Context, lambda syntax.NodeID) (void, ok bool) {
	target, ok := ctx.Res.TargetType(lambda)
	if !ok {
		return false, false
	}
	fm, ok := ctx.Res.FunctionalMethod(target)
	if !ok {
		return false, false
	}
	return isVoid(fm.Result), true
}
