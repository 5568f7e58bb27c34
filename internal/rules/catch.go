package rules

import (
	"strings"

	"refit/internal/analysis"
	"refit/internal/render"
	"refit/internal/source"
	"refit/internal/syntax"
)

// mergeCatch folds sibling catch clauses with identical bodies into one
// multi-catch.
func mergeCatch(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	try, at := catchSite(ctx)
	if try == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	catches := t.ChildrenOf(try, syntax.KindCatch)
	if len(catches) < 2 {
		return nil, ErrNotApplicable
	}

	group := sameBodyGroup(ctx, catches, at)
	if len(group) < 2 {
		return nil, ErrNotApplicable
	}
	var alts []string
	for _, c := range group {
		name := t.Field(t.FirstOf(c, syntax.KindCatchParam), "name")
		if name == syntax.NoNode || !analysis.EffectivelyFinal(t, ctx.Res, name) {
			ctx.point("catch.merge", "parameter reassigned")
			return nil, ErrNotApplicable
		}
		alts = append(alts, analysis.CatchTypes(t, c)...)
	}
	if !unrelated(ctx, alts) || !mergeKeepsOrder(ctx, catches, group) {
		return nil, ErrNotApplicable
	}

	first := group[0]
	ct := t.FirstOf(t.FirstOf(first, syntax.KindCatchParam), syntax.KindCatchType)
	edits := ctx.replace(ct, strings.Join(alts, " | "))
	for _, c := range group[1:] {
		prev := prevSibling(t, c)
		sp := source.Span{File: ctx.span(c).File, Start: ctx.span(prev).End, End: ctx.span(c).End}
		gap := source.Span{File: sp.File, Start: sp.Start, End: ctx.span(c).Start}
		if len(t.CommentsIn(gap)) > 0 {
			return nil, ErrNotApplicable
		}
		edits = append(edits, render.Delete(ctx.File(), sp))
	}
	return single(Rewrite{
		Label:     "Combine catch clauses into multi-catch",
		Relevance: relevanceCatch,
		Edits:     edits,
	})
}

// catchSite returns the try around the caret and the catch clause under it,
// if any.
func catchSite(ctx *Context) (try, at syntax.NodeID) {
	if c := ctx.find(syntax.KindCatch, syntax.KindBlock, syntax.KindClassBody); c != syntax.NoNode {
		return ctx.Tree.Parent(c), c
	}
	return ctx.find(syntax.KindTry, syntax.KindBlock, syntax.KindClassBody), syntax.NoNode
}

// sameBodyGroup returns the clauses whose parameter name and normalised
// body match at's, or the first such group when at is unset.
func sameBodyGroup(ctx *Context, catches []syntax.NodeID, at syntax.NodeID) []syntax.NodeID {
	key := func(c syntax.NodeID) string {
		t := ctx.Tree
		name := ctx.text(t.Field(t.FirstOf(c, syntax.KindCatchParam), "name"))
		return name + "\x00" + strings.Join(strings.Fields(ctx.text(t.Field(c, "body"))), " ")
	}
	groups := map[string][]syntax.NodeID{}
	var order []string
	for _, c := range catches {
		k := key(c)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}
	if at != syntax.NoNode {
		return groups[key(at)]
	}
	for _, k := range order {
		if len(groups[k]) >= 2 {
			return groups[k]
		}
	}
	return nil
}

// unrelated reports whether no type is a subtype of another, which a
// multi-catch requires.
func unrelated(ctx *Context, types []string) bool {
	for i, a := range types {
		for j, b := range types {
			if i != j && ctx.Res.IsSubtype(a, b) {
				return false
			}
		}
	}
	return true
}

// mergeKeepsOrder checks that moving a later clause's types up to the first
// member does not let them catch what an intermediate clause caught.
func mergeKeepsOrder(ctx *Context, catches, group []syntax.NodeID) bool {
	t := ctx.Tree
	member := map[syntax.NodeID]bool{}
	for _, c := range group {
		member[c] = true
	}
	var between []string
	started := false
	for _, c := range catches {
		switch {
		case c == group[0]:
			started = true
		case !started:
		case member[c]:
			for _, moved := range analysis.CatchTypes(t, c) {
				for _, k := range between {
					if ctx.Res.IsSubtype(k, moved) {
						return false
					}
				}
			}
		default:
			between = append(between, analysis.CatchTypes(t, c)...)
		}
	}
	return true
}

// splitCatch turns `catch (A | B e) body` into one clause per alternative.
func splitCatch(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	c := ctx.find(syntax.KindCatch, syntax.KindBlock, syntax.KindClassBody)
	if c == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	param := t.FirstOf(c, syntax.KindCatchParam)
	types := analysis.CatchTypes(t, c)
	if len(types) < 2 {
		return nil, ErrNotApplicable
	}
	mods := ""
	if m := t.FirstOf(param, syntax.KindModifiers); m != syntax.NoNode {
		mods = ctx.text(m) + " "
	}
	name := ctx.text(t.Field(param, "name"))
	body := ctx.text(t.Field(c, "body"))

	clauses := make([]string, 0, len(types))
	for _, typ := range types {
		clauses = append(clauses, "catch ("+mods+typ+" "+name+") "+body)
	}
	return single(Rewrite{
		Label:     "Split multi-catch into separate catch clauses",
		Relevance: relevanceCatch - 1,
		Edits:     ctx.replace(c, strings.Join(clauses, " ")),
	})
}
