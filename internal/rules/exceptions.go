package rules

import (
	"fmt"
	"strings"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/render"
	"refit/internal/syntax"
)

// Variants of the per-type proposals, in ranking order.
const (
	variantTry = iota
	variantAddCatch
	variantWiden
	variantThrows
)

// handler carries the facts shared by the proposals for one uncaught site.
type handler struct {
	ctx      *Context
	unit     syntax.NodeID // a statement, or the expression body of lambda
	lambda   syntax.NodeID // set when unit is an expression body
	boundary analysis.Boundary
	types    []string // uncaught, most specific first
	name     string   // catch parameter name
}

// uncaughtException offers ways to handle the checked exceptions escaping
// the statement at the caret.
func uncaughtException(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	if ref := ctx.find(syntax.KindMethodRef, syntax.KindBlock, syntax.KindClassBody, syntax.KindArgs); ref != syntax.NoNode {
		return methodRefWrap(ctx, ref)
	}
	unit, lambda := handledUnit(t, ctx.Covering())
	if unit == syntax.NoNode || t.InError(unit) {
		return nil, ErrNotApplicable
	}
	set, boundary := analysis.Unhandled(t, ctx.Res, unit)
	if set.Empty() {
		return nil, ErrNotApplicable
	}
	switch boundary.Kind {
	case syntax.KindMethod, syntax.KindConstructor, syntax.KindLambda, syntax.KindClassBody:
	default:
		return nil, ErrNotApplicable
	}
	h := &handler{
		ctx:      ctx,
		unit:     unit,
		lambda:   lambda,
		boundary: boundary,
		types:    set.SpecificFirst(),
	}
	h.name = h.catchName()
	ctx.point("exceptions.uncaught", strings.Join(h.types, ", "))

	var out []Rewrite
	for i, typ := range h.types {
		group := append([]string{typ}, h.rest(typ)...)
		rel := func(variant int) int { return relevanceHandle - 10*i - variant }
		if rw, ok := h.surround(group, false); ok {
			rw.Label = "Surround with try/catch for " + typ
			rw.Relevance = rel(variantTry)
			out = append(out, rw)
		}
		if rw, ok := h.addCatch(group); ok {
			rw.Relevance = rel(variantAddCatch)
			out = append(out, rw)
		}
		for _, rw := range h.widen(group) {
			rw.Relevance = rel(variantWiden)
			out = append(out, rw)
		}
		if rw, ok := h.addThrows(group); ok {
			rw.Relevance = rel(variantThrows)
			out = append(out, rw)
		}
	}
	if top := h.maximal(h.types); len(top) >= 2 {
		if rw, ok := h.surround(top, true); ok {
			rw.Label = "Surround with try/multi-catch"
			rw.Relevance = relevanceHandle - 5
			out = append(out, rw)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotApplicable
	}
	return out, nil
}

// handledUnit returns the minimal statement around id, or the expression
// body of a lambda when that comes first.
func handledUnit(t *syntax.Tree, id syntax.NodeID) (unit, lambda syntax.NodeID) {
	for cur := id; cur != syntax.NoNode; cur = t.Parent(cur) {
		if t.IsStatement(cur) {
			if t.Kind(cur) == syntax.KindBlock {
				return syntax.NoNode, syntax.NoNode
			}
			return cur, syntax.NoNode
		}
		p := t.Parent(cur)
		if t.Kind(p) == syntax.KindLambda && t.Node(cur).Field == "body" {
			return cur, p
		}
		switch t.Kind(cur) {
		case syntax.KindClassBody, syntax.KindMethod, syntax.KindConstructor:
			return syntax.NoNode, syntax.NoNode
		}
	}
	return syntax.NoNode, syntax.NoNode
}

// rest returns the uncaught types typ does not cover.
func (h *handler) rest(typ string) []string {
	var out []string
	for _, o := range h.types {
		if binding.Erasure(o) != binding.Erasure(typ) && !h.ctx.Res.IsSubtype(o, typ) {
			out = append(out, o)
		}
	}
	return out
}

// maximal drops the types that are subtypes of another member.
func (h *handler) maximal(types []string) []string {
	var out []string
	for _, a := range types {
		covered := false
		for _, b := range types {
			if binding.Erasure(a) != binding.Erasure(b) && h.ctx.Res.IsSubtype(a, b) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, a)
		}
	}
	return out
}

// catchName picks `e`, or a fresh variant when e is already taken around
// the unit.
func (h *handler) catchName() string {
	ctx := h.ctx
	taken := ctx.outerLocals(h.unit)
	for _, n := range ctx.declaredNames(h.unit) {
		taken[n] = true
	}
	if !taken["e"] {
		return "e"
	}
	return analysis.UniqueName(ctx.Tree, h.unit, "e")
}

// rethrows reports whether the catch bodies rethrow, which they do when the
// wrapped code produces the value of a return.
func (h *handler) rethrows() bool {
	t := h.ctx.Tree
	if h.lambda != syntax.NoNode {
		void, _ := lambdaReturnsVoid(h.ctx, h.lambda)
		return !void
	}
	return t.Kind(h.unit) == syntax.KindReturn && exprOf(t, h.unit) != syntax.NoNode
}

// writeCatches writes `} catch (A e) {` clauses, one per type or one
// multi-catch, and the closing brace.
func (h *handler) writeCatches(w *render.Writer, types []string, multi, rethrow bool) {
	body := ""
	if rethrow {
		body = "throw new RuntimeException(" + h.name + ");"
	}
	clauses := [][]string{types}
	if !multi {
		clauses = clauses[:0]
		for _, typ := range types {
			clauses = append(clauses, []string{typ})
		}
	}
	for _, c := range clauses {
		w.WriteString("} catch (" + strings.Join(c, " | ") + " " + h.name + ") {")
		w.Newline()
		if body != "" {
			w.IndentPush()
			w.Line(body)
			w.IndentPop()
		}
	}
	w.WriteString("}")
}

// surround wraps the unit in a new try statement catching types.
func (h *handler) surround(types []string, multi bool) (Rewrite, bool) {
	ctx := h.ctx
	t := ctx.Tree
	if h.lambda != syntax.NoNode {
		return h.wrapLambdaBody(types, multi)
	}

	if t.Kind(t.Parent(h.unit)) == syntax.KindSwitchRule {
		return Rewrite{}, false
	}
	base := ctx.indent(h.unit)
	w := ctx.writer(base)
	sp := ctx.span(h.unit)
	inner := ctx.text(h.unit)
	var plan hoistPlan
	if t.Kind(h.unit) == syntax.KindLocalVar {
		var ok bool
		if plan, ok = h.hoist(); !ok {
			return Rewrite{}, false
		}
		for _, line := range plan.decls {
			w.Line(line)
		}
		if plan.assigns == "" {
			// объявление без инициализаторов ничего не бросает
			return Rewrite{}, false
		}
		inner = plan.assigns
	}
	if c := ctx.trailingComment(h.unit); c != "" {
		for _, cm := range t.CommentsOf(h.unit, syntax.Trailing) {
			sp.End = max(sp.End, cm.Span.End)
		}
		inner += " " + c
	}
	sp.End = ctx.blanksToLineEnd(sp.End)
	w.WriteString("try {")
	w.Newline()
	w.IndentPush()
	w.WriteString(renderReindent(ctx, inner, base, w.Indent()))
	w.Newline()
	w.IndentPop()
	h.writeCatches(w, types, multi, h.rethrows())
	for _, c := range plan.copies {
		w.Newline()
		w.WriteString(c)
	}

	edits := ctx.replaceSpan(sp, w.String())
	return Rewrite{Edits: append(edits, plan.renames...)}, true
}

// hoistPlan is a local declaration split around a new try block.
type hoistPlan struct {
	decls   []string // before the try
	assigns string   // inside the try
	copies  []string // final copies after the try
	renames []diag.TextEdit
}

// hoist splits a local declaration whose variables are used after it into
// a declaration with default values before the try and assignments inside.
// A variable a later lambda or anonymous class captures is no longer
// effectively final once assigned inside the try, so those uses switch to
// a final copy declared after it.
func (h *handler) hoist() (hoistPlan, bool) {
	ctx := h.ctx
	t := ctx.Tree
	decl := h.unit
	typ := ctx.text(t.Field(decl, "type"))
	if typ == "var" || typ == "" {
		return hoistPlan{}, false
	}
	var (
		plan    hoistPlan
		used    bool
		lines   []string
		hoisted []string
	)
	end := ctx.span(decl).End
	for _, d := range t.Fields(decl, "declarator") {
		if t.Field(d, "dimensions") != syntax.NoNode {
			return hoistPlan{}, false
		}
		name := t.Field(d, "name")
		sym, found := ctx.Res.Symbol(name)
		if !found {
			return hoistPlan{}, false
		}
		if len(analysis.UsesAfter(t, ctx.Res, sym, end)) > 0 {
			used = true
		}
		value := t.Field(d, "value")
		captured, ok := h.capturedUses(sym, end)
		if !ok {
			return hoistPlan{}, false
		}
		if len(captured) > 0 {
			if value == syntax.NoNode {
				// копия до присваивания захватила бы значение по умолчанию
				return hoistPlan{}, false
			}
			cp := analysis.UniqueName(t, decl, ctx.text(name))
			plan.copies = append(plan.copies, "final "+typ+" "+cp+" = "+ctx.text(name)+";")
			for _, ref := range captured {
				plan.renames = append(plan.renames, ctx.replace(ref, cp)...)
			}
		}
		hoisted = append(hoisted, ctx.text(name)+" = "+zeroValue(typ))
		if value != syntax.NoNode {
			lines = append(lines, ctx.text(name)+" = "+ctx.text(value)+";")
		}
	}
	if !used {
		// переменная не нужна снаружи: оборачиваем объявление целиком
		return hoistPlan{assigns: ctx.text(decl)}, true
	}
	plan.decls = []string{typ + " " + strings.Join(hoisted, ", ") + ";"}
	plan.assigns = strings.Join(lines, ctx.nl()+ctx.indent(decl))
	return plan, true
}

// capturedUses returns the uses of sym after offset that sit inside a
// lambda or anonymous class body. It fails when such a body already
// captures a local that is not effectively final.
func (h *handler) capturedUses(sym *binding.Symbol, offset uint32) ([]syntax.NodeID, bool) {
	t, res := h.ctx.Tree, h.ctx.Res
	var refs []syntax.NodeID
	bodies := map[syntax.NodeID]bool{}
	seen := map[syntax.NodeID]bool{}
	for _, u := range analysis.UsesAfter(t, res, sym, offset) {
		b := analysis.CaptureBoundary(t, u, h.boundary.Node)
		if b == syntax.NoNode || bodies[b] {
			continue
		}
		bodies[b] = true
		caps, err := analysis.Capture(t, res, b, b)
		if err != nil || !caps.AllFinal() {
			return nil, false
		}
		for _, c := range caps {
			if c.Symbol != sym {
				continue
			}
			for _, r := range c.Refs {
				if !seen[r] {
					seen[r] = true
					refs = append(refs, r)
				}
			}
		}
	}
	return refs, true
}

// zeroValue is the default value of a field of type typ.
func zeroValue(typ string) string {
	switch typ {
	case "boolean":
		return "false"
	case "char":
		return `'\0'`
	case "int", "long", "short", "byte", "float", "double":
		return "0"
	}
	return "null"
}

// wrapLambdaBody turns `x -> call()` into a block body holding a try.
func (h *handler) wrapLambdaBody(types []string, multi bool) (Rewrite, bool) {
	ctx := h.ctx
	void, ok := lambdaReturnsVoid(ctx, h.lambda)
	if !ok {
		return Rewrite{}, false
	}
	base := ctx.indent(h.lambda)
	w := ctx.writer(base)
	w.WriteString("{")
	w.Newline()
	w.IndentPush()
	w.WriteString("try {")
	w.Newline()
	w.IndentPush()
	expr := renderReindent(ctx, ctx.text(h.unit), base, w.Indent())
	if void {
		w.Line(expr + ";")
	} else {
		w.Line("return " + expr + ";")
	}
	w.IndentPop()
	h.writeCatches(w, types, multi, h.rethrows())
	w.Newline()
	w.IndentPop()
	w.WriteString("}")
	return Rewrite{Edits: ctx.replace(h.unit, w.String())}, true
}

// enclosingTry returns the nearest try whose body holds the unit, inside
// the boundary.
func (h *handler) enclosingTry() syntax.NodeID {
	t := h.ctx.Tree
	cur := h.unit
	for p := t.Parent(cur); p != syntax.NoNode && p != h.boundary.Node; cur, p = p, t.Parent(p) {
		if t.Kind(p) == syntax.KindTry && t.Node(cur).Field == "body" {
			return p
		}
		if t.Kind(p) == syntax.KindLambda || t.Kind(p) == syntax.KindClassBody {
			break
		}
	}
	return syntax.NoNode
}

// addCatch appends dedicated clauses to the enclosing try.
func (h *handler) addCatch(types []string) (Rewrite, bool) {
	ctx := h.ctx
	t := ctx.Tree
	try := h.enclosingTry()
	if try == syntax.NoNode {
		return Rewrite{}, false
	}
	anchor := t.Field(try, "body")
	if catches := t.ChildrenOf(try, syntax.KindCatch); len(catches) > 0 {
		anchor = catches[len(catches)-1]
	}
	indent := ctx.indent(try)
	var b strings.Builder
	for _, typ := range types {
		fmt.Fprintf(&b, " catch (%s %s) {%s%s}", typ, h.name, ctx.nl(), indent)
	}
	edit := render.Insert(ctx.File(), ctx.span(anchor).End, b.String())
	return Rewrite{
		Label: "Add catch clause for " + types[0],
		Edits: []diag.TextEdit{edit},
	}, true
}

// widen adds the types to an existing catch clause of the enclosing try,
// one proposal per clause that stays a valid multi-catch.
func (h *handler) widen(types []string) []Rewrite {
	ctx := h.ctx
	t := ctx.Tree
	try := h.enclosingTry()
	if try == syntax.NoNode {
		return nil
	}
	var out []Rewrite
	for _, c := range t.ChildrenOf(try, syntax.KindCatch) {
		param := t.FirstOf(c, syntax.KindCatchParam)
		ct := t.FirstOf(param, syntax.KindCatchType)
		if name := t.Field(param, "name"); name == syntax.NoNode || !analysis.EffectivelyFinal(t, ctx.Res, name) {
			continue
		}
		have := analysis.CatchTypes(t, c)
		alts := append(append([]string(nil), have...), types...)
		if len(h.maximal(alts)) != len(alts) {
			continue
		}
		out = append(out, Rewrite{
			Label: fmt.Sprintf("Add %s to catch clause for %s", strings.Join(types, ", "), strings.Join(have, " | ")),
			Edits: ctx.replace(ct, strings.Join(alts, " | ")),
		})
	}
	return out
}

// addThrows declares the types on the enclosing method or constructor.
func (h *handler) addThrows(types []string) (Rewrite, bool) {
	ctx := h.ctx
	t := ctx.Tree
	switch h.boundary.Kind {
	case syntax.KindMethod, syntax.KindConstructor:
	default:
		return Rewrite{}, false
	}
	m := h.boundary.Node
	label := "Add throws declaration for " + types[0]
	if th := t.FirstOf(m, syntax.KindThrows); th != syntax.NoNode {
		edit := render.Insert(ctx.File(), ctx.span(th).End, ", "+strings.Join(types, ", "))
		return Rewrite{Label: label, Edits: []diag.TextEdit{edit}}, true
	}
	params := t.Field(m, "parameters")
	if params == syntax.NoNode {
		return Rewrite{}, false
	}
	at := ctx.span(params).End
	if dims := t.Field(m, "dimensions"); dims != syntax.NoNode {
		at = ctx.span(dims).End
	}
	edit := render.Insert(ctx.File(), at, " throws "+strings.Join(types, ", "))
	return Rewrite{Label: label, Edits: []diag.TextEdit{edit}}, true
}

// methodRefWrap converts a method reference whose target declares checked
// exceptions its functional method does not allow into a lambda that
// catches them.
func methodRefWrap(ctx *Context, ref syntax.NodeID) ([]Rewrite, error) {
	t := ctx.Tree
	target, ok := ctx.Res.TargetType(ref)
	if !ok {
		return nil, ErrNotApplicable
	}
	fm, ok := ctx.Res.FunctionalMethod(target)
	if !ok {
		return nil, ErrNotApplicable
	}
	n := fm.Arity()
	named := t.Named(ref)
	if len(named) == 0 {
		return nil, ErrNotApplicable
	}
	recv := named[0]
	isNew := len(named) == 1

	callee, unbound, ok := refCallee(ctx, ref, recv, n, isNew)
	if !ok {
		return nil, ErrNotApplicable
	}
	set := analysis.NewExceptionSet(ctx.Res)
	for _, th := range callee.Throws {
		if ctx.Res.IsChecked(th) {
			set.Add(th)
		}
	}
	set = set.Minus(fm.Throws)
	if set.Empty() {
		return nil, ErrNotApplicable
	}

	params := make([]string, n)
	for i := range params {
		params[i] = analysis.UniqueName(t, ref, fmt.Sprintf("arg%d", i))
	}
	var call string
	switch {
	case isNew:
		call = "new " + ctx.text(recv) + "(" + strings.Join(params, ", ") + ")"
	case unbound:
		call = params[0] + "." + callee.Name + "(" + strings.Join(params[1:], ", ") + ")"
	default:
		call = ctx.text(recv) + "." + callee.Name + "(" + strings.Join(params, ", ") + ")"
	}
	var head string
	switch n {
	case 1:
		head = params[0]
	default:
		head = "(" + strings.Join(params, ", ") + ")"
	}

	h := &handler{ctx: ctx, unit: ref, types: set.SpecificFirst()}
	h.name = analysis.UniqueName(t, ref, "e")
	types := h.maximal(h.types)
	base := ctx.indent(ref)
	w := ctx.writer(base)
	w.WriteString(head + " -> {")
	w.Newline()
	w.IndentPush()
	w.Line("try {")
	w.IndentPush()
	void := isVoid(fm.Result)
	if void {
		w.Line(call + ";")
	} else {
		w.Line("return " + call + ";")
	}
	w.IndentPop()
	h.writeCatches(w, types, false, !void)
	w.Newline()
	w.IndentPop()
	w.WriteString("}")

	return single(Rewrite{
		Label:     "Convert to lambda and surround with try/catch",
		Relevance: relevanceHandle,
		Edits:     ctx.replace(ref, w.String()),
	})
}

// refCallee picks the method a reference binds to for a functional method
// of arity n. unbound means the receiver is the first lambda parameter.
func refCallee(ctx *Context, ref, recv syntax.NodeID, n int, isNew bool) (m binding.Method, unbound, ok bool) {
	_, isExpr := ctx.Res.DeclaredType(recv)
	if ctx.Tree.Kind(recv) == syntax.KindThis || ctx.Tree.Kind(recv) == syntax.KindSuper {
		isExpr = true
	}
	for _, c := range ctx.Res.Candidates(ref) {
		switch {
		case isNew:
			if c.IsConstructor() && c.Arity() == n {
				return c, false, true
			}
		case isExpr || c.Static:
			if c.Arity() == n {
				return c, false, true
			}
		default:
			if c.Arity() == n-1 && n > 0 {
				return c, true, true
			}
		}
	}
	return binding.Method{}, false, false
}
