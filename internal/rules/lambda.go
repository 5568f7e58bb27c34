package rules

import (
	"strings"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/syntax"
)

// anonToLambda turns `new I() { public R m(P p) { ... } }` into a lambda.
func anonToLambda(ctx *Context) ([]Rewrite, error) {
	t, res := ctx.Tree, ctx.Res
	newExpr := ctx.find(syntax.KindNew, syntax.KindBlock, syntax.KindLambda)
	if newExpr == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	body := t.FirstOf(newExpr, syntax.KindClassBody)
	if body == syntax.NoNode || !lambdaContext(t, newExpr) {
		return nil, ErrNotApplicable
	}
	iface := ctx.text(t.Field(newExpr, "type"))
	fm, ok := res.FunctionalMethod(iface)
	if !ok || len(fm.TypeParams) > 0 {
		return nil, ErrNotApplicable
	}

	members := t.Named(body)
	if len(members) != 1 || t.Kind(members[0]) != syntax.KindMethod {
		ctx.point("anon-to-lambda", "class body has extra members")
		return nil, ErrNotApplicable
	}
	method := members[0]
	if ctx.text(t.Field(method, "name")) != fm.Name || len(binding.TypeParamNames(t, method)) > 0 {
		return nil, ErrNotApplicable
	}
	params := t.ChildrenOf(t.Field(method, "parameters"), syntax.KindParam)
	if len(params) != fm.Arity() {
		return nil, ErrNotApplicable
	}
	block := t.Field(method, "body")
	if block == syntax.NoNode {
		return nil, ErrNotApplicable
	}

	caps, err := analysis.Capture(t, res, block, body)
	if err != nil {
		return nil, err
	}
	if caps.UsesThis() || bindsToInstance(ctx, block, iface, fm.Name) {
		ctx.point("anon-to-lambda", "body refers to the anonymous instance")
		return nil, ErrNotApplicable
	}
	outer := ctx.outerLocals(newExpr)
	for _, name := range ctx.declaredNames(method) {
		if outer[name] {
			ctx.point("anon-to-lambda", "lambda would redeclare "+name)
			return nil, ErrNotApplicable
		}
	}

	ambiguous, typed := overloadShape(ctx, newExpr, fm, params)
	var b strings.Builder
	if ambiguous && !typed {
		b.WriteString("(" + iface + ") ")
	}
	b.WriteString(lambdaParams(ctx, params, typed))
	b.WriteString(" -> ")
	b.WriteString(lambdaBody(ctx, method, block, newExpr, fm))

	return single(Rewrite{
		Label:     "Convert to lambda expression",
		Relevance: relevanceConvert,
		Edits:     ctx.replace(newExpr, b.String()),
	})
}

// lambdaContext reports whether an expression at id may be replaced by a
// lambda: somewhere a target type comes from.
func lambdaContext(t *syntax.Tree, id syntax.NodeID) bool {
	p := t.Parent(id)
	for t.Kind(p) == syntax.KindParens {
		p = t.Parent(p)
	}
	switch t.Kind(p) {
	case syntax.KindArgs, syntax.KindDeclarator, syntax.KindReturn, syntax.KindCast,
		syntax.KindTernary, syntax.KindLambda:
		return true
	case syntax.KindAssign:
		return t.Node(id).Field == "right"
	}
	return false
}

// bindsToInstance reports whether an unqualified call in block would bind to
// a method of the anonymous instance: the implemented method itself, or one
// inherited from iface or Object.
func bindsToInstance(ctx *Context, block syntax.NodeID, iface, name string) bool {
	t, res := ctx.Tree, ctx.Res
	found := false
	t.Walk(block, func(id syntax.NodeID) bool {
		if found || t.Kind(id) == syntax.KindClassBody {
			return false
		}
		if t.Kind(id) != syntax.KindCall || t.Field(id, "object") != syntax.NoNode {
			return true
		}
		if ctx.text(t.Field(id, "name")) == name {
			found = true
			return false
		}
		if ms := res.Candidates(id); len(ms) > 0 && ms[0].Owner != "" && res.IsSubtype(iface, ms[0].Owner) {
			found = true
		}
		return true
	})
	return found
}

// overloadShape re-resolves the call around arg as if it were a bare lambda
// of the same arity. ambiguous is set when several functional parameter
// types survive; typed when explicit parameter types single one out.
func overloadShape(ctx *Context, arg syntax.NodeID, fm binding.Method, params []syntax.NodeID) (ambiguous, typed bool) {
	t, res := ctx.Tree, ctx.Res
	child, args := arg, t.Parent(arg)
	for t.Kind(args) == syntax.KindParens {
		child, args = args, t.Parent(args)
	}
	if t.Kind(args) != syntax.KindArgs {
		target, ok := res.TargetType(arg)
		if !ok {
			return true, false
		}
		if _, ok := res.FunctionalMethod(target); !ok {
			return true, false
		}
		return false, false
	}
	idx := -1
	for i, a := range t.Named(args) {
		if a == child {
			idx = i
		}
	}
	type shape struct {
		typ string
		fm  binding.Method
	}
	var survivors []shape
	seen := map[string]bool{}
	for _, m := range res.Candidates(t.Parent(args)) {
		pt, ok := paramAt(m, idx)
		if !ok {
			continue
		}
		pfm, ok := res.FunctionalMethod(pt)
		if !ok || pfm.Arity() != fm.Arity() || seen[binding.Erasure(pt)] {
			continue
		}
		seen[binding.Erasure(pt)] = true
		survivors = append(survivors, shape{pt, pfm})
	}
	if len(survivors) <= 1 {
		return false, false
	}
	if len(params) == 0 {
		return true, false
	}
	matches := 0
	for _, s := range survivors {
		same := true
		for i, p := range params {
			_, pt := binding.ParamNameType(t, p)
			if binding.Erasure(pt) != binding.Erasure(s.fm.Params[i].Type) {
				same = false
			}
		}
		if same {
			matches++
		}
	}
	return true, matches == 1
}

// paramAt returns the type a method expects at argument position i.
func paramAt(m binding.Method, i int) (string, bool) {
	n := m.Arity()
	switch {
	case i < 0:
		return "", false
	case i < n-1 || (i == n-1 && !m.Varargs):
		return m.Params[i].Type, true
	case m.Varargs && n > 0:
		return binding.ElementType(m.Params[n-1].Type), true
	}
	return "", false
}

func lambdaParams(ctx *Context, params []syntax.NodeID, typed bool) string {
	t := ctx.Tree
	if len(params) == 0 {
		return "()"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		name, typ := binding.ParamNameType(t, p)
		if typed {
			parts[i] = strings.TrimSpace(typ + " " + name)
			if binding.HasModifier(t, p, "final") {
				parts[i] = "final " + parts[i]
			}
			continue
		}
		parts[i] = name
	}
	if len(parts) == 1 && !typed {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// lambdaBody renders the method body as an expression when it is a single
// return (or a single expression statement of a void method), else as a
// block re-indented to the line of at.
func lambdaBody(ctx *Context, method, block, at syntax.NodeID, fm binding.Method) string {
	t := ctx.Tree
	stmts := statements(t, block)
	if len(stmts) == 1 && len(t.CommentsIn(ctx.span(block))) == 0 {
		s := stmts[0]
		e := exprOf(t, s)
		switch {
		case t.Kind(s) == syntax.KindReturn && e != syntax.NoNode,
			t.Kind(s) == syntax.KindExprStmt && isVoid(fm.Result):
			return reindentExpr(ctx, e, s, ctx.indent(at)+ctx.unit())
		}
	}
	return reindentBlock(ctx, block, ctx.indent(method), ctx.indent(at))
}

// reindentExpr copies expression e whose statement starts the line at stmt.
func reindentExpr(ctx *Context, e, stmt syntax.NodeID, to string) string {
	text := ctx.text(e)
	if !strings.Contains(text, "\n") {
		return text
	}
	return renderReindent(ctx, text, ctx.indent(stmt), to)
}

// reindentBlock copies a block whose owner line is indented by from so the
// closing brace lines up with to.
func reindentBlock(ctx *Context, block syntax.NodeID, from, to string) string {
	return renderReindent(ctx, ctx.text(block), from, to)
}

// lambdaToAnon synthesizes an anonymous class from the lambda's target type.
func lambdaToAnon(ctx *Context) ([]Rewrite, error) {
	t, res := ctx.Tree, ctx.Res
	lambda := ctx.find(syntax.KindLambda, syntax.KindBlock, syntax.KindClassBody)
	if lambda == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	target, ok := res.TargetType(lambda)
	if !ok {
		return nil, ErrNotApplicable
	}
	fm, ok := res.FunctionalMethod(target)
	if !ok {
		return nil, ErrNotApplicable
	}
	names, types := lambdaParamList(t, lambda)
	if len(names) != fm.Arity() {
		return nil, ErrNotApplicable
	}
	body := t.Field(lambda, "body")

	// this inside the lambda means the outer instance; qualify it
	repl := map[syntax.NodeID]string{}
	outerName := ""
	var fail bool
	t.Walk(body, func(id syntax.NodeID) bool {
		switch t.Kind(id) {
		case syntax.KindClassBody:
			return false
		case syntax.KindThis, syntax.KindSuper:
			if t.Kind(t.Parent(id)) == syntax.KindFieldAccess && t.Node(id).Field != "object" {
				return false
			}
			if t.Kind(id) == syntax.KindSuper {
				fail = true
				return false
			}
			if outerName == "" {
				outerName = enclosingTypeName(t, lambda)
			}
			if outerName == "" {
				fail = true
				return false
			}
			repl[id] = outerName + ".this"
		case syntax.KindCall:
			if t.Field(id, "object") == syntax.NoNode && shadowedByTarget(ctx, id, target) {
				fail = true
			}
		}
		return !fail
	})
	if fail {
		ctx.point("lambda-to-anon", "body would bind to the new instance")
		return nil, ErrNotApplicable
	}

	base := ctx.indent(lambda)
	w := ctx.writer(base)
	w.WriteString("new " + instantiable(target) + "() {")
	w.Newline()
	w.IndentPush()
	w.Line("@Override")
	var sig strings.Builder
	sig.WriteString("public " + concreteType(res, target, fm.Result) + " " + fm.Name + "(")
	for i := range names {
		if i > 0 {
			sig.WriteString(", ")
		}
		typ := types[i]
		if typ == "" {
			typ = concreteType(res, target, fm.Params[i].Type)
			if fm.Varargs && i == len(names)-1 {
				typ = strings.TrimSuffix(typ, "...") + "..."
			}
		}
		sig.WriteString(typ + " " + names[i])
	}
	sig.WriteString(")")
	if len(fm.Throws) > 0 {
		sig.WriteString(" throws " + strings.Join(fm.Throws, ", "))
	}
	sig.WriteString(" {")
	w.Line(sig.String())
	w.IndentPush()
	if t.Kind(body) == syntax.KindBlock {
		text := ctx.textWith(body, repl)
		if inner := strings.TrimSpace(text[1 : len(text)-1]); inner != "" {
			w.WriteString(renderReindent(ctx, inner, ctx.indent(firstNamed(t, body)), w.Indent()))
			w.Newline()
		}
	} else {
		expr := renderReindent(ctx, ctx.textWith(body, repl), base, w.Indent())
		if isVoid(fm.Result) {
			w.Line(expr + ";")
		} else {
			w.Line("return " + expr + ";")
		}
	}
	w.IndentPop()
	w.Line("}")
	w.IndentPop()
	w.WriteString("}")

	return single(Rewrite{
		Label:     "Convert to anonymous class creation",
		Relevance: relevanceConvert - 1,
		Edits:     ctx.replace(lambda, w.String()),
	})
}

// lambdaParamList returns the parameter names and, for explicitly typed
// lambdas, their declared types.
func lambdaParamList(t *syntax.Tree, lambda syntax.NodeID) (names, types []string) {
	params := t.Field(lambda, "parameters")
	if t.Kind(params) == syntax.KindIdent {
		return []string{t.Text(params)}, []string{""}
	}
	for _, p := range t.Named(params) {
		switch t.Kind(p) {
		case syntax.KindIdent:
			names = append(names, t.Text(p))
			types = append(types, "")
		case syntax.KindParam:
			name, typ := binding.ParamNameType(t, p)
			if typ == "var" {
				typ = ""
			}
			names = append(names, name)
			types = append(types, typ)
		}
	}
	return names, types
}

// enclosingTypeName returns the name of the named type around id, or "" when
// an anonymous class is closer.
func enclosingTypeName(t *syntax.Tree, id syntax.NodeID) string {
	for p := t.Parent(id); p != syntax.NoNode; p = t.Parent(p) {
		k := t.Kind(p)
		if k == syntax.KindClassBody && t.Kind(t.Parent(p)) == syntax.KindNew {
			return ""
		}
		if k.IsTypeDecl() {
			return t.Text(t.Field(p, "name"))
		}
	}
	return ""
}

// shadowedByTarget reports whether the unqualified call would resolve to a
// method of the anonymous class instead of the outer one.
func shadowedByTarget(ctx *Context, call syntax.NodeID, target string) bool {
	name := ctx.text(ctx.Tree.Field(call, "name"))
	for _, m := range ctx.Res.Methods(target) {
		if m.Name == name {
			return true
		}
	}
	return false
}

// instantiable drops wildcards, which `new` does not accept.
func instantiable(typ string) string {
	args := binding.TypeArgs(typ)
	if len(args) == 0 || !strings.Contains(typ, "?") {
		return typ
	}
	head := strings.TrimSpace(typ[:strings.IndexByte(typ, '<')])
	return head + "<" + strings.Join(args, ", ") + ">"
}

// concreteType replaces type variables left over from a raw target by Object.
func concreteType(res binding.Resolver, target, typ string) string {
	ti, ok := res.Type(target)
	if !ok || len(ti.TypeParams) == 0 || len(binding.TypeArgs(target)) > 0 {
		return typ
	}
	objects := make([]string, len(ti.TypeParams))
	for i := range objects {
		objects[i] = "Object"
	}
	return binding.Substitute(typ, ti.TypeParams, objects)
}
