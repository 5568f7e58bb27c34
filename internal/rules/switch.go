package rules

import (
	"strings"

	"refit/internal/binding"
	"refit/internal/render"
	"refit/internal/syntax"
)

type switchShape uint8

const (
	shapeAssign switchShape = iota + 1
	shapeReturn
)

// switchArm is one non-empty group of a colon-form switch, with the labels
// of the empty groups stacked above it.
type switchArm struct {
	labels    []string
	isDefault bool
	body      []syntax.NodeID // statements, trailing break removed
	last      syntax.NodeID   // value statement, or a throw
	value     syntax.NodeID   // assigned or returned expression
}

// switchToExpr rewrites a colon-form statement switch whose groups all assign
// one variable, or all return, into a switch expression.
func switchToExpr(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	sw := ctx.find(syntax.KindSwitch, syntax.KindClassBody, syntax.KindLambda, syntax.KindMethod)
	if sw == syntax.NoNode || !t.IsStatement(sw) {
		return nil, ErrNotApplicable
	}
	body := t.Field(sw, "body")
	if len(t.ChildrenOf(body, syntax.KindSwitchRule)) > 0 {
		return nil, ErrNotApplicable
	}
	arms, ok := switchArms(ctx, body)
	if !ok || len(arms) == 0 {
		return nil, ErrNotApplicable
	}

	shape, target, op := armShape(ctx, arms)
	if shape == 0 {
		ctx.point("switch.shape", "groups disagree")
		return nil, ErrNotApplicable
	}
	if !switchExhaustive(ctx, sw, arms) {
		ctx.point("switch.exhaustive", "no default")
		return nil, ErrNotApplicable
	}
	for i, a := range arms {
		if !armEscapes(ctx, a, shape, i == len(arms)-1) {
			return nil, ErrNotApplicable
		}
	}
	// return switch без default оставил бы недостижимый хвост
	if shape == shapeReturn && !hasDefault(arms) && nextStatement(t, sw) != syntax.NoNode {
		return nil, ErrNotApplicable
	}

	base := ctx.indent(sw)
	w := ctx.writer(base)
	replaceFrom := ctx.span(sw)
	switch shape {
	case shapeReturn:
		w.WriteString("return ")
	case shapeAssign:
		if decl := mergeableDecl(ctx, sw, target); decl != syntax.NoNode && op == "=" {
			w.WriteString(declHead(ctx, decl) + " = ")
			replaceFrom.Start = ctx.span(decl).Start
		} else {
			w.WriteString(target + " " + op + " ")
		}
	}
	w.WriteString("switch " + ctx.text(t.Field(sw, "condition")) + " {")
	w.Newline()
	w.IndentPush()
	for _, a := range arms {
		writeArrowArm(ctx, w, a)
	}
	w.IndentPop()
	w.WriteString("};")

	return single(Rewrite{
		Label:     "Convert to switch expression",
		Relevance: relevanceConvert,
		Edits:     ctx.replaceSpan(replaceFrom, w.String()),
	})
}

// switchArms groups the statements of a colon-form switch body. Empty groups
// pass their labels down to the next one.
func switchArms(ctx *Context, body syntax.NodeID) ([]switchArm, bool) {
	t := ctx.Tree
	var (
		arms    []switchArm
		pending []string
		dflt    bool
	)
	for _, g := range t.ChildrenOf(body, syntax.KindSwitchGroup) {
		for _, l := range t.ChildrenOf(g, syntax.KindSwitchLabel) {
			text, isDefault := labelText(ctx, l)
			if isDefault {
				dflt = true
				continue
			}
			pending = append(pending, text)
		}
		stmts := statements(t, g)
		if len(stmts) == 0 {
			continue
		}
		if n := len(stmts); t.Kind(stmts[n-1]) == syntax.KindBreak {
			if firstNamed(t, stmts[n-1]) != syntax.NoNode {
				return nil, false // break с меткой
			}
			stmts = stmts[:n-1]
		}
		if len(stmts) == 0 {
			ctx.point("switch.group", "only break")
			return nil, false
		}
		a := switchArm{labels: pending, isDefault: dflt, body: stmts, last: stmts[len(stmts)-1]}
		if a.isDefault {
			a.labels = nil
		}
		arms = append(arms, a)
		pending, dflt = nil, false
	}
	if len(pending) > 0 || dflt {
		// trailing labels without statements
		return nil, false
	}
	return arms, true
}

// labelText renders a switch label's constants, or reports default.
func labelText(ctx *Context, label syntax.NodeID) (string, bool) {
	t := ctx.Tree
	named := t.Named(label)
	if len(named) == 0 || t.HasToken(label, "default") {
		return "default", true
	}
	parts := make([]string, 0, len(named))
	for _, n := range named {
		parts = append(parts, ctx.text(n))
	}
	return strings.Join(parts, ", "), false
}

// armShape decides the common shape of all arms. Throwing arms fit either.
func armShape(ctx *Context, arms []switchArm) (shape switchShape, target, op string) {
	t := ctx.Tree
	for i := range arms {
		a := &arms[i]
		last := a.last
		switch t.Kind(last) {
		case syntax.KindThrow:
			continue
		case syntax.KindReturn:
			a.value = exprOf(t, last)
			if a.value == syntax.NoNode || (shape != 0 && shape != shapeReturn) {
				return 0, "", ""
			}
			shape = shapeReturn
		case syntax.KindExprStmt:
			as := stripParens(t, exprOf(t, last))
			if t.Kind(as) != syntax.KindAssign {
				return 0, "", ""
			}
			left := ctx.text(t.Field(as, "left"))
			o := ctx.text(t.Field(as, "operator"))
			if shape == shapeReturn || (shape == shapeAssign && (left != target || o != op)) {
				return 0, "", ""
			}
			shape, target, op = shapeAssign, left, o
			a.value = t.Field(as, "right")
		default:
			return 0, "", ""
		}
	}
	return shape, target, op
}

// armEscapes checks the arm's statements for control flow a switch
// expression cannot express.
func armEscapes(ctx *Context, a switchArm, shape switchShape, lastArm bool) bool {
	t := ctx.Tree
	// без break управление проваливается в следующую группу
	if !lastArm && t.Kind(a.last) != syntax.KindThrow && t.Kind(a.last) != syntax.KindReturn {
		if !endsWithBreak(t, a) {
			ctx.point("switch.fallthrough", "")
			return false
		}
	}
	for _, s := range a.body {
		bad := false
		t.Walk(s, func(id syntax.NodeID) bool {
			if bad {
				return false
			}
			switch t.Kind(id) {
			case syntax.KindClassBody, syntax.KindLambda:
				return false
			case syntax.KindSwitch, syntax.KindFor, syntax.KindForEach, syntax.KindWhile, syntax.KindDo:
				// вложенные break/continue относятся к ним; меченые нет
				bad = labeledJump(t, id)
				return false
			case syntax.KindBreak, syntax.KindContinue, syntax.KindYield:
				bad = true
			case syntax.KindReturn:
				if shape == shapeAssign || id != a.last {
					bad = true
				}
			}
			return true
		})
		if bad {
			ctx.point("switch.jump", t.Kind(s).String())
			return false
		}
	}
	return true
}

// endsWithBreak reports whether the group ended with an unlabeled break
// before it was stripped.
func endsWithBreak(t *syntax.Tree, a switchArm) bool {
	next := nextSibling(t, a.last)
	return next != syntax.NoNode && t.Kind(next) == syntax.KindBreak
}

// labeledJump reports whether a loop or switch contains a labeled break or
// continue, which may target something outside it.
func labeledJump(t *syntax.Tree, id syntax.NodeID) bool {
	found := false
	t.Walk(id, func(n syntax.NodeID) bool {
		switch t.Kind(n) {
		case syntax.KindClassBody, syntax.KindLambda:
			return false
		case syntax.KindBreak, syntax.KindContinue:
			if firstNamed(t, n) != syntax.NoNode {
				found = true
			}
		case syntax.KindReturn:
			found = true
		}
		return !found
	})
	return found
}

func hasDefault(arms []switchArm) bool {
	for _, a := range arms {
		if a.isDefault {
			return true
		}
	}
	return false
}

// switchExhaustive holds when a default exists or the labels name every
// constant of an enum declared in the unit.
func switchExhaustive(ctx *Context, sw syntax.NodeID, arms []switchArm) bool {
	if hasDefault(arms) {
		return true
	}
	cond := stripParens(ctx.Tree, ctx.Tree.Field(sw, "condition"))
	typ, ok := ctx.Res.DeclaredType(cond)
	if !ok {
		return false
	}
	ti, ok := ctx.Res.Type(binding.Erasure(typ))
	if !ok || ti.Kind != binding.TypeEnum || ti.Decl == syntax.NoNode {
		return false
	}
	seen := map[string]bool{}
	for _, a := range arms {
		for _, l := range a.labels {
			for _, c := range strings.Split(l, ",") {
				c = strings.TrimSpace(c)
				if i := strings.LastIndexByte(c, '.'); i >= 0 {
					c = c[i+1:]
				}
				seen[c] = true
			}
		}
	}
	for _, c := range ti.Constants {
		if !seen[c] {
			return false
		}
	}
	return len(ti.Constants) > 0
}

// mergeableDecl returns the declaration right before sw that declares target
// without an initializer.
func mergeableDecl(ctx *Context, sw syntax.NodeID, target string) syntax.NodeID {
	t := ctx.Tree
	prev := prevSibling(t, sw)
	if t.Kind(prev) != syntax.KindLocalVar {
		return syntax.NoNode
	}
	decls := t.Fields(prev, "declarator")
	if len(decls) != 1 || t.Field(decls[0], "value") != syntax.NoNode {
		return syntax.NoNode
	}
	if ctx.text(t.Field(decls[0], "name")) != target || t.Kind(t.Field(decls[0], "name")) != syntax.KindIdent {
		return syntax.NoNode
	}
	if len(t.CommentsOf(prev, syntax.Trailing)) > 0 {
		return syntax.NoNode
	}
	return prev
}

// declHead returns a declaration's text up to the end of its variable name.
func declHead(ctx *Context, decl syntax.NodeID) string {
	t := ctx.Tree
	name := t.Field(t.Fields(decl, "declarator")[0], "name")
	sp := ctx.span(decl)
	sp.End = ctx.span(name).End
	return ctx.File().Text(sp)
}

// writeArrowArm writes `case A, B -> e;` or a block arm ending in yield.
func writeArrowArm(ctx *Context, w *render.Writer, a switchArm) {
	t := ctx.Tree
	for _, cm := range t.CommentsOf(a.body[0], syntax.Leading) {
		w.WriteString(ctx.File().Text(cm.Span))
		w.Newline()
	}
	head := "default"
	if !a.isDefault {
		head = "case " + strings.Join(a.labels, ", ")
	}
	w.WriteString(head + " -> ")
	trailing := ctx.trailingComment(a.last)

	if len(a.body) == 1 {
		if t.Kind(a.last) == syntax.KindThrow {
			w.WriteString(renderReindent(ctx, ctx.text(a.last), ctx.indent(a.last), w.Indent()+ctx.unit()))
		} else {
			w.WriteString(renderReindent(ctx, ctx.text(a.value), ctx.indent(a.last), w.Indent()+ctx.unit()) + ";")
		}
		if trailing != "" {
			w.WriteString(" " + trailing)
		}
		w.Newline()
		return
	}

	w.WriteString("{")
	w.Newline()
	w.IndentPush()
	for _, s := range a.body {
		if s != a.body[0] {
			for _, cm := range t.CommentsOf(s, syntax.Leading) {
				w.WriteString(ctx.File().Text(cm.Span))
				w.Newline()
			}
		}
		var line string
		switch {
		case s != a.last || t.Kind(s) == syntax.KindThrow:
			line = renderReindent(ctx, ctx.text(s), ctx.indent(s), w.Indent())
		default:
			line = "yield " + renderReindent(ctx, ctx.text(a.value), ctx.indent(s), w.Indent()) + ";"
		}
		w.WriteString(line)
		if c := ctx.trailingComment(s); c != "" {
			w.WriteString(" " + c)
		}
		w.Newline()
	}
	w.IndentPop()
	w.WriteString("}")
	w.Newline()
}

// switchToStmt turns `T v = switch`, `v = switch` or `return switch` into a
// colon-form statement switch.
func switchToStmt(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	sw := ctx.find(syntax.KindSwitch, syntax.KindClassBody, syntax.KindLambda, syntax.KindMethod)
	if sw == syntax.NoNode || t.IsStatement(sw) {
		return nil, ErrNotApplicable
	}
	parent := t.Parent(sw)
	var (
		stmt    syntax.NodeID
		head    string // written before the switch, e.g. `int v;`
		assign  string // `v = ` or `v += `; "" for return
		returns bool
	)
	switch t.Kind(parent) {
	case syntax.KindReturn:
		stmt, returns = parent, true
	case syntax.KindDeclarator:
		decl := t.Parent(parent)
		if t.Kind(decl) != syntax.KindLocalVar || len(t.Fields(decl, "declarator")) != 1 || !t.IsStatement(decl) {
			return nil, ErrNotApplicable
		}
		if ctx.text(t.Field(decl, "type")) == "var" {
			return nil, ErrNotApplicable
		}
		stmt = decl
		head = declHead(ctx, decl) + ";"
		assign = ctx.text(t.Field(parent, "name")) + " = "
	case syntax.KindAssign:
		es := t.Parent(parent)
		if t.Kind(es) != syntax.KindExprStmt || !t.IsStatement(es) || t.Field(parent, "right") != sw {
			return nil, ErrNotApplicable
		}
		stmt = es
		assign = ctx.text(t.Field(parent, "left")) + " " + ctx.text(t.Field(parent, "operator")) + " "
	default:
		return nil, ErrNotApplicable
	}

	base := ctx.indent(stmt)
	w := ctx.writer(base)
	if head != "" {
		w.WriteString(head)
		w.Newline()
	}
	w.WriteString("switch " + ctx.text(t.Field(sw, "condition")) + " {")
	w.Newline()
	w.IndentPush()

	// finish пишет значение ветки на уровне to
	finish := func(expr syntax.NodeID, from, to string) string {
		e := renderReindent(ctx, ctx.text(expr), from, to)
		if returns {
			return "return " + e + ";"
		}
		return assign + e + ";" + ctx.nl() + to + "break;"
	}

	body := t.Field(sw, "body")
	for _, c := range t.Named(body) {
		switch t.Kind(c) {
		case syntax.KindSwitchRule:
			label := t.FirstOf(c, syntax.KindSwitchLabel)
			w.WriteString(ctx.text(label) + ":")
			w.Newline()
			w.IndentPush()
			arm := lastNamed(t, c)
			switch t.Kind(arm) {
			case syntax.KindBlock:
				text, ok := yieldsRewritten(ctx, statements(t, arm), w.Indent(), finish)
				if !ok {
					return nil, ErrNotApplicable
				}
				w.WriteString(text)
			case syntax.KindThrow:
				w.WriteString(renderReindent(ctx, ctx.text(arm), ctx.indent(arm), w.Indent()))
			case syntax.KindExprStmt:
				w.WriteString(finish(exprOf(t, arm), ctx.indent(arm), w.Indent()))
			default:
				return nil, ErrNotApplicable
			}
			if cm := ctx.trailingComment(arm); cm != "" {
				w.WriteString(" " + cm)
			}
			w.Newline()
			w.IndentPop()
		case syntax.KindSwitchGroup:
			for _, l := range t.ChildrenOf(c, syntax.KindSwitchLabel) {
				w.WriteString(ctx.text(l) + ":")
				w.Newline()
			}
			stmts := statements(t, c)
			if len(stmts) == 0 {
				continue
			}
			w.IndentPush()
			text, ok := yieldsRewritten(ctx, stmts, w.Indent(), finish)
			if !ok {
				return nil, ErrNotApplicable
			}
			w.WriteString(text)
			w.Newline()
			w.IndentPop()
		}
	}
	w.IndentPop()
	w.WriteString("}")

	return single(Rewrite{
		Label:     "Convert to switch statement",
		Relevance: relevanceConvert - 1,
		Edits:     ctx.replace(stmt, w.String()),
	})
}

// yieldsRewritten copies stmts to indent, replacing every yield that belongs
// to this switch with finish(expr). Yields outside a block are rejected.
func yieldsRewritten(ctx *Context, stmts []syntax.NodeID, indent string,
	finish func(expr syntax.NodeID, from, to string) string) (string, bool) {
	t := ctx.Tree
	if len(stmts) == 0 {
		return "", false
	}
	repl := map[syntax.NodeID]string{}
	ok := true
	for _, s := range stmts {
		t.Walk(s, func(id syntax.NodeID) bool {
			switch t.Kind(id) {
			case syntax.KindClassBody, syntax.KindLambda, syntax.KindSwitch:
				return false
			case syntax.KindYield:
				p := t.Kind(t.Parent(id))
				if p != syntax.KindBlock && p != syntax.KindSwitchGroup {
					ok = false
					return false
				}
				at := ctx.indent(id)
				repl[id] = finish(firstNamed(t, id), at, at)
				return false
			}
			return true
		})
	}
	if !ok {
		return "", false
	}
	first := stmts[0]
	sp := ctx.span(first)
	sp.End = ctx.span(stmts[len(stmts)-1]).End
	return renderReindent(ctx, ctx.textIn(sp, repl), ctx.indent(first), indent), true
}

func lastNamed(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	named := t.Named(id)
	if len(named) == 0 {
		return syntax.NoNode
	}
	return named[len(named)-1]
}

// prevSibling returns the named sibling right before id.
func prevSibling(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	prev := syntax.NoNode
	for _, c := range t.Named(t.Parent(id)) {
		if c == id {
			return prev
		}
		prev = c
	}
	return syntax.NoNode
}

// nextSibling returns the named sibling right after id.
func nextSibling(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	named := t.Named(t.Parent(id))
	for i, c := range named {
		if c == id && i+1 < len(named) {
			return named[i+1]
		}
	}
	return syntax.NoNode
}

// nextStatement returns the statement following id in its block.
func nextStatement(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	n := nextSibling(t, id)
	if n != syntax.NoNode && t.Kind(n).IsStatement() {
		return n
	}
	return syntax.NoNode
}
