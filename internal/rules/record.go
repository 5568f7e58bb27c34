package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/syntax"
)

// recordWarning marks record conversions of classes that relied on identity
// equality.
const recordWarning = "record equality semantics differ"

type recordField struct {
	name string
	typ  string
}

// classToRecord rewrites a data carrier class into a record: private final
// fields, one canonical constructor and plain accessors. equals, hashCode
// and toString overrides are carried over.
func classToRecord(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	cls := ctx.find(syntax.KindClass, syntax.KindClassBody)
	if cls == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	if t.Field(cls, "superclass") != syntax.NoNode || binding.HasModifier(t, cls, "abstract") {
		return nil, ErrNotApplicable
	}
	body := t.Field(cls, "body")
	name := ctx.text(t.Field(cls, "name"))

	var (
		fields   []recordField
		ctors    []syntax.NodeID
		getters  []syntax.NodeID
		kept     []syntax.NodeID
		equality bool
	)
	for _, m := range t.Named(body) {
		switch t.Kind(m) {
		case syntax.KindField:
			fs, ok := recordFields(ctx, m)
			if !ok {
				ctx.point("record.field", ctx.text(m))
				return nil, ErrNotApplicable
			}
			fields = append(fields, fs...)
		case syntax.KindConstructor:
			ctors = append(ctors, m)
		case syntax.KindMethod:
			switch recordMethodRole(ctx, m) {
			case "getter":
				getters = append(getters, m)
			case "equals", "hashCode":
				equality = true
				kept = append(kept, m)
			case "toString":
				kept = append(kept, m)
			default:
				ctx.point("record.member", ctx.text(t.Field(m, "name")))
				return nil, ErrNotApplicable
			}
		default:
			return nil, ErrNotApplicable
		}
	}
	if len(ctors) > 1 || (len(ctors) == 0 && len(fields) > 0) {
		return nil, ErrNotApplicable
	}
	if len(ctors) == 1 && !canonicalCtor(ctx, ctors[0], fields) {
		return nil, ErrNotApplicable
	}
	renames := map[string]string{}
	for _, g := range getters {
		f, ok := accessedField(ctx, g, fields)
		if !ok {
			return nil, ErrNotApplicable
		}
		if gn := ctx.text(t.Field(g, "name")); gn != f.name {
			renames[gn] = f.name
		}
	}

	// вызовы геттеров внутри класса переименовываются в копируемом тексте
	inner := map[syntax.NodeID]string{}
	var edits []diag.TextEdit
	for _, call := range getterCalls(ctx, cls, name, renames) {
		nameNode := t.Field(call, "name")
		to := renames[ctx.text(nameNode)]
		if t.IsAncestor(cls, call) {
			inner[nameNode] = to
			continue
		}
		edits = append(edits, ctx.replace(nameNode, to)...)
	}

	indent := ctx.indent(cls)
	w := ctx.writer(indent)
	w.WriteString(recordModifiers(ctx, cls) + "record " + name)
	if tp := t.FirstOf(cls, syntax.KindTypeParams); tp != syntax.NoNode {
		w.WriteString(ctx.text(tp))
	}
	comps := make([]string, len(fields))
	for i, f := range fields {
		comps[i] = f.typ + " " + f.name
	}
	w.WriteString("(" + strings.Join(comps, ", ") + ")")
	if ifaces := t.Field(cls, "interfaces"); ifaces != syntax.NoNode {
		w.WriteString(" " + ctx.text(ifaces))
	}
	if len(kept) == 0 {
		w.WriteString(" { }")
	} else {
		w.WriteString(" {")
		w.Newline()
		w.IndentPush()
		for i, m := range kept {
			if i > 0 {
				w.Newline()
			}
			for _, cm := range t.CommentsOf(m, syntax.Leading) {
				w.Line(renderReindent(ctx, ctx.File().Text(cm.Span), ctx.indent(m), w.Indent()))
			}
			w.Line(renderReindent(ctx, ctx.textWith(m, inner), ctx.indent(m), w.Indent()))
		}
		w.IndentPop()
		w.WriteString("}")
	}

	rw := Rewrite{
		Label:     "Convert to record",
		Relevance: relevanceRecord,
		Edits:     append(ctx.replace(cls, w.String()), edits...),
	}
	if !equality {
		rw.Warning = recordWarning
	}
	return single(rw)
}

// recordFields accepts `private final T a, b;` without initializers.
func recordFields(ctx *Context, field syntax.NodeID) ([]recordField, bool) {
	t := ctx.Tree
	mods := t.FirstOf(field, syntax.KindModifiers)
	if !t.HasToken(mods, "private") || !t.HasToken(mods, "final") || t.HasToken(mods, "static") {
		return nil, false
	}
	if len(t.Named(mods)) > 0 {
		// аннотации на полях не переносим
		return nil, false
	}
	typ := ctx.text(t.Field(field, "type"))
	var out []recordField
	for _, d := range t.Fields(field, "declarator") {
		if t.Field(d, "value") != syntax.NoNode || t.Field(d, "dimensions") != syntax.NoNode {
			return nil, false
		}
		out = append(out, recordField{name: ctx.text(t.Field(d, "name")), typ: typ})
	}
	return out, len(out) > 0
}

// recordMethodRole classifies a method of a record candidate.
func recordMethodRole(ctx *Context, m syntax.NodeID) string {
	t := ctx.Tree
	if binding.HasModifier(t, m, "static") || t.FirstOf(m, syntax.KindTypeParams) != syntax.NoNode {
		return ""
	}
	name := ctx.text(t.Field(m, "name"))
	params := t.Named(t.Field(m, "parameters"))
	result := ctx.text(t.Field(m, "type"))
	switch {
	case name == "equals" && len(params) == 1 && result == "boolean":
		return "equals"
	case name == "hashCode" && len(params) == 0 && result == "int":
		return "hashCode"
	case name == "toString" && len(params) == 0 && result == "String":
		return "toString"
	case len(params) == 0:
		return "getter"
	}
	return ""
}

// accessedField matches `T name() { return f; }` and the get/is forms.
func accessedField(ctx *Context, m syntax.NodeID, fields []recordField) (recordField, bool) {
	t := ctx.Tree
	stmts := statements(t, t.Field(m, "body"))
	if len(stmts) != 1 || t.Kind(stmts[0]) != syntax.KindReturn {
		return recordField{}, false
	}
	ret := stripParens(t, exprOf(t, stmts[0]))
	var fname string
	switch t.Kind(ret) {
	case syntax.KindIdent:
		fname = ctx.text(ret)
	case syntax.KindFieldAccess:
		if t.Kind(t.Field(ret, "object")) != syntax.KindThis {
			return recordField{}, false
		}
		fname = ctx.text(t.Field(ret, "field"))
	default:
		return recordField{}, false
	}
	mname := ctx.text(t.Field(m, "name"))
	result := ctx.text(t.Field(m, "type"))
	for _, f := range fields {
		if f.name != fname || f.typ != result {
			continue
		}
		if mname == f.name || mname == "get"+capitalize(f.name) || (f.typ == "boolean" && mname == "is"+capitalize(f.name)) {
			return f, true
		}
	}
	return recordField{}, false
}

// canonicalCtor checks that the constructor assigns field i from parameter
// i of the same type, and does nothing else.
func canonicalCtor(ctx *Context, ctor syntax.NodeID, fields []recordField) bool {
	t := ctx.Tree
	params := t.ChildrenOf(t.Field(ctor, "parameters"), syntax.KindParam)
	if len(params) != len(fields) {
		return false
	}
	paramIdx := map[string]int{}
	for i, p := range params {
		pn, pt := binding.ParamNameType(t, p)
		if strings.Join(strings.Fields(pt), "") != strings.Join(strings.Fields(fields[i].typ), "") {
			return false
		}
		paramIdx[pn] = i
	}
	stmts := statements(t, t.Field(ctor, "body"))
	if len(stmts) != len(fields) {
		return false
	}
	assigned := make([]bool, len(fields))
	for _, s := range stmts {
		as := stripParens(t, exprOf(t, s))
		if t.Kind(s) != syntax.KindExprStmt || t.Kind(as) != syntax.KindAssign || ctx.text(t.Field(as, "operator")) != "=" {
			return false
		}
		left := t.Field(as, "left")
		var fname string
		switch t.Kind(left) {
		case syntax.KindFieldAccess:
			if t.Kind(t.Field(left, "object")) != syntax.KindThis {
				return false
			}
			fname = ctx.text(t.Field(left, "field"))
		case syntax.KindIdent:
			fname = ctx.text(left)
			if _, shadowed := paramIdx[fname]; shadowed {
				return false
			}
		default:
			return false
		}
		right := stripParens(t, t.Field(as, "right"))
		j, ok := paramIdx[ctx.text(right)]
		if t.Kind(right) != syntax.KindIdent || !ok || fields[j].name != fname || assigned[j] {
			return false
		}
		assigned[j] = true
	}
	return true
}

// getterCalls finds zero-argument calls of renamed getters on the class.
func getterCalls(ctx *Context, cls syntax.NodeID, name string, renames map[string]string) []syntax.NodeID {
	t := ctx.Tree
	if len(renames) == 0 {
		return nil
	}
	var out []syntax.NodeID
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		if t.Kind(id) != syntax.KindCall {
			return true
		}
		if _, ok := renames[ctx.text(t.Field(id, "name"))]; !ok || len(t.Named(t.Field(id, "arguments"))) != 0 {
			return true
		}
		obj := t.Field(id, "object")
		switch {
		case obj == syntax.NoNode || t.Kind(obj) == syntax.KindThis:
			if t.IsAncestor(cls, id) {
				out = append(out, id)
			}
		default:
			if typ, ok := ctx.Res.DeclaredType(obj); ok && binding.Erasure(typ) == name {
				out = append(out, id)
			}
		}
		return true
	})
	return out
}

// recordModifiers keeps the class modifiers except final.
func recordModifiers(ctx *Context, cls syntax.NodeID) string {
	t := ctx.Tree
	mods := t.FirstOf(cls, syntax.KindModifiers)
	n := t.Node(mods)
	if n == nil {
		return ""
	}
	var parts []string
	for _, c := range n.Children {
		if text := t.Text(c); text != "final" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " "
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
