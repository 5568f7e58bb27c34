package rules

import (
	"strings"

	"refit/internal/analysis"
	"refit/internal/binding"
	"refit/internal/syntax"
)

// removedMark stands in for a statement dropped from a copied body.
const removedMark = "\x00"

// indexLoopToForEach rewrites `for (int i = 0; i < a.length; i++)` and the
// list.size() form when i only indexes the collection.
func indexLoopToForEach(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	loop := ctx.find(syntax.KindFor, syntax.KindBlock, syntax.KindClassBody)
	if loop == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	idx, ok := zeroIndexInit(ctx, t.Field(loop, "init"))
	if !ok {
		return nil, ErrNotApplicable
	}
	sym, ok := ctx.Res.Symbol(idx)
	if !ok {
		return nil, ErrNotApplicable
	}
	coll, isArray, ok := indexBound(ctx, t.Field(loop, "condition"), sym)
	if !ok || !simpleReceiver(t, coll) || !incrementOf(ctx, t.Field(loop, "update"), sym) {
		return nil, ErrNotApplicable
	}
	collText := ctx.text(coll)

	collType, ok := ctx.Res.DeclaredType(coll)
	if !ok {
		return nil, analysis.ErrUnresolvable
	}
	var elem string
	if isArray {
		if !binding.IsArray(collType) {
			return nil, ErrNotApplicable
		}
		elem = binding.ElementType(collType)
	} else {
		args := binding.TypeArgs(collType)
		if !ctx.Res.IsSubtype(collType, "List") || len(args) != 1 {
			return nil, ErrNotApplicable
		}
		elem = args[0]
	}

	// каждое использование i должно быть a[i] или list.get(i)
	body := t.Field(loop, "body")
	var accesses []syntax.NodeID
	bad := false
	t.Walk(body, func(id syntax.NodeID) bool {
		if bad {
			return false
		}
		if t.Kind(id) != syntax.KindIdent {
			return true
		}
		if s, ok := ctx.Res.Symbol(id); !ok || s != sym {
			return true
		}
		acc := elementAccess(ctx, id, collText, isArray)
		if acc == syntax.NoNode || isWritten(t, acc) {
			bad = true
			return false
		}
		accesses = append(accesses, acc)
		return true
	})
	if bad || len(accesses) == 0 {
		ctx.point("foreach.index", "index escapes")
		return nil, ErrNotApplicable
	}

	head, drop := leadingElementDecl(ctx, body, accesses)
	repl := map[syntax.NodeID]string{}
	if drop != syntax.NoNode {
		repl[drop] = removedMark
	} else {
		name := analysis.ElementName(collText)
		if ctx.outerLocals(loop)[name] || contains(ctx.declaredNames(body), name) {
			name = analysis.UniqueName(t, loop, name)
		}
		head = elem + " " + name
		for _, a := range accesses {
			repl[a] = name
		}
	}
	text := "for (" + head + " : " + collText + ") " + dropMarkedLine(ctx.textWith(body, repl))
	return single(Rewrite{
		Label:     "Convert to enhanced for loop",
		Relevance: relevanceLoop,
		Edits:     ctx.replace(loop, text),
	})
}

// zeroIndexInit matches `int i = 0` and returns the name node of i.
func zeroIndexInit(ctx *Context, init syntax.NodeID) (syntax.NodeID, bool) {
	t := ctx.Tree
	if t.Kind(init) != syntax.KindLocalVar || ctx.text(t.Field(init, "type")) != "int" {
		return syntax.NoNode, false
	}
	decls := t.Fields(init, "declarator")
	if len(decls) != 1 || ctx.text(t.Field(decls[0], "value")) != "0" {
		return syntax.NoNode, false
	}
	return t.Field(decls[0], "name"), true
}

// indexBound matches `i < a.length` or `i < list.size()` and returns the
// collection expression.
func indexBound(ctx *Context, cond syntax.NodeID, sym *binding.Symbol) (coll syntax.NodeID, isArray, ok bool) {
	t := ctx.Tree
	cond = stripParens(t, cond)
	if t.Kind(cond) != syntax.KindBinary || ctx.text(t.Field(cond, "operator")) != "<" {
		return syntax.NoNode, false, false
	}
	if !refersTo(ctx, t.Field(cond, "left"), sym) {
		return syntax.NoNode, false, false
	}
	right := stripParens(t, t.Field(cond, "right"))
	switch t.Kind(right) {
	case syntax.KindFieldAccess:
		if ctx.text(t.Field(right, "field")) == "length" {
			return t.Field(right, "object"), true, true
		}
	case syntax.KindCall:
		obj := t.Field(right, "object")
		if obj != syntax.NoNode && ctx.text(t.Field(right, "name")) == "size" && len(t.Named(t.Field(right, "arguments"))) == 0 {
			return obj, false, true
		}
	}
	return syntax.NoNode, false, false
}

// incrementOf matches `i++`, `++i` and `i += 1`.
func incrementOf(ctx *Context, upd syntax.NodeID, sym *binding.Symbol) bool {
	t := ctx.Tree
	switch t.Kind(upd) {
	case syntax.KindUpdate:
		text := strings.ReplaceAll(ctx.text(upd), " ", "")
		return refersTo(ctx, firstNamed(t, upd), sym) && (strings.HasSuffix(text, "++") || strings.HasPrefix(text, "++"))
	case syntax.KindAssign:
		return ctx.text(t.Field(upd, "operator")) == "+=" && ctx.text(t.Field(upd, "right")) == "1" &&
			refersTo(ctx, t.Field(upd, "left"), sym)
	}
	return false
}

func refersTo(ctx *Context, id syntax.NodeID, sym *binding.Symbol) bool {
	if ctx.Tree.Kind(id) != syntax.KindIdent {
		return false
	}
	s, ok := ctx.Res.Symbol(id)
	return ok && s == sym
}

// simpleReceiver accepts names and field chains, which evaluate the same
// every time.
func simpleReceiver(t *syntax.Tree, id syntax.NodeID) bool {
	switch t.Kind(id) {
	case syntax.KindIdent, syntax.KindThis:
		return true
	case syntax.KindFieldAccess:
		return simpleReceiver(t, t.Field(id, "object"))
	}
	return false
}

// elementAccess returns the `a[i]` or `list.get(i)` around the index ref.
func elementAccess(ctx *Context, ref syntax.NodeID, coll string, isArray bool) syntax.NodeID {
	t := ctx.Tree
	p := t.Parent(ref)
	if isArray {
		if t.Kind(p) == syntax.KindArrayAccess && t.Field(p, "index") == ref && ctx.text(t.Field(p, "array")) == coll {
			return p
		}
		return syntax.NoNode
	}
	if t.Kind(p) != syntax.KindArgs || len(t.Named(p)) != 1 {
		return syntax.NoNode
	}
	call := t.Parent(p)
	if t.Kind(call) == syntax.KindCall && ctx.text(t.Field(call, "name")) == "get" && ctx.text(t.Field(call, "object")) == coll {
		return call
	}
	return syntax.NoNode
}

// isWritten reports whether an element access is assigned or updated.
func isWritten(t *syntax.Tree, acc syntax.NodeID) bool {
	p := t.Parent(acc)
	switch t.Kind(p) {
	case syntax.KindAssign:
		return t.Field(p, "left") == acc
	case syntax.KindUpdate:
		return true
	}
	return false
}

// leadingElementDecl matches a first body statement `T x = a[i];` that
// holds the only access. It returns the loop variable text and the
// statement to drop.
func leadingElementDecl(ctx *Context, body syntax.NodeID, accesses []syntax.NodeID) (string, syntax.NodeID) {
	t := ctx.Tree
	if len(accesses) != 1 || t.Kind(body) != syntax.KindBlock {
		return "", syntax.NoNode
	}
	stmts := statements(t, body)
	if len(stmts) == 0 || t.Kind(stmts[0]) != syntax.KindLocalVar {
		return "", syntax.NoNode
	}
	first := stmts[0]
	decls := t.Fields(first, "declarator")
	if len(decls) != 1 || stripParens(t, t.Field(decls[0], "value")) != accesses[0] {
		return "", syntax.NoNode
	}
	if len(t.CommentsOf(first, syntax.Trailing)) > 0 {
		return "", syntax.NoNode
	}
	sp := ctx.span(first)
	sp.End = ctx.span(t.Field(decls[0], "name")).End
	return ctx.File().Text(sp), first
}

// dropMarkedLine removes the line holding only the removed-statement mark.
func dropMarkedLine(text string) string {
	i := strings.Index(text, removedMark)
	if i < 0 {
		return text
	}
	start := strings.LastIndexByte(text[:i], '\n')
	end := strings.IndexByte(text[i:], '\n')
	if start >= 0 && end >= 0 && strings.TrimSpace(text[start+1:i]) == "" && strings.TrimSpace(text[i+len(removedMark):i+end]) == "" {
		return text[:start+1] + text[i+end+1:]
	}
	return strings.Replace(text, removedMark, "", 1)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// iteratorLoopToForEach rewrites
// `for (Iterator<T> it = c.iterator(); it.hasNext();) { T x = it.next(); ... }`
// when the iterator has no other use.
func iteratorLoopToForEach(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	loop := ctx.find(syntax.KindFor, syntax.KindBlock, syntax.KindClassBody)
	if loop == syntax.NoNode || t.Field(loop, "update") != syntax.NoNode {
		return nil, ErrNotApplicable
	}
	init := t.Field(loop, "init")
	if t.Kind(init) != syntax.KindLocalVar || binding.Erasure(ctx.text(t.Field(init, "type"))) != "Iterator" {
		return nil, ErrNotApplicable
	}
	decls := t.Fields(init, "declarator")
	if len(decls) != 1 {
		return nil, ErrNotApplicable
	}
	src := stripParens(t, t.Field(decls[0], "value"))
	if t.Kind(src) != syntax.KindCall || ctx.text(t.Field(src, "name")) != "iterator" ||
		t.Field(src, "object") == syntax.NoNode || len(t.Named(t.Field(src, "arguments"))) != 0 {
		return nil, ErrNotApplicable
	}
	coll := t.Field(src, "object")
	it, ok := ctx.Res.Symbol(t.Field(decls[0], "name"))
	if !ok {
		return nil, ErrNotApplicable
	}
	if !iteratorCall(ctx, t.Field(loop, "condition"), it, "hasNext") {
		return nil, ErrNotApplicable
	}
	body := t.Field(loop, "body")
	stmts := statements(t, body)
	if t.Kind(body) != syntax.KindBlock || len(stmts) == 0 || t.Kind(stmts[0]) != syntax.KindLocalVar {
		return nil, ErrNotApplicable
	}
	first := stmts[0]
	elemDecls := t.Fields(first, "declarator")
	if len(elemDecls) != 1 || !iteratorCall(ctx, t.Field(elemDecls[0], "value"), it, "next") {
		return nil, ErrNotApplicable
	}

	// ровно два использования: hasNext() и next()
	uses := 0
	t.Walk(loop, func(id syntax.NodeID) bool {
		if t.Kind(id) == syntax.KindIdent && id != it.Decl {
			if s, ok := ctx.Res.Symbol(id); ok && s == it {
				uses++
			}
		}
		return true
	})
	if uses != 2 {
		ctx.point("foreach.iterator", "iterator used in body")
		return nil, ErrNotApplicable
	}

	sp := ctx.span(first)
	sp.End = ctx.span(t.Field(elemDecls[0], "name")).End
	head := ctx.File().Text(sp)
	text := "for (" + head + " : " + ctx.text(coll) + ") " +
		dropMarkedLine(ctx.textWith(body, map[syntax.NodeID]string{first: removedMark}))
	return single(Rewrite{
		Label:     "Convert to enhanced for loop",
		Relevance: relevanceLoop,
		Edits:     ctx.replace(loop, text),
	})
}

// iteratorCall matches `it.name()` for the iterator symbol.
func iteratorCall(ctx *Context, id syntax.NodeID, it *binding.Symbol, name string) bool {
	t := ctx.Tree
	id = stripParens(t, id)
	return t.Kind(id) == syntax.KindCall && ctx.text(t.Field(id, "name")) == name &&
		refersTo(ctx, t.Field(id, "object"), it) && len(t.Named(t.Field(id, "arguments"))) == 0
}
