package binding

import (
	"strconv"
	"strings"

	"refit/internal/syntax"
)

var _ Resolver = (*Index)(nil)

// Symbol resolves a reference or declaration name node.
func (x *Index) Symbol(ref syntax.NodeID) (*Symbol, bool) {
	if sym, ok := x.refs[ref]; ok {
		return sym, true
	}
	sym, ok := x.decls[ref]
	return sym, ok
}

// References returns every resolved reference to sym.
func (x *Index) References(sym *Symbol) []syntax.NodeID {
	var out []syntax.NodeID
	x.tree.Walk(x.tree.Root, func(id syntax.NodeID) bool {
		if x.refs[id] == sym {
			out = append(out, id)
		}
		return true
	})
	return out
}

// DeclaredType returns the static type of expr as source text.
func (x *Index) DeclaredType(expr syntax.NodeID) (string, bool) {
	t := x.tree
	n := t.Node(expr)
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case syntax.KindParens:
		return x.DeclaredType(firstNamed(t, expr))
	case syntax.KindIdent:
		sym, ok := x.Symbol(expr)
		if !ok {
			return "", false
		}
		return x.symbolType(sym)
	case syntax.KindThis:
		ti, ok := x.EnclosingType(expr)
		if !ok {
			return "", false
		}
		return ti.Name, true
	case syntax.KindString:
		return "String", true
	case syntax.KindLiteral:
		return literalType(n.Type, t.Text(expr))
	case syntax.KindNew:
		return t.Text(t.Field(expr, "type")), true
	case syntax.KindCast:
		return t.Text(t.Field(expr, "type")), true
	case syntax.KindCall:
		return x.callResult(expr)
	case syntax.KindFieldAccess:
		return x.fieldAccessType(expr)
	case syntax.KindArrayAccess:
		arr, ok := x.DeclaredType(t.Field(expr, "array"))
		if !ok || !IsArray(arr) {
			return "", false
		}
		return ElementType(arr), true
	case syntax.KindTernary:
		if typ, ok := x.DeclaredType(t.Field(expr, "consequence")); ok {
			return typ, true
		}
		return x.DeclaredType(t.Field(expr, "alternative"))
	case syntax.KindAssign:
		return x.DeclaredType(t.Field(expr, "left"))
	case syntax.KindUpdate:
		return x.DeclaredType(firstNamed(t, expr))
	case syntax.KindUnary:
		if t.Text(t.Field(expr, "operator")) == "!" {
			return "boolean", true
		}
		return x.DeclaredType(t.Field(expr, "operand"))
	case syntax.KindBinary:
		return x.binaryType(expr)
	case syntax.KindLambda, syntax.KindMethodRef:
		return x.TargetType(expr)
	}
	return "", false
}

func (x *Index) symbolType(sym *Symbol) (string, bool) {
	t := x.tree
	switch {
	case sym.Type != "" && sym.Type != "var":
		return sym.Type, true
	case sym.Kind == SymLocal || sym.Kind == SymResource:
		decl := t.Parent(sym.Decl)
		if t.Kind(decl) == syntax.KindDeclarator {
			return x.DeclaredType(t.Field(decl, "value"))
		}
		if t.Kind(sym.Stmt) == syntax.KindForEach {
			iter, ok := x.DeclaredType(t.Field(sym.Stmt, "value"))
			if !ok {
				return "", false
			}
			return x.ElementOf(iter)
		}
		return x.DeclaredType(t.Field(decl, "value"))
	case sym.Kind == SymLambdaParam:
		lambda := sym.Scope
		target, ok := x.TargetType(lambda)
		if !ok {
			return "", false
		}
		fm, ok := x.FunctionalMethod(target)
		if !ok {
			return "", false
		}
		i := lambdaParamIndex(t, lambda, sym.Decl)
		if i < 0 || i >= len(fm.Params) {
			return "", false
		}
		return fm.Params[i].Type, true
	}
	return "", false
}

func lambdaParamIndex(t *syntax.Tree, lambda, decl syntax.NodeID) int {
	params := t.Field(lambda, "parameters")
	if params == decl {
		return 0
	}
	i := 0
	for _, p := range t.Named(params) {
		switch t.Kind(p) {
		case syntax.KindIdent, syntax.KindParam:
			if p == decl || t.IsAncestor(p, decl) {
				return i
			}
			i++
		}
	}
	return -1
}

// ElementOf returns the element type produced by iterating over typ.
func (x *Index) ElementOf(typ string) (string, bool) {
	if IsArray(typ) {
		return ElementType(typ), true
	}
	for _, m := range x.methodsOf(typ) {
		if m.Name == "iterator" && m.Arity() == 0 {
			if args := TypeArgs(m.Result); len(args) == 1 {
				return args[0], true
			}
		}
	}
	return "", false
}

func literalType(grammarType, text string) (string, bool) {
	switch grammarType {
	case "decimal_integer_literal", "hex_integer_literal":
		if strings.HasSuffix(text, "L") || strings.HasSuffix(text, "l") {
			return "long", true
		}
		return "int", true
	case "decimal_floating_point_literal":
		if strings.HasSuffix(text, "f") || strings.HasSuffix(text, "F") {
			return "float", true
		}
		return "double", true
	case "character_literal":
		return "char", true
	case "true", "false":
		return "boolean", true
	}
	return "", false
}

func (x *Index) binaryType(expr syntax.NodeID) (string, bool) {
	t := x.tree
	switch t.Text(t.Field(expr, "operator")) {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||", "instanceof":
		return "boolean", true
	}
	left, lok := x.DeclaredType(t.Field(expr, "left"))
	right, rok := x.DeclaredType(t.Field(expr, "right"))
	if (lok && Erasure(left) == "String") || (rok && Erasure(right) == "String") {
		return "String", true
	}
	if !lok || !rok {
		return "", false
	}
	for _, wide := range []string{"double", "float", "long"} {
		if unbox(left) == wide || unbox(right) == wide {
			return wide, true
		}
	}
	if unbox(left) == "boolean" {
		return "boolean", true
	}
	return "int", true
}

func unbox(t string) string {
	switch Erasure(t) {
	case "Integer":
		return "int"
	case "Long":
		return "long"
	case "Double":
		return "double"
	case "Float":
		return "float"
	case "Boolean":
		return "boolean"
	}
	return strings.TrimSpace(t)
}

func (x *Index) fieldAccessType(expr syntax.NodeID) (string, bool) {
	t := x.tree
	obj := t.Field(expr, "object")
	name := t.Text(t.Field(expr, "field"))
	if objType, ok := x.DeclaredType(obj); ok {
		if name == "length" && IsArray(objType) {
			return "int", true
		}
		return x.fieldOf(objType, name)
	}
	// Type.staticField
	if _, ok := x.Type(t.Text(obj)); ok {
		return x.fieldOf(t.Text(obj), name)
	}
	return "", false
}

func (x *Index) fieldOf(typ, name string) (string, bool) {
	seen := map[string]bool{}
	var find func(string) (string, bool)
	find = func(typ string) (string, bool) {
		if seen[Erasure(typ)] {
			return "", false
		}
		seen[Erasure(typ)] = true
		ti, ok := x.Type(typ)
		if !ok {
			return "", false
		}
		args := TypeArgs(typ)
		if ft, ok := ti.Fields[key(name)]; ok {
			return Substitute(ft, ti.TypeParams, args), true
		}
		for _, s := range ti.Supers {
			if ft, ok := find(Substitute(s, ti.TypeParams, args)); ok {
				return ft, true
			}
		}
		return "", false
	}
	return find(typ)
}

// methodsOf lists the methods visible on typ, most derived first, with the
// type's arguments substituted through the supertype chain.
func (x *Index) methodsOf(typ string) []Method {
	var out []Method
	seen := map[string]bool{}
	var collect func(string)
	collect = func(typ string) {
		if seen[Erasure(typ)] {
			return
		}
		seen[Erasure(typ)] = true
		ti, ok := x.Type(typ)
		if !ok {
			return
		}
		args := TypeArgs(typ)
		sub := func(s string) string { return Substitute(s, ti.TypeParams, args) }
		for _, m := range ti.Methods {
			m.Params = append([]Param(nil), m.Params...)
			for i := range m.Params {
				m.Params[i].Type = sub(m.Params[i].Type)
			}
			m.Result = sub(m.Result)
			if len(m.Throws) > 0 {
				thrown := make([]string, len(m.Throws))
				for i, e := range m.Throws {
					thrown[i] = sub(e)
				}
				m.Throws = thrown
			}
			out = append(out, m)
		}
		for _, s := range ti.Supers {
			collect(sub(s))
		}
	}
	collect(typ)
	if !seen["Object"] && !IsPrimitive(typ) {
		collect("Object")
	}
	return out
}

// typeMethods lists the methods of a unit type, including anonymous class
// bodies whose own declarations are not reachable by name.
func (x *Index) typeMethods(ti *TypeInfo) []Method {
	if _, ok := x.anon[ti.Decl]; !ok {
		return x.methodsOf(ti.Name)
	}
	out := append([]Method(nil), ti.Methods...)
	return append(out, x.methodsOf(ti.Name)...)
}

// Methods returns the methods visible on typ.
func (x *Index) Methods(typ string) []Method {
	return x.methodsOf(typ)
}

func isObjectMethod(m Method) bool {
	switch m.Name {
	case "equals":
		return m.Arity() == 1
	case "hashCode", "toString":
		return m.Arity() == 0
	}
	return false
}

// FunctionalMethod returns the single abstract method of typ.
func (x *Index) FunctionalMethod(typ string) (Method, bool) {
	ti, ok := x.Type(typ)
	if !ok || ti.Kind != TypeInterface {
		return Method{}, false
	}
	var found []Method
	seen := map[string]bool{}
	for _, m := range x.methodsOf(typ) {
		sig := m.Name + "/" + strconv.Itoa(m.Arity())
		if seen[sig] || isObjectMethod(m) {
			continue
		}
		seen[sig] = true
		if m.Abstract {
			found = append(found, m)
		}
	}
	if len(found) != 1 {
		return Method{}, false
	}
	return found[0], true
}

func argCount(t *syntax.Tree, call syntax.NodeID) int {
	return len(t.Named(t.Field(call, "arguments")))
}

func arityMatches(m Method, n int) bool {
	if m.Varargs {
		return n >= m.Arity()-1
	}
	return m.Arity() == n
}

// Candidates returns the methods a call, object creation or method
// reference may bind to.
func (x *Index) Candidates(call syntax.NodeID) []Method {
	t := x.tree
	switch t.Kind(call) {
	case syntax.KindCall:
		name := t.Text(t.Field(call, "name"))
		n := argCount(t, call)
		obj := t.Field(call, "object")
		pick := func(ms []Method, staticOnly bool) []Method {
			var out []Method
			for _, m := range ms {
				if m.Name == name && arityMatches(m, n) && (!staticOnly || m.Static) {
					out = append(out, m)
				}
			}
			return out
		}
		if obj == syntax.NoNode {
			// innermost enclosing type with a matching method wins
			for _, ti := range x.enclosingTypes(call) {
				if ms := pick(x.typeMethods(ti), false); len(ms) > 0 {
					return ms
				}
			}
			return nil
		}
		switch t.Kind(obj) {
		case syntax.KindThis:
			if ti, ok := x.EnclosingType(call); ok {
				return pick(x.typeMethods(ti), false)
			}
			return nil
		case syntax.KindSuper:
			if ti, ok := x.EnclosingType(call); ok {
				var out []Method
				for _, s := range ti.Supers {
					out = append(out, pick(x.methodsOf(s), false)...)
				}
				return out
			}
			return nil
		}
		if typ, ok := x.DeclaredType(obj); ok {
			return pick(x.methodsOf(typ), false)
		}
		if _, ok := x.Type(t.Text(obj)); ok {
			return pick(x.methodsOf(t.Text(obj)), true)
		}
		return nil

	case syntax.KindNew:
		typ := t.Text(t.Field(call, "type"))
		ti, ok := x.Type(typ)
		if !ok {
			return nil
		}
		n := argCount(t, call)
		var out []Method
		declared := false
		for _, m := range ti.Methods {
			if !m.IsConstructor() {
				continue
			}
			declared = true
			if arityMatches(m, n) {
				out = append(out, m)
			}
		}
		if !declared && n == 0 {
			out = append(out, Method{Owner: ti.Name, Name: "<init>", Result: ti.Name})
		}
		return out

	case syntax.KindMethodRef:
		named := t.Named(call)
		if len(named) == 0 {
			return nil
		}
		recv := named[0]
		name := "new"
		if len(named) > 1 {
			name = t.Text(named[len(named)-1])
		}
		typ, ok := x.DeclaredType(recv)
		if !ok {
			typ = t.Text(recv)
		}
		var out []Method
		for _, m := range x.methodsOf(typ) {
			if m.Name == name || (name == "new" && m.IsConstructor()) {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Thrown returns the declared exceptions of the best candidate for call.
func (x *Index) Thrown(call syntax.NodeID) ([]string, bool) {
	m, ok := x.Callee(call)
	if !ok {
		return nil, false
	}
	return m.Throws, true
}

// Callee picks the candidate whose parameter types best match the argument
// types. Ties go to the first candidate.
func (x *Index) Callee(call syntax.NodeID) (Method, bool) {
	cands := x.Candidates(call)
	if len(cands) == 0 {
		return Method{}, false
	}
	if len(cands) == 1 || x.tree.Kind(call) == syntax.KindMethodRef {
		return cands[0], true
	}
	args := x.tree.Named(x.tree.Field(call, "arguments"))
	best, bestScore := 0, -1
	for i, m := range cands {
		score := 0
		for j, a := range args {
			at, ok := x.DeclaredType(a)
			if !ok || j >= len(m.Params) {
				continue
			}
			pt := m.Params[j].Type
			switch {
			case Erasure(at) == Erasure(pt):
				score += 2
			case x.IsSubtype(Boxed(at), Boxed(pt)):
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return cands[best], true
}

func (x *Index) callResult(call syntax.NodeID) (string, bool) {
	m, ok := x.Callee(call)
	if !ok || m.Result == "" {
		return "", false
	}
	res := m.Result
	if len(m.TypeParams) > 0 {
		// infer method type parameters from directly matching arguments
		args := x.tree.Named(x.tree.Field(call, "arguments"))
		inferred := make([]string, len(m.TypeParams))
		for i, tp := range m.TypeParams {
			inferred[i] = "Object"
			for j, p := range m.Params {
				if strings.TrimSpace(p.Type) == tp && j < len(args) {
					if at, ok := x.DeclaredType(args[j]); ok {
						inferred[i] = Boxed(at)
					}
				}
			}
		}
		res = Substitute(res, m.TypeParams, inferred)
	}
	return res, true
}

// TargetType returns the type the context of expr expects.
func (x *Index) TargetType(expr syntax.NodeID) (string, bool) {
	t := x.tree
	child := expr
	parent := t.Parent(expr)
	for t.Kind(parent) == syntax.KindParens {
		child, parent = parent, t.Parent(parent)
	}
	pn := t.Node(parent)
	if pn == nil {
		return "", false
	}
	field := t.Node(child).Field
	switch pn.Kind {
	case syntax.KindDeclarator:
		if field != "value" {
			return "", false
		}
		typ := t.Text(t.Field(pn.Parent, "type"))
		if typ == "" || typ == "var" {
			return "", false
		}
		return typ, true
	case syntax.KindArgs:
		return x.argumentTarget(pn.Parent, child, expr)
	case syntax.KindAssign:
		if field != "right" {
			return "", false
		}
		return x.DeclaredType(t.Field(parent, "left"))
	case syntax.KindReturn:
		return x.returnTarget(parent)
	case syntax.KindCast:
		return t.Text(t.Field(parent, "type")), true
	case syntax.KindTernary:
		if field == "condition" {
			return "boolean", true
		}
		return x.TargetType(parent)
	case syntax.KindLambda:
		if field != "body" {
			return "", false
		}
		fm, ok := x.lambdaMethod(parent)
		if !ok {
			return "", false
		}
		return fm.Result, true
	}
	return "", false
}

func (x *Index) lambdaMethod(lambda syntax.NodeID) (Method, bool) {
	target, ok := x.TargetType(lambda)
	if !ok {
		return Method{}, false
	}
	return x.FunctionalMethod(target)
}

func (x *Index) returnTarget(ret syntax.NodeID) (string, bool) {
	t := x.tree
	owner := t.Ancestor(ret, syntax.KindMethod, syntax.KindLambda, syntax.KindConstructor)
	switch t.Kind(owner) {
	case syntax.KindMethod:
		typ := t.Text(t.Field(owner, "type"))
		return typ, typ != "" && typ != "void"
	case syntax.KindLambda:
		fm, ok := x.lambdaMethod(owner)
		if !ok || fm.Result == "void" {
			return "", false
		}
		return fm.Result, true
	}
	return "", false
}

func (x *Index) argumentTarget(call, arg, expr syntax.NodeID) (string, bool) {
	t := x.tree
	idx := -1
	for i, a := range t.Named(t.Field(call, "arguments")) {
		if a == arg {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}
	lambdaArity := -1
	if t.Kind(expr) == syntax.KindLambda {
		lambdaArity = lambdaParamCount(t, expr)
	}
	var found string
	for _, m := range x.Candidates(call) {
		var pt string
		switch {
		case idx < m.Arity()-1 || (idx == m.Arity()-1 && !m.Varargs):
			pt = m.Params[idx].Type
		case m.Varargs && m.Arity() > 0:
			pt = ElementType(m.Params[m.Arity()-1].Type)
		default:
			continue
		}
		if lambdaArity >= 0 {
			fm, ok := x.FunctionalMethod(pt)
			if !ok || fm.Arity() != lambdaArity {
				continue
			}
		}
		if found != "" && Erasure(found) != Erasure(pt) {
			return "", false
		}
		if found == "" {
			found = pt
		}
	}
	return found, found != ""
}

func lambdaParamCount(t *syntax.Tree, lambda syntax.NodeID) int {
	params := t.Field(lambda, "parameters")
	if t.Kind(params) == syntax.KindIdent {
		return 1
	}
	n := 0
	for _, p := range t.Named(params) {
		if k := t.Kind(p); k == syntax.KindIdent || k == syntax.KindParam {
			n++
		}
	}
	return n
}

// IsSubtype reports whether sub is equal to or a subtype of super by
// declared supertypes. Object is a supertype of every reference type.
func (x *Index) IsSubtype(sub, super string) bool {
	s, p := Erasure(sub), Erasure(super)
	if s == p {
		return true
	}
	if p == "Object" {
		return !IsPrimitive(sub)
	}
	return x.inherits(s, p, map[string]bool{})
}

func (x *Index) inherits(sub, super string, seen map[string]bool) bool {
	if sub == super {
		return true
	}
	if seen[sub] {
		return false
	}
	seen[sub] = true
	ti, ok := x.Type(sub)
	if !ok {
		return false
	}
	for _, s := range ti.Supers {
		if x.inherits(Erasure(s), super, seen) {
			return true
		}
	}
	return false
}

// IsChecked reports whether typ is a checked exception. Types whose
// hierarchy cannot be followed up to Throwable are treated as unchecked.
func (x *Index) IsChecked(typ string) bool {
	e := Erasure(typ)
	if !x.inherits(e, "Throwable", map[string]bool{}) {
		return false
	}
	return !x.inherits(e, "RuntimeException", map[string]bool{}) &&
		!x.inherits(e, "Error", map[string]bool{})
}

func firstNamed(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	if named := t.Named(id); len(named) > 0 {
		return named[0]
	}
	return syntax.NoNode
}
