package binding

import (
	"refit/internal/syntax"
)

type scope struct {
	parent *scope
	node   syntax.NodeID
	names  map[string]*Symbol
}

func (s *scope) lookup(name string) (*Symbol, bool) {
	k := key(name)
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.names[k]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (x *Index) push(parent *scope, node syntax.NodeID) *scope {
	return &scope{parent: parent, node: node, names: make(map[string]*Symbol)}
}

func (x *Index) declare(sc *scope, sym *Symbol) {
	sym.Scope = sc.node
	sc.names[key(sym.Name)] = sym
	if sym.Decl != syntax.NoNode {
		x.decls[sym.Decl] = sym
	}
	x.symbols = append(x.symbols, sym)
}

// resolveScopes binds every identifier reference to its declaration.
func (x *Index) resolveScopes() {
	x.walk(x.tree.Root, x.push(nil, x.tree.Root))
}

func (x *Index) walk(id syntax.NodeID, sc *scope) {
	t := x.tree
	n := t.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindClass, syntax.KindInterface, syntax.KindEnum, syntax.KindRecord:
		inner := x.push(sc, id)
		x.declareMembers(inner, id)
		x.walkChildren(id, inner)
		return

	case syntax.KindClassBody:
		if t.Kind(n.Parent) == syntax.KindNew {
			// anonymous class: its own fields shadow the outer scope
			inner := x.push(sc, id)
			for _, m := range t.ChildrenOf(id, syntax.KindField) {
				x.declareField(inner, m, "")
			}
			x.walkChildren(id, inner)
			return
		}

	case syntax.KindMethod, syntax.KindConstructor:
		inner := x.push(sc, id)
		for _, p := range t.ChildrenOf(t.Field(id, "parameters"), syntax.KindParam) {
			name, typ := ParamNameType(t, p)
			x.declare(inner, &Symbol{Name: name, Kind: SymParam, Type: typ, Decl: x.paramNameNode(p), Stmt: p, Final: HasModifier(t, p, "final")})
		}
		x.walkChildren(id, inner)
		return

	case syntax.KindLambda:
		inner := x.push(sc, id)
		params := t.Field(id, "parameters")
		switch t.Kind(params) {
		case syntax.KindIdent:
			x.declare(inner, &Symbol{Name: t.Text(params), Kind: SymLambdaParam, Decl: params, Stmt: params})
		case syntax.KindInferredParams:
			for _, p := range t.ChildrenOf(params, syntax.KindIdent) {
				x.declare(inner, &Symbol{Name: t.Text(p), Kind: SymLambdaParam, Decl: p, Stmt: p})
			}
		case syntax.KindParams:
			for _, p := range t.ChildrenOf(params, syntax.KindParam) {
				name, typ := ParamNameType(t, p)
				x.declare(inner, &Symbol{Name: name, Kind: SymLambdaParam, Type: typ, Decl: x.paramNameNode(p), Stmt: p, Final: HasModifier(t, p, "final")})
			}
		}
		x.walk(t.Field(id, "body"), inner)
		return

	case syntax.KindBlock, syntax.KindSwitchBlock, syntax.KindFor:
		x.walkChildren(id, x.push(sc, id))
		return

	case syntax.KindLocalVar:
		typ := t.Text(t.Field(id, "type"))
		final := HasModifier(t, id, "final")
		for _, d := range t.Fields(id, "declarator") {
			x.walk(t.Field(d, "value"), sc)
			name := t.Field(d, "name")
			x.declare(sc, &Symbol{Name: t.Text(name), Kind: SymLocal, Type: typ, Decl: name, Stmt: id, Final: final})
		}
		return

	case syntax.KindForEach:
		x.walk(t.Field(id, "value"), sc)
		inner := x.push(sc, id)
		name := t.Field(id, "name")
		x.declare(inner, &Symbol{Name: t.Text(name), Kind: SymLocal, Type: t.Text(t.Field(id, "type")), Decl: name, Stmt: id, Final: HasModifier(t, id, "final")})
		x.walk(t.Field(id, "body"), inner)
		return

	case syntax.KindCatch:
		inner := x.push(sc, id)
		param := t.FirstOf(id, syntax.KindCatchParam)
		name := t.Field(param, "name")
		x.declare(inner, &Symbol{Name: t.Text(name), Kind: SymCatchParam, Type: t.Text(t.FirstOf(param, syntax.KindCatchType)), Decl: name, Stmt: param, Final: HasModifier(t, param, "final")})
		x.walk(t.Field(id, "body"), inner)
		return

	case syntax.KindTry:
		if res := t.Field(id, "resources"); res != syntax.NoNode {
			inner := x.push(sc, id)
			for _, r := range t.Named(res) {
				x.walk(t.Field(r, "value"), inner)
				if name := t.Field(r, "name"); name != syntax.NoNode {
					x.declare(inner, &Symbol{Name: t.Text(name), Kind: SymResource, Type: t.Text(t.Field(r, "type")), Decl: name, Stmt: r, Final: true})
				} else {
					x.walk(r, inner)
				}
			}
			for _, c := range n.Children {
				if c != res {
					x.walk(c, inner)
				}
			}
			return
		}

	case syntax.KindIdent:
		if IsReference(t, id) {
			if sym, ok := sc.lookup(t.Text(id)); ok {
				x.refs[id] = sym
			}
		}
		return
	}
	x.walkChildren(id, sc)
}

func (x *Index) walkChildren(id syntax.NodeID, sc *scope) {
	for _, c := range x.tree.Node(id).Children {
		x.walk(c, sc)
	}
}

func (x *Index) paramNameNode(p syntax.NodeID) syntax.NodeID {
	t := x.tree
	if name := t.Field(p, "name"); name != syntax.NoNode {
		return name
	}
	return t.Field(t.FirstOf(p, syntax.KindDeclarator), "name")
}

// declareMembers puts the fields of a type and of its unit supertypes in scope.
func (x *Index) declareMembers(sc *scope, decl syntax.NodeID) {
	t := x.tree
	ti, ok := x.byDecl[decl]
	if !ok {
		return
	}
	seen := map[string]bool{}
	var inherit func(name string)
	inherit = func(name string) {
		if seen[Erasure(name)] {
			return
		}
		seen[Erasure(name)] = true
		sup, ok := x.types[Erasure(name)]
		if !ok || sup == ti {
			return
		}
		for fname, ftyp := range sup.Fields {
			if _, shadowed := sc.names[fname]; !shadowed {
				sc.names[fname] = &Symbol{Name: fname, Kind: SymField, Type: ftyp, Owner: sup.Name}
			}
		}
		for _, s := range sup.Supers {
			inherit(s)
		}
	}
	for _, s := range ti.Supers {
		inherit(s)
	}

	switch t.Kind(decl) {
	case syntax.KindRecord:
		for _, p := range t.ChildrenOf(t.Field(decl, "parameters"), syntax.KindParam) {
			name, typ := ParamNameType(t, p)
			x.declare(sc, &Symbol{Name: name, Kind: SymField, Type: typ, Decl: x.paramNameNode(p), Stmt: p, Final: true, Owner: ti.Name})
		}
	case syntax.KindEnum:
		body := t.Field(decl, "body")
		for _, c := range t.ChildrenOf(body, syntax.KindEnumConstant) {
			name := t.Field(c, "name")
			x.declare(sc, &Symbol{Name: t.Text(name), Kind: SymEnumConstant, Type: ti.Name, Decl: name, Stmt: c, Final: true, Owner: ti.Name})
		}
		for _, inner := range t.ChildrenOf(body, syntax.KindClassBody) {
			for _, f := range t.ChildrenOf(inner, syntax.KindField) {
				x.declareField(sc, f, ti.Name)
			}
		}
	}
	for _, f := range t.ChildrenOf(t.Field(decl, "body"), syntax.KindField) {
		x.declareField(sc, f, ti.Name)
	}
}

func (x *Index) declareField(sc *scope, field syntax.NodeID, owner string) {
	t := x.tree
	typ := t.Text(t.Field(field, "type"))
	final := HasModifier(t, field, "final")
	for _, d := range t.Fields(field, "declarator") {
		name := t.Field(d, "name")
		x.declare(sc, &Symbol{Name: t.Text(name), Kind: SymField, Type: typ, Decl: name, Stmt: field, Final: final, Owner: owner})
	}
}

// IsReference reports whether an identifier names a variable use rather than
// a declaration, member name or label.
func IsReference(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	if n == nil || n.Kind != syntax.KindIdent {
		return false
	}
	parent := t.Node(n.Parent)
	if parent == nil {
		return false
	}
	switch n.Field {
	case "name":
		switch parent.Kind {
		case syntax.KindCall, syntax.KindDeclarator, syntax.KindParam, syntax.KindCatchParam,
			syntax.KindForEach, syntax.KindMethod, syntax.KindConstructor, syntax.KindEnumConstant,
			syntax.KindClass, syntax.KindInterface, syntax.KindEnum, syntax.KindRecord, syntax.KindAnnotation:
			return false
		}
		if parent.Type == "resource" {
			return false
		}
	case "field":
		return parent.Kind != syntax.KindFieldAccess
	case "parameters":
		return false
	}
	switch parent.Kind {
	case syntax.KindInferredParams, syntax.KindBreak, syntax.KindContinue, syntax.KindAnnotation:
		return false
	case syntax.KindMethodRef:
		// the member name after '::'
		return t.Named(n.Parent)[0] == id
	}
	if parent.Type == "labeled_statement" {
		return false
	}
	return true
}
