package binding

import (
	"strings"

	"refit/internal/syntax"
)

// Index implements Resolver for a single syntax tree. It is built eagerly and
// read-only afterwards, so concurrent rules may share it.
type Index struct {
	tree    *syntax.Tree
	catalog *Catalog

	types   map[string]*TypeInfo
	byDecl  map[syntax.NodeID]*TypeInfo
	anon    map[syntax.NodeID]*TypeInfo // anonymous class bodies
	refs    map[syntax.NodeID]*Symbol
	decls   map[syntax.NodeID]*Symbol
	symbols []*Symbol
}

// NewIndex indexes tree. cat may be nil, in which case only types declared in
// the unit are known.
func NewIndex(tree *syntax.Tree, cat *Catalog) *Index {
	x := &Index{
		tree:    tree,
		catalog: cat,
		types:   make(map[string]*TypeInfo),
		byDecl:  make(map[syntax.NodeID]*TypeInfo),
		anon:    make(map[syntax.NodeID]*TypeInfo),
		refs:    make(map[syntax.NodeID]*Symbol),
		decls:   make(map[syntax.NodeID]*Symbol),
	}
	x.collectTypes()
	x.resolveScopes()
	return x
}

// Tree returns the indexed tree.
func (x *Index) Tree() *syntax.Tree {
	return x.tree
}

// Symbols returns every declared symbol in declaration order.
func (x *Index) Symbols() []*Symbol {
	return x.symbols
}

// Type looks up a unit type first, then the catalog.
func (x *Index) Type(name string) (*TypeInfo, bool) {
	if ti, ok := x.types[Erasure(name)]; ok {
		return ti, true
	}
	return x.catalog.Lookup(name)
}

// TypeOf returns the type declared by decl.
func (x *Index) TypeOf(decl syntax.NodeID) (*TypeInfo, bool) {
	ti, ok := x.byDecl[decl]
	return ti, ok
}

// EnclosingType returns the nearest type declaration or anonymous class body
// around id.
func (x *Index) EnclosingType(id syntax.NodeID) (*TypeInfo, bool) {
	for p := x.tree.Parent(id); p != syntax.NoNode; p = x.tree.Parent(p) {
		if ti, ok := x.anon[p]; ok {
			return ti, true
		}
		if ti, ok := x.byDecl[p]; ok {
			return ti, true
		}
	}
	return nil, false
}

// enclosingTypes lists the types around id, innermost first.
func (x *Index) enclosingTypes(id syntax.NodeID) []*TypeInfo {
	var out []*TypeInfo
	for p := x.tree.Parent(id); p != syntax.NoNode; p = x.tree.Parent(p) {
		if ti, ok := x.anon[p]; ok {
			out = append(out, ti)
		} else if ti, ok := x.byDecl[p]; ok {
			out = append(out, ti)
		}
	}
	return out
}

func (x *Index) collectTypes() {
	t := x.tree
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		k := t.Kind(id)
		if k == syntax.KindClassBody && t.Kind(t.Parent(id)) == syntax.KindNew {
			base := t.Text(t.Field(t.Parent(id), "type"))
			ti := &TypeInfo{Name: base, Supers: []string{base}, Fields: make(map[string]string), Decl: id}
			x.collectMembers(ti, id)
			x.anon[id] = ti
			return true
		}
		if !k.IsTypeDecl() {
			return true
		}
		ti := &TypeInfo{
			Name:   t.Text(t.Field(id, "name")),
			Fields: make(map[string]string),
			Decl:   id,
		}
		switch k {
		case syntax.KindInterface:
			ti.Kind = TypeInterface
		case syntax.KindEnum:
			ti.Kind = TypeEnum
		case syntax.KindRecord:
			ti.Kind = TypeRecord
		default:
			ti.Kind = TypeClass
		}
		ti.TypeParams = TypeParamNames(t, id)
		for _, c := range t.Node(id).Children {
			switch t.Node(c).Type {
			case "superclass", "super_interfaces", "extends_interfaces":
				ti.Supers = append(ti.Supers, typeList(t, c)...)
			}
		}
		if k == syntax.KindRecord {
			for _, p := range t.ChildrenOf(t.Field(id, "parameters"), syntax.KindParam) {
				name, typ := t.Text(t.Field(p, "name")), t.Text(t.Field(p, "type"))
				ti.Fields[key(name)] = typ
				ti.Methods = append(ti.Methods, Method{Owner: ti.Name, Name: name, Result: typ, Decl: p})
			}
		}
		x.collectMembers(ti, t.Field(id, "body"))
		x.types[key(ti.Name)] = ti
		x.byDecl[id] = ti
		return true
	})
}

func (x *Index) collectMembers(ti *TypeInfo, body syntax.NodeID) {
	t := x.tree
	for _, m := range t.Named(body) {
		switch t.Kind(m) {
		case syntax.KindMethod, syntax.KindConstructor:
			ti.Methods = append(ti.Methods, MethodOf(t, ti, m))
		case syntax.KindField:
			typ := t.Text(t.Field(m, "type"))
			for _, d := range t.Fields(m, "declarator") {
				ti.Fields[key(t.Text(t.Field(d, "name")))] = typ
			}
		case syntax.KindEnumConstant:
			ti.Constants = append(ti.Constants, t.Text(t.Field(m, "name")))
		case syntax.KindClassBody:
			// enum_body_declarations
			x.collectMembers(ti, m)
		}
	}
}

// MethodOf describes a method or constructor declaration node.
func MethodOf(t *syntax.Tree, owner *TypeInfo, decl syntax.NodeID) Method {
	m := Method{
		Owner:      owner.Name,
		Name:       t.Text(t.Field(decl, "name")),
		TypeParams: TypeParamNames(t, decl),
		Result:     t.Text(t.Field(decl, "type")),
		Decl:       decl,
	}
	if t.Kind(decl) == syntax.KindConstructor {
		m.Name = "<init>"
		m.Result = owner.Name
	}
	for _, p := range t.Named(t.Field(decl, "parameters")) {
		if t.Kind(p) != syntax.KindParam {
			continue
		}
		name, typ := ParamNameType(t, p)
		if t.Node(p).Type == "spread_parameter" {
			m.Varargs = true
			typ += "..."
		}
		m.Params = append(m.Params, Param{Name: name, Type: typ})
	}
	m.Throws = ThrowsOf(t, decl)
	mods := t.FirstOf(decl, syntax.KindModifiers)
	m.Static = t.HasToken(mods, "static")
	switch {
	case t.HasToken(mods, "abstract"):
		m.Abstract = true
	case owner.Kind == TypeInterface:
		m.Abstract = t.Field(decl, "body") == syntax.NoNode &&
			!t.HasToken(mods, "default") && !m.Static && !t.HasToken(mods, "private")
	}
	return m
}

// ParamNameType returns the name and declared type of a formal parameter.
func ParamNameType(t *syntax.Tree, p syntax.NodeID) (string, string) {
	if name := t.Field(p, "name"); name != syntax.NoNode {
		return t.Text(name), t.Text(t.Field(p, "type"))
	}
	// spread_parameter: type '...' variable_declarator
	var typ, name string
	for _, c := range t.Named(p) {
		switch t.Kind(c) {
		case syntax.KindType:
			typ = t.Text(c)
		case syntax.KindDeclarator:
			name = t.Text(t.Field(c, "name"))
		}
	}
	return name, typ
}

// ThrowsOf returns the exception types listed in decl's throws clause.
func ThrowsOf(t *syntax.Tree, decl syntax.NodeID) []string {
	var out []string
	for _, c := range t.Named(t.FirstOf(decl, syntax.KindThrows)) {
		out = append(out, t.Text(c))
	}
	return out
}

// TypeParamNames returns the names of the type parameters declared on decl.
func TypeParamNames(t *syntax.Tree, decl syntax.NodeID) []string {
	tp := t.FirstOf(decl, syntax.KindTypeParams)
	if tp == syntax.NoNode {
		tp = t.Field(decl, "type_parameters")
	}
	var out []string
	for _, p := range t.Named(tp) {
		named := t.Named(p)
		for _, c := range named {
			if t.Kind(c) == syntax.KindType || t.Kind(c) == syntax.KindIdent {
				out = append(out, t.Text(c))
				break
			}
		}
	}
	return out
}

func typeList(t *syntax.Tree, id syntax.NodeID) []string {
	var out []string
	for _, c := range t.Named(id) {
		if t.Kind(c) == syntax.KindType {
			out = append(out, strings.TrimSpace(t.Text(c)))
			continue
		}
		out = append(out, typeList(t, c)...)
	}
	return out
}

// HasModifier reports whether decl carries the given modifier keyword.
func HasModifier(t *syntax.Tree, decl syntax.NodeID, mod string) bool {
	return t.HasToken(t.FirstOf(decl, syntax.KindModifiers), mod)
}
