package analysis

import (
	"refit/internal/binding"
	"refit/internal/syntax"
)

// ExceptionSet is an ordered set of distinct checked exception types.
type ExceptionSet struct {
	res   binding.Resolver
	types []string
}

// NewExceptionSet returns an empty set that answers subtype questions through res.
func NewExceptionSet(res binding.Resolver, types ...string) ExceptionSet {
	s := ExceptionSet{res: res}
	for _, t := range types {
		s.Add(t)
	}
	return s
}

// Add appends t unless an identical type is already present.
func (s *ExceptionSet) Add(t string) {
	for _, have := range s.types {
		if binding.Erasure(have) == binding.Erasure(t) {
			return
		}
	}
	s.types = append(s.types, t)
}

// Types returns the members in first-seen order.
func (s ExceptionSet) Types() []string {
	return append([]string(nil), s.types...)
}

func (s ExceptionSet) Len() int    { return len(s.types) }
func (s ExceptionSet) Empty() bool { return len(s.types) == 0 }

// Covers reports whether some member is t or a supertype of t.
func (s ExceptionSet) Covers(t string) bool {
	for _, have := range s.types {
		if s.res.IsSubtype(t, have) {
			return true
		}
	}
	return false
}

// Minus removes the members covered by any of caught.
func (s ExceptionSet) Minus(caught []string) ExceptionSet {
	out := ExceptionSet{res: s.res}
	for _, t := range s.types {
		handled := false
		for _, c := range caught {
			if s.res.IsSubtype(t, c) {
				handled = true
				break
			}
		}
		if !handled {
			out.types = append(out.types, t)
		}
	}
	return out
}

// Union adds the members of o to s.
func (s *ExceptionSet) Union(o ExceptionSet) {
	for _, t := range o.types {
		s.Add(t)
	}
}

// SpecificFirst orders members so that subtypes precede their supertypes.
// Unrelated types keep first-seen order.
func (s ExceptionSet) SpecificFirst() []string {
	out := s.Types()
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			if !s.res.IsSubtype(out[j], out[j-1]) || binding.Erasure(out[j]) == binding.Erasure(out[j-1]) {
				break
			}
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Exceptions collects the checked exceptions that may escape subtree.
// Lambda bodies, anonymous class bodies and local type declarations are not
// entered: their exceptions never reach the enclosing code directly.
func Exceptions(tree *syntax.Tree, res binding.Resolver, subtree syntax.NodeID) ExceptionSet {
	set := NewExceptionSet(res)
	collectExceptions(tree, res, subtree, &set)
	return set
}

func collectExceptions(t *syntax.Tree, res binding.Resolver, id syntax.NodeID, set *ExceptionSet) {
	n := t.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindLambda, syntax.KindMethodRef, syntax.KindClass, syntax.KindInterface,
		syntax.KindEnum, syntax.KindRecord:
		return
	case syntax.KindClassBody:
		return
	case syntax.KindThrow:
		operand := firstNamed(t, id)
		var typ string
		if t.Kind(operand) == syntax.KindNew {
			typ = t.Text(t.Field(operand, "type"))
		} else if dt, ok := res.DeclaredType(operand); ok {
			typ = dt
		}
		if typ != "" && res.IsChecked(typ) {
			set.Add(typ)
		}
	case syntax.KindTry:
		collectTry(t, res, id, set)
		return
	case syntax.KindCall, syntax.KindNew:
		if thrown, ok := res.Thrown(id); ok {
			for _, e := range thrown {
				if res.IsChecked(e) {
					set.Add(e)
				}
			}
		}
	}
	for _, c := range n.Children {
		collectExceptions(t, res, c, set)
	}
}

func collectTry(t *syntax.Tree, res binding.Resolver, try syntax.NodeID, set *ExceptionSet) {
	body := NewExceptionSet(res)
	if rs := t.Field(try, "resources"); rs != syntax.NoNode {
		collectExceptions(t, res, rs, &body)
		for _, r := range t.Named(rs) {
			for _, e := range closeThrows(t, res, r) {
				if res.IsChecked(e) {
					body.Add(e)
				}
			}
		}
	}
	collectExceptions(t, res, t.Field(try, "body"), &body)
	var caught []string
	for _, c := range t.ChildrenOf(try, syntax.KindCatch) {
		caught = append(caught, CatchTypes(t, c)...)
	}
	set.Union(body.Minus(caught))
	for _, c := range t.ChildrenOf(try, syntax.KindCatch) {
		collectExceptions(t, res, t.Field(c, "body"), set)
	}
	if fin := t.FirstOf(try, syntax.KindFinally); fin != syntax.NoNode {
		collectExceptions(t, res, fin, set)
	}
}

// closeThrows returns what the implicit close() of a resource declares.
func closeThrows(t *syntax.Tree, res binding.Resolver, resource syntax.NodeID) []string {
	typ := t.Text(t.Field(resource, "type"))
	if typ == "" || typ == "var" {
		dt, ok := res.DeclaredType(t.Field(resource, "value"))
		if !ok {
			dt, ok = res.DeclaredType(resource)
		}
		if !ok {
			return nil
		}
		typ = dt
	}
	seen := map[string]bool{}
	queue := []string{typ}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[binding.Erasure(cur)] {
			continue
		}
		seen[binding.Erasure(cur)] = true
		ti, ok := res.Type(cur)
		if !ok {
			continue
		}
		for _, m := range ti.Methods {
			if m.Name == "close" && m.Arity() == 0 {
				return m.Throws
			}
		}
		queue = append(queue, ti.Supers...)
	}
	return nil
}

// CatchTypes returns the alternatives of a catch clause in source order.
func CatchTypes(t *syntax.Tree, catch syntax.NodeID) []string {
	ct := t.FirstOf(t.FirstOf(catch, syntax.KindCatchParam), syntax.KindCatchType)
	var out []string
	for _, c := range t.Named(ct) {
		out = append(out, t.Text(c))
	}
	return out
}

// Boundary is the construct where exception propagation out of a statement
// stops: a method or constructor, a lambda, or an initializer.
type Boundary struct {
	Node     syntax.NodeID
	Kind     syntax.Kind
	Declared []string // throws clause or the functional method's throws
}

// InLambda reports whether the boundary is a lambda body.
func (b Boundary) InLambda() bool {
	return b.Kind == syntax.KindLambda
}

// Unhandled returns the checked exceptions of node that no enclosing try
// catches and the boundary does not declare.
func Unhandled(tree *syntax.Tree, res binding.Resolver, node syntax.NodeID) (ExceptionSet, Boundary) {
	set := Exceptions(tree, res, node)
	cur := node
	for p := tree.Parent(node); p != syntax.NoNode; cur, p = p, tree.Parent(p) {
		switch tree.Kind(p) {
		case syntax.KindTry:
			field := tree.Node(cur).Field
			if field == "body" || field == "resources" {
				var caught []string
				for _, c := range tree.ChildrenOf(p, syntax.KindCatch) {
					caught = append(caught, CatchTypes(tree, c)...)
				}
				set = set.Minus(caught)
			}
		case syntax.KindLambda:
			b := Boundary{Node: p, Kind: syntax.KindLambda}
			if target, ok := res.TargetType(p); ok {
				if fm, ok := res.FunctionalMethod(target); ok {
					b.Declared = fm.Throws
				}
			}
			return set.Minus(b.Declared), b
		case syntax.KindMethod, syntax.KindConstructor:
			b := Boundary{Node: p, Kind: tree.Kind(p), Declared: binding.ThrowsOf(tree, p)}
			return set.Minus(b.Declared), b
		case syntax.KindClassBody, syntax.KindProgram:
			return set, Boundary{Node: p, Kind: tree.Kind(p)}
		}
	}
	return set, Boundary{}
}

func firstNamed(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	if named := t.Named(id); len(named) > 0 {
		return named[0]
	}
	return syntax.NoNode
}
