// Package analysis answers the scope questions rewrite rules ask before
// moving code across a lambda, anonymous class or block edge: which
// variables a fragment captures, whether they are effectively final, and
// which checked exceptions escape it.
package analysis

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"refit/internal/binding"
	"refit/internal/syntax"
)

// ErrUnresolvable is returned when an identifier in the analyzed fragment
// cannot be bound. Callers treat the location as not applicable.
var ErrUnresolvable = errors.New("analysis: unresolvable identifier")

// Captured is one variable referenced inside a fragment and declared outside
// its boundary.
type Captured struct {
	Name             string
	DeclaredType     string
	EffectivelyFinal bool
	FieldOrThis      bool
	Decl             syntax.NodeID
	Symbol           *binding.Symbol
	Refs             []syntax.NodeID
}

// CaptureSet lists captures in order of first reference.
type CaptureSet []Captured

// AllFinal reports whether every local capture is effectively final.
func (cs CaptureSet) AllFinal() bool {
	for _, c := range cs {
		if !c.FieldOrThis && !c.EffectivelyFinal {
			return false
		}
	}
	return true
}

// UsesThis reports whether the fragment refers to this or super unqualified.
func (cs CaptureSet) UsesThis() bool {
	for _, c := range cs {
		if c.Symbol == nil && c.FieldOrThis {
			return true
		}
	}
	return false
}

// Capture collects the variables referenced inside subtree and declared
// outside boundary.
func Capture(tree *syntax.Tree, res binding.Resolver, subtree, boundary syntax.NodeID) (CaptureSet, error) {
	var (
		out   CaptureSet
		index = map[*binding.Symbol]int{}
		flows = map[syntax.NodeID]*DefUse{}
		err   error
	)
	thisSeen := -1
	tree.Walk(subtree, func(id syntax.NodeID) bool {
		if err != nil {
			return false
		}
		switch tree.Kind(id) {
		case syntax.KindThis, syntax.KindSuper:
			if qualifiedThis(tree, id) {
				return false
			}
			if thisSeen < 0 {
				thisSeen = len(out)
				out = append(out, Captured{Name: tree.Text(id), FieldOrThis: true})
			}
			out[thisSeen].Refs = append(out[thisSeen].Refs, id)
			return false
		case syntax.KindIdent:
		default:
			return true
		}
		if !binding.IsReference(tree, id) {
			return false
		}
		sym, ok := res.Symbol(id)
		if !ok {
			if looksLikeType(tree, id, res) {
				return false
			}
			err = ErrUnresolvable
			return false
		}
		if sym.Decl != syntax.NoNode && tree.IsAncestor(boundary, sym.Decl) {
			return false
		}
		if i, seen := index[sym]; seen {
			out[i].Refs = append(out[i].Refs, id)
			return false
		}
		c := Captured{
			Name:         sym.Name,
			DeclaredType: sym.Type,
			FieldOrThis:  sym.IsField(),
			Decl:         sym.Decl,
			Symbol:       sym,
			Refs:         []syntax.NodeID{id},
		}
		if dt, ok := res.DeclaredType(id); ok {
			c.DeclaredType = dt
		}
		if c.FieldOrThis {
			c.EffectivelyFinal = sym.Final
		} else {
			du, ok := flows[sym.Scope]
			if !ok {
				du = NewDefUse(tree, res, sym.Scope)
				flows[sym.Scope] = du
			}
			c.EffectivelyFinal = du.EffectivelyFinal(sym)
		}
		index[sym] = len(out)
		out = append(out, c)
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// qualifiedThis reports whether id is the right-hand side of Outer.this.
func qualifiedThis(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	return t.Kind(n.Parent) == syntax.KindFieldAccess && n.Field == "field"
}

// looksLikeType accepts unresolved identifiers that name a type used as a
// qualifier, such as System in System.out.
func looksLikeType(t *syntax.Tree, id syntax.NodeID, res binding.Resolver) bool {
	name := t.Text(id)
	if _, ok := res.Type(name); ok {
		return true
	}
	n := t.Node(id)
	if n.Field != "object" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
