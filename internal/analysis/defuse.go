package analysis

import (
	"github.com/bits-and-blooms/bitset"

	"refit/internal/binding"
	"refit/internal/syntax"
)

// DefUse records which local symbols under root are assigned after their
// declaration. One pass fills both sets.
type DefUse struct {
	slots      map[*binding.Symbol]uint
	assigned   *bitset.BitSet
	reassigned *bitset.BitSet
}

// NewDefUse scans root, usually a method body or the declaring scope of a
// variable.
func NewDefUse(tree *syntax.Tree, res binding.Resolver, root syntax.NodeID) *DefUse {
	du := &DefUse{
		slots:      make(map[*binding.Symbol]uint),
		assigned:   bitset.New(0),
		reassigned: bitset.New(0),
	}
	tree.Walk(root, func(id syntax.NodeID) bool {
		switch tree.Kind(id) {
		case syntax.KindAssign:
			target := stripParens(tree, tree.Field(id, "left"))
			sym, ok := res.Symbol(target)
			if !ok || sym.IsField() || tree.Kind(target) != syntax.KindIdent {
				return true
			}
			k := du.slot(sym)
			plain := tree.Text(tree.Field(id, "operator")) == "="
			if !plain || du.assigned.Test(k) || initialized(tree, sym) || inLoopBelow(tree, id, sym.Scope) {
				du.reassigned.Set(k)
			}
			du.assigned.Set(k)
		case syntax.KindUpdate:
			target := stripParens(tree, firstNamed(tree, id))
			if sym, ok := res.Symbol(target); ok && !sym.IsField() {
				du.reassigned.Set(du.slot(sym))
			}
		}
		return true
	})
	return du
}

func (du *DefUse) slot(sym *binding.Symbol) uint {
	k, ok := du.slots[sym]
	if !ok {
		k = uint(len(du.slots))
		du.slots[sym] = k
	}
	return k
}

// Assigned reports whether sym is the target of any assignment.
func (du *DefUse) Assigned(sym *binding.Symbol) bool {
	k, ok := du.slots[sym]
	return ok && du.assigned.Test(k)
}

// Reassigned reports whether sym is written after it got its value.
func (du *DefUse) Reassigned(sym *binding.Symbol) bool {
	k, ok := du.slots[sym]
	return ok && du.reassigned.Test(k)
}

// EffectivelyFinal reports whether sym is final or never reassigned.
func (du *DefUse) EffectivelyFinal(sym *binding.Symbol) bool {
	if sym.Final {
		return true
	}
	if sym.IsField() {
		return false
	}
	return !du.Reassigned(sym)
}

// EffectivelyFinal reports whether the variable declared at decl is never
// reassigned in its scope.
func EffectivelyFinal(tree *syntax.Tree, res binding.Resolver, decl syntax.NodeID) bool {
	sym, ok := res.Symbol(decl)
	if !ok {
		return false
	}
	return NewDefUse(tree, res, sym.Scope).EffectivelyFinal(sym)
}

// initialized reports whether sym already has a value at its declaration.
func initialized(t *syntax.Tree, sym *binding.Symbol) bool {
	if sym.Kind != binding.SymLocal {
		return true
	}
	decl := t.Parent(sym.Decl)
	if t.Kind(decl) != syntax.KindDeclarator {
		return true
	}
	return t.Field(decl, "value") != syntax.NoNode
}

func inLoopBelow(t *syntax.Tree, id, scope syntax.NodeID) bool {
	for p := t.Parent(id); p != syntax.NoNode && p != scope; p = t.Parent(p) {
		switch t.Kind(p) {
		case syntax.KindFor, syntax.KindForEach, syntax.KindWhile, syntax.KindDo:
			return true
		}
	}
	return false
}

func stripParens(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	for t.Kind(id) == syntax.KindParens {
		id = firstNamed(t, id)
	}
	return id
}
