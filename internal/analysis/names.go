package analysis

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"refit/internal/binding"
	"refit/internal/syntax"
)

// UniqueName returns base, or base followed by the smallest number, such
// that the result clashes with no identifier in the member declaring at.
// Looking at every identifier is stricter than scoping rules need.
func UniqueName(tree *syntax.Tree, at syntax.NodeID, base string) string {
	region := tree.Ancestor(at, syntax.KindMethod, syntax.KindConstructor, syntax.KindClassBody)
	if region == syntax.NoNode {
		region = tree.Root
	}
	used := map[string]bool{}
	tree.Walk(region, func(id syntax.NodeID) bool {
		if tree.Kind(id) == syntax.KindIdent {
			used[tree.Text(id)] = true
		}
		return true
	})
	if !used[base] && !reserved[base] {
		return base
	}
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if !used[name] {
			return name
		}
	}
}

var reserved = map[string]bool{
	"int": true, "long": true, "char": true, "byte": true, "short": true,
	"float": true, "double": true, "boolean": true, "new": true, "class": true,
	"default": true, "case": true, "switch": true, "for": true, "if": true,
}

// ElementName derives a loop variable name from a collection expression:
// "names" -> "name", "entries" -> "entry", "getItems()" -> "item".
func ElementName(collection string) string {
	s := strings.TrimSpace(collection)
	if strings.HasSuffix(s, ")") {
		if i := strings.LastIndexByte(s, '('); i >= 0 {
			s = s[:i]
		}
	}
	if j := strings.LastIndexByte(s, '.'); j >= 0 {
		s = s[j+1:]
	}
	if rest, ok := strings.CutPrefix(s, "get"); ok && rest != "" && unicode.IsUpper([]rune(rest)[0]) {
		s = rest
	}
	if s == "" {
		return "element"
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToLower(r)) + s[size:]
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "sses"), strings.HasSuffix(s, "shes"), strings.HasSuffix(s, "ches"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return "element"
}

// UsesAfter returns references to sym that start at or after offset.
func UsesAfter(tree *syntax.Tree, res binding.Resolver, sym *binding.Symbol, offset uint32) []syntax.NodeID {
	var out []syntax.NodeID
	tree.Walk(sym.Scope, func(id syntax.NodeID) bool {
		if tree.Span(id).End <= offset {
			return false
		}
		if tree.Kind(id) != syntax.KindIdent || tree.Span(id).Start < offset || id == sym.Decl {
			return true
		}
		if s, ok := res.Symbol(id); ok && s == sym {
			out = append(out, id)
		}
		return true
	})
	return out
}

// CaptureBoundary returns the nearest lambda or anonymous class body between
// id and stop, or NoNode.
func CaptureBoundary(tree *syntax.Tree, id, stop syntax.NodeID) syntax.NodeID {
	for p := tree.Parent(id); p != syntax.NoNode && p != stop; p = tree.Parent(p) {
		switch tree.Kind(p) {
		case syntax.KindLambda:
			return p
		case syntax.KindClassBody:
			if tree.Kind(tree.Parent(p)) == syntax.KindNew {
				return p
			}
		}
	}
	return syntax.NoNode
}
