package binding

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Types are carried as normalized source text ("List<String>", "int[]").
// The helpers below take them apart well enough for rule decisions; they do
// not implement Java's full type grammar.

// key normalizes an identifier for map lookups.
func key(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Erasure drops type arguments, array brackets and package qualifiers:
// "java.util.List<String>" -> "List".
func Erasure(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSuffix(t, "...")
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return key(t)
}

// TypeArgs returns the top-level type arguments of t. Wildcard bounds are
// replaced by the bound: "? extends T" -> "T".
func TypeArgs(t string) []string {
	open := strings.IndexByte(t, '<')
	if open < 0 || !strings.HasSuffix(strings.TrimSpace(t), ">") {
		return nil
	}
	inner := strings.TrimSpace(t)
	inner = inner[open+1 : len(inner)-1]
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, unwildcard(inner[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, unwildcard(inner[start:]))
	return out
}

func unwildcard(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "?":
		return "Object"
	case strings.HasPrefix(s, "? extends "):
		return strings.TrimSpace(strings.TrimPrefix(s, "? extends "))
	case strings.HasPrefix(s, "? super "):
		return strings.TrimSpace(strings.TrimPrefix(s, "? super "))
	}
	return s
}

// IsArray reports whether t is an array type.
func IsArray(t string) bool {
	t = strings.TrimSpace(t)
	return strings.HasSuffix(t, "[]") || strings.HasSuffix(t, "...")
}

// ElementType returns the component type of an array type.
func ElementType(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasSuffix(t, "...") {
		return strings.TrimSpace(strings.TrimSuffix(t, "..."))
	}
	return strings.TrimSpace(strings.TrimSuffix(t, "[]"))
}

// Substitute replaces whole-word occurrences of type parameters in t.
func Substitute(t string, params, args []string) string {
	if len(params) == 0 || len(params) != len(args) {
		return t
	}
	var b strings.Builder
	i := 0
	for i < len(t) {
		if isIdentByte(t[i]) {
			j := i
			for j < len(t) && isIdentByte(t[j]) {
				j++
			}
			word := t[i:j]
			repl := word
			for k, p := range params {
				if p == word {
					repl = args[k]
					break
				}
			}
			b.WriteString(repl)
			i = j
			continue
		}
		b.WriteByte(t[i])
		i++
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// IsPrimitive reports whether t names a primitive type.
func IsPrimitive(t string) bool {
	switch strings.TrimSpace(t) {
	case "int", "long", "short", "byte", "char", "boolean", "float", "double":
		return true
	}
	return false
}

// Boxed returns the wrapper type of a primitive, or t unchanged.
func Boxed(t string) string {
	switch strings.TrimSpace(t) {
	case "int":
		return "Integer"
	case "long":
		return "Long"
	case "short":
		return "Short"
	case "byte":
		return "Byte"
	case "char":
		return "Character"
	case "boolean":
		return "Boolean"
	case "float":
		return "Float"
	case "double":
		return "Double"
	}
	return t
}
