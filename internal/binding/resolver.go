// Package binding answers type and name questions about one Java compilation
// unit. Rules consume it through the Resolver interface; Index is the bundled
// implementation backed by the unit itself plus an embedded JDK catalog.
//
// Answers are best effort. Whenever a fact cannot be established the methods
// return ok=false (or an empty result) and callers treat the location as not
// applicable instead of guessing.
package binding

import (
	"refit/internal/syntax"
)

// SymbolKind classifies variables.
type SymbolKind uint8

const (
	SymLocal SymbolKind = iota
	SymParam
	SymLambdaParam
	SymCatchParam
	SymResource
	SymField
	SymEnumConstant
)

func (k SymbolKind) String() string {
	switch k {
	case SymLocal:
		return "local"
	case SymParam:
		return "param"
	case SymLambdaParam:
		return "lambda-param"
	case SymCatchParam:
		return "catch-param"
	case SymResource:
		return "resource"
	case SymField:
		return "field"
	case SymEnumConstant:
		return "enum-constant"
	}
	return "unknown"
}

// Symbol is a declared variable, parameter or field.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  string        // declared type text; "" or "var" when inferred
	Decl  syntax.NodeID // the declaring name node
	Stmt  syntax.NodeID // declaring statement/parameter node
	Scope syntax.NodeID // node bounding the symbol's visibility
	Final bool          // explicit final modifier
	Owner string        // declaring type for fields
}

// IsField reports whether the symbol lives on an object rather than a frame.
func (s *Symbol) IsField() bool {
	return s.Kind == SymField || s.Kind == SymEnumConstant
}

// Resolver is the binding collaborator consumed by the analyzer and rules.
type Resolver interface {
	// Symbol resolves an identifier (reference or declaration name).
	Symbol(ref syntax.NodeID) (*Symbol, bool)
	// DeclaredType returns the static type of an expression.
	DeclaredType(expr syntax.NodeID) (string, bool)
	// TargetType returns the type expected at the expression's position.
	TargetType(expr syntax.NodeID) (string, bool)
	// FunctionalMethod returns the single abstract method of a functional
	// interface, with the type's arguments substituted.
	FunctionalMethod(typ string) (Method, bool)
	// Candidates returns the methods or constructors a call, object creation
	// or method reference may bind to, filtered by name and arity.
	Candidates(call syntax.NodeID) []Method
	// Thrown returns the declared checked exceptions of the selected callee.
	Thrown(call syntax.NodeID) ([]string, bool)
	// Type looks up a declared or library type by name.
	Type(name string) (*TypeInfo, bool)
	// Methods lists the methods visible on a type, inherited ones included.
	Methods(typ string) []Method
	IsSubtype(sub, super string) bool
	IsChecked(typ string) bool
}
