package fix

import (
	"refit/internal/diag"
)

// Option mutates fix during construction.
type Option func(*diag.Fix)

// WithApplicability overrides applicability metadata.
func WithApplicability(app diag.FixApplicability) Option {
	return func(f *diag.Fix) {
		f.Applicability = app
	}
}

// WithKind overrides fix classification.
func WithKind(kind diag.FixKind) Option {
	return func(f *diag.Fix) {
		f.Kind = kind
	}
}

// Preferred marks fix as preferred suggestion.
func Preferred() Option {
	return func(f *diag.Fix) {
		f.IsPreferred = true
	}
}

// WithID sets stable identifier for fix.
func WithID(id string) Option {
	return func(f *diag.Fix) {
		f.ID = id
	}
}

// New builds a rewrite fix from edits, safe-with-heuristics unless overridden.
func New(title string, edits []diag.TextEdit, opts ...Option) diag.Fix {
	f := diag.Fix{
		Title:         title,
		Kind:          diag.FixKindRewrite,
		Applicability: diag.FixApplicabilitySafeWithHeuristics,
		Edits:         append([]diag.TextEdit(nil), edits...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}
