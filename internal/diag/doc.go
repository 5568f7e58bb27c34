// Package diag defines the diagnostic and edit model shared by the parser,
// the rewrite rules and the fix engine.
//
// # Purpose
//
//   - Provide deterministic, serialisable data structures for findings
//     produced while parsing and binding Java sources.
//   - Offer light-weight utilities (Reporter, Bag, FormatShort) that let producers emit
//     diagnostics without coupling to storage or formatting.
//   - Model rewrites as structured edits that internal/fix can apply.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in diagnostic.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary span – the canonical source.Span pointing to the issue.
//   - Notes – optional secondary spans/messages for additional context.
//   - Fixes – optional Fix records describing how to address the problem.
//
// # Edits
//
// TextEdit carries a span in source coordinates plus the replacement text.
// OldText acts as a guard: internal/fix refuses to apply an edit whose span
// no longer holds the expected text, which is how stale proposals are caught
// after the document changed.
//
// Keep the data model deterministic: the CLI serialises diagnostics and edits
// for caching and tests.
package diag
