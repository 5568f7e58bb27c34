// Package trace records what the rewrite engine did for a request.
//
// A request opens a span, every rule run under it opens a child span, and
// rules that were dropped (timeout, panic, unresolvable binding) leave a
// failure point. The tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRule, "anon-to-lambda", parent)
//	defer span.End("")
//
// Levels:
//
//   - off: nothing
//   - error: failure points only
//   - phase: request spans
//   - detail: rule spans
//   - debug: node level points as well
//
// Output goes to a StreamTracer (text or NDJSON) or is kept in a RingTracer,
// which the CLI dumps when a command fails.
package trace
