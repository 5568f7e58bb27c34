package rules

import (
	"sort"
	"strings"

	"refit/internal/binding"
	"refit/internal/diag"
	"refit/internal/render"
	"refit/internal/source"
	"refit/internal/syntax"
	"refit/internal/trace"
)

// Relevance bands. Higher sorts first.
const (
	relevanceConvert  = 50 // structural conversions at the caret
	relevanceSimplify = 40 // body shape changes
	relevanceLoop     = 45
	relevanceCatch    = 35
	relevanceRecord   = 30
	relevanceHandle   = 100 // uncaught exception family, see exceptions.go
)

// Context is one rule invocation: the snapshot, the caret and the output
// preferences. It is read-only and shared by all rules of a request.
type Context struct {
	Tree    *syntax.Tree
	Res     binding.Resolver
	Offset  uint32
	Length  uint32
	Options render.FormattingOptions

	// Trace receives node-level points under Span.
	Trace trace.Tracer
	Span  uint64

	covering syntax.NodeID
}

// NewContext locates the node covering [offset, offset+length).
func NewContext(tree *syntax.Tree, res binding.Resolver, offset, length uint32, opt render.FormattingOptions) *Context {
	c := &Context{Tree: tree, Res: res, Offset: offset, Length: length, Options: opt, Trace: trace.Nop}
	if tree != nil {
		c.covering = tree.Enclosing(offset, offset+length)
	}
	return c
}

// Covering returns the smallest named node around the caret or selection.
func (c *Context) Covering() syntax.NodeID {
	return c.covering
}

// File returns the snapshot's file.
func (c *Context) File() *source.File {
	return c.Tree.File
}

func (c *Context) point(name, detail string) {
	trace.Point(c.Trace, trace.ScopeNode, name, detail, c.Span)
}

// find returns the covering node or its nearest ancestor of kind, giving up
// at the first node whose kind is in stop.
func (c *Context) find(kind syntax.Kind, stop ...syntax.Kind) syntax.NodeID {
	t := c.Tree
	for id := c.covering; id != syntax.NoNode; id = t.Parent(id) {
		k := t.Kind(id)
		if k == kind {
			if t.InError(id) {
				return syntax.NoNode
			}
			return id
		}
		for _, s := range stop {
			if k == s {
				return syntax.NoNode
			}
		}
	}
	return syntax.NoNode
}

// selected reports whether the selection covers id exactly or the caret is
// inside it.
func (c *Context) selected(id syntax.NodeID) bool {
	sp := c.Tree.Span(id)
	return sp.Start <= c.Offset && c.Offset+c.Length <= sp.End
}

func (c *Context) text(id syntax.NodeID) string {
	return c.Tree.Text(id)
}

func (c *Context) span(id syntax.NodeID) source.Span {
	return c.Tree.Span(id)
}

// indent returns the indentation of the line id starts on.
func (c *Context) indent(id syntax.NodeID) string {
	return render.IndentOf(c.File(), c.span(id).Start)
}

func (c *Context) writer(base string) *render.Writer {
	return render.NewWriter(c.File(), c.Options, base)
}

// replace returns the minimal edit turning id's text into text.
func (c *Context) replace(id syntax.NodeID, text string) []diag.TextEdit {
	return render.Replace(c.File(), c.span(id), text)
}

func (c *Context) replaceSpan(sp source.Span, text string) []diag.TextEdit {
	return render.Replace(c.File(), sp, text)
}

// blanksToLineEnd extends off over trailing spaces and tabs when nothing
// else follows on its line.
func (c *Context) blanksToLineEnd(off uint32) uint32 {
	content := c.File().Content
	end := int(off)
	for end < len(content) && (content[end] == ' ' || content[end] == '\t') {
		end++
	}
	if end < len(content) && content[end] != '\n' && content[end] != '\r' {
		return off
	}
	return uint32(end)
}

// nl is the configured line separator.
func (c *Context) nl() string {
	if c.Options.LineSeparator == "" {
		return "\n"
	}
	return c.Options.LineSeparator
}

// unit is one indentation step.
func (c *Context) unit() string {
	return c.Options.Unit()
}

// trailingComment returns the same-line comments trailing id, as text.
func (c *Context) trailingComment(id syntax.NodeID) string {
	var parts []string
	for _, cm := range c.Tree.CommentsOf(id, syntax.Trailing) {
		parts = append(parts, c.File().Text(cm.Span))
	}
	return strings.Join(parts, " ")
}

// stripParens unwraps parenthesized expressions.
func stripParens(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	for t.Kind(id) == syntax.KindParens {
		id = firstNamed(t, id)
	}
	return id
}

func firstNamed(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	if named := t.Named(id); len(named) > 0 {
		return named[0]
	}
	return syntax.NoNode
}

// statements returns the statements of a block, skipping stray tokens.
func statements(t *syntax.Tree, block syntax.NodeID) []syntax.NodeID {
	var out []syntax.NodeID
	for _, c := range t.Named(block) {
		if t.Kind(c).IsStatement() || t.Node(c).Type == "explicit_constructor_invocation" || t.Node(c).Type == "labeled_statement" {
			out = append(out, c)
		}
	}
	return out
}

// innerSpan returns the span between a block's braces, trimmed to its
// statements, or an empty span at the opening brace for an empty block.
func innerSpan(t *syntax.Tree, block syntax.NodeID) source.Span {
	stmts := statements(t, block)
	sp := t.Span(block)
	if len(stmts) == 0 {
		return source.Span{File: sp.File, Start: sp.Start + 1, End: sp.Start + 1}
	}
	first := t.Span(stmts[0])
	last := t.Span(stmts[len(stmts)-1])
	// комментарии внутри блока идут вместе с операторами
	for _, cm := range t.CommentsIn(sp) {
		if cm.Span.Start < first.Start {
			first.Start = cm.Span.Start
		}
		if cm.Span.End > last.End {
			last.End = cm.Span.End
		}
	}
	return source.Span{File: sp.File, Start: first.Start, End: last.End}
}

// exprOf returns the expression of an expression statement or return.
func exprOf(t *syntax.Tree, stmt syntax.NodeID) syntax.NodeID {
	switch t.Kind(stmt) {
	case syntax.KindExprStmt, syntax.KindReturn, syntax.KindThrow, syntax.KindYield:
		return firstNamed(t, stmt)
	}
	return syntax.NoNode
}

// isVoid reports whether a method result type is void.
func isVoid(typ string) bool {
	return strings.TrimSpace(typ) == "void"
}

// oneLine reports whether id fits on a single source line.
func (c *Context) oneLine(id syntax.NodeID) bool {
	return !strings.Contains(c.text(id), "\n")
}

// textWith returns the text of id with some descendants replaced.
func (c *Context) textWith(id syntax.NodeID, repl map[syntax.NodeID]string) string {
	return c.textIn(c.span(id), repl)
}

// textIn is textWith over an arbitrary span.
func (c *Context) textIn(sp source.Span, repl map[syntax.NodeID]string) string {
	if len(repl) == 0 {
		return c.File().Text(sp)
	}
	ids := make([]syntax.NodeID, 0, len(repl))
	for r := range repl {
		ids = append(ids, r)
	}
	sort.Slice(ids, func(i, j int) bool { return c.span(ids[i]).Start < c.span(ids[j]).Start })
	var b strings.Builder
	pos := sp.Start
	for _, r := range ids {
		rs := c.span(r)
		if rs.Start < pos || rs.End > sp.End {
			continue
		}
		b.WriteString(c.File().Text(source.Span{File: sp.File, Start: pos, End: rs.Start}))
		b.WriteString(repl[r])
		pos = rs.End
	}
	b.WriteString(c.File().Text(source.Span{File: sp.File, Start: pos, End: sp.End}))
	return b.String()
}

// outerLocals returns the names of locals and parameters in scope at id,
// up to the nearest class body.
func (c *Context) outerLocals(at syntax.NodeID) map[string]bool {
	t := c.Tree
	region := t.Ancestor(at, syntax.KindClassBody)
	if region == syntax.NoNode {
		region = t.Root
	}
	pos := t.Span(at).Start
	names := map[string]bool{}
	t.Walk(region, func(id syntax.NodeID) bool {
		if t.Span(id).Start > pos {
			return false
		}
		if t.Kind(id) != syntax.KindIdent {
			return true
		}
		if sym, ok := c.Res.Symbol(id); ok && sym.Decl == id && !sym.IsField() && t.IsAncestor(sym.Scope, at) {
			names[sym.Name] = true
		}
		return true
	})
	return names
}

// declaredNames returns the locals and parameters declared under id.
func (c *Context) declaredNames(id syntax.NodeID) []string {
	t := c.Tree
	var out []string
	t.Walk(id, func(n syntax.NodeID) bool {
		if t.Kind(n) == syntax.KindClassBody {
			return false
		}
		if t.Kind(n) == syntax.KindIdent {
			if sym, ok := c.Res.Symbol(n); ok && sym.Decl == n && !sym.IsField() {
				out = append(out, sym.Name)
			}
		}
		return true
	})
	return out
}

func renderReindent(ctx *Context, text, from, to string) string {
	return render.Reindent(text, from, to, ctx.Options)
}
