package rules

import (
	"strings"

	"refit/internal/syntax"
)

// textBlock rewrites a `+` chain of string literals holding line breaks into
// a text block. Non-literal operands become %s placeholders.
func textBlock(ctx *Context) ([]Rewrite, error) {
	t := ctx.Tree
	chain := outermostConcat(t, ctx.Covering())
	if chain == syntax.NoNode {
		return nil, ErrNotApplicable
	}
	var operands []syntax.NodeID
	flattenConcat(t, chain, &operands)
	if len(operands) < 2 {
		return nil, ErrNotApplicable
	}
	// a + b + "..." с числами складывается до конкатенации
	if t.Kind(operands[0]) != syntax.KindString && t.Kind(operands[1]) != syntax.KindString {
		return nil, ErrNotApplicable
	}

	var (
		content   strings.Builder
		args      []string
		hasBreak  bool
		joinAfter = map[int]bool{} // content offsets needing a continuation
	)
	for i, op := range operands {
		switch t.Kind(op) {
		case syntax.KindString:
			raw := ctx.text(op)
			if strings.HasPrefix(raw, `"""`) || len(raw) < 2 {
				return nil, ErrNotApplicable
			}
			seg, breaks := unescapeSegment(raw[1 : len(raw)-1])
			hasBreak = hasBreak || breaks
			content.WriteString(seg)
			if i+1 < len(operands) && t.Kind(operands[i+1]) == syntax.KindString && !strings.HasSuffix(seg, "\n") {
				joinAfter[content.Len()] = true
			}
		case syntax.KindLiteral:
			return nil, ErrNotApplicable
		default:
			content.WriteString("\x00")
			args = append(args, ctx.text(op))
		}
	}
	if !hasBreak {
		return nil, ErrNotApplicable
	}

	text := content.String()
	format := len(args) > 0
	anchor := t.Statement(chain)
	if anchor == syntax.NoNode {
		anchor = chain
	}
	indent := ctx.indent(anchor) + ctx.unit()

	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(ctx.nl())
	line := strings.Builder{}
	flush := func(cont bool) {
		l := blockLine(line.String(), format)
		if cont {
			l += `\`
		} else {
			l = markTrailingSpace(l)
		}
		if l != "" {
			b.WriteString(indent + l)
		}
		b.WriteString(ctx.nl())
		line.Reset()
	}
	for i := 0; i < len(text); i++ {
		if joinAfter[i] && line.Len() > 0 {
			flush(true)
		}
		switch c := text[i]; c {
		case '\n':
			flush(false)
		default:
			line.WriteByte(c)
		}
	}
	if line.Len() > 0 {
		// нет перевода строки в конце: продолжение перед закрывающими кавычками
		flush(true)
	}
	b.WriteString(indent + `"""`)
	if format {
		b.WriteString(".formatted(" + strings.Join(args, ", ") + ")")
	}

	return single(Rewrite{
		Label:     "Convert to text block",
		Relevance: relevanceConvert,
		Edits:     ctx.replace(chain, b.String()),
	})
}

// outermostConcat returns the topmost `+` expression around id.
func outermostConcat(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	found := syntax.NoNode
	for cur := id; cur != syntax.NoNode; cur = t.Parent(cur) {
		switch t.Kind(cur) {
		case syntax.KindBinary:
			if t.Text(t.Field(cur, "operator")) != "+" {
				return found
			}
			found = cur
		case syntax.KindString, syntax.KindIdent, syntax.KindCall, syntax.KindFieldAccess:
			if found != syntax.NoNode {
				return found
			}
		default:
			if found != syntax.NoNode || t.IsStatement(cur) {
				return found
			}
		}
	}
	return found
}

// flattenConcat lists the operands of a left-leaning `+` chain.
func flattenConcat(t *syntax.Tree, id syntax.NodeID, out *[]syntax.NodeID) {
	if t.Kind(id) == syntax.KindBinary && t.Text(t.Field(id, "operator")) == "+" {
		flattenConcat(t, t.Field(id, "left"), out)
		flattenConcat(t, t.Field(id, "right"), out)
		return
	}
	*out = append(*out, id)
}

// unescapeSegment turns `\n` escapes into line breaks and `\"` into quotes.
// Other escapes stay as written; they mean the same inside a text block.
func unescapeSegment(s string) (string, bool) {
	var b strings.Builder
	breaks := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
			breaks = true
		case '"':
			b.WriteByte('"')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String(), breaks
}

// blockLine escapes a content line for a text block. NUL bytes mark the
// placeholders of non-literal operands.
func blockLine(s string, format bool) string {
	if format {
		s = strings.ReplaceAll(s, "%", "%%")
		s = strings.ReplaceAll(s, "\x00", "%s")
	}
	return strings.ReplaceAll(s, `"""`, `\"""`)
}

// markTrailingSpace keeps trailing spaces that text blocks would strip.
func markTrailingSpace(s string) string {
	if !strings.HasSuffix(s, " ") {
		return s
	}
	return s[:len(s)-1] + `\s`
}
