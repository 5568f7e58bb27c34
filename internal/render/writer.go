package render

import (
	"strings"

	"refit/internal/source"
)

// Writer accumulates a rewritten fragment. Lines after the first start at the
// base indentation plus the current level; Copy keeps original text, and with
// it any inner comments, byte for byte.
type Writer struct {
	sf          *source.File
	opt         FormattingOptions
	base        string
	buf         strings.Builder
	level       int
	atLineStart bool
}

// NewWriter creates a writer whose continuation lines start at base.
func NewWriter(sf *source.File, opt FormattingOptions, base string) *Writer {
	return &Writer{sf: sf, opt: opt.withDefaults(), base: base}
}

// String returns the fragment written so far.
func (w *Writer) String() string {
	return w.buf.String()
}

// Indent returns the indentation of the current level.
func (w *Writer) Indent() string {
	return w.base + strings.Repeat(w.opt.Unit(), w.level)
}

func (w *Writer) writeIndent() {
	if !w.atLineStart {
		return
	}
	w.buf.WriteString(w.Indent())
	w.atLineStart = false
}

// WriteString writes s, indenting it if a line was just started.
func (w *Writer) WriteString(s string) {
	if s == "" {
		return
	}
	w.writeIndent()
	w.buf.WriteString(s)
	w.atLineStart = false
}

// Newline ends the current line with the configured separator.
func (w *Writer) Newline() {
	w.buf.WriteString(w.opt.LineSeparator)
	w.atLineStart = true
}

// Line writes s followed by a newline.
func (w *Writer) Line(s string) {
	w.WriteString(s)
	w.Newline()
}

// Space writes a single space unless the output already ends in whitespace.
func (w *Writer) Space() {
	s := w.buf.String()
	if s == "" || w.atLineStart {
		return
	}
	switch s[len(s)-1] {
	case ' ', '\t', '\n':
		return
	}
	w.buf.WriteByte(' ')
}

// IndentPush increases the indentation level.
func (w *Writer) IndentPush() {
	w.level++
}

// IndentPop decreases the indentation level.
func (w *Writer) IndentPop() {
	if w.level > 0 {
		w.level--
	}
}

// Copy writes the original text of sp unchanged.
func (w *Writer) Copy(sp source.Span) {
	if w.sf == nil || sp.File != w.sf.ID || sp.Empty() {
		return
	}
	w.WriteString(w.sf.Text(sp))
}

// CopyReindented writes the original text of sp, shifting every line after
// the first from the span's own indentation to the writer's current one.
func (w *Writer) CopyReindented(sp source.Span) {
	if w.sf == nil || sp.File != w.sf.ID || sp.Empty() {
		return
	}
	from := IndentOf(w.sf, sp.Start)
	w.WriteString(Reindent(w.sf.Text(sp), from, w.Indent(), w.opt))
}

// CopyStatements writes the lines of sp one per line at the current level.
// sp normally covers a run of statements without their enclosing braces.
func (w *Writer) CopyStatements(sp source.Span) {
	if w.sf == nil || sp.Empty() {
		return
	}
	from := IndentOf(w.sf, sp.Start)
	text := Reindent(w.sf.Text(sp), from, w.Indent(), w.opt)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i == 0 {
			w.WriteString(strings.TrimLeft(line, " \t"))
			w.Newline()
			continue
		}
		// уже переотступлено
		w.buf.WriteString(strings.TrimRight(line, "\r"))
		w.Newline()
	}
}
