package render

import (
	"unicode/utf8"

	"refit/internal/diag"
	"refit/internal/source"
)

// Minimize builds an edit that replaces sp with newText but touches only the
// characters that differ. The returned edit guards on the text it replaces.
func Minimize(sf *source.File, sp source.Span, newText string) diag.TextEdit {
	old := sf.Text(sp)
	prefix := 0
	for prefix < len(old) && prefix < len(newText) && old[prefix] == newText[prefix] {
		prefix++
	}
	for prefix > 0 && prefix < len(old) && !utf8.RuneStart(old[prefix]) {
		prefix--
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(newText)-prefix &&
		old[len(old)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}
	for suffix > 0 && !utf8.RuneStart(old[len(old)-suffix]) {
		suffix--
	}
	edit := diag.TextEdit{
		Span: source.Span{
			File:  sp.File,
			Start: sp.Start + uint32(prefix),
			End:   sp.End - uint32(suffix),
		},
		NewText: newText[prefix : len(newText)-suffix],
	}
	edit.OldText = old[prefix : len(old)-suffix]
	return edit
}

// Replace is Minimize over a node span, or an insertion when sp is empty.
func Replace(sf *source.File, sp source.Span, newText string) []diag.TextEdit {
	e := Minimize(sf, sp, newText)
	if e.Span.Empty() && e.NewText == "" {
		return nil
	}
	return []diag.TextEdit{e}
}

// Insert returns an edit that adds text at offset.
func Insert(sf *source.File, offset uint32, text string) diag.TextEdit {
	return diag.TextEdit{Span: source.Span{File: sf.ID, Start: offset, End: offset}, NewText: text}
}

// Delete returns an edit that removes sp.
func Delete(sf *source.File, sp source.Span) diag.TextEdit {
	return diag.TextEdit{Span: sp, OldText: sf.Text(sp)}
}
