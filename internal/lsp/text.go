package lsp

import (
	"strings"
	"unicode/utf8"
)

// applyChanges replays incremental edits; a change without a range replaces
// the whole text.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetInText(text, change.Range.Start)
		end := max(offsetInText(text, change.Range.End), start)
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

func offsetInText(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(text[i:], '\n')
		if nl < 0 {
			return len(text)
		}
		i += nl + 1
	}
	for units := 0; i < len(text) && text[i] != '\n'; {
		r, n := utf8.DecodeRuneInString(text[i:])
		if units+utf16Len(r) > pos.Character {
			break
		}
		units += utf16Len(r)
		i += n
	}
	return i
}
