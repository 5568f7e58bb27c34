package render

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"refit/internal/source"
)

// IndentOf returns the leading whitespace of the line containing offset.
func IndentOf(sf *source.File, offset uint32) string {
	if sf == nil {
		return ""
	}
	start := sf.LineStart(offset)
	end := start
	for end < uint32(len(sf.Content)) && (sf.Content[end] == ' ' || sf.Content[end] == '\t') {
		end++
	}
	return string(sf.Content[start:end])
}

// Width measures the display columns of a whitespace prefix, expanding tabs
// to the next multiple of TabWidth.
func Width(s string, opt FormattingOptions) int {
	opt = opt.withDefaults()
	col := 0
	for _, r := range s {
		if r == '\t' {
			col += opt.TabWidth - col%opt.TabWidth
			continue
		}
		col += runewidth.RuneWidth(r)
	}
	return col
}

// Pad renders a column count as indentation under opt.
func Pad(width int, opt FormattingOptions) string {
	opt = opt.withDefaults()
	if width <= 0 {
		return ""
	}
	if !opt.UseTabs {
		return strings.Repeat(" ", width)
	}
	return strings.Repeat("\t", width/opt.TabWidth) + strings.Repeat(" ", width%opt.TabWidth)
}

// Reindent moves every line of text after the first from indentation from to
// indentation to, keeping each line's offset relative to from. Blank lines
// lose their whitespace.
func Reindent(text, from, to string, opt FormattingOptions) string {
	if !strings.Contains(text, "\n") {
		return text
	}
	fromW := Width(from, opt)
	toW := Width(to, opt)
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		body := strings.TrimLeft(line, " \t")
		if body == "" {
			lines[i] = ""
			continue
		}
		lead := Width(line[:len(line)-len(body)], opt)
		rel := max(lead-fromW, 0)
		if rel == 0 {
			lines[i] = to + body
			continue
		}
		lines[i] = Pad(toW+rel, opt) + body
	}
	return strings.Join(lines, "\n")
}

// Dedent strips the common indentation from every line of text.
func Dedent(text string, opt FormattingOptions) string {
	lines := strings.Split(text, "\n")
	common := -1
	for _, line := range lines {
		body := strings.TrimLeft(line, " \t")
		if body == "" {
			continue
		}
		w := Width(line[:len(line)-len(body)], opt)
		if common < 0 || w < common {
			common = w
		}
	}
	if common <= 0 {
		return text
	}
	for i, line := range lines {
		body := strings.TrimLeft(line, " \t")
		if body == "" {
			lines[i] = ""
			continue
		}
		lines[i] = Pad(Width(line[:len(line)-len(body)], opt)-common, opt) + body
	}
	return strings.Join(lines, "\n")
}
