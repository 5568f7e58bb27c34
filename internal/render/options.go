// Package render turns rewritten fragments into text: an indenting Writer
// that copies original spans verbatim, re-indentation of moved code, and
// minimal text edits.
//
// Назначение: единственное место, где рождается новый текст правок.
// Не делает: разбор, анализ или применение правок к документу.
package render

import "strings"

// FormattingOptions carries the editor's whitespace preferences. It is always
// passed explicitly.
type FormattingOptions struct {
	TabWidth      int
	IndentWidth   int
	UseTabs       bool
	LineSeparator string
}

// DefaultOptions matches the stock Java formatter profile.
func DefaultOptions() FormattingOptions {
	return FormattingOptions{TabWidth: 4, IndentWidth: 4, LineSeparator: "\n"}
}

func (o FormattingOptions) withDefaults() FormattingOptions {
	if o.TabWidth <= 0 {
		o.TabWidth = 4
	}
	if o.IndentWidth <= 0 {
		o.IndentWidth = o.TabWidth
	}
	if o.LineSeparator == "" {
		o.LineSeparator = "\n"
	}
	return o
}

// Unit returns one indentation step.
func (o FormattingOptions) Unit() string {
	o = o.withDefaults()
	if o.UseTabs {
		return "\t"
	}
	return strings.Repeat(" ", o.IndentWidth)
}
