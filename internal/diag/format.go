package diag

import (
	"fmt"
	"path/filepath"
	"strings"

	"refit/internal/source"
)

// FormatShort renders one line per diagnostic, "severity CODE path:line:col
// message", in the order given. Notes follow their diagnostic when
// withNotes is set. Paths are relative to the file set's base directory.
func FormatShort(ds []Diagnostic, fs *source.FileSet, withNotes bool) string {
	if fs == nil {
		return ""
	}
	var b strings.Builder
	line := func(label string, code Code, sp source.Span, msg string) {
		file := fs.Get(sp.File)
		if file == nil {
			return
		}
		pos := file.Position(sp.Start)
		path := filepath.ToSlash(file.FormatPath("relative", fs.BaseDir()))
		fmt.Fprintf(&b, "%s %s %s:%d:%d %s\n", label, code.ID(), strings.TrimPrefix(path, "./"), pos.Line, pos.Col, oneLine(msg))
	}
	for _, d := range ds {
		line(d.Severity.String(), d.Code, d.Primary, d.Message)
		if !withNotes {
			continue
		}
		for _, n := range d.Notes {
			line("note", d.Code, n.Span, n.Msg)
		}
	}
	return b.String()
}

func oneLine(msg string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(msg), " "))
}
