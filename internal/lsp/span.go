package lsp

import (
	"unicode/utf8"

	"fortio.org/safecast"

	"refit/internal/source"
)

// LSP positions count UTF-16 code units; source offsets count bytes.

func utf16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

func clampUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

// offsetOf maps pos to a byte offset in file, clamping to the line end and
// to the end of content.
func offsetOf(file *source.File, pos position) uint32 {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	size := clampUint32(len(file.Content))
	if pos.Line > len(file.LineIdx) {
		return size
	}
	var start uint32
	if pos.Line > 0 {
		start = file.LineIdx[pos.Line-1] + 1
	}
	end := size
	if pos.Line < len(file.LineIdx) {
		end = file.LineIdx[pos.Line]
	}
	units, off := 0, start
	for off < end && units < pos.Character {
		r, n := utf8.DecodeRune(file.Content[off:end])
		if units+utf16Len(r) > pos.Character {
			break
		}
		units += utf16Len(r)
		off += clampUint32(n)
	}
	return off
}

// positionOf maps a byte offset in file to an LSP position.
func positionOf(file *source.File, off uint32) position {
	off = min(off, clampUint32(len(file.Content)))
	lc := file.Position(off)
	start := file.LineStart(off)
	units := 0
	for p := start; p < off; {
		r, n := utf8.DecodeRune(file.Content[p:off])
		units += utf16Len(r)
		p += clampUint32(n)
	}
	return position{Line: int(lc.Line) - 1, Character: units}
}

func rangeOf(file *source.File, sp source.Span) lspRange {
	return lspRange{Start: positionOf(file, sp.Start), End: positionOf(file, sp.End)}
}
