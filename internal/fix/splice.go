package fix

import (
	"errors"
	"fmt"
	"sort"

	"refit/internal/diag"
)

var (
	// ErrConflict is returned when two edits of one set overlap.
	ErrConflict = errors.New("fix: overlapping edits")
	// ErrStale is returned when an edit's guard text no longer matches.
	ErrStale = errors.New("fix: document changed since the edit was computed")
)

// Splice applies edits to content and returns the new bytes. Edit spans refer
// to the original content; they are applied back to front so earlier offsets
// stay valid. content is not modified.
func Splice(content []byte, edits []diag.TextEdit) ([]byte, error) {
	if len(edits) == 0 {
		return append([]byte(nil), content...), nil
	}
	sorted := make([]diag.TextEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start == sorted[j].Span.Start {
			return sorted[i].Span.End > sorted[j].Span.End
		}
		return sorted[i].Span.Start > sorted[j].Span.Start
	})
	for i := 1; i < len(sorted); i++ {
		if spansConflict(sorted[i-1], sorted[i]) {
			return nil, fmt.Errorf("%w at %d..%d", ErrConflict, sorted[i].Span.Start, sorted[i].Span.End)
		}
	}

	out := append([]byte(nil), content...)
	for _, e := range sorted {
		start, end := int(e.Span.Start), int(e.Span.End)
		if start < 0 || end < start || end > len(out) {
			return nil, fmt.Errorf("%w: span %d..%d out of range", ErrStale, start, end)
		}
		if e.OldText != "" && string(out[start:end]) != e.OldText {
			return nil, fmt.Errorf("%w: expected %q at %d", ErrStale, e.OldText, start)
		}
		tail := append([]byte(nil), out[end:]...)
		out = append(append(out[:start], e.NewText...), tail...)
	}
	return out, nil
}

// spansConflict reports whether two edits overlap. Spans are half-open; two
// insertions never conflict, an insertion conflicts with a replacement that
// strictly contains its position.
func spansConflict(a, b diag.TextEdit) bool {
	aStart, aEnd := a.Span.Start, a.Span.End
	bStart, bEnd := b.Span.Start, b.Span.End

	if aStart == aEnd && bStart == bEnd {
		return false
	}
	if aStart == aEnd {
		return bStart < aStart && aStart < bEnd
	}
	if bStart == bEnd {
		return aStart < bStart && bStart < aEnd
	}
	return aStart < bEnd && bStart < aEnd
}

// Conflicts reports whether any edit in a overlaps any edit in b.
func Conflicts(a, b []diag.TextEdit) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Span.File == y.Span.File && spansConflict(x, y) {
				return true
			}
		}
	}
	return false
}
