package source

import (
	"testing"
)

func TestSpan_ContainsAndOverlaps(t *testing.T) {
	outer := Span{File: 1, Start: 10, End: 30}
	tests := []struct {
		name     string
		other    Span
		contains bool
		overlaps bool
	}{
		{"inside", Span{File: 1, Start: 12, End: 20}, true, true},
		{"same", outer, true, true},
		{"straddles end", Span{File: 1, Start: 25, End: 35}, false, true},
		{"touching end", Span{File: 1, Start: 30, End: 35}, false, false},
		{"other file", Span{File: 2, Start: 12, End: 20}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.Contains(tt.other); got != tt.contains {
				t.Errorf("Contains() = %v, want %v", got, tt.contains)
			}
			if got := outer.Overlaps(tt.other); got != tt.overlaps {
				t.Errorf("Overlaps() = %v, want %v", got, tt.overlaps)
			}
		})
	}
}

func TestSpan_CoverAndOffsets(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 12}
	if got := a.Cover(b); got != (Span{File: 1, Start: 5, End: 20}) {
		t.Errorf("Cover() = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 100}); got != a {
		t.Errorf("Cover() across files changed span: %v", got)
	}
	if !a.ContainsOffset(20) {
		t.Error("end offset should count as inside")
	}
	if a.ContainsOffset(21) {
		t.Error("offset past end reported inside")
	}
}
