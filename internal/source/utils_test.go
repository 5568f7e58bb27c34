package source

import (
	"path/filepath"
	"testing"
)

func TestRelativePath(t *testing.T) {
	base := filepath.Join(t.TempDir(), "base")
	cases := []struct {
		name   string
		target string
		want   string
	}{
		{"inside", filepath.Join(base, "nested", "Main.java"), "nested/Main.java"},
		{"outside", filepath.Join(filepath.Dir(base), "other", "Main.java"), normalizePath(filepath.Join(filepath.Dir(base), "other", "Main.java"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RelativePath(tc.target, base)
			if err != nil {
				t.Fatalf("RelativePath: %v", err)
			}
			if got != tc.want {
				t.Fatalf("RelativePath = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeCRLFKeepsLoneCR(t *testing.T) {
	got, changed := normalizeCRLF([]byte("a\r\nb\rc\r\n"))
	if !changed || string(got) != "a\nb\rc\n" {
		t.Fatalf("normalizeCRLF = %q, %v", got, changed)
	}
	if _, changed := normalizeCRLF([]byte("a\rb")); changed {
		t.Fatal("lone CR reported as change")
	}
}

func TestLineIndex(t *testing.T) {
	idx := buildLineIndex([]byte("ab\n\ncd"))
	if len(idx) != 2 || idx[0] != 2 || idx[1] != 3 {
		t.Fatalf("buildLineIndex = %v", idx)
	}
	for off, want := range map[uint32]LineCol{0: {1, 1}, 2: {1, 3}, 3: {2, 1}, 5: {3, 2}} {
		if got := toLineCol(idx, off); got != want {
			t.Errorf("toLineCol(%d) = %+v, want %+v", off, got, want)
		}
	}
}
