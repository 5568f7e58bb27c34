package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored(t *testing.T) {
	orig, origNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = orig, origNoColor }()
	color.NoColor = true

	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.2.3-rc.1+build.123", "1.2.3-rc.1+build.123"},
		{"weird", "weird"},
	}
	for _, tt := range tests {
		Version = tt.version
		if got := Colored(); got != tt.want {
			t.Errorf("Colored() for %q = %q, want %q", tt.version, got, tt.want)
		}
	}

	color.NoColor = false
	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" {
		t.Errorf("Colored() = %q, want escape codes", got)
	}
}

func TestFingerprint(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version, GitCommit = "1.2.3", "abc123"
	a := Fingerprint()
	if len(a) != 16 {
		t.Fatalf("Fingerprint() = %q, want 16 hex chars", a)
	}
	if a != Fingerprint() {
		t.Error("Fingerprint is not stable")
	}
	GitCommit = "def456"
	if Fingerprint() == a {
		t.Error("Fingerprint ignores the commit")
	}
}

func BenchmarkFingerprint(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Fingerprint()
	}
}
