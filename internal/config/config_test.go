package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	opt := cfg.FormattingOptions()
	assert.Equal(t, 4, opt.TabWidth)
	assert.Equal(t, "\n", opt.LineSeparator)
	d, err := cfg.RuleTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	assert.Empty(t, cfg.Disabled())
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
[format]
use_tabs = true
line_separator = "crlf"

[engine]
parallelism = 2
disabled_rules = ["class-to-record", " text-block "]

[cache]
dir = "cache"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.True(t, cfg.Format.UseTabs)
	assert.Equal(t, 4, cfg.Format.TabWidth, "absent key keeps default")
	assert.Equal(t, "\r\n", cfg.FormattingOptions().LineSeparator)
	assert.Equal(t, 2, cfg.Engine.Parallelism)
	assert.Equal(t, "2s", cfg.Engine.RuleTimeout)
	assert.Equal(t, map[string]bool{"class-to-record": true, "text-block": true}, cfg.Disabled())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.Cache.Dir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "[format]\nwidth = 3\n",
		"bad timeout":  "[engine]\nrule_timeout = \"soon\"\n",
		"bad level":    "[trace]\nlevel = \"loud\"\n",
		"bad newline":  "[format]\nline_separator = \"cr\"\n",
		"zero tabs":    "[format]\ntab_width = 0\n",
		"broken toml":  "[format\n",
		"negative job": "[engine]\nparallelism = -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, "[format]\ntab_width = 2\nindent_width = 2\n")
	writeFile(t, filepath.Join(dir, ".env"), "REFIT_TRACE_LEVEL=detail\n")
	t.Setenv("REFIT_TAB_WIDTH", "8")
	t.Setenv("REFIT_USE_TABS", "true")
	t.Setenv("REFIT_CACHE_DIR", "/tmp/refit-cache")
	// t.Setenv вернёт переменную после теста, значение придёт из .env
	t.Setenv("REFIT_TRACE_LEVEL", "")
	require.NoError(t, os.Unsetenv("REFIT_TRACE_LEVEL"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Format.TabWidth)
	assert.Equal(t, 2, cfg.Format.IndentWidth)
	assert.True(t, cfg.Format.UseTabs)
	assert.Equal(t, "detail", cfg.Trace.Level)
	assert.Equal(t, "/tmp/refit-cache", cfg.Cache.Dir)
}

func TestEnvOverrideMustParse(t *testing.T) {
	t.Setenv("REFIT_TAB_WIDTH", "wide")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "")
	src := filepath.Join(root, "src", "main", "A.java")
	writeFile(t, src, "class A {}")

	path, ok, err := Find(src)
	require.NoError(t, err)
	require.True(t, ok)
	want, err := filepath.Abs(filepath.Join(root, FileName))
	require.NoError(t, err)
	assert.Equal(t, want, path)

	cfg, err := Discover(filepath.Dir(src))
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Path)
}
