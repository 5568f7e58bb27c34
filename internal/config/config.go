// Package config loads refit.toml, the optional .env next to it and the
// REFIT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"refit/internal/render"
	"refit/internal/trace"
)

// FileName is the configuration file looked up from the target path.
const FileName = "refit.toml"

// Config is the resolved configuration. Keys absent from the file keep
// their defaults.
type Config struct {
	Path string // file the values came from, "" for defaults

	Format Format
	Engine Engine
	Trace  Trace
	Cache  Cache
}

// Format mirrors render.FormattingOptions.
type Format struct {
	TabWidth      int    `toml:"tab_width"`
	IndentWidth   int    `toml:"indent_width"`
	UseTabs       bool   `toml:"use_tabs"`
	LineSeparator string `toml:"line_separator"` // "lf", "crlf" or the literal separator
}

// Engine configures the proposal assembler.
type Engine struct {
	Parallelism   int      `toml:"parallelism"`
	RuleTimeout   string   `toml:"rule_timeout"`
	DisabledRules []string `toml:"disabled_rules"`
}

// Trace configures the tracer.
type Trace struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Format string `toml:"format"`
}

// Cache configures the scan result cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// ErrInvalid wraps values that decode but make no sense.
var ErrInvalid = errors.New("invalid config")

// Default returns the built-in configuration.
func Default() *Config {
	opt := render.DefaultOptions()
	return &Config{
		Format: Format{
			TabWidth:      opt.TabWidth,
			IndentWidth:   opt.IndentWidth,
			UseTabs:       opt.UseTabs,
			LineSeparator: "lf",
		},
		Engine: Engine{RuleTimeout: "2s"},
		Trace:  Trace{Level: "off", Output: "-", Format: "auto"},
		Cache:  Cache{Enabled: true},
	}
}

type fileConfig struct {
	Format Format `toml:"format"`
	Engine Engine `toml:"engine"`
	Trace  Trace  `toml:"trace"`
	Cache  Cache  `toml:"cache"`
}

// Load reads path over the defaults, then applies .env and REFIT_*
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	dir := "."
	if path != "" {
		if err := cfg.decode(path); err != nil {
			return nil, err
		}
		dir = filepath.Dir(path)
	}
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Discover finds refit.toml from start upwards and loads it, or the
// defaults when there is none.
func Discover(start string) (*Config, error) {
	path, ok, err := Find(start)
	if err != nil {
		return nil, err
	}
	if !ok {
		path = ""
	}
	return Load(path)
}

func (c *Config) decode(path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		return fmt.Errorf("%s: %w: unknown key %q", path, ErrInvalid, keys[0].String())
	}
	c.Path = path

	set := func(dst, src any, key ...string) {
		if !meta.IsDefined(key...) {
			return
		}
		switch d := dst.(type) {
		case *int:
			*d = src.(int)
		case *bool:
			*d = src.(bool)
		case *string:
			*d = src.(string)
		case *[]string:
			*d = src.([]string)
		}
	}
	set(&c.Format.TabWidth, fc.Format.TabWidth, "format", "tab_width")
	set(&c.Format.IndentWidth, fc.Format.IndentWidth, "format", "indent_width")
	set(&c.Format.UseTabs, fc.Format.UseTabs, "format", "use_tabs")
	set(&c.Format.LineSeparator, fc.Format.LineSeparator, "format", "line_separator")
	set(&c.Engine.Parallelism, fc.Engine.Parallelism, "engine", "parallelism")
	set(&c.Engine.RuleTimeout, fc.Engine.RuleTimeout, "engine", "rule_timeout")
	set(&c.Engine.DisabledRules, fc.Engine.DisabledRules, "engine", "disabled_rules")
	set(&c.Trace.Level, fc.Trace.Level, "trace", "level")
	set(&c.Trace.Output, fc.Trace.Output, "trace", "output")
	set(&c.Trace.Format, fc.Trace.Format, "trace", "format")
	set(&c.Cache.Enabled, fc.Cache.Enabled, "cache", "enabled")
	set(&c.Cache.Dir, fc.Cache.Dir, "cache", "dir")
	if c.Cache.Dir != "" && !filepath.IsAbs(c.Cache.Dir) {
		c.Cache.Dir = filepath.Join(filepath.Dir(path), c.Cache.Dir)
	}
	return nil
}

// loadDotEnv reads dir/.env into the process environment without
// overriding variables that are already set.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("REFIT_TAB_WIDTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REFIT_TAB_WIDTH: %w: %w", ErrInvalid, err)
		}
		c.Format.TabWidth = n
	}
	if v, ok := get("REFIT_USE_TABS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REFIT_USE_TABS: %w: %w", ErrInvalid, err)
		}
		c.Format.UseTabs = b
	}
	if v, ok := get("REFIT_TRACE_LEVEL"); ok {
		c.Trace.Level = v
	}
	if v, ok := get("REFIT_CACHE_DIR"); ok {
		c.Cache.Dir = v
	}
	return nil
}

// Validate checks the values the other accessors rely on.
func (c *Config) Validate() error {
	if c.Format.TabWidth <= 0 || c.Format.IndentWidth <= 0 {
		return fmt.Errorf("%w: tab_width and indent_width must be positive", ErrInvalid)
	}
	if _, err := c.lineSeparator(); err != nil {
		return err
	}
	if c.Engine.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalid)
	}
	if _, err := c.RuleTimeout(); err != nil {
		return err
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) lineSeparator() (string, error) {
	switch strings.ToLower(c.Format.LineSeparator) {
	case "", "lf", "\n":
		return "\n", nil
	case "crlf", "\r\n":
		return "\r\n", nil
	}
	return "", fmt.Errorf("%w: line_separator %q (expected: lf|crlf)", ErrInvalid, c.Format.LineSeparator)
}

// FormattingOptions converts the [format] section.
func (c *Config) FormattingOptions() render.FormattingOptions {
	sep, err := c.lineSeparator()
	if err != nil {
		sep = "\n"
	}
	return render.FormattingOptions{
		TabWidth:      c.Format.TabWidth,
		IndentWidth:   c.Format.IndentWidth,
		UseTabs:       c.Format.UseTabs,
		LineSeparator: sep,
	}
}

// RuleTimeout parses engine.rule_timeout; empty means the engine default.
func (c *Config) RuleTimeout() (time.Duration, error) {
	if c.Engine.RuleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Engine.RuleTimeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: rule_timeout %q", ErrInvalid, c.Engine.RuleTimeout)
	}
	return d, nil
}

// Disabled returns the disabled rule IDs as a set.
func (c *Config) Disabled() map[string]bool {
	out := make(map[string]bool, len(c.Engine.DisabledRules))
	for _, id := range c.Engine.DisabledRules {
		out[strings.TrimSpace(id)] = true
	}
	return out
}
