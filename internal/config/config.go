// Package config loads the rlog settings file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/textenc"
)

const (
	defaultConfigPath = "~/.config/rlog/config.toml"
	defaultMarksPath  = "~/.local/share/rlog/marks.db"

	defaultBufferSize     = 64 * 1024
	defaultWindowBytes    = 4 * 1024 * 1024
	defaultIndexLines     = 20000
	defaultCacheSlots     = 1024
	defaultTabWidth       = 8
	defaultFollowInterval = 500 * time.Millisecond

	minBufferSize = 64
	maxBufferSize = 64 * 1024 * 1024
)

// Config mirrors config.toml.
type Config struct {
	BufferSize       int             `toml:"buffer_size"`
	WindowBytes      int64           `toml:"window_bytes"`
	IndexLines       int             `toml:"index_lines"`
	CacheSlots       int             `toml:"cache_slots"`
	Encoding         string          `toml:"encoding"`
	RowDelimiter     string          `toml:"row_delimiter"`
	ColumnDelimiter  string          `toml:"column_delimiter"`
	TabWidth         int             `toml:"tab_width"`
	FollowInterval   Duration        `toml:"follow_interval"`
	RememberPosition bool            `toml:"remember_position"`
	MarksDB          string          `toml:"marks_db"`
	Filters          []FilterRule    `toml:"filters"`
	Highlights       []HighlightRule `toml:"highlights"`
	Export           ExportConfig    `toml:"export"`
}

type FilterRule struct {
	Pattern    string `toml:"pattern"`
	Regex      bool   `toml:"regex"`
	IgnoreCase bool   `toml:"ignore_case"`
	Action     string `toml:"action"`
}

type HighlightRule struct {
	Pattern    string `toml:"pattern"`
	Regex      bool   `toml:"regex"`
	IgnoreCase bool   `toml:"ignore_case"`
	Color      string `toml:"color"`
}

// ExportConfig holds the delimiters written by export.
type ExportConfig struct {
	RowDelimiter    string `toml:"row_delimiter"`
	ColumnDelimiter string `toml:"column_delimiter"`
}

// Duration is a time.Duration written as "500ms" in the file.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		BufferSize:       defaultBufferSize,
		WindowBytes:      defaultWindowBytes,
		IndexLines:       defaultIndexLines,
		CacheSlots:       defaultCacheSlots,
		Encoding:         "auto",
		RowDelimiter:     "auto",
		TabWidth:         defaultTabWidth,
		FollowInterval:   Duration(defaultFollowInterval),
		RememberPosition: true,
		MarksDB:          mustExpand(defaultMarksPath),
		Export: ExportConfig{
			RowDelimiter:    "lf",
			ColumnDelimiter: `\t`,
		},
	}
}

// DefaultPath is where Load looks when given an empty path.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load parses the settings file, falling back to defaults when it is
// missing. Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	if strings.TrimSpace(cfg.MarksDB) == "" {
		cfg.MarksDB = defaultMarksPath
	}
	cfg.MarksDB = mustExpand(cfg.MarksDB)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", resolved, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg Config) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	bytes, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects sizes and names the viewer cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.BufferSize < minBufferSize || c.BufferSize > maxBufferSize {
		errs = append(errs, fmt.Errorf("buffer_size %d outside [%d,%d]", c.BufferSize, minBufferSize, maxBufferSize))
	}
	if c.WindowBytes < int64(c.BufferSize) {
		errs = append(errs, fmt.Errorf("window_bytes %d smaller than buffer_size %d", c.WindowBytes, c.BufferSize))
	}
	if c.IndexLines <= 0 {
		errs = append(errs, fmt.Errorf("index_lines must be positive, got %d", c.IndexLines))
	}
	if c.CacheSlots <= 0 {
		errs = append(errs, fmt.Errorf("cache_slots must be positive, got %d", c.CacheSlots))
	}
	if c.TabWidth < 0 || c.TabWidth > 32 {
		errs = append(errs, fmt.Errorf("tab_width %d outside [0,32]", c.TabWidth))
	}
	if c.FollowInterval.Std() < 10*time.Millisecond {
		errs = append(errs, fmt.Errorf("follow_interval %s too short", c.FollowInterval.Std()))
	}
	if _, _, err := c.ResolveEncoding(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FilterList(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.HighlightList(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ResolveEncoding returns the configured encoding; auto is true when it is
// to be detected per file.
func (c Config) ResolveEncoding() (enc textenc.Encoding, auto bool, err error) {
	name := strings.TrimSpace(c.Encoding)
	if name == "" || strings.EqualFold(name, "auto") {
		return textenc.UTF8, true, nil
	}
	enc, err = textenc.Parse(name)
	return enc, false, err
}

// RowDelimiterText is the configured row delimiter, empty for detection.
func (c Config) RowDelimiterText() string {
	return textenc.ParseDelimiter(c.RowDelimiter)
}

func (c Config) ColumnDelimiterText() string {
	return unescapeOnly(c.ColumnDelimiter)
}

// ExportDelimiters returns the row and column delimiters export writes.
func (c Config) ExportDelimiters() (row, column string) {
	row = textenc.ParseDelimiter(c.Export.RowDelimiter)
	if row == "" {
		row = textenc.LF
	}
	column = unescapeOnly(c.Export.ColumnDelimiter)
	if column == "" {
		column = "\t"
	}
	return row, column
}

func (c Config) FilterList() (pattern.FilterList, error) {
	filters := make(pattern.FilterList, 0, len(c.Filters))
	for i, rule := range c.Filters {
		pat, err := pattern.Compile(rule.Pattern, patternOptions(rule.Regex, rule.IgnoreCase))
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		action, err := pattern.ParseAction(rule.Action)
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		filters = append(filters, pattern.Filter{Pattern: pat, Action: action})
	}
	return filters, nil
}

func (c Config) HighlightList() (pattern.HighlightList, error) {
	highlights := make(pattern.HighlightList, 0, len(c.Highlights))
	for i, rule := range c.Highlights {
		pat, err := pattern.Compile(rule.Pattern, patternOptions(rule.Regex, rule.IgnoreCase))
		if err != nil {
			return nil, fmt.Errorf("highlights[%d]: %w", i, err)
		}
		if strings.TrimSpace(rule.Color) == "" {
			return nil, fmt.Errorf("highlights[%d]: color is empty", i)
		}
		highlights = append(highlights, pattern.Highlight{Pattern: pat, Color: strings.TrimSpace(rule.Color)})
	}
	return highlights, nil
}

func patternOptions(regex, ignoreCase bool) pattern.Options {
	opts := pattern.Options{Regex: regex}
	if ignoreCase {
		opts.Case = pattern.CaseInsensitive
	}
	return opts
}

// unescapeOnly expands \t style escapes without the lf/crlf names, which
// would be surprising as column delimiters.
func unescapeOnly(s string) string {
	if s == "" {
		return ""
	}
	return strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r", `\\`, `\`).Replace(s)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
