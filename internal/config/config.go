// Package config loads modgate settings from YAML.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// DefaultFileName is looked up in the scanned directory when no explicit
// config path is given.
const DefaultFileName = ".modgate.yaml"

// Config is the top-level configuration.
type Config struct {
	Log        LogConfig   `yaml:"log"`
	Write      WriteConfig `yaml:"write"`
	LineEnding string      `yaml:"lineEnding"`
	Quote      string      `yaml:"quote"`
	Extensions []string    `yaml:"extensions"`
	Exclude    []string    `yaml:"exclude"`
	Cache      CacheConfig `yaml:"cache"`
	Watch      WatchConfig `yaml:"watch"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WriteConfig struct {
	Atomic bool `yaml:"atomic"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Line ending modes.
const (
	LineEndingAuto = "auto"
	LineEndingLF   = "lf"
	LineEndingCRLF = "crlf"
)

// Quote styles for generated specifiers.
const (
	QuoteSingle = "single"
	QuoteDouble = "double"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info", Format: "console"},
		Write:      WriteConfig{Atomic: true},
		LineEnding: LineEndingAuto,
		Quote:      QuoteSingle,
		Extensions: []string{".ts", ".tsx", ".js", ".jsx"},
		Cache:      CacheConfig{Size: 1024},
		Watch:      WatchConfig{Debounce: 100 * time.Millisecond},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LineEnding {
	case LineEndingAuto, LineEndingLF, LineEndingCRLF:
	default:
		return fmt.Errorf("invalid lineEnding %q: want auto, lf or crlf", c.LineEnding)
	}
	switch c.Quote {
	case QuoteSingle, QuoteDouble:
	default:
		return fmt.Errorf("invalid quote %q: want single or double", c.Quote)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q: must start with a dot", ext)
		}
	}
	for _, pattern := range c.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("invalid cache.size %d: must not be negative", c.Cache.Size)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch.debounce %s: must not be negative", c.Watch.Debounce)
	}
	return nil
}

// QuoteRune returns the quote character for generated specifiers.
func (c *Config) QuoteRune() byte {
	if c.Quote == QuoteDouble {
		return '"'
	}
	return '\''
}

// FixedLineEnding returns the forced separator, or "" for auto.
func (c *Config) FixedLineEnding() string {
	switch c.LineEnding {
	case LineEndingLF:
		return "\n"
	case LineEndingCRLF:
		return "\r\n"
	default:
		return ""
	}
}
