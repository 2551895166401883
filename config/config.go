// Package config provides configuration loading for nuggets using TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"nuggets/boundary"
	"nuggets/highlight"
)

// Matcher settings
type Matcher struct {
	FuzzyThreshold     float64 `toml:"fuzzyThreshold"`
	ContainerThreshold float64 `toml:"containerThreshold"`
	MinWordLength      int     `toml:"minWordLength"`
	MaxSpan            int     `toml:"maxSpan"`
	ContainerSelector  string  `toml:"containerSelector"`
}

// Highlight settings
type Highlight struct {
	Mode       string `toml:"mode"` // "auto", "wrap" or "overlay"
	Background string `toml:"background"`
	Border     string `toml:"border"`
	Shadow     string `toml:"shadow"`
}

// HTTP fetching settings
type Fetcher struct {
	UserAgent      string `toml:"userAgent"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	ChromePath     string `toml:"chromePath"`
}

// LLM settings
type LLM struct {
	Provider string `toml:"provider"` // "claude-api", "claude-code" or "" for first available
	Model    string `toml:"model"`
	APIKey   string `toml:"apiKey"` // falls back to ANTHROPIC_API_KEY
}

// Extraction cache settings
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty = ~/.config/nuggets/cache.db
}

// Rendering settings
type Rendering struct {
	DefaultWidth int    `toml:"defaultWidth"`
	Theme        string `toml:"theme"` // "default-dark", "default-light" or "solarized"
}

// Config is the main configuration struct
type Config struct {
	Matcher   Matcher   `toml:"matcher"`
	Highlight Highlight `toml:"highlight"`
	Fetcher   Fetcher   `toml:"fetcher"`
	LLM       LLM       `toml:"llm"`
	Cache     Cache     `toml:"cache"`
	Rendering Rendering `toml:"rendering"`
}

// Default returns the default configuration.
func Default() *Config {
	m := boundary.DefaultConfig()
	s := highlight.DefaultStyle()
	return &Config{
		Matcher: Matcher{
			FuzzyThreshold:     m.FuzzyThreshold,
			ContainerThreshold: m.ContainerThreshold,
			MinWordLength:      m.MinWordLength,
			MaxSpan:            m.MaxSpan,
			ContainerSelector:  m.ContainerSelector,
		},
		Highlight: Highlight{
			Mode:       highlight.ModeAuto,
			Background: s.Background,
			Border:     s.Border,
			Shadow:     s.Shadow,
		},
		Fetcher: Fetcher{
			UserAgent:      "Mozilla/5.0 (compatible; nuggets/1.0)",
			TimeoutSeconds: 30,
			ChromePath:     "",
		},
		LLM: LLM{
			Provider: "",
			Model:    "claude-sonnet-4-20250514",
		},
		Cache: Cache{
			Enabled: true,
		},
		Rendering: Rendering{
			DefaultWidth: 80,
			Theme:        "default-dark",
		},
	}
}

// MatcherConfig converts the matcher section for boundary.New.
func (c *Config) MatcherConfig() boundary.Config {
	return boundary.Config{
		FuzzyThreshold:     c.Matcher.FuzzyThreshold,
		ContainerThreshold: c.Matcher.ContainerThreshold,
		MinWordLength:      c.Matcher.MinWordLength,
		MaxSpan:            c.Matcher.MaxSpan,
		ContainerSelector:  c.Matcher.ContainerSelector,
	}
}

// Style converts the highlight colours.
func (c *Config) Style() highlight.Style {
	return highlight.Style{
		Background: c.Highlight.Background,
		Border:     c.Highlight.Border,
		Shadow:     c.Highlight.Shadow,
	}
}

// Timeout returns the fetch timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// configDir returns the configuration directory path.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nuggets"), nil
}

// ConfigPath returns the path to the user's config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CachePath returns the extraction cache location.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// Load loads configuration, layering user config on top of defaults.
// Returns the default config if no user config exists.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return Default(), nil // Return defaults if we can't determine path
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads the config at path on top of defaults.
func LoadFile(path string) (*Config, error) {
	userCfg, md, err := loadFromTOML(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return merge(Default(), userCfg, md), nil
}

// loadFromTOML loads a TOML config file and returns the config.
func loadFromTOML(path string) (*Config, toml.MetaData, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, md, fmt.Errorf("parsing config TOML: %w", err)
	}
	return &cfg, md, nil
}

// merge layers user config on top of defaults.
// Only non-zero values from user config override defaults, except booleans,
// which override whenever the key is present.
func merge(defaults, user *Config, md toml.MetaData) *Config {
	result := *defaults

	// Matcher
	mergeFloat(&result.Matcher.FuzzyThreshold, user.Matcher.FuzzyThreshold)
	mergeFloat(&result.Matcher.ContainerThreshold, user.Matcher.ContainerThreshold)
	mergeInt(&result.Matcher.MinWordLength, user.Matcher.MinWordLength)
	mergeInt(&result.Matcher.MaxSpan, user.Matcher.MaxSpan)
	mergeString(&result.Matcher.ContainerSelector, user.Matcher.ContainerSelector)

	// Highlight
	mergeString(&result.Highlight.Mode, user.Highlight.Mode)
	mergeString(&result.Highlight.Background, user.Highlight.Background)
	mergeString(&result.Highlight.Border, user.Highlight.Border)
	mergeString(&result.Highlight.Shadow, user.Highlight.Shadow)

	// Fetcher
	mergeString(&result.Fetcher.UserAgent, user.Fetcher.UserAgent)
	mergeInt(&result.Fetcher.TimeoutSeconds, user.Fetcher.TimeoutSeconds)
	mergeString(&result.Fetcher.ChromePath, user.Fetcher.ChromePath)

	// LLM
	mergeString(&result.LLM.Provider, user.LLM.Provider)
	mergeString(&result.LLM.Model, user.LLM.Model)
	mergeString(&result.LLM.APIKey, user.LLM.APIKey)

	// Cache
	if md.IsDefined("cache", "enabled") {
		result.Cache.Enabled = user.Cache.Enabled
	}
	mergeString(&result.Cache.Path, user.Cache.Path)

	// Rendering
	mergeInt(&result.Rendering.DefaultWidth, user.Rendering.DefaultWidth)
	mergeString(&result.Rendering.Theme, user.Rendering.Theme)

	return &result
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// DefaultTOML returns the default configuration as a TOML string.
// Used for --init-config to generate a user config file.
func DefaultTOML() string {
	return `# nuggets configuration
# Save to ~/.config/nuggets/config.toml and customize
# Only include settings you want to change from defaults

# Boundary matching
[matcher]
fuzzyThreshold = 0.75         # Minimum word overlap for the fuzzy tier
containerThreshold = 0.6      # Minimum score for whole-paragraph fallback
minWordLength = 3             # Shorter words are ignored when scoring overlap
maxSpan = 5000                # How far past the start phrase to look for the end (bytes)
containerSelector = "p, li, blockquote, section, article, main"

# Highlighting
[highlight]
mode = "auto"                 # "wrap" inserts <mark>, "overlay" paints ranges, "auto" picks per output
background = "rgba(255, 215, 0, 0.4)"
border = "1px solid rgba(218, 165, 32, 0.8)"
shadow = "0 0 3px rgba(218, 165, 32, 0.5)"

# HTTP fetching settings
[fetcher]
userAgent = "Mozilla/5.0 (compatible; nuggets/1.0)"
timeoutSeconds = 30
chromePath = ""               # Path to Chrome/Chromium for JS rendering (empty = auto-detect)

# Nugget extraction
[llm]
provider = ""                 # "claude-api", "claude-code", or empty for first available
model = "claude-sonnet-4-20250514"
apiKey = ""                   # Empty = ANTHROPIC_API_KEY

# Extraction cache
[cache]
enabled = true
path = ""                     # Empty = ~/.config/nuggets/cache.db

# Rendering settings
[rendering]
defaultWidth = 80             # Default width when piping output (not in terminal)
theme = "default-dark"        # Highlight colours: "default-dark", "default-light" or "solarized"
`
}

// FormatError formats a configuration error for user display.
func FormatError(err error) string {
	return fmt.Sprintf("Configuration error:\n\n%s", err.Error())
}
