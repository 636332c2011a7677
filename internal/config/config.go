package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color modes accepted by the color setting.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config represents streamfmt configuration options
type Config struct {
	// Color selects transcript coloring: auto (terminal only), always, never
	Color string `yaml:"color"`

	// LogLevel sets the diagnostic verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogFile sends diagnostics to a file instead of stderr
	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Color:    ColorAuto,
		LogLevel: "warn",
		LogFile:  "",
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg Config
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.Color != "" {
		cfg.Color = strings.ToLower(strings.TrimSpace(yamlCfg.Color))
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(yamlCfg.LogLevel))
	}
	if yamlCfg.LogFile != "" {
		cfg.LogFile = expandHome(yamlCfg.LogFile)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from config.yaml in the streamfmt home
// directory. A missing file yields the defaults.
func LoadConfigFromHome() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfig(path)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(color *string, logLevel *string, logFile *string) {
	if color != nil {
		c.Color = strings.ToLower(strings.TrimSpace(*color))
	}
	if logLevel != nil {
		c.LogLevel = strings.ToLower(strings.TrimSpace(*logLevel))
	}
	if logFile != nil {
		c.LogFile = *logFile
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q, must be one of: auto, always, never", c.Color)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
