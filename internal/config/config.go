// Package config loads simpletrack settings from .simpletrack.yaml files and
// SIMPLETRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file searched for, without extension.
const FileName = ".simpletrack"

// EnvPrefix prefixes environment overrides, e.g. SIMPLETRACK_TIMEOUT=5s.
const EnvPrefix = "SIMPLETRACK"

// Config is the complete simpletrack configuration.
type Config struct {
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxSnapshots int           `json:"max_snapshots" mapstructure:"max_snapshots"`
	Differ       string        `json:"differ" mapstructure:"differ"`
	Order        string        `json:"order" mapstructure:"order"`
	GitTimeout   time.Duration `json:"git_timeout" mapstructure:"git_timeout"`
	DB           string        `json:"db" mapstructure:"db"`
	Listen       string        `json:"listen" mapstructure:"listen"`
	LogLevel     string        `json:"log_level" mapstructure:"log_level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      3 * time.Second,
		MaxSnapshots: 20,
		Differ:       "git",
		Order:        "newest",
		GitTimeout:   30 * time.Second,
		DB:           filepath.Join("~", FileName, "projects.db"),
		Listen:       "127.0.0.1:8080",
		LogLevel:     "warn",
	}
}

// ValidationError describes an invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return &ValidationError{Field: "timeout", Message: "must not be negative"}
	case c.MaxSnapshots < 0:
		return &ValidationError{Field: "max_snapshots", Message: "must not be negative"}
	case c.GitTimeout < 0:
		return &ValidationError{Field: "git_timeout", Message: "must not be negative"}
	}
	if c.Differ != "git" && c.Differ != "lines" {
		return &ValidationError{Field: "differ", Message: fmt.Sprintf("%q is not git or lines", c.Differ)}
	}
	if c.Order != "newest" && c.Order != "oldest" {
		return &ValidationError{Field: "order", Message: fmt.Sprintf("%q is not newest or oldest", c.Order)}
	}
	return nil
}

// Load reads the configuration. An explicit file must exist; otherwise the
// first .simpletrack.{yaml,yml,json,toml} found in dirs is used, and a
// missing file means defaults. Environment variables override the file.
func Load(file string, dirs ...string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("max_snapshots", def.MaxSnapshots)
	v.SetDefault("differ", def.Differ)
	v.SetDefault("order", def.Order)
	v.SetDefault("git_timeout", def.GitTimeout)
	v.SetDefault("db", def.DB)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		for _, dir := range dirs {
			if dir != "" {
				v.AddConfigPath(dir)
			}
		}
	}

	if file != "" || len(dirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Differ = strings.ToLower(strings.TrimSpace(cfg.Differ))
	cfg.Order = strings.ToLower(strings.TrimSpace(cfg.Order))
	db, err := ExpandHome(cfg.DB)
	if err != nil {
		return nil, err
	}
	cfg.DB = db

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source returns the path of the file Load would read for the same
// arguments, or "" if there is none.
func Source(file string, dirs ...string) string {
	if file != "" {
		return file
	}
	for _, dir := range dirs {
		for _, ext := range viper.SupportedExts {
			p := filepath.Join(dir, FileName+"."+ext)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
