// Package config loads the settings of the demo server.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Route maps a request path to a template. Path may hold one <name>
// placeholder per segment, whose value is added to the render context under
// that name. Context names an optional JSON or YAML context file.
type Route struct {
	Path     string `json:"path" yaml:"path"`
	Template string `json:"template" yaml:"template"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Config holds the server configuration. Templates come from Database when
// it is set and from TemplateDir otherwise.
type Config struct {
	Addr         string         `json:"addr" yaml:"addr"`
	LogLevel     string         `json:"log_level" yaml:"log_level"`
	TemplateDir  string         `json:"template_dir" yaml:"template_dir"`
	Database     string         `json:"database,omitempty" yaml:"database,omitempty"`
	StaticDir    string         `json:"static_dir" yaml:"static_dir"`
	Globals      map[string]any `json:"globals,omitempty" yaml:"globals,omitempty"`
	Routes       []Route        `json:"routes" yaml:"routes"`
	ShutdownSecs int            `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Addr:         ":8000",
		LogLevel:     "info",
		TemplateDir:  "./templates",
		StaticDir:    "./static",
		ShutdownSecs: 10,
		Routes: []Route{
			{Path: "/", Template: "index.html"},
			{Path: "/hello/<name>", Template: "hello.html"},
		},
	}
}

// Load reads the configuration at path, decoding YAML for .yaml and .yml
// files and JSON otherwise. Missing fields keep their defaults. When the
// file does not exist it is created with the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data, err = cfg.Marshal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to write default config file: %w", err)
		}
		return cfg, nil
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// Marshal encodes the configuration in the format implied by path.
func (c *Config) Marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports configuration errors a server cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr is empty")
	}
	if c.TemplateDir == "" && c.Database == "" {
		return fmt.Errorf("config: one of template_dir or database is required")
	}
	seen := make(map[string]bool)
	for _, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("config: route %q must start with /", r.Path)
		}
		if r.Template == "" {
			return fmt.Errorf("config: route %q has no template", r.Path)
		}
		if seen[r.Path] {
			return fmt.Errorf("config: duplicate route %q", r.Path)
		}
		seen[r.Path] = true
	}
	return nil
}

// Level parses LogLevel. Unknown values mean info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
