// Package config loads renderbridge settings from YAML or JSON documents and
// turns them into extension and engine options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// Config is the on-disk configuration of the CLI and preview server.
type Config struct {
	Templates Templates         `yaml:"templates" json:"templates"`
	Escape    Escape            `yaml:"escape" json:"escape"`
	Trusted   []TrustedFunction `yaml:"trusted_functions" json:"trusted_functions"`
	Theme     Theme             `yaml:"theme" json:"theme"`
	Dates     Dates             `yaml:"dates" json:"dates"`
	URLs      URLs              `yaml:"urls" json:"urls"`
	Markup    Markup            `yaml:"markup" json:"markup"`
	Locale    string            `yaml:"locale" json:"locale"`
	Server    Server            `yaml:"server" json:"server"`
	Metrics   Metrics           `yaml:"metrics" json:"metrics"`
	S3        S3                `yaml:"s3" json:"s3"`
}

// Templates locates template sources.
type Templates struct {
	Dirs      []string `yaml:"dirs" json:"dirs"`
	Extension string   `yaml:"extension" json:"extension"`
	Debug     bool     `yaml:"debug" json:"debug"`
	Watch     bool     `yaml:"watch" json:"watch"`
}

// Escape holds the autoescape defaults.
type Escape struct {
	Context string `yaml:"context" json:"context"`
	Charset string `yaml:"charset" json:"charset"`
}

// TrustedFunction declares a URL-producing function whose output is safe
// when its parameters are literal.
type TrustedFunction struct {
	Name   string   `yaml:"name" json:"name"`
	Params []string `yaml:"params" json:"params"`
}

// Theme configures active theme resolution.
type Theme struct {
	Default string       `yaml:"default" json:"default"`
	Variant string       `yaml:"variant" json:"variant"`
	Themes  []ThemeEntry `yaml:"themes" json:"themes"`
}

// ThemeEntry describes one installed theme.
type ThemeEntry struct {
	Name     string   `yaml:"name" json:"name"`
	Version  string   `yaml:"version" json:"version"`
	Path     string   `yaml:"path" json:"path"`
	Variants []string `yaml:"variants" json:"variants"`
}

// Dates configures format_date.
type Dates struct {
	Timezone string            `yaml:"timezone" json:"timezone"`
	Types    map[string]string `yaml:"types" json:"types"`
}

// URLs configures the route table used by path() and url().
type URLs struct {
	BaseURL string            `yaml:"base_url" json:"base_url"`
	Routes  map[string]string `yaml:"routes" json:"routes"`
}

// Markup extends the sanitiser allow-list applied to "#markup" strings.
type Markup struct {
	AllowedElements []string `yaml:"allowed_elements" json:"allowed_elements"`
}

// Server configures the preview server.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Metrics configures the prometheus collectors.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// S3 configures a bucket template source. It is used when Bucket is set.
type S3 struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Region string `yaml:"region" json:"region"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Templates: Templates{Dirs: []string{"templates"}, Extension: ".twig"},
		Escape:    Escape{Context: string(markup.ContextHTML), Charset: "utf-8"},
		Dates:     Dates{Timezone: "UTC"},
		Locale:    "en",
		Server:    Server{Addr: ":8080"},
		Metrics:   Metrics{Enabled: true, Namespace: "renderbridge"},
	}
}

// Load reads path and parses it over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.resolveDirs(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a JSON or YAML document over Default and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" {
		var err error
		if strings.HasPrefix(trimmed, "{") {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := markup.ParseContext(c.Escape.Context); err != nil {
		return fmt.Errorf("config: escape.context: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for i, fn := range c.Trusted {
		if strings.TrimSpace(fn.Name) == "" {
			return fmt.Errorf("config: trusted_functions[%d]: name is required", i)
		}
	}
	seen := make(map[string]struct{}, len(c.Theme.Themes))
	for i, entry := range c.Theme.Themes {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("config: theme.themes[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: theme.themes[%d]: duplicate theme %q", i, name)
		}
		seen[name] = struct{}{}
	}
	if c.Templates.Extension != "" && !strings.HasPrefix(c.Templates.Extension, ".") {
		return fmt.Errorf("config: templates.extension %q must start with a dot", c.Templates.Extension)
	}
	return nil
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Dates.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: dates.timezone: %w", err)
	}
	return loc, nil
}

// resolveDirs makes relative template directories relative to the file
// they were declared in.
func (c *Config) resolveDirs(base string) {
	for i, dir := range c.Templates.Dirs {
		if dir == "" || filepath.IsAbs(dir) {
			continue
		}
		c.Templates.Dirs[i] = filepath.Join(base, dir)
	}
}
