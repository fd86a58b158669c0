package prompt

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/datetime"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// InitConfig walks the user through the settings `renderbridge init` writes,
// starting from base. The returned configuration has been validated.
func InitConfig(ctx context.Context, driver Driver, base config.Config) (config.Config, error) {
	cfg := base

	dir, err := driver.Input(ctx, InputConfig{
		Message:   "Template directory",
		Default:   firstOr(cfg.Templates.Dirs, "templates"),
		Validator: required("template directory"),
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Templates.Dirs = []string{strings.TrimSpace(dir)}

	ext, err := driver.Input(ctx, InputConfig{
		Message: "Template file extension",
		Default: cfg.Templates.Extension,
		Validator: func(s string) error {
			if !strings.HasPrefix(strings.TrimSpace(s), ".") {
				return fmt.Errorf("extension must start with a dot")
			}
			return nil
		},
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Templates.Extension = strings.TrimSpace(ext)

	contexts := markup.Contexts()
	options := make([]string, len(contexts))
	defaultIndex := 0
	for i, c := range contexts {
		options[i] = string(c)
		if string(c) == cfg.Escape.Context {
			defaultIndex = i
		}
	}
	idx, err := driver.Select(ctx, SelectConfig{
		Message:      "Default escaping strategy",
		Options:      options,
		DefaultIndex: defaultIndex,
		Help:         "Applied to every print tag that does not name a strategy.",
	})
	if err != nil {
		return config.Config{}, err
	}
	if idx >= 0 {
		cfg.Escape.Context = options[idx]
	}

	themeName, err := driver.Input(ctx, InputConfig{
		Message: "Default theme (empty for none)",
		Default: cfg.Theme.Default,
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Theme.Default = strings.TrimSpace(themeName)

	tz, err := driver.Input(ctx, InputConfig{
		Message: "Time zone for format_date",
		Default: cfg.Dates.Timezone,
		Validator: validZone,
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Dates.Timezone = strings.TrimSpace(tz)

	baseURL, err := driver.Input(ctx, InputConfig{
		Message: "Site base URL for url() (empty for none)",
		Default: cfg.URLs.BaseURL,
		Validator: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return nil
			}
			u, err := url.Parse(strings.TrimSpace(s))
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("enter an absolute URL")
			}
			return nil
		},
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.URLs.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	trusted, err := driver.Input(ctx, InputConfig{
		Message: "Extra trusted URL functions (comma separated)",
		Default: trustedNames(cfg.Trusted),
		Help:    "Calls to these functions are printed unescaped when their parameters are literal.",
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Trusted = parseTrusted(trusted)

	metrics, err := driver.Confirm(ctx, ConfirmConfig{
		Message: "Expose Prometheus metrics from the preview server?",
		Default: cfg.Metrics.Enabled,
	})
	if err != nil {
		return config.Config{}, err
	}
	cfg.Metrics.Enabled = metrics

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// validZone rejects unknown zones and suggests close matches.
func validZone(s string) error {
	name := strings.TrimSpace(s)
	if _, err := time.LoadLocation(name); err == nil {
		return nil
	}
	zones, _ := datetime.Zones()
	query := name
	if i := strings.LastIndexByte(query, '/'); i >= 0 {
		query = query[i+1:]
	}
	for ; len(query) >= 3; query = query[:len(query)-1] {
		if suggestions := datetime.SearchZones(zones, query, 3); len(suggestions) > 0 {
			return fmt.Errorf("unknown time zone %q (did you mean %s?)", name, strings.Join(suggestions, ", "))
		}
	}
	return fmt.Errorf("unknown time zone %q", name)
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 && list[0] != "" {
		return list[0]
	}
	return fallback
}

func trustedNames(fns []config.TrustedFunction) string {
	names := make([]string, 0, len(fns))
	for _, fn := range fns {
		names = append(names, fn.Name)
	}
	return strings.Join(names, ", ")
}

// parseTrusted reads "name" or "name(param, ...)" entries. A bare name gets
// the name/parameters/options signature of the built-in URL functions.
func parseTrusted(raw string) []config.TrustedFunction {
	var out []config.TrustedFunction
	for _, entry := range splitTopLevel(raw) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, params := entry, []string{"name", "parameters", "options"}
		if open := strings.Index(entry, "("); open > 0 && strings.HasSuffix(entry, ")") {
			name = strings.TrimSpace(entry[:open])
			params = nil
			for _, p := range strings.Split(entry[open+1:len(entry)-1], ",") {
				if p = strings.TrimSpace(p); p != "" {
					params = append(params, p)
				}
			}
		}
		out = append(out, config.TrustedFunction{Name: name, Params: params})
	}
	return out
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
