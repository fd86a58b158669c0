package prompt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/prompt"
)

type stubDriver struct {
	inputs   map[string]string
	selects  map[string]int
	confirms map[string]bool
	asked    []string
	failOn   string
}

func (s *stubDriver) Input(_ context.Context, cfg prompt.InputConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if cfg.Message == s.failOn {
		return "", prompt.ErrAborted
	}
	answer, ok := s.inputs[cfg.Message]
	if !ok {
		answer = cfg.Default
	}
	if cfg.Validator != nil {
		if err := cfg.Validator(answer); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg prompt.ConfirmConfig) (bool, error) {
	s.asked = append(s.asked, cfg.Message)
	if answer, ok := s.confirms[cfg.Message]; ok {
		return answer, nil
	}
	return cfg.Default, nil
}

func (s *stubDriver) Select(_ context.Context, cfg prompt.SelectConfig) (int, error) {
	s.asked = append(s.asked, cfg.Message)
	if answer, ok := s.selects[cfg.Message]; ok {
		return answer, nil
	}
	return cfg.DefaultIndex, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg prompt.SelectConfig) ([]int, error) {
	return cfg.Defaults, nil
}

func (s *stubDriver) Info(context.Context, string) error { return nil }

func TestInitConfigDefaults(t *testing.T) {
	driver := &stubDriver{}
	cfg, err := prompt.InitConfig(context.Background(), driver, config.Default())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	want := config.Default()
	want.Trusted = nil
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if len(driver.asked) != 8 {
		t.Fatalf("expected 8 questions, got %d: %v", len(driver.asked), driver.asked)
	}
}

func TestInitConfigAnswers(t *testing.T) {
	driver := &stubDriver{
		inputs: map[string]string{
			"Template directory":                            "views",
			"Default theme (empty for none)":                "olivero",
			"Site base URL for url() (empty for none)":      "https://example.com/",
			"Extra trusted URL functions (comma separated)": "asset, file_url(uri, options)",
		},
		selects:  map[string]int{"Default escaping strategy": 1},
		confirms: map[string]bool{"Expose Prometheus metrics from the preview server?": false},
	}
	cfg, err := prompt.InitConfig(context.Background(), driver, config.Default())
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	if diff := cmp.Diff([]string{"views"}, cfg.Templates.Dirs); diff != "" {
		t.Fatalf("dirs mismatch (-want +got):\n%s", diff)
	}
	if cfg.Escape.Context != "js" || cfg.Theme.Default != "olivero" || cfg.Metrics.Enabled {
		t.Fatalf("unexpected answers applied: %+v", cfg)
	}
	if cfg.URLs.BaseURL != "https://example.com" {
		t.Fatalf("expected trimmed base URL, got %q", cfg.URLs.BaseURL)
	}
	wantTrusted := []config.TrustedFunction{
		{Name: "asset", Params: []string{"name", "parameters", "options"}},
		{Name: "file_url", Params: []string{"uri", "options"}},
	}
	if diff := cmp.Diff(wantTrusted, cfg.Trusted); diff != "" {
		t.Fatalf("trusted mismatch (-want +got):\n%s", diff)
	}
}

func TestInitConfigValidationAndAbort(t *testing.T) {
	driver := &stubDriver{inputs: map[string]string{"Time zone for format_date": "Nowhere/Land"}}
	if _, err := prompt.InitConfig(context.Background(), driver, config.Default()); err == nil {
		t.Fatalf("expected invalid time zone to fail")
	}

	driver = &stubDriver{inputs: map[string]string{"Time zone for format_date": "Europe/Pariss"}}
	_, err := prompt.InitConfig(context.Background(), driver, config.Default())
	if err == nil || !strings.Contains(err.Error(), "Europe/Paris") {
		t.Fatalf("expected a suggestion for a misspelt zone, got %v", err)
	}

	driver = &stubDriver{failOn: "Template file extension"}
	_, err = prompt.InitConfig(context.Background(), driver, config.Default())
	if !errors.Is(err, prompt.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}
