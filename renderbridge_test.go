package renderbridge_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-renderbridge"
	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

func TestRenderStringEscapesByDefault(t *testing.T) {
	result, err := renderbridge.RenderString(context.Background(), `<p>{{ body }}</p>`, map[string]any{"body": "<script>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := renderbridge.HTML("<p>&lt;script&gt;</p>"); result.Markup != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
}

func TestNewEngineFromConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.twig"), []byte(`{{ path('node', {'id': 7}) }} {{ x }}`), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg := config.Default()
	cfg.Templates.Dirs = []string{dir}
	cfg.URLs.Routes = map[string]string{"node": "/node/{id}"}

	engine, err := renderbridge.NewEngineFromConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, pongo.WithDebug(true))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	result, err := engine.RenderTemplate(context.Background(), "hello", map[string]any{"x": "a&b"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := renderbridge.HTML("/node/7 a&amp;b"); result.Markup != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
}
