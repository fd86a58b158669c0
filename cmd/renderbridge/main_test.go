package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `templates:
  dirs: [tpl]
urls:
  base_url: https://example.com
  routes:
    node: /node/{id}
`

func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRenderTemplateWithDataAndHeaders(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"renderbridge.yaml": testConfig,
		"tpl/page.twig":     `{{ attach_library('core/once') }}<h1>{{ title }}</h1><a href="{{ path('node', {'id': 4}) }}">x</a>`,
		"page.yaml":         "title: <b>News</b>\n",
	})

	stdout, stderr, err := execute(t, "render", "page",
		"--config", filepath.Join(dir, "renderbridge.yaml"),
		"--data", filepath.Join(dir, "page.yaml"),
		"--headers",
	)
	if err != nil {
		t.Fatalf("render: %v\n%s", err, stderr)
	}
	if want := `<h1>&lt;b&gt;News&lt;/b&gt;</h1><a href="/node/4">x</a>`; stdout != want {
		t.Fatalf("expected %q, got %q", want, stdout)
	}
	if !strings.Contains(stderr, "X-Attachments: library=core/once") {
		t.Fatalf("expected attachment header, got:\n%s", stderr)
	}
}

func TestRenderStringToFile(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"renderbridge.yaml": testConfig,
		"tpl/.keep":         "",
		"items.json":        `{"items": ["a&b", "c"]}`,
	})
	out := filepath.Join(dir, "out.html")

	_, stderr, err := execute(t, "render", "--string", "{{ items|safe_join(', ') }}",
		"--config", filepath.Join(dir, "renderbridge.yaml"),
		"--data", filepath.Join(dir, "items.json"),
		"--out", out,
	)
	if err != nil {
		t.Fatalf("render: %v\n%s", err, stderr)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "a&amp;b, c"; string(got) != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLintReportsVerdicts(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"renderbridge.yaml": testConfig,
		"tpl/links.twig":    "{{ path('node', {'id': 4}) }}\n{{ path('node', {'id': nid}) }}\n",
	})
	configPath := filepath.Join(dir, "renderbridge.yaml")

	stdout, _, err := execute(t, "lint", "--config", configPath)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, want := range []string{"links.twig:1: safe", "links.twig:2: unsafe", "1 file(s), 1 unsafe call(s), 0 error(s)"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "lint", "--strict", "--config", configPath); err == nil {
		t.Fatalf("expected --strict to fail on unsafe calls")
	}
}

func TestLintFailsOnCompileError(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"renderbridge.yaml": testConfig,
		"tpl/broken.twig":   "{{ name",
	})

	stdout, _, err := execute(t, "lint", "--config", filepath.Join(dir, "renderbridge.yaml"))
	if err == nil {
		t.Fatalf("expected compile error to fail lint")
	}
	if !strings.Contains(stdout, "broken.twig: error:") {
		t.Fatalf("expected error line, got:\n%s", stdout)
	}
}

func TestReadData(t *testing.T) {
	data, err := readData("")
	if err != nil || len(data) != 0 {
		t.Fatalf("expected empty data, got %v, %v", data, err)
	}

	dir := writeFixture(t, map[string]string{"bad.yaml": "a: [1"})
	if _, err := readData(filepath.Join(dir, "bad.yaml")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := readData(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestVersionShort(t *testing.T) {
	stdout, _, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if stdout != version+"\n" {
		t.Fatalf("expected %q, got %q", version+"\n", stdout)
	}
}
