// Package testsupport holds golden-file and capture helpers shared by the
// package tests.
package testsupport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreyvit/diff"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/template"
)

// UpdateEnv is the environment variable that rewrites golden files.
const UpdateEnv = "UPDATE_GOLDENS"

// WriteGolden writes value as indented JSON when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv(UpdateEnv) == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	WriteMaybeGolden(t, path, payload)
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// CompareText returns a line diff of two rendered documents, or "" when they
// match.
func CompareText(want, got string) string {
	if want == got {
		return ""
	}
	return diff.LineDiff(want, got)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// MustReadGoldenString reads a golden file and returns its string content.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadGolden(t, path))
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv(UpdateEnv) == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// AssertGolden compares got with the golden file at path, rewriting it
// instead when UPDATE_GOLDENS is set.
func AssertGolden(t *testing.T, path, got string) {
	t.Helper()
	if WriteMaybeGolden(t, path, []byte(got)) {
		return
	}
	want := MustReadGoldenString(t, path)
	if d := CompareText(want, got); d != "" {
		t.Fatalf("golden %s mismatch:\n%s", filepath.Base(path), d)
	}
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// CaptureTemplateOutput executes a render function that writes to an
// io.Writer, returning both the result and the writer contents. Tests can
// assert the renderer returns and writes the same payload without duplicating
// buffer setup.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (template.Result, error)) (template.Result, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}

	return out, buf.String()
}
