package loader_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/loader"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

type stubBucket struct {
	objects map[string]string
	keys    []string
}

func (b *stubBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	b.keys = append(b.keys, key)
	body, ok := b.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3LoaderGet(t *testing.T) {
	bucket := &stubBucket{objects: map[string]string{"themes/page.twig": "hello"}}
	l, err := loader.NewS3Loader(bucket, "tpl", loader.WithPrefix("/themes/"))
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}

	r, err := l.Get("page.twig")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "hello" {
		t.Fatalf("expected body, got %q", data)
	}

	_, err = l.Get("missing.twig")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if got := bucket.keys[1]; got != "themes/missing.twig" {
		t.Fatalf("expected prefixed key, got %q", got)
	}
}

func TestS3LoaderMaxSize(t *testing.T) {
	bucket := &stubBucket{objects: map[string]string{"big.twig": "0123456789"}}
	l, err := loader.NewS3Loader(bucket, "tpl", loader.WithMaxSize(4))
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if _, err := l.Get("big.twig"); !errors.Is(err, loader.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestS3LoaderAbs(t *testing.T) {
	l, err := loader.NewS3Loader(&stubBucket{}, "tpl")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	tests := []struct {
		base, name, want string
	}{
		{base: "", name: "page.twig", want: "page.twig"},
		{base: "layouts/base.twig", name: "card.twig", want: "layouts/card.twig"},
		{base: "layouts/base.twig", name: "/partials/card.twig", want: "partials/card.twig"},
		{base: "layouts/base.twig", name: "../card.twig", want: "card.twig"},
	}
	for _, tt := range tests {
		if got := l.Abs(tt.base, tt.name); got != tt.want {
			t.Fatalf("Abs(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}

func TestNewS3LoaderValidates(t *testing.T) {
	if _, err := loader.NewS3Loader(nil, "tpl"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := loader.NewS3Loader(&stubBucket{}, " "); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}

func TestS3LoaderFeedsEngine(t *testing.T) {
	bucket := &stubBucket{objects: map[string]string{
		"page.twig":          `{% include "partials/name.twig" %}`,
		"partials/name.twig": "<b>{{ name }}</b>",
	}}
	l, err := loader.NewS3Loader(bucket, "tpl")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	engine, err := pongo.New(pongo.WithLoader(l), pongo.WithBridge(extension.New()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Render(context.Background(), "page", map[string]any{"name": "<i>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "<b>&lt;i&gt;</b>"; string(result.Markup) != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
}
