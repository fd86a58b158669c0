package cache_test

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/cache"
)

func TestAttachmentsMerge(t *testing.T) {
	a := cache.Attachments{"library": {"core/drupal", "system/base"}}
	b := cache.Attachments{"library": {"system/base", "theme/global"}, "feed": {"rss.xml"}}

	got := a.Merge(b)
	want := cache.Attachments{
		"library": {"core/drupal", "system/base", "theme/global"},
		"feed":    {"rss.xml"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Merge mismatch (-want +got):\n%s", diff)
	}
	if got.String() != "feed=rss.xml; library=core/drupal,system/base,theme/global" {
		t.Fatalf("unexpected String(): %q", got.String())
	}
	if len(a["library"]) != 2 {
		t.Fatalf("receiver mutated: %v", a)
	}
}

func TestParseMetadataAndAttachments(t *testing.T) {
	meta, ok := cache.ParseMetadata(map[string]any{
		"tags":     []any{"foo", "bar"},
		"contexts": "user.roles",
		"max-age":  "120",
	})
	if !ok {
		t.Fatalf("expected map to parse")
	}
	want := cache.Metadata{Tags: []string{"foo", "bar"}, Contexts: []string{"user.roles"}, MaxAge: 120}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Fatalf("ParseMetadata mismatch (-want +got):\n%s", diff)
	}
	if _, ok := cache.ParseMetadata("nope"); ok {
		t.Fatalf("expected string to be rejected")
	}
	if _, ok := cache.ParseMetadata(nil); ok {
		t.Fatalf("expected nil to be rejected")
	}

	att := cache.ParseAttachments(map[string]any{"library": []any{"core/jquery", "core/jquery"}, "empty": nil})
	if diff := cmp.Diff(cache.Attachments{"library": {"core/jquery"}}, att); diff != "" {
		t.Fatalf("ParseAttachments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMetadataMaxAge(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    cache.MaxAge
		control string
	}{
		{name: "absent", raw: map[string]any{"tags": []any{"a"}}, want: cache.MaxAgePermanent, control: "max-age=31536000, public"},
		{name: "zero", raw: map[string]any{"max-age": 0}, want: 0, control: "must-revalidate, no-cache, private"},
		{name: "zero from yaml string", raw: map[string]any{"max-age": "0"}, want: 0, control: "must-revalidate, no-cache, private"},
		{name: "uncacheable", raw: map[string]any{"max-age": -1}, want: cache.MaxAgeUncacheable, control: "must-revalidate, no-cache, private"},
		{name: "seconds", raw: map[string]any{"max-age": 90}, want: 90, control: "max-age=90, public"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, ok := cache.ParseMetadata(tt.raw)
			if !ok {
				t.Fatalf("expected map to parse")
			}
			if diff := cmp.Diff(tt.want, meta.MaxAge); diff != "" {
				t.Fatalf("max-age mismatch (-want +got):\n%s", diff)
			}
			h := http.Header{}
			cache.WriteHeaders(h, cache.Bubbleable{Metadata: meta})
			if diff := cmp.Diff(tt.control, h.Get(cache.HeaderCacheControl)); diff != "" {
				t.Fatalf("cache-control mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectorZeroAgeWins(t *testing.T) {
	c := cache.NewCollector()
	c.BubbleMetadata(cache.Metadata{Tags: []string{"a"}, MaxAge: 100})
	if meta, ok := cache.ParseMetadata(map[string]any{"max-age": 0}); ok {
		c.BubbleMetadata(meta)
	}
	if got := c.Result().MaxAge; got != 0 {
		t.Fatalf("expected max-age 0, got %v", got)
	}
	if got := cache.CacheControl(c.Result().MaxAge); got != "must-revalidate, no-cache, private" {
		t.Fatalf("unexpected cache-control %q", got)
	}
}

func TestCollectorIsMonotonic(t *testing.T) {
	c := cache.NewCollector()
	c.BubbleMetadata(cache.Metadata{Tags: []string{"a"}, MaxAge: 100})
	c.Bubble(cache.Bubbleable{
		Metadata:    cache.Metadata{Tags: []string{"b"}, MaxAge: cache.MaxAgeUncacheable},
		Attachments: cache.Attachments{"library": {"core/drupal"}},
	})
	c.BubbleMetadata(cache.Metadata{MaxAge: 600})

	got := c.Result()
	want := cache.Bubbleable{
		Metadata:    cache.Metadata{Tags: []string{"a", "b"}, MaxAge: cache.MaxAgeUncacheable},
		Attachments: cache.Attachments{"library": {"core/drupal"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Result mismatch (-want +got):\n%s", diff)
	}
	if c.Bubbles() != 3 {
		t.Fatalf("expected 3 bubbles, got %d", c.Bubbles())
	}
}

func TestWriteHeaders(t *testing.T) {
	h := http.Header{}
	cache.WriteHeaders(h, cache.Bubbleable{
		Metadata: cache.Metadata{Tags: []string{"node:1", "config:system.site"}, Contexts: []string{"theme"}, MaxAge: 300},
	})

	if got := h.Get(cache.HeaderCacheTags); got != "node:1 config:system.site" {
		t.Fatalf("unexpected tags header %q", got)
	}
	if got := h.Get(cache.HeaderCacheControl); got != "max-age=300, public" {
		t.Fatalf("unexpected cache-control %q", got)
	}
	if h.Get(cache.HeaderAttachments) != "" {
		t.Fatalf("expected no attachments header")
	}
	if got := cache.CacheControl(cache.MaxAgeUncacheable); got != "must-revalidate, no-cache, private" {
		t.Fatalf("unexpected uncacheable cache-control %q", got)
	}
}
