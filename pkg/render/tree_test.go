package render_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

func TestTreeRendererOrdersChildrenAndCollectsMetadata(t *testing.T) {
	tree := render.Node{
		render.KeyCache: map[string]any{"tags": []string{"page"}},
		"second": render.Node{
			render.KeyMarkup: "<p>two</p>",
			render.KeyWeight: 10,
			render.KeyCache:  cache.Metadata{Tags: []string{"node:2"}, MaxAge: 60},
		},
		"first": render.Node{
			render.KeyMarkup:   markup.HTML("<p>one</p>"),
			render.KeyWeight:   -5,
			render.KeyAttached: map[string][]string{"library": {"core/drupal"}},
		},
		"plain": render.Node{
			render.KeyPlainText: "<b>",
			render.KeyWeight:    20,
		},
	}

	out, err := render.NewTreeRenderer().Evaluate(context.Background(), tree)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Markup != "<p>one</p><p>two</p>&lt;b&gt;" {
		t.Fatalf("unexpected markup %q", out.Markup)
	}
	want := cache.Bubbleable{
		Metadata:    cache.Metadata{Tags: []string{"page", "node:2"}, MaxAge: 60},
		Attachments: cache.Attachments{"library": {"core/drupal"}},
	}
	if diff := cmp.Diff(want, out.Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}

	first := tree["first"].(render.Node)
	if !first.Printed() {
		t.Fatalf("expected child to be marked printed")
	}
}

func TestTreeRendererFiltersUntrustedMarkup(t *testing.T) {
	out, err := render.NewTreeRenderer().Evaluate(context.Background(), render.Node{
		render.KeyPrefix: `<div class="wrap">`,
		render.KeyMarkup: `<p onclick="x()">hi<script>alert(1)</script></p>`,
		render.KeySuffix: markup.HTML(`</div>`),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Markup != `<div class="wrap"><p>hi</p></div>` {
		t.Fatalf("unexpected markup %q", out.Markup)
	}
}

func TestTreeRendererPrintedChildIsNotRenderedAgain(t *testing.T) {
	shared := render.Node{render.KeyMarkup: "shared", render.KeyCache: map[string]any{"tags": []any{"shared"}}}
	r := render.NewTreeRenderer()

	first, err := r.Evaluate(context.Background(), render.Node{"a": shared})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := r.Evaluate(context.Background(), render.Node{"b": shared})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if first.Markup != "shared" || second.Markup != "shared" {
		t.Fatalf("unexpected markup %q / %q", first.Markup, second.Markup)
	}
	if len(second.Metadata.Tags) != 0 {
		t.Fatalf("printed child must not bubble again, got %v", second.Metadata.Tags)
	}
}

func TestTreeRendererElementTypes(t *testing.T) {
	tests := []struct {
		name string
		node render.Node
		want string
	}{
		{
			name: "html tag",
			node: render.Node{
				render.KeyType:       "html_tag",
				render.KeyTag:        "span",
				render.KeyAttributes: map[string]any{"class": "label"},
				render.KeyValue:      "a < b",
			},
			want: `<span class="label">a &lt; b</span>`,
		},
		{
			name: "void tag",
			node: render.Node{
				render.KeyType:       "html_tag",
				render.KeyTag:        "img",
				render.KeyAttributes: attribute.New(map[string]any{"src": "/a.png"}),
			},
			want: `<img src="/a.png" />`,
		},
		{
			name: "link strips scheme",
			node: render.Node{
				render.KeyType:  "link",
				render.KeyTitle: "Go",
				render.KeyURL:   "javascript:alert(1)",
			},
			want: `<a href="alert(1)">Go</a>`,
		},
		{
			name: "container wraps children",
			node: render.Node{
				render.KeyType:       "container",
				render.KeyAttributes: map[string]any{"id": "c"},
				"child":              render.Node{render.KeyMarkup: markup.HTML("x")},
			},
			want: `<div id="c">x</div>`,
		},
		{
			name: "unknown type falls back to children",
			node: render.Node{render.KeyType: "nope", "child": render.Node{render.KeyPlainText: "y"}},
			want: "y",
		},
	}

	r := render.NewTreeRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Evaluate(context.Background(), tt.node)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if out.Markup != tt.want {
				t.Fatalf("markup = %q, want %q", out.Markup, tt.want)
			}
		})
	}
}

func TestTreeRendererDetectsCycles(t *testing.T) {
	loop := render.Node{}
	loop["self"] = loop

	_, err := render.NewTreeRenderer(render.WithMaxDepth(8)).Evaluate(context.Background(), loop)
	if !errors.Is(err, render.ErrTreeTooDeep) {
		t.Fatalf("expected ErrTreeTooDeep, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	registry := render.DefaultRegistry()
	if diff := cmp.Diff([]string{"container", "html_tag", "link"}, registry.List()); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}
	if err := registry.Register(render.Link{}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if _, err := registry.Get("missing"); err == nil {
		t.Fatalf("expected missing element type error")
	}
}

func TestGeneratedLinkCarriesMetadata(t *testing.T) {
	link := render.GeneratedLink{
		HTML:     markup.HTML(`<a href="/x">x</a>`),
		Metadata: cache.Bubbleable{Metadata: cache.NewMetadata().WithTags("route")},
	}
	var carrier cache.Carrier = link
	if got := carrier.BubbleableMetadata().Tags; len(got) != 1 || got[0] != "route" {
		t.Fatalf("unexpected tags %v", got)
	}
	if !markup.IsSafe(link, markup.ContextHTML) {
		t.Fatalf("generated link should be html-safe")
	}
	if markup.IsSafe(render.GeneratedURL{URL: "/x"}, markup.ContextHTML) {
		t.Fatalf("generated url is plain text")
	}
}

func TestAsNodeRequiresProperties(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "node type", value: render.Node{"child": "x"}, want: true},
		{name: "map with property", value: map[string]any{render.KeyMarkup: "x"}, want: true},
		{name: "plain map", value: map[string]any{"a": "1", "b": "2"}, want: false},
		{name: "empty map", value: map[string]any{}, want: false},
		{name: "string", value: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := render.AsNode(tt.value); got != tt.want {
				t.Fatalf("AsNode(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTreeRendererPlainMapChildIsContainer(t *testing.T) {
	group := map[string]any{
		"b": map[string]any{render.KeyMarkup: "<p>b</p>"},
		"a": "<i>",
	}
	tree := render.Node{"group": group}

	out, err := render.NewTreeRenderer().Evaluate(context.Background(), tree)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if diff := cmp.Diff("&lt;i&gt;<p>b</p>", out.Markup); diff != "" {
		t.Fatalf("markup mismatch (-want +got):\n%s", diff)
	}
	if _, marked := group[render.KeyPrinted]; marked {
		t.Fatalf("container map must not be marked printed: %#v", group)
	}
}
