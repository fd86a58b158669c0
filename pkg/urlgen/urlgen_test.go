package urlgen_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/urlgen"
)

func TestGenerate(t *testing.T) {
	g := urlgen.New(
		urlgen.WithBaseURL("https://example.com/"),
		urlgen.WithRoutes(map[string]string{
			"entity.node.canonical": "/node/{node}",
			"search":                "search",
		}),
	)
	ctx := context.Background()

	tests := []struct {
		name     string
		route    string
		params   map[string]any
		absolute bool
		want     string
	}{
		{name: "placeholder", route: "entity.node.canonical", params: map[string]any{"node": 5}, want: "/node/5"},
		{name: "escaped placeholder", route: "entity.node.canonical", params: map[string]any{"node": "a b/c"}, want: "/node/a%20b%2Fc"},
		{name: "query", route: "search", params: map[string]any{"q": "<x>", "page": 2}, want: "/search?page=2&q=%3Cx%3E"},
		{name: "absolute", route: "search", absolute: true, want: "https://example.com/search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Generate(ctx, tt.route, tt.params, tt.absolute)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Generate = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := g.Generate(ctx, "missing", nil, false); !errors.Is(err, urlgen.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
	if _, err := g.Generate(ctx, "entity.node.canonical", nil, false); !errors.Is(err, urlgen.ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestGenerateURLCarriesSiteContextWhenAbsolute(t *testing.T) {
	g := urlgen.New(urlgen.WithRoute("front", "/"))
	generated, err := g.GenerateURL(context.Background(), "front", nil, true)
	if err != nil {
		t.Fatalf("GenerateURL: %v", err)
	}
	if diff := cmp.Diff([]string{"url.site"}, generated.Metadata.Contexts); diff != "" {
		t.Fatalf("contexts mismatch (-want +got):\n%s", diff)
	}
}
