package pongo_test

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/activetheme"
	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/datetime"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/template"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
	"github.com/goliatone/go-renderbridge/pkg/testsupport"
	"github.com/goliatone/go-renderbridge/pkg/urlgen"
)

//go:embed testdata/templates/*.twig
var embeddedTemplates embed.FS

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, options ...pongo.Option) *pongo.Engine {
	t.Helper()

	templatesFS, err := fs.Sub(embeddedTemplates, "testdata/templates")
	if err != nil {
		t.Fatalf("sub fs: %v", err)
	}

	bridge := extension.New(
		extension.WithEvaluator(render.NewTreeRenderer(render.WithLogger(quietLogger()))),
		extension.WithThemeManager(activetheme.Static{Name: "olivero", Path: "themes/olivero"}),
		extension.WithDateFormatter(datetime.New()),
		extension.WithURLGenerator(urlgen.New(
			urlgen.WithBaseURL("https://example.com"),
			urlgen.WithRoute("node", "/node/{id}"),
		)),
		extension.WithLogger(quietLogger()),
	)

	opts := append([]pongo.Option{pongo.WithFS(templatesFS), pongo.WithBridge(bridge)}, options...)
	engine, err := pongo.New(opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngine_RenderTemplate(t *testing.T) {
	engine := newEngine(t)

	result, written := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (template.Result, error) {
		return engine.RenderTemplate(testsupport.Context(), "hello", map[string]any{"name": "<Ada>"}, w)
	})

	want := testsupport.MustReadGoldenString(t, filepath.Join("testdata", "hello.golden"))
	if string(result.Markup) != want {
		t.Fatalf("render template mismatch result\nwant: %q\n got: %q", want, result.Markup)
	}
	if written != want {
		t.Fatalf("render template mismatch writer\nwant: %q\n got: %q", want, written)
	}
}

func TestEngine_RenderPageBubblesMetadata(t *testing.T) {
	engine := newEngine(t)

	data := map[string]any{
		"title": "A & B",
		"body":  "<em>raw</em>",
		"nid":   9,
		"tags":  []any{"x<y", markup.HTML("<b>z</b>")},
		"content": render.Node{
			render.KeyMarkup: markup.HTML("<span>node</span>"),
			render.KeyCache: map[string]any{
				"tags":    []string{"node:9"},
				"max-age": 60,
			},
		},
		"created": 981173106,
	}

	result, err := engine.Render(testsupport.Context(), "page", data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	testsupport.AssertGolden(t, filepath.Join("testdata", "page.golden"), string(result.Markup))

	want := cache.Bubbleable{
		Metadata: cache.Metadata{
			Contexts: []string{"url.site"},
			Tags:     []string{"node:9"},
			MaxAge:   60,
		},
		Attachments: cache.Attachments{"library": {"core/drupal"}},
	}
	if diff := cmp.Diff(want, result.Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_RenderStringEscaping(t *testing.T) {
	engine := newEngine(t)

	data := map[string]any{
		"name":  "<b>",
		"safe":  markup.HTML("<i>ok</i>"),
		"n":     1,
		"flag":  true,
		"items": []string{"a", "<b>"},
		"attrs": attribute.New(nil),
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "autoescape", src: "{{ name }}", want: "&lt;b&gt;"},
		{name: "raw", src: "{{ name|raw }}", want: "<b>"},
		{name: "markup passes", src: "{{ safe }}", want: "<i>ok</i>"},
		{name: "escape filter keeps markup", src: "{{ safe|e }}", want: "<i>ok</i>"},
		{name: "js strategy", src: "{{ name|e('js') }}", want: `\x3Cb\x3E`},
		{name: "native filter output is escaped", src: "{{ name|upper }}", want: "&lt;B&gt;"},
		{name: "concat", src: "{{ 'Hi ' ~ name }}", want: "Hi &lt;b&gt;"},
		{name: "interpolation", src: `{{ "#{name}!" }}`, want: "&lt;b&gt;!"},
		{name: "arithmetic", src: "{{ n + 1 }}", want: "2"},
		{name: "floor division", src: "{{ 7 // 2 }}", want: "3"},
		{name: "join", src: "{{ items|join(', ') }}", want: "a, &lt;b&gt;"},
		{name: "defined test", src: "{% if missing is defined %}d{% else %}u{% endif %}", want: "u"},
		{name: "range", src: "{% for i in 1..3 %}{{ i }}{% endfor %}", want: "123"},
		{name: "coalesce", src: "{{ missing ?? 'fallback' }}", want: "fallback"},
		{name: "conditional", src: "{{ flag ? 'y' : 'n' }}", want: "y"},
		{name: "attribute method", src: "<p{{ attrs.addClass('x') }}>", want: `<p class="x">`},
		{name: "placeholder", src: "{{ name|placeholder }}", want: `<em class="placeholder">&lt;b&gt;</em>`},
		{name: "translate", src: "{{ 'Hello @who'|t({'@who': name}) }}", want: "Hello &lt;b&gt;"},
		{name: "trusted path", src: "{{ path('node', {'id': 3}) }}", want: "/node/3"},
		{name: "link", src: "{{ link(name, 'node', {'id': 1}) }}", want: `<a href="/node/1">&lt;b&gt;</a>`},
		{name: "clean class", src: "{{ 'My Class_Name'|clean_class }}", want: "my-class-name"},
		{name: "empty print", src: "[{{ missing }}]", want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.RenderString(testsupport.Context(), tt.src, data)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if diff := cmp.Diff(tt.want, string(result.Markup)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_RenderNodeOnce(t *testing.T) {
	var calls int
	bridge := extension.New(
		extension.WithEvaluator(render.EvaluatorFunc(func(_ context.Context, node render.Node) (render.Output, error) {
			calls++
			return render.Output{Markup: "<b>" + node.Text("#label") + "</b>"}, nil
		})),
		extension.WithLogger(quietLogger()),
	)
	engine := newEngine(t, pongo.WithBridge(bridge))

	node := render.Node{"#label": "x"}
	result, err := engine.RenderString(testsupport.Context(), "{{ node }}|{{ node }}", map[string]any{"node": node})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "<b>x</b>|<b>x</b>"; string(result.Markup) != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
	if calls != 1 {
		t.Fatalf("expected one evaluation, got %d", calls)
	}
}

func TestEngine_MapDataIsSequence(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "safe_join", src: `{{ items|safe_join(", ") }}`, want: "&lt;b&gt;, x"},
		{name: "print", src: `{{ items }}`, want: "&lt;b&gt;x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := map[string]any{"a": "<b>", "b": "x"}
			result, err := engine.RenderString(testsupport.Context(), tt.src, map[string]any{"items": items})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if diff := cmp.Diff(tt.want, string(result.Markup)); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(map[string]any{"a": "<b>", "b": "x"}, items); diff != "" {
				t.Fatalf("data was modified (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_CompileErrorsSurface(t *testing.T) {
	engine := newEngine(t)

	_, err := engine.RenderString(testsupport.Context(), "{{ foo(bar = 1) }}", nil)
	var compileErr *pongo.CompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("expected *CompileError, got %v", err)
	}
}

func TestEngine_GlobalContext(t *testing.T) {
	engine := newEngine(t)
	if err := engine.GlobalContext(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}); err != nil {
		t.Fatalf("global context: %v", err)
	}

	result, err := engine.RenderString(testsupport.Context(), "env={{ settings.env }}", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "env=staging"; string(result.Markup) != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
}

func TestEngine_RegisterFilter(t *testing.T) {
	engine := newEngine(t)
	err := engine.RegisterFilter("shout", func(input any, _ any) (any, error) {
		if input == nil {
			return "", nil
		}
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}

	result, err := engine.RenderString(testsupport.Context(), "{{ name|shout }}", map[string]any{"name": "a&b"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "A&amp;B!"; string(result.Markup) != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
	if err := engine.RegisterFilter("shout", func(any, any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate filter registration to fail")
	}
}

func TestEngine_StructData(t *testing.T) {
	engine := newEngine(t)

	type pageData struct {
		Title  string `json:"title"`
		Count  int
		Hidden string `json:"-"`
	}
	result, err := engine.RenderString(testsupport.Context(), "{{ title }}:{{ Count }}:{{ Hidden }}", pageData{Title: "<t>", Count: 2, Hidden: "no"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "&lt;t&gt;:2:"; string(result.Markup) != want {
		t.Fatalf("expected %q, got %q", want, result.Markup)
	}
}

func TestEngine_MissingCollaborator(t *testing.T) {
	engine := newEngine(t, pongo.WithBridge(extension.New(extension.WithLogger(quietLogger()))))

	_, err := engine.RenderString(testsupport.Context(), "{{ active_theme() }}", nil)
	if err == nil || !strings.Contains(err.Error(), extension.ErrMissingThemeManager.Error()) {
		t.Fatalf("expected missing theme manager error, got %v", err)
	}
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := pongo.New(); err == nil {
		t.Fatalf("expected error without template source")
	}
}
