package pongo_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-renderbridge/pkg/safety"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "print is gated",
			src:  "Hello {{ name }}!",
			want: "Hello {{ escape_gate(name) }}!",
		},
		{
			name: "literal path is trusted",
			src:  "{{ path('node', {'id': 1}) }}",
			want: `{{ path("node", _hash("id", 1))|safe }}`,
		},
		{
			name: "variable parameters are gated",
			src:  "{{ path('node', {'id': nid}) }}",
			want: `{{ escape_gate(path("node", _hash("id", nid))) }}`,
		},
		{
			name: "named arguments bind positionally",
			src:  "{{ url('front', options = {'absolute': true}) }}",
			want: `{{ url("front", _null, _hash("absolute", true))|safe }}`,
		},
		{
			name: "raw bypasses the gate",
			src:  "{{ body|raw }}",
			want: "{{ _raw(body) }}",
		},
		{
			name: "explicit strategy",
			src:  "{{ data|e('js') }}",
			want: `{{ escape_gate(data, "js") }}`,
		},
		{
			name: "bridge filter",
			src:  "{{ items|safe_join(', ') }}",
			want: `{{ escape_gate(safe_join(items, ", ")) }}`,
		},
		{
			name: "native filter",
			src:  "{{ name|upper }}",
			want: `{{ escape_gate(_filter("upper", name)) }}`,
		},
		{
			name: "date filter",
			src:  "{{ ts|date('Y') }}",
			want: `{{ escape_gate(format_date(ts, "custom", "Y")) }}`,
		},
		{
			name: "concat in set",
			src:  "{% set greeting = 'Hi ' ~ name %}",
			want: `{% set greeting = _concat("Hi ", name) %}`,
		},
		{
			name: "negated test",
			src:  "{% if x is not empty %}y{% endif %}",
			want: `{% if (not _test("empty", x)) %}y{% endif %}`,
		},
		{
			name: "loop variables and for else",
			src:  "{% for item in items %}{{ loop.index }}{% else %}none{% endfor %}",
			want: "{% for item in items %}{{ escape_gate(forloop.Counter) }}{% empty %}none{% endfor %}",
		},
		{
			name: "if else inside for",
			src:  "{% for i in items %}{% if i %}a{% else %}b{% endif %}{% endfor %}",
			want: "{% for i in items %}{% if i %}a{% else %}b{% endif %}{% endfor %}",
		},
		{
			name: "method call",
			src:  "{{ attributes.addClass('x') }}",
			want: `{{ escape_gate(attributes.AddClass("x")) }}`,
		},
		{
			name: "comments are dropped",
			src:  "{# note #}kept",
			want: "kept",
		},
		{
			name: "whitespace control",
			src:  "{{- name -}}",
			want: "{{- escape_gate(name) -}}",
		},
		{
			name: "verbatim is untouched",
			src:  "{% verbatim %}{{ name }}{% endverbatim %}",
			want: "{% verbatim %}{{ name }}{% endverbatim %}",
		},
		{
			name: "closing delimiter inside a string",
			src:  "{{ 'a }} b' }}",
			want: `{{ escape_gate("a }} b") }}`,
		},
	}

	compiler := pongo.NewCompiler(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compiler.Compile(tt.src)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("compile mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	compiler := pongo.NewCompiler(nil)

	if _, err := compiler.Compile("{{ name"); !errors.Is(err, pongo.ErrUnclosedDelimiter) {
		t.Fatalf("expected ErrUnclosedDelimiter, got %v", err)
	}

	tests := []struct {
		name string
		src  string
		line int
	}{
		{name: "named args on untrusted function", src: "{{ foo(bar = 1) }}", line: 1},
		{name: "unknown filter", src: "a\n{{ name|nosuchfilter }}", line: 2},
		{name: "bad syntax", src: "\n\n{% if (a %}{% endif %}", line: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(tt.src)
			var compileErr *pongo.CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("expected *CompileError, got %v", err)
			}
			if compileErr.Line != tt.line {
				t.Fatalf("expected line %d, got %d", tt.line, compileErr.Line)
			}
		})
	}
}

func TestCompileCustomTrustedFunction(t *testing.T) {
	classifier := safety.NewClassifier(safety.WithTrustedFunction("asset", "name", "parameters"))
	got, err := pongo.NewCompiler(classifier).Compile("{{ asset('logo') }}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if want := `{{ asset("logo")|safe }}`; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSites(t *testing.T) {
	src := "{{ path('a') }}\n{% set u = path('b', {'x': y}) %}\n{{ name }}"
	sites, err := pongo.NewCompiler(nil).Sites(src)
	if err != nil {
		t.Fatalf("sites: %v", err)
	}
	want := []pongo.Site{
		{Line: 1, Expr: "path('a')", Verdict: safety.Safe},
		{Line: 2, Expr: "path('b', {'x': y})", Verdict: safety.Unsafe},
	}
	if diff := cmp.Diff(want, sites); diff != "" {
		t.Fatalf("sites mismatch (-want +got):\n%s", diff)
	}
}
