package attribute_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

func TestNewSerializesWithLeadingSpaces(t *testing.T) {
	tests := []struct {
		name    string
		initial any
		want    string
	}{
		{name: "nil", initial: nil, want: ""},
		{name: "empty map", initial: map[string]any{}, want: ""},
		{
			name: "ordered pairs",
			initial: []attribute.Pair{
				{Name: "class", Value: []string{"kittens"}},
				{Name: "data-toggle", Value: "modal"},
				{Name: "data-lang", Value: "es"},
			},
			want: ` class="kittens" data-toggle="modal" data-lang="es"`,
		},
		{
			name:    "map keys sorted",
			initial: map[string]string{"id": "main", "class": "a b"},
			want:    ` class="a b" id="main"`,
		},
		{
			name:    "booleans",
			initial: []attribute.Pair{{Name: "disabled", Value: true}, {Name: "hidden", Value: false}},
			want:    ` disabled`,
		},
		{
			name:    "values escaped",
			initial: map[string]any{"title": `"><script>x</script>`},
			want:    ` title="&quot;&gt;&lt;script&gt;x&lt;/script&gt;"`,
		},
		{
			name:    "empty class omitted",
			initial: map[string]any{"class": []string{}, "id": ""},
			want:    ` id=""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attribute.New(tt.initial).String()
			if got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOrderedMapInputKeepsOrder(t *testing.T) {
	om := orderedmap.New[string, any]()
	om.Set("data-b", "2")
	om.Set("data-a", "1")

	if got := attribute.New(om).String(); got != ` data-b="2" data-a="1"` {
		t.Fatalf("unexpected serialization %q", got)
	}
}

func TestFluentMutators(t *testing.T) {
	attr := attribute.New(map[string]any{"class": "foo bar", "id": "x"})

	same := attr.AddClass("baz", []string{"foo", "qux"}).
		RemoveClass("bar").
		SetAttribute("role", "button").
		RemoveAttribute("id")
	if same != attr {
		t.Fatalf("mutators must return the receiver")
	}

	if got := attr.String(); got != ` class="foo baz qux" role="button"` {
		t.Fatalf("unexpected serialization %q", got)
	}
	if !attr.HasClass("qux") || attr.HasClass("bar") {
		t.Fatalf("unexpected HasClass results")
	}
	if attr.HasAttribute("id") || !attr.HasAttribute("role") {
		t.Fatalf("unexpected HasAttribute results")
	}
	if diff := cmp.Diff([]string{"class", "role"}, attr.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestAddClassOnEmptyAttribute(t *testing.T) {
	if got := attribute.New(nil).AddClass("meow").String(); got != ` class="meow"` {
		t.Fatalf("unexpected serialization %q", got)
	}
}

func TestSerializationReflectsLaterMutations(t *testing.T) {
	attr := attribute.New(nil).SetAttribute("id", "a")
	first := attr.String()
	attr.SetAttribute("id", "b")
	if first == attr.String() {
		t.Fatalf("expected serialization to follow mutations")
	}
}

func TestMergeAndClone(t *testing.T) {
	base := attribute.New([]attribute.Pair{{Name: "class", Value: "a"}, {Name: "id", Value: "one"}})
	clone := base.Clone()
	base.Merge(attribute.New([]attribute.Pair{{Name: "class", Value: "b"}, {Name: "id", Value: "two"}}))

	if got := base.String(); got != ` class="a b" id="two"` {
		t.Fatalf("unexpected merged serialization %q", got)
	}
	if got := clone.String(); got != ` class="a" id="one"` {
		t.Fatalf("clone was mutated: %q", got)
	}
	want := map[string]any{"class": []string{"a", "b"}, "id": "two"}
	if diff := cmp.Diff(want, base.ToMap()); diff != "" {
		t.Fatalf("ToMap mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributeIsHTMLMarkup(t *testing.T) {
	attr := attribute.New(nil)
	if !markup.IsSafe(attr, markup.ContextHTML) {
		t.Fatalf("attribute should be safe for html")
	}
	if markup.IsSafe(attr, markup.ContextJS) {
		t.Fatalf("attribute must not be safe for js")
	}
}
