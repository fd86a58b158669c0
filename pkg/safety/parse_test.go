package safety_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-renderbridge/pkg/safety"
)

func TestParseExprRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{src: `foo`, want: `foo`},
		{src: `foo.bar[0].baz`, want: `foo.bar[0].baz`},
		{src: `"a\"b"`, want: `'a"b'`},
		{src: `-1`, want: `-1`},
		{src: `-x`, want: `-x`},
		{src: `not a and b`, want: `(not a and b)`},
		{src: `a or b and c`, want: `(a or (b and c))`},
		{src: `1 + 2 * 3`, want: `(1 + (2 * 3))`},
		{src: `a ~ b + c`, want: `((a ~ b) + c)`},
		{src: `2 ** 3 ** 2`, want: `(2 ** (3 ** 2))`},
		{src: `a not in [1, 2]`, want: `(a not in [1, 2])`},
		{src: `a is not defined`, want: `a is not defined`},
		{src: `a is divisible by(3)`, want: `a is divisible by(3)`},
		{src: `x|upper|default("n")`, want: `x|upper|default('n')`},
		{src: `x|date:"Y"`, want: `x|date('Y')`},
		{src: `obj.method(1, key = 2)`, want: `obj.method(1, key = 2)`},
		{src: `{ a: 1, 'b': [2, 3], (c): d, 4: null }`, want: `{'a': 1, 'b': [2, 3], (c): d, 4: null}`},
		{src: `a ? b : c`, want: `(a ? b : c)`},
		{src: `a ?: c`, want: `(a ?: c)`},
		{src: `a ?? b`, want: `(a ?? b)`},
		{src: `"hi #{name|upper}!"`, want: `"hi #{name|upper}!"`},
		{src: `[1, 2,]`, want: `[1, 2]`},
		{src: `1..5`, want: `(1 .. 5)`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			node, err := safety.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("ParseExpr(%s): %v", tt.src, err)
			}
			if got := node.String(); got != tt.want {
				t.Fatalf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	tests := []string{
		``,
		`foo(`,
		`{ a 1 }`,
		`'unterminated`,
		`a $ b`,
		`(a + b`,
		`foo.bar()()`,
		`a b`,
		`"#{ unterminated"`,
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := safety.ParseExpr(src)
			if err == nil {
				t.Fatalf("expected parse error for %q", src)
			}
			var perr *safety.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseExprDepthLimit(t *testing.T) {
	src := strings.Repeat("[", 500) + strings.Repeat("]", 500)
	if _, err := safety.ParseExpr(src); err == nil {
		t.Fatalf("expected deeply nested input to be rejected")
	}
}

func TestLiteralnessOf(t *testing.T) {
	tests := []struct {
		src  string
		want safety.Literalness
	}{
		{src: `"x"`, want: safety.Literal},
		{src: `[1, [2, ["three"]]]`, want: safety.Literal},
		{src: `{ a: { b: null } }`, want: safety.Literal},
		{src: `[1, [2, [three]]]`, want: safety.Dynamic},
		{src: `foo`, want: safety.Dynamic},
		{src: `"a" ~ "b"`, want: safety.Dynamic},
	}
	for _, tt := range tests {
		node, err := safety.ParseExpr(tt.src)
		if err != nil {
			t.Fatalf("ParseExpr(%s): %v", tt.src, err)
		}
		if got := safety.LiteralnessOf(node); got != tt.want {
			t.Fatalf("LiteralnessOf(%s) = %s, want %s", tt.src, got, tt.want)
		}
	}
}
