package render

import (
	"context"
	"strings"

	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// Element property keys used by the built-in types.
const (
	KeyTag        = "#tag"
	KeyAttributes = "#attributes"
	KeyValue      = "#value"
	KeyTitle      = "#title"
	KeyURL        = "#url"
)

var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "source": {}, "track": {}, "wbr": {},
}

// HTMLTag renders "#tag" with "#attributes" around "#value" (or the
// children when no value is set).
type HTMLTag struct{}

func (HTMLTag) Name() string { return "html_tag" }

func (HTMLTag) Render(_ context.Context, node Node, children string) (Output, error) {
	tag := strings.ToLower(strings.TrimSpace(node.Text(KeyTag)))
	if tag == "" || strings.ContainsAny(tag, " <>/\"'=") {
		return output(children), nil
	}
	attrs := attributesOf(node)

	var b strings.Builder
	b.WriteString("<" + tag + attrs.String())
	if _, void := voidElements[tag]; void {
		b.WriteString(" />")
		return output(b.String()), nil
	}
	b.WriteString(">")
	if _, ok := node[KeyValue]; ok {
		b.WriteString(textOf(node[KeyValue]))
	} else {
		b.WriteString(children)
	}
	b.WriteString("</" + tag + ">")
	return output(b.String()), nil
}

// Link renders an anchor from "#title" and "#url". URLs are stripped of
// dangerous schemes.
type Link struct{}

func (Link) Name() string { return "link" }

func (Link) Render(_ context.Context, node Node, children string) (Output, error) {
	attrs := attributesOf(node)
	if href := node.Text(KeyURL); href != "" {
		attrs.SetAttribute("href", markup.StripDangerousProtocols(href))
	}
	title := children
	if _, ok := node[KeyTitle]; ok {
		title = textOf(node[KeyTitle])
	}
	return output("<a" + attrs.String() + ">" + title + "</a>"), nil
}

// Container wraps the children in a div.
type Container struct{}

func (Container) Name() string { return "container" }

func (Container) Render(_ context.Context, node Node, children string) (Output, error) {
	if strings.TrimSpace(children) == "" {
		return output(""), nil
	}
	return output("<div" + attributesOf(node).String() + ">" + children + "</div>"), nil
}

// output is element markup that adds no cache restrictions of its own.
func output(text string) Output {
	return Output{Markup: text, Metadata: cache.NewBubbleable()}
}

func attributesOf(node Node) *attribute.Attribute {
	switch v := node[KeyAttributes].(type) {
	case *attribute.Attribute:
		return v.Clone()
	default:
		return attribute.New(v)
	}
}

// textOf returns HTML-safe markup verbatim and escapes anything else.
func textOf(v any) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(markup.Markup); ok && m.SafeFor(markup.ContextHTML) {
		return m.String()
	}
	if s, ok := v.(string); ok {
		return markup.EscapeHTML(s)
	}
	return markup.EscapeHTML(stringify(v))
}
