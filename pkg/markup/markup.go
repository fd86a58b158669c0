// Package markup defines the safe-markup capability shared by the rendering
// bridge: values that declare themselves already escaped for an output
// context, and the escapers used for everything else.
package markup

import (
	"fmt"
	"strings"
)

// Context names an output context an escaper targets.
type Context string

const (
	ContextHTML     Context = "html"
	ContextJS       Context = "js"
	ContextCSS      Context = "css"
	ContextURL      Context = "url"
	ContextHTMLAttr Context = "html_attr"
)

// Contexts lists every supported context.
func Contexts() []Context {
	return []Context{ContextHTML, ContextJS, ContextCSS, ContextURL, ContextHTMLAttr}
}

// ParseContext resolves a context name. The empty name selects ContextHTML.
func ParseContext(name string) (Context, error) {
	switch Context(strings.ToLower(strings.TrimSpace(name))) {
	case "", ContextHTML:
		return ContextHTML, nil
	case ContextJS, "javascript":
		return ContextJS, nil
	case ContextCSS:
		return ContextCSS, nil
	case ContextURL:
		return ContextURL, nil
	case ContextHTMLAttr:
		return ContextHTMLAttr, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, name)
	}
}

// Markup is text that is already safe for one or more output contexts.
// Values reporting SafeFor(c) are emitted verbatim in context c.
type Markup interface {
	String() string
	SafeFor(Context) bool
}

// HTML is a string trusted as HTML.
type HTML string

func (h HTML) String() string { return string(h) }
func (h HTML) SafeFor(c Context) bool { return c == ContextHTML }

// HTMLAttr is a string trusted as an HTML attribute value.
type HTMLAttr string

func (h HTMLAttr) String() string { return string(h) }
func (h HTMLAttr) SafeFor(c Context) bool { return c == ContextHTMLAttr }

// JS is a string trusted as a JavaScript expression.
type JS string

func (j JS) String() string { return string(j) }
func (j JS) SafeFor(c Context) bool { return c == ContextJS }

// CSS is a string trusted as a CSS value.
type CSS string

func (s CSS) String() string { return string(s) }
func (s CSS) SafeFor(c Context) bool { return c == ContextCSS }

// URL is a string trusted as a URL component.
type URL string

func (u URL) String() string { return string(u) }
func (u URL) SafeFor(c Context) bool { return c == ContextURL }

// IsSafe reports whether v is Markup safe for context c.
func IsSafe(v any, c Context) bool {
	m, ok := v.(Markup)
	return ok && m != nil && m.SafeFor(c)
}
