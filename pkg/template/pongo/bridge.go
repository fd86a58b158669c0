package pongo

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

// Template-facing names of the bridge surface.
const (
	fnActiveTheme     = "active_theme"
	fnActiveThemePath = "active_theme_path"
	fnCreateAttribute = "create_attribute"
	fnPath            = "path"
	fnURL             = "url"
	fnLink            = "link"
	fnAttachLibrary   = "attach_library"
)

// bridge exposes one render scope to a template execution.
type bridge struct {
	scope *extension.Scope
}

// scopeContext returns the render-bound functions for scope.
func scopeContext(scope *extension.Scope) pongo2.Context {
	b := bridge{scope: scope}
	return pongo2.Context{
		fnEscape:          b.escape,
		fnRaw:             b.raw,
		fnRenderVar:       b.renderVar,
		fnSafeJoin:        b.safeJoin,
		fnFormatDate:      b.formatDate,
		fnTranslate:       b.translate,
		fnPlaceholder:     b.placeholder,
		fnCleanMarkup:     b.cleanMarkup,
		fnActiveTheme:     b.scope.ActiveTheme,
		fnActiveThemePath: b.scope.ActiveThemePath,
		fnCreateAttribute: b.createAttribute,
		fnPath:            b.path,
		fnURL:             b.url,
		fnLink:            b.link,
		fnAttachLibrary:   b.attachLibrary,
	}
}

// escape is the print gate. With no arguments it is the implicit autoescape
// of a print tag; otherwise args are the strategy and charset of an explicit
// escape filter. The result is marked safe for the strategy so an enclosing
// gate leaves it alone.
func (b bridge) escape(v any, args ...any) (*pongo2.Value, error) {
	opts := extension.EscapeOptions{Context: b.scope.DefaultContext(), Autoescape: len(args) == 0}
	if len(args) > 0 {
		c, err := markup.ParseContext(text(args[0]))
		if err != nil {
			return nil, err
		}
		opts.Context = c
	}
	if len(args) > 1 {
		opts.Charset = text(args[1])
	}
	out, err := b.scope.Escape(v, opts)
	if err != nil {
		return nil, err
	}
	return pongo2.AsSafeValue(typedMarkup(opts.Context, out)), nil
}

func typedMarkup(c markup.Context, s string) markup.Markup {
	switch c {
	case markup.ContextJS:
		return markup.JS(s)
	case markup.ContextCSS:
		return markup.CSS(s)
	case markup.ContextURL:
		return markup.URL(s)
	case markup.ContextHTMLAttr:
		return markup.HTMLAttr(s)
	}
	return markup.HTML(s)
}

func (b bridge) raw(v any) (*pongo2.Value, error) {
	out, err := b.scope.RenderVar(v)
	if err != nil {
		return nil, err
	}
	return pongo2.AsSafeValue(markup.HTML(out)), nil
}

func (b bridge) renderVar(v any) (any, error) {
	return b.scope.RenderMarkup(v)
}

func (b bridge) safeJoin(items any, sep ...any) (markup.HTML, error) {
	var glue string
	if len(sep) > 0 {
		glue = text(sep[0])
	}
	return b.scope.SafeJoin(items, glue)
}

// formatDate takes a date type name, or "custom" followed by a pattern.
func (b bridge) formatDate(ts any, args ...any) (string, error) {
	var format string
	if len(args) > 0 {
		format = text(args[0])
	}
	if format == "custom" {
		if len(args) < 2 || text(args[1]) == "" {
			return "", fmt.Errorf("pongo: format_date custom type needs a pattern")
		}
		format = text(args[1])
	}
	return b.scope.FormatDate(ts, format)
}

func (b bridge) translate(v any, args ...any) markup.Translatable {
	var values any
	if len(args) > 0 {
		values = args[0]
	}
	return b.scope.Translate(text(v), values)
}

func (b bridge) placeholder(v any) (markup.HTML, error) {
	out, err := b.scope.Escape(v, extension.EscapeOptions{Context: markup.ContextHTML})
	if err != nil {
		return "", err
	}
	return markup.HTML(`<em class="placeholder">` + out + `</em>`), nil
}

func (b bridge) cleanMarkup(v any) (markup.HTML, error) {
	return b.scope.CleanMarkup(v)
}

func (b bridge) createAttribute(args ...any) *attribute.Attribute {
	var initial any
	if len(args) > 0 {
		initial = args[0]
	}
	return b.scope.CreateAttribute(initial)
}

func (b bridge) path(name any, args ...any) (string, error) {
	params, options := urlArgs(args)
	return b.scope.Path(text(name), params, options)
}

func (b bridge) url(name any, args ...any) (string, error) {
	params, options := urlArgs(args)
	return b.scope.URL(text(name), params, options)
}

func urlArgs(args []any) (params, options any) {
	if len(args) > 0 {
		params = args[0]
	}
	if len(args) > 1 {
		options = args[1]
	}
	return params, options
}

// link takes a label, a route name and optional parameters and attributes.
func (b bridge) link(label, route any, args ...any) (render.GeneratedLink, error) {
	params, attrs := urlArgs(args)
	return b.scope.Link(label, text(route), params, attrs)
}

// attachLibrary bubbles a library attachment and prints nothing.
func (b bridge) attachLibrary(name any) (string, error) {
	library := strings.TrimSpace(text(name))
	if library == "" {
		return "", fmt.Errorf("pongo: attach_library needs a library name")
	}
	attached := cache.NewBubbleable()
	attached.Attachments = cache.Attachments{"library": {library}}
	b.scope.Bubble(attached)
	return "", nil
}
