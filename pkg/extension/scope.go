package extension

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-renderbridge/pkg/activetheme"
	"github.com/goliatone/go-renderbridge/pkg/attribute"
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithScopeLocale overrides the extension locale for one render.
func WithScopeLocale(locale string) ScopeOption {
	return func(s *Scope) {
		if locale = strings.TrimSpace(locale); locale != "" {
			s.locale = locale
		}
	}
}

// WithCollector makes the scope bubble into an existing collector, so nested
// renders share one accumulator.
func WithCollector(collector *cache.Collector) ScopeOption {
	return func(s *Scope) {
		if collector != nil {
			s.collector = collector
		}
	}
}

// EscapeOptions describes one autoescape invocation.
type EscapeOptions struct {
	Context    markup.Context
	Charset    string
	Autoescape bool
}

// Scope is the per-render half of the bridge. It owns the metadata collector
// for a single render and must not be shared between goroutines.
type Scope struct {
	ext       *Extension
	ctx       context.Context
	collector *cache.Collector
	locale    string
	logger    *slog.Logger
}

// NewScope starts a render.
func (e *Extension) NewScope(ctx context.Context, opts ...ScopeOption) *Scope {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Scope{
		ext:       e,
		ctx:       ctx,
		collector: cache.NewCollector(),
		locale:    e.locale,
		logger:    e.logger,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Context returns the context the scope was started with.
func (s *Scope) Context() context.Context { return s.ctx }

// DefaultContext is the context an escape without a strategy targets.
func (s *Scope) DefaultContext() markup.Context { return s.ext.context }

// Metadata returns everything bubbled so far.
func (s *Scope) Metadata() cache.Bubbleable { return s.collector.Result() }

// Bubble merges b into the render's metadata.
func (s *Scope) Bubble(b cache.Bubbleable) {
	if b.IsEmpty() {
		return
	}
	s.collector.Bubble(b)
}

// Close finishes the render and reports the collected metadata.
func (s *Scope) Close() cache.Bubbleable {
	result := s.collector.Result()
	s.ext.metrics.RenderCompleted(result)
	return result
}

// RenderVar turns v into text. Render nodes are evaluated at most once and
// their metadata is bubbled into the scope. The result is not escaped.
func (s *Scope) RenderVar(v any) (string, error) {
	text, _, err := s.resolve(v)
	return text, err
}

// RenderMarkup is RenderVar for template output: text that is already safe
// comes back as markup.HTML, anything else as a plain string.
func (s *Scope) RenderMarkup(v any) (any, error) {
	text, safe, err := s.resolve(v)
	if err != nil {
		return nil, err
	}
	if safe {
		return markup.HTML(text), nil
	}
	return text, nil
}

// Escape is the autoescape gate. Markup safe for the context passes through
// unchanged, strings and scalars are escaped, and render nodes or sequences
// are resolved and treated as final.
func (s *Scope) Escape(v any, opts EscapeOptions) (string, error) {
	c := opts.Context
	if c == "" {
		c = s.ext.context
	}
	charset := opts.Charset
	if charset == "" {
		charset = s.ext.charset
	}

	kind := kindOf(v)
	s.ext.metrics.EscapeObserved(c, kind.String(), opts.Autoescape)

	switch kind {
	case kindEmpty:
		return "", nil
	case kindMarkup:
		m := v.(markup.Markup)
		s.bubbleCarrier(v)
		if m.SafeFor(c) {
			return m.String(), nil
		}
		return markup.Escape(m.String(), c, charset)
	case kindZero, kindScalar:
		s.bubbleCarrier(v)
		return markup.Escape(scalarText(v), c, charset)
	case kindRenderable, kindNode, kindSequence:
		text, _, err := s.resolve(v)
		return text, err
	default:
		s.logger.Warn("extension: escaping unsupported value", "type", fmt.Sprintf("%T", v))
		return markup.Escape(fmt.Sprint(v), c, charset)
	}
}

// SafeJoin escapes every item for HTML independently and joins them with sep,
// which is emitted verbatim.
func (s *Scope) SafeJoin(items any, sep string) (markup.HTML, error) {
	if kindOf(items) == kindEmpty {
		return "", nil
	}
	var parts []string
	err := eachItem(items, func(item any) error {
		text, err := s.Escape(item, EscapeOptions{Context: markup.ContextHTML, Autoescape: true})
		if err != nil {
			return err
		}
		parts = append(parts, text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return markup.HTML(strings.Join(parts, sep)), nil
}

// CreateAttribute builds an attribute collection from initial.
func (s *Scope) CreateAttribute(initial any) *attribute.Attribute {
	return attribute.New(initial)
}

// ActiveTheme returns the machine name of the active theme.
func (s *Scope) ActiveTheme() (string, error) {
	t, err := s.activeTheme()
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// ActiveThemePath returns the path of the active theme.
func (s *Scope) ActiveThemePath() (string, error) {
	t, err := s.activeTheme()
	if err != nil {
		return "", err
	}
	return t.Path, nil
}

func (s *Scope) activeTheme() (activetheme.Theme, error) {
	if s.ext.themes == nil {
		return activetheme.Theme{}, ErrMissingThemeManager
	}
	return s.ext.themes.ActiveTheme(s.ctx)
}

// FormatDate renders a unix timestamp. format is a named date type or a
// pattern.
func (s *Scope) FormatDate(ts any, format string) (string, error) {
	if s.ext.dates == nil {
		return "", ErrMissingDateFormatter
	}
	seconds, err := toTimestamp(ts)
	if err != nil {
		return "", err
	}
	return s.ext.dates.Format(seconds, format)
}

// Path generates a relative URL for route name.
func (s *Scope) Path(name string, params any, options any) (string, error) {
	out, meta, err := s.generate(name, params, options, false)
	if err != nil {
		return "", err
	}
	s.Bubble(meta)
	return out, nil
}

// URL generates an absolute URL for route name.
func (s *Scope) URL(name string, params any, options any) (string, error) {
	out, meta, err := s.generate(name, params, options, true)
	if err != nil {
		return "", err
	}
	s.Bubble(meta)
	return out, nil
}

// Link renders an anchor to route name. The label goes through the escape
// gate. The returned link carries the URL metadata, which bubbles when the
// link is printed.
func (s *Scope) Link(text any, name string, params any, attrs any) (render.GeneratedLink, error) {
	href, meta, err := s.generate(name, params, nil, false)
	if err != nil {
		return render.GeneratedLink{}, err
	}
	label, err := s.Escape(text, EscapeOptions{Context: markup.ContextHTML})
	if err != nil {
		return render.GeneratedLink{}, err
	}
	attr := attribute.New(attrs)
	attr.SetAttribute("href", markup.StripDangerousProtocols(href))
	return render.GeneratedLink{
		HTML:     markup.HTML("<a" + attr.String() + ">" + label + "</a>"),
		Metadata: meta,
	}, nil
}

func (s *Scope) generate(name string, params any, options any, absolute bool) (string, cache.Bubbleable, error) {
	meta := cache.NewBubbleable()
	if s.ext.urls == nil {
		return "", meta, ErrMissingURLGenerator
	}
	values, err := toParams(params)
	if err != nil {
		return "", meta, err
	}
	opts := parseURLOptions(options)
	if opts.absolute {
		absolute = true
	}

	var out string
	if gen, ok := s.ext.urls.(MetadataURLGenerator); ok {
		generated, err := gen.GenerateURL(s.ctx, name, values, absolute)
		if err != nil {
			return "", meta, err
		}
		meta = meta.Merge(generated.Metadata)
		out = generated.URL
	} else {
		out, err = s.ext.urls.Generate(s.ctx, name, values, absolute)
		if err != nil {
			return "", meta, err
		}
	}
	return opts.apply(out), meta, nil
}

// Translate wraps text for lazy translation in the scope locale.
func (s *Scope) Translate(text string, args any) markup.Translatable {
	values, _ := toParams(args)
	return markup.Translatable{
		Text:       text,
		Args:       values,
		Locale:     s.locale,
		Translator: s.ext.translator,
		OnMissing:  s.ext.onMissing,
	}
}

// CleanMarkup resolves v and sanitizes the result.
func (s *Scope) CleanMarkup(v any) (markup.HTML, error) {
	text, err := s.RenderVar(v)
	if err != nil {
		return "", err
	}
	return markup.Sanitize(text), nil
}

// resolve is the ordered dispatch behind RenderVar and Escape. safe reports
// whether text may be emitted into HTML as is.
func (s *Scope) resolve(v any) (text string, safe bool, err error) {
	switch kind := kindOf(v); kind {
	case kindEmpty:
		return "", true, nil
	case kindZero:
		return "0", true, nil
	case kindRenderable:
		return s.renderNode(v.(render.Renderable).ToRenderable())
	case kindNode:
		node, _ := render.AsNode(v)
		return s.renderNode(node)
	case kindMarkup:
		s.bubbleCarrier(v)
		m := v.(markup.Markup)
		return m.String(), m.SafeFor(markup.ContextHTML), nil
	case kindScalar:
		s.bubbleCarrier(v)
		return scalarText(v), false, nil
	case kindSequence:
		var b strings.Builder
		err := eachItem(v, func(item any) error {
			part, err := s.Escape(item, EscapeOptions{Context: markup.ContextHTML})
			if err != nil {
				return err
			}
			b.WriteString(part)
			return nil
		})
		if err != nil {
			return "", false, err
		}
		return b.String(), true, nil
	default:
		s.logger.Warn("extension: rendering unsupported value", "type", fmt.Sprintf("%T", v))
		return fmt.Sprint(v), false, nil
	}
}

func (s *Scope) renderNode(node render.Node) (string, bool, error) {
	if len(node) == 0 {
		return "", true, nil
	}
	if node.Printed() {
		text, _ := node.StoredMarkup()
		return text, true, nil
	}
	if s.ext.evaluator == nil {
		return "", false, ErrMissingEvaluator
	}

	start := time.Now()
	out, err := s.ext.evaluator.Evaluate(s.ctx, node)
	s.ext.metrics.NodeEvaluated(time.Since(start), err)
	if err != nil {
		s.logger.Warn("extension: render node evaluation failed", "type", node.Type(), "error", err)
		node.MarkPrinted("")
		return "", true, nil
	}

	s.Bubble(node.Bubbleable().Merge(out.Metadata))
	node.MarkPrinted(out.Markup)
	return out.Markup, true, nil
}

func (s *Scope) bubbleCarrier(v any) {
	if carrier, ok := v.(cache.Carrier); ok {
		s.Bubble(carrier.BubbleableMetadata())
	}
}
