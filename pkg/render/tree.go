package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// ErrTreeTooDeep is returned when a render tree nests deeper than the
// configured limit, which usually means a node contains itself.
var ErrTreeTooDeep = errors.New("render: tree nesting limit exceeded")

const defaultMaxDepth = 64

// TreeOption configures a TreeRenderer.
type TreeOption func(*treeConfig)

type treeConfig struct {
	registry *Registry
	logger   *slog.Logger
	filter   func(string) markup.HTML
	maxDepth int
}

// WithRegistry sets the element types available to "#type".
func WithRegistry(registry *Registry) TreeOption {
	return func(cfg *treeConfig) {
		if registry != nil {
			cfg.registry = registry
		}
	}
}

// WithLogger sets the logger used for degraded rendering.
func WithLogger(logger *slog.Logger) TreeOption {
	return func(cfg *treeConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMarkupFilter replaces the filter applied to string "#markup",
// "#prefix" and "#suffix" values. The default is markup.Sanitize.
func WithMarkupFilter(filter func(string) markup.HTML) TreeOption {
	return func(cfg *treeConfig) {
		if filter != nil {
			cfg.filter = filter
		}
	}
}

// WithMaxDepth bounds tree nesting.
func WithMaxDepth(depth int) TreeOption {
	return func(cfg *treeConfig) {
		if depth > 0 {
			cfg.maxDepth = depth
		}
	}
}

// TreeRenderer is the default Evaluator. It renders children in weight order,
// dispatches "#type" to registered element types and collects the metadata of
// every node it visits.
type TreeRenderer struct {
	registry *Registry
	logger   *slog.Logger
	filter   func(string) markup.HTML
	maxDepth int
}

var _ Evaluator = (*TreeRenderer)(nil)

// NewTreeRenderer builds a TreeRenderer.
func NewTreeRenderer(options ...TreeOption) *TreeRenderer {
	cfg := &treeConfig{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.filter == nil {
		cfg.filter = markup.Sanitize
	}
	if cfg.maxDepth == 0 {
		cfg.maxDepth = defaultMaxDepth
	}
	return &TreeRenderer{
		registry: cfg.registry,
		logger:   cfg.logger,
		filter:   cfg.filter,
		maxDepth: cfg.maxDepth,
	}
}

// Evaluate renders node. Children are marked printed as they are rendered;
// marking node itself is left to the caller.
func (r *TreeRenderer) Evaluate(ctx context.Context, node Node) (Output, error) {
	if node == nil {
		return Output{Metadata: cache.NewBubbleable()}, nil
	}
	return r.render(ctx, node, 0)
}

func (r *TreeRenderer) render(ctx context.Context, node Node, depth int) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if depth > r.maxDepth {
		return Output{}, ErrTreeTooDeep
	}
	if node.Printed() {
		text, _ := node.StoredMarkup()
		return Output{Markup: text, Metadata: cache.NewBubbleable()}, nil
	}

	meta := node.Bubbleable()

	var children strings.Builder
	for _, key := range node.ChildKeys() {
		raw := node[key]
		child, ok := AsNode(raw)
		// A map without properties is a plain container of children.
		container, isMap := raw.(map[string]any)
		if !ok && !isMap {
			children.WriteString(r.leafText(raw))
			continue
		}
		if !ok {
			child = Node(container)
		}
		out, err := r.render(ctx, child, depth+1)
		if err != nil {
			return Output{}, fmt.Errorf("render: child %q: %w", key, err)
		}
		if ok {
			child.MarkPrinted(out.Markup)
		}
		meta = meta.Merge(out.Metadata)
		children.WriteString(out.Markup)
	}

	body, err := r.body(ctx, node, children.String(), &meta)
	if err != nil {
		return Output{}, err
	}

	text := r.wrapper(node[KeyPrefix]) + body + r.wrapper(node[KeySuffix])
	return Output{Markup: text, Metadata: meta}, nil
}

func (r *TreeRenderer) body(ctx context.Context, node Node, children string, meta *cache.Bubbleable) (string, error) {
	if name := node.Type(); name != "" {
		element, err := r.registry.Get(name)
		if err != nil {
			r.logger.Warn("render: unknown element type, rendering children only", "type", name)
			return children, nil
		}
		out, err := element.Render(ctx, node, children)
		if err != nil {
			return "", fmt.Errorf("render: element %q: %w", name, err)
		}
		*meta = meta.Merge(out.Metadata)
		return out.Markup, nil
	}

	var b strings.Builder
	switch v := node[KeyMarkup].(type) {
	case nil:
	case markup.Markup:
		if v.SafeFor(markup.ContextHTML) {
			b.WriteString(v.String())
		} else {
			b.WriteString(string(r.filter(v.String())))
		}
	default:
		b.WriteString(string(r.filter(stringify(v))))
	}
	if raw, ok := node[KeyPlainText]; ok {
		b.WriteString(markup.EscapeHTML(stringify(raw)))
	}
	b.WriteString(children)
	return b.String(), nil
}

func (r *TreeRenderer) wrapper(v any) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(markup.Markup); ok && m.SafeFor(markup.ContextHTML) {
		return m.String()
	}
	return string(r.filter(stringify(v)))
}

func (r *TreeRenderer) leafText(v any) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(markup.Markup); ok && m.SafeFor(markup.ContextHTML) {
		return m.String()
	}
	r.logger.Debug("render: escaping non-node child", "type", fmt.Sprintf("%T", v))
	return markup.EscapeHTML(stringify(v))
}
