package instrument

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/template"
)

const defaultTracerName = "renderbridge"

// TraceConfig configures the tracing wrappers.
type TraceConfig struct {
	// TracerName is the instrumentation name (default: "renderbridge").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider
}

// TraceOption configures a tracing wrapper.
type TraceOption func(*TraceConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TraceOption {
	return func(c *TraceConfig) {
		if name != "" {
			c.TracerName = name
		}
	}
}

// WithTracerProvider sets the provider tracers are taken from.
func WithTracerProvider(provider trace.TracerProvider) TraceOption {
	return func(c *TraceConfig) {
		if provider != nil {
			c.Provider = provider
		}
	}
}

func newTracer(opts []TraceOption) trace.Tracer {
	config := TraceConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	if config.Provider == nil {
		return otel.Tracer(config.TracerName)
	}
	return config.Provider.Tracer(config.TracerName)
}

// TraceEvaluator wraps next so every node evaluation runs in a span.
func TraceEvaluator(next render.Evaluator, opts ...TraceOption) render.Evaluator {
	tracer := newTracer(opts)
	return render.EvaluatorFunc(func(ctx context.Context, node render.Node) (render.Output, error) {
		nodeType := node.Type()
		if nodeType == "" {
			nodeType = "markup"
		}
		ctx, span := tracer.Start(ctx, "renderbridge.evaluate",
			trace.WithAttributes(attribute.String("renderbridge.node.type", nodeType)),
		)
		defer span.End()

		out, err := next.Evaluate(ctx, node)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		span.SetAttributes(metadataAttributes(out.Metadata)...)
		return out, nil
	})
}

// TracedRenderer wraps a template.TemplateRenderer with one span per render.
type TracedRenderer struct {
	next   template.TemplateRenderer
	tracer trace.Tracer
}

var _ template.TemplateRenderer = (*TracedRenderer)(nil)

// TraceRenderer returns a TracedRenderer around next.
func TraceRenderer(next template.TemplateRenderer, opts ...TraceOption) *TracedRenderer {
	return &TracedRenderer{next: next, tracer: newTracer(opts)}
}

// Render implements template.TemplateRenderer.
func (r *TracedRenderer) Render(ctx context.Context, name string, data any, out ...io.Writer) (template.Result, error) {
	return r.trace(ctx, "renderbridge.render", name, func(ctx context.Context) (template.Result, error) {
		return r.next.Render(ctx, name, data, out...)
	})
}

// RenderTemplate implements template.TemplateRenderer.
func (r *TracedRenderer) RenderTemplate(ctx context.Context, name string, data any, out ...io.Writer) (template.Result, error) {
	return r.trace(ctx, "renderbridge.render_template", name, func(ctx context.Context) (template.Result, error) {
		return r.next.RenderTemplate(ctx, name, data, out...)
	})
}

// RenderString implements template.TemplateRenderer. The template source is
// not recorded.
func (r *TracedRenderer) RenderString(ctx context.Context, templateContent string, data any, out ...io.Writer) (template.Result, error) {
	return r.trace(ctx, "renderbridge.render_string", "", func(ctx context.Context) (template.Result, error) {
		return r.next.RenderString(ctx, templateContent, data, out...)
	})
}

// RegisterFilter implements template.TemplateRenderer.
func (r *TracedRenderer) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	return r.next.RegisterFilter(name, fn)
}

// GlobalContext implements template.TemplateRenderer.
func (r *TracedRenderer) GlobalContext(data any) error {
	return r.next.GlobalContext(data)
}

func (r *TracedRenderer) trace(ctx context.Context, spanName, templateName string, fn func(context.Context) (template.Result, error)) (template.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var attrs []attribute.KeyValue
	if templateName != "" {
		attrs = append(attrs, attribute.String("renderbridge.template", templateName))
	}
	ctx, span := r.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
	defer span.End()

	result, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(metadataAttributes(result.Metadata)...)
	span.SetAttributes(attribute.Int("renderbridge.output.bytes", len(result.Markup)))
	return result, nil
}

func metadataAttributes(b cache.Bubbleable) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.StringSlice("renderbridge.cache.tags", b.Metadata.Tags),
		attribute.StringSlice("renderbridge.cache.contexts", b.Metadata.Contexts),
		attribute.String("renderbridge.cache.max_age", b.Metadata.MaxAge.String()),
	}
}
