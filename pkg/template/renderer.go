package template

import (
	"context"
	"io"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// Result is a rendered template together with the metadata its fragments
// bubbled up while it rendered.
type Result struct {
	Markup   markup.HTML
	Metadata cache.Bubbleable
}

// TemplateRenderer is the engine contract callers render through. Every
// render runs in its own scope; the returned Result carries that scope's
// metadata.
type TemplateRenderer interface {
	Render(ctx context.Context, name string, data any, out ...io.Writer) (Result, error)
	RenderTemplate(ctx context.Context, name string, data any, out ...io.Writer) (Result, error)
	RenderString(ctx context.Context, templateContent string, data any, out ...io.Writer) (Result, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}
