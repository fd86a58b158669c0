package renderbridge

import (
	"context"
	"embed"
	"log/slog"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/config"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/template"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
)

// Result is rendered markup plus the metadata bubbled while rendering.
type Result = template.Result

// TemplateRenderer is the engine contract.
type TemplateRenderer = template.TemplateRenderer

// HTML is markup that is already safe for an HTML context.
type HTML = markup.HTML

// Metadata is the bubbleable cache metadata and attachments of a render.
type Metadata = cache.Bubbleable

// NewExtension builds the safety bridge the engine renders through.
func NewExtension(options ...extension.Option) *extension.Extension {
	return extension.New(options...)
}

// NewEngine builds a pongo2 engine. Pass WithBridge to share an extension
// between engines; otherwise one with default services is created.
func NewEngine(options ...pongo.Option) (*pongo.Engine, error) {
	return pongo.New(options...)
}

// NewEngineFromConfig wires an extension and engine from cfg. Extra options
// are applied after the configured ones.
func NewEngineFromConfig(cfg config.Config, logger *slog.Logger, extOptions []extension.Option, engineOptions ...pongo.Option) (*pongo.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options, err := cfg.ExtensionOptions(logger, extOptions...)
	if err != nil {
		return nil, err
	}
	base, err := cfg.EngineOptions(extension.New(options...), logger)
	if err != nil {
		return nil, err
	}
	return pongo.New(append(base, engineOptions...)...)
}

// noTemplates backs engines that only render inline sources.
var noTemplates embed.FS

// RenderString renders source with a throwaway engine. Named includes resolve
// only through loaders passed in options.
func RenderString(ctx context.Context, source string, data any, options ...pongo.Option) (Result, error) {
	engine, err := pongo.New(append([]pongo.Option{pongo.WithFS(noTemplates)}, options...)...)
	if err != nil {
		return Result{}, err
	}
	return engine.RenderString(ctx, source, data)
}
