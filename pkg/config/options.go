package config

import (
	"fmt"
	"log/slog"

	"github.com/flosch/pongo2/v6"
	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-renderbridge/pkg/activetheme"
	"github.com/goliatone/go-renderbridge/pkg/datetime"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/safety"
	"github.com/goliatone/go-renderbridge/pkg/template/pongo"
	"github.com/goliatone/go-renderbridge/pkg/urlgen"
)

// Classifier builds the trusted-function classifier. Configured functions
// are added to the defaults.
func (c Config) Classifier() *safety.Classifier {
	options := make([]safety.Option, 0, len(c.Trusted))
	for _, fn := range c.Trusted {
		options = append(options, safety.WithTrustedFunction(fn.Name, fn.Params...))
	}
	return safety.NewClassifier(options...)
}

// ThemeManager resolves the active theme from the configured manifests, or
// from the default theme alone when none are listed. It returns nil when no
// theme is configured.
func (c Config) ThemeManager() (extension.ThemeManager, error) {
	if len(c.Theme.Themes) == 0 {
		if c.Theme.Default == "" {
			return nil, nil
		}
		return activetheme.Static{
			Name:    c.Theme.Default,
			Variant: c.Theme.Variant,
			Path:    "themes/" + c.Theme.Default,
		}, nil
	}

	fallback := c.Theme.Default
	if fallback == "" {
		fallback = c.Theme.Themes[0].Name
	}
	selector := activetheme.NewManifestSelector(fallback)
	for _, entry := range c.Theme.Themes {
		manifest := &theme.Manifest{
			Name:     entry.Name,
			Version:  entry.Version,
			Assets:   theme.Assets{Prefix: entry.Path},
			Variants: make(map[string]theme.Variant, len(entry.Variants)),
		}
		for _, variant := range entry.Variants {
			manifest.Variants[variant] = theme.Variant{}
		}
		if err := selector.Register(manifest); err != nil {
			return nil, fmt.Errorf("config: theme %q: %w", entry.Name, err)
		}
	}
	return activetheme.NewSelectorManager(selector, fallback, c.Theme.Variant), nil
}

// DateFormatter builds the format_date backend.
func (c Config) DateFormatter() (*datetime.Formatter, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	options := []datetime.Option{datetime.WithLocation(loc)}
	for name, pattern := range c.Dates.Types {
		options = append(options, datetime.WithType(name, pattern))
	}
	return datetime.New(options...), nil
}

// URLGenerator builds the route table for path() and url().
func (c Config) URLGenerator() *urlgen.Generator {
	return urlgen.New(
		urlgen.WithBaseURL(c.URLs.BaseURL),
		urlgen.WithRoutes(c.URLs.Routes),
	)
}

// Evaluator builds the render tree evaluator with the configured sanitiser.
func (c Config) Evaluator(logger *slog.Logger) *render.TreeRenderer {
	return render.NewTreeRenderer(
		render.WithLogger(logger),
		render.WithMarkupFilter(markup.NewSanitizer(c.Markup.AllowedElements...)),
	)
}

// ExtensionOptions turns the configuration into extension options. Extra
// options are applied last and win.
func (c Config) ExtensionOptions(logger *slog.Logger, extra ...extension.Option) ([]extension.Option, error) {
	escapeContext, err := markup.ParseContext(c.Escape.Context)
	if err != nil {
		return nil, fmt.Errorf("config: escape.context: %w", err)
	}
	dates, err := c.DateFormatter()
	if err != nil {
		return nil, err
	}
	themes, err := c.ThemeManager()
	if err != nil {
		return nil, err
	}

	options := []extension.Option{
		extension.WithEvaluator(c.Evaluator(logger)),
		extension.WithDateFormatter(dates),
		extension.WithURLGenerator(c.URLGenerator()),
		extension.WithClassifier(c.Classifier()),
		extension.WithCharset(c.Escape.Charset),
		extension.WithDefaultContext(escapeContext),
		extension.WithLocale(c.Locale),
		extension.WithLogger(logger),
	}
	if themes != nil {
		options = append(options, extension.WithThemeManager(themes))
	}
	return append(options, extra...), nil
}

// EngineOptions turns the template settings into engine options. The first
// directory is the base directory; the rest are searched after it.
func (c Config) EngineOptions(bridge *extension.Extension, logger *slog.Logger) ([]pongo.Option, error) {
	options := []pongo.Option{
		pongo.WithBridge(bridge),
		pongo.WithLogger(logger),
		pongo.WithExtension(c.Templates.Extension),
		pongo.WithDebug(c.Templates.Debug),
	}
	for i, dir := range c.Templates.Dirs {
		if i == 0 {
			options = append(options, pongo.WithBaseDir(dir))
			continue
		}
		loader, err := pongo2.NewLocalFileSystemLoader(dir)
		if err != nil {
			return nil, fmt.Errorf("config: templates.dirs[%d]: %w", i, err)
		}
		options = append(options, pongo.WithLoader(loader))
	}
	return options, nil
}
