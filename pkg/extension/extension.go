// Package extension is the runtime half of the rendering bridge. An
// Extension holds the collaborators templates reach through (evaluator,
// theme manager, date formatter, URL generator, translator); a Scope is the
// per-render accumulator that resolves values, escapes them and bubbles
// cache metadata.
package extension

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/goliatone/go-renderbridge/pkg/activetheme"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
	"github.com/goliatone/go-renderbridge/pkg/safety"
)

var (
	ErrMissingEvaluator     = errors.New("extension: render evaluator not configured")
	ErrMissingThemeManager  = errors.New("extension: theme manager not configured")
	ErrMissingDateFormatter = errors.New("extension: date formatter not configured")
	ErrMissingURLGenerator  = errors.New("extension: url generator not configured")
)

// URLGenerator builds URLs for named routes.
type URLGenerator interface {
	Generate(ctx context.Context, name string, params map[string]any, absolute bool) (string, error)
}

// MetadataURLGenerator is implemented by generators that report the cache
// metadata of the URLs they build. Scopes prefer it over URLGenerator.
type MetadataURLGenerator interface {
	GenerateURL(ctx context.Context, name string, params map[string]any, absolute bool) (render.GeneratedURL, error)
}

// ThemeManager returns the active theme.
type ThemeManager interface {
	ActiveTheme(ctx context.Context) (activetheme.Theme, error)
}

// DateFormatter renders timestamps.
type DateFormatter interface {
	Format(ts int64, format string) (string, error)
}

// Option configures an Extension.
type Option func(*Extension)

// WithEvaluator sets the render tree evaluator.
func WithEvaluator(evaluator render.Evaluator) Option {
	return func(e *Extension) {
		e.evaluator = evaluator
	}
}

// WithThemeManager sets the theme manager behind active_theme().
func WithThemeManager(manager ThemeManager) Option {
	return func(e *Extension) {
		e.themes = manager
	}
}

// WithDateFormatter sets the formatter behind format_date.
func WithDateFormatter(formatter DateFormatter) Option {
	return func(e *Extension) {
		e.dates = formatter
	}
}

// WithURLGenerator sets the generator behind path() and url().
func WithURLGenerator(generator URLGenerator) Option {
	return func(e *Extension) {
		e.urls = generator
	}
}

// WithTranslator sets the translator behind t().
func WithTranslator(translator markup.Translator, onMissing markup.MissingTranslationHandler) Option {
	return func(e *Extension) {
		e.translator = translator
		e.onMissing = onMissing
	}
}

// WithLocale sets the default locale for t().
func WithLocale(locale string) Option {
	return func(e *Extension) {
		e.locale = strings.TrimSpace(locale)
	}
}

// WithClassifier replaces the compile-time classifier.
func WithClassifier(classifier *safety.Classifier) Option {
	return func(e *Extension) {
		if classifier != nil {
			e.classifier = classifier
		}
	}
}

// WithCharset sets the charset escaped input is decoded from.
func WithCharset(charset string) Option {
	return func(e *Extension) {
		e.charset = strings.TrimSpace(charset)
	}
}

// WithDefaultContext sets the context autoescape targets when a print names
// none. The default is markup.ContextHTML.
func WithDefaultContext(c markup.Context) Option {
	return func(e *Extension) {
		if c != "" {
			e.context = c
		}
	}
}

// WithLogger sets the logger used for degraded values.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics installs a metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(e *Extension) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// Extension holds template collaborators. It is immutable after New and safe
// for concurrent use; per-render state lives in Scope.
type Extension struct {
	evaluator  render.Evaluator
	themes     ThemeManager
	dates      DateFormatter
	urls       URLGenerator
	translator markup.Translator
	onMissing  markup.MissingTranslationHandler
	locale     string
	classifier *safety.Classifier
	charset    string
	context    markup.Context
	logger     *slog.Logger
	metrics    Metrics
}

// New builds an Extension.
func New(options ...Option) *Extension {
	e := &Extension{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = safety.NewClassifier()
	}
	if e.context == "" {
		e.context = markup.ContextHTML
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	return e
}

// Classifier returns the compile-time classifier used for trusted calls.
func (e *Extension) Classifier() *safety.Classifier {
	return e.classifier
}

// Logger returns the extension logger.
func (e *Extension) Logger() *slog.Logger {
	return e.logger
}
