// Package pongo hosts Twig-flavoured templates on a pongo2 template set.
// Sources are lowered by the Compiler on load so every print tag passes the
// escape gate, and each render runs inside an extension.Scope whose metadata
// is returned with the markup.
package pongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	loaders    []pongo2.TemplateLoader
	extension  string
	templateFn map[string]any
	globalData map[string]any
	bridge     *extension.Extension
	logger     *slog.Logger
	debug      bool
}

// WithBaseDir loads templates from a base directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithLoader adds a custom pongo2 loader, such as an object store.
func WithLoader(loader pongo2.TemplateLoader) Option {
	return func(cfg *config) {
		if loader != nil {
			cfg.loaders = append(cfg.loaders, loader)
		}
	}
}

// WithExtension overrides the template file extension appended to names.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithTemplateFunc registers helper functions or filters when the engine loads.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.templateFn == nil {
			cfg.templateFn = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.templateFn[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds global context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithBridge sets the extension renders are scoped to. Without it the engine
// uses extension.New() with no collaborators.
func WithBridge(ext *extension.Extension) Option {
	return func(cfg *config) {
		cfg.bridge = ext
	}
}

// WithLogger sets the engine logger. Defaults to the bridge logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDebug disables template caching so edits show up on the next render.
func WithDebug(debug bool) Option {
	return func(cfg *config) {
		cfg.debug = debug
	}
}

// Engine satisfies template.TemplateRenderer on a pongo2 template set.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
	compiler    *Compiler
	bridge      *extension.Extension
	logger      *slog.Logger
	debug       bool
	baseDir     string
}

var _ template.TemplateRenderer = (*Engine)(nil)

// New constructs an Engine using the provided configuration options.
func New(options ...Option) (*Engine, error) {
	cfg := &config{
		extension: ".twig",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" && cfg.templates == nil && len(cfg.loaders) == 0 {
		return nil, errors.New("pongo: need to provide a base dir, fs.FS or loader")
	}
	if cfg.bridge == nil {
		cfg.bridge = extension.New(extension.WithLogger(cfg.logger))
	}
	if cfg.logger == nil {
		cfg.logger = cfg.bridge.Logger()
	}
	compiler := NewCompiler(cfg.bridge.Classifier())

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("pongo: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	loaders = append(loaders, cfg.loaders...)
	for i, loader := range loaders {
		loaders[i] = &compilingLoader{inner: loader, compiler: compiler}
	}

	engine := &Engine{
		templateSet: pongo2.NewSet("renderbridge", loaders...),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
		compiler:    compiler,
		bridge:      cfg.bridge,
		logger:      cfg.logger,
		debug:       cfg.debug,
		baseDir:     cfg.baseDir,
	}
	engine.templateSet.Debug = cfg.debug
	engine.templateSet.Globals.Update(helperGlobals())
	engine.templateSet.Globals[nullName] = nil
	registerDefaultFilters()

	if err := engine.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("pongo: apply global data: %w", err)
	}
	for name, fn := range cfg.templateFn {
		if err := engine.registerTemplateFunc(name, fn); err != nil {
			return nil, fmt.Errorf("pongo: register template func %q: %w", name, err)
		}
	}

	return engine, nil
}

// Compiler returns the compile pass templates are loaded through.
func (e *Engine) Compiler() *Compiler {
	return e.compiler
}

// Bridge returns the extension renders are scoped to.
func (e *Engine) Bridge() *extension.Extension {
	return e.bridge
}

// Render renders inline template content or a named template.
func (e *Engine) Render(ctx context.Context, name string, data any, out ...io.Writer) (template.Result, error) {
	if isTemplateContent(name) {
		return e.RenderString(ctx, name, data, out...)
	}
	return e.RenderTemplate(ctx, name, data, out...)
}

// RenderTemplate renders the named template in a fresh scope.
func (e *Engine) RenderTemplate(ctx context.Context, name string, data any, out ...io.Writer) (template.Result, error) {
	scope := e.bridge.NewScope(ctx)
	rendered, err := e.RenderTemplateIn(scope, name, data, out...)
	if err != nil {
		return template.Result{}, err
	}
	return template.Result{Markup: markup.HTML(rendered), Metadata: scope.Close()}, nil
}

// RenderString renders inline template content in a fresh scope.
func (e *Engine) RenderString(ctx context.Context, templateContent string, data any, out ...io.Writer) (template.Result, error) {
	scope := e.bridge.NewScope(ctx)
	rendered, err := e.RenderStringIn(scope, templateContent, data, out...)
	if err != nil {
		return template.Result{}, err
	}
	return template.Result{Markup: markup.HTML(rendered), Metadata: scope.Close()}, nil
}

// RenderTemplateIn renders the named template inside an existing scope, so
// several fragments can share one metadata accumulator. The caller closes
// the scope.
func (e *Engine) RenderTemplateIn(scope *extension.Scope, name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}
	templatePath := name
	if !strings.HasSuffix(templatePath, e.tplExt) {
		templatePath += e.tplExt
	}

	tmpl, err := e.getTemplate(templatePath)
	if err != nil {
		return "", err
	}
	rendered, err := e.execute(scope, tmpl, data)
	if err != nil {
		return "", fmt.Errorf("pongo: execute template %q: %w", templatePath, err)
	}
	return rendered, writeAll(rendered, out)
}

// RenderStringIn renders inline template content inside an existing scope.
func (e *Engine) RenderStringIn(scope *extension.Scope, templateContent string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("pongo: engine is nil")
	}
	compiled, err := e.compiler.Compile(templateContent)
	if err != nil {
		return "", err
	}
	tmpl, err := e.templateSet.FromString(compiled)
	if err != nil {
		return "", fmt.Errorf("pongo: parse template string: %w", err)
	}
	rendered, err := e.execute(scope, tmpl, data)
	if err != nil {
		return "", fmt.Errorf("pongo: execute template string: %w", err)
	}
	return rendered, writeAll(rendered, out)
}

func (e *Engine) execute(scope *extension.Scope, tmpl *pongo2.Template, data any) (string, error) {
	viewContext, err := convertToContext(data)
	if err != nil {
		return "", fmt.Errorf("convert data: %w", err)
	}
	viewContext.Update(scopeContext(scope))

	var buf bytes.Buffer
	e.mu.RLock()
	err = tmpl.ExecuteWriter(viewContext, &buf)
	e.mu.RUnlock()
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeAll(rendered string, out []io.Writer) error {
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFilter registers a template filter. Filters are available to
// templates through the filter syntax and escape like any other value.
func (e *Engine) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("pongo: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "custom_filter", OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(name) {
		return fmt.Errorf("pongo: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, filter)
}

// GlobalContext seeds global data on the template set.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("pongo: engine is nil")
	}
	if data == nil {
		return nil
	}

	globalCtx, err := convertToContext(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templateSet.Globals.Update(globalCtx)
	return nil
}

// Reset drops every cached template.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = make(map[string]*pongo2.Template)
	e.templateSet.CleanCache()
}

func (e *Engine) registerTemplateFunc(name string, fn any) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return nil
	}

	if filter, ok := fn.(pongo2.FilterFunction); ok {
		if pongo2.FilterExists(trimmed) {
			return nil
		}
		return pongo2.RegisterFilter(trimmed, filter)
	}

	if !isCallable(fn) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templateSet.Globals[trimmed] = fn
	return nil
}

func (e *Engine) getTemplate(path string) (*pongo2.Template, error) {
	if e.debug {
		tmpl, err := e.templateSet.FromFile(path)
		if err != nil {
			return nil, fmt.Errorf("pongo: load template %q: %w", path, err)
		}
		return tmpl, nil
	}

	e.mu.RLock()
	if tmpl, ok := e.templates[path]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}

	tmpl, err := e.templateSet.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("pongo: load template %q: %w", path, err)
	}

	e.templates[path] = tmpl
	return tmpl, nil
}

// compilingLoader lowers template sources as pongo2 reads them, so includes
// and extends pass through the compile pass too.
type compilingLoader struct {
	inner    pongo2.TemplateLoader
	compiler *Compiler
}

func (l *compilingLoader) Abs(base, name string) string {
	return l.inner.Abs(base, name)
}

func (l *compilingLoader) Get(path string) (io.Reader, error) {
	r, err := l.inner.Get(path)
	if err != nil {
		return nil, err
	}
	src, err := io.ReadAll(r)
	if closer, ok := r.(io.Closer); ok {
		closer.Close()
	}
	if err != nil {
		return nil, err
	}
	compiled, err := l.compiler.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("pongo: compile %q: %w", path, err)
	}
	return strings.NewReader(compiled), nil
}

func isTemplateContent(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}

var contextKey = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// convertToContext keeps values as they are so markup, render nodes and
// attribute objects reach the escape gate with their types. Structs
// contribute their exported fields, named by json tag when present.
func convertToContext(data any) (pongo2.Context, error) {
	var in map[string]any
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		in = v
	case map[string]any:
		in = v
	default:
		fields, err := structFields(data)
		if err != nil {
			return nil, err
		}
		in = fields
	}

	out := make(pongo2.Context, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !contextKey.MatchString(key) {
			return nil, fmt.Errorf("pongo: invalid context key %q", key)
		}
		out[key] = value
	}
	return out, nil
}

func structFields(data any) (map[string]any, error) {
	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return map[string]any{}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("pongo: template data must be a map or struct, got %T", data)
	}
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, _, _ := strings.Cut(field.Tag.Get("json"), ","); tag != "" {
			if tag == "-" {
				continue
			}
			name = tag
		}
		out[name] = rv.Field(i).Interface()
	}
	return out, nil
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("lowerfirst") {
		_ = pongo2.RegisterFilter("lowerfirst", filterLowerFirst)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	t := in.String()
	start := strings.IndexFunc(t, func(r rune) bool { return !strings.ContainsRune(" \t\n\r", r) })
	if start < 0 {
		return pongo2.AsValue(t), nil
	}
	r, size := utf8.DecodeRuneInString(t[start:])
	return pongo2.AsValue(t[:start] + strings.ToLower(string(r)) + t[start+size:]), nil
}
