// Package urlgen generates URLs from named route patterns such as
// "/node/{node}". Parameters not consumed by the pattern become the query
// string.
package urlgen

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

var (
	// ErrRouteNotFound is returned for unknown route names.
	ErrRouteNotFound = errors.New("urlgen: route not found")
	// ErrMissingParameter is returned when a pattern placeholder has no value.
	ErrMissingParameter = errors.New("urlgen: missing route parameter")
)

// Option configures a Generator.
type Option func(*Generator)

// WithBaseURL sets the scheme and host used for absolute URLs.
func WithBaseURL(base string) Option {
	return func(g *Generator) {
		g.base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	}
}

// WithRoute registers a route pattern.
func WithRoute(name, pattern string) Option {
	return func(g *Generator) {
		_ = g.Register(name, pattern)
	}
}

// WithRoutes registers several route patterns.
func WithRoutes(routes map[string]string) Option {
	return func(g *Generator) {
		for name, pattern := range routes {
			_ = g.Register(name, pattern)
		}
	}
}

// Generator resolves named routes. It is safe for concurrent use.
type Generator struct {
	mu     sync.RWMutex
	routes map[string]string
	base   string
}

// New builds a Generator.
func New(options ...Option) *Generator {
	g := &Generator{routes: make(map[string]string)}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(g)
	}
	return g
}

// Register adds or replaces a route.
func (g *Generator) Register(name, pattern string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("urlgen: route name is required")
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[name] = pattern
	return nil
}

// Routes returns the registered route names.
func (g *Generator) Routes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.routes))
	for name := range g.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate builds the URL for route name.
func (g *Generator) Generate(ctx context.Context, name string, params map[string]any, absolute bool) (string, error) {
	generated, err := g.GenerateURL(ctx, name, params, absolute)
	if err != nil {
		return "", err
	}
	return generated.URL, nil
}

// GenerateURL builds the URL for route name together with the cache metadata
// the URL depends on.
func (g *Generator) GenerateURL(_ context.Context, name string, params map[string]any, absolute bool) (render.GeneratedURL, error) {
	g.mu.RLock()
	pattern, ok := g.routes[name]
	base := g.base
	g.mu.RUnlock()
	if !ok {
		return render.GeneratedURL{}, fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}

	used := make(map[string]struct{})
	var b strings.Builder
	rest := pattern
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		key := rest[open+1 : open+end]
		value, ok := params[key]
		if !ok || value == nil {
			return render.GeneratedURL{}, fmt.Errorf("%w: %q for route %q", ErrMissingParameter, key, name)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(fmt.Sprint(value)))
		used[key] = struct{}{}
		rest = rest[open+end+1:]
	}

	query := url.Values{}
	for key, value := range params {
		if _, consumed := used[key]; consumed || value == nil {
			continue
		}
		query.Set(key, fmt.Sprint(value))
	}
	out := b.String()
	if encoded := query.Encode(); encoded != "" {
		out += "?" + encoded
	}

	meta := cache.NewBubbleable()
	if absolute {
		out = base + out
		meta.Metadata = meta.Metadata.WithContexts("url.site")
	}
	return render.GeneratedURL{URL: out, Metadata: meta}, nil
}
