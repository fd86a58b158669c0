// Package activetheme resolves the theme a request renders with and exposes
// its name and base path to templates.
package activetheme

import (
	"context"
	"errors"
	"fmt"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// ErrNoActiveTheme is returned when no theme could be selected.
var ErrNoActiveTheme = errors.New("activetheme: no active theme")

// Theme is the active theme as seen by templates.
type Theme struct {
	Name    string
	Variant string
	Path    string
}

// Manager returns the theme active for the current request.
type Manager interface {
	ActiveTheme(ctx context.Context) (Theme, error)
}

// Static always returns the same theme.
type Static Theme

// ActiveTheme implements Manager.
func (s Static) ActiveTheme(context.Context) (Theme, error) {
	if strings.TrimSpace(s.Name) == "" {
		return Theme{}, ErrNoActiveTheme
	}
	return Theme(s), nil
}

type contextKey struct{}

// WithTheme stores a per-request theme override on ctx.
func WithTheme(ctx context.Context, name, variant string) context.Context {
	return context.WithValue(ctx, contextKey{}, Theme{Name: name, Variant: variant})
}

func fromContext(ctx context.Context) (Theme, bool) {
	if ctx == nil {
		return Theme{}, false
	}
	t, ok := ctx.Value(contextKey{}).(Theme)
	return t, ok && t.Name != ""
}

// SelectorManager resolves the active theme through a go-theme selector. A
// theme requested with WithTheme takes precedence over the defaults.
type SelectorManager struct {
	selector       theme.ThemeSelector
	defaultTheme   string
	defaultVariant string
}

// NewSelectorManager builds a Manager backed by selector.
func NewSelectorManager(selector theme.ThemeSelector, defaultTheme, defaultVariant string) *SelectorManager {
	return &SelectorManager{
		selector:       selector,
		defaultTheme:   strings.TrimSpace(defaultTheme),
		defaultVariant: strings.TrimSpace(defaultVariant),
	}
}

// ActiveTheme implements Manager.
func (m *SelectorManager) ActiveTheme(ctx context.Context) (Theme, error) {
	if m == nil || m.selector == nil {
		return Theme{}, ErrNoActiveTheme
	}
	name, variant := m.defaultTheme, m.defaultVariant
	if requested, ok := fromContext(ctx); ok {
		name, variant = requested.Name, requested.Variant
	}

	selection, err := m.selector.Select(name, variant)
	if err != nil {
		return Theme{}, fmt.Errorf("activetheme: select %q: %w", name, err)
	}
	if selection == nil || strings.TrimSpace(selection.Theme) == "" {
		return Theme{}, ErrNoActiveTheme
	}
	return Theme{
		Name:    selection.Theme,
		Variant: selection.Variant,
		Path:    pathOf(selection),
	}, nil
}

// pathOf prefers the manifest asset prefix and falls back to themes/<name>.
func pathOf(selection *theme.Selection) string {
	if selection.Manifest != nil {
		if prefix := strings.TrimSpace(selection.Manifest.Assets.Prefix); prefix != "" {
			return strings.TrimPrefix(strings.TrimSuffix(prefix, "/"), "/")
		}
	}
	return "themes/" + selection.Theme
}
