package activetheme

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	theme "github.com/goliatone/go-theme"
)

// ManifestSelector is a theme.ThemeSelector over manifests held in memory,
// typically loaded from configuration.
type ManifestSelector struct {
	mu        sync.RWMutex
	manifests map[string]*theme.Manifest
	fallback  string
}

var _ theme.ThemeSelector = (*ManifestSelector)(nil)

// NewManifestSelector returns a selector that answers unknown or empty theme
// names with fallback.
func NewManifestSelector(fallback string) *ManifestSelector {
	return &ManifestSelector{
		manifests: make(map[string]*theme.Manifest),
		fallback:  strings.TrimSpace(fallback),
	}
}

// Register adds manifest under its Name. Duplicate names return an error.
func (s *ManifestSelector) Register(manifest *theme.Manifest) error {
	if manifest == nil || strings.TrimSpace(manifest.Name) == "" {
		return fmt.Errorf("activetheme: manifest name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.manifests[manifest.Name]; exists {
		return fmt.Errorf("activetheme: theme %q already registered", manifest.Name)
	}
	s.manifests[manifest.Name] = manifest
	return nil
}

// Names lists registered themes.
func (s *ManifestSelector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select implements theme.ThemeSelector. Unknown variants resolve to the
// base theme.
func (s *ManifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	manifest, ok := s.manifests[name]
	if !ok {
		manifest, ok = s.manifests[s.fallback]
		if !ok {
			return nil, fmt.Errorf("activetheme: theme %q not registered", name)
		}
		name = s.fallback
	}
	if _, known := manifest.Variants[variant]; !known {
		variant = ""
	}
	return &theme.Selection{Theme: name, Variant: variant, Manifest: manifest}, nil
}
