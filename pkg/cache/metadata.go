// Package cache models the cacheability metadata that rendered fragments carry
// and the rules used to bubble it up into the enclosing response.
package cache

import (
	"math"
	"strconv"
)

// MaxAge is the number of seconds a fragment may be cached.
type MaxAge int

const (
	// MaxAgeUncacheable marks a fragment that must never be cached. It is
	// absorbing: any merge that includes it yields MaxAgeUncacheable.
	MaxAgeUncacheable MaxAge = -1
	// MaxAgePermanent marks a fragment without expiry. It is the identity of
	// the min rule used when merging.
	MaxAgePermanent MaxAge = math.MaxInt32
)

// Merge returns the more restrictive of the two ages. Zero means "do not
// cache" and wins over any positive age.
func (m MaxAge) Merge(other MaxAge) MaxAge {
	m, other = m.normalize(), other.normalize()
	if m == MaxAgeUncacheable || other == MaxAgeUncacheable {
		return MaxAgeUncacheable
	}
	if other < m {
		return other
	}
	return m
}

// Cacheable reports whether the age allows any caching at all.
func (m MaxAge) Cacheable() bool {
	return m.normalize() > 0
}

// normalize maps any negative value to MaxAgeUncacheable.
func (m MaxAge) normalize() MaxAge {
	if m < 0 {
		return MaxAgeUncacheable
	}
	return m
}

func (m MaxAge) String() string {
	switch m.normalize() {
	case MaxAgeUncacheable:
		return "uncacheable"
	case MaxAgePermanent:
		return "permanent"
	default:
		return strconv.Itoa(int(m.normalize()))
	}
}

// Metadata holds the cache contexts, tags and max-age of a fragment. Contexts
// and tags behave as sets that remember the order entries were first added.
// The zero MaxAge means "do not cache"; use NewMetadata for metadata that
// does not restrict caching.
type Metadata struct {
	Contexts []string
	Tags     []string
	MaxAge   MaxAge
}

// NewMetadata returns empty, permanently cacheable metadata.
func NewMetadata() Metadata {
	return Metadata{MaxAge: MaxAgePermanent}
}

// WithTags returns a copy of m with the tags added.
func (m Metadata) WithTags(tags ...string) Metadata {
	out := m.clone()
	out.Tags = union(out.Tags, tags)
	return out
}

// WithContexts returns a copy of m with the contexts added.
func (m Metadata) WithContexts(contexts ...string) Metadata {
	out := m.clone()
	out.Contexts = union(out.Contexts, contexts)
	return out
}

// WithMaxAge returns a copy of m whose max-age is tightened to age.
func (m Metadata) WithMaxAge(age MaxAge) Metadata {
	out := m.clone()
	out.MaxAge = out.MaxAge.Merge(age)
	return out
}

// Merge combines two metadata values: contexts and tags are unioned (the
// receiver's entries first) and the more restrictive max-age wins.
func (m Metadata) Merge(other Metadata) Metadata {
	return Metadata{
		Contexts: union(m.Contexts, other.Contexts),
		Tags:     union(m.Tags, other.Tags),
		MaxAge:   m.MaxAge.Merge(other.MaxAge),
	}
}

// IsEmpty reports whether m carries no contexts, no tags and no expiry.
func (m Metadata) IsEmpty() bool {
	return len(m.Contexts) == 0 && len(m.Tags) == 0 && m.MaxAge == MaxAgePermanent
}

func (m Metadata) clone() Metadata {
	return Metadata{
		Contexts: append([]string(nil), m.Contexts...),
		Tags:     append([]string(nil), m.Tags...),
		MaxAge:   m.MaxAge.normalize(),
	}
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
