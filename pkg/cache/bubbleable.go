package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// Bubbleable is the metadata a fragment hands to its container: cache
// metadata plus asset attachments.
type Bubbleable struct {
	Metadata
	Attachments Attachments
}

// NewBubbleable returns empty, permanently cacheable bubbleable metadata.
func NewBubbleable() Bubbleable {
	return Bubbleable{Metadata: NewMetadata()}
}

// Merge combines b and other according to the Metadata and Attachments merge
// rules.
func (b Bubbleable) Merge(other Bubbleable) Bubbleable {
	return Bubbleable{
		Metadata:    b.Metadata.Merge(other.Metadata),
		Attachments: b.Attachments.Merge(other.Attachments),
	}
}

// IsEmpty reports whether merging b would change nothing.
func (b Bubbleable) IsEmpty() bool {
	return b.Metadata.IsEmpty() && len(b.Attachments) == 0
}

// Carrier is implemented by values that carry bubbleable metadata of their
// own, such as generated links.
type Carrier interface {
	BubbleableMetadata() Bubbleable
}

// ParseMetadata converts the loose shapes found under a render node's
// "#cache" key: a Metadata value or a map with "contexts", "tags" and
// "max-age" entries. A map without "max-age" is permanently cacheable while
// an explicit zero means "do not cache". ok is false when raw has none of
// these shapes.
func ParseMetadata(raw any) (Metadata, bool) {
	switch v := raw.(type) {
	case nil:
		return Metadata{}, false
	case Metadata:
		return v.clone(), true
	case *Metadata:
		if v == nil {
			return Metadata{}, false
		}
		return v.clone(), true
	case map[string]any:
		out := NewMetadata()
		out.Contexts = stringList(v["contexts"])
		out.Tags = stringList(v["tags"])
		if age, ok := parseMaxAge(v["max-age"]); ok {
			out.MaxAge = age
		}
		return out, true
	default:
		return Metadata{}, false
	}
}

func parseMaxAge(raw any) (MaxAge, bool) {
	switch v := raw.(type) {
	case MaxAge:
		return v, true
	case int:
		return MaxAge(v), true
	case int64:
		return MaxAge(v), true
	case float64:
		return MaxAge(int(v)), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return MaxAge(n), true
	default:
		return 0, false
	}
}

// GoString keeps test failure output readable.
func (b Bubbleable) GoString() string {
	return fmt.Sprintf("cache.Bubbleable{Contexts:%q Tags:%q MaxAge:%s Attachments:%q}",
		b.Contexts, b.Tags, b.MaxAge, b.Attachments.String())
}
