// Package render models lazily evaluated render trees: nested maps whose
// "#"-prefixed keys are properties and whose remaining keys are children.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// Reserved node properties.
const (
	KeyMarkup    = "#markup"
	KeyPlainText = "#plain_text"
	KeyType      = "#type"
	KeyCache     = "#cache"
	KeyAttached  = "#attached"
	KeyPrinted   = "#printed"
	KeyPrefix    = "#prefix"
	KeySuffix    = "#suffix"
	KeyWeight    = "#weight"
	KeyChildren  = "#children"
)

// Node is a render tree node. A node is evaluated at most once per request:
// once printed it carries its final text under KeyMarkup.
type Node map[string]any

// Renderable is implemented by domain objects that can describe themselves as
// a render node.
type Renderable interface {
	ToRenderable() Node
}

// Sequence is implemented by collections that expose their items in order.
type Sequence interface {
	Items() []any
}

// IsProperty reports whether key names a property rather than a child.
func IsProperty(key string) bool {
	return strings.HasPrefix(key, "#")
}

// HasProperties reports whether m has at least one property key. Only such
// maps are render nodes; any other map is plain data.
func HasProperties(m map[string]any) bool {
	for key := range m {
		if IsProperty(key) {
			return true
		}
	}
	return false
}

// Printed reports whether n has already been rendered.
func (n Node) Printed() bool {
	printed, _ := n[KeyPrinted].(bool)
	return printed
}

// MarkPrinted records the final text of n.
func (n Node) MarkPrinted(text string) {
	if n == nil {
		return
	}
	n[KeyMarkup] = markup.HTML(text)
	n[KeyPrinted] = true
}

// StoredMarkup returns the non-empty text stored under KeyMarkup, if any.
func (n Node) StoredMarkup() (string, bool) {
	text := stringify(n[KeyMarkup])
	return text, text != ""
}

// Type returns the element type named by KeyType.
func (n Node) Type() string {
	t, _ := n[KeyType].(string)
	return strings.TrimSpace(t)
}

// Bubbleable returns the metadata declared directly on n under KeyCache and
// KeyAttached.
func (n Node) Bubbleable() cache.Bubbleable {
	out := cache.NewBubbleable()
	if meta, ok := cache.ParseMetadata(n[KeyCache]); ok {
		out.Metadata = out.Metadata.Merge(meta)
	}
	out.Attachments = cache.ParseAttachments(n[KeyAttached])
	return out
}

// Text returns the property key as a string, or "".
func (n Node) Text(key string) string {
	return stringify(n[key])
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// Weight returns the node's sort weight.
func (n Node) Weight() float64 {
	switch v := n[KeyWeight].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// ChildKeys returns the child keys of n ordered by weight, then key.
func (n Node) ChildKeys() []string {
	keys := make([]string, 0, len(n))
	for key := range n {
		if IsProperty(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		wi, wj := childWeight(n[keys[i]]), childWeight(n[keys[j]])
		if wi != wj {
			return wi < wj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// AsNode converts the loose child shapes accepted in a tree into a Node.
func AsNode(v any) (Node, bool) {
	switch n := v.(type) {
	case Node:
		return n, n != nil
	case map[string]any:
		return Node(n), HasProperties(n)
	case Renderable:
		if n == nil {
			return nil, false
		}
		node := n.ToRenderable()
		return node, node != nil
	default:
		return nil, false
	}
}

func childWeight(v any) float64 {
	node, ok := AsNode(v)
	if !ok {
		return 0
	}
	return node.Weight()
}
