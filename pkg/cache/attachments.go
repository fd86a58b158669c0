package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Attachments maps an asset category (e.g. "library") to the ordered list of
// asset identifiers requested by a fragment.
type Attachments map[string][]string

// Merge returns a new Attachments holding a's entries followed by the entries
// of b that a does not already list, category by category.
func (a Attachments) Merge(b Attachments) Attachments {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(Attachments, len(a)+len(b))
	for category, assets := range a {
		out[category] = union(nil, assets)
	}
	for category, assets := range b {
		merged := union(out[category], assets)
		if len(merged) == 0 {
			continue
		}
		out[category] = merged
	}
	for category, assets := range out {
		if len(assets) == 0 {
			delete(out, category)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Categories returns the category names in sorted order.
func (a Attachments) Categories() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the attachments as "category=a,b; other=c" in category order.
func (a Attachments) String() string {
	parts := make([]string, 0, len(a))
	for _, category := range a.Categories() {
		parts = append(parts, category+"="+strings.Join(a[category], ","))
	}
	return strings.Join(parts, "; ")
}

// ParseAttachments converts the loose shapes found under a render node's
// "#attached" key. Unrecognised shapes yield nil.
func ParseAttachments(raw any) Attachments {
	switch v := raw.(type) {
	case nil:
		return nil
	case Attachments:
		return v.Merge(nil)
	case map[string][]string:
		return Attachments(v).Merge(nil)
	case map[string]any:
		out := make(Attachments, len(v))
		for category, assets := range v {
			if list := stringList(assets); len(list) > 0 {
				out[category] = list
			}
		}
		return out.Merge(nil)
	default:
		return nil
	}
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return union(nil, v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return union(nil, out)
	default:
		return nil
	}
}
