// Package attribute builds HTML attribute collections from template data.
//
// An Attribute keeps attribute names in insertion order. Values are scalar
// strings, booleans, or ordered token sets (always used for "class"). The
// collection serializes itself on demand with a leading space before every
// attribute so it can be printed straight after a tag name:
//
//	<div{{ attributes }}>
package attribute

import (
	"fmt"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goliatone/go-renderbridge/pkg/markup"
)

const classAttribute = "class"

// Pair is one name/value entry used to build an Attribute in a given order.
type Pair struct {
	Name  string
	Value any
}

// Attribute is an ordered collection of HTML attributes. Mutators return the
// receiver so calls can be chained from templates.
type Attribute struct {
	names  []string
	values map[string]any
}

// tokenSet is an ordered set of whitespace-free tokens.
type tokenSet []string

var _ markup.Markup = (*Attribute)(nil)

// New builds an Attribute from initial, which may be nil, a map (keys are
// added in sorted order), an ordered map, a []Pair, or another *Attribute
// (copied).
func New(initial any) *Attribute {
	attr := &Attribute{values: make(map[string]any)}
	switch v := initial.(type) {
	case nil:
	case *Attribute:
		return v.Clone()
	case []Pair:
		for _, pair := range v {
			attr.SetAttribute(pair.Name, pair.Value)
		}
	case *orderedmap.OrderedMap[string, any]:
		if v == nil {
			break
		}
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			attr.SetAttribute(pair.Key, pair.Value)
		}
	case map[string]any:
		for _, name := range sortedKeys(v) {
			attr.SetAttribute(name, v[name])
		}
	case map[string]string:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			attr.SetAttribute(name, v[name])
		}
	}
	return attr
}

// SetAttribute sets name to value. A nil value removes the attribute.
func (a *Attribute) SetAttribute(name string, value any) *Attribute {
	name = strings.TrimSpace(name)
	if !validName(name) {
		return a
	}
	if value == nil {
		return a.RemoveAttribute(name)
	}
	normalized := normalizeValue(name, value)
	if _, exists := a.values[name]; !exists {
		a.names = append(a.names, name)
	}
	a.values[name] = normalized
	return a
}

// RemoveAttribute deletes every named attribute.
func (a *Attribute) RemoveAttribute(names ...string) *Attribute {
	for _, name := range names {
		if _, ok := a.values[name]; !ok {
			continue
		}
		delete(a.values, name)
		for i, existing := range a.names {
			if existing == name {
				a.names = append(a.names[:i], a.names[i+1:]...)
				break
			}
		}
	}
	return a
}

// AddClass appends class tokens. Arguments may be strings (split on
// whitespace) or lists of strings.
func (a *Attribute) AddClass(classes ...any) *Attribute {
	add := toTokens(classes)
	if len(add) == 0 {
		return a
	}
	current, _ := a.values[classAttribute].(tokenSet)
	a.setTokens(classAttribute, current.union(add))
	return a
}

// RemoveClass removes class tokens.
func (a *Attribute) RemoveClass(classes ...any) *Attribute {
	current, ok := a.values[classAttribute].(tokenSet)
	if !ok {
		return a
	}
	drop := make(map[string]struct{})
	for _, token := range toTokens(classes) {
		drop[token] = struct{}{}
	}
	kept := make(tokenSet, 0, len(current))
	for _, token := range current {
		if _, ok := drop[token]; !ok {
			kept = append(kept, token)
		}
	}
	a.values[classAttribute] = kept
	return a
}

// HasClass reports whether class contains the token.
func (a *Attribute) HasClass(class string) bool {
	current, _ := a.values[classAttribute].(tokenSet)
	for _, token := range current {
		if token == class {
			return true
		}
	}
	return false
}

// HasAttribute reports whether name is set.
func (a *Attribute) HasAttribute(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Get returns the value of name: a string, a bool, or a []string of tokens.
func (a *Attribute) Get(name string) (any, bool) {
	v, ok := a.values[name]
	if !ok {
		return nil, false
	}
	if tokens, isTokens := v.(tokenSet); isTokens {
		return append([]string(nil), tokens...), true
	}
	return v, true
}

// Names returns attribute names in insertion order.
func (a *Attribute) Names() []string {
	return append([]string(nil), a.names...)
}

// Len returns the number of attributes.
func (a *Attribute) Len() int {
	return len(a.names)
}

// Merge copies other's attributes into a. Token sets are unioned, other
// values are overwritten.
func (a *Attribute) Merge(other *Attribute) *Attribute {
	if other == nil {
		return a
	}
	for _, name := range other.names {
		value := other.values[name]
		incoming, isTokens := value.(tokenSet)
		if existing, ok := a.values[name].(tokenSet); ok && isTokens {
			a.setTokens(name, existing.union(incoming))
			continue
		}
		if isTokens {
			a.setTokens(name, append(tokenSet(nil), incoming...))
			continue
		}
		a.SetAttribute(name, value)
	}
	return a
}

// Clone returns an independent copy.
func (a *Attribute) Clone() *Attribute {
	out := &Attribute{
		names:  append([]string(nil), a.names...),
		values: make(map[string]any, len(a.values)),
	}
	for name, value := range a.values {
		if tokens, ok := value.(tokenSet); ok {
			value = append(tokenSet(nil), tokens...)
		}
		out.values[name] = value
	}
	return out
}

// ToMap returns the attributes as a plain map.
func (a *Attribute) ToMap() map[string]any {
	out := make(map[string]any, len(a.names))
	for _, name := range a.names {
		out[name], _ = a.Get(name)
	}
	return out
}

// String serializes the attributes. Every rendered attribute is preceded by a
// space; an empty collection renders as "".
func (a *Attribute) String() string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	for _, name := range a.names {
		switch v := a.values[name].(type) {
		case bool:
			if v {
				b.WriteByte(' ')
				b.WriteString(name)
			}
		case tokenSet:
			if len(v) == 0 {
				continue
			}
			writePair(&b, name, strings.Join(v, " "))
		case string:
			writePair(&b, name, v)
		}
	}
	return b.String()
}

// SafeFor reports that serialized attributes are safe inside an HTML tag.
func (a *Attribute) SafeFor(c markup.Context) bool {
	return c == markup.ContextHTML
}

func (a *Attribute) setTokens(name string, tokens tokenSet) {
	if _, exists := a.values[name]; !exists {
		a.names = append(a.names, name)
	}
	a.values[name] = tokens
}

func writePair(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(markup.EscapeHTML(value))
	b.WriteByte('"')
}

func normalizeValue(name string, value any) any {
	if name == classAttribute {
		return tokenSet(nil).union(toTokens([]any{value}))
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v
	case []string, []any, tokenSet:
		return tokenSet(nil).union(toTokens([]any{v}))
	case markup.Markup:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toTokens(values []any) []string {
	var out []string
	for _, value := range values {
		switch v := value.(type) {
		case nil:
		case string:
			out = append(out, strings.Fields(v)...)
		case []string:
			for _, s := range v {
				out = append(out, strings.Fields(s)...)
			}
		case tokenSet:
			out = append(out, v...)
		case []any:
			out = append(out, toTokens(v)...)
		case fmt.Stringer:
			out = append(out, strings.Fields(v.String())...)
		default:
			out = append(out, strings.Fields(fmt.Sprint(v))...)
		}
	}
	return out
}

func (t tokenSet) union(add []string) tokenSet {
	out := make(tokenSet, 0, len(t)+len(add))
	seen := make(map[string]struct{}, len(t)+len(add))
	for _, list := range [][]string{t, add} {
		for _, token := range list {
			if token == "" {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, " \t\n\f\r\"'>/=<")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
