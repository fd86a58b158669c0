package extension

import (
	"fmt"
	"iter"
	"reflect"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

// valueKind is the closed set of value shapes the resolver dispatches on.
type valueKind int

const (
	kindEmpty valueKind = iota
	kindZero
	kindRenderable
	kindNode
	kindMarkup
	kindScalar
	kindSequence
	kindUnknown
)

func (k valueKind) String() string {
	switch k {
	case kindEmpty:
		return "empty"
	case kindZero:
		return "zero"
	case kindRenderable:
		return "renderable"
	case kindNode:
		return "node"
	case kindMarkup:
		return "markup"
	case kindScalar:
		return "scalar"
	case kindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// kindOf picks the first matching kind in dispatch priority order.
func kindOf(v any) valueKind {
	switch x := v.(type) {
	case nil:
		return kindEmpty
	case string:
		if x == "" {
			return kindEmpty
		}
		return kindScalar
	case bool:
		if !x {
			return kindEmpty
		}
		return kindScalar
	case render.Renderable:
		return kindRenderable
	case render.Node:
		return kindNode
	case map[string]any:
		if render.HasProperties(x) {
			return kindNode
		}
		return kindSequence
	case markup.Markup:
		return kindMarkup
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		if isZeroNumber(x) {
			return kindZero
		}
		return kindScalar
	case fmt.Stringer:
		return kindScalar
	case []byte:
		return kindScalar
	case render.Sequence, iter.Seq[any], *orderedmap.OrderedMap[string, any]:
		return kindSequence
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return kindSequence
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return kindEmpty
		}
		return kindOf(rv.Elem().Interface())
	}
	return kindUnknown
}

func isZeroNumber(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// scalarText converts a scalar to text without escaping it.
func scalarText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return ""
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case markup.Markup:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// eachItem calls fn for every item of a sequence value in order. Maps yield
// their values in sorted key order. Non-sequence values yield themselves.
func eachItem(v any, fn func(any) error) error {
	switch x := v.(type) {
	case nil:
		return nil
	case render.Sequence:
		for _, item := range x.Items() {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	case iter.Seq[any]:
		var err error
		x(func(item any) bool {
			err = fn(item)
			return err == nil
		})
		return err
	case *orderedmap.OrderedMap[string, any]:
		if x == nil {
			return nil
		}
		for pair := x.Oldest(); pair != nil; pair = pair.Next() {
			if err := fn(pair.Value); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if render.HasProperties(x) {
			return fn(x)
		}
	case string, []byte, render.Node, markup.Markup, render.Renderable:
		return fn(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fn(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			if err := fn(rv.MapIndex(key).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(v)
}
