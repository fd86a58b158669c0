package extension

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// toParams normalizes route parameters and translation arguments.
func toParams(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = value
		}
		return out, nil
	case *orderedmap.OrderedMap[string, any]:
		if v == nil {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = pair.Value
		}
		return out, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("extension: parameters must be a mapping, got %T", raw)
}

type urlOptions struct {
	query    map[string]any
	fragment string
	absolute bool
}

func parseURLOptions(raw any) urlOptions {
	values, err := toParams(raw)
	if err != nil || len(values) == 0 {
		return urlOptions{}
	}
	var opts urlOptions
	opts.query, _ = toParams(values["query"])
	if fragment, ok := values["fragment"].(string); ok {
		opts.fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	}
	opts.absolute, _ = values["absolute"].(bool)
	return opts
}

func (o urlOptions) apply(raw string) string {
	if len(o.query) > 0 {
		query := url.Values{}
		for key, value := range o.query {
			if value == nil {
				continue
			}
			query.Set(key, fmt.Sprint(value))
		}
		if encoded := query.Encode(); encoded != "" {
			sep := "?"
			if strings.Contains(raw, "?") {
				sep = "&"
			}
			raw += sep + encoded
		}
	}
	if o.fragment != "" {
		raw += "#" + url.PathEscape(o.fragment)
	}
	return raw
}

// toTimestamp accepts unix seconds as a number or numeric string, or a time.
func toTimestamp(raw any) (int64, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.Unix(), nil
	case *time.Time:
		if v == nil {
			break
		}
		return v.Unix(), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		ts, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("extension: invalid timestamp %q: %w", v, err)
		}
		return ts, nil
	case fmt.Stringer:
		return toTimestamp(v.String())
	}
	return 0, fmt.Errorf("extension: invalid timestamp of type %T", raw)
}
