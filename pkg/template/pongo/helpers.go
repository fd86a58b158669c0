package pongo

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/flosch/pongo2/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/goliatone/go-renderbridge/pkg/markup"
	"github.com/goliatone/go-renderbridge/pkg/render"
)

// Names the compile pass emits. Render-bound functions are installed per
// render; the underscore helpers are stateless globals.
const (
	fnEscape      = "escape_gate"
	fnRaw         = "_raw"
	fnRenderVar   = "render_var"
	fnSafeJoin    = "safe_join"
	fnFormatDate  = "format_date"
	fnTranslate   = "t"
	fnPlaceholder = "placeholder"
	fnCleanMarkup = "clean_markup"

	nullName     = "_null"
	fnHash       = "_hash"
	fnList       = "_list"
	fnConcat     = "_concat"
	fnUnescape   = "_unescape"
	fnCond       = "_cond"
	fnCoalesce   = "_coalesce"
	fnDefault    = "_default"
	fnRange      = "_range"
	fnFloorDiv   = "_floordiv"
	fnStartsWith = "_starts_with"
	fnEndsWith   = "_ends_with"
	fnMatches    = "_matches"
	fnTest       = "_test"
	fnFilter     = "_filter"
	fnWithout    = "_without"
	fnCleanClass = "_clean_class"
	fnCleanID    = "_clean_id"
)

func helperGlobals() pongo2.Context {
	return pongo2.Context{
		fnHash:       hash,
		fnList:       list,
		fnConcat:     concat,
		fnUnescape:   unescape,
		fnCond:       cond,
		fnCoalesce:   coalesce,
		fnDefault:    defaultValue,
		fnRange:      rangeOf,
		fnFloorDiv:   floorDiv,
		fnStartsWith: startsWith,
		fnEndsWith:   endsWith,
		fnMatches:    matches,
		fnTest:       test,
		fnFilter:     applyFilter,
		fnWithout:    without,
		fnCleanClass: cleanClass,
		fnCleanID:    cleanID,
	}
}

func hash(pairs ...any) (*orderedmap.OrderedMap[string, any], error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("pongo: hash needs key/value pairs, got %d values", len(pairs))
	}
	out := orderedmap.New[string, any]()
	for i := 0; i < len(pairs); i += 2 {
		out.Set(text(pairs[i]), pairs[i+1])
	}
	return out, nil
}

func list(items ...any) []any {
	return append([]any{}, items...)
}

func concat(parts ...any) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(text(part))
	}
	return b.String()
}

func unescape(s string) (string, error) {
	return strconv.Unquote(`"` + s + `"`)
}

func cond(c, then, otherwise any) any {
	if truthy(c) {
		return then
	}
	return otherwise
}

func coalesce(value, fallback any) any {
	if value == nil {
		return fallback
	}
	return value
}

func defaultValue(value any, fallback ...any) any {
	if !empty(value) {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback[0]
}

func rangeOf(low, high any, step ...any) ([]any, error) {
	lo, err := toInt(low)
	if err != nil {
		return nil, err
	}
	hi, err := toInt(high)
	if err != nil {
		return nil, err
	}
	by := 1
	if len(step) > 0 {
		if by, err = toInt(step[0]); err != nil {
			return nil, err
		}
		if by < 0 {
			by = -by
		}
	}
	if by == 0 {
		return nil, fmt.Errorf("pongo: range step must not be zero")
	}
	var out []any
	if lo <= hi {
		for i := lo; i <= hi; i += by {
			out = append(out, i)
		}
		return out, nil
	}
	for i := lo; i >= hi; i -= by {
		out = append(out, i)
	}
	return out, nil
}

func floorDiv(a, b any) (int, error) {
	x, err := toFloat(a)
	if err != nil {
		return 0, err
	}
	y, err := toFloat(b)
	if err != nil {
		return 0, err
	}
	if y == 0 {
		return 0, fmt.Errorf("pongo: division by zero")
	}
	return int(math.Floor(x / y)), nil
}

func startsWith(s, prefix any) bool { return strings.HasPrefix(text(s), text(prefix)) }

func endsWith(s, suffix any) bool { return strings.HasSuffix(text(s), text(suffix)) }

// matches accepts PCRE-style delimited patterns ("/^a/i") and plain ones.
func matches(s, pattern any) (bool, error) {
	expr := text(pattern)
	if len(expr) > 2 && expr[0] == '/' {
		if end := strings.LastIndexByte(expr, '/'); end > 0 {
			body, flags := expr[1:end], expr[end+1:]
			if flags != "" {
				body = "(?" + flags + ")" + body
			}
			expr = body
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("pongo: matches: %w", err)
	}
	return re.MatchString(text(s)), nil
}

func test(name string, value any, args ...any) (bool, error) {
	switch name {
	case "defined":
		return value != nil, nil
	case "null", "none":
		return value == nil, nil
	case "empty":
		return empty(value), nil
	case "even", "odd":
		n, err := toInt(value)
		if err != nil {
			return false, err
		}
		return (n%2 == 0) == (name == "even"), nil
	case "divisible by":
		if len(args) != 1 {
			return false, fmt.Errorf("pongo: divisible by needs one argument")
		}
		n, err := toInt(value)
		if err != nil {
			return false, err
		}
		d, err := toInt(args[0])
		if err != nil || d == 0 {
			return false, fmt.Errorf("pongo: invalid divisor %v", args[0])
		}
		return n%d == 0, nil
	case "iterable":
		if value == nil {
			return false, nil
		}
		switch reflect.ValueOf(value).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return true, nil
		}
		_, ok := value.(render.Sequence)
		return ok, nil
	case "same as":
		if len(args) != 1 {
			return false, fmt.Errorf("pongo: same as needs one argument")
		}
		return reflect.TypeOf(value) == reflect.TypeOf(args[0]) && fmt.Sprint(value) == fmt.Sprint(args[0]), nil
	case "string":
		_, ok := value.(string)
		return ok, nil
	}
	return false, fmt.Errorf("pongo: unknown test %q", name)
}

func applyFilter(name string, in *pongo2.Value, param ...*pongo2.Value) (*pongo2.Value, error) {
	var arg *pongo2.Value
	if len(param) > 0 {
		arg = param[0]
	} else if name == "join" {
		arg = pongo2.AsValue("")
	}
	out, err := pongo2.ApplyFilter(name, in, arg)
	if err != nil {
		return nil, err
	}
	return pongo2.AsValue(out.Interface()), nil
}

// without returns a copy of a node minus the named keys.
func without(value any, keys ...any) any {
	node, ok := render.AsNode(value)
	if !ok {
		return value
	}
	drop := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		drop[text(key)] = struct{}{}
	}
	out := make(render.Node, len(node))
	for key, child := range node {
		if _, skip := drop[key]; skip {
			continue
		}
		out[key] = child
	}
	return out
}

var (
	classDisallowed = regexp.MustCompile(`[^\x{002D}\x{0030}-\x{0039}\x{0041}-\x{005A}\x{005F}\x{0061}-\x{007A}\x{00A1}-\x{FFFF}]`)
	idDisallowed    = regexp.MustCompile(`[^A-Za-z0-9\-_]`)
	idDashes        = regexp.MustCompile(`-+`)
)

// cleanClass prepares a string for use as a CSS class name.
func cleanClass(value any) string {
	class := strings.ToLower(text(value))
	class = strings.NewReplacer(" ", "-", "_", "-", "/", "-", "[", "-", "]", "").Replace(class)
	return classDisallowed.ReplaceAllString(class, "")
}

// cleanID prepares a string for use as an HTML id.
func cleanID(value any) string {
	id := strings.ToLower(text(value))
	id = strings.NewReplacer(" ", "-", "_", "-", "[", "-", "]", "").Replace(id)
	id = idDisallowed.ReplaceAllString(id, "")
	id = idDashes.ReplaceAllString(id, "-")
	if id != "" && !unicode.IsLetter(rune(id[0])) {
		id = "id-" + id
	}
	return id
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case markup.Markup:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	return !empty(v)
}

func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case markup.Markup:
		return x.String() == ""
	case *orderedmap.OrderedMap[string, any]:
		return x == nil || x.Len() == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	return int(f), err
}

func toFloat(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		if err != nil {
			return 0, fmt.Errorf("pongo: %q is not a number", rv.String())
		}
		return f, nil
	}
	return 0, fmt.Errorf("pongo: %T is not a number", v)
}
