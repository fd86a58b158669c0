package pongo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-renderbridge/pkg/safety"
)

// ErrUnclosedDelimiter is returned when a print, tag or comment is not
// closed.
var ErrUnclosedDelimiter = errors.New("pongo: unclosed delimiter")

// CompileError locates an expression the compile pass could not lower.
type CompileError struct {
	Line int
	Expr string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pongo: line %d: %q: %v", e.Line, e.Expr, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Site is a trusted URL call found in a template.
type Site struct {
	Line    int
	Expr    string
	Verdict safety.Verdict
}

// Compiler rewrites Twig-flavoured template source into pongo2 syntax. Every
// print tag is routed through the escape gate unless the classifier proves
// it safe. A Compiler is immutable and safe for concurrent use.
type Compiler struct {
	classifier *safety.Classifier
}

// NewCompiler builds a Compiler. A nil classifier trusts path and url.
func NewCompiler(classifier *safety.Classifier) *Compiler {
	if classifier == nil {
		classifier = safety.NewClassifier()
	}
	return &Compiler{classifier: classifier}
}

// Compile lowers src.
func (c *Compiler) Compile(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	err := scan(src, func(seg segment) error {
		switch seg.kind {
		case segText:
			b.WriteString(seg.raw)
			return nil
		case segComment:
			return nil
		}
		var (
			out string
			err error
		)
		if seg.kind == segPrint {
			out, err = c.print(seg.body)
		} else {
			out, err = c.tag(seg.body, seg.stack)
		}
		if err != nil {
			return &CompileError{Line: seg.line, Expr: strings.TrimSpace(seg.body), Err: err}
		}
		b.WriteString(seg.open + " " + out + " " + seg.close)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Sites lists every trusted call in src with its verdict. Expressions that do
// not parse are skipped.
func (c *Compiler) Sites(src string) ([]Site, error) {
	var sites []Site
	err := scan(src, func(seg segment) error {
		var expr string
		switch seg.kind {
		case segPrint:
			expr = seg.body
		case segTag:
			_, rest := splitTag(seg.body)
			expr = tagExpression(rest)
		}
		if strings.TrimSpace(expr) == "" {
			return nil
		}
		node, err := safety.ParseExpr(expr)
		if err != nil {
			return nil
		}
		for _, site := range c.classifier.Inspect(node) {
			sites = append(sites, Site{Line: seg.line, Expr: site.Call.String(), Verdict: site.Verdict})
		}
		return nil
	})
	return sites, err
}

func (c *Compiler) print(body string) (string, error) {
	node, err := safety.ParseExpr(body)
	if err != nil {
		return "", err
	}
	l := lowerer{classifier: c.classifier}

	switch n := node.(type) {
	case *safety.FilterNode:
		switch n.Name {
		case "raw":
			inner, err := l.lower(n.Target)
			if err != nil {
				return "", err
			}
			return fnRaw + "(" + inner + ")", nil
		case "e", "escape":
			return l.lower(n)
		}
	case *safety.CallNode:
		if c.classifier.IsTrusted(n) && c.classifier.Classify(n) == safety.Safe {
			call, err := l.lower(n)
			if err != nil {
				return "", err
			}
			return call + "|safe", nil
		}
	}

	inner, err := l.lower(node)
	if err != nil {
		return "", err
	}
	return fnEscape + "(" + inner + ")", nil
}

var (
	setPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)
	forPattern = regexp.MustCompile(`^(.+?)\s+in\s+(.+)$`)
)

func (c *Compiler) tag(body string, stack []string) (string, error) {
	name, rest := splitTag(body)
	l := lowerer{classifier: c.classifier}

	switch name {
	case "if", "elseif", "elif":
		expr, err := l.parseLower(rest)
		if err != nil {
			return "", err
		}
		if name == "elseif" {
			name = "elif"
		}
		return name + " " + expr, nil
	case "else":
		if len(stack) > 0 && stack[len(stack)-1] == "for" {
			return "empty", nil
		}
	case "set":
		m := setPattern.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		expr, err := l.parseLower(m[2])
		if err != nil {
			return "", err
		}
		return "set " + m[1] + " = " + expr, nil
	case "for":
		m := forPattern.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		expr, err := l.parseLower(m[2])
		if err != nil {
			return "", err
		}
		return "for " + strings.TrimSpace(m[1]) + " in " + expr, nil
	}
	return strings.TrimSpace(body), nil
}

// tagExpression returns the expression part of a tag body for inspection.
func tagExpression(rest string) string {
	if m := setPattern.FindStringSubmatch(rest); m != nil {
		return m[2]
	}
	if m := forPattern.FindStringSubmatch(rest); m != nil {
		return m[2]
	}
	return rest
}

func splitTag(body string) (string, string) {
	body = strings.TrimSpace(body)
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx:])
}

// lowerer turns an expression tree into pongo2 expression syntax.
type lowerer struct {
	classifier *safety.Classifier
}

// lowered is an emitted expression; chain marks pongo2 variable expressions
// that accept .attr, [index] and call suffixes.
type lowered struct {
	text  string
	chain bool
}

func (l lowerer) parseLower(src string) (string, error) {
	node, err := safety.ParseExpr(src)
	if err != nil {
		return "", err
	}
	return l.lower(node)
}

func (l lowerer) lower(n safety.Node) (string, error) {
	out, err := l.emit(n)
	return out.text, err
}

func (l lowerer) emit(n safety.Node) (lowered, error) {
	switch n := n.(type) {
	case *safety.NullNode:
		return lowered{text: nullName, chain: true}, nil
	case *safety.BoolNode:
		return lowered{text: strconv.FormatBool(n.True)}, nil
	case *safety.NumberNode:
		return lowered{text: number(n.Text)}, nil
	case *safety.StringNode:
		return lowered{text: quote(n.Value)}, nil
	case *safety.InterpolatedNode:
		return l.helper(fnConcat, n.Parts...)
	case *safety.NameNode:
		if !validIdent(n.Name) {
			return lowered{}, fmt.Errorf("name %q cannot be used in templates", n.Name)
		}
		return lowered{text: n.Name, chain: true}, nil
	case *safety.AttrNode:
		return l.attr(n)
	case *safety.IndexNode:
		target, err := l.chained(n.Target)
		if err != nil {
			return lowered{}, err
		}
		index, err := l.lower(n.Index)
		if err != nil {
			return lowered{}, err
		}
		return lowered{text: target + "[" + index + "]", chain: true}, nil
	case *safety.CallNode:
		return l.call(n)
	case *safety.FilterNode:
		return l.filter(n)
	case *safety.TestNode:
		name := lowered{text: quote(n.Name)}
		args := append([]safety.Node{n.Target}, argValues(n.Args)...)
		out, err := l.helperWith(fnTest, []lowered{name}, args...)
		if err != nil || !n.Negated {
			return out, err
		}
		return lowered{text: "(not " + out.text + ")"}, nil
	case *safety.ListNode:
		return l.helper(fnList, n.Items...)
	case *safety.HashNode:
		parts := make([]lowered, 0, 2*len(n.Entries))
		for _, entry := range n.Entries {
			key, err := l.hashKey(entry)
			if err != nil {
				return lowered{}, err
			}
			value, err := l.emit(entry.Value)
			if err != nil {
				return lowered{}, err
			}
			parts = append(parts, key, value)
		}
		return lowered{text: fnHash + "(" + joinLowered(parts) + ")", chain: true}, nil
	case *safety.UnaryNode:
		operand, err := l.lower(n.Operand)
		if err != nil {
			return lowered{}, err
		}
		switch n.Op {
		case "not":
			return lowered{text: "(not " + operand + ")"}, nil
		case "-":
			return lowered{text: "(-" + operand + ")"}, nil
		default:
			return lowered{text: operand}, nil
		}
	case *safety.BinaryNode:
		return l.binary(n)
	case *safety.ConditionalNode:
		then := n.Then
		if then == nil {
			then = n.Cond
		}
		return l.helper(fnCond, n.Cond, then, n.Else)
	}
	return lowered{}, fmt.Errorf("unsupported expression %T", n)
}

var loopFields = map[string]string{
	"index":     "Counter",
	"index0":    "Counter0",
	"revindex":  "Revcounter",
	"revindex0": "Revcounter0",
	"first":     "First",
	"last":      "Last",
}

func (l lowerer) attr(n *safety.AttrNode) (lowered, error) {
	if name, ok := n.Target.(*safety.NameNode); ok && name.Name == "loop" {
		if field, ok := loopFields[n.Name]; ok {
			return lowered{text: "forloop." + field, chain: true}, nil
		}
	}
	target, err := l.chained(n.Target)
	if err != nil {
		return lowered{}, err
	}
	if !validIdent(n.Name) && !isDigits(n.Name) {
		return lowered{}, fmt.Errorf("attribute %q cannot be used in templates", n.Name)
	}
	return lowered{text: target + "." + n.Name, chain: true}, nil
}

func (l lowerer) chained(n safety.Node) (string, error) {
	out, err := l.emit(n)
	if err != nil {
		return "", err
	}
	if !out.chain {
		return "", fmt.Errorf("cannot access members of %s", n.String())
	}
	return out.text, nil
}

var functionAliases = map[string]string{
	"range": fnRange,
}

func (l lowerer) call(n *safety.CallNode) (lowered, error) {
	if attr, ok := n.Func.(*safety.AttrNode); ok {
		target, err := l.chained(attr.Target)
		if err != nil {
			return lowered{}, err
		}
		args, err := l.emitAll(argValues(n.Args))
		if err != nil {
			return lowered{}, err
		}
		return lowered{text: target + "." + methodName(attr.Name) + "(" + joinLowered(args) + ")", chain: true}, nil
	}

	name := n.FuncName()
	if name == "" || !validIdent(name) {
		return lowered{}, fmt.Errorf("cannot call %s", n.Func.String())
	}
	if alias, ok := functionAliases[name]; ok {
		name = alias
	}

	values := argValues(n.Args)
	bound, ok := l.classifier.Bind(n)
	switch {
	case ok:
		values = positional(l.classifier, n, bound)
	case hasNamed(n.Args):
		return lowered{}, fmt.Errorf("cannot bind named arguments of %s", name)
	}

	args, err := l.emitAll(values)
	if err != nil {
		return lowered{}, err
	}
	return lowered{text: name + "(" + joinLowered(args) + ")", chain: true}, nil
}

// positional orders bound arguments by signature, filling gaps with null.
func positional(c *safety.Classifier, n *safety.CallNode, bound map[string]safety.Node) []safety.Node {
	sig, _ := c.Signature(n.FuncName())
	last := -1
	for i, param := range sig.Params {
		if _, ok := bound[param]; ok {
			last = i
		}
	}
	out := make([]safety.Node, 0, last+1)
	for i := 0; i <= last; i++ {
		if value, ok := bound[sig.Params[i]]; ok {
			out = append(out, value)
			continue
		}
		out = append(out, &safety.NullNode{Pos: n.Pos})
	}
	return out
}

// bridgeFilters map template filters onto render-bound functions.
var bridgeFilters = map[string]string{
	"e":            fnEscape,
	"escape":       fnEscape,
	"raw":          fnRaw,
	"render":       fnRenderVar,
	"safe_join":    fnSafeJoin,
	"format_date":  fnFormatDate,
	"t":            fnTranslate,
	"trans":        fnTranslate,
	"placeholder":  fnPlaceholder,
	"clean_markup": fnCleanMarkup,
	"without":      fnWithout,
	"clean_class":  fnCleanClass,
	"clean_id":     fnCleanID,
	"default":      fnDefault,
}

// nativeFilters map template filters onto pongo2 builtins.
var nativeFilters = map[string]string{
	"upper":      "upper",
	"lower":      "lower",
	"title":      "title",
	"capitalize": "capfirst",
	"length":     "length",
	"first":      "first",
	"last":       "last",
	"striptags":  "striptags",
	"trim":       "trim",
	"url_encode": "urlencode",
	"join":       "join",
	"split":      "split",
	"lowerfirst": "lowerfirst",
	"wordcount":  "wordcount",
}

func (l lowerer) filter(n *safety.FilterNode) (lowered, error) {
	if hasNamed(n.Args) {
		return lowered{}, fmt.Errorf("filter %q does not take named arguments", n.Name)
	}
	args := append([]safety.Node{n.Target}, argValues(n.Args)...)

	if n.Name == "date" {
		custom := &safety.StringNode{Pos: n.Pos, Value: "custom"}
		return l.helper(fnFormatDate, append([]safety.Node{n.Target, custom}, argValues(n.Args)...)...)
	}
	if fn, ok := bridgeFilters[n.Name]; ok {
		return l.helper(fn, args...)
	}
	name, ok := nativeFilters[n.Name]
	if !ok {
		if !pongo2.FilterExists(n.Name) {
			return lowered{}, fmt.Errorf("unknown filter %q", n.Name)
		}
		name = n.Name
	}
	if len(n.Args) > 1 {
		return lowered{}, fmt.Errorf("filter %q takes at most one argument", n.Name)
	}
	return l.helperWith(fnFilter, []lowered{{text: quote(name)}}, args...)
}

var binaryHelpers = map[string]string{
	"~":           fnConcat,
	"//":          fnFloorDiv,
	"??":          fnCoalesce,
	"..":          fnRange,
	"starts with": fnStartsWith,
	"ends with":   fnEndsWith,
	"matches":     fnMatches,
}

var binaryNative = map[string]string{
	"or": "or", "and": "and",
	"==": "==", "!=": "!=", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
	"in": "in",
	"+":  "+", "-": "-", "*": "*", "/": "/", "%": "%",
	"**": "^",
}

func (l lowerer) binary(n *safety.BinaryNode) (lowered, error) {
	if fn, ok := binaryHelpers[n.Op]; ok {
		return l.helper(fn, n.Left, n.Right)
	}
	left, err := l.lower(n.Left)
	if err != nil {
		return lowered{}, err
	}
	right, err := l.lower(n.Right)
	if err != nil {
		return lowered{}, err
	}
	if n.Op == "not in" {
		return lowered{text: "(not (" + left + " in " + right + "))"}, nil
	}
	op, ok := binaryNative[n.Op]
	if !ok {
		return lowered{}, fmt.Errorf("unsupported operator %q", n.Op)
	}
	return lowered{text: "(" + left + " " + op + " " + right + ")"}, nil
}

func (l lowerer) hashKey(entry safety.HashEntry) (lowered, error) {
	if entry.Computed {
		return l.emit(entry.Key)
	}
	switch key := entry.Key.(type) {
	case *safety.StringNode:
		return lowered{text: quote(key.Value)}, nil
	case *safety.NumberNode:
		return lowered{text: quote(key.Text)}, nil
	case *safety.NameNode:
		return lowered{text: quote(key.Name)}, nil
	}
	return l.emit(entry.Key)
}

func (l lowerer) helper(fn string, args ...safety.Node) (lowered, error) {
	return l.helperWith(fn, nil, args...)
}

func (l lowerer) helperWith(fn string, prefix []lowered, args ...safety.Node) (lowered, error) {
	emitted, err := l.emitAll(args)
	if err != nil {
		return lowered{}, err
	}
	return lowered{text: fn + "(" + joinLowered(append(prefix, emitted...)) + ")", chain: true}, nil
}

func (l lowerer) emitAll(nodes []safety.Node) ([]lowered, error) {
	out := make([]lowered, 0, len(nodes))
	for _, node := range nodes {
		emitted, err := l.emit(node)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted)
	}
	return out, nil
}

func joinLowered(parts []lowered) string {
	texts := make([]string, len(parts))
	for i, part := range parts {
		texts[i] = part.text
	}
	return strings.Join(texts, ", ")
}

func argValues(args []safety.Arg) []safety.Node {
	out := make([]safety.Node, len(args))
	for i, arg := range args {
		out[i] = arg.Value
	}
	return out
}

func hasNamed(args []safety.Arg) bool {
	for _, arg := range args {
		if arg.Name != "" {
			return true
		}
	}
	return false
}

var pongoKeywords = map[string]struct{}{
	"in": {}, "and": {}, "or": {}, "not": {}, "true": {}, "false": {}, "as": {}, "export": {},
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	if _, reserved := pongoKeywords[name]; reserved {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// methodName maps a template method name to the exported Go method:
// addClass and add_class both become AddClass.
func methodName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func number(text string) string {
	clean := strings.ReplaceAll(text, "_", "")
	if strings.ContainsAny(clean, "eE") {
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if strings.HasPrefix(clean, "-") {
		return "(" + clean + ")"
	}
	return clean
}

// quote renders s as a pongo2 string literal. pongo2 only understands \" and
// \\ escapes, so anything else goes through the unescape helper.
func quote(s string) string {
	needsHelper := false
	for _, r := range s {
		if r == '\\' || r < 0x20 || r == 0x7f {
			needsHelper = true
			break
		}
	}
	if !needsHelper {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\x5c`)
		case r == '"':
			b.WriteString(`\\x22`)
		case r < 0x20 || r == 0x7f:
			b.WriteString(`\\x`)
			b.WriteString(fmt.Sprintf("%02x", r))
		default:
			b.WriteRune(r)
		}
	}
	return fnUnescape + `("` + b.String() + `")`
}
