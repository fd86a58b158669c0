package safety

import (
	"fmt"
	"strings"
)

const maxNesting = 128

type operator struct {
	prec       int
	rightAssoc bool
}

var binaryOps = map[string]operator{
	"or":          {prec: 10},
	"and":         {prec: 15},
	"==":          {prec: 20},
	"!=":          {prec: 20},
	"<":           {prec: 20},
	">":           {prec: 20},
	"<=":          {prec: 20},
	">=":          {prec: 20},
	"in":          {prec: 20},
	"not in":      {prec: 20},
	"matches":     {prec: 20},
	"starts with": {prec: 20},
	"ends with":   {prec: 20},
	"..":          {prec: 25},
	"+":           {prec: 30},
	"-":           {prec: 30},
	"~":           {prec: 40},
	"*":           {prec: 60},
	"/":           {prec: 60},
	"//":          {prec: 60},
	"%":           {prec: 60},
	"is":          {prec: 100},
	"is not":      {prec: 100},
	"**":          {prec: 200, rightAssoc: true},
	"??":          {prec: 300, rightAssoc: true},
}

const notPrec = 50

// ParseError describes why an expression could not be parsed.
type ParseError struct {
	Pos Pos
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("safety: parse expression at offset %d: %s", e.Pos, e.Msg)
}

// ParseExpr parses a print expression. It never panics.
func ParseExpr(src string) (node Node, err error) {
	p := &parser{items: lex(src)}
	defer p.recover(&err)
	node = p.expression()
	if tok := p.next(); tok.typ != itemEOF {
		p.unexpected(tok, "after expression")
	}
	return node, nil
}

type parser struct {
	items []item
	pos   int
	depth int
}

func (p *parser) recover(errp *error) {
	e := recover()
	if e == nil {
		return
	}
	if perr, ok := e.(*ParseError); ok {
		*errp = perr
		return
	}
	*errp = fmt.Errorf("safety: parse expression: %v", e)
}

func (p *parser) errorf(pos Pos, format string, args ...any) {
	panic(&ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) unexpected(tok item, context string) {
	if tok.typ == itemError {
		p.errorf(tok.pos, "lexical error: %s", tok.val)
	}
	p.errorf(tok.pos, "unexpected %s %s", tok, context)
}

func (p *parser) peek() item {
	return p.peekN(0)
}

func (p *parser) peekN(n int) item {
	if p.pos+n >= len(p.items) {
		return p.items[len(p.items)-1]
	}
	return p.items[p.pos+n]
}

func (p *parser) next() item {
	tok := p.peek()
	if p.pos < len(p.items)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(tok item, val string) bool {
	return tok.typ == itemPunct && tok.val == val
}

func (p *parser) expectPunct(val, context string) item {
	tok := p.next()
	if !p.isPunct(tok, val) {
		p.unexpected(tok, fmt.Sprintf("%s (expected %q)", context, val))
	}
	return tok
}

func (p *parser) enter(pos Pos) {
	p.depth++
	if p.depth > maxNesting {
		p.errorf(pos, "expression nested too deeply")
	}
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) expression() Node {
	start := p.peek()
	p.enter(start.pos)
	defer p.leave()

	cond := p.binary(0)
	if !p.isPunct(p.peek(), "?") {
		return cond
	}
	p.next()
	if p.isPunct(p.peek(), ":") {
		p.next()
		return &ConditionalNode{Pos: start.pos, Cond: cond, Else: p.expression()}
	}
	then := p.expression()
	if !p.isPunct(p.peek(), ":") {
		return &ConditionalNode{Pos: start.pos, Cond: cond, Then: then, Else: &StringNode{Pos: start.pos}}
	}
	p.next()
	return &ConditionalNode{Pos: start.pos, Cond: cond, Then: then, Else: p.expression()}
}

// peekBinary returns the binary operator at the cursor and how many tokens
// it spans.
func (p *parser) peekBinary() (string, int) {
	tok := p.peek()
	switch tok.typ {
	case itemOperator:
		if _, ok := binaryOps[tok.val]; ok {
			return tok.val, 1
		}
	case itemName:
		next := p.peekN(1)
		switch tok.val {
		case "not":
			if next.typ == itemName && next.val == "in" {
				return "not in", 2
			}
		case "is":
			if next.typ == itemName && next.val == "not" {
				return "is not", 2
			}
			return "is", 1
		case "starts", "ends":
			if next.typ == itemName && next.val == "with" {
				return tok.val + " with", 2
			}
		case "or", "and", "in", "matches":
			return tok.val, 1
		}
	}
	return "", 0
}

func (p *parser) binary(minPrec int) Node {
	left := p.unary()
	for {
		op, width := p.peekBinary()
		if op == "" {
			return left
		}
		info := binaryOps[op]
		if info.prec < minPrec {
			return left
		}
		start := p.peek()
		for i := 0; i < width; i++ {
			p.next()
		}
		if op == "is" || op == "is not" {
			left = p.test(start.pos, left, op == "is not")
			continue
		}
		nextPrec := info.prec + 1
		if info.rightAssoc {
			nextPrec = info.prec
		}
		p.enter(start.pos)
		right := p.binary(nextPrec)
		p.leave()
		left = &BinaryNode{Pos: start.pos, Op: op, Left: left, Right: right}
	}
}

func (p *parser) test(pos Pos, target Node, negated bool) Node {
	tok := p.next()
	if tok.typ != itemName {
		p.unexpected(tok, "in test")
	}
	name := tok.val
	if next := p.peek(); next.typ == itemName {
		switch {
		case name == "same" && next.val == "as", name == "divisible" && next.val == "by":
			p.next()
			name += " " + next.val
		}
	}
	node := &TestNode{Pos: pos, Target: target, Name: name, Negated: negated}
	if p.isPunct(p.peek(), "(") {
		node.Args = p.arguments()
	}
	return node
}

func (p *parser) unary() Node {
	tok := p.peek()
	switch {
	case tok.typ == itemName && tok.val == "not":
		p.next()
		p.enter(tok.pos)
		defer p.leave()
		return &UnaryNode{Pos: tok.pos, Op: "not", Operand: p.binary(notPrec)}
	case tok.typ == itemOperator && (tok.val == "-" || tok.val == "+"):
		p.next()
		p.enter(tok.pos)
		defer p.leave()
		operand := p.unary()
		if num, ok := operand.(*NumberNode); ok && !strings.HasPrefix(num.Text, "-") && !strings.HasPrefix(num.Text, "+") {
			text := num.Text
			if tok.val == "-" {
				text = "-" + text
			}
			return &NumberNode{Pos: tok.pos, Text: text}
		}
		return &UnaryNode{Pos: tok.pos, Op: tok.val, Operand: operand}
	}
	return p.postfix(p.primary())
}

func (p *parser) postfix(node Node) Node {
	for {
		tok := p.peek()
		switch {
		case p.isPunct(tok, "."):
			p.next()
			name := p.next()
			if name.typ != itemName && name.typ != itemNumber {
				p.unexpected(name, "after '.'")
			}
			node = &AttrNode{Pos: tok.pos, Target: node, Name: name.val}
			if p.isPunct(p.peek(), "(") {
				node = &CallNode{Pos: tok.pos, Func: node, Args: p.arguments()}
			}
		case p.isPunct(tok, "["):
			p.next()
			index := p.expression()
			p.expectPunct("]", "in subscript")
			node = &IndexNode{Pos: tok.pos, Target: node, Index: index}
		case p.isPunct(tok, "("):
			if _, ok := node.(*NameNode); !ok {
				p.unexpected(tok, "call on a non-name expression")
			}
			node = &CallNode{Pos: node.Position(), Func: node, Args: p.arguments()}
		case p.isPunct(tok, "|"):
			p.next()
			name := p.next()
			if name.typ != itemName {
				p.unexpected(name, "as filter name")
			}
			filter := &FilterNode{Pos: tok.pos, Target: node, Name: name.val}
			switch {
			case p.isPunct(p.peek(), "("):
				filter.Args = p.arguments()
			case p.isPunct(p.peek(), ":"):
				p.next()
				filter.Args = []Arg{{Value: p.postfix(p.primary())}}
			}
			node = filter
		default:
			return node
		}
	}
}

func (p *parser) primary() Node {
	tok := p.next()
	switch tok.typ {
	case itemNumber:
		return &NumberNode{Pos: tok.pos, Text: tok.val}
	case itemString:
		return &StringNode{Pos: tok.pos, Value: tok.val}
	case itemInterpolated:
		return p.interpolated(tok)
	case itemName:
		switch strings.ToLower(tok.val) {
		case "true":
			return &BoolNode{Pos: tok.pos, True: true}
		case "false":
			return &BoolNode{Pos: tok.pos}
		case "null", "none":
			return &NullNode{Pos: tok.pos}
		}
		return &NameNode{Pos: tok.pos, Name: tok.val}
	case itemPunct:
		switch tok.val {
		case "(":
			p.enter(tok.pos)
			defer p.leave()
			node := p.expression()
			p.expectPunct(")", "in parenthesised expression")
			return node
		case "[":
			return p.list(tok)
		case "{":
			return p.hash(tok)
		}
	}
	p.unexpected(tok, "in expression")
	return nil
}

func (p *parser) list(open item) Node {
	p.enter(open.pos)
	defer p.leave()
	node := &ListNode{Pos: open.pos}
	for {
		if p.isPunct(p.peek(), "]") {
			p.next()
			return node
		}
		node.Items = append(node.Items, p.expression())
		tok := p.next()
		if p.isPunct(tok, "]") {
			return node
		}
		if !p.isPunct(tok, ",") {
			p.unexpected(tok, "in list (expected ',' or ']')")
		}
	}
}

func (p *parser) hash(open item) Node {
	p.enter(open.pos)
	defer p.leave()
	node := &HashNode{Pos: open.pos}
	for {
		if p.isPunct(p.peek(), "}") {
			p.next()
			return node
		}
		entry := HashEntry{}
		key := p.next()
		switch {
		case key.typ == itemName:
			entry.Key = &StringNode{Pos: key.pos, Value: key.val}
		case key.typ == itemString:
			entry.Key = &StringNode{Pos: key.pos, Value: key.val}
		case key.typ == itemNumber:
			entry.Key = &NumberNode{Pos: key.pos, Text: key.val}
		case key.typ == itemInterpolated:
			entry.Key = p.interpolated(key)
			entry.Computed = true
		case p.isPunct(key, "("):
			entry.Key = p.expression()
			entry.Computed = true
			p.expectPunct(")", "in hash key")
		default:
			p.unexpected(key, "as hash key")
		}
		p.expectPunct(":", "in hash")
		entry.Value = p.expression()
		node.Entries = append(node.Entries, entry)

		tok := p.next()
		if p.isPunct(tok, "}") {
			return node
		}
		if !p.isPunct(tok, ",") {
			p.unexpected(tok, "in hash (expected ',' or '}')")
		}
	}
}

// arguments parses "(a, name = b, other: c)". Named arguments may use '=' or
// ':'.
func (p *parser) arguments() []Arg {
	open := p.expectPunct("(", "in argument list")
	p.enter(open.pos)
	defer p.leave()
	args := []Arg{}
	for {
		if p.isPunct(p.peek(), ")") {
			p.next()
			return args
		}
		arg := Arg{}
		if name := p.peek(); name.typ == itemName {
			if sep := p.peekN(1); p.isPunct(sep, "=") || p.isPunct(sep, ":") {
				p.next()
				p.next()
				arg.Name = name.val
			}
		}
		arg.Value = p.expression()
		args = append(args, arg)

		tok := p.next()
		if p.isPunct(tok, ")") {
			return args
		}
		if !p.isPunct(tok, ",") {
			p.unexpected(tok, "in argument list (expected ',' or ')')")
		}
	}
}

func (p *parser) interpolated(tok item) Node {
	node := &InterpolatedNode{Pos: tok.pos}
	raw := tok.val
	offset := int(tok.pos) + 1
	for raw != "" {
		idx := indexInterpolation(raw)
		if idx < 0 {
			node.Parts = append(node.Parts, &StringNode{Pos: Pos(offset), Value: unescapeAll(raw)})
			break
		}
		if idx > 0 {
			node.Parts = append(node.Parts, &StringNode{Pos: Pos(offset), Value: unescapeAll(raw[:idx])})
		}
		end := matchingBrace(raw, idx+2)
		if end < 0 {
			p.errorf(Pos(offset+idx), "unterminated interpolation")
		}
		inner, err := ParseExpr(raw[idx+2 : end])
		if err != nil {
			p.errorf(Pos(offset+idx), "interpolation: %v", err)
		}
		node.Parts = append(node.Parts, inner)
		offset += end + 1
		raw = raw[end+1:]
	}
	return node
}

func indexInterpolation(s string) int {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '#' && s[i+1] == '{' {
			return i
		}
	}
	return -1
}

func matchingBrace(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func unescapeAll(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteString(unescape(s[i+1], '"'))
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
