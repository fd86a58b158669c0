package safety

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// item is a token returned by the lexer.
type item struct {
	typ itemType
	pos Pos
	val string
}

func (i item) String() string {
	switch i.typ {
	case itemEOF:
		return "EOF"
	case itemError:
		return i.val
	}
	if len(i.val) > 10 {
		return fmt.Sprintf("%.10q...", i.val)
	}
	return fmt.Sprintf("%q", i.val)
}

type itemType int

const (
	itemEOF itemType = iota
	itemError
	itemName         // foo, not, and, true
	itemNumber       // 42, 1.5
	itemString       // 'x' or "x" without interpolation; val is unquoted
	itemInterpolated // "a #{b}"; val is the raw body
	itemPunct        // ( ) [ ] { } , : . | = ?
	itemOperator     // == != < > <= >= + - ~ * / // % ** ?? ..
)

var operators = []string{
	"==", "!=", "<=", ">=", "//", "**", "??", "..",
	"<", ">", "+", "-", "~", "*", "/", "%",
}

// lex splits src into tokens. It stops at the first error, which is returned
// as an itemError token.
func lex(src string) []item {
	l := &lexer{src: src}
	l.run()
	return l.items
}

type lexer struct {
	src   string
	pos   int
	items []item
}

func (l *lexer) emit(typ itemType, start int, val string) {
	l.items = append(l.items, item{typ: typ, pos: Pos(start), val: val})
}

func (l *lexer) errorf(start int, format string, args ...any) {
	l.emit(itemError, start, fmt.Sprintf(format, args...))
}

func (l *lexer) run() {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.emit(itemEOF, l.pos, "")
			return
		}
		start := l.pos
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case r == '\'' || r == '"':
			if !l.lexString(r) {
				return
			}
		case isDigit(r):
			l.lexNumber()
		case r == '_' || unicode.IsLetter(r):
			l.lexName()
		case strings.ContainsRune("()[]{},:.|=?", r):
			if op, ok := l.matchOperator(); ok {
				l.pos += len(op)
				l.emit(itemOperator, start, op)
				continue
			}
			l.pos += width
			l.emit(itemPunct, start, string(r))
		default:
			op, ok := l.matchOperator()
			if !ok {
				l.errorf(start, "unexpected character %q", r)
				return
			}
			l.pos += len(op)
			l.emit(itemOperator, start, op)
		}
	}
}

func (l *lexer) matchOperator() (string, bool) {
	rest := l.src[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			return op, true
		}
	}
	return "", false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += width
	}
}

func (l *lexer) lexName() {
	start := l.pos
	for l.pos < len(l.src) {
		r, width := utf8.DecodeRuneInString(l.src[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += width
	}
	l.emit(itemName, start, l.src[start:l.pos])
}

func (l *lexer) lexNumber() {
	start := l.pos
	for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
		l.pos++
	}
	// A dot followed by a digit continues the number; "1..5" is a range.
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(rune(l.src[l.pos+1])) {
		l.pos++
		for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.src) || !isDigit(rune(l.src[l.pos])) {
			l.pos = mark
		} else {
			for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
				l.pos++
			}
		}
	}
	l.emit(itemNumber, start, l.src[start:l.pos])
}

// lexString scans a quoted string. Double-quoted strings containing "#{" are
// emitted raw as itemInterpolated so the parser can expand them.
func (l *lexer) lexString(quote rune) bool {
	start := l.pos
	l.pos++
	var b strings.Builder
	interpolated := false
	depth := 0
	for {
		if l.pos >= len(l.src) {
			l.errorf(start, "unterminated string")
			return false
		}
		c := l.src[l.pos]
		switch {
		case c == '\\' && depth == 0:
			if l.pos+1 >= len(l.src) {
				l.errorf(start, "unterminated string")
				return false
			}
			b.WriteString(unescape(l.src[l.pos+1], quote))
			l.pos += 2
			continue
		case quote == '"' && c == '#' && strings.HasPrefix(l.src[l.pos:], "#{"):
			interpolated = true
			depth++
			l.pos += 2
			b.WriteString("#{")
			continue
		case depth > 0 && c == '{':
			depth++
		case depth > 0 && c == '}':
			depth--
		case depth == 0 && rune(c) == quote:
			l.pos++
			if interpolated {
				l.emit(itemInterpolated, start, l.src[start+1:l.pos-1])
			} else {
				l.emit(itemString, start, b.String())
			}
			return true
		}
		b.WriteByte(c)
		l.pos++
	}
}

func unescape(c byte, quote rune) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\':
		return "\\"
	case '\'', '"', '#':
		return string(c)
	default:
		if rune(c) == quote {
			return string(c)
		}
		return "\\" + string(c)
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
