package pongo

import (
	"fmt"
	"strings"
)

type segmentKind int

const (
	segText segmentKind = iota
	segPrint
	segTag
	segComment
)

// segment is one piece of template source. open and close carry the
// delimiters with any whitespace-control marker normalised to "-".
type segment struct {
	kind  segmentKind
	raw   string
	open  string
	close string
	body  string
	line  int
	stack []string
}

// scan splits src into text, print, tag and comment segments. Quoted strings
// inside delimiters may contain the closing delimiter. Verbatim blocks are
// passed through as text.
func scan(src string, fn func(segment) error) error {
	var stack []string
	pos := 0
	for pos < len(src) {
		start := nextDelimiter(src, pos)
		if start < 0 {
			return fn(segment{kind: segText, raw: src[pos:], line: lineAt(src, pos)})
		}
		if start > pos {
			if err := fn(segment{kind: segText, raw: src[pos:start], line: lineAt(src, pos)}); err != nil {
				return err
			}
		}

		line := lineAt(src, start)
		switch src[start+1] {
		case '#':
			end := strings.Index(src[start+2:], "#}")
			if end < 0 {
				return fmt.Errorf("%w: comment opened on line %d", ErrUnclosedDelimiter, line)
			}
			next := start + 2 + end + 2
			if err := fn(segment{kind: segComment, raw: src[start:next], line: line}); err != nil {
				return err
			}
			pos = next
			continue
		}

		kind, closing := segPrint, "}}"
		if src[start+1] == '%' {
			kind, closing = segTag, "%}"
		}
		end := closingDelimiter(src, start+2, closing)
		if end < 0 {
			return fmt.Errorf("%w: %q opened on line %d", ErrUnclosedDelimiter, src[start:start+2], line)
		}
		seg := segment{
			kind:  kind,
			raw:   src[start : end+2],
			open:  src[start : start+2],
			close: closing,
			body:  src[start+2 : end],
			line:  line,
		}
		if strings.HasPrefix(seg.body, "-") || strings.HasPrefix(seg.body, "~") {
			seg.open += "-"
			seg.body = seg.body[1:]
		}
		if strings.HasSuffix(seg.body, "-") || strings.HasSuffix(seg.body, "~") {
			seg.close = "-" + seg.close
			seg.body = seg.body[:len(seg.body)-1]
		}
		pos = end + 2

		if kind == segTag {
			name, _ := splitTag(seg.body)
			switch name {
			case "for", "if":
				stack = append(stack, name)
			case "endfor", "endif":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "verbatim":
				stop := verbatimEnd(src, pos)
				if stop < 0 {
					return fmt.Errorf("%w: verbatim block opened on line %d", ErrUnclosedDelimiter, line)
				}
				if err := fn(segment{kind: segText, raw: src[start:stop], line: line}); err != nil {
					return err
				}
				pos = stop
				continue
			}
			seg.stack = append([]string(nil), stack...)
		}
		if err := fn(seg); err != nil {
			return err
		}
	}
	return nil
}

func nextDelimiter(src string, from int) int {
	for i := from; i+1 < len(src); i++ {
		if src[i] != '{' {
			continue
		}
		switch src[i+1] {
		case '{', '%', '#':
			return i
		}
	}
	return -1
}

// closingDelimiter finds closing at or after from, skipping quoted strings.
func closingDelimiter(src string, from int, closing string) int {
	var quote byte
	for i := from; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(src[i:], closing):
			return i
		}
	}
	return -1
}

// verbatimEnd returns the offset just past the endverbatim tag.
func verbatimEnd(src string, from int) int {
	for pos := from; pos < len(src); {
		start := strings.Index(src[pos:], "{%")
		if start < 0 {
			return -1
		}
		start += pos
		end := strings.Index(src[start:], "%}")
		if end < 0 {
			return -1
		}
		end += start
		body := strings.Trim(src[start+2:end], "-~ \t\r\n")
		if body == "endverbatim" {
			return end + 2
		}
		pos = end + 2
	}
	return -1
}

func lineAt(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}
