package markup

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape escapes s for context c after decoding it from charset. An empty
// charset, or any UTF-8 alias, leaves s untouched.
func Escape(s string, c Context, charset string) (string, error) {
	decoded, err := ToUTF8(s, charset)
	if err != nil {
		return "", err
	}
	switch c {
	case "", ContextHTML:
		return EscapeHTML(decoded), nil
	case ContextJS:
		return EscapeJS(decoded), nil
	case ContextCSS:
		return EscapeCSS(decoded), nil
	case ContextURL:
		return EscapeURL(decoded), nil
	case ContextHTMLAttr:
		return EscapeHTMLAttr(decoded), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownContext, string(c))
	}
}

// ToUTF8 decodes s from the named charset.
func ToUTF8(s, charset string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return strings.ToValidUTF8(s, "�"), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return "", fmt.Errorf("markup: decode %s: %w", charset, err)
	}
	return out, nil
}

// EscapeHTML escapes the five HTML special characters, single quotes as
// &#039;.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// EscapeJS escapes every character except ASCII letters, digits, ',', '.'
// and '_' so the result is safe inside a quoted JavaScript string.
func EscapeJS(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) || r == ',' || r == '.' || r == '_' {
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < utf8.RuneSelf {
				b.WriteString(`\x`)
				writeHex(&b, int(r), 2)
				continue
			}
			if r > 0xFFFF {
				r -= 0x10000
				b.WriteString(`\u`)
				writeHex(&b, int(0xD800+(r>>10)), 4)
				b.WriteString(`\u`)
				writeHex(&b, int(0xDC00+(r&0x3FF)), 4)
				continue
			}
			b.WriteString(`\u`)
			writeHex(&b, int(r), 4)
		}
	}
	return b.String()
}

// EscapeCSS replaces every non-alphanumeric character with a hexadecimal
// escape followed by a space.
func EscapeCSS(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('\\')
		writeHex(&b, int(r), 1)
		b.WriteByte(' ')
	}
	return b.String()
}

// EscapeURL percent-encodes s following RFC 3986: only unreserved characters
// are kept.
func EscapeURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(rune(c)) || c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		writeHex(&b, int(c), 2)
	}
	return b.String()
}

// EscapeHTMLAttr escapes s for use in an unquoted or quoted attribute value.
func EscapeHTMLAttr(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlnum(r) || r == ',' || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '"':
			b.WriteString("&quot;")
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case (r <= 0x1F && r != '\t' && r != '\n' && r != '\r') || (r >= 0x7F && r <= 0x9F) || r == utf8.RuneError:
			b.WriteString("&#xFFFD;")
		case r > 0xFF:
			b.WriteString("&#x")
			writeHex(&b, int(r), 4)
			b.WriteByte(';')
		default:
			b.WriteString("&#x")
			writeHex(&b, int(r), 2)
			b.WriteByte(';')
		}
	}
	return b.String()
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func writeHex(b *strings.Builder, v, width int) {
	digits := fmt.Sprintf("%X", v)
	for i := len(digits); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(digits)
}
