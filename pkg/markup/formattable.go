package markup

import (
	"fmt"
	"sort"
	"strings"
)

// Formattable is a format string with named placeholders that are substituted
// on output. Placeholder prefixes select the treatment of the argument:
//
//	@name  escaped as HTML unless the argument is HTML-safe Markup
//	%name  escaped like @name and wrapped in <em class="placeholder">
//	:name  treated as a URL: dangerous schemes are stripped, then escaped
//
// The format string itself is trusted.
type Formattable struct {
	Format string
	Args   map[string]any
}

// Format builds a Formattable.
func Format(format string, args map[string]any) Formattable {
	return Formattable{Format: format, Args: args}
}

func (f Formattable) String() string {
	if len(f.Args) == 0 {
		return f.Format
	}
	replacements := make(map[string]string, len(f.Args))
	keys := make([]string, 0, len(f.Args))
	for key, value := range f.Args {
		if len(key) < 2 {
			continue
		}
		switch key[0] {
		case '@':
			replacements[key] = placeholderText(value)
		case '%':
			replacements[key] = `<em class="placeholder">` + placeholderText(value) + `</em>`
		case ':':
			replacements[key] = EscapeHTML(StripDangerousProtocols(fmt.Sprint(value)))
		default:
			continue
		}
		keys = append(keys, key)
	}
	return replaceLongestFirst(f.Format, keys, replacements)
}

func (f Formattable) SafeFor(c Context) bool { return c == ContextHTML }

func placeholderText(value any) string {
	if value == nil {
		return ""
	}
	if IsSafe(value, ContextHTML) {
		return value.(Markup).String()
	}
	return EscapeHTML(fmt.Sprint(value))
}

// replaceLongestFirst scans s once, preferring the longest key at each
// position so "@name" never shadows "@names".
func replaceLongestFirst(s string, keys []string, replacements map[string]string) string {
	if len(keys) == 0 {
		return s
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	var b strings.Builder
	b.Grow(len(s))
outer:
	for i := 0; i < len(s); {
		for _, key := range keys {
			if strings.HasPrefix(s[i:], key) {
				b.WriteString(replacements[key])
				i += len(key)
				continue outer
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

var allowedProtocols = map[string]struct{}{
	"http": {}, "https": {}, "ftp": {}, "news": {}, "nntp": {}, "tel": {},
	"telnet": {}, "mailto": {}, "irc": {}, "ssh": {}, "sftp": {}, "webcal": {}, "rtsp": {},
}

// StripDangerousProtocols removes any URI scheme that is not on the allow
// list, repeatedly, so nested schemes such as "javascript:javascript:" are
// also removed.
func StripDangerousProtocols(raw string) string {
	uri := raw
	for {
		colon := strings.IndexByte(uri, ':')
		if colon <= 0 {
			return uri
		}
		prefix := uri[:colon]
		if strings.ContainsAny(prefix, "/?#") {
			return uri
		}
		if _, ok := allowedProtocols[strings.ToLower(prefix)]; ok {
			return uri
		}
		uri = uri[colon+1:]
	}
}
