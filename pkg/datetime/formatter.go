// Package datetime formats Unix timestamps with PHP-style date patterns and
// named date format types.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTypes are the named date format types known out of the box.
var DefaultTypes = map[string]string{
	"short":         "m/d/Y - H:i",
	"medium":        "D, m/d/Y - H:i",
	"long":          "l, F j, Y - H:i",
	"fallback":      "D, m/d/Y - H:i",
	"html_date":     "Y-m-d",
	"html_datetime": `Y-m-d\TH:i:sO`,
	"html_time":     "H:i:s",
	"html_month":    "Y-m",
	"html_year":     "Y",
	"html_week":     `Y-\WW`,
}

const defaultType = "medium"

// Option configures a Formatter.
type Option func(*Formatter)

// WithLocation sets the time zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithType registers or replaces a named format type.
func WithType(name, pattern string) Option {
	return func(f *Formatter) {
		name = strings.TrimSpace(name)
		if name == "" || pattern == "" {
			return
		}
		f.types[name] = pattern
	}
}

// Formatter renders timestamps. It is safe for concurrent use.
type Formatter struct {
	loc   *time.Location
	types map[string]string
}

// New builds a Formatter using UTC and DefaultTypes unless overridden.
func New(options ...Option) *Formatter {
	f := &Formatter{loc: time.UTC, types: make(map[string]string, len(DefaultTypes))}
	for name, pattern := range DefaultTypes {
		f.types[name] = pattern
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}
	return f
}

// Format renders ts. format is a named type ("short", "html_date", ...) or a
// PHP date pattern; an empty format selects "medium".
func (f *Formatter) Format(ts int64, format string) (string, error) {
	if f == nil {
		return "", fmt.Errorf("datetime: formatter is nil")
	}
	pattern := strings.TrimSpace(format)
	if pattern == "" {
		pattern = defaultType
	}
	if named, ok := f.types[pattern]; ok {
		pattern = named
	}
	return FormatPattern(time.Unix(ts, 0).In(f.loc), pattern), nil
}

// FormatPattern renders t using PHP date() pattern characters. A backslash
// escapes the next character; unknown characters are copied verbatim.
func FormatPattern(t time.Time, pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			i++
			b.WriteRune(runes[i])
			continue
		}
		if s, ok := formatChar(t, c); ok {
			b.WriteString(s)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func formatChar(t time.Time, c rune) (string, bool) {
	switch c {
	case 'd':
		return pad2(t.Day()), true
	case 'D':
		return t.Format("Mon"), true
	case 'j':
		return strconv.Itoa(t.Day()), true
	case 'l':
		return t.Weekday().String(), true
	case 'N':
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return strconv.Itoa(wd), true
	case 'S':
		return ordinalSuffix(t.Day()), true
	case 'w':
		return strconv.Itoa(int(t.Weekday())), true
	case 'z':
		return strconv.Itoa(t.YearDay() - 1), true
	case 'W':
		_, week := t.ISOWeek()
		return pad2(week), true
	case 'F':
		return t.Month().String(), true
	case 'm':
		return pad2(int(t.Month())), true
	case 'M':
		return t.Format("Jan"), true
	case 'n':
		return strconv.Itoa(int(t.Month())), true
	case 't':
		return strconv.Itoa(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()), true
	case 'L':
		if isLeap(t.Year()) {
			return "1", true
		}
		return "0", true
	case 'o':
		year, _ := t.ISOWeek()
		return strconv.Itoa(year), true
	case 'Y':
		return strconv.Itoa(t.Year()), true
	case 'y':
		return t.Format("06"), true
	case 'a':
		return t.Format("pm"), true
	case 'A':
		return t.Format("PM"), true
	case 'g':
		return t.Format("3"), true
	case 'G':
		return strconv.Itoa(t.Hour()), true
	case 'h':
		return t.Format("03"), true
	case 'H':
		return pad2(t.Hour()), true
	case 'i':
		return pad2(t.Minute()), true
	case 's':
		return pad2(t.Second()), true
	case 'u':
		return fmt.Sprintf("%06d", t.Nanosecond()/1000), true
	case 'v':
		return fmt.Sprintf("%03d", t.Nanosecond()/1000000), true
	case 'e':
		return t.Location().String(), true
	case 'T':
		return t.Format("MST"), true
	case 'P':
		return t.Format("-07:00"), true
	case 'O':
		return t.Format("-0700"), true
	case 'Z':
		_, offset := t.Zone()
		return strconv.Itoa(offset), true
	case 'c':
		return t.Format("2006-01-02T15:04:05-07:00"), true
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700"), true
	case 'U':
		return strconv.FormatInt(t.Unix(), 10), true
	}
	return "", false
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
