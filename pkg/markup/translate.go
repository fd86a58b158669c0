package markup

import (
	"errors"
	"strings"
)

// ErrMissingTranslator is passed to a MissingTranslationHandler when no
// Translator is configured.
var ErrMissingTranslator = errors.New("markup: translator not configured")

// Translator resolves a source string into the string for locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler picks the string used when a translation fails.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

// Translatable is a source string translated lazily and then formatted with
// the Formattable placeholder rules.
type Translatable struct {
	Text       string
	Args       map[string]any
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
}

func (t Translatable) String() string {
	return Format(t.translated(), t.Args).String()
}

func (t Translatable) SafeFor(c Context) bool { return c == ContextHTML }

func (t Translatable) translated() string {
	if strings.TrimSpace(t.Text) == "" {
		return t.Text
	}
	if t.Translator == nil {
		if t.OnMissing != nil {
			return t.OnMissing(t.Locale, t.Text, nil, ErrMissingTranslator)
		}
		return t.Text
	}
	msg, err := t.Translator.Translate(t.Locale, t.Text)
	if err == nil && strings.TrimSpace(msg) != "" {
		return msg
	}
	if t.OnMissing != nil {
		return t.OnMissing(t.Locale, t.Text, nil, err)
	}
	return t.Text
}
