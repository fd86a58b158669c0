package markup

import "errors"

var (
	// ErrUnknownContext is returned for an escaping context with no escaper.
	ErrUnknownContext = errors.New("markup: unknown escaping context")
	// ErrUnknownCharset is returned when the input charset cannot be decoded.
	ErrUnknownCharset = errors.New("markup: unknown charset")
)
