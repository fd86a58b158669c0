package render

import (
	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// GeneratedLink is an anchor that was rendered ahead of time and carries the
// metadata gathered while generating it. It is HTML-safe markup.
type GeneratedLink struct {
	HTML     markup.HTML
	Metadata cache.Bubbleable
}

func (l GeneratedLink) String() string { return string(l.HTML) }
func (l GeneratedLink) SafeFor(c markup.Context) bool { return c == markup.ContextHTML }
func (l GeneratedLink) BubbleableMetadata() cache.Bubbleable { return l.Metadata }

// GeneratedURL is a URL string plus the metadata gathered while generating
// it. It is plain text and is escaped like any other string.
type GeneratedURL struct {
	URL      string
	Metadata cache.Bubbleable
}

func (u GeneratedURL) String() string { return u.URL }
func (u GeneratedURL) BubbleableMetadata() cache.Bubbleable { return u.Metadata }
