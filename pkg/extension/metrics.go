package extension

import (
	"time"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// Metrics receives runtime observations from scopes.
type Metrics interface {
	// EscapeObserved is called once per gate invocation. kind names the value
	// kind that was dispatched on.
	EscapeObserved(ctx markup.Context, kind string, autoescape bool)
	// NodeEvaluated is called after every evaluator invocation.
	NodeEvaluated(elapsed time.Duration, err error)
	// RenderCompleted is called when a scope is closed with its final
	// metadata.
	RenderCompleted(result cache.Bubbleable)
}

type noopMetrics struct{}

func (noopMetrics) EscapeObserved(markup.Context, string, bool) {}
func (noopMetrics) NodeEvaluated(time.Duration, error) {}
func (noopMetrics) RenderCompleted(cache.Bubbleable) {}
