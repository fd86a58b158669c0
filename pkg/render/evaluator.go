package render

import (
	"context"

	"github.com/goliatone/go-renderbridge/pkg/cache"
)

// Output is the result of evaluating a node.
type Output struct {
	Markup   string
	Metadata cache.Bubbleable
}

// Evaluator turns a render node into markup plus the metadata collected while
// rendering it.
type Evaluator interface {
	Evaluate(ctx context.Context, node Node) (Output, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, node Node) (Output, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, node Node) (Output, error) {
	return f(ctx, node)
}
