package item

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
)

// CompositeItemProcessor chains processors of the same type.
// The first error, port.ErrSkipItem included, ends the chain.
type CompositeItemProcessor[T any] struct {
	delegates []port.ItemProcessor[T, T]
}

// NewCompositeItemProcessor returns a processor running delegates in order.
func NewCompositeItemProcessor[T any](delegates ...port.ItemProcessor[T, T]) *CompositeItemProcessor[T] {
	return &CompositeItemProcessor[T]{delegates: delegates}
}

func (c *CompositeItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	var err error
	for _, d := range c.delegates {
		if item, err = d.Process(ctx, item); err != nil {
			var zero T
			return zero, err
		}
	}
	return item, nil
}
