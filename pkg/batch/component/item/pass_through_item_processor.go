// Package item provides generic item processors.
package item

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
)

// PassThroughItemProcessor returns every item unchanged.
type PassThroughItemProcessor[T any] struct{}

// NewPassThroughItemProcessor creates a new instance of [PassThroughItemProcessor].
func NewPassThroughItemProcessor[T any]() port.ItemProcessor[T, T] {
	return PassThroughItemProcessor[T]{}
}

// Process returns the input item as is.
func (PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// ProcessorFunc adapts a function to [port.ItemProcessor].
type ProcessorFunc[I, O any] func(ctx context.Context, item I) (O, error)

// Process calls f.
func (f ProcessorFunc[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}
