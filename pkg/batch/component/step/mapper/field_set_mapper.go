// Package mapper turns raw records into typed items through an explicit,
// ordered list of field bindings.
package mapper

import (
	"context"

	"github.com/tigerroll/csvload/pkg/batch/component/step/reader"
	"github.com/tigerroll/csvload/pkg/batch/core/application/port"
	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

// FieldBinding maps one named field onto one attribute of T.
type FieldBinding[T any] struct {
	Field string
	apply func(raw string, target *T) error
}

// Bind creates the binding (field, coerce, assign): the raw value of field is
// converted by coerce and stored by assign.
func Bind[T, V any](field string, coerce Coercion[V], assign func(*T, V)) FieldBinding[T] {
	return FieldBinding[T]{
		Field: field,
		apply: func(raw string, target *T) error {
			v, err := coerce(raw)
			if err != nil {
				return err
			}
			assign(target, v)
			return nil
		},
	}
}

// FieldSetMapper maps a reader.RawRecord to T.
type FieldSetMapper[T any] struct {
	bindings []FieldBinding[T]
}

var _ port.ItemMapper[reader.RawRecord, struct{}] = (*FieldSetMapper[struct{}])(nil)

// NewFieldSetMapper returns a mapper applying bindings in order.
func NewFieldSetMapper[T any](bindings ...FieldBinding[T]) *FieldSetMapper[T] {
	return &FieldSetMapper[T]{bindings: bindings}
}

// Fields returns the bound field names in order.
func (m *FieldSetMapper[T]) Fields() []string {
	names := make([]string, len(m.bindings))
	for i, b := range m.bindings {
		names[i] = b.Field
	}
	return names
}

// Map builds a T from rec. A field missing from rec is coerced from "".
// The first failing binding aborts with a *exception.FieldMappingError.
func (m *FieldSetMapper[T]) Map(ctx context.Context, rec reader.RawRecord) (T, error) {
	var out T
	for _, b := range m.bindings {
		raw, _ := rec.Get(b.Field)
		if err := b.apply(raw, &out); err != nil {
			var zero T
			return zero, &exception.FieldMappingError{Record: rec.Number, Field: b.Field, Value: raw, Err: err}
		}
	}
	return out, nil
}
