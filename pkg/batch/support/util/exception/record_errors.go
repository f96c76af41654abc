package exception

import (
	"errors"
	"fmt"
)

// Sentinels matched by the record-level error types through errors.Is.
var (
	ErrMalformedRecord     = errors.New("malformed record")
	ErrFieldMapping        = errors.New("field mapping failed")
	ErrTransformValidation = errors.New("record failed validation")
	ErrWrite               = errors.New("chunk write failed")
)

// MalformedRecordError is raised by a reader when a line cannot be tokenized,
// or by a strict reader when a line's field count disagrees with the
// configured field names.
type MalformedRecordError struct {
	Line     int // physical line number, 1-based
	Expected int
	Actual   int
	Input    string
	Err      error // tokenizer error, nil for a field count mismatch
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed record at line %d: expected %d fields, got %d", e.Line, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrMalformedRecord) true.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// FieldMappingError names the field and raw value that could not be coerced.
type FieldMappingError struct {
	Record int // record number within the source, 1-based
	Field  string
	Value  string
	Err    error
}

func (e *FieldMappingError) Error() string {
	return fmt.Sprintf("record %d: cannot map field '%s' from value %q: %v", e.Record, e.Field, e.Value, e.Err)
}

func (e *FieldMappingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFieldMapping) true.
func (e *FieldMappingError) Is(target error) bool { return target == ErrFieldMapping }

// TransformValidationError is returned by a processor that rejects a record as invalid.
// Unlike a skip it fails the chunk.
type TransformValidationError struct {
	Field  string
	Reason string
}

// NewTransformValidationError creates a TransformValidationError for field.
func NewTransformValidationError(field, format string, a ...interface{}) *TransformValidationError {
	return &TransformValidationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

func (e *TransformValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on '%s': %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrTransformValidation) true.
func (e *TransformValidationError) Is(target error) bool { return target == ErrTransformValidation }

// WriteError wraps a store failure while persisting a chunk.
// Index is the position of the failing item within the chunk, or -1 when the
// failure is not tied to one item (commit, connection).
type WriteError struct {
	Table string
	Index int
	Size  int
	Err   error
}

func (e *WriteError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("write of %d items to %s failed: %v", e.Size, e.Table, e.Err)
	}
	return fmt.Sprintf("write to %s failed at item %d of %d: %v", e.Table, e.Index+1, e.Size, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrWrite) true.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// ChunkError records where in a step a chunk failed.
// Offset is the offset of the last saved checkpoint, the position a re-run
// resumes from. Committed is set when the chunk's rows were committed but its
// checkpoint could not be saved.
type ChunkError struct {
	Step       string
	ChunkIndex int // 0-based index of the chunk that failed
	Offset     int
	Committed  bool
	Err        error
}

func (e *ChunkError) Error() string {
	if e.Committed {
		return fmt.Sprintf("step '%s' chunk %d committed without checkpoint (resume offset %d): %v", e.Step, e.ChunkIndex, e.Offset, e.Err)
	}
	return fmt.Sprintf("step '%s' chunk %d rolled back (resume offset %d): %v", e.Step, e.ChunkIndex, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
