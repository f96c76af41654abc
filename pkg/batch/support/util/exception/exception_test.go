package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/csvload/pkg/batch/support/util/exception"
)

func TestBatchError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := exception.NewBatchError("writer", "failed to write chunk", cause)

	assert.Equal(t, "[writer] failed to write chunk: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, exception.IsBatchError(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "failed to write chunk", exception.ExtractErrorMessage(err))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
}

func TestNewBatchErrorf_TrailingErrorBecomesCause(t *testing.T) {
	cause := errors.New("boom")
	err := exception.NewBatchErrorf("step1", "chunk %d failed", 3, cause)

	assert.Equal(t, "chunk 3 failed", err.Message)
	assert.Same(t, cause, err.OriginalErr)

	noCause := exception.NewBatchErrorf("step1", "chunk %d failed", 4)
	assert.Nil(t, noCause.OriginalErr)
	assert.Equal(t, "[step1] chunk 4 failed", noCause.Error())
}

func TestRecordErrors_MatchSentinels(t *testing.T) {
	malformed := &exception.MalformedRecordError{Line: 3, Expected: 8, Actual: 5}
	mapping := &exception.FieldMappingError{Record: 2, Field: "dob", Value: "yesterday", Err: errors.New("bad date")}
	validation := exception.NewTransformValidationError("email", "missing '@' in %q", "ann")
	write := &exception.WriteError{Table: "CUSTOMER_INFO", Index: 1, Size: 2, Err: errors.New("constraint")}

	chunk := &exception.ChunkError{Step: "step1", ChunkIndex: 2, Offset: 20, Err: write}

	assert.ErrorIs(t, malformed, exception.ErrMalformedRecord)
	assert.ErrorIs(t, mapping, exception.ErrFieldMapping)
	assert.ErrorIs(t, validation, exception.ErrTransformValidation)
	assert.ErrorIs(t, chunk, exception.ErrWrite)
	assert.NotErrorIs(t, chunk, exception.ErrFieldMapping)

	assert.Contains(t, malformed.Error(), "line 3: expected 8 fields, got 5")
	assert.Contains(t, mapping.Error(), "field 'dob'")
	assert.Contains(t, mapping.Error(), `"yesterday"`)
	assert.Contains(t, write.Error(), "item 2 of 2")
	assert.Contains(t, chunk.Error(), "resume offset 20")

	var we *exception.WriteError
	require.ErrorAs(t, chunk, &we)
	assert.Equal(t, "CUSTOMER_INFO", we.Table)
}

func TestMalformedRecordError_TokenizerCause(t *testing.T) {
	cause := errors.New("extraneous or missing \" in quoted-field")
	err := fmt.Errorf("read: %w", &exception.MalformedRecordError{Line: 7, Err: cause})

	assert.ErrorIs(t, err, exception.ErrMalformedRecord)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "malformed record at line 7: extraneous")
}

func TestChunkError_CommittedWithoutCheckpoint(t *testing.T) {
	err := &exception.ChunkError{Step: "step1", ChunkIndex: 1, Offset: 10, Committed: true, Err: errors.New("db down")}
	assert.Equal(t, "step 'step1' chunk 1 committed without checkpoint (resume offset 10): db down", err.Error())
}

func TestErrorRegistry(t *testing.T) {
	assert.True(t, exception.IsErrorTypeRegistered("FieldMappingError"))
	assert.False(t, exception.IsErrorTypeRegistered("NoSuchError"))

	err := fmt.Errorf("ctx: %w", &exception.MalformedRecordError{Line: 1})
	assert.True(t, exception.IsErrorOfType(err, "MalformedRecordError"))
	assert.False(t, exception.IsErrorOfType(err, "WriteError"))

	assert.Panics(t, func() { exception.RegisterErrorType("", errors.New("x")) })
	assert.Panics(t, func() { exception.RegisterErrorType("x", nil) })
}

func TestOptimisticLockingFailure(t *testing.T) {
	err := exception.NewOptimisticLockingFailureException("repo", "stale version", errors.New("0 rows"))
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.False(t, exception.IsOptimisticLockingFailure(errors.New("other")))
}
