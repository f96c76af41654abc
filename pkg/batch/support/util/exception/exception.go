// Package exception defines the error taxonomy of the batch engine.
// BatchError carries the module an error surfaced in; the record-level types
// (MalformedRecordError, FieldMappingError, TransformValidationError, WriteError)
// describe why a chunk was rolled back, and ChunkError pins a failure to its
// position in the step so that an operator can resume from the last checkpoint.
package exception

import (
	"errors"
	"fmt"
	"sync"
)

// errorRegistry maps well-known error names to sentinel errors so that
// configuration and log tooling can refer to them by name.
var (
	errorRegistry = make(map[string]error)
	registryMutex sync.RWMutex
)

// RegisterErrorType registers a sentinel error under name.
// It panics on an empty name or a nil prototype.
func RegisterErrorType(name string, prototype error) {
	if name == "" {
		panic("error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("cannot register nil prototype for name: %s", name))
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name has been registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// IsErrorOfType reports whether err matches the sentinel registered under name.
func IsErrorOfType(err error, name string) bool {
	if err == nil {
		return false
	}
	registryMutex.RLock()
	target, ok := errorRegistry[name]
	registryMutex.RUnlock()
	return ok && errors.Is(err, target)
}

// BatchError is the error type surfaced by engine components.
type BatchError struct {
	// Module is where the error occurred (e.g. "reader", "writer", "step1", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
}

// NewBatchError creates a BatchError wrapping originalErr.
func NewBatchError(module, message string, originalErr error) *BatchError {
	return &BatchError{Module: module, Message: message, OriginalErr: originalErr}
}

// NewBatchErrorf creates a BatchError with a formatted message.
// If the last argument is an error it becomes the wrapped cause and is not
// passed to the format string.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var cause error
	if n := len(a); n > 0 {
		if err, ok := a[n-1].(error); ok {
			cause = err
			a = a[:n-1]
		}
	}
	return &BatchError{Module: module, Message: fmt.Sprintf(format, a...), OriginalErr: cause}
}

func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsBatchError reports whether err is, or wraps, a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// OptimisticLockingFailureException is the registry name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// ErrOptimisticLockingFailure is returned when a versioned update finds a newer row.
var ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)

// NewOptimisticLockingFailureException wraps originalErr (which may be nil) together
// with ErrOptimisticLockingFailure.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	cause := ErrOptimisticLockingFailure
	if originalErr != nil {
		cause = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewBatchError(module, message, cause)
}

// IsOptimisticLockingFailure reports whether err signals an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	RegisterErrorType("MalformedRecordError", ErrMalformedRecord)
	RegisterErrorType("FieldMappingError", ErrFieldMapping)
	RegisterErrorType("TransformValidationError", ErrTransformValidation)
	RegisterErrorType("WriteError", ErrWrite)
}
