package syncqueue

import (
	"context"
	"errors"
	"fmt"
)

// Queue errors.
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrCleared          = errors.New("operation cleared before it started")
	ErrQueueClosed      = errors.New("sync queue closed")
	ErrQueueFull        = errors.New("sync queue full")
)

// Machine codes carried by errors.
const (
	CodeValidation = "VALIDATION"
	CodeTimeout    = "TIMEOUT"
	CodeUnknown    = "UNKNOWN"
)

// ValidationError rejects an operation before any state change. It is never
// retryable.
type ValidationError struct {
	OperationID string
	Err         error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("operation %s rejected: %v", e.OperationID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RemoteError is a failure reported by the remote store. Committers return
// it for business-rule rejections; any other error counts as transient.
type RemoteError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SyncError is delivered when a commit fails, after the local state has
// been rolled back.
type SyncError struct {
	OperationID string
	Message     string
	Retryable   bool
	Code        string
	Err         error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed: %s", e.OperationID, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Classify decides whether a commit failure is worth retrying and which
// code describes it. Timeouts and unrecognized errors are transient;
// RemoteError speaks for itself.
func Classify(err error) (retryable bool, code string) {
	var remote *RemoteError
	if errors.As(err, &remote) {
		code = remote.Code
		if code == "" {
			code = CodeUnknown
		}
		return remote.Retryable, code
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return false, CodeValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, CodeTimeout
	}
	return true, CodeUnknown
}

func newSyncError(opID string, err error) *SyncError {
	retryable, code := Classify(err)
	return &SyncError{
		OperationID: opID,
		Message:     err.Error(),
		Retryable:   retryable,
		Code:        code,
		Err:         err,
	}
}
