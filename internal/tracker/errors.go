package tracker

import (
	"errors"
	"fmt"
)

// ApplyError describes a failure raised by the session during an apply cycle.
//
// Merge, commit and panic errors are batch-level: the cycle is rolled back.
// Delete errors are local to one record.
type ApplyError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the session operation that failed.
	Op string

	// Identity is the record's identity, when the error concerns one record.
	Identity string

	// Index is the record's position in its snapshot, or -1.
	Index int

	// Err is the underlying error.
	Err error
}

// ErrorCode categorizes apply errors.
type ErrorCode string

const (
	// ErrCodeMergeFailure indicates MergeOrInsert failed. Fatal to the cycle.
	ErrCodeMergeFailure ErrorCode = "STORE_MERGE_FAILURE"

	// ErrCodeDeleteFailure indicates Delete failed for one record.
	ErrCodeDeleteFailure ErrorCode = "STORE_DELETE_FAILURE"

	// ErrCodeCommitFailure indicates Commit failed. Fatal to the cycle.
	ErrCodeCommitFailure ErrorCode = "TRANSACTION_COMMIT_FAILURE"

	// ErrCodeRollbackFailure indicates Rollback failed after a batch-level error.
	ErrCodeRollbackFailure ErrorCode = "TRANSACTION_ROLLBACK_FAILURE"

	// ErrCodeSessionPanic indicates the session panicked mid-cycle.
	ErrCodeSessionPanic ErrorCode = "SESSION_PANIC"
)

// Error implements the error interface.
func (e *ApplyError) Error() string {
	if e.Identity != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Identity, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsMergeFailure reports whether err is a merge failure.
// Session panics count as merge failures.
func IsMergeFailure(err error) bool {
	return hasCode(err, ErrCodeMergeFailure) || hasCode(err, ErrCodeSessionPanic)
}

// IsDeleteFailure reports whether err is a per-record delete failure.
func IsDeleteFailure(err error) bool {
	return hasCode(err, ErrCodeDeleteFailure)
}

// IsCommitFailure reports whether err is a commit failure.
func IsCommitFailure(err error) bool {
	return hasCode(err, ErrCodeCommitFailure)
}

// hasCode walks joined and wrapped errors looking for code.
// errors.As stops at the first ApplyError, which is not enough when a
// rollback failure is joined after the cause.
func hasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var ae *ApplyError
	if errors.As(err, &ae) && ae.Code == code {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if hasCode(e, code) {
				return true
			}
		}
	}
	return false
}

func mergeError(index int, identity string, err error) *ApplyError {
	return &ApplyError{Code: ErrCodeMergeFailure, Op: "merge", Identity: identity, Index: index, Err: err}
}

func deleteError(index int, identity string, err error) *ApplyError {
	return &ApplyError{Code: ErrCodeDeleteFailure, Op: "delete", Identity: identity, Index: index, Err: err}
}

func commitError(err error) *ApplyError {
	return &ApplyError{Code: ErrCodeCommitFailure, Op: "commit", Index: -1, Err: err}
}

func rollbackError(err error) *ApplyError {
	return &ApplyError{Code: ErrCodeRollbackFailure, Op: "rollback", Index: -1, Err: err}
}

func panicError(op string, v any) *ApplyError {
	return &ApplyError{Code: ErrCodeSessionPanic, Op: op, Index: -1, Err: fmt.Errorf("panic: %v", v)}
}
