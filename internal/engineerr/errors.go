// Package engineerr defines the memory engine's error taxonomy.
//
// Every engine-facing error carries a stable Code so hosts can branch on
// failure type instead of parsing messages, plus a Recoverable flag and a
// human-actionable Suggestion, per the propagation policy in spec.md §7.
package engineerr

import (
	"errors"
	"fmt"
)

// Code identifies a class of engine error.
type Code string

const (
	CodeDBNotInit          Code = "DB_NOT_INIT"
	CodeDBBlocked          Code = "DB_BLOCKED"
	CodeDBSizeWarning      Code = "DB_SIZE_WARNING"
	CodeDBBusy             Code = "DB_BUSY"
	CodeDBLocked           Code = "DB_LOCKED"
	CodeDBCorrupt          Code = "DB_CORRUPT"
	CodeMemoryNotFound     Code = "MEMORY_NOT_FOUND"
	CodeInvalidQuery       Code = "INVALID_QUERY"
	CodeContentTooLarge    Code = "CONTENT_TOO_LARGE"
	CodeBulkDeleteBlocked  Code = "BULK_DELETE_BLOCKED"
	CodeSessionNotFound    Code = "SESSION_NOT_FOUND"
	CodeInvalidRelationship Code = "INVALID_RELATIONSHIP"
)

// recoverable records, per code, whether a caller can reasonably retry or
// work around the failure (§7's Recoverable column).
var recoverable = map[Code]bool{
	CodeDBNotInit:           false,
	CodeDBBlocked:           true,
	CodeDBSizeWarning:       true,
	CodeDBBusy:              true,
	CodeDBLocked:            true,
	CodeDBCorrupt:           false,
	CodeMemoryNotFound:      true,
	CodeInvalidQuery:        true,
	CodeContentTooLarge:     true,
	CodeBulkDeleteBlocked:   true,
	CodeSessionNotFound:     true,
	CodeInvalidRelationship: true,
}

var suggestions = map[Code]string{
	CodeDBBlocked:          "run consolidate() or forget() to shrink the database below 100 MiB",
	CodeDBSizeWarning:      "database is over 50 MiB; consider running consolidate()",
	CodeDBBusy:             "retry the operation; another writer currently holds the database",
	CodeDBLocked:           "retry the operation; another writer currently holds the database",
	CodeMemoryNotFound:     "verify the memory id; it may have been deleted by consolidation",
	CodeInvalidQuery:       "check the search query for unescaped FTS syntax",
	CodeContentTooLarge:    "content exceeds 10 KiB in strict mode; shorten it or disable strict mode",
	CodeBulkDeleteBlocked:  "pass confirm: true to proceed with a bulk delete over the safety threshold",
	CodeSessionNotFound:    "verify the session id; it may have already ended",
	CodeInvalidRelationship: "source and target must differ and both must exist",
}

// EngineError is the concrete error type returned by engine operations.
type EngineError struct {
	Code        Code
	Message     string
	Recoverable bool
	Suggestion  string
	cause       error
}

func (e *EngineError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.cause }

// New builds an EngineError for the given code with a message.
func New(code Code, message string) *EngineError {
	return &EngineError{
		Code:        code,
		Message:     message,
		Recoverable: recoverable[code],
		Suggestion:  suggestions[code],
	}
}

// Wrap builds an EngineError that preserves an underlying cause for
// diagnostics while surfacing a stable code and human message to the caller.
func Wrap(code Code, message string, cause error) *EngineError {
	ee := New(code, message)
	ee.cause = cause
	return ee
}

// Is reports whether target is (or wraps) an *EngineError with the same
// Code, so errors.Is(err, engineerr.New(code, "")) matches on the code alone;
// callers typically use As or CodeOf to get the full struct.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// CodeOf extracts the Code from err if it is (or wraps) an *EngineError.
func CodeOf(err error) (Code, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}
