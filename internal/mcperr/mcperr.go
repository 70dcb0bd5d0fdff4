// Package mcperr defines the error taxonomy every write/sync operation
// surfaces to its caller: a single exported Error type, built by one
// constructor per taxonomy entry, carrying a code, a human message, optional
// structured details, and remediation hints the client may render verbatim.
//
// The shape mirrors cmd/git-sync/cmd.go's ExitError: wrap the underlying
// cause, keep it reachable via Unwrap/Cause, and render a message that
// includes enough of the cause to debug without a stack trace.
package mcperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code enumerates the taxonomy from spec §7.
type Code string

const (
	CodeValidation                   Code = "validation"
	CodeAuth                         Code = "auth"
	CodeConflict                     Code = "conflict"
	CodeLockTimeout                  Code = "lock_timeout"
	CodeRemote                       Code = "remote"
	CodeIO                           Code = "io"
	CodeDeletionRequiresConfirmation Code = "deletion_requires_confirmation"
	CodeFatal                        Code = "fatal"
)

// Error is the common shape every taxonomy entry below implements.
type Error struct {
	Code    Code
	Message string
	Details interface{}
	Hints   []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }
func (e *Error) Cause() error  { return e.cause }

func newErr(code Code, msg string, cause error, hints ...string) *Error {
	return &Error{Code: code, Message: msg, cause: cause, Hints: hints}
}

// Validation wraps bad-input failures: malformed scriptId, edits[] empty or
// over the 20-edit cap, searchText over 1000 chars, bad glob syntax. Never
// retried by the caller.
func Validation(msg string, hints ...string) *Error {
	return newErr(CodeValidation, msg, nil, hints...)
}

// Auth wraps missing/expired/rejected credentials and OAuth CSRF/exchange
// failures.
func Auth(msg string, cause error, hints ...string) *Error {
	return newErr(CodeAuth, msg, cause, hints...)
}

// ConflictDetails carries both hashes and a preview for a rejected
// optimistic-concurrency write.
type ConflictDetails struct {
	ScriptID     string
	Filename     string
	Operation    string
	ExpectedHash string
	CurrentHash  string
	DiffPreview  string
}

// Conflict is returned when expectedHash != current remote hash and
// force=false.
func Conflict(d ConflictDetails) *Error {
	e := newErr(CodeConflict, fmt.Sprintf("hash mismatch for %s: expected %s, got %s", d.Filename, d.ExpectedHash, d.CurrentHash))
	e.Details = d
	e.Hints = []string{"re-read the file to get its current hash, or pass force=true to overwrite"}
	return e
}

// LockTimeoutDetails names the current holder of a lock a caller failed to
// acquire within its deadline.
type LockTimeoutDetails struct {
	ScriptID string
	Holder   HolderInfo
}

// HolderInfo mirrors the lock record persisted by internal/lock.
type HolderInfo struct {
	PID       int
	Hostname  string
	Timestamp string
	Operation string
}

func LockTimeout(d LockTimeoutDetails) *Error {
	e := newErr(CodeLockTimeout, fmt.Sprintf("timed out waiting for lock on %s, held by pid %d on %s", d.ScriptID, d.Holder.PID, d.Holder.Hostname))
	e.Details = d
	return e
}

// Remote wraps transport/API failures talking to the Remote.
func Remote(msg string, cause error) *Error {
	return newErr(CodeRemote, msg, cause)
}

// IO wraps local filesystem/git failures. These trigger pipeline rollback.
func IO(msg string, cause error) *Error {
	return newErr(CodeIO, msg, cause)
}

// DeletionRequiresConfirmation is rsync's soft refusal when unconfirmed
// deletes would occur.
func DeletionRequiresConfirmation(files []string) *Error {
	e := newErr(CodeDeletionRequiresConfirmation, fmt.Sprintf("%d file(s) would be deleted; pass confirmDeletions=true to proceed", len(files)))
	e.Details = files
	e.Hints = []string{"re-run with confirmDeletions=true if this is expected"}
	return e
}

// Fatal wraps invariant violations: e.g. stage succeeded but diff --cached
// reports no change for a non-delete operation. Never retried.
func Fatal(msg string, cause error) *Error {
	return newErr(CodeFatal, msg, cause)
}

// RolledBack wraps a cause with the standard rollback message the Git
// Operation Manager surfaces after unwinding steps 4-9.
func RolledBack(cause error) *Error {
	return newErr(CodeFatal, "Git operation failed and was rolled back", cause)
}

// As is a thin re-export of errors.As so callers don't need a second import
// for taxonomy matching.
func As(err error, target interface{}) bool { return errors.As(err, target) }
