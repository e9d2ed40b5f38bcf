// Package apperr defines the sentinel error categories used across nascat.
//
// Error taxonomy
//
//	UserError   – caused by missing or invalid user input (wrong flag, bad value, …).
//	              The CLI prints only the message; usage help is NOT repeated.
//	              Exit code: 1.
//
//	ConfigError – missing or invalid scan configuration (nonexistent scan root,
//	              bad threshold, …). Fatal: detected before any scan work starts.
//
//	StorageError – the catalog persistence backend failed. Surfaced to the
//	               caller; scan results already held in memory are not lost.
//
//	ErrCancelled – the user deliberately aborted an interactive flow (curation
//	               form, record selector, …).
//	               Exit code: 0 (not a failure).
//
// Everything recovered during a scan (unreadable subtree, corrupt file header,
// conflicting READMEs) never becomes one of these: it is downgraded to a
// warning attached to the affected record or to the scan summary.
package apperr

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user explicitly aborts an interactive
// operation.  The CLI should exit 0 rather than 1 when it sees this error.
var ErrCancelled = errors.New("operation cancelled")

// UserError represents an error caused by invalid or missing user input.
// Cobra command handlers return this instead of a bare fmt.Errorf so that
// the root command can suppress repeated usage output and format the message
// in a user-friendly way.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}

// ConfigError represents invalid scan configuration. It aborts before any
// traversal begins; nothing is partially scanned when one is returned.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Config creates a ConfigError with the given message.
func Config(msg string) error { return &ConfigError{Message: msg} }

// Configf creates a formatted ConfigError.
func Configf(format string, args ...any) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a *ConfigError.
func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// StorageError wraps a failure of the catalog persistence backend. The
// in-memory catalog stays valid; callers may retry persistence or export
// elsewhere.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage: " + e.Op
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for the given operation.
func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a *StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
