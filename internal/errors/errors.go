// Package errors provides domain-specific error types for knxtool.
//
// These types carry structured context (operation, endpoint, retryability)
// that helps callers decide how to handle failures and provides better
// diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrNoCredential is returned when a secure link variant was
	// explicitly requested but no tunneling or management key could
	// be resolved from the options or the installed keyring.
	ErrNoCredential = errors.New("missing secure credential")

	// ErrNotConnected reports an operation on a closed or never
	// established connection.
	ErrNotConnected = errors.New("not connected")

	// ErrSessionRefused reports a secure session rejected by the server.
	ErrSessionRefused = errors.New("secure session refused")

	// ErrTimeout reports an expired operation deadline.
	ErrTimeout = errors.New("operation timed out")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "resolve", "join", "write", "read"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SecureError represents a failure during secure session negotiation
// or keyring processing.
type SecureError struct {
	Op   string // "session.request", "session.auth", "keyring"
	Addr string // remote endpoint, if any
	Err  error
}

func (e *SecureError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("secure %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("secure %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SecureError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // option name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("option --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSecure creates a SecureError.
func WrapSecure(op, addr string, err error) *SecureError {
	return &SecureError{Op: op, Addr: addr, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsConfig reports whether err is caller-fixable configuration.
// Configuration errors are surfaced immediately and never retried.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use knxtool/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
