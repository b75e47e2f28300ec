// Package dberr defines the unified error taxonomy shared by the broker,
// both connector variants, and callers. Driver- and transport-specific
// failures are mapped into these kinds at the connector boundary so nothing
// above it needs engine knowledge.
package dberr

import (
	"errors"
	"fmt"
)

// Kind tags an error with its place in the broker taxonomy.
type Kind string

const (
	// Resolution failures. Terminal and local: they never reach a connector.
	KindUnknownAlias     Kind = "unknown_alias"
	KindAmbiguousDefault Kind = "ambiguous_default"

	// Request-shape failures (multi-statement payload, bad params, malformed request).
	KindValidation Kind = "validation_error"

	// Statement kind exceeds the descriptor's permission tier.
	KindPermissionDenied Kind = "permission_denied"

	// Local driver failures.
	KindConnection          Kind = "connection_error"
	KindSyntax              Kind = "syntax_error"
	KindConstraintViolation Kind = "constraint_violation"
	KindTimeout             Kind = "timeout"

	// Proxied-mode failures.
	KindRemoteAuth     Kind = "remote_auth_error"
	KindRemoteProtocol Kind = "remote_protocol_error"

	KindOther Kind = "other"
)

// Error carries a Kind plus a caller-safe message. Messages never embed
// passwords, tokens, or parameter values.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error. The message stays caller-safe; the cause is
// reachable via errors.Unwrap for logging.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from anywhere in err's chain, or KindOther if no
// tagged error is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
