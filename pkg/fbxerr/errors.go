// Package fbxerr defines the error kinds returned while discovering,
// pairing with and talking to a Freebox appliance.
package fbxerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindInvalidDescriptor means the application descriptor is missing a required field.
	KindInvalidDescriptor Kind = "invalid_descriptor"
	// KindCannotReachAppliance means discovery exhausted the fallback ladder.
	KindCannotReachAppliance Kind = "cannot_reach_appliance"
	// KindAuthorizationRejected means the appliance refused the initial token request.
	KindAuthorizationRejected Kind = "authorization_rejected"
	// KindAuthorizationDenied means the user declined the request on the appliance.
	KindAuthorizationDenied Kind = "authorization_denied"
	// KindAuthorizationTimedOut means the user did not answer in time.
	KindAuthorizationTimedOut Kind = "authorization_timed_out"
	// KindTransport covers TLS and connection level failures.
	KindTransport Kind = "transport_error"
	// KindRequestFailed means the appliance answered with success=false.
	KindRequestFailed Kind = "request_failed"
	// KindInsufficientPermissions means the app lacks the right for the call.
	KindInsufficientPermissions Kind = "insufficient_permissions"
	// KindInvalidToken means the appliance refused to open a session for the app token.
	KindInvalidToken Kind = "invalid_token"
)

// Error is the error type returned by this module.
type Error struct {
	Kind    Kind
	Message string
	// Host and Port are set for KindCannotReachAppliance.
	Host string
	Port string
	// Code is the appliance error_code, when there is one.
	Code string
	// Response holds the raw appliance answer for diagnostics.
	Response []byte
	Inner    error
}

// New creates an Error of the given kind.
func New(kind Kind, message string, inner error) *Error {
	return &Error{Kind: kind, Message: message, Inner: inner}
}

func NewInvalidDescriptor(message string) *Error {
	return New(KindInvalidDescriptor, message, nil)
}

// NewCannotReachAppliance reports the last attempted address.
func NewCannotReachAppliance(host, port string, inner error) *Error {
	e := New(KindCannotReachAppliance,
		fmt.Sprintf("cannot detect freebox at %s:%s, please check your configuration", host, port), inner)
	e.Host = host
	e.Port = port
	return e
}

func NewAuthorizationRejected(response []byte) *Error {
	e := New(KindAuthorizationRejected, fmt.Sprintf("authorization failed (APIResponse: %s)", response), nil)
	e.Response = response
	return e
}

func NewAuthorizationDenied() *Error {
	return New(KindAuthorizationDenied, "the app token is invalid or has been revoked", nil)
}

func NewAuthorizationTimedOut() *Error {
	return New(KindAuthorizationTimedOut, "authorization timed out", nil)
}

func NewTransport(message string, inner error) *Error {
	return New(KindTransport, message, inner)
}

// NewRequestFailed maps an appliance error answer to an Error. The
// insufficient_rights code gets its own kind.
func NewRequestFailed(code, message string, response []byte) *Error {
	kind := KindRequestFailed
	if code == "insufficient_rights" {
		kind = KindInsufficientPermissions
	}
	e := New(kind, message, nil)
	e.Code = code
	e.Response = response
	return e
}

func (e Error) Error() string {
	msg := string(e.Kind) + " " + e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", msg, e.Inner)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e Error) Unwrap() error {
	return e.Inner
}

// As returns the *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e := As(err)
	return e != nil && e.Kind == kind
}

func IsInvalidDescriptor(err error) bool     { return IsKind(err, KindInvalidDescriptor) }
func IsCannotReachAppliance(err error) bool  { return IsKind(err, KindCannotReachAppliance) }
func IsAuthorizationRejected(err error) bool { return IsKind(err, KindAuthorizationRejected) }
func IsAuthorizationDenied(err error) bool   { return IsKind(err, KindAuthorizationDenied) }
func IsAuthorizationTimedOut(err error) bool { return IsKind(err, KindAuthorizationTimedOut) }
func IsTransport(err error) bool             { return IsKind(err, KindTransport) }
