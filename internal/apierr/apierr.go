// Package apierr defines the closed set of Argus error codes (spec.md §7)
// on top of github.com/agilira/go-errors, and the uniform HTTP envelope
// (spec.md §4.4 "{ok:true, …}" / "{ok:false, error:{message, code}}")
// every watcher handler renders its result through.
//
// Grounded on agilira-argus/argus.go's errors.New(code, msg) /
// errors.Wrap(err, code, msg).WithContext(k, v) pattern; Code is kept as
// a typed string here (rather than read back off the wrapped error)
// because go-errors.Error does not publish an accessor for the code it
// was constructed with, only Error() string.
package apierr

import (
	goerrors "github.com/agilira/go-errors"
)

// Code is one of the closed set of error.code values from spec.md §7.
type Code string

const (
	// transport
	CodeCDPClosed      Code = "cdp_closed"
	CodeCDPTimeout     Code = "cdp_timeout"
	CodeWSError        Code = "ws_error"
	CodeConnectFailed  Code = "connect_failed"

	// protocol
	CodeInvalidBody      Code = "invalid_body"
	CodeInvalidMatch     Code = "invalid_match"
	CodeInvalidMatchCase Code = "invalid_match_case"
	CodeNotFound         Code = "not_found"

	// match
	CodeMultipleMatches Code = "multiple_matches"
	CodeNoMatch         Code = "no_match"
	CodeCountMismatch   Code = "count_mismatch"
	CodeUnknownKey      Code = "unknown_key"

	// state
	CodeCDPNotAttached Code = "cdp_not_attached"
	CodeIDInUse        Code = "id_in_use"
	CodeOriginMismatch Code = "origin_mismatch"
	CodeNetDisabled    Code = "net_disabled"

	// operator: any verbatim CDP error.message is carried under this code.
	CodeOperatorError Code = "operator_error"
)

// Error is an Argus API error: it carries the closed-set Code from §7
// alongside a human message, and wraps the go-errors value so callers
// that type-switch on the go-errors chain (errors.Is/errors.As against
// a wrapped cause) still work.
type Error struct {
	cause   *goerrors.Error
	code    Code
	message string
}

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{cause: goerrors.New(string(code), message), code: code, message: message}
}

// Wrap constructs an Error carrying code/message, with err as its cause.
// If err is nil, behaves like New.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{cause: goerrors.Wrap(err, string(code), message), code: code, message: message}
}

// WithContext attaches a diagnostic key/value to the error (grounded on
// agilira-argus's `.WithContext("path", path)` chaining).
func (e *Error) WithContext(key string, value any) *Error {
	e.cause = e.cause.WithContext(key, value)
	return e
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

// Code returns the closed-set error code (spec.md §7).
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable message, independent of any wrapped cause.
func (e *Error) Message() string { return e.message }

// Operator wraps a verbatim CDP `error.message` under CodeOperatorError
// (spec.md §7 "operator: any CDP error.message is propagated verbatim").
func Operator(cdpMessage string) *Error {
	return New(CodeOperatorError, cdpMessage)
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, or ""
// if it carries no Argus error code.
func CodeOf(err error) Code {
	var ae *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ae = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ae == nil {
		return ""
	}
	return ae.code
}

// HTTPStatus maps a Code to the status the watcher's HTTP API responds
// with (spec.md §7: "protocol ... 400/404", "match ... 400", "state ...
// 400"; everything else defaults to 500 as an operational failure).
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return 404
	case CodeInvalidBody, CodeInvalidMatch, CodeInvalidMatchCase,
		CodeMultipleMatches, CodeNoMatch, CodeCountMismatch, CodeUnknownKey,
		CodeCDPNotAttached, CodeIDInUse, CodeOriginMismatch, CodeNetDisabled:
		return 400
	default:
		return 500
	}
}
