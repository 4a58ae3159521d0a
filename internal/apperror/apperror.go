// Package apperror carries the error taxonomy shared by use cases and transports.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindGateway      Kind = "gateway"
	KindInternal     Kind = "internal"
)

// Error is a classified failure with a stable machine code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details is rendered to clients as-is; keep it JSON friendly.
	Details any
	Err     error
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind Kind, code string, err error, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf reports the machine code of err, or "INTERNAL" when unclassified.
func CodeOf(err error) string {
	if ae, ok := As(err); ok && ae.Code != "" {
		return ae.Code
	}
	return "INTERNAL"
}

func Validation(code, msg string) *Error { return New(KindValidation, code, msg) }
func NotFound(code, msg string) *Error   { return New(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error   { return New(KindConflict, code, msg) }
func Forbidden(code, msg string) *Error  { return New(KindForbidden, code, msg) }

func Internal(err error, msg string) *Error {
	return Wrap(KindInternal, "INTERNAL", err, msg)
}
