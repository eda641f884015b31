package engine

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeActorNotFound       Code = "actor_not_found"
	CodeExchangeDisallowed  Code = "exchange_disallowed"
	CodeInvalidAmount       Code = "invalid_amount"
	CodeNoSalad             Code = "no_salad"
)

// ActionError is the single error type returned by the ledger primitives.
// Two errors match under errors.Is when their codes are equal, so callers
// compare against the sentinels below regardless of the message.
type ActionError struct {
	Code Code
	Msg  string
}

var (
	ErrInsufficientBalance = &ActionError{Code: CodeInsufficientBalance}
	ErrActorNotFound       = &ActionError{Code: CodeActorNotFound}
	ErrExchangeDisallowed  = &ActionError{Code: CodeExchangeDisallowed}
	ErrInvalidAmount       = &ActionError{Code: CodeInvalidAmount}
	ErrNoSalad             = &ActionError{Code: CodeNoSalad}
)

func newError(code Code, format string, args ...any) *ActionError {
	return &ActionError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func (e *ActionError) Error() string {
	if e.Msg == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Msg
}

func (e *ActionError) Is(target error) bool {
	t, ok := target.(*ActionError)
	return ok && t.Code == e.Code
}

// Fatal reports a consistency failure: the state or the dispatch order is
// broken upstream, retrying with different input will not help.
func (e *ActionError) Fatal() bool { return e.Code == CodeActorNotFound }

// IsConsistency reports whether err carries a consistency ActionError.
func IsConsistency(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae) && ae.Fatal()
}

// CodeOf returns the ActionError code of err, or "" for foreign errors.
func CodeOf(err error) Code {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
