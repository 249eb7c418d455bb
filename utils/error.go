package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// The financial document flow distinguishes error classes because the HTTP
// layer maps them to different status codes and the webhook flow must contain
// some of them instead of surfacing them to the provider.

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func NewAuthorizationError(format string, args ...any) error {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidStateError means the operation is not valid for the document's
// current status (e.g. editing a paid invoice).
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

func NewInvalidStateError(format string, args ...any) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NewNotFoundError(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// ExpiredError is returned when a quote is accepted past its validity
// deadline. The quote has already been flipped to expired by then.
type ExpiredError struct {
	Msg string
}

func (e *ExpiredError) Error() string { return e.Msg }

func NewExpiredError(format string, args ...any) error {
	return &ExpiredError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderUnavailableError is a configuration/reachability problem with a
// payment provider. It is surfaced to the caller, never retried silently.
type ProviderUnavailableError struct {
	Provider string
	Msg      string
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("payment provider %s unavailable: %s", e.Provider, e.Msg)
}

func NewProviderUnavailableError(provider, format string, args ...any) error {
	return &ProviderUnavailableError{Provider: provider, Msg: fmt.Sprintf(format, args...)}
}

// VerificationError means the provider could not confirm a transaction's
// outcome. The webhook flow acknowledges it and records it for manual review;
// it is never treated as success.
type VerificationError struct {
	Provider      string
	TransactionId string
	Err           error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("could not verify transaction %s with %s: %v", e.TransactionId, e.Provider, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
