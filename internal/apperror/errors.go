package apperror

import (
	"errors"
	"fmt"
)

// Domain error codes.
const (
	CodeTripNotBookable          = "trip_not_bookable"
	CodeSelfBooking              = "self_booking"
	CodePastDeparture            = "past_departure"
	CodeInsufficientSeats        = "insufficient_seats"
	CodeDuplicateBooking         = "duplicate_booking"
	CodeInvalidTransition        = "invalid_transition"
	CodeInsufficientCapacity     = "insufficient_capacity"
	CodeInvalidEarningSelection  = "invalid_earning_selection"
	CodeForbidden                = "forbidden"
	CodePaymentAlreadyRegistered = "payment_already_registered"
)

// ValidationError is bad input shape or range.
type ValidationError struct {
	Field  string
	Msg    string
	Fields map[string]string
	Err    error
}

func (e ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return "validation failed: " + e.Msg
	case e.Err != nil:
		return "validation failed: " + e.Err.Error()
	default:
		return "validation failed"
	}
}

func (e ValidationError) Unwrap() error { return e.Err }

// DomainError is a violated business rule.
type DomainError struct {
	Code string
	Msg  string
}

func (e DomainError) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// ConflictError reports a concurrent mutation; the caller may retry.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s conflict", e.Resource)
	}
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
}

func (e ConflictError) Unwrap() error { return e.Err }

// TransientError is an unavailable collaborator (broker, gateway, lookup).
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	if e.Err == nil {
		return e.Op + " unavailable"
	}
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e TransientError) Unwrap() error { return e.Err }

// NotFoundError is a missing referenced entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func Validation(field, msg string) error {
	return ValidationError{Field: field, Msg: msg}
}

// ValidationFields wraps per-field messages from request validation.
func ValidationFields(fields map[string]string, summary string) error {
	return ValidationError{Msg: summary, Fields: fields}
}

func Domain(code, format string, args ...any) error {
	return DomainError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func InvalidTransition(resource string, from, to any) error {
	return DomainError{
		Code: CodeInvalidTransition,
		Msg:  fmt.Sprintf("%s cannot move from %v to %v", resource, from, to),
	}
}

func NotFound(resource, id string) error {
	return NotFoundError{Resource: resource, ID: id}
}

func Conflict(resource, msg string) error {
	return ConflictError{Resource: resource, Msg: msg}
}

func Transient(op string, err error) error {
	return TransientError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// FieldErrors returns the per-field messages of a ValidationError, if any.
func FieldErrors(err error) map[string]string {
	var target ValidationError
	if !errors.As(err, &target) {
		return nil
	}
	if target.Fields != nil {
		return target.Fields
	}
	if target.Field != "" {
		return map[string]string{target.Field: target.Msg}
	}
	return nil
}

func IsDomain(err error) bool {
	var target DomainError
	return errors.As(err, &target)
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var target DomainError
	return errors.As(err, &target) && target.Code == code
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target TransientError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}
