package domain

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels. Concrete errors below match them through errors.Is.
var (
	ErrValidation = errors.New("validation_error")
	ErrNotFound   = errors.New("not_found")
	ErrConflict   = errors.New("conflict")
	ErrState      = errors.New("state_error")
)

// ValidationError reports bad input that the caller can fix.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown room, contract, reading, invoice or payment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a uniqueness violation or a repeated one-shot action.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StateError reports an operation that is not allowed in the current state.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string { return e.Message }

func (e *StateError) Is(target error) bool { return target == ErrState }

const CodeNoActiveContract = "no_active_contract"

func NewValidationError(field, code, message string) error {
	return &ValidationError{Field: field, Code: code, Message: message}
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewConflictError(code, message string) error {
	return &ConflictError{Code: code, Message: message}
}

func NewStateError(code, message string) error {
	return &StateError{Code: code, Message: message}
}

// NewNoActiveContractError is the StateError raised when invoicing a room
// that has no active tenancy.
func NewNoActiveContractError(roomID string) error {
	return &StateError{
		Code:    CodeNoActiveContract,
		Message: fmt.Sprintf("room %s has no active contract", roomID),
	}
}

// Code extracts the machine readable code carried by a taxonomy error.
func Code(err error) string {
	var (
		vErr *ValidationError
		nErr *NotFoundError
		cErr *ConflictError
		sErr *StateError
	)
	switch {
	case errors.As(err, &vErr):
		return vErr.Code
	case errors.As(err, &nErr):
		return nErr.Resource + "_not_found"
	case errors.As(err, &cErr):
		return cErr.Code
	case errors.As(err, &sErr):
		return sErr.Code
	default:
		return "internal_error"
	}
}
