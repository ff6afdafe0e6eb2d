package models

import (
	"errors"
	"fmt"
)

// ErrorKind groups booking errors by how the caller should react to them
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindForbidden           ErrorKind = "forbidden"
	KindConflict            ErrorKind = "conflict"
	KindPaymentVerification ErrorKind = "payment_verification"
	KindExternalService     ErrorKind = "external_service"
)

// BookingError is the error type returned by the booking engine.
// Two BookingErrors are considered equal by errors.Is when their codes match.
type BookingError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped or re-messaged errors still compare equal to the sentinels
func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error carrying a more specific message
func (e *BookingError) WithMessage(format string, args ...interface{}) *BookingError {
	return &BookingError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		Err:     e.Err,
	}
}

// Wrap returns a copy of the error with err attached as its cause
func (e *BookingError) Wrap(err error) *BookingError {
	return &BookingError{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

var (
	ErrValidation             = &BookingError{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "invalid request"}
	ErrNotFound               = &BookingError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "resource not found"}
	ErrForbidden              = &BookingError{Kind: KindForbidden, Code: "FORBIDDEN", Message: "actor is not allowed to perform this action"}
	ErrInsufficientInventory  = &BookingError{Kind: KindConflict, Code: "INSUFFICIENT_INVENTORY", Message: "not enough rooms available"}
	ErrInvalidRelease         = &BookingError{Kind: KindConflict, Code: "INVALID_RELEASE", Message: "release would exceed total rooms"}
	ErrRoomUnavailable        = &BookingError{Kind: KindConflict, Code: "ROOM_UNAVAILABLE", Message: "no rooms of this type are available"}
	ErrHostelUnavailable      = &BookingError{Kind: KindConflict, Code: "HOSTEL_UNAVAILABLE", Message: "hostel is not accepting bookings"}
	ErrDuplicateActiveBooking = &BookingError{Kind: KindConflict, Code: "DUPLICATE_ACTIVE_BOOKING", Message: "student already has an active booking"}
	ErrInvalidTransition      = &BookingError{Kind: KindConflict, Code: "INVALID_TRANSITION", Message: "booking cannot move to the requested status"}
	ErrAlreadyPaid            = &BookingError{Kind: KindConflict, Code: "ALREADY_PAID", Message: "booking has already been paid with a different payment"}
	ErrInvalidSignature       = &BookingError{Kind: KindPaymentVerification, Code: "INVALID_SIGNATURE", Message: "payment signature verification failed"}
	ErrExternalService        = &BookingError{Kind: KindExternalService, Code: "EXTERNAL_SERVICE_ERROR", Message: "payment gateway unavailable"}
)

// NewValidationError builds a validation error with a field-specific message
func NewValidationError(format string, args ...interface{}) *BookingError {
	return ErrValidation.WithMessage(format, args...)
}

// KindOf returns the kind of the first BookingError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
