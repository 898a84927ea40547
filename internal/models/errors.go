package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for missing entities. Repositories return nil rows as these
// so handlers can map them to 404 without inspecting SQL errors.
var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrFlightGroupNotFound = errors.New("flight group not found")
)

// InvalidStatusTransitionError is returned when a requested booking status
// change is not present in the transition table. No state is modified.
type InvalidStatusTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// InsufficientAvailabilityError is returned when a seat hold or issue would
// exceed the bucket's capacity. The bucket is left unchanged.
type InsufficientAvailabilityError struct {
	FlightGroupID string
	PassengerType PassengerType
	Requested     int
	Available     int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("insufficient availability for %s on flight group %s: requested %d, available %d",
		e.PassengerType, e.FlightGroupID, e.Requested, e.Available)
}

// IdentifierExhaustedError is returned when the identifier assigner could not
// claim a free code within its retry bound. The whole operation is safe to retry.
type IdentifierExhaustedError struct {
	Kind     string // "reservation_code" or "ticket_number"
	Attempts int
}

func (e *IdentifierExhaustedError) Error() string {
	return fmt.Sprintf("failed to generate unique %s after %d attempts", e.Kind, e.Attempts)
}

// ValidationError is returned when a business-rule guard fails before a
// transition is applied (missing reason, wrong role, closed sales window).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError without a field reference.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
