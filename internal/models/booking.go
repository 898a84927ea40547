package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES & TRANSITION TABLE (matches DB ENUMs)
// ============================================================================

// BookingStatus represents the lifecycle status of a booking request.
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusRequested      BookingStatus = "requested"       // Seats held, awaiting operator review
	BookingStatusApproved       BookingStatus = "approved"        // Operator approved, reservation code assigned if required
	BookingStatusPaymentPending BookingStatus = "payment_pending" // Payment window open, deadline stamped
	BookingStatusPaid           BookingStatus = "paid"            // Payment recorded, awaiting ticketing
	BookingStatusIssued         BookingStatus = "issued"          // Tickets issued, seats consumed
	BookingStatusRejected       BookingStatus = "rejected"        // Operator rejected, seats released
	BookingStatusExpired        BookingStatus = "expired"         // Timed out (hold, payment, or post-departure)
	BookingStatusCancelled      BookingStatus = "cancelled"       // Agency cancelled before issuance, seats released
)

// bookingTransitions is the single source of truth for legal status changes.
// Every transition, including the ones forced by the expiry sweeper, is
// checked against this table. Issued bookings may only expire post-departure.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusRequested:      {BookingStatusApproved, BookingStatusRejected, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusApproved:       {BookingStatusPaymentPending, BookingStatusRejected, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusPaymentPending: {BookingStatusPaid, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusPaid:           {BookingStatusIssued, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusIssued:         {BookingStatusExpired},
	BookingStatusRejected:       {},
	BookingStatusExpired:        {},
	BookingStatusCancelled:      {},
}

// CanTransitionTo reports whether the table allows moving from s to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// ============================================================================
// PASSENGER COUNTS
// ============================================================================

// PassengerCounts holds the requested seat count per passenger type.
type PassengerCounts struct {
	Adults   int `db:"adult_count" json:"adults"`
	Children int `db:"child_count" json:"children"`
	Infants  int `db:"infant_count" json:"infants"`
}

// Total returns the total number of requested seats.
func (c PassengerCounts) Total() int {
	return c.Adults + c.Children + c.Infants
}

// ByType returns the count for one passenger type.
func (c PassengerCounts) ByType(t PassengerType) int {
	switch t {
	case PassengerTypeAdult:
		return c.Adults
	case PassengerTypeChild:
		return c.Children
	case PassengerTypeInfant:
		return c.Infants
	}
	return 0
}

// Validate checks the count constraints: each count non-negative, sum >= 1.
func (c PassengerCounts) Validate() error {
	if c.Adults < 0 || c.Children < 0 || c.Infants < 0 {
		return &ValidationError{Field: "passengers", Message: "passenger counts must be non-negative"}
	}
	if c.Total() < 1 {
		return &ValidationError{Field: "passengers", Message: "at least one passenger is required"}
	}
	return nil
}

// ============================================================================
// BOOKING & PASSENGER ENTITIES
// ============================================================================

// Booking represents one agency's request for seats on a flight group. It is
// created in status "requested" with seats simultaneously placed on hold, and
// is never deleted by business logic; terminal statuses are final states.
type Booking struct {
	ID              uuid.UUID `db:"id" json:"id"`
	FlightGroupID   uuid.UUID `db:"flight_group_id" json:"flight_group_id"`
	AgencyID        uuid.UUID `db:"agency_id" json:"agency_id"`
	RequestedBy     uuid.UUID `db:"requested_by" json:"requested_by"`
	PassengerCounts
	Status          BookingStatus `db:"status" json:"status"`
	ReservationCode *string       `db:"reservation_code" json:"reservation_code,omitempty"`
	HoldExpiresAt   *time.Time    `db:"hold_expires_at" json:"hold_expires_at,omitempty"`
	PaymentDueAt    *time.Time    `db:"payment_due_at" json:"payment_due_at,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	PaidAt          *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	IssuedAt        *time.Time    `db:"issued_at" json:"issued_at,omitempty"`
	PaymentRef      *string       `db:"payment_reference" json:"payment_reference,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Remarks         *string       `db:"remarks" json:"remarks,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Passenger belongs to exactly one booking. A ticket number is assigned only
// once the booking reaches "issued".
type Passenger struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	BookingID     uuid.UUID     `db:"booking_id" json:"booking_id"`
	PassengerType PassengerType `db:"passenger_type" json:"passenger_type"`
	FullName      string        `db:"full_name" json:"full_name"`
	DateOfBirth   *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	PassportNo    *string       `db:"passport_number" json:"passport_number,omitempty"`
	TicketNumber  *string       `db:"ticket_number" json:"ticket_number,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// ============================================================================
// ACTOR (authenticated identity supplied by the auth middleware)
// ============================================================================

// Role represents the caller's role as carried in the JWT.
type Role string

const (
	RoleAgency   Role = "agency"
	RoleOperator Role = "operator"
)

// Actor is the authenticated identity acting on a booking.
type Actor struct {
	UserID   uuid.UUID
	AgencyID uuid.UUID
	Role     Role
}

// IsOperator reports whether the actor holds the operator role.
func (a Actor) IsOperator() bool {
	return a.Role == RoleOperator
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// PassengerInput is one passenger in a booking creation request.
type PassengerInput struct {
	PassengerType PassengerType `json:"passenger_type" binding:"required"`
	FullName      string        `json:"full_name" binding:"required"`
	DateOfBirth   *time.Time    `json:"date_of_birth,omitempty"`
	PassportNo    *string       `json:"passport_number,omitempty"`
}

// CreateBookingRequest is the payload for creating a booking request.
type CreateBookingRequest struct {
	FlightGroupID uuid.UUID        `json:"flight_group_id" binding:"required"`
	Passengers    []PassengerInput `json:"passengers" binding:"required"`
	Remarks       *string          `json:"remarks,omitempty"`
}

// Counts derives the per-type passenger counts from the passenger list.
func (r *CreateBookingRequest) Counts() PassengerCounts {
	var c PassengerCounts
	for _, p := range r.Passengers {
		switch p.PassengerType {
		case PassengerTypeAdult:
			c.Adults++
		case PassengerTypeChild:
			c.Children++
		case PassengerTypeInfant:
			c.Infants++
		}
	}
	return c
}

// Validate checks the request before any state is touched.
func (r *CreateBookingRequest) Validate() error {
	if len(r.Passengers) == 0 {
		return &ValidationError{Field: "passengers", Message: "at least one passenger is required"}
	}
	for _, p := range r.Passengers {
		if !p.PassengerType.Valid() {
			return &ValidationError{Field: "passengers", Message: "unknown passenger type: " + string(p.PassengerType)}
		}
		if p.FullName == "" {
			return &ValidationError{Field: "passengers", Message: "passenger full name is required"}
		}
	}
	return r.Counts().Validate()
}

// RejectBookingRequest is the payload for rejecting a booking.
type RejectBookingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// MarkPaidRequest is the payload for recording a payment.
type MarkPaidRequest struct {
	PaymentReference string  `json:"payment_reference" binding:"required"`
	Remarks          *string `json:"remarks,omitempty"`
}

// BookingResponse is the booking representation returned by the API.
type BookingResponse struct {
	Booking    *Booking    `json:"booking"`
	Passengers []Passenger `json:"passengers,omitempty"`
}
