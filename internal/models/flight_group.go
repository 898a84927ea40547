package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// FLIGHT GROUP TYPES & STATUSES (matches DB ENUMs)
// ============================================================================

// FlightGroupStatus represents the lifecycle status of a flight group.
// Matches PostgreSQL ENUM: flight_group_status
type FlightGroupStatus string

const (
	FlightGroupStatusDraft     FlightGroupStatus = "draft"
	FlightGroupStatusPublished FlightGroupStatus = "published"
	FlightGroupStatusClosed    FlightGroupStatus = "closed"
	FlightGroupStatusDeparted  FlightGroupStatus = "departed"
)

// ReservationCodeMode selects how reservation codes are assigned to bookings
// on a flight group.
// Matches PostgreSQL ENUM: reservation_code_mode
type ReservationCodeMode string

const (
	// CodeModeShared assigns one reservation code to the whole group; every
	// approved booking reuses it.
	CodeModeShared ReservationCodeMode = "shared"
	// CodeModePerBooking assigns each booking its own reservation code.
	CodeModePerBooking ReservationCodeMode = "per_booking"
)

// FlightGroup represents a block of seats an operator holds on a flight and
// sells to travel agencies in allotments.
type FlightGroup struct {
	ID                    uuid.UUID           `db:"id" json:"id"`
	GroupCode             string              `db:"group_code" json:"group_code"`
	Origin                string              `db:"origin" json:"origin"`
	Destination           string              `db:"destination" json:"destination"`
	CarrierCode           string              `db:"carrier_code" json:"carrier_code"`
	FlightNumber          string              `db:"flight_number" json:"flight_number"`
	DepartureAt           time.Time           `db:"departure_at" json:"departure_at"`
	ReturnAt              *time.Time          `db:"return_at" json:"return_at,omitempty"`
	SalesOpenAt           time.Time           `db:"sales_open_at" json:"sales_open_at"`
	SalesCloseAt          time.Time           `db:"sales_close_at" json:"sales_close_at"`
	Status                FlightGroupStatus   `db:"status" json:"status"`
	CodeMode              ReservationCodeMode `db:"reservation_code_mode" json:"reservation_code_mode"`
	SharedReservationCode *string             `db:"shared_reservation_code" json:"shared_reservation_code,omitempty"`
	Currency              string              `db:"currency" json:"currency"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// SeatBucketInput is one allotment bucket in a flight group creation request.
type SeatBucketInput struct {
	PassengerType PassengerType `json:"passenger_type" binding:"required"`
	TotalSeats    int           `json:"total_seats" binding:"required"`
	BaseFare      float64       `json:"base_fare"`
	TaxAmount     float64       `json:"tax_amount"`
}

// CreateFlightGroupRequest is the payload for creating a flight group with
// its seat allotment.
type CreateFlightGroupRequest struct {
	GroupCode    string              `json:"group_code" binding:"required"`
	Origin       string              `json:"origin" binding:"required"`
	Destination  string              `json:"destination" binding:"required"`
	CarrierCode  string              `json:"carrier_code" binding:"required"`
	FlightNumber string              `json:"flight_number" binding:"required"`
	DepartureAt  time.Time           `json:"departure_at" binding:"required"`
	ReturnAt     *time.Time          `json:"return_at,omitempty"`
	SalesOpenAt  time.Time           `json:"sales_open_at" binding:"required"`
	SalesCloseAt time.Time           `json:"sales_close_at" binding:"required"`
	CodeMode     ReservationCodeMode `json:"reservation_code_mode" binding:"required"`
	Currency     string              `json:"currency"`
	Buckets      []SeatBucketInput   `json:"buckets" binding:"required"`
}

// Validate checks the request before any state is touched.
func (r *CreateFlightGroupRequest) Validate() error {
	if r.CodeMode != CodeModeShared && r.CodeMode != CodeModePerBooking {
		return &ValidationError{Field: "reservation_code_mode", Message: "unknown reservation code mode: " + string(r.CodeMode)}
	}
	if !r.SalesCloseAt.After(r.SalesOpenAt) {
		return &ValidationError{Field: "sales_close_at", Message: "sales window must close after it opens"}
	}
	if r.DepartureAt.Before(r.SalesOpenAt) {
		return &ValidationError{Field: "departure_at", Message: "departure must not precede sales opening"}
	}
	if len(r.Buckets) == 0 {
		return &ValidationError{Field: "buckets", Message: "at least one seat bucket is required"}
	}
	seen := map[PassengerType]bool{}
	for _, b := range r.Buckets {
		if !b.PassengerType.Valid() {
			return &ValidationError{Field: "buckets", Message: "unknown passenger type: " + string(b.PassengerType)}
		}
		if seen[b.PassengerType] {
			return &ValidationError{Field: "buckets", Message: "duplicate bucket for " + string(b.PassengerType)}
		}
		seen[b.PassengerType] = true
		if b.TotalSeats < 1 {
			return &ValidationError{Field: "buckets", Message: "bucket capacity must be at least 1"}
		}
		if b.BaseFare < 0 || b.TaxAmount < 0 {
			return &ValidationError{Field: "buckets", Message: "fares must be non-negative"}
		}
	}
	return nil
}

// FlightGroupResponse is the flight group representation returned by the API.
type FlightGroupResponse struct {
	FlightGroup *FlightGroup `json:"flight_group"`
	Buckets     []SeatBucket `json:"buckets,omitempty"`
}

// IsOpenForSales reports whether new booking requests are accepted at t.
func (g *FlightGroup) IsOpenForSales(t time.Time) bool {
	if g.Status != FlightGroupStatusPublished {
		return false
	}
	return !t.Before(g.SalesOpenAt) && t.Before(g.SalesCloseAt)
}

// HasDeparted reports whether the outbound flight has already left at t.
func (g *FlightGroup) HasDeparted(t time.Time) bool {
	return g.DepartureAt.Before(t)
}
