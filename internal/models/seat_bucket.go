package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// PASSENGER TYPES & SEAT BUCKETS (matches DB ENUMs)
// ============================================================================

// PassengerType represents an IATA passenger type code.
// Matches PostgreSQL ENUM: passenger_type
type PassengerType string

const (
	PassengerTypeAdult  PassengerType = "ADT"
	PassengerTypeChild  PassengerType = "CHD"
	PassengerTypeInfant PassengerType = "INF"
)

// AllPassengerTypes lists the supported passenger types in fare order.
var AllPassengerTypes = []PassengerType{
	PassengerTypeAdult,
	PassengerTypeChild,
	PassengerTypeInfant,
}

// Valid reports whether the passenger type is one of the supported codes.
func (p PassengerType) Valid() bool {
	switch p {
	case PassengerTypeAdult, PassengerTypeChild, PassengerTypeInfant:
		return true
	}
	return false
}

// SeatBucket holds the seat inventory counters for one flight-group /
// passenger-type combination. The invariant seats_on_hold + seats_issued <=
// total_seats holds at all times; the counters are mutated only through the
// seat bucket repository's Hold/Release/Issue operations inside the owning
// transaction.
type SeatBucket struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	FlightGroupID uuid.UUID     `db:"flight_group_id" json:"flight_group_id"`
	PassengerType PassengerType `db:"passenger_type" json:"passenger_type"`
	TotalSeats    int           `db:"total_seats" json:"total_seats"`
	SeatsOnHold   int           `db:"seats_on_hold" json:"seats_on_hold"`
	SeatsIssued   int           `db:"seats_issued" json:"seats_issued"`
	BaseFare      float64       `db:"base_fare" json:"base_fare"`
	TaxAmount     float64       `db:"tax_amount" json:"tax_amount"`
	Currency      string        `db:"currency" json:"currency"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Available returns the number of seats that can still be held.
func (b *SeatBucket) Available() int {
	return b.TotalSeats - b.SeatsOnHold - b.SeatsIssued
}

// FarePerSeat returns the all-in fare for one seat in this bucket.
func (b *SeatBucket) FarePerSeat() float64 {
	return b.BaseFare + b.TaxAmount
}
