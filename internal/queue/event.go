// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Booking event types published to downstream consumers (notification
// dispatch, analytics). Consumers never feed back into the core flow.
const (
	EventBookingCreated        = "booking.created"
	EventBookingApproved       = "booking.approved"
	EventBookingRejected       = "booking.rejected"
	EventBookingPaymentPending = "booking.payment_pending"
	EventBookingPaid           = "booking.paid"
	EventBookingIssued         = "booking.issued"
	EventBookingCancelled      = "booking.cancelled"
	EventBookingExpired        = "booking.expired"
)

// BookingEvent is published on every committed booking transition. It carries
// enough information for downstream consumers to notify the agency without
// querying the primary database.
type BookingEvent struct {
	EventType       string    `json:"event_type"`
	BookingID       string    `json:"booking_id"`
	FlightGroupID   string    `json:"flight_group_id"`
	AgencyID        string    `json:"agency_id"`
	Status          string    `json:"status"`
	ReservationCode *string   `json:"reservation_code,omitempty"`
	SeatCount       int       `json:"seat_count"`
	OccurredAt      time.Time `json:"occurred_at"`
}
