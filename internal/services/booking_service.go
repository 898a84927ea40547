package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/groupavia/allotment-backend/internal/database"
	"github.com/groupavia/allotment-backend/internal/models"
	"github.com/groupavia/allotment-backend/internal/queue"
)

// BookingServiceConfig holds the booking lifecycle policy
type BookingServiceConfig struct {
	HoldTTL         time.Duration // How long seats stay held on a new request
	PaymentWindow   time.Duration // How long a booking may sit in payment_pending
	DefaultCurrency string
}

// DefaultBookingServiceConfig returns the default policy
func DefaultBookingServiceConfig() BookingServiceConfig {
	return BookingServiceConfig{
		HoldTTL:         72 * time.Hour,
		PaymentWindow:   48 * time.Hour,
		DefaultCurrency: "USD",
	}
}

// BookingService orchestrates the booking lifecycle. Every public operation
// runs in one transaction: the booking row (and any seat bucket it touches)
// is locked, guards are re-validated against the freshly-read state, the
// transition table is consulted, and the whole unit commits or rolls back
// together. Notifications go out only after commit.
type BookingService struct {
	db          *sqlx.DB
	groupRepo   *database.FlightGroupRepository
	bucketRepo  *database.SeatBucketRepository
	bookingRepo *database.BookingRepository
	assigner    *IdentifierAssigner
	notifier    Notifier
	config      BookingServiceConfig
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db *sqlx.DB,
	groupRepo *database.FlightGroupRepository,
	bucketRepo *database.SeatBucketRepository,
	bookingRepo *database.BookingRepository,
	assigner *IdentifierAssigner,
	notifier Notifier,
	config BookingServiceConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:          db,
		groupRepo:   groupRepo,
		bucketRepo:  bucketRepo,
		bookingRepo: bookingRepo,
		assigner:    assigner,
		notifier:    notifier,
		config:      config,
		logger:      logger,
	}
}

// ============================================================================
// CREATE (seats held atomically with the new booking)
// ============================================================================

// CreateBooking creates a booking request in status "requested" with seats
// placed on hold for every requested passenger type.
func (s *BookingService) CreateBooking(actor models.Actor, req *models.CreateBookingRequest) (*models.BookingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := s.groupRepo.GetByIDForUpdate(tx, req.FlightGroupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, models.ErrFlightGroupNotFound
	}
	if !group.IsOpenForSales(time.Now()) {
		return nil, models.NewValidationError("flight group is not open for sales")
	}

	counts := req.Counts()
	if err := s.holdSeats(tx, group.ID, counts); err != nil {
		return nil, err
	}

	holdExpiresAt := time.Now().Add(s.config.HoldTTL)
	booking := &models.Booking{
		FlightGroupID:   group.ID,
		AgencyID:        actor.AgencyID,
		RequestedBy:     actor.UserID,
		PassengerCounts: counts,
		HoldExpiresAt:   &holdExpiresAt,
		Remarks:         req.Remarks,
	}

	passengers := make([]models.Passenger, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = models.Passenger{
			PassengerType: p.PassengerType,
			FullName:      p.FullName,
			DateOfBirth:   p.DateOfBirth,
			PassportNo:    p.PassportNo,
		}
	}

	if err := s.bookingRepo.Create(tx, booking, passengers); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      booking.ID,
		"flight_group_id": group.ID,
		"agency_id":       actor.AgencyID,
		"seats":           counts.Total(),
		"hold_expires_at": holdExpiresAt,
	}).Info("Booking created, seats held")

	s.notify(queue.EventBookingCreated, booking)
	return &models.BookingResponse{Booking: booking, Passengers: passengers}, nil
}

// ============================================================================
// OPERATOR TRANSITIONS
// ============================================================================

// Approve moves a booking to "approved" and assigns a reservation code if the
// booking does not carry one yet.
func (s *BookingService) Approve(actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(booking, models.BookingStatusApproved); err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByIDForUpdate(tx, booking.FlightGroupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, models.ErrFlightGroupNotFound
	}

	if booking.ReservationCode == nil {
		if _, err := s.assigner.AssignReservationCode(tx, booking, group); err != nil {
			return nil, err
		}
	}

	if err := s.bookingRepo.MarkApproved(tx, booking.ID, booking.Status); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusApproved

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":       booking.ID,
		"reservation_code": booking.ReservationCode,
	}).Info("Booking approved")

	s.notify(queue.EventBookingApproved, booking)
	return booking, nil
}

// Reject moves a booking to "rejected" and releases its held seats. A reason
// is required.
func (s *BookingService) Reject(actor models.Actor, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "rejection reason is required"}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(booking, models.BookingStatusRejected); err != nil {
		return nil, err
	}

	if err := s.releaseHeldSeats(tx, booking); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.MarkRejected(tx, booking.ID, booking.Status, reason); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusRejected
	booking.RejectionReason = &reason

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rejection: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reason":     reason,
	}).Info("Booking rejected, seats released")

	s.notify(queue.EventBookingRejected, booking)
	return booking, nil
}

// StartPayment opens the payment window on an approved booking and stamps
// the payment deadline.
func (s *BookingService) StartPayment(actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrOperator(actor, booking); err != nil {
		return nil, err
	}
	if err := guardTransition(booking, models.BookingStatusPaymentPending); err != nil {
		return nil, err
	}

	dueAt := time.Now().Add(s.config.PaymentWindow)
	if err := s.bookingRepo.MarkPaymentPending(tx, booking.ID, booking.Status, dueAt); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusPaymentPending
	booking.PaymentDueAt = &dueAt

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment start: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"payment_due_at": dueAt,
	}).Info("Payment window opened")

	s.notify(queue.EventBookingPaymentPending, booking)
	return booking, nil
}

// MarkPaid records payment metadata and moves the booking to "paid". A
// booking still in "approved" passes through "payment_pending" in the same
// transaction; both steps are checked against the transition table.
func (s *BookingService) MarkPaid(actor models.Actor, bookingID uuid.UUID, req *models.MarkPaidRequest) (*models.Booking, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	if req.PaymentReference == "" {
		return nil, &models.ValidationError{Field: "payment_reference", Message: "payment reference is required"}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status == models.BookingStatusApproved {
		if err := guardTransition(booking, models.BookingStatusPaymentPending); err != nil {
			return nil, err
		}
		dueAt := time.Now().Add(s.config.PaymentWindow)
		if err := s.bookingRepo.MarkPaymentPending(tx, booking.ID, booking.Status, dueAt); err != nil {
			return nil, err
		}
		booking.Status = models.BookingStatusPaymentPending
		booking.PaymentDueAt = &dueAt
	}

	if err := guardTransition(booking, models.BookingStatusPaid); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.MarkPaid(tx, booking.ID, booking.Status, req.PaymentReference, req.Remarks); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusPaid
	booking.PaymentRef = &req.PaymentReference

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"payment_reference": req.PaymentReference,
	}).Info("Booking paid")

	s.notify(queue.EventBookingPaid, booking)
	return booking, nil
}

// Issue moves a paid booking to "issued": held seats become issued seats and
// every passenger receives a unique ticket number, all in one transaction.
func (s *BookingService) Issue(actor models.Actor, bookingID uuid.UUID) (*models.BookingResponse, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(booking, models.BookingStatusIssued); err != nil {
		return nil, err
	}

	for _, ptype := range models.AllPassengerTypes {
		n := booking.ByType(ptype)
		if n == 0 {
			continue
		}
		bucket, err := s.bucketRepo.GetForUpdate(tx, booking.FlightGroupID, ptype)
		if err != nil {
			return nil, err
		}
		if bucket == nil {
			return nil, fmt.Errorf("seat bucket missing for %s on flight group %s", ptype, booking.FlightGroupID)
		}
		if err := s.bucketRepo.Issue(tx, bucket, n); err != nil {
			return nil, err
		}
	}

	passengers, err := s.bookingRepo.GetPassengersForUpdate(tx, booking.ID)
	if err != nil {
		return nil, err
	}
	if err := s.assigner.AssignTicketNumbers(tx, passengers); err != nil {
		return nil, err
	}

	if err := s.bookingRepo.MarkIssued(tx, booking.ID, booking.Status); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusIssued

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit issuance: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"tickets":    len(passengers),
	}).Info("Booking issued, tickets assigned")

	s.notify(queue.EventBookingIssued, booking)
	return &models.BookingResponse{Booking: booking, Passengers: passengers}, nil
}

// ============================================================================
// CANCELLATION & EXPIRY
// ============================================================================

// Cancel moves a booking to "cancelled" and releases its held seats. Issued
// bookings cannot be cancelled; their seats are never returned to inventory.
func (s *BookingService) Cancel(actor models.Actor, bookingID uuid.UUID) (*models.Booking, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrOperator(actor, booking); err != nil {
		return nil, err
	}
	if err := guardTransition(booking, models.BookingStatusCancelled); err != nil {
		return nil, err
	}

	if err := s.releaseHeldSeats(tx, booking); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.MarkCancelled(tx, booking.ID, booking.Status); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusCancelled

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	s.logger.WithField("booking_id", booking.ID).Info("Booking cancelled, seats released")

	s.notify(queue.EventBookingCancelled, booking)
	return booking, nil
}

// ExpireBooking force-transitions a booking to "expired". Used by the expiry
// sweeper for hold, payment-deadline and post-departure expiry. Held seats
// are released unless the booking was already issued (those seats are
// consumed, only the record changes). Already-terminal bookings are a no-op
// so a racing sweep stays idempotent.
func (s *BookingService) ExpireBooking(bookingID uuid.UUID) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.lockBooking(tx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status.IsTerminal() {
		return nil
	}
	if err := guardTransition(booking, models.BookingStatusExpired); err != nil {
		return err
	}

	if booking.Status != models.BookingStatusIssued {
		if err := s.releaseHeldSeats(tx, booking); err != nil {
			return err
		}
	}
	if err := s.bookingRepo.MarkExpired(tx, booking.ID, booking.Status); err != nil {
		return err
	}
	booking.Status = models.BookingStatusExpired

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expiry: %w", err)
	}

	s.notify(queue.EventBookingExpired, booking)
	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking with its passengers. Agencies only see their
// own bookings.
func (s *BookingService) GetBooking(actor models.Actor, bookingID uuid.UUID) (*models.BookingResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	if !actor.IsOperator() && booking.AgencyID != actor.AgencyID {
		return nil, models.ErrBookingNotFound
	}

	passengers, err := s.bookingRepo.GetPassengers(booking.ID)
	if err != nil {
		return nil, err
	}
	return &models.BookingResponse{Booking: booking, Passengers: passengers}, nil
}

// ListAgencyBookings returns an agency's bookings with pagination.
func (s *BookingService) ListAgencyBookings(agencyID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	return s.bookingRepo.ListByAgency(agencyID, limit, offset)
}

// ============================================================================
// HELPERS
// ============================================================================

// guardTransition is the single transition check. Nothing moves a booking's
// status without passing through here first.
func guardTransition(booking *models.Booking, target models.BookingStatus) error {
	if !booking.Status.CanTransitionTo(target) {
		return &models.InvalidStatusTransitionError{From: booking.Status, To: target}
	}
	return nil
}

func requireOperator(actor models.Actor) error {
	if !actor.IsOperator() {
		return &models.ValidationError{Field: "role", Message: "operator role required"}
	}
	return nil
}

func requireOwnerOrOperator(actor models.Actor, booking *models.Booking) error {
	if actor.IsOperator() {
		return nil
	}
	if booking.AgencyID != actor.AgencyID {
		return &models.ValidationError{Field: "agency", Message: "booking belongs to another agency"}
	}
	return nil
}

func (s *BookingService) lockBooking(tx *sqlx.Tx, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookingRepo.GetByIDForUpdate(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) holdSeats(tx *sqlx.Tx, groupID uuid.UUID, counts models.PassengerCounts) error {
	for _, ptype := range models.AllPassengerTypes {
		n := counts.ByType(ptype)
		if n == 0 {
			continue
		}
		bucket, err := s.bucketRepo.GetForUpdate(tx, groupID, ptype)
		if err != nil {
			return err
		}
		if bucket == nil {
			return &models.ValidationError{Field: "passengers", Message: fmt.Sprintf("no %s allotment on this flight group", ptype)}
		}
		if err := s.bucketRepo.Hold(tx, bucket, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookingService) releaseHeldSeats(tx *sqlx.Tx, booking *models.Booking) error {
	for _, ptype := range models.AllPassengerTypes {
		n := booking.ByType(ptype)
		if n == 0 {
			continue
		}
		bucket, err := s.bucketRepo.GetForUpdate(tx, booking.FlightGroupID, ptype)
		if err != nil {
			return err
		}
		if bucket == nil {
			continue
		}
		if err := s.bucketRepo.Release(tx, bucket, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookingService) notify(eventType string, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(queue.BookingEvent{
		EventType:       eventType,
		BookingID:       booking.ID.String(),
		FlightGroupID:   booking.FlightGroupID.String(),
		AgencyID:        booking.AgencyID.String(),
		Status:          string(booking.Status),
		ReservationCode: booking.ReservationCode,
		SeatCount:       booking.Total(),
		OccurredAt:      time.Now(),
	})
}
