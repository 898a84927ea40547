package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/groupavia/allotment-backend/internal/models"
)

// BookingRepository handles booking and passenger database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, flight_group_id, agency_id, requested_by,
	adult_count, child_count, infant_count, status,
	reservation_code, hold_expires_at, payment_due_at,
	approved_at, paid_at, issued_at,
	payment_reference, rejection_reason, remarks,
	created_at, updated_at`

const passengerColumns = `
	id, booking_id, passenger_type, full_name, date_of_birth,
	passport_number, ticket_number, created_at`

// ============================================================================
// CREATE & READ
// ============================================================================

// Create inserts a booking and its passengers inside tx. The booking starts
// in status "requested"; the caller has already placed the seat holds in the
// same transaction.
func (r *BookingRepository) Create(tx *sqlx.Tx, booking *models.Booking, passengers []models.Passenger) error {
	booking.ID = uuid.New()
	booking.Status = models.BookingStatusRequested
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	query := `
		INSERT INTO bookings (
			id, flight_group_id, agency_id, requested_by,
			adult_count, child_count, infant_count, status,
			hold_expires_at, remarks, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := tx.Exec(query,
		booking.ID, booking.FlightGroupID, booking.AgencyID, booking.RequestedBy,
		booking.Adults, booking.Children, booking.Infants, booking.Status,
		booking.HoldExpiresAt, booking.Remarks, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	for i := range passengers {
		p := &passengers[i]
		p.ID = uuid.New()
		p.BookingID = booking.ID
		p.CreatedAt = booking.CreatedAt

		_, err := tx.Exec(`
			INSERT INTO passengers (
				id, booking_id, passenger_type, full_name,
				date_of_birth, passport_number, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.BookingID, p.PassengerType, p.FullName,
			p.DateOfBirth, p.PassportNo, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create passenger: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a booking by ID. Returns nil when not found.
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	err := sqlx.Get(r.db, &booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByIDForUpdate retrieves a booking inside tx with a row lock. Every
// transition loads the booking through here, so two concurrent transitions
// against the same booking serialize and the loser re-validates fresh state.
func (r *BookingRepository) GetByIDForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	err := sqlx.Get(tx, &booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	return &booking, nil
}

// GetPassengers returns the passengers of a booking.
func (r *BookingRepository) GetPassengers(bookingID uuid.UUID) ([]models.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE booking_id = $1 ORDER BY created_at, id`
	var passengers []models.Passenger
	if err := sqlx.Select(r.db, &passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to get passengers: %w", err)
	}
	return passengers, nil
}

// GetPassengersForUpdate locks and returns the passengers of a booking inside
// tx, for ticket-number assignment during issuance.
func (r *BookingRepository) GetPassengersForUpdate(tx *sqlx.Tx, bookingID uuid.UUID) ([]models.Passenger, error) {
	query := `SELECT ` + passengerColumns + ` FROM passengers WHERE booking_id = $1 ORDER BY created_at, id FOR UPDATE`
	var passengers []models.Passenger
	if err := sqlx.Select(tx, &passengers, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to lock passengers: %w", err)
	}
	return passengers, nil
}

// ListByAgency returns an agency's bookings, newest first.
func (r *BookingRepository) ListByAgency(agencyID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE agency_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var bookings []models.Booking
	if err := sqlx.Select(r.db, &bookings, query, agencyID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ============================================================================
// STATUS TRANSITIONS
// ============================================================================
// Each update names the expected source status in its WHERE clause and checks
// RowsAffected. The transition table in models is validated first by the
// orchestrator on the row-locked booking; the guard here catches anything
// that slips past the lock.

func (r *BookingRepository) transition(tx *sqlx.Tx, query string, args ...interface{}) error {
	result, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("booking no longer in expected status")
	}
	return nil
}

// MarkApproved moves a booking to "approved" and stamps the approval time.
func (r *BookingRepository) MarkApproved(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'approved', approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from)
}

// MarkPaymentPending opens the payment window and stamps the deadline.
func (r *BookingRepository) MarkPaymentPending(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus, dueAt time.Time) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'payment_pending', payment_due_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, dueAt)
}

// MarkPaid records the payment metadata and moves the booking to "paid".
func (r *BookingRepository) MarkPaid(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus, paymentRef string, remarks *string) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'paid', paid_at = NOW(), payment_reference = $3,
		    remarks = COALESCE($4, remarks), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, paymentRef, remarks)
}

// MarkIssued moves a booking to "issued" and stamps the issuance time.
func (r *BookingRepository) MarkIssued(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'issued', issued_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from)
}

// MarkRejected moves a booking to "rejected" and records the reason.
func (r *BookingRepository) MarkRejected(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus, reason string) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'rejected', rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, reason)
}

// MarkCancelled moves a booking to "cancelled".
func (r *BookingRepository) MarkCancelled(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from)
}

// MarkExpired moves a booking to "expired".
func (r *BookingRepository) MarkExpired(tx *sqlx.Tx, id uuid.UUID, from models.BookingStatus) error {
	return r.transition(tx, `
		UPDATE bookings
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from)
}

// ============================================================================
// IDENTIFIER ASSIGNMENT
// ============================================================================

// ClaimIdentifier reserves a code in the global uniqueness table. It returns
// false when the code is already taken, in which case the caller regenerates.
// Claims ride in the caller's transaction, so a rolled-back booking releases
// its codes with it.
func (r *BookingRepository) ClaimIdentifier(tx *sqlx.Tx, kind, code string) (bool, error) {
	result, err := tx.Exec(`
		INSERT INTO issued_identifiers (kind, code, claimed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (kind, code) DO NOTHING`, kind, code)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim identifier: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

// AssignReservationCode stores the reservation code on the booking. In shared
// mode many bookings carry the same code, so uniqueness is enforced by the
// claim table rather than here.
func (r *BookingRepository) AssignReservationCode(tx *sqlx.Tx, id uuid.UUID, code string) error {
	result, err := tx.Exec(`
		UPDATE bookings
		SET reservation_code = $2, updated_at = NOW()
		WHERE id = $1 AND reservation_code IS NULL`, id, code)
	if err != nil {
		return fmt.Errorf("failed to assign reservation code: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reservation code already assigned")
	}
	return nil
}

// AssignTicketNumber stores a ticket number on a passenger.
func (r *BookingRepository) AssignTicketNumber(tx *sqlx.Tx, passengerID uuid.UUID, number string) error {
	result, err := tx.Exec(`
		UPDATE passengers
		SET ticket_number = $2
		WHERE id = $1 AND ticket_number IS NULL`, passengerID, number)
	if err != nil {
		return fmt.Errorf("failed to assign ticket number: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("ticket number already assigned")
	}
	return nil
}

// ============================================================================
// EXPIRY SWEEP QUERIES
// ============================================================================

// ListExpiredHolds returns bookings in "requested" whose hold TTL has passed.
func (r *BookingRepository) ListExpiredHolds(limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM bookings
		WHERE status = 'requested' AND hold_expires_at < NOW()
		ORDER BY hold_expires_at
		LIMIT $1`

	var ids []uuid.UUID
	if err := sqlx.Select(r.db, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return ids, nil
}

// ListPaymentOverdue returns bookings in "payment_pending" past their deadline.
func (r *BookingRepository) ListPaymentOverdue(limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM bookings
		WHERE status = 'payment_pending' AND payment_due_at < NOW()
		ORDER BY payment_due_at
		LIMIT $1`

	var ids []uuid.UUID
	if err := sqlx.Select(r.db, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list overdue payments: %w", err)
	}
	return ids, nil
}

// ListIssuedDeparted returns issued bookings whose flight has departed.
func (r *BookingRepository) ListIssuedDeparted(limit int) ([]uuid.UUID, error) {
	query := `
		SELECT b.id FROM bookings b
		JOIN flight_groups g ON g.id = b.flight_group_id
		WHERE b.status = 'issued' AND g.departure_at < NOW()
		ORDER BY g.departure_at
		LIMIT $1`

	var ids []uuid.UUID
	if err := sqlx.Select(r.db, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list departed issued bookings: %w", err)
	}
	return ids, nil
}

// BeginTx starts a new transaction.
func (r *BookingRepository) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}
