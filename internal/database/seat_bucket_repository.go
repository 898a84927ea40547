package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/groupavia/allotment-backend/internal/models"
)

// SeatBucketRepository is the seat ledger. It owns every mutation of the
// per-type inventory counters; nothing else writes seat_buckets rows. Hold,
// Release and Issue run inside the caller's transaction and each is a single
// guarded UPDATE, so the invariant seats_on_hold + seats_issued <= total_seats
// cannot be broken regardless of interleaving.
type SeatBucketRepository struct {
	db *sqlx.DB
}

// NewSeatBucketRepository creates a new SeatBucketRepository
func NewSeatBucketRepository(db *sqlx.DB) *SeatBucketRepository {
	return &SeatBucketRepository{db: db}
}

const seatBucketColumns = `
	id, flight_group_id, passenger_type, total_seats, seats_on_hold,
	seats_issued, base_fare, tax_amount, currency, created_at, updated_at`

// Create inserts a seat bucket for a flight group / passenger type.
func (r *SeatBucketRepository) Create(bucket *models.SeatBucket) error {
	bucket.ID = uuid.New()
	bucket.CreatedAt = time.Now()
	bucket.UpdatedAt = bucket.CreatedAt

	query := `
		INSERT INTO seat_buckets (
			id, flight_group_id, passenger_type, total_seats, seats_on_hold,
			seats_issued, base_fare, tax_amount, currency, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, 0, 0, $5, $6, $7, $8, $9
		)`

	_, err := r.db.Exec(query,
		bucket.ID, bucket.FlightGroupID, bucket.PassengerType, bucket.TotalSeats,
		bucket.BaseFare, bucket.TaxAmount, bucket.Currency,
		bucket.CreatedAt, bucket.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create seat bucket: %w", err)
	}
	return nil
}

// ListByFlightGroup returns all buckets for a flight group.
func (r *SeatBucketRepository) ListByFlightGroup(groupID uuid.UUID) ([]models.SeatBucket, error) {
	query := `
		SELECT ` + seatBucketColumns + `
		FROM seat_buckets
		WHERE flight_group_id = $1
		ORDER BY passenger_type`

	var buckets []models.SeatBucket
	if err := sqlx.Select(r.db, &buckets, query, groupID); err != nil {
		return nil, fmt.Errorf("failed to list seat buckets: %w", err)
	}
	return buckets, nil
}

// GetForUpdate locks and returns the bucket for one flight group / passenger
// type inside tx. Concurrent holds against the same bucket serialize here;
// the loser re-reads post-commit counters. Returns nil when no bucket exists.
func (r *SeatBucketRepository) GetForUpdate(tx *sqlx.Tx, groupID uuid.UUID, ptype models.PassengerType) (*models.SeatBucket, error) {
	var bucket models.SeatBucket
	query := `
		SELECT ` + seatBucketColumns + `
		FROM seat_buckets
		WHERE flight_group_id = $1 AND passenger_type = $2
		FOR UPDATE`
	err := sqlx.Get(tx, &bucket, query, groupID, ptype)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock seat bucket: %w", err)
	}
	return &bucket, nil
}

// Hold places n seats on hold. Fails with InsufficientAvailability when fewer
// than n seats remain; the guard lives in the WHERE clause so the counters
// never overshoot even without the row lock.
func (r *SeatBucketRepository) Hold(tx *sqlx.Tx, bucket *models.SeatBucket, n int) error {
	if n <= 0 {
		return nil
	}

	query := `
		UPDATE seat_buckets
		SET seats_on_hold = seats_on_hold + $2, updated_at = NOW()
		WHERE id = $1
		  AND total_seats - seats_on_hold - seats_issued >= $2`
	result, err := tx.Exec(query, bucket.ID, n)
	if err != nil {
		return fmt.Errorf("failed to hold seats: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.InsufficientAvailabilityError{
			FlightGroupID: bucket.FlightGroupID.String(),
			PassengerType: bucket.PassengerType,
			Requested:     n,
			Available:     bucket.Available(),
		}
	}

	bucket.SeatsOnHold += n
	return nil
}

// Release returns up to n held seats to availability. The decrement floors at
// zero; releasing more than is held is not an error.
func (r *SeatBucketRepository) Release(tx *sqlx.Tx, bucket *models.SeatBucket, n int) error {
	if n <= 0 {
		return nil
	}

	query := `
		UPDATE seat_buckets
		SET seats_on_hold = seats_on_hold - LEAST($2, seats_on_hold), updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.Exec(query, bucket.ID, n); err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	if n > bucket.SeatsOnHold {
		n = bucket.SeatsOnHold
	}
	bucket.SeatsOnHold -= n
	return nil
}

// Issue converts n held seats into issued seats at ticketing time. Fails with
// InsufficientAvailability if issuing would push the issued count past the
// bucket total.
func (r *SeatBucketRepository) Issue(tx *sqlx.Tx, bucket *models.SeatBucket, n int) error {
	if n <= 0 {
		return nil
	}

	query := `
		UPDATE seat_buckets
		SET seats_on_hold = seats_on_hold - LEAST($2, seats_on_hold),
		    seats_issued = seats_issued + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND total_seats - seats_issued >= $2`
	result, err := tx.Exec(query, bucket.ID, n)
	if err != nil {
		return fmt.Errorf("failed to issue seats: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.InsufficientAvailabilityError{
			FlightGroupID: bucket.FlightGroupID.String(),
			PassengerType: bucket.PassengerType,
			Requested:     n,
			Available:     bucket.TotalSeats - bucket.SeatsIssued,
		}
	}

	released := n
	if released > bucket.SeatsOnHold {
		released = bucket.SeatsOnHold
	}
	bucket.SeatsOnHold -= released
	bucket.SeatsIssued += n
	return nil
}
