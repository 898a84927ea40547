package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/groupavia/allotment-backend/internal/models"
)

// FlightGroupRepository handles flight group database operations
type FlightGroupRepository struct {
	db *sqlx.DB
}

// NewFlightGroupRepository creates a new FlightGroupRepository
func NewFlightGroupRepository(db *sqlx.DB) *FlightGroupRepository {
	return &FlightGroupRepository{db: db}
}

const flightGroupColumns = `
	id, group_code, origin, destination, carrier_code, flight_number,
	departure_at, return_at, sales_open_at, sales_close_at,
	status, reservation_code_mode, shared_reservation_code, currency,
	created_at, updated_at`

// Create inserts a new flight group.
func (r *FlightGroupRepository) Create(group *models.FlightGroup) error {
	group.ID = uuid.New()
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	if group.Status == "" {
		group.Status = models.FlightGroupStatusDraft
	}

	query := `
		INSERT INTO flight_groups (
			id, group_code, origin, destination, carrier_code, flight_number,
			departure_at, return_at, sales_open_at, sales_close_at,
			status, reservation_code_mode, currency, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err := r.db.Exec(query,
		group.ID, group.GroupCode, group.Origin, group.Destination,
		group.CarrierCode, group.FlightNumber,
		group.DepartureAt, group.ReturnAt, group.SalesOpenAt, group.SalesCloseAt,
		group.Status, group.CodeMode, group.Currency,
		group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create flight group: %w", err)
	}
	return nil
}

// GetByID retrieves a flight group by ID. Returns nil when not found.
func (r *FlightGroupRepository) GetByID(id uuid.UUID) (*models.FlightGroup, error) {
	var group models.FlightGroup
	query := `SELECT ` + flightGroupColumns + ` FROM flight_groups WHERE id = $1`
	err := sqlx.Get(r.db, &group, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight group: %w", err)
	}
	return &group, nil
}

// GetByIDForUpdate retrieves a flight group inside tx with a row lock,
// serializing concurrent shared-code assignment and status changes.
func (r *FlightGroupRepository) GetByIDForUpdate(tx *sqlx.Tx, id uuid.UUID) (*models.FlightGroup, error) {
	var group models.FlightGroup
	query := `SELECT ` + flightGroupColumns + ` FROM flight_groups WHERE id = $1 FOR UPDATE`
	err := sqlx.Get(tx, &group, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock flight group: %w", err)
	}
	return &group, nil
}

// SetSharedReservationCode caches the group-wide reservation code. Only the
// first write wins; a second writer sees the code on its locked re-read.
func (r *FlightGroupRepository) SetSharedReservationCode(tx *sqlx.Tx, id uuid.UUID, code string) error {
	query := `
		UPDATE flight_groups
		SET shared_reservation_code = $2, updated_at = NOW()
		WHERE id = $1 AND shared_reservation_code IS NULL`
	result, err := tx.Exec(query, id, code)
	if err != nil {
		return fmt.Errorf("failed to set shared reservation code: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("shared reservation code already assigned")
	}
	return nil
}

// UpdateStatus moves a flight group to a new lifecycle status.
func (r *FlightGroupRepository) UpdateStatus(id uuid.UUID, status models.FlightGroupStatus) error {
	query := `UPDATE flight_groups SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update flight group status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrFlightGroupNotFound
	}
	return nil
}

// ListOpenForSales returns published groups whose sales window contains now.
func (r *FlightGroupRepository) ListOpenForSales(limit, offset int) ([]models.FlightGroup, error) {
	query := `
		SELECT ` + flightGroupColumns + `
		FROM flight_groups
		WHERE status = 'published'
		  AND sales_open_at <= NOW() AND sales_close_at > NOW()
		ORDER BY departure_at
		LIMIT $1 OFFSET $2`

	var groups []models.FlightGroup
	if err := sqlx.Select(r.db, &groups, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list flight groups: %w", err)
	}
	return groups, nil
}
