package services

import (
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/groupavia/allotment-backend/internal/database"
	"github.com/groupavia/allotment-backend/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// sequenceGenerator returns the given codes in order.
func sequenceGenerator(codes ...string) CodeGenerator {
	i := 0
	return func(length int) (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func newTestAssigner(db *sqlx.DB, maxAttempts int, gen CodeGenerator) *IdentifierAssigner {
	return NewIdentifierAssigner(
		database.NewBookingRepository(db),
		database.NewFlightGroupRepository(db),
		6,
		maxAttempts,
		gen,
		testLogger(),
	)
}

func TestRandomCode(t *testing.T) {
	code, err := RandomCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.Contains(t, codeAlphabet, string(c))
	}

	// Ambiguous characters are never emitted.
	assert.NotContains(t, codeAlphabet, "0")
	assert.NotContains(t, codeAlphabet, "O")
	assert.NotContains(t, codeAlphabet, "1")
	assert.NotContains(t, codeAlphabet, "I")
}

func TestAssignReservationCodePerBooking(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	assigner := newTestAssigner(sqlxDB, 5, sequenceGenerator("AAAAAA", "BBBBBB"))

	booking := &models.Booking{ID: uuid.New()}
	group := &models.FlightGroup{ID: uuid.New(), CodeMode: models.CodeModePerBooking}

	mock.ExpectBegin()
	// First candidate collides, second claims.
	mock.ExpectExec(`INSERT INTO issued_identifiers`).
		WithArgs(KindReservationCode, "AAAAAA").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO issued_identifiers`).
		WithArgs(KindReservationCode, "BBBBBB").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(booking.ID, "BBBBBB").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	code, err := assigner.AssignReservationCode(tx, booking, group)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)
	require.NotNil(t, booking.ReservationCode)
	assert.Equal(t, "BBBBBB", *booking.ReservationCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignReservationCodeSharedFirstUse(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	assigner := newTestAssigner(sqlxDB, 5, sequenceGenerator("GRPPNR"))

	booking := &models.Booking{ID: uuid.New()}
	group := &models.FlightGroup{ID: uuid.New(), CodeMode: models.CodeModeShared}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO issued_identifiers`).
		WithArgs(KindReservationCode, "GRPPNR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE flight_groups`).
		WithArgs(group.ID, "GRPPNR").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(booking.ID, "GRPPNR").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	code, err := assigner.AssignReservationCode(tx, booking, group)
	require.NoError(t, err)
	assert.Equal(t, "GRPPNR", code)
	require.NotNil(t, group.SharedReservationCode)
	assert.Equal(t, "GRPPNR", *group.SharedReservationCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignReservationCodeSharedReusesExisting(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	assigner := newTestAssigner(sqlxDB, 5, sequenceGenerator("UNUSED"))

	existing := "GRPPNR"
	booking := &models.Booking{ID: uuid.New()}
	group := &models.FlightGroup{
		ID:                    uuid.New(),
		CodeMode:              models.CodeModeShared,
		SharedReservationCode: &existing,
	}

	mock.ExpectBegin()
	// No claim, no group update: the cached code is reused directly.
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(booking.ID, existing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	code, err := assigner.AssignReservationCode(tx, booking, group)
	require.NoError(t, err)
	assert.Equal(t, existing, code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignReservationCodeExhaustion(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	assigner := newTestAssigner(sqlxDB, 3, sequenceGenerator("SAME01"))

	booking := &models.Booking{ID: uuid.New()}
	group := &models.FlightGroup{ID: uuid.New(), CodeMode: models.CodeModePerBooking}

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`INSERT INTO issued_identifiers`).
			WithArgs(KindReservationCode, "SAME01").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	_, err = assigner.AssignReservationCode(tx, booking, group)
	require.Error(t, err)

	var exhausted *models.IdentifierExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, KindReservationCode, exhausted.Kind)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Nil(t, booking.ReservationCode)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignTicketNumbers(t *testing.T) {
	sqlxDB, mock := newMockDB(t)
	assigner := newTestAssigner(sqlxDB, 5, sequenceGenerator("TKT001", "TKT002"))

	already := "TKT000"
	passengers := []models.Passenger{
		{ID: uuid.New()},
		{ID: uuid.New(), TicketNumber: &already},
		{ID: uuid.New()},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO issued_identifiers`).
		WithArgs(KindTicketNumber, "TKT001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE passengers`).
		WithArgs(passengers[0].ID, "TKT001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second passenger is skipped; third gets the next code.
	mock.ExpectExec(`INSERT INTO issued_identifiers`).
		WithArgs(KindTicketNumber, "TKT002").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE passengers`).
		WithArgs(passengers[2].ID, "TKT002").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := sqlxDB.Beginx()
	require.NoError(t, err)

	require.NoError(t, assigner.AssignTicketNumbers(tx, passengers))
	require.NotNil(t, passengers[0].TicketNumber)
	assert.Equal(t, "TKT001", *passengers[0].TicketNumber)
	assert.Equal(t, "TKT000", *passengers[1].TicketNumber)
	assert.Equal(t, "TKT002", *passengers[2].TicketNumber)

	assert.NoError(t, mock.ExpectationsWereMet())
}
