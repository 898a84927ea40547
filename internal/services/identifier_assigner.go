package services

import (
	"crypto/rand"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/groupavia/allotment-backend/internal/database"
	"github.com/groupavia/allotment-backend/internal/models"
)

// Identifier kinds tracked in the global uniqueness table.
const (
	KindReservationCode = "reservation_code"
	KindTicketNumber    = "ticket_number"
)

// codeAlphabet excludes 0/O/1/I to keep codes readable over the phone.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator produces a candidate identifier of the given length. It is
// pluggable so tests can drive the retry loop deterministically.
type CodeGenerator func(length int) (string, error)

// RandomCode generates a fixed-length code from the PNR alphabet using
// crypto/rand.
func RandomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// IdentifierAssigner hands out reservation codes and ticket numbers. Each
// assignment claims the candidate code in the issued_identifiers table and
// regenerates on collision, bounded at maxAttempts, after which the operation
// fails with IdentifierExhausted and the caller's transaction rolls back.
type IdentifierAssigner struct {
	bookingRepo *database.BookingRepository
	groupRepo   *database.FlightGroupRepository
	codeLength  int
	maxAttempts int
	generate    CodeGenerator
	logger      *logrus.Logger
}

// NewIdentifierAssigner creates a new IdentifierAssigner
func NewIdentifierAssigner(
	bookingRepo *database.BookingRepository,
	groupRepo *database.FlightGroupRepository,
	codeLength int,
	maxAttempts int,
	generate CodeGenerator,
	logger *logrus.Logger,
) *IdentifierAssigner {
	if generate == nil {
		generate = RandomCode
	}
	return &IdentifierAssigner{
		bookingRepo: bookingRepo,
		groupRepo:   groupRepo,
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
		generate:    generate,
		logger:      logger,
	}
}

// claim runs the generate-check-retry loop for one identifier kind.
func (a *IdentifierAssigner) claim(tx *sqlx.Tx, kind string) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := a.generate(a.codeLength)
		if err != nil {
			return "", err
		}

		claimed, err := a.bookingRepo.ClaimIdentifier(tx, kind, code)
		if err != nil {
			return "", err
		}
		if claimed {
			return code, nil
		}

		a.logger.WithFields(logrus.Fields{
			"kind":    kind,
			"attempt": attempt + 1,
		}).Debug("Identifier collision, regenerating")
	}

	return "", &models.IdentifierExhaustedError{Kind: kind, Attempts: a.maxAttempts}
}

// AssignReservationCode puts a reservation code on the booking according to
// the flight group's mode. In shared mode the group-wide code is generated on
// first use and cached on the group; in per-booking mode every booking gets
// its own. Both the group and the booking rows are already locked by the
// caller's transaction.
func (a *IdentifierAssigner) AssignReservationCode(tx *sqlx.Tx, booking *models.Booking, group *models.FlightGroup) (string, error) {
	var code string

	switch group.CodeMode {
	case models.CodeModeShared:
		if group.SharedReservationCode != nil {
			code = *group.SharedReservationCode
		} else {
			generated, err := a.claim(tx, KindReservationCode)
			if err != nil {
				return "", err
			}
			if err := a.groupRepo.SetSharedReservationCode(tx, group.ID, generated); err != nil {
				return "", err
			}
			group.SharedReservationCode = &generated
			code = generated
		}
	case models.CodeModePerBooking:
		generated, err := a.claim(tx, KindReservationCode)
		if err != nil {
			return "", err
		}
		code = generated
	default:
		return "", fmt.Errorf("unknown reservation code mode: %s", group.CodeMode)
	}

	if err := a.bookingRepo.AssignReservationCode(tx, booking.ID, code); err != nil {
		return "", err
	}
	booking.ReservationCode = &code
	return code, nil
}

// AssignTicketNumbers gives every passenger on the booking a unique ticket
// number using the same bounded generate-check-retry loop.
func (a *IdentifierAssigner) AssignTicketNumbers(tx *sqlx.Tx, passengers []models.Passenger) error {
	for i := range passengers {
		p := &passengers[i]
		if p.TicketNumber != nil {
			continue
		}

		number, err := a.claim(tx, KindTicketNumber)
		if err != nil {
			return err
		}
		if err := a.bookingRepo.AssignTicketNumber(tx, p.ID, number); err != nil {
			return err
		}
		p.TicketNumber = &number
	}
	return nil
}
