package services

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/groupavia/allotment-backend/internal/database"
)

// SweepResult summarizes one expiry sweep cycle.
type SweepResult struct {
	HoldsExpired    int `json:"holds_expired"`
	PaymentsExpired int `json:"payments_expired"`
	DepartedExpired int `json:"departed_expired"`
	Failed          int `json:"failed"`
}

// Total returns the number of bookings expired in this cycle.
func (r SweepResult) Total() int {
	return r.HoldsExpired + r.PaymentsExpired + r.DepartedExpired
}

// ExpiryService is the stateless sweep that forces time-driven transitions:
// requested bookings past their hold TTL, payment_pending bookings past their
// deadline, and issued bookings whose flight has departed. Each booking is
// expired in its own transaction through the orchestrator, so one bad row
// cannot abort the remaining batch. With nothing eligible, a sweep is a no-op.
type ExpiryService struct {
	bookingRepo *database.BookingRepository
	bookingSvc  *BookingService
	batchSize   int
	logger      *logrus.Logger
}

// NewExpiryService creates a new ExpiryService
func NewExpiryService(
	bookingRepo *database.BookingRepository,
	bookingSvc *BookingService,
	logger *logrus.Logger,
) *ExpiryService {
	return &ExpiryService{
		bookingRepo: bookingRepo,
		bookingSvc:  bookingSvc,
		batchSize:   100,
		logger:      logger,
	}
}

// RunOnce executes a single sweep cycle and returns what it did.
func (s *ExpiryService) RunOnce() SweepResult {
	var result SweepResult

	result.HoldsExpired = s.expireBatch("hold", s.bookingRepo.ListExpiredHolds, &result.Failed)
	result.PaymentsExpired = s.expireBatch("payment_deadline", s.bookingRepo.ListPaymentOverdue, &result.Failed)
	result.DepartedExpired = s.expireBatch("post_departure", s.bookingRepo.ListIssuedDeparted, &result.Failed)

	if result.Total() > 0 || result.Failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"holds_expired":    result.HoldsExpired,
			"payments_expired": result.PaymentsExpired,
			"departed_expired": result.DepartedExpired,
			"failed":           result.Failed,
		}).Info("Expiry sweep completed")
	}

	return result
}

// expireBatch runs one sweep phase. Failures are counted and logged
// per-booking; the rest of the batch continues.
func (s *ExpiryService) expireBatch(phase string, list func(limit int) ([]uuid.UUID, error), failed *int) int {
	ids, err := list(s.batchSize)
	if err != nil {
		s.logger.WithError(err).WithField("phase", phase).Error("Failed to list expirable bookings")
		return 0
	}

	expired := 0
	for _, id := range ids {
		if err := s.bookingSvc.ExpireBooking(id); err != nil {
			*failed++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"phase":      phase,
				"booking_id": id,
			}).Error("Failed to expire booking")
			continue
		}
		expired++
		s.logger.WithFields(logrus.Fields{
			"phase":      phase,
			"booking_id": id,
		}).Info("Booking expired")
	}
	return expired
}
