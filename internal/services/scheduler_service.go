package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerService manages scheduled background jobs
type SchedulerService struct {
	cron      *cron.Cron
	expirySvc *ExpiryService
	schedule  string
	logger    *logrus.Logger
}

// NewSchedulerService creates a new SchedulerService. The schedule is a cron
// expression with seconds precision.
func NewSchedulerService(expirySvc *ExpiryService, schedule string, logger *logrus.Logger) *SchedulerService {
	return &SchedulerService{
		cron:      cron.New(cron.WithSeconds()),
		expirySvc: expirySvc,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start registers and starts all scheduled jobs.
func (s *SchedulerService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.expirySweepJob); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scheduler started, expiry sweep registered")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *SchedulerService) expirySweepJob() {
	start := time.Now()
	result := s.expirySvc.RunOnce()
	if result.Total() > 0 || result.Failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":     result.Total(),
			"failed":      result.Failed,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Scheduled expiry sweep finished")
	}
}

// RunExpirySweepNow runs the expiry sweep immediately, outside its schedule.
func (s *SchedulerService) RunExpirySweepNow() SweepResult {
	return s.expirySvc.RunOnce()
}
