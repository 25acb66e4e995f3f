package scheduler

import (
	"context"

	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Refresher re-runs the live refresh sequence
type Refresher interface {
	Refresh(ctx context.Context) models.Snapshot
}

// Service handles periodic refreshes of the dashboard
type Service struct {
	config    *config.Config
	refresher Refresher
	cron      *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, refresher Refresher) *Service {
	return &Service{
		config:    cfg,
		refresher: refresher,
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled refreshes. An empty REFRESH_SCHEDULE leaves
// the scheduler idle and push notifications drive all refreshes.
func (s *Service) Start() error {
	if s.config.RefreshSchedule == "" {
		logrus.Info("No refresh schedule configured, periodic refresh disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.RefreshSchedule, s.runRefresh)
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with refresh schedule %q", s.config.RefreshSchedule)
	return nil
}

func (s *Service) runRefresh() {
	logrus.Debug("Starting scheduled refresh")
	snap := s.refresher.Refresh(context.Background())
	if snap.DataSource != models.SourceLive {
		logrus.Debug("Scheduled refresh skipped, dashboard is showing mock data")
		return
	}
	if snap.Error != "" {
		logrus.Errorf("Scheduled refresh finished with error: %s", snap.Error)
	}
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
