package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/service"
)

// SearchStore is the slice of the saved-search repository the scheduler needs
type SearchStore interface {
	ListEnabled(ctx context.Context) ([]*models.SavedSearch, error)
	TouchLastRun(ctx context.Context, id string) error
}

// JobRunner creates and executes one scrape job
type JobRunner interface {
	Run(ctx context.Context, input service.StartJobInput) (*models.ScrapeJob, error)
}

// Scheduler re-runs every enabled saved search on a cron schedule. Runs
// within one sweep are bounded by maxSessions so concurrent browser
// sessions stay under the configured cap.
type Scheduler struct {
	searches    SearchStore
	runner      JobRunner
	schedule    string
	maxSessions int
	cron        *cron.Cron
	logger      *logging.Logger
}

// NewScheduler creates a scan scheduler. An empty schedule disables it.
func NewScheduler(searches SearchStore, runner JobRunner, schedule string, maxSessions int, logger *logging.Logger) *Scheduler {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Scheduler{
		searches:    searches,
		runner:      runner,
		schedule:    schedule,
		maxSessions: maxSessions,
		logger:      logger.WithField("component", "scan_scheduler"),
	}
}

// Start registers the cron entry and begins scheduling. Returns false when
// no schedule is configured.
func (s *Scheduler) Start(ctx context.Context) (bool, error) {
	if s.schedule == "" {
		s.logger.Info("Scan schedule not configured, scheduler disabled")
		return false, nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunAll(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled scan sweep finished with errors")
		}
	})
	if err != nil {
		return false, err
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Scan scheduler started")
	return true, nil
}

// Stop halts scheduling and waits for in-flight runs
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Scan scheduler stopped")
}

// RunAll executes every enabled saved search once, at most maxSessions at a
// time. Individual search failures are logged and do not stop the sweep;
// the first error is returned after all searches ran.
func (s *Scheduler) RunAll(ctx context.Context) error {
	searches, err := s.searches.ListEnabled(ctx)
	if err != nil {
		return err
	}
	if len(searches) == 0 {
		return nil
	}

	s.logger.WithField("count", len(searches)).Info("Running scheduled scans")

	// Plain group, not WithContext: one failed search must not cancel the rest
	var group errgroup.Group
	group.SetLimit(s.maxSessions)

	for _, search := range searches {
		search := search
		group.Go(func() error {
			job, err := s.runner.Run(ctx, service.StartJobInput{
				Platform: search.Platform,
				OwnerID:  search.OwnerID,
				Query:    search.Query(),
			})
			if err != nil {
				s.logger.WithError(err).WithField("searchId", search.ID).Warn("Scheduled scan failed")
				return err
			}

			if err := s.searches.TouchLastRun(ctx, search.ID); err != nil {
				s.logger.WithError(err).WithField("searchId", search.ID).Warn("Failed to record run time")
			}

			s.logger.WithFields(map[string]interface{}{
				"searchId":      search.ID,
				"jobId":         job.ID,
				"listingsFound": job.ListingsFound,
			}).Info("Scheduled scan completed")
			return nil
		})
	}

	return group.Wait()
}
