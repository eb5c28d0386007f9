package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/events"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/metrics"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

// maxErrorMessageLength bounds stored job error messages
const maxErrorMessageLength = 200

// JobRepository interface for scrape-job data operations
type JobRepository interface {
	Create(ctx context.Context, job *models.ScrapeJob) error
	GetByID(ctx context.Context, id string) (*models.ScrapeJob, error)
	Update(ctx context.Context, job *models.ScrapeJob) error
	MarkRunning(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]*models.ScrapeJob, error)
}

// Ingestor normalizes scraped items into listings
type Ingestor interface {
	Ingest(ctx context.Context, platform types.Platform, ownerID string, item *types.RawItem) (*IngestResult, error)
}

// ScrapeService orchestrates scraper jobs: adapter dispatch, per-item
// ingestion, counters, and job finalization.
type ScrapeService struct {
	jobs     JobRepository
	registry *adapter.Registry
	ingestor Ingestor
	events   events.Sink
	metrics  metrics.Recorder
	maxItems int
	logger   *logging.Logger
}

// NewScrapeService creates a new scrape service. maxItems caps how many
// items a single job pulls from a marketplace; zero falls back to the
// adapter default.
func NewScrapeService(
	jobs JobRepository,
	registry *adapter.Registry,
	ingestor Ingestor,
	sink events.Sink,
	recorder metrics.Recorder,
	maxItems int,
	logger *logging.Logger,
) *ScrapeService {
	if sink == nil {
		sink = events.NopSink{}
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &ScrapeService{
		jobs:     jobs,
		registry: registry,
		ingestor: ingestor,
		events:   sink,
		metrics:  recorder,
		maxItems: maxItems,
		logger:   logger.WithField("component", "scrape_service"),
	}
}

// StartJobInput describes one scraper job request
type StartJobInput struct {
	Platform types.Platform    `json:"platform"`
	OwnerID  string            `json:"ownerId,omitempty"`
	Query    types.ScrapeQuery `json:"query"`
}

// CreateJob validates the request and records a pending job
func (s *ScrapeService) CreateJob(ctx context.Context, input StartJobInput) (*models.ScrapeJob, error) {
	if input.Platform == "" {
		return nil, errors.NewValidationError("platform", "must not be empty")
	}
	if _, err := s.registry.Get(input.Platform); err != nil {
		return nil, errors.NewValidationError("platform", err.Error())
	}
	if input.Query.Location == "" && input.Query.Keywords == "" && input.Query.Category == "" {
		return nil, errors.NewValidationError("query", "location, category, or keywords required")
	}

	job := &models.ScrapeJob{
		ID:        uuid.New().String(),
		Platform:  input.Platform,
		OwnerID:   input.OwnerID,
		Location:  input.Query.Location,
		Category:  input.Query.Category,
		Keywords:  input.Query.Keywords,
		MinPrice:  input.Query.MinPrice,
		MaxPrice:  input.Query.MaxPrice,
		Status:    types.JobStatusPending,
		StartedAt: time.Now().UTC(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, errors.NewDatabaseError("create scrape job", err)
	}

	return job, nil
}

// Execute runs a pending job to completion. A job completes with zero
// listings when the marketplace returns nothing; it fails only on
// adapter-level errors. Per-item problems are counted, never fatal.
func (s *ScrapeService) Execute(ctx context.Context, job *models.ScrapeJob) error {
	logger := s.logger.WithFields(map[string]interface{}{
		"jobId":    job.ID,
		"platform": string(job.Platform),
	})
	ctx = logging.WithLogger(ctx, logger)

	scraper, err := s.registry.Get(job.Platform)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		return errors.NewDatabaseError("mark scrape job running", err)
	}
	job.Status = types.JobStatusRunning

	started := time.Now()
	results, err := scraper.Scrape(ctx, s.query(job))
	s.metrics.Observe("scrape_duration_seconds", time.Since(started).Seconds())
	if err != nil {
		s.metrics.RecordError("scrape_failed")
		return s.fail(ctx, job, err)
	}

	for _, result := range results {
		if !result.OK() {
			job.ItemsSkipped++
			logger.WithField("reason", result.SkipReason).Debug("Item skipped by adapter")
			continue
		}

		ingested, err := s.ingestor.Ingest(ctx, job.Platform, job.OwnerID, result.Item)
		if err != nil {
			job.ItemsSkipped++
			s.metrics.RecordError("ingest_failed")
			logger.WithError(err).WithField("title", result.Item.Title).Warn("Item ingestion failed")
			continue
		}

		job.ListingsFound++
		s.metrics.Increment("listings_ingested")

		listing := ingested.Listing
		if ingested.Created {
			s.events.ListingFound(listing)
		}
		if ingested.Opportunity {
			job.OpportunitiesFound++
			s.events.HighValueAlert(listing)
		}
	}

	return s.complete(ctx, job)
}

// Run creates and immediately executes a job; used by the scheduler
func (s *ScrapeService) Run(ctx context.Context, input StartJobInput) (*models.ScrapeJob, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.Execute(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// GetJob retrieves a scrape job by ID
func (s *ScrapeService) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("scrape job", id, err)
	}
	return job, nil
}

// ListJobs retrieves the most recent scrape jobs
func (s *ScrapeService) ListJobs(ctx context.Context, limit int) ([]*models.ScrapeJob, error) {
	jobs, err := s.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list scrape jobs", err)
	}
	return jobs, nil
}

func (s *ScrapeService) query(job *models.ScrapeJob) types.ScrapeQuery {
	return types.ScrapeQuery{
		Location:    job.Location,
		Category:    job.Category,
		Keywords:    job.Keywords,
		MinPrice:    job.MinPrice,
		MaxPrice:    job.MaxPrice,
		MaxItems:    s.maxItems,
		ExcludeSold: true,
	}
}

// complete finalizes a successful job
func (s *ScrapeService) complete(ctx context.Context, job *models.ScrapeJob) error {
	now := time.Now().UTC()
	job.Status = types.JobStatusCompleted
	job.CompletedAt = &now
	job.ErrorMessage = nil

	if err := s.jobs.Update(ctx, job); err != nil {
		return errors.NewDatabaseError("finalize scrape job", err)
	}

	s.events.JobCompleted(job)
	s.metrics.Increment("jobs_completed")
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"listingsFound":      job.ListingsFound,
		"opportunitiesFound": job.OpportunitiesFound,
		"itemsSkipped":       job.ItemsSkipped,
	}).Info("Scrape job completed")

	return nil
}

// fail finalizes a failed job with a bounded error message
func (s *ScrapeService) fail(ctx context.Context, job *models.ScrapeJob, cause error) error {
	now := time.Now().UTC()
	message := errors.Truncate(cause.Error(), maxErrorMessageLength)

	job.Status = types.JobStatusFailed
	job.CompletedAt = &now
	job.ErrorMessage = &message

	if err := s.jobs.Update(ctx, job); err != nil {
		logging.FromContext(ctx).WithError(err).Error("Failed to record scrape job failure")
	}

	s.metrics.Increment("jobs_failed")
	logging.FromContext(ctx).WithError(cause).Error("Scrape job failed")

	return errors.NewAdapterError(job.Platform, cause)
}
