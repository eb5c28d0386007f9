// Package events defines the notification collaborator the pipeline emits
// coarse-grained events to. Delivery to clients is outside this core; the
// pipeline's obligation is one emission per underlying state change.
package events

import (
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
)

// Sink receives pipeline events
type Sink interface {
	// ListingFound fires once per newly created listing
	ListingFound(listing *models.Listing)
	// JobCompleted fires once when a job reaches a terminal state
	JobCompleted(job *models.ScrapeJob)
	// HighValueAlert fires once per new listing at or above the opportunity threshold
	HighValueAlert(listing *models.Listing)
}

// LogSink is a Sink that writes events to the structured log. It stands in
// for the push-delivery mechanism during development and in tests.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log-backed event sink
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// ListingFound logs a new listing event
func (s *LogSink) ListingFound(listing *models.Listing) {
	s.logger.WithFields(map[string]interface{}{
		"event":      "listing_found",
		"listingId":  listing.ID,
		"platform":   listing.Platform,
		"valueScore": listing.ValueScore,
	}).Info("Listing found")
}

// JobCompleted logs a job terminal-state event
func (s *LogSink) JobCompleted(job *models.ScrapeJob) {
	s.logger.WithFields(map[string]interface{}{
		"event":         "job_completed",
		"jobId":         job.ID,
		"platform":      job.Platform,
		"status":        job.Status,
		"listingsFound": job.ListingsFound,
	}).Info("Job completed")
}

// HighValueAlert logs a high-value listing event
func (s *LogSink) HighValueAlert(listing *models.Listing) {
	s.logger.WithFields(map[string]interface{}{
		"event":           "high_value_alert",
		"listingId":       listing.ID,
		"platform":        listing.Platform,
		"valueScore":      listing.ValueScore,
		"profitPotential": listing.ProfitPotential,
	}).Info("High value listing")
}

// NopSink discards all events; useful in tests.
type NopSink struct{}

func (NopSink) ListingFound(*models.Listing)   {}
func (NopSink) JobCompleted(*models.ScrapeJob) {}
func (NopSink) HighValueAlert(*models.Listing) {}
