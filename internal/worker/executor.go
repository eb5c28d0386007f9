// Package worker runs the background halves of the pipeline: the
// posting-queue executor and the scheduled-scan cron.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/metrics"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

// QueueStore is the slice of the queue repository the executor needs
type QueueStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*models.QueueItem, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	ExhaustRetries(ctx context.Context, id string) error
}

// Requeuer schedules automatic retries of failed items
type Requeuer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// MessageMarker records delivery outcomes on the originating message
type MessageMarker interface {
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// ActionRunner executes one claimed queue item against a marketplace
type ActionRunner interface {
	Run(ctx context.Context, item *models.QueueItem) error
}

// Executor polls the posting queue, executes claimed items, and schedules
// automatic retries. Claims are conditional updates, so multiple executor
// processes can share one queue.
type Executor struct {
	queue    QueueStore
	requeuer Requeuer
	messages MessageMarker
	runner   ActionRunner
	cfg      config.QueueConfig
	metrics  metrics.Recorder
	logger   *logging.Logger
}

// NewExecutor creates a posting-queue executor. messages may be nil when no
// message workflow is wired in.
func NewExecutor(
	queue QueueStore,
	requeuer Requeuer,
	messages MessageMarker,
	runner ActionRunner,
	cfg config.QueueConfig,
	recorder metrics.Recorder,
	logger *logging.Logger,
) *Executor {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Executor{
		queue:    queue,
		requeuer: requeuer,
		messages: messages,
		runner:   runner,
		cfg:      cfg,
		metrics:  recorder,
		logger:   logger.WithField("component", "queue_executor"),
	}
}

// Start polls until the context is cancelled
func (e *Executor) Start(ctx context.Context) {
	e.logger.WithField("pollInterval", e.cfg.PollInterval.String()).Info("Queue executor started")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Queue executor stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle: execute a batch of claimed items, then requeue
// any failed items whose backoff has elapsed.
func (e *Executor) Tick(ctx context.Context) {
	items, err := e.queue.ClaimPending(ctx, e.cfg.ClaimBatchSize)
	if err != nil {
		e.metrics.RecordError("queue_claim")
		e.logger.WithError(err).Error("Failed to claim queue items")
		return
	}

	for _, item := range items {
		e.execute(ctx, item)
	}

	if e.requeuer != nil {
		requeued, err := e.requeuer.RequeueStale(ctx, e.cfg.RetryBaseDelay, e.cfg.ClaimBatchSize)
		if err != nil {
			e.logger.WithError(err).Warn("Automatic requeue failed")
		} else if requeued > 0 {
			e.logger.WithField("count", requeued).Info("Requeued failed items")
		}
	}
}

func (e *Executor) execute(ctx context.Context, item *models.QueueItem) {
	logger := e.logger.WithFields(map[string]interface{}{
		"itemId": item.ID,
		"action": string(item.Action),
	})

	started := time.Now()
	err := e.runner.Run(ctx, item)
	e.metrics.Observe("queue_action_duration_seconds", time.Since(started).Seconds())

	if err != nil {
		e.metrics.RecordError("queue_action")
		message := errors.Truncate(err.Error(), 200)
		if markErr := e.queue.MarkFailed(ctx, item.ID, message); markErr != nil {
			logger.WithError(markErr).Error("Failed to record queue failure")
		}
		logger.WithError(err).WithField("retryCount", item.RetryCount).Warn("Queue action failed")

		// Retrying a bad payload or an unknown action would fail the same
		// way every time, so permanent failures burn the remaining budget.
		permanent := !errors.IsRetryable(err)
		if permanent {
			if exhaustErr := e.queue.ExhaustRetries(ctx, item.ID); exhaustErr != nil {
				logger.WithError(exhaustErr).Error("Failed to exhaust item retries")
			}
		}

		// No retries remain for this failure, so the message is stuck
		if e.messages != nil && item.MessageID != nil && (permanent || item.RetryCount >= item.MaxRetries) {
			if markErr := e.messages.MarkFailed(ctx, *item.MessageID); markErr != nil {
				logger.WithError(markErr).Warn("Failed to mark message failed")
			}
		}
		return
	}

	if err := e.queue.MarkDone(ctx, item.ID); err != nil {
		logger.WithError(err).Error("Failed to mark queue item done")
		return
	}
	e.metrics.Increment("queue_actions_done")

	if e.messages != nil && item.MessageID != nil {
		if err := e.messages.MarkDelivered(ctx, *item.MessageID); err != nil {
			logger.WithError(err).Warn("Failed to mark message delivered")
		}
	}
	logger.Info("Queue action executed")
}

// sendMessagePayload mirrors the payload the message service enqueues
type sendMessagePayload struct {
	MessageID  string `json:"messageId"`
	Body       string `json:"body"`
	ListingURL string `json:"listingUrl"`
}

// crossPostPayload carries the listing snapshot for a cross-post action
type crossPostPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// AgentRunner executes queue actions through the browser-agent service,
// which is the only side of the system that can interact with logged-in
// marketplace sessions.
type AgentRunner struct {
	agent  adapter.Extractor
	logger *logging.Logger
}

// NewAgentRunner creates an agent-backed action runner
func NewAgentRunner(agent adapter.Extractor, logger *logging.Logger) *AgentRunner {
	return &AgentRunner{
		agent:  agent,
		logger: logger.WithField("component", "agent_runner"),
	}
}

// Run dispatches one queue item by action type
func (r *AgentRunner) Run(ctx context.Context, item *models.QueueItem) error {
	switch item.Action {
	case types.ActionSendMessage:
		return r.sendMessage(ctx, item)
	case types.ActionCrossPost:
		return r.crossPost(ctx, item)
	default:
		return fmt.Errorf("unknown queue action %q", item.Action)
	}
}

func (r *AgentRunner) sendMessage(ctx context.Context, item *models.QueueItem) error {
	var payload sendMessagePayload
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
		return fmt.Errorf("decode send_message payload: %w", err)
	}
	if payload.ListingURL == "" {
		return fmt.Errorf("send_message payload has no listing URL")
	}

	action := fmt.Sprintf("Open the listing's contact form and send the seller this message: %s", payload.Body)
	if err := r.agent.Act(ctx, payload.ListingURL, action); err != nil {
		return errors.NewAdapterError(item.TargetPlatform, fmt.Errorf("send message: %w", err))
	}
	return nil
}

func (r *AgentRunner) crossPost(ctx context.Context, item *models.QueueItem) error {
	var payload crossPostPayload
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil {
		return fmt.Errorf("decode cross_post payload: %w", err)
	}
	if payload.Title == "" {
		return fmt.Errorf("cross_post payload has no title")
	}

	action := fmt.Sprintf(
		"Create a new listing titled %q priced at $%.2f. Description: %s",
		payload.Title, payload.Price, payload.Description,
	)
	if err := r.agent.Act(ctx, createListingURL(item.TargetPlatform), action); err != nil {
		return errors.NewAdapterError(item.TargetPlatform, fmt.Errorf("cross post: %w", err))
	}
	return nil
}

// createListingURL maps a platform to its posting entry point
func createListingURL(platform types.Platform) string {
	switch platform {
	case types.PlatformFacebook:
		return "https://www.facebook.com/marketplace/create/item"
	case types.PlatformOfferUp:
		return "https://offerup.com/post/"
	case types.PlatformMercari:
		return "https://www.mercari.com/sell/"
	default:
		return "https://post.craigslist.org/"
	}
}
