package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

// MessageRepository interface for message data operations
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Update(ctx context.Context, message *models.Message) error
	UpdateStatus(ctx context.Context, id string, from, to types.MessageStatus) (bool, error)
	ListByListing(ctx context.Context, listingID string) ([]*models.Message, error)
	ListByStatus(ctx context.Context, status types.MessageStatus, limit int) ([]*models.Message, error)
}

// Enqueuer hands approved messages to the posting queue
type Enqueuer interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*models.QueueItem, error)
}

// sendMessagePayload is the queue item payload for outbound sends
type sendMessagePayload struct {
	MessageID  string `json:"messageId"`
	Body       string `json:"body"`
	ListingURL string `json:"listingUrl"`
}

// MessageService drives the draft → approval → send workflow for outbound
// seller messages. Delivery itself happens on the posting queue.
type MessageService struct {
	repo     MessageRepository
	listings ListingRepository
	queue    Enqueuer
	offerPct float64
	logger   *logging.Logger
}

// NewMessageService creates a new message service. offerPct is the opening
// offer as a fraction of asking price for negotiable listings.
func NewMessageService(repo MessageRepository, listings ListingRepository, queue Enqueuer, offerPct float64, logger *logging.Logger) *MessageService {
	if offerPct <= 0 || offerPct > 1 {
		offerPct = 0.85
	}
	return &MessageService{
		repo:     repo,
		listings: listings,
		queue:    queue,
		offerPct: offerPct,
		logger:   logger.WithField("component", "message_service"),
	}
}

// Draft generates an opening purchase message for a listing. Negotiable
// listings get a lowered cash offer, firm-priced ones a full-price inquiry.
func (s *MessageService) Draft(ctx context.Context, listingID, ownerID string) (*models.Message, error) {
	if listingID == "" {
		return nil, errors.NewValidationError("listingId", "must not be empty")
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, mapStorageError("listing", listingID, err)
	}

	message := &models.Message{
		ID:        uuid.New().String(),
		ListingID: &listing.ID,
		OwnerID:   ownerID,
		Direction: "outbound",
		Body:      s.draftBody(listing),
		Status:    types.MessageStatusDraft,
	}

	if err := s.repo.Create(ctx, message); err != nil {
		return nil, errors.NewDatabaseError("create message", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"messageId": message.ID,
		"listingId": listing.ID,
	}).Info("Message drafted")

	return message, nil
}

func (s *MessageService) draftBody(listing *models.Listing) string {
	title := strings.TrimSpace(listing.Title)
	if !listing.Negotiable {
		return fmt.Sprintf("Hi! Is the %s still available? I can pick it up today and pay the full $%.0f in cash.",
			title, listing.AskingPrice)
	}
	offer := math.Floor(listing.AskingPrice * s.offerPct)
	return fmt.Sprintf("Hi! Is the %s still available? Would you take $%.0f? I can pick it up today and pay cash.",
		title, offer)
}

// Get retrieves a message by ID
func (s *MessageService) Get(ctx context.Context, id string) (*models.Message, error) {
	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("message", id, err)
	}
	return message, nil
}

// Edit replaces a draft's body. Only draft and pending_approval messages
// can be edited.
func (s *MessageService) Edit(ctx context.Context, id, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.NewValidationError("body", "must not be empty")
	}

	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("message", id, err)
	}
	if !message.Mutable() {
		return nil, errors.NewInvalidStateError("message", id, string(message.Status), "an editable state")
	}

	message.Body = body
	if err := s.repo.Update(ctx, message); err != nil {
		return nil, mapStorageError("message", id, err)
	}
	return message, nil
}

// Approve marks a message sent and enqueues its delivery. The status
// transition is a compare-and-swap, so concurrent approvals enqueue once.
func (s *MessageService) Approve(ctx context.Context, id string) (*models.Message, error) {
	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("message", id, err)
	}
	if !message.Mutable() {
		return nil, errors.NewInvalidStateError("message", id, string(message.Status), "an approvable state")
	}

	listingURL := ""
	var platform types.Platform
	if message.ListingID != nil {
		listing, err := s.listings.GetByID(ctx, *message.ListingID)
		if err != nil {
			return nil, mapStorageError("listing", *message.ListingID, err)
		}
		listingURL = listing.URL
		platform = listing.Platform
	}

	transitioned, err := s.repo.UpdateStatus(ctx, id, message.Status, types.MessageStatusSent)
	if err != nil {
		return nil, errors.NewDatabaseError("approve message", err)
	}
	if !transitioned {
		return nil, errors.NewConflictError("message changed state, approval not applied")
	}

	payload, err := json.Marshal(sendMessagePayload{
		MessageID:  message.ID,
		Body:       message.Body,
		ListingURL: listingURL,
	})
	if err != nil {
		return nil, errors.NewInternalError("encode message payload", err)
	}

	if _, err := s.queue.Enqueue(ctx, EnqueueInput{
		Action:         types.ActionSendMessage,
		ListingID:      message.ListingID,
		MessageID:      &message.ID,
		TargetPlatform: platform,
		Payload:        string(payload),
	}); err != nil {
		return nil, err
	}

	message.Status = types.MessageStatusSent
	s.logger.WithField("messageId", id).Info("Message approved and enqueued")
	return message, nil
}

// Reject discards a draft. Only draft and pending_approval messages can
// be rejected.
func (s *MessageService) Reject(ctx context.Context, id string) (*models.Message, error) {
	message, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStorageError("message", id, err)
	}
	if !message.Mutable() {
		return nil, errors.NewInvalidStateError("message", id, string(message.Status), "a rejectable state")
	}

	transitioned, err := s.repo.UpdateStatus(ctx, id, message.Status, types.MessageStatusRejected)
	if err != nil {
		return nil, errors.NewDatabaseError("reject message", err)
	}
	if !transitioned {
		return nil, errors.NewConflictError("message changed state, rejection not applied")
	}

	message.Status = types.MessageStatusRejected
	return message, nil
}

// MarkDelivered records a delivery confirmation from the queue executor
func (s *MessageService) MarkDelivered(ctx context.Context, id string) error {
	transitioned, err := s.repo.UpdateStatus(ctx, id, types.MessageStatusSent, types.MessageStatusDelivered)
	if err != nil {
		return errors.NewDatabaseError("mark message delivered", err)
	}
	if !transitioned {
		return errors.NewConflictError("message is not in sent state")
	}
	return nil
}

// MarkFailed records a permanent delivery failure from the queue executor
func (s *MessageService) MarkFailed(ctx context.Context, id string) error {
	transitioned, err := s.repo.UpdateStatus(ctx, id, types.MessageStatusSent, types.MessageStatusFailed)
	if err != nil {
		return errors.NewDatabaseError("mark message failed", err)
	}
	if !transitioned {
		return errors.NewConflictError("message is not in sent state")
	}
	return nil
}

// ListByListing retrieves the message history for a listing
func (s *MessageService) ListByListing(ctx context.Context, listingID string) ([]*models.Message, error) {
	messages, err := s.repo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, errors.NewDatabaseError("list messages", err)
	}
	return messages, nil
}

// ListByStatus retrieves messages in a given workflow state
func (s *MessageService) ListByStatus(ctx context.Context, status types.MessageStatus, limit int) ([]*models.Message, error) {
	messages, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list messages", err)
	}
	return messages, nil
}
