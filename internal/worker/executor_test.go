package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		DefaultMaxRetries: 3,
		PollInterval:      time.Second,
		ClaimBatchSize:    5,
		RetryBaseDelay:    30 * time.Second,
	}
}

// memQueue is an in-memory QueueStore
type memQueue struct {
	mu    sync.Mutex
	items map[string]*models.QueueItem
}

func newMemQueue(items ...*models.QueueItem) *memQueue {
	q := &memQueue{items: map[string]*models.QueueItem{}}
	for _, item := range items {
		q.items[item.ID] = item
	}
	return q
}

func (q *memQueue) ClaimPending(ctx context.Context, limit int) ([]*models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var claimed []*models.QueueItem
	for _, item := range q.items {
		if len(claimed) >= limit {
			break
		}
		if item.Status == types.QueueStatusPending {
			item.Status = types.QueueStatusRunning
			copied := *item
			claimed = append(claimed, &copied)
		}
	}
	return claimed, nil
}

func (q *memQueue) MarkDone(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}
	item.Status = types.QueueStatusDone
	return nil
}

func (q *memQueue) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}
	item.Status = types.QueueStatusFailed
	item.ErrorMessage = &errorMessage
	return nil
}

func (q *memQueue) ExhaustRetries(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}
	item.RetryCount = item.MaxRetries
	return nil
}

func (q *memQueue) status(id string) types.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items[id].Status
}

// scriptedRunner fails the item IDs listed in failOn with a transient
// marketplace error; permFailOn IDs fail with a non-retryable one.
type scriptedRunner struct {
	failOn     map[string]bool
	permFailOn map[string]bool
	ran        []string
}

func (r *scriptedRunner) Run(ctx context.Context, item *models.QueueItem) error {
	r.ran = append(r.ran, item.ID)
	if r.permFailOn[item.ID] {
		return errors.NewValidationError("payload", "malformed payload")
	}
	if r.failOn[item.ID] {
		return errors.NewAdapterError(item.TargetPlatform, fmt.Errorf("marketplace rejected the action"))
	}
	return nil
}

// markerSpy records delivery outcome calls
type markerSpy struct {
	delivered []string
	failed    []string
}

func (m *markerSpy) MarkDelivered(ctx context.Context, id string) error {
	m.delivered = append(m.delivered, id)
	return nil
}

func (m *markerSpy) MarkFailed(ctx context.Context, id string) error {
	m.failed = append(m.failed, id)
	return nil
}

func pendingItem(id string, retryCount int) *models.QueueItem {
	return &models.QueueItem{
		ID:             id,
		Action:         types.ActionSendMessage,
		TargetPlatform: types.PlatformFacebook,
		Status:         types.QueueStatusPending,
		RetryCount:     retryCount,
		MaxRetries:     3,
		Payload:        `{"messageId":"msg-1","body":"hi","listingUrl":"https://example.org/item"}`,
	}
}

func TestTickExecutesClaimedItems(t *testing.T) {
	queue := newMemQueue(pendingItem("a", 0), pendingItem("b", 0))
	runner := &scriptedRunner{}
	executor := NewExecutor(queue, nil, nil, runner, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	if len(runner.ran) != 2 {
		t.Fatalf("ran %d items, want 2", len(runner.ran))
	}
	if queue.status("a") != types.QueueStatusDone || queue.status("b") != types.QueueStatusDone {
		t.Errorf("statuses = %q/%q, want done/done", queue.status("a"), queue.status("b"))
	}
}

func TestTickMarksFailuresAndKeepsGoing(t *testing.T) {
	queue := newMemQueue(pendingItem("ok", 0), pendingItem("bad", 0))
	runner := &scriptedRunner{failOn: map[string]bool{"bad": true}}
	executor := NewExecutor(queue, nil, nil, runner, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	if queue.status("ok") != types.QueueStatusDone {
		t.Errorf("ok status = %q, want done", queue.status("ok"))
	}
	if queue.status("bad") != types.QueueStatusFailed {
		t.Errorf("bad status = %q, want failed", queue.status("bad"))
	}

	queue.mu.Lock()
	bad := queue.items["bad"]
	queue.mu.Unlock()
	if bad.ErrorMessage == nil || *bad.ErrorMessage == "" {
		t.Error("expected a recorded error message")
	}
	if bad.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0: failures do not consume retries", bad.RetryCount)
	}
}

func TestTickReportsDeliveryOutcomes(t *testing.T) {
	delivered := pendingItem("sent", 0)
	messageID := "msg-sent"
	delivered.MessageID = &messageID

	exhausted := pendingItem("dead", 3) // all retries already consumed
	deadMessageID := "msg-dead"
	exhausted.MessageID = &deadMessageID

	queue := newMemQueue(delivered, exhausted)
	runner := &scriptedRunner{failOn: map[string]bool{"dead": true}}
	marker := &markerSpy{}
	executor := NewExecutor(queue, nil, marker, runner, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	if len(marker.delivered) != 1 || marker.delivered[0] != "msg-sent" {
		t.Errorf("delivered = %v, want [msg-sent]", marker.delivered)
	}
	if len(marker.failed) != 1 || marker.failed[0] != "msg-dead" {
		t.Errorf("failed = %v, want [msg-dead]", marker.failed)
	}
}

func TestTickPermanentFailureBurnsRetries(t *testing.T) {
	item := pendingItem("stuck", 0)
	messageID := "msg-stuck"
	item.MessageID = &messageID

	queue := newMemQueue(item)
	runner := &scriptedRunner{permFailOn: map[string]bool{"stuck": true}}
	marker := &markerSpy{}
	executor := NewExecutor(queue, nil, marker, runner, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	if queue.status("stuck") != types.QueueStatusFailed {
		t.Errorf("status = %q, want failed", queue.status("stuck"))
	}
	queue.mu.Lock()
	stuck := queue.items["stuck"]
	queue.mu.Unlock()
	if stuck.RetryCount != stuck.MaxRetries {
		t.Errorf("RetryCount = %d, want %d: retrying a bad payload cannot succeed", stuck.RetryCount, stuck.MaxRetries)
	}
	if len(marker.failed) != 1 || marker.failed[0] != "msg-stuck" {
		t.Errorf("failed = %v, want [msg-stuck]", marker.failed)
	}
}

func TestTickTransientFailureKeepsMessagePending(t *testing.T) {
	item := pendingItem("flaky", 0)
	messageID := "msg-flaky"
	item.MessageID = &messageID

	queue := newMemQueue(item)
	runner := &scriptedRunner{failOn: map[string]bool{"flaky": true}}
	marker := &markerSpy{}
	executor := NewExecutor(queue, nil, marker, runner, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	queue.mu.Lock()
	flaky := queue.items["flaky"]
	queue.mu.Unlock()
	if flaky.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0: transient failures keep their retry budget", flaky.RetryCount)
	}
	if len(marker.failed) != 0 {
		t.Errorf("failed = %v, want none while retries remain", marker.failed)
	}
}

// requeuerSpy records requeue sweeps
type requeuerSpy struct {
	calls int
	delay time.Duration
}

func (r *requeuerSpy) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	r.calls++
	r.delay = olderThan
	return 0, nil
}

func TestTickSweepsRetryableItems(t *testing.T) {
	queue := newMemQueue()
	requeuer := &requeuerSpy{}
	executor := NewExecutor(queue, requeuer, nil, &scriptedRunner{}, testQueueConfig(), nil, testLogger())

	executor.Tick(context.Background())

	if requeuer.calls != 1 {
		t.Fatalf("requeue sweeps = %d, want 1", requeuer.calls)
	}
	if requeuer.delay != 30*time.Second {
		t.Errorf("backoff base = %v, want 30s", requeuer.delay)
	}
}

// actSpy records agent actions
type actSpy struct {
	url    string
	action string
	err    error
}

func (a *actSpy) Extract(ctx context.Context, pageURL, instruction string, out interface{}) error {
	return json.Unmarshal([]byte("{}"), out)
}

func (a *actSpy) Act(ctx context.Context, pageURL, action string) error {
	a.url = pageURL
	a.action = action
	return a.err
}

func TestAgentRunnerSendMessage(t *testing.T) {
	agent := &actSpy{}
	runner := NewAgentRunner(agent, testLogger())

	err := runner.Run(context.Background(), pendingItem("a", 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if agent.url != "https://example.org/item" {
		t.Errorf("url = %q", agent.url)
	}
	if !strings.Contains(agent.action, "hi") {
		t.Errorf("action %q should contain the message body", agent.action)
	}
}

func TestAgentRunnerCrossPost(t *testing.T) {
	agent := &actSpy{}
	runner := NewAgentRunner(agent, testLogger())

	item := &models.QueueItem{
		ID:             "cp",
		Action:         types.ActionCrossPost,
		TargetPlatform: types.PlatformFacebook,
		Payload:        `{"title":"KitchenAid mixer","price":150,"description":"runs great"}`,
	}
	if err := runner.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(agent.url, "facebook.com/marketplace/create") {
		t.Errorf("url = %q, want the Facebook posting page", agent.url)
	}
	if !strings.Contains(agent.action, "KitchenAid mixer") || !strings.Contains(agent.action, "$150.00") {
		t.Errorf("action %q should carry title and price", agent.action)
	}
}

func TestAgentRunnerClassifiesFailures(t *testing.T) {
	runner := NewAgentRunner(&actSpy{err: fmt.Errorf("agent returned 502")}, testLogger())
	err := runner.Run(context.Background(), pendingItem("a", 0))
	if err == nil {
		t.Fatal("expected an agent failure")
	}
	if !errors.IsRetryable(err) {
		t.Error("agent transport failures must be retryable")
	}

	runner = NewAgentRunner(&actSpy{}, testLogger())
	item := pendingItem("bad", 0)
	item.Payload = "not json"
	err = runner.Run(context.Background(), item)
	if err == nil {
		t.Fatal("expected a payload decode error")
	}
	if errors.IsRetryable(err) {
		t.Error("a payload that never parses must not be retried")
	}
}

func TestAgentRunnerRejectsBadPayload(t *testing.T) {
	runner := NewAgentRunner(&actSpy{}, testLogger())

	item := pendingItem("bad", 0)
	item.Payload = "not json"
	if err := runner.Run(context.Background(), item); err == nil {
		t.Error("expected a payload decode error")
	}

	item = pendingItem("empty", 0)
	item.Payload = `{"messageId":"m","body":"hi"}`
	if err := runner.Run(context.Background(), item); err == nil {
		t.Error("expected an error for a missing listing URL")
	}
}
