package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/service"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// stubJobs is a canned JobServiceInterface
type stubJobs struct {
	job      *models.ScrapeJob
	jobs     []*models.ScrapeJob
	err      error
	executed int
}

func (s *stubJobs) CreateJob(ctx context.Context, input service.StartJobInput) (*models.ScrapeJob, error) {
	return s.job, s.err
}

func (s *stubJobs) Execute(ctx context.Context, job *models.ScrapeJob) error {
	s.executed++
	return nil
}

func (s *stubJobs) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	if s.job == nil || s.job.ID != id {
		return nil, errors.NewNotFoundError("scrape job", id)
	}
	return s.job, nil
}

func (s *stubJobs) ListJobs(ctx context.Context, limit int) ([]*models.ScrapeJob, error) {
	return s.jobs, nil
}

// stubListings is a canned ListingServiceInterface
type stubListings struct {
	listing *models.Listing
}

func (s *stubListings) Get(ctx context.Context, id string) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, errors.NewNotFoundError("listing", id)
	}
	return s.listing, nil
}

func (s *stubListings) List(ctx context.Context, filter storage.ListingFilter) ([]*models.Listing, error) {
	if s.listing == nil {
		return nil, nil
	}
	if filter.Status != "" && s.listing.Status != filter.Status {
		return nil, nil
	}
	return []*models.Listing{s.listing}, nil
}

func (s *stubListings) SetStatus(ctx context.Context, id string, status types.ListingStatus) error {
	if s.listing == nil || s.listing.ID != id {
		return errors.NewNotFoundError("listing", id)
	}
	s.listing.Status = status
	return nil
}

func (s *stubListings) SetNotes(ctx context.Context, id string, notes string) error {
	return nil
}

func (s *stubListings) Stats(ctx context.Context) (map[types.ListingStatus]int, error) {
	return map[types.ListingStatus]int{types.ListingStatusNew: 4, types.ListingStatusOpportunity: 1}, nil
}

// stubQueue is a canned QueueServiceInterface
type stubQueue struct {
	item *models.QueueItem
	err  error
}

func (s *stubQueue) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	if s.item == nil {
		return nil, errors.NewNotFoundError("queue item", id)
	}
	return s.item, nil
}

func (s *stubQueue) List(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error) {
	if s.item == nil {
		return nil, nil
	}
	return []*models.QueueItem{s.item}, nil
}

func (s *stubQueue) Retry(ctx context.Context, id string) (*models.QueueItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.item, nil
}

func newTestServer(jobs JobServiceInterface, listings ListingServiceInterface, queue QueueServiceInterface) *Server {
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	return NewServer(ServerConfig{Host: "127.0.0.1", Port: "0"}, jobs, listings, nil, nil, queue, nil, nil, logger)
}

func doRequest(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&stubJobs{}, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "GET", "/health", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestCreateJobReturnsAccepted(t *testing.T) {
	jobs := &stubJobs{job: &models.ScrapeJob{ID: "job-1", Platform: types.PlatformCraigslist, Status: types.JobStatusPending}}
	server := newTestServer(jobs, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "POST", "/api/jobs",
		`{"platform":"craigslist","query":{"location":"seattle","category":"electronics"}}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", resp.Code, resp.Body.String())
	}

	var job models.ScrapeJob
	if err := json.Unmarshal(resp.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != "job-1" {
		t.Errorf("job ID = %q", job.ID)
	}
}

func TestCreateJobValidationEnvelope(t *testing.T) {
	jobs := &stubJobs{err: errors.NewValidationError("platform", "must not be empty")}
	server := newTestServer(jobs, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "POST", "/api/jobs", `{"platform":"","query":{}}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != errors.CodeInvalidInput {
		t.Errorf("error code = %q, want INVALID_INPUT", envelope.Error.Code)
	}
}

func TestCreateJobRejectsUnknownFields(t *testing.T) {
	server := newTestServer(&stubJobs{job: &models.ScrapeJob{ID: "x"}}, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "POST", "/api/jobs", `{"platfrom":"craigslist"}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a misspelled field", resp.Code)
	}
}

func TestGetListingNotFound(t *testing.T) {
	server := newTestServer(&stubJobs{}, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "GET", "/api/listings/nope", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != errors.CodeNotFound {
		t.Errorf("error code = %q, want NOT_FOUND", envelope.Error.Code)
	}
}

func TestListingStatsRouteBeatsIDRoute(t *testing.T) {
	server := newTestServer(&stubJobs{}, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "GET", "/api/listings/stats", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}

	var counts map[types.ListingStatus]int
	if err := json.Unmarshal(resp.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts[types.ListingStatusNew] != 4 {
		t.Errorf("new count = %d, want 4", counts[types.ListingStatusNew])
	}
}

func TestSetListingStatus(t *testing.T) {
	listings := &stubListings{listing: &models.Listing{ID: "l-1", Status: types.ListingStatusNew}}
	server := newTestServer(&stubJobs{}, listings, &stubQueue{})

	resp := doRequest(server, "PATCH", "/api/listings/l-1/status", `{"status":"purchased"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}
	if listings.listing.Status != types.ListingStatusPurchased {
		t.Errorf("listing status = %q, want purchased", listings.listing.Status)
	}
}

func TestRetryQueueItemConflictMapsTo409(t *testing.T) {
	queue := &stubQueue{err: errors.NewRetriesExhaustedError("q-1", 3, 3)}
	server := newTestServer(&stubJobs{}, &stubListings{}, queue)

	resp := doRequest(server, "POST", "/api/queue/q-1/retry", "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.Code)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != errors.CodeRetriesExhausted {
		t.Errorf("error code = %q, want RETRIES_EXHAUSTED", envelope.Error.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(&stubJobs{}, &stubListings{}, &stubQueue{})

	resp := doRequest(server, "OPTIONS", "/api/listings", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
