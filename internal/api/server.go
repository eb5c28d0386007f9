// Package api provides the HTTP API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/service"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// Service interfaces for dependency injection and testing

// JobServiceInterface defines scrape-job operations
type JobServiceInterface interface {
	CreateJob(ctx context.Context, input service.StartJobInput) (*models.ScrapeJob, error)
	Execute(ctx context.Context, job *models.ScrapeJob) error
	GetJob(ctx context.Context, id string) (*models.ScrapeJob, error)
	ListJobs(ctx context.Context, limit int) ([]*models.ScrapeJob, error)
}

// ListingServiceInterface defines listing operations
type ListingServiceInterface interface {
	Get(ctx context.Context, id string) (*models.Listing, error)
	List(ctx context.Context, filter storage.ListingFilter) ([]*models.Listing, error)
	SetStatus(ctx context.Context, id string, status types.ListingStatus) error
	SetNotes(ctx context.Context, id string, notes string) error
	Stats(ctx context.Context) (map[types.ListingStatus]int, error)
}

// OpportunityServiceInterface defines opportunity operations
type OpportunityServiceInterface interface {
	CreateFromListing(ctx context.Context, listingID, ownerID, notes string) (*models.Opportunity, error)
	Get(ctx context.Context, id string) (*models.Opportunity, error)
	Update(ctx context.Context, id string, input service.UpdateOpportunityInput) (*models.Opportunity, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status types.OpportunityStatus, limit int) ([]*models.Opportunity, error)
	Summary(ctx context.Context) (*models.ProfitSummary, error)
}

// MessageServiceInterface defines the outbound-message workflow
type MessageServiceInterface interface {
	Draft(ctx context.Context, listingID, ownerID string) (*models.Message, error)
	Get(ctx context.Context, id string) (*models.Message, error)
	Edit(ctx context.Context, id, body string) (*models.Message, error)
	Approve(ctx context.Context, id string) (*models.Message, error)
	Reject(ctx context.Context, id string) (*models.Message, error)
	ListByListing(ctx context.Context, listingID string) ([]*models.Message, error)
	ListByStatus(ctx context.Context, status types.MessageStatus, limit int) ([]*models.Message, error)
}

// QueueServiceInterface defines posting-queue operations
type QueueServiceInterface interface {
	Get(ctx context.Context, id string) (*models.QueueItem, error)
	List(ctx context.Context, status types.QueueStatus, limit int) ([]*models.QueueItem, error)
	Retry(ctx context.Context, id string) (*models.QueueItem, error)
}

// CompsServiceInterface defines comparable-sales lookups
type CompsServiceInterface interface {
	GetMarketValue(ctx context.Context, productName string) *types.MarketValue
	RecordSold(ctx context.Context, comparables []models.Comparable) error
}

// SearchStoreInterface defines saved-search persistence
type SearchStoreInterface interface {
	Create(ctx context.Context, search *models.SavedSearch) error
	GetByID(ctx context.Context, id string) (*models.SavedSearch, error)
	ListEnabled(ctx context.Context) ([]*models.SavedSearch, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

// Server is the HTTP API server
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	jobs          JobServiceInterface
	listings      ListingServiceInterface
	opportunities OpportunityServiceInterface
	messages      MessageServiceInterface
	queue         QueueServiceInterface
	comps         CompsServiceInterface
	searches      SearchStoreInterface
	logger        *logging.Logger
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates the API server and wires its routes
func NewServer(
	cfg ServerConfig,
	jobs JobServiceInterface,
	listings ListingServiceInterface,
	opportunities OpportunityServiceInterface,
	messages MessageServiceInterface,
	queue QueueServiceInterface,
	comps CompsServiceInterface,
	searches SearchStoreInterface,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		jobs:          jobs,
		listings:      listings,
		opportunities: opportunities,
		messages:      messages,
		queue:         queue,
		comps:         comps,
		searches:      searches,
		logger:        logger.WithField("component", "api"),
	}

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.setupRoutes()

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// setupRoutes configures all API routes. Literal paths register before
// parameterized ones so "stats" and "summary" never match as IDs.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Scrape jobs
	api.HandleFunc("/jobs", s.handleCreateJob).Methods("POST")
	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")

	// Listings
	api.HandleFunc("/listings/stats", s.handleListingStats).Methods("GET")
	api.HandleFunc("/listings", s.handleListListings).Methods("GET")
	api.HandleFunc("/listings/{id}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{id}/status", s.handleSetListingStatus).Methods("PATCH")
	api.HandleFunc("/listings/{id}/notes", s.handleSetListingNotes).Methods("PATCH")

	// Opportunities
	api.HandleFunc("/opportunities/summary", s.handleOpportunitySummary).Methods("GET")
	api.HandleFunc("/opportunities", s.handleCreateOpportunity).Methods("POST")
	api.HandleFunc("/opportunities", s.handleListOpportunities).Methods("GET")
	api.HandleFunc("/opportunities/{id}", s.handleGetOpportunity).Methods("GET")
	api.HandleFunc("/opportunities/{id}", s.handleUpdateOpportunity).Methods("PUT")
	api.HandleFunc("/opportunities/{id}", s.handleDeleteOpportunity).Methods("DELETE")

	// Messages
	api.HandleFunc("/messages", s.handleDraftMessage).Methods("POST")
	api.HandleFunc("/messages", s.handleListMessages).Methods("GET")
	api.HandleFunc("/messages/{id}", s.handleGetMessage).Methods("GET")
	api.HandleFunc("/messages/{id}", s.handleEditMessage).Methods("PUT")
	api.HandleFunc("/messages/{id}/approve", s.handleApproveMessage).Methods("POST")
	api.HandleFunc("/messages/{id}/reject", s.handleRejectMessage).Methods("POST")

	// Posting queue
	api.HandleFunc("/queue", s.handleListQueue).Methods("GET")
	api.HandleFunc("/queue/{id}", s.handleGetQueueItem).Methods("GET")
	api.HandleFunc("/queue/{id}/retry", s.handleRetryQueueItem).Methods("POST")

	// Comparable sales
	api.HandleFunc("/comps", s.handleGetComps).Methods("GET")
	api.HandleFunc("/comps", s.handleRecordComps).Methods("POST")

	// Saved searches
	api.HandleFunc("/searches", s.handleCreateSearch).Methods("POST")
	api.HandleFunc("/searches", s.handleListSearches).Methods("GET")
	api.HandleFunc("/searches/{id}/enabled", s.handleSetSearchEnabled).Methods("PATCH")
	api.HandleFunc("/searches/{id}", s.handleDeleteSearch).Methods("DELETE")
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "flipscan",
	})
}

// Router exposes the handler tree for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
