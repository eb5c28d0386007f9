package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
	"github.com/jackc/pgx/v5"
)

// JobRepository handles scrape-job persistence
type JobRepository struct {
	db *PostgresDB
}

// NewJobRepository creates a new scrape-job repository
func NewJobRepository(db *PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, platform, owner_id, location, category, keywords, min_price, max_price,
	status, listings_found, opportunities_found, items_skipped, error_message,
	started_at, completed_at`

// Create creates a new scrape-job record
func (r *JobRepository) Create(ctx context.Context, job *models.ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (
			id, platform, owner_id, location, category, keywords, min_price, max_price,
			status, listings_found, opportunities_found, items_skipped, error_message,
			started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		job.ID,
		job.Platform,
		job.OwnerID,
		job.Location,
		job.Category,
		job.Keywords,
		job.MinPrice,
		job.MaxPrice,
		job.Status,
		job.ListingsFound,
		job.OpportunitiesFound,
		job.ItemsSkipped,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scrape job: %w", err)
	}

	return nil
}

// GetByID retrieves a scrape job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.ScrapeJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("scrape job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scrape job: %w", err)
	}

	return job, nil
}

// Update updates a scrape job's mutable fields
func (r *JobRepository) Update(ctx context.Context, job *models.ScrapeJob) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, listings_found = $3, opportunities_found = $4,
			items_skipped = $5, error_message = $6, completed_at = $7
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		job.ID,
		job.Status,
		job.ListingsFound,
		job.OpportunitiesFound,
		job.ItemsSkipped,
		job.ErrorMessage,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scrape job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("scrape job not found: %s", job.ID)
	}

	return nil
}

// MarkRunning transitions a pending job to running. The WHERE clause makes
// the transition a compare-and-set so a job cannot start twice.
func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, id, types.JobStatusRunning, types.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark scrape job running: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("scrape job %s is not pending", id)
	}

	return nil
}

// ListRecent retrieves the most recent scrape jobs
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*models.ScrapeJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM scrape_jobs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListByStatus retrieves scrape jobs in a given status, oldest first
func (r *JobRepository) ListByStatus(ctx context.Context, status types.JobStatus, limit int) ([]*models.ScrapeJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE status = $1 ORDER BY started_at ASC LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ScrapeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	var errorMessage *string
	var completedAt *time.Time

	err := row.Scan(
		&job.ID,
		&job.Platform,
		&job.OwnerID,
		&job.Location,
		&job.Category,
		&job.Keywords,
		&job.MinPrice,
		&job.MaxPrice,
		&job.Status,
		&job.ListingsFound,
		&job.OpportunitiesFound,
		&job.ItemsSkipped,
		&errorMessage,
		&job.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ErrorMessage = errorMessage
	job.CompletedAt = completedAt
	return &job, nil
}
