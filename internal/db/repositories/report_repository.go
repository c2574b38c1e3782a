// report_repository.go implements ReportRepository, the postgres-backed
// ReportStore used by the lifecycle engine and the read side of the action
// log. A missing report is (nil, nil), never an error: the engine owns the
// not-found semantics.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/modplane/modplane/internal/db/models"
)

// ReportRepository handles report database operations.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, post_id, reporter_id, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.PostID,
		report.ReporterID,
		report.Reason,
		report.Status,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID, or (nil, nil) when it does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	query := `
		SELECT id, post_id, reporter_id, reason, status, created_at, updated_at
		FROM reports
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select report: %w", err)
	}
	return &report, nil
}

// UpdateStatus sets the report status. Only the lifecycle engine calls this.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update report status: report %s not found", id)
	}
	return nil
}

// ReportStatus resolves the current status for action log enrichment.
func (r *ReportRepository) ReportStatus(ctx context.Context, id string) (string, bool, error) {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select report status: %w", err)
	}
	return status, true, nil
}

// ListByPost returns all reports filed against a post, newest first.
func (r *ReportRepository) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Report, error) {
	var reports []*models.Report
	query := `
		SELECT id, post_id, reporter_id, reason, status, created_at, updated_at
		FROM reports
		WHERE post_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &reports, query, postID, limit, offset); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}
