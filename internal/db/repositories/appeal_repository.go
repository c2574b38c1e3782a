// appeal_repository.go implements AppealRepository, the postgres-backed
// AppealStore used by the lifecycle engine, including the active-appeal
// exclusivity check.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/modplane/modplane/internal/db/models"
)

// AppealRepository handles appeal database operations.
type AppealRepository struct {
	db *sqlx.DB
}

// NewAppealRepository creates a new AppealRepository.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

// Create inserts a new appeal.
func (r *AppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	query := `
		INSERT INTO appeals (id, report_id, appellant_id, reason, status,
			appealed_audit_record_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		appeal.ID,
		appeal.ReportID,
		appeal.AppellantID,
		appeal.Reason,
		appeal.Status,
		appeal.AppealedAuditRecordID,
		appeal.CreatedAt,
		appeal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

// GetByID retrieves an appeal by ID, or (nil, nil) when it does not exist.
func (r *AppealRepository) GetByID(ctx context.Context, id string) (*models.Appeal, error) {
	var appeal models.Appeal
	query := `
		SELECT id, report_id, appellant_id, reason, status, appealed_audit_record_id,
			created_at, updated_at, decided_at, decided_by_id, decision_rationale
		FROM appeals
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &appeal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select appeal: %w", err)
	}
	return &appeal, nil
}

// ActiveExists reports whether an open or under_review appeal exists for the
// (report, appellant) pair. The engine calls this under its mutex; the
// partial unique index in the schema is the backstop.
func (r *AppealRepository) ActiveExists(ctx context.Context, reportID, appellantID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appeals
			WHERE report_id = $1 AND appellant_id = $2
			  AND status IN ('open', 'under_review')
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, reportID, appellantID); err != nil {
		return false, fmt.Errorf("check active appeals: %w", err)
	}
	return exists, nil
}

// Update persists the mutable appeal fields (status, decision stamps,
// updated_at). Immutable fields are deliberately not in the statement.
func (r *AppealRepository) Update(ctx context.Context, appeal *models.Appeal) error {
	query := `
		UPDATE appeals
		SET status = $1, updated_at = $2, decided_at = $3, decided_by_id = $4,
			decision_rationale = $5
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		appeal.Status,
		appeal.UpdatedAt,
		appeal.DecidedAt,
		appeal.DecidedByID,
		appeal.DecisionRationale,
		appeal.ID,
	)
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update appeal: appeal %s not found", appeal.ID)
	}
	return nil
}

// AppealStatus resolves the current status for action log enrichment.
func (r *AppealRepository) AppealStatus(ctx context.Context, id string) (string, bool, error) {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM appeals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select appeal status: %w", err)
	}
	return status, true, nil
}

// ListByReport returns all appeals against a report, newest first.
func (r *AppealRepository) ListByReport(ctx context.Context, reportID string) ([]*models.Appeal, error) {
	var appeals []*models.Appeal
	query := `
		SELECT id, report_id, appellant_id, reason, status, appealed_audit_record_id,
			created_at, updated_at, decided_at, decided_by_id, decision_rationale
		FROM appeals
		WHERE report_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &appeals, query, reportID); err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	return appeals, nil
}
