// user_repository.go implements UserRepository, providing account lookups for
// authentication context and the HandleOf resolution used by action log
// enrichment.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/modplane/modplane/internal/db/models"
)

// UserRepository handles user database operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, handle, email, role, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Handle, user.Email, user.Role, user.CreatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID, or (nil, nil) when it does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT id, handle, email, role, created_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// HandleOf resolves a user's display handle, or found=false when the user
// does not exist.
func (r *UserRepository) HandleOf(ctx context.Context, userID string) (string, bool, error) {
	var handle string
	err := r.db.GetContext(ctx, &handle, `SELECT handle FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select user handle: %w", err)
	}
	return handle, true, nil
}
