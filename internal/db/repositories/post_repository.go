// post_repository.go implements PostRepository, the postgres-backed
// PostDirectory collaborator the lifecycle engine uses for existence and
// authorship lookups.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/modplane/modplane/internal/db/models"
)

// PostRepository handles post database operations.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `INSERT INTO posts (id, author_id, body, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, post.ID, post.AuthorID, post.Body, post.CreatedAt); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Exists reports whether the post exists.
func (r *PostRepository) Exists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, postID); err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

// AuthorOf returns the author of a post, or found=false when the post does
// not exist.
func (r *PostRepository) AuthorOf(ctx context.Context, postID string) (string, bool, error) {
	var authorID string
	err := r.db.GetContext(ctx, &authorID, `SELECT author_id FROM posts WHERE id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select post author: %w", err)
	}
	return authorID, true, nil
}

// GetByID retrieves a post by ID, or (nil, nil) when it does not exist.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	query := `SELECT id, author_id, body, created_at FROM posts WHERE id = $1`
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select post: %w", err)
	}
	return &post, nil
}
