// Package models - post.go defines the Post model for human-authored content
// that moderation reports are filed against.
package models

import "time"

// Post represents a human-authored post. The moderation core only needs
// existence and authorship; body and rendering belong to the web application.
type Post struct {
	ID        string    `json:"id" db:"id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
