package models

import "time"

type Post struct {
	ID             string    `db:"id" json:"id"`
	Content        string    `db:"content" json:"content"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduled_at"`
	Timezone       string    `db:"timezone" json:"timezone"`
	ThreadID       string    `db:"thread_id" json:"thread_id,omitempty"`
	ThreadPosition int       `db:"thread_position" json:"thread_position,omitempty"`
	ThreadTitle    string    `db:"thread_title" json:"thread_title,omitempty"`
	MediaURLs      []string  `db:"media_urls" json:"media_urls,omitempty"`
	Status         string    `db:"status" json:"status"` // pending, publishing, posted, failed, skipped
	ExternalPostID string    `db:"external_post_id" json:"external_post_id,omitempty"`
	ErrorDetail    string    `db:"error_detail" json:"error_detail,omitempty"`
	AttemptCount   int       `db:"attempt_count" json:"attempt_count"`
	NextAttemptAt  time.Time `db:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Standalone reports whether the post belongs to no thread.
func (p *Post) Standalone() bool {
	return p.ThreadID == ""
}

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusPending    = "pending"
	PostStatusPublishing = "publishing"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
	PostStatusSkipped    = "skipped"
)
