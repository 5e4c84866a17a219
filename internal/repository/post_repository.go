package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

// ScheduleStore is the single source of truth for post records. All status
// transitions go through its conditional update operations so a record is
// never claimed or finished twice.
type ScheduleStore interface {
	InsertBatch(ctx context.Context, posts []*models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListDue(ctx context.Context, asOf time.Time) ([]*models.Post, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkPosted(ctx context.Context, id, externalID string) error
	MarkFailed(ctx context.Context, id string, attempt int, detail string) error
	MarkSkipped(ctx context.Context, id, detail string) (bool, error)
	RequeueForRetry(ctx context.Context, id string, attempt int, nextAttempt time.Time, detail string) error
	GetThreadPost(ctx context.Context, threadID string, position int) (*models.Post, error)
	ListByThread(ctx context.Context, threadID string) ([]*models.Post, error)
	ListAll(ctx context.Context, status string) ([]*models.Post, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) ScheduleStore {
	return &postgresStore{db: db}
}

const postColumns = `id, content, scheduled_at, timezone, thread_id, thread_position, thread_title,
	media_urls, status, external_post_id, error_detail, attempt_count, next_attempt_at, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID,
		&p.Content,
		&p.ScheduledAt,
		&p.Timezone,
		&p.ThreadID,
		&p.ThreadPosition,
		&p.ThreadTitle,
		pq.Array(&p.MediaURLs),
		&p.Status,
		&p.ExternalPostID,
		&p.ErrorDetail,
		&p.AttemptCount,
		&p.NextAttemptAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresStore) InsertBatch(ctx context.Context, posts []*models.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (id, content, scheduled_at, timezone, thread_id, thread_position,
			thread_title, media_urls, status, attempt_count, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, p := range posts {
		_, err = tx.ExecContext(ctx, query,
			p.ID, p.Content, p.ScheduledAt, p.Timezone, p.ThreadID, p.ThreadPosition,
			p.ThreadTitle, pq.Array(p.MediaURLs), p.Status, p.AttemptCount, p.NextAttemptAt)
		if err != nil {
			slog.Error(err.Error())
			return err
		}
	}

	return tx.Commit()
}

func (r *postgresStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postgresStore) ListDue(ctx context.Context, asOf time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_at <= $2 AND next_attempt_at <= $2
		ORDER BY scheduled_at, thread_position
	`
	return r.queryPosts(ctx, query, models.PostStatusPending, asOf)
}

func (r *postgresStore) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, time.Now(), id, models.PostStatusPending)
	if err != nil {
		slog.Error(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postgresStore) MarkPosted(ctx context.Context, id, externalID string) error {
	query := `
		UPDATE posts
		SET status = $1, external_post_id = $2, error_detail = '', updated_at = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPosted, externalID, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

func (r *postgresStore) MarkFailed(ctx context.Context, id string, attempt int, detail string) error {
	query := `
		UPDATE posts
		SET status = $1, attempt_count = $2, error_detail = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, attempt, detail, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

func (r *postgresStore) MarkSkipped(ctx context.Context, id, detail string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, error_detail = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusSkipped, detail, time.Now(), id, models.PostStatusPending)
	if err != nil {
		slog.Error(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postgresStore) RequeueForRetry(ctx context.Context, id string, attempt int, nextAttempt time.Time, detail string) error {
	query := `
		UPDATE posts
		SET status = $1, attempt_count = $2, next_attempt_at = $3, error_detail = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPending, attempt, nextAttempt, detail, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

func (r *postgresStore) GetThreadPost(ctx context.Context, threadID string, position int) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE thread_id = $1 AND thread_position = $2`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, threadID, position))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postgresStore) ListByThread(ctx context.Context, threadID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE thread_id = $1 ORDER BY thread_position`
	return r.queryPosts(ctx, query, threadID)
}

func (r *postgresStore) ListAll(ctx context.Context, status string) ([]*models.Post, error) {
	if status != "" {
		query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 ORDER BY scheduled_at, thread_id, thread_position`
		return r.queryPosts(ctx, query, status)
	}
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY scheduled_at, thread_id, thread_position`
	return r.queryPosts(ctx, query)
}

func (r *postgresStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM posts GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *postgresStore) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
