package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrThreadNotFound = errors.New("thread not found")
	ErrNotCancellable = errors.New("post is not pending and cannot be cancelled")
)

// StatusService is the read surface the dashboard polls, plus the cancel
// management operations. Cancelling only applies to pending records; a
// record already publishing runs to completion.
type StatusService interface {
	List(ctx context.Context, status string) ([]*models.Post, error)
	PostInfo(ctx context.Context, id string) (*models.Post, error)
	ThreadInfo(ctx context.Context, threadID string) ([]*models.Post, error)
	Counts(ctx context.Context) (map[string]int64, error)
	CancelPost(ctx context.Context, id string) error
	CancelThread(ctx context.Context, threadID string) (int, error)
}

type statusService struct {
	store repository.ScheduleStore
}

func NewStatusService(store repository.ScheduleStore) StatusService {
	return &statusService{store: store}
}

func (s *statusService) List(ctx context.Context, status string) ([]*models.Post, error) {
	return s.store.ListAll(ctx, status)
}

func (s *statusService) PostInfo(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *statusService) ThreadInfo(ctx context.Context, threadID string) ([]*models.Post, error) {
	posts, err := s.store.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrThreadNotFound
	}
	return posts, nil
}

func (s *statusService) Counts(ctx context.Context) (map[string]int64, error) {
	return s.store.CountByStatus(ctx)
}

func (s *statusService) CancelPost(ctx context.Context, id string) error {
	post, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}

	cancelled, err := s.store.MarkSkipped(ctx, id, "cancelled")
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrNotCancellable
	}

	slog.Info("post cancelled", "post_id", id)
	return nil
}

// CancelThread cancels every still-pending member of a thread and reports
// how many were cancelled. Members already posted or in flight are left
// alone.
func (s *statusService) CancelThread(ctx context.Context, threadID string) (int, error) {
	members, err := s.store.ListByThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, ErrThreadNotFound
	}

	cancelled := 0
	for _, m := range members {
		ok, err := s.store.MarkSkipped(ctx, m.ID, "cancelled")
		if err != nil {
			return cancelled, err
		}
		if ok {
			cancelled++
		}
	}

	slog.Info("thread cancelled", "thread_id", threadID, "posts_cancelled", cancelled)
	return cancelled, nil
}
