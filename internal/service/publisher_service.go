package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

// Publish failure kinds. Rate limits and network errors are retried with
// backoff up to the configured ceiling; rejections are terminal.
const (
	PublishFailureTransient   = "transient"
	PublishFailureRateLimited = "rate_limited"
	PublishFailureRejected    = "rejected"
)

type PublishError struct {
	Kind    string
	Message string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed (%s): %s", e.Kind, e.Message)
}

func (e *PublishError) Terminal() bool {
	return e.Kind == PublishFailureRejected
}

// Poster is the outbound posting API. inReplyTo carries the external id of
// the thread predecessor and is empty for standalone posts and thread heads.
type Poster interface {
	CreatePost(ctx context.Context, content string, mediaURLs []string, inReplyTo string) (string, error)
}

type PublisherService interface {
	Publish(ctx context.Context, postID string) error
}

type publisherService struct {
	store       repository.ScheduleStore
	poster      Poster
	maxAttempts int
	backoff     time.Duration
}

func NewPublisherService(cfg config.Config, store repository.ScheduleStore, poster Poster) PublisherService {
	return &publisherService{
		store:       store,
		poster:      poster,
		maxAttempts: cfg.MaxPublishAttempts,
		backoff:     cfg.RetryBackoff,
	}
}

// Publish executes one publish attempt for a claimed record and writes the
// outcome back to the store. The record must already be in publishing state;
// anything else means the dispatch is stale and is dropped.
func (s *publisherService) Publish(ctx context.Context, postID string) error {
	post, err := s.store.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %s not found", postID)
	}
	if post.Status != models.PostStatusPublishing {
		slog.Info("dropping stale publish dispatch", "post_id", postID, "status", post.Status)
		return nil
	}

	replyTo := ""
	if !post.Standalone() && post.ThreadPosition > 1 {
		pred, err := s.store.GetThreadPost(ctx, post.ThreadID, post.ThreadPosition-1)
		if err != nil {
			return err
		}
		if pred == nil || pred.Status != models.PostStatusPosted {
			// The poll job only dispatches a position once its predecessor
			// is posted, so this record was claimed out of order. Put it
			// back without burning an attempt.
			slog.Warn("thread predecessor not posted, requeueing",
				"post_id", postID, "thread_id", post.ThreadID, "position", post.ThreadPosition)
			return s.store.RequeueForRetry(ctx, postID, post.AttemptCount, time.Now(), post.ErrorDetail)
		}
		replyTo = pred.ExternalPostID
	}

	externalID, err := s.poster.CreatePost(ctx, post.Content, post.MediaURLs, replyTo)
	if err == nil {
		slog.Info("post published", "post_id", postID, "external_post_id", externalID)
		return s.store.MarkPosted(ctx, postID, externalID)
	}

	attempt := post.AttemptCount + 1

	var pubErr *PublishError
	terminal := errors.As(err, &pubErr) && pubErr.Terminal()

	if !terminal && attempt < s.maxAttempts {
		next := time.Now().Add(s.backoff << (attempt - 1))
		slog.Warn("publish attempt failed, will retry",
			"post_id", postID, "attempt", attempt, "next_attempt_at", next, "error", err.Error())
		return s.store.RequeueForRetry(ctx, postID, attempt, next, err.Error())
	}

	slog.Error("publish failed permanently", "post_id", postID, "attempt", attempt, "error", err.Error())
	if err := s.store.MarkFailed(ctx, postID, attempt, err.Error()); err != nil {
		return err
	}
	return s.skipDownstream(ctx, post)
}

// skipDownstream cascades a terminal failure to every later position in the
// thread so they are never attempted.
func (s *publisherService) skipDownstream(ctx context.Context, failed *models.Post) error {
	if failed.Standalone() {
		return nil
	}

	members, err := s.store.ListByThread(ctx, failed.ThreadID)
	if err != nil {
		return err
	}

	detail := fmt.Sprintf("thread position %d failed", failed.ThreadPosition)
	for _, m := range members {
		if m.ThreadPosition <= failed.ThreadPosition {
			continue
		}
		skipped, err := s.store.MarkSkipped(ctx, m.ID, detail)
		if err != nil {
			return err
		}
		if skipped {
			slog.Info("skipped downstream thread post", "post_id", m.ID, "thread_id", m.ThreadID, "position", m.ThreadPosition)
		}
	}
	return nil
}
