package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
)

// PublishPollJob is the recurring check that moves due records into flight.
// Each cycle lists due pending records, skips the ones whose thread
// predecessor failed, defers the ones whose predecessor is still pending or
// in flight, and claims and dispatches the rest.
type PublishPollJob struct {
	store      repository.ScheduleStore
	dispatcher queue.Dispatcher
}

func NewPublishPollJob(store repository.ScheduleStore, dispatcher queue.Dispatcher) *PublishPollJob {
	return &PublishPollJob{store: store, dispatcher: dispatcher}
}

// Run is the cron entrypoint.
func (j *PublishPollJob) Run() {
	if err := j.RunCycle(context.Background(), time.Now()); err != nil {
		slog.Error("poll cycle failed", "error", err.Error())
	}
}

// RunCycle executes one poll pass against the given clock reading. A store
// error aborts the cycle; the same records come back on the next one.
func (j *PublishPollJob) RunCycle(ctx context.Context, now time.Time) error {
	due, err := j.store.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("unable to list due posts: %w", err)
	}

	for _, post := range due {
		if !post.Standalone() && post.ThreadPosition > 1 {
			pred, err := j.store.GetThreadPost(ctx, post.ThreadID, post.ThreadPosition-1)
			if err != nil {
				slog.Error(err.Error())
				continue
			}
			if pred == nil {
				slog.Error("thread predecessor missing", "post_id", post.ID, "thread_id", post.ThreadID, "position", post.ThreadPosition)
				continue
			}

			switch pred.Status {
			case models.PostStatusPosted:
				// predecessor done, eligible
			case models.PostStatusFailed, models.PostStatusSkipped:
				detail := fmt.Sprintf("thread position %d %s", pred.ThreadPosition, pred.Status)
				if _, err := j.store.MarkSkipped(ctx, post.ID, detail); err != nil {
					slog.Error(err.Error())
				}
				continue
			default:
				// still pending or in flight, defer to the next cycle
				continue
			}
		}

		claimed, err := j.store.Claim(ctx, post.ID)
		if err != nil {
			slog.Error(err.Error())
			continue
		}
		if !claimed {
			continue
		}

		if err := j.dispatcher.Dispatch(ctx, post.ID); err != nil {
			slog.Error("dispatch failed, releasing claim", "post_id", post.ID, "error", err.Error())
			if err := j.store.RequeueForRetry(ctx, post.ID, post.AttemptCount, now, post.ErrorDetail); err != nil {
				slog.Error(err.Error())
			}
		}
	}

	return nil
}
