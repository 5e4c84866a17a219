package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/postpilot/postpilot/internal/service"
)

type Worker struct {
	publisher service.PublisherService
}

func NewWorker(publisher service.PublisherService) *Worker {
	return &Worker{publisher: publisher}
}

func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return w.publisher.Publish(ctx, payload.PostID)
}
