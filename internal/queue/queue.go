package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"

	"github.com/postpilot/postpilot/internal/service"
)

type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, postID string) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return err
	}

	log.Printf("Publish task enqueued: %s", postID)
	return nil
}

// InlineDispatcher publishes directly on worker goroutines, bounded by a
// semaphore like the asynq server's Concurrency setting.
type InlineDispatcher struct {
	publisher service.PublisherService
	semaphore chan struct{}
}

func NewInlineDispatcher(publisher service.PublisherService, concurrency int) *InlineDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &InlineDispatcher{
		publisher: publisher,
		semaphore: make(chan struct{}, concurrency),
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, postID string) error {
	d.semaphore <- struct{}{}
	go func() {
		defer func() { <-d.semaphore }()

		if err := d.publisher.Publish(context.Background(), postID); err != nil {
			log.Printf("Error publishing post %s: %v", postID, err)
		}
	}()
	return nil
}

// Drain blocks until every in-flight publish has finished.
func (d *InlineDispatcher) Drain() {
	for i := 0; i < cap(d.semaphore); i++ {
		d.semaphore <- struct{}{}
	}
	for i := 0; i < cap(d.semaphore); i++ {
		<-d.semaphore
	}
}
