package queue

import "context"

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}

// Dispatcher hands a claimed record to the publisher. The asynq
// implementation pushes through Redis so publishing survives restarts of the
// poll loop; the inline implementation runs publishes in-process with
// bounded concurrency when no Redis is configured.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID string) error
}
