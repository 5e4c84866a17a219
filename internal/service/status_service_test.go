package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

func newStatusFixture(t *testing.T) (StatusService, repository.ScheduleStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		{ID: "solo", Content: "standalone", ScheduledAt: at, Status: models.PostStatusPending},
		{ID: "t1", Content: "head", ScheduledAt: at, ThreadID: "th1", ThreadPosition: 1, Status: models.PostStatusPosted, ExternalPostID: "ext-1"},
		{ID: "t2", Content: "tail", ScheduledAt: at.Add(time.Minute), ThreadID: "th1", ThreadPosition: 2, Status: models.PostStatusPending},
	}
	require.NoError(t, store.InsertBatch(context.Background(), posts))
	return NewStatusService(store), store
}

func TestStatus_ListFiltersByStatus(t *testing.T) {
	svc, _ := newStatusFixture(t)

	pending, err := svc.List(context.Background(), models.PostStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStatus_ThreadInfoOrdered(t *testing.T) {
	svc, _ := newStatusFixture(t)

	posts, err := svc.ThreadInfo(context.Background(), "th1")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "t1", posts[0].ID)
	assert.Equal(t, "t2", posts[1].ID)
}

func TestStatus_ThreadNotFound(t *testing.T) {
	svc, _ := newStatusFixture(t)

	_, err := svc.ThreadInfo(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestStatus_PostNotFound(t *testing.T) {
	svc, _ := newStatusFixture(t)

	_, err := svc.PostInfo(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestStatus_CancelPending(t *testing.T) {
	ctx := context.Background()
	svc, store := newStatusFixture(t)

	require.NoError(t, svc.CancelPost(ctx, "solo"))

	post, err := store.GetByID(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusSkipped, post.Status)

	// Cancelled records never come due again.
	due, err := store.ListDue(ctx, time.Now().Add(24*365*time.Hour))
	require.NoError(t, err)
	for _, p := range due {
		assert.NotEqual(t, "solo", p.ID)
	}
}

func TestStatus_CancelNonPending(t *testing.T) {
	svc, _ := newStatusFixture(t)

	err := svc.CancelPost(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestStatus_CancelMissing(t *testing.T) {
	svc, _ := newStatusFixture(t)

	err := svc.CancelPost(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestStatus_CancelThreadOnlyPendingMembers(t *testing.T) {
	ctx := context.Background()
	svc, store := newStatusFixture(t)

	cancelled, err := svc.CancelThread(ctx, "th1")
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	head, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, head.Status, "posted members stay posted")

	tail, err := store.GetByID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusSkipped, tail.Status)
}

func TestStatus_Counts(t *testing.T) {
	svc, _ := newStatusFixture(t)

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.PostStatusPending])
	assert.Equal(t, int64(1), counts[models.PostStatusPosted])
}
