package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
)

func pendingPost(id string, at time.Time) *models.Post {
	return &models.Post{
		ID:            id,
		Content:       "content of " + id,
		ScheduledAt:   at,
		NextAttemptAt: at,
		Status:        models.PostStatusPending,
	}
}

func TestMemoryStore_InsertBatchThenListAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	batch := []*models.Post{
		pendingPost("a", at),
		pendingPost("b", at.Add(time.Minute)),
	}
	require.NoError(t, store.InsertBatch(ctx, batch))

	posts, err := store.ListAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)
	for _, p := range posts {
		assert.Equal(t, models.PostStatusPending, p.Status)
	}
}

func TestMemoryStore_ReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Now()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", at)}))

	post, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	post.Status = models.PostStatusPosted

	again, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, again.Status, "mutating a returned record must not touch the store")
}

func TestMemoryStore_ListDueFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	early := pendingPost("early", now.Add(-2*time.Hour))
	late := pendingPost("late", now.Add(-time.Hour))
	future := pendingPost("future", now.Add(time.Hour))
	backingOff := pendingPost("backoff", now.Add(-time.Hour))
	backingOff.NextAttemptAt = now.Add(10 * time.Minute)

	require.NoError(t, store.InsertBatch(ctx, []*models.Post{late, future, early, backingOff}))

	due, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "late", due[1].ID)
}

func TestMemoryStore_ListDueOrdersThreadPositions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	at := now.Add(-time.Minute)

	p1 := pendingPost("p1", at)
	p1.ThreadID = "th"
	p1.ThreadPosition = 1
	p2 := pendingPost("p2", at)
	p2.ThreadID = "th"
	p2.ThreadPosition = 2

	require.NoError(t, store.InsertBatch(ctx, []*models.Post{p2, p1}))

	due, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "p1", due[0].ID)
	assert.Equal(t, "p2", due[1].ID)
}

func TestMemoryStore_ListDueIsIdempotentWithoutClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{
		pendingPost("a", now.Add(-time.Minute)),
		pendingPost("b", now.Add(-time.Second)),
	}))

	first, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	second, err := store.ListDue(ctx, now)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestMemoryStore_ClaimExcludesFromListDue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", now.Add(-time.Minute))}))

	claimed, err := store.Claim(ctx, "a")
	require.NoError(t, err)
	require.True(t, claimed)

	due, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_ClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", time.Now())}))

	first, err := store.Claim(ctx, "a")
	require.NoError(t, err)
	second, err := store.Claim(ctx, "a")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second, "a record can only be claimed once")
}

func TestMemoryStore_MarkPostedOnlyFromPublishing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", time.Now())}))

	require.NoError(t, store.MarkPosted(ctx, "a", "ext-1"))
	post, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, post.Status, "pending records cannot jump to posted")

	_, err = store.Claim(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.MarkPosted(ctx, "a", "ext-1"))
	post, err = store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosted, post.Status)
	assert.Equal(t, "ext-1", post.ExternalPostID)
}

func TestMemoryStore_MarkSkippedOnlyPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", time.Now())}))

	_, err := store.Claim(ctx, "a")
	require.NoError(t, err)

	skipped, err := store.MarkSkipped(ctx, "a", "cancelled")
	require.NoError(t, err)
	assert.False(t, skipped, "in-flight records cannot be skipped")
}

func TestMemoryStore_RequeueForRetry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{pendingPost("a", now.Add(-time.Minute))}))

	_, err := store.Claim(ctx, "a")
	require.NoError(t, err)

	next := now.Add(5 * time.Minute)
	require.NoError(t, store.RequeueForRetry(ctx, "a", 1, next, "rate limited"))

	post, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, post.Status)
	assert.Equal(t, 1, post.AttemptCount)
	assert.Equal(t, "rate limited", post.ErrorDetail)

	due, err := store.ListDue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due, "requeued record is not due until its backoff passes")

	due, err = store.ListDue(ctx, next)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMemoryStore_GetThreadPost(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := pendingPost("a", time.Now())
	p.ThreadID = "th"
	p.ThreadPosition = 1
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{p}))

	found, err := store.GetThreadPost(ctx, "th", 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "a", found.ID)

	missing, err := store.GetThreadPost(ctx, "th", 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_CountByStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InsertBatch(ctx, []*models.Post{
		pendingPost("a", time.Now()),
		pendingPost("b", time.Now()),
	}))

	_, err := store.Claim(ctx, "a")
	require.NoError(t, err)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.PostStatusPending])
	assert.Equal(t, int64(1), counts[models.PostStatusPublishing])
}
