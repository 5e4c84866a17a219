package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/models"
)

func threadPost(threadID string, position int, at time.Time) *models.Post {
	return &models.Post{
		ID:             threadID + "-" + string(rune('0'+position)),
		Content:        "post",
		ScheduledAt:    at,
		ThreadID:       threadID,
		ThreadPosition: position,
		Status:         models.PostStatusPending,
	}
}

func TestResolveThreads_GroupsAndSorts(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 2, base.Add(5*time.Minute)),
		{ID: "solo", Content: "standalone", ScheduledAt: base},
		threadPost("th1", 1, base),
		threadPost("th1", 3, base.Add(10*time.Minute)),
	}

	threads, err := ResolveThreads(posts)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	members := threads["th1"]
	require.Len(t, members, 3)
	for i, m := range members {
		assert.Equal(t, i+1, m.ThreadPosition)
	}
}

func TestResolveThreads_StandaloneOnly(t *testing.T) {
	posts := []*models.Post{
		{ID: "a", ScheduledAt: time.Now()},
		{ID: "b", ScheduledAt: time.Now()},
	}

	threads, err := ResolveThreads(posts)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestResolveThreads_DuplicatePosition(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 1, base),
		threadPost("th1", 2, base.Add(time.Minute)),
		{ID: "dup", ThreadID: "th1", ThreadPosition: 2, ScheduledAt: base.Add(2 * time.Minute)},
	}

	_, err := ResolveThreads(posts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate position 2")
}

func TestResolveThreads_PositionGap(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 1, base),
		threadPost("th1", 3, base.Add(time.Minute)),
	}

	_, err := ResolveThreads(posts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap")
}

func TestResolveThreads_MustStartAtOne(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 2, base),
		threadPost("th1", 3, base.Add(time.Minute)),
	}

	_, err := ResolveThreads(posts)
	require.Error(t, err)
}

func TestResolveThreads_NonMonotonicSchedule(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 1, base),
		threadPost("th1", 2, base.Add(-time.Minute)),
	}

	_, err := ResolveThreads(posts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduled before")
}

func TestResolveThreads_EqualTimesAllowed(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []*models.Post{
		threadPost("th1", 1, base),
		threadPost("th1", 2, base),
	}

	_, err := ResolveThreads(posts)
	assert.NoError(t, err)
}
