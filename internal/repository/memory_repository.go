package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// memoryStore keeps the whole schedule in process memory behind a single
// mutex. It is the default store when no Postgres URI is configured and is
// what the tests run against. Reads hand out copies so callers can never
// mutate a record without going through a store operation.
type memoryStore struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func NewMemoryStore() ScheduleStore {
	return &memoryStore{posts: make(map[string]*models.Post)}
}

func clonePost(p *models.Post) *models.Post {
	cp := *p
	if p.MediaURLs != nil {
		cp.MediaURLs = append([]string(nil), p.MediaURLs...)
	}
	return &cp
}

func (r *memoryStore) InsertBatch(ctx context.Context, posts []*models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, p := range posts {
		cp := clonePost(p)
		cp.CreatedAt = now
		cp.UpdatedAt = now
		r.posts[cp.ID] = cp
	}
	return nil
}

func (r *memoryStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *memoryStore) ListDue(ctx context.Context, asOf time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPending && !p.ScheduledAt.After(asOf) && !p.NextAttemptAt.After(asOf) {
			due = append(due, clonePost(p))
		}
	}
	sortPosts(due)
	return due, nil
}

func (r *memoryStore) Claim(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPending {
		return false, nil
	}
	p.Status = models.PostStatusPublishing
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryStore) MarkPosted(ctx context.Context, id, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPublishing {
		return nil
	}
	p.Status = models.PostStatusPosted
	p.ExternalPostID = externalID
	p.ErrorDetail = ""
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStore) MarkFailed(ctx context.Context, id string, attempt int, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPublishing {
		return nil
	}
	p.Status = models.PostStatusFailed
	p.AttemptCount = attempt
	p.ErrorDetail = detail
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStore) MarkSkipped(ctx context.Context, id, detail string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPending {
		return false, nil
	}
	p.Status = models.PostStatusSkipped
	p.ErrorDetail = detail
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *memoryStore) RequeueForRetry(ctx context.Context, id string, attempt int, nextAttempt time.Time, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPublishing {
		return nil
	}
	p.Status = models.PostStatusPending
	p.AttemptCount = attempt
	p.NextAttemptAt = nextAttempt
	p.ErrorDetail = detail
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryStore) GetThreadPost(ctx context.Context, threadID string, position int) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.posts {
		if p.ThreadID == threadID && p.ThreadPosition == position {
			return clonePost(p), nil
		}
	}
	return nil, nil
}

func (r *memoryStore) ListByThread(ctx context.Context, threadID string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []*models.Post
	for _, p := range r.posts {
		if p.ThreadID != "" && p.ThreadID == threadID {
			posts = append(posts, clonePost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ThreadPosition < posts[j].ThreadPosition
	})
	return posts, nil
}

func (r *memoryStore) ListAll(ctx context.Context, status string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []*models.Post
	for _, p := range r.posts {
		if status == "" || p.Status == status {
			posts = append(posts, clonePost(p))
		}
	}
	sortPosts(posts)
	return posts, nil
}

func (r *memoryStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int64)
	for _, p := range r.posts {
		counts[p.Status]++
	}
	return counts, nil
}

func sortPosts(posts []*models.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].ScheduledAt.Equal(posts[j].ScheduledAt) {
			return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
		}
		if posts[i].ThreadID != posts[j].ThreadID {
			return posts[i].ThreadID < posts[j].ThreadID
		}
		return posts[i].ThreadPosition < posts[j].ThreadPosition
	})
}
