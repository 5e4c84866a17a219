package service

import (
	"fmt"
	"sort"

	"github.com/postpilot/postpilot/internal/models"
)

// ResolveThreads groups a validated batch by thread id, sorts each thread by
// position in place and enforces the thread invariants: positions unique and
// contiguous from 1, and scheduled times non-decreasing along the thread.
// Standalone posts pass through untouched. Any violation fails the whole
// batch.
func ResolveThreads(posts []*models.Post) (map[string][]*models.Post, error) {
	threads := make(map[string][]*models.Post)
	for _, p := range posts {
		if p.Standalone() {
			continue
		}
		threads[p.ThreadID] = append(threads[p.ThreadID], p)
	}

	for id, members := range threads {
		sort.Slice(members, func(i, j int) bool {
			return members[i].ThreadPosition < members[j].ThreadPosition
		})

		for i, p := range members {
			want := i + 1
			if p.ThreadPosition != want {
				if i > 0 && p.ThreadPosition == members[i-1].ThreadPosition {
					return nil, fmt.Errorf("thread %q has duplicate position %d", id, p.ThreadPosition)
				}
				return nil, fmt.Errorf("thread %q has a gap: expected position %d, found %d", id, want, p.ThreadPosition)
			}
			if i > 0 && p.ScheduledAt.Before(members[i-1].ScheduledAt) {
				return nil, fmt.Errorf("thread %q position %d is scheduled before position %d", id, p.ThreadPosition, members[i-1].ThreadPosition)
			}
		}
	}

	return threads, nil
}
