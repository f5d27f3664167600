package memory

import (
	"context"
	"sync"

	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
)

// ProgressLog implements gamification.ProgressLog. Each user keeps at most
// capacity entries; older ones are dropped.
type ProgressLog struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]gamification.ProgressEntry
}

// NewProgressLog creates a ProgressLog.
func NewProgressLog(capacity int) *ProgressLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &ProgressLog{
		capacity: capacity,
		entries:  make(map[string][]gamification.ProgressEntry),
	}
}

// Append stores an entry.
func (l *ProgressLog) Append(_ context.Context, entry gamification.ProgressEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := append(l.entries[entry.UserID], entry)
	if len(list) > l.capacity {
		list = list[len(list)-l.capacity:]
	}
	l.entries[entry.UserID] = list
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *ProgressLog) Recent(_ context.Context, userID string, limit int) ([]gamification.ProgressEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.entries[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]gamification.ProgressEntry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}
