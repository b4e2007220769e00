package ws

import (
	"sync"
	"time"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

// FrameLimiter caps the event rate of each participant with a sliding
// window, so one client can't flood a room with queue mutations.
type FrameLimiter struct {
	mu       sync.Mutex
	history  map[domain.ParticipantID][]time.Time
	limit    int
	interval time.Duration
}

func NewFrameLimiter(limit int, interval time.Duration) *FrameLimiter {
	return &FrameLimiter{
		history:  make(map[domain.ParticipantID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (l *FrameLimiter) Allow(pid domain.ParticipantID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[pid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[pid] = fresh
		return false
	}

	fresh = append(fresh, now)
	l.history[pid] = fresh
	return true
}

// Forget drops a participant's window once their connection goes away.
func (l *FrameLimiter) Forget(pid domain.ParticipantID) {
	l.mu.Lock()
	delete(l.history, pid)
	l.mu.Unlock()
}
