package middleware

import (
	"sync"
	"time"
)

type clientInfo struct {
	start time.Time
	count int
}

// memoryLimiter is a fixed-window counter per key.
type memoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientInfo
}

func newMemoryLimiter(maxRequests int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		max:     maxRequests,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientInfo),
	}
}

// allow counts a hit for key and reports whether it is within the limit.
func (l *memoryLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.start) > l.window {
		if len(l.clients) > 10000 {
			l.sweep(now)
		}
		l.clients[key] = &clientInfo{start: now, count: 1}
		return true
	}
	ci.count++
	return ci.count <= l.max
}

func (l *memoryLimiter) sweep(now time.Time) {
	for k, ci := range l.clients {
		if now.Sub(ci.start) > l.window {
			delete(l.clients, k)
		}
	}
}
