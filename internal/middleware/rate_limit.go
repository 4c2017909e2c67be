package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Counter counts hits per key inside a sliding window. The interface
// exists so the in-memory implementation can be swapped for a distributed
// backend without touching call sites.
type Counter interface {
	Increment(key string) int
}

// RateLimit returns middleware that enforces a per-minute limit per
// remote address on the wrapped routes.
func RateLimit(counter Counter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := remoteIP(r)
			count := counter.Increment(key)
			if count > limit {
				slog.Debug("rate limited", "remote", key, "count", count, "limit", limit)
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryCounter is a mutex-guarded sliding-window counter. It is local to
// one process; running multiple nodes needs a shared backend instead.
type MemoryCounter struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	return &MemoryCounter{
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Increment records one hit and returns how many fall inside the window.
func (c *MemoryCounter) Increment(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-c.window)

	kept := c.hits[key][:0]
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	c.hits[key] = kept
	return len(kept)
}

// StartSweep drops idle keys periodically until ctx is done.
func (c *MemoryCounter) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *MemoryCounter) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.window)
	for key, times := range c.hits {
		last := len(times) - 1
		if last < 0 || !times[last].After(cutoff) {
			delete(c.hits, key)
		}
	}
}
