package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

type RateLimit interface {
	Allow(addr string) bool
}

type windowData struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter counts requests per address within a fixed window.
type FixedWindowLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string]*windowData
	mu          sync.Mutex

	allowed atomic.Int64
	denied  atomic.Int64
}

func New(maxRequests int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string]*windowData),
	}
}

func (rl *FixedWindowLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	wd := rl.requests[addr]

	// No data yet, or the previous window has lapsed.
	if wd == nil || now.Sub(wd.windowStart) > rl.window {
		if rl.maxRequests == 0 {
			rl.denied.Inc()
			return false
		}

		rl.requests[addr] = &windowData{count: 1, windowStart: now}
		rl.allowed.Inc()
		return true
	}

	if wd.count >= rl.maxRequests {
		rl.denied.Inc()
		return false
	}
	wd.count++

	rl.allowed.Inc()
	return true
}

// Counts returns how many requests were allowed and denied since start.
func (rl *FixedWindowLimiter) Counts() (allowed, denied int64) {
	return rl.allowed.Load(), rl.denied.Load()
}
