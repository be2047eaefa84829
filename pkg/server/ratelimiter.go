package server

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// RateLimiter implements per-IP rate limiting with a sliding one minute window.
type RateLimiter struct {
	limits            map[string][]time.Time
	maxRequestsPerMin int
	mu                sync.Mutex
	cleanupInterval   time.Duration
	now               func() time.Time
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// A limit of zero or less disables limiting.
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		limits:            make(map[string][]time.Time),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		now:               time.Now,
		stopCleanup:       make(chan struct{}),
	}

	go rl.runCleanup()

	return rl
}

// Allow records a request from ip and reports whether it is within the limit.
// When it is not, the second value is how long until a slot frees up.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	if rl.maxRequestsPerMin <= 0 {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := prune(rl.limits[ip], now)

	if len(requests) >= rl.maxRequestsPerMin {
		rl.limits[ip] = requests
		return false, rateWindow - now.Sub(requests[0])
	}

	rl.limits[ip] = append(requests, now)
	return true, 0
}

// prune drops timestamps that fell out of the window. Input is oldest first.
func prune(requests []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(requests) && now.Sub(requests[i]) >= rateWindow {
		i++
	}
	return requests[i:]
}

func (rl *RateLimiter) runCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, requests := range rl.limits {
		requests = prune(requests, now)
		if len(requests) == 0 {
			delete(rl.limits, ip)
		} else {
			rl.limits[ip] = requests
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
