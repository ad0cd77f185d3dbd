package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxEntries bounds the number of identifiers tracked at once.
	DefaultMaxEntries = 10000

	defaultCleanupInterval = 5 * time.Minute
	defaultMaxIdle         = 30 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per identifier. When MaxEntries buckets
// exist, the least recently seen one is evicted to make room.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	limit      rate.Limit
	burst      int
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once

	evictions int64
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given
// burst per identifier, and starts its idle-bucket sweeper.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(requestsPerSecond, burst, DefaultMaxEntries, logger)
}

// NewRateLimiterWithConfig is NewRateLimiter with a custom entry bound.
// maxEntries of 0 means unbounded.
func NewRateLimiterWithConfig(requestsPerSecond, burst, maxEntries int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries < 0 {
		logger.Warn("Invalid maxEntries, using default", "maxEntries", maxEntries)
		maxEntries = DefaultMaxEntries
	}
	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		limit:      rate.Limit(requestsPerSecond),
		burst:      burst,
		maxEntries: maxEntries,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go rl.sweep(defaultCleanupInterval)
	return rl
}

// Allow reports whether one more request from identifier may proceed.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[identifier]
	if !ok {
		if rl.maxEntries > 0 && len(rl.buckets) >= rl.maxEntries {
			rl.evictOldest()
		}
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[identifier] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// evictOldest drops the least recently seen bucket. Caller holds mu.
func (rl *RateLimiter) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, b := range rl.buckets {
		if oldestID == "" || b.lastSeen.Before(oldest) {
			oldestID, oldest = id, b.lastSeen
		}
	}
	if oldestID == "" {
		return
	}
	delete(rl.buckets, oldestID)
	rl.evictions++
	rl.logger.Debug("Rate limiter eviction",
		"identifier", oldestID,
		"total_evictions", rl.evictions)
}

func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup(defaultMaxIdle)
		case <-rl.stop:
			return
		}
	}
}

// Cleanup removes buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, b := range rl.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(rl.buckets, id)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.buckets))
	}
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop terminates the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
