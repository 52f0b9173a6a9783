package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces fixed-window request and upload budgets per client.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxDataPerMinute  int64 // in bytes

	clients map[string]*UserUsage
	now     func() time.Time
}

// UserUsage tracks usage for a specific client.
type UserUsage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	DataThisMinute     int64

	MinuteStart time.Time
	HourStart   time.Time
}

// NewRateLimiter creates a rate limiter. A zero limit disables that budget.
func NewRateLimiter(requestsPerMinute, requestsPerHour int, maxDataPerMinute int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxDataPerMinute:  maxDataPerMinute,
		clients:           make(map[string]*UserUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits a request of dataSize bytes from clientID or
// returns a *RateLimitError. Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &UserUsage{MinuteStart: now, HourStart: now}
		rl.clients[clientID] = usage
	}
	rl.rollWindows(usage, now)

	if rl.requestsPerMinute > 0 && usage.RequestsThisMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      int64(rl.requestsPerMinute),
			RetryAfter: usage.MinuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.requestsPerHour > 0 && usage.RequestsThisHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      int64(rl.requestsPerHour),
			RetryAfter: usage.HourStart.Add(time.Hour).Sub(now),
		}
	}
	if rl.maxDataPerMinute > 0 && usage.DataThisMinute+dataSize > rl.maxDataPerMinute {
		return &RateLimitError{
			Type:       "data",
			Limit:      rl.maxDataPerMinute,
			RetryAfter: usage.MinuteStart.Add(time.Minute).Sub(now),
		}
	}

	usage.RequestsThisMinute++
	usage.RequestsThisHour++
	usage.DataThisMinute += dataSize
	return nil
}

// rollWindows starts a new window once the current one has elapsed.
func (rl *RateLimiter) rollWindows(usage *UserUsage, now time.Time) {
	if now.Sub(usage.MinuteStart) >= time.Minute {
		usage.MinuteStart = now
		usage.RequestsThisMinute = 0
		usage.DataThisMinute = 0
	}
	if now.Sub(usage.HourStart) >= time.Hour {
		usage.HourStart = now
		usage.RequestsThisHour = 0
	}
}

// GetUsage returns a copy of the usage recorded for a client.
func (rl *RateLimiter) GetUsage(clientID string) UserUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[clientID]; ok {
		return *usage
	}
	return UserUsage{}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute", "hour" or "data"
	Limit      int64         // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
