package twitchapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a token bucket keyed to the platform's own
// Ratelimit-Remaining / Ratelimit-Reset response headers, per spec.md §5. It
// is adjusted after every response rather than configured with a fixed rate,
// since the upstream is the authority on how much budget remains.
type rateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	fallback rate.Limit
}

func newRateLimiter() *rateLimiter {
	// A conservative default until the first response headers are observed.
	const defaultPerSecond = 1.0
	return &rateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(defaultPerSecond), 1),
		fallback: rate.Limit(defaultPerSecond),
	}
}

// wait blocks until the bucket permits one more request.
func (rl *rateLimiter) wait(ctx context.Context) error {
	rl.mu.Lock()
	l := rl.limiter
	rl.mu.Unlock()
	return l.Wait(ctx)
}

// observe adjusts the bucket from the response headers of a completed
// request. Ratelimit-Remaining and Ratelimit-Reset (unix seconds) are the
// platform's hints about how much budget is left and when it refills.
func (rl *rateLimiter) observe(h http.Header) {
	remaining, err1 := strconv.Atoi(h.Get("Ratelimit-Remaining"))
	resetUnix, err2 := strconv.ParseInt(h.Get("Ratelimit-Reset"), 10, 64)
	if err1 != nil || err2 != nil {
		return
	}

	until := time.Until(time.Unix(resetUnix, 0))
	if until <= 0 || remaining <= 0 {
		return
	}

	// Spread the remaining budget evenly across the time left in the window.
	newLimit := rate.Limit(float64(remaining) / until.Seconds())

	// A fresh limiter starts with a full bucket, so the requests the upstream
	// still allows are available at once rather than refilling from empty.
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiter = rate.NewLimiter(newLimit, remaining)
}

// backoffSchedule is a bounded exponential sequence (2s, 4s, 8s, ...) used
// after a 429, per spec.md §5. It is exposed as an iterator value following
// the teacher's generator-driven-delay rule in spec.md §9.
type backoffSchedule struct {
	attempt int
	max     int
}

func newBackoffSchedule(maxAttempts int) *backoffSchedule {
	return &backoffSchedule{max: maxAttempts}
}

// Next returns the next backoff duration and whether the schedule is
// exhausted.
func (b *backoffSchedule) Next() (time.Duration, bool) {
	if b.attempt >= b.max {
		return 0, false
	}
	b.attempt++
	seconds := 1 << uint(b.attempt) // 2, 4, 8, 16, ...
	return time.Duration(seconds) * time.Second, true
}
