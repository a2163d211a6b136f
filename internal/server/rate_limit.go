package server

import (
	"sync"
	"time"
)

const (
	defaultJobsPerMinute = 30
	// sweepEvery is how many Allow calls pass between idle-client sweeps.
	sweepEvery = 256
)

// JobRateLimiter bounds print submissions per client address over a
// sliding window.
type JobRateLimiter struct {
	mu     sync.Mutex
	recent map[string][]time.Time
	limit  int
	window time.Duration
	calls  int
	now    func() time.Time
}

// NewJobRateLimiter allows perMinute submissions per client; 0 or less
// means the default of 30.
func NewJobRateLimiter(perMinute int) *JobRateLimiter {
	if perMinute <= 0 {
		perMinute = defaultJobsPerMinute
	}
	return &JobRateLimiter{
		recent: make(map[string][]time.Time),
		limit:  perMinute,
		window: time.Minute,
		now:    time.Now,
	}
}

// Allow records a submission for client and reports whether it fits the
// budget. Rejected submissions are not recorded.
func (rl *JobRateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.calls++
	if rl.calls%sweepEvery == 0 {
		rl.sweepLocked(cutoff)
	}

	stamps := trimBefore(rl.recent[client], cutoff)
	if len(stamps) >= rl.limit {
		rl.recent[client] = stamps
		return false
	}
	rl.recent[client] = append(stamps, now)
	return true
}

// Tracked returns the number of clients with submissions in the window.
func (rl *JobRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepLocked(rl.now().Add(-rl.window))
	return len(rl.recent)
}

// sweepLocked drops clients whose whole window has expired.
func (rl *JobRateLimiter) sweepLocked(cutoff time.Time) {
	for client, stamps := range rl.recent {
		if len(trimBefore(stamps, cutoff)) == 0 {
			delete(rl.recent, client)
		}
	}
}

// trimBefore drops the leading stamps at or before cutoff. stamps are in
// ascending order.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
