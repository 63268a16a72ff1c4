// Package ratelimit enforces per-participant message rate limits using
// token-bucket limiters from golang.org/x/time/rate, the same library the
// teacher's rate_limit.go middleware is built on.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per participant per named lane (e.g.
// "messages" and "chat"), so a participant's general traffic and its
// chat-specific traffic can be bounded independently.
type Limiter struct {
	mu    sync.Mutex
	lanes map[string]laneConfig
	buckets map[string]*rate.Limiter // key: lane + ":" + participantID
}

type laneConfig struct {
	perMinute int
	burst     int
}

// New constructs a Limiter with no configured lanes.
func New() *Limiter {
	return &Limiter{
		lanes:   make(map[string]laneConfig),
		buckets: make(map[string]*rate.Limiter),
	}
}

// Configure sets the per-minute rate and burst allowance for a lane.
func (l *Limiter) Configure(lane string, perMinute, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lanes[lane] = laneConfig{perMinute: perMinute, burst: burst}
}

// Allow reports whether participantID may send one more message on lane
// right now, consuming a token if so. An unconfigured lane always allows.
func (l *Limiter) Allow(lane, participantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cfg, ok := l.lanes[lane]
	if !ok || cfg.perMinute <= 0 {
		return true
	}
	key := lane + ":" + participantID
	b, ok := l.buckets[key]
	if !ok {
		burst := cfg.burst
		if burst <= 0 {
			burst = cfg.perMinute
		}
		b = rate.NewLimiter(rate.Limit(float64(cfg.perMinute)/60.0), burst)
		l.buckets[key] = b
	}
	return b.Allow()
}

// Forget drops a participant's buckets across all lanes, called on
// disconnect to bound memory.
func (l *Limiter) Forget(participantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for lane := range l.lanes {
		delete(l.buckets, lane+":"+participantID)
	}
}
