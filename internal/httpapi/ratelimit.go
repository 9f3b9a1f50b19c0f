// Package httpapi exposes the REST surface and SSE endpoint over a running
// orchestrator.Service: attach/detach, session listing, search, project
// aggregates, on-demand reindex, and health.
package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds the limiter's memory use against an attacker
// rotating source keys.
const maxTrackedKeys = 4096

// keyedLimiter is a per-key token bucket, bounded to maxTrackedKeys
// tracked keys with stale-entry eviction under pressure.
type keyedLimiter struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	entries  map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newKeyedLimiter returns a limiter allowing perMinute events per key, with
// a burst equal to perMinute (a full minute's budget available up front).
func newKeyedLimiter(perMinute int) *keyedLimiter {
	return &keyedLimiter{
		rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow reports whether key may proceed now, consuming one token if so.
func (k *keyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	if len(k.entries) >= maxTrackedKeys {
		k.evictStaleLocked(now)
	}

	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (k *keyedLimiter) evictStaleLocked(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > 10*time.Minute {
			delete(k.entries, key)
		}
	}
	for len(k.entries) >= maxTrackedKeys {
		for key := range k.entries {
			delete(k.entries, key)
			break
		}
	}
}

// globalLimiter wraps a single shared rate.Limiter, for endpoints with one
// process-wide budget rather than a per-key one.
type globalLimiter struct {
	limiter *rate.Limiter
}

func newGlobalLimiter(every time.Duration) *globalLimiter {
	return &globalLimiter{limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (g *globalLimiter) Allow() bool {
	return g.limiter.Allow()
}
