// Package ratelimit limits how many actions a keyed actor may perform per
// unit of time. Adapted from laitos's own ratelimit.RateLimit (originally
// written for HTTP request throttling) for the pool package's use: limiting
// outbound connection/send attempts per destination MX host, so a burst of
// mail to one domain cannot look like a spam run to the receiving MTA
// (SPEC_FULL.md §4.7).
package ratelimit

import (
	"sync"
	"time"

	"github.com/mailforge/mailforge/lalog"
)

// RateLimit allows an actor to perform no more than MaxCount actions per
// UnitSecs seconds.
type RateLimit struct {
	UnitSecs int64
	MaxCount int
	// Logger receives a Warning the first time an actor exceeds its limit
	// within a window. A nil Logger disables this notice.
	Logger *lalog.Logger

	lastTimestamp int64
	counter       map[string]int
	logged        map[string]struct{}
	counterMutex  *sync.Mutex
}

// Initialise rate limiter internal states.
func (limit *RateLimit) Initialise() {
	limit.counter = make(map[string]int)
	limit.counterMutex = new(sync.Mutex)
	if limit.UnitSecs < 1 || limit.MaxCount < 1 {
		panic("RateLimit.Initialise: unit or max count must be greater than 0")
	}
}

// Add increases the counter of actor by one. If the counter exceeds the
// configured maximum, it returns false, otherwise true.
func (limit *RateLimit) Add(actor string, logIfLimitHit bool) bool {
	limit.counterMutex.Lock()
	// Reset all counters if unit of time has past
	if now := time.Now().Unix(); now-limit.lastTimestamp >= limit.UnitSecs {
		limit.counter = make(map[string]int)
		limit.logged = make(map[string]struct{})
		limit.lastTimestamp = now
	}
	if count, exists := limit.counter[actor]; exists {
		if count >= limit.MaxCount {
			if _, hasLogged := limit.logged[actor]; !hasLogged && logIfLimitHit {
				if limit.Logger != nil {
					limit.Logger.Warning(actor, nil, "exceeded limit of %d hits per %d seconds", limit.MaxCount, limit.UnitSecs)
				}
				limit.logged[actor] = struct{}{}
			}
			limit.counterMutex.Unlock()
			return false
		}
		limit.counter[actor] = count + 1
	} else {
		limit.counter[actor] = 1
	}
	limit.counterMutex.Unlock()
	return true
}
