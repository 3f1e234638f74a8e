package githubapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	rateLimitLimitHeaderConstant     = "X-RateLimit-Limit"
	rateLimitRemainingHeaderConstant = "X-RateLimit-Remaining"
	rateLimitResetHeaderConstant     = "X-RateLimit-Reset"
	rateLimitResourceHeaderConstant  = "X-RateLimit-Resource"

	// CoreResource is the quota bucket used by repository content requests.
	CoreResource = "core"
	// SearchResource is the quota bucket used by code search requests.
	SearchResource = "code_search"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleeper blocks for a duration or until the context ends.
type Sleeper func(sleepContext context.Context, duration time.Duration) error

// ContextSleeper waits on a timer and honours cancellation.
func ContextSleeper(sleepContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return sleepContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-sleepContext.Done():
		return sleepContext.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitSnapshot is a point-in-time copy of one quota bucket and the shared slot usage.
type RateLimitSnapshot struct {
	Resource       string
	Known          bool
	Limit          int
	Remaining      int
	ResetAt        time.Time
	InFlight       int
	PeakInFlight   int
	MaxConcurrency int
}

type quota struct {
	known     bool
	limit     int
	remaining int
	resetAt   time.Time
}

// RateLimitState is the process-wide throttle shared by every request.
// All mutation happens inside its methods under a single mutex.
type RateLimitState struct {
	slots          *semaphore.Weighted
	pacer          *rate.Limiter
	maxConcurrency int
	threshold      int
	clock          Clock
	sleeper        Sleeper

	mutex        sync.Mutex
	quotas       map[string]*quota
	inFlight     int
	peakInFlight int
}

// NewRateLimitState builds a throttle with maxConcurrency slots. A requestsPerSecond of zero disables pacing.
func NewRateLimitState(maxConcurrency int, threshold int, requestsPerSecond float64, clock Clock, sleeper Sleeper) *RateLimitState {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if threshold < 0 {
		threshold = 0
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if sleeper == nil {
		sleeper = ContextSleeper
	}

	pacingLimit := rate.Inf
	pacingBurst := maxConcurrency
	if requestsPerSecond > 0 {
		pacingLimit = rate.Limit(requestsPerSecond)
		pacingBurst = 1
	}

	return &RateLimitState{
		slots:          semaphore.NewWeighted(int64(maxConcurrency)),
		pacer:          rate.NewLimiter(pacingLimit, pacingBurst),
		maxConcurrency: maxConcurrency,
		threshold:      threshold,
		clock:          clock,
		sleeper:        sleeper,
		quotas:         make(map[string]*quota),
	}
}

// Acquire blocks until a slot is free and the resource quota allows a request.
// The returned release function must be called exactly once with the response headers, or nil.
func (state *RateLimitState) Acquire(acquireContext context.Context, resource string) (func(http.Header), error) {
	if acquireError := state.slots.Acquire(acquireContext, 1); acquireError != nil {
		return nil, acquireError
	}

	if pacingError := state.pacer.Wait(acquireContext); pacingError != nil {
		state.slots.Release(1)
		return nil, pacingError
	}

	for {
		waitDuration := state.reserve(resource)
		if waitDuration <= 0 {
			break
		}
		if sleepError := state.sleeper(acquireContext, waitDuration); sleepError != nil {
			state.slots.Release(1)
			return nil, sleepError
		}
	}

	var releaseOnce sync.Once
	return func(responseHeaders http.Header) {
		releaseOnce.Do(func() {
			state.mutex.Lock()
			state.observeLocked(resource, responseHeaders)
			state.inFlight--
			state.mutex.Unlock()
			state.slots.Release(1)
		})
	}, nil
}

// Observe resynchronizes a quota from authoritative response headers. An empty resource
// files the quota under the X-RateLimit-Resource header value.
func (state *RateLimitState) Observe(resource string, responseHeaders http.Header) {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	state.observeLocked(resource, responseHeaders)
}

// Snapshot copies the current state of a quota bucket.
func (state *RateLimitState) Snapshot(resource string) RateLimitSnapshot {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	snapshot := RateLimitSnapshot{
		Resource:       resource,
		InFlight:       state.inFlight,
		PeakInFlight:   state.peakInFlight,
		MaxConcurrency: state.maxConcurrency,
	}
	if bucket, exists := state.quotas[resource]; exists {
		snapshot.Known = bucket.known
		snapshot.Limit = bucket.limit
		snapshot.Remaining = bucket.remaining
		snapshot.ResetAt = bucket.resetAt
	}
	return snapshot
}

// reserve either claims quota and returns zero, or returns how long to wait for the reset.
func (state *RateLimitState) reserve(resource string) time.Duration {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	bucket := state.bucketLocked(resource)
	now := state.clock.Now()

	if bucket.known && bucket.remaining <= state.threshold {
		if bucket.resetAt.After(now) {
			return bucket.resetAt.Sub(now)
		}
		bucket.remaining = bucket.limit
	}

	if bucket.known {
		bucket.remaining--
	}
	state.inFlight++
	if state.inFlight > state.peakInFlight {
		state.peakInFlight = state.inFlight
	}
	return 0
}

func (state *RateLimitState) bucketLocked(resource string) *quota {
	bucket, exists := state.quotas[resource]
	if !exists {
		bucket = &quota{}
		state.quotas[resource] = bucket
	}
	return bucket
}

func (state *RateLimitState) observeLocked(resource string, responseHeaders http.Header) {
	if responseHeaders == nil {
		return
	}

	remaining, remainingPresent := parseHeaderInteger(responseHeaders, rateLimitRemainingHeaderConstant)
	if !remainingPresent {
		return
	}

	if len(resource) == 0 {
		resource = strings.TrimSpace(responseHeaders.Get(rateLimitResourceHeaderConstant))
	}

	bucket := state.bucketLocked(resource)
	bucket.known = true
	bucket.remaining = remaining
	if limit, limitPresent := parseHeaderInteger(responseHeaders, rateLimitLimitHeaderConstant); limitPresent {
		bucket.limit = limit
	}
	if bucket.limit < bucket.remaining {
		bucket.limit = bucket.remaining
	}
	if resetSeconds, resetPresent := parseHeaderInteger(responseHeaders, rateLimitResetHeaderConstant); resetPresent {
		bucket.resetAt = time.Unix(int64(resetSeconds), 0)
	}
}

func parseHeaderInteger(responseHeaders http.Header, headerName string) (int, bool) {
	headerValue := strings.TrimSpace(responseHeaders.Get(headerName))
	if len(headerValue) == 0 {
		return 0, false
	}
	parsedValue, parseError := strconv.Atoi(headerValue)
	if parseError != nil {
		return 0, false
	}
	return parsedValue, true
}
