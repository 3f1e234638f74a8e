package githubapi_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/internal/githubapi"
)

type steppingClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (clock *steppingClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *steppingClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.now = clock.now.Add(duration)
}

func rateLimitHeaders(limit int, remaining int, resetAt time.Time) http.Header {
	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	headers.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	headers.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
	return headers
}

func TestRateLimitStateWaitsForReset(testInstance *testing.T) {
	clock := &steppingClock{now: time.Unix(1_700_000_000, 0)}
	var observedDelays []time.Duration
	sleeper := func(sleepContext context.Context, duration time.Duration) error {
		observedDelays = append(observedDelays, duration)
		clock.Advance(duration)
		return nil
	}

	state := githubapi.NewRateLimitState(2, 2, 0, clock, sleeper)
	state.Observe(githubapi.CoreResource, rateLimitHeaders(60, 1, clock.Now().Add(30*time.Second)))

	release, acquireError := state.Acquire(context.Background(), githubapi.CoreResource)
	require.NoError(testInstance, acquireError)
	require.Equal(testInstance, []time.Duration{30 * time.Second}, observedDelays)

	snapshot := state.Snapshot(githubapi.CoreResource)
	require.Equal(testInstance, 59, snapshot.Remaining)
	require.Equal(testInstance, 1, snapshot.InFlight)

	release(nil)
	release(nil)
	require.Equal(testInstance, 0, state.Snapshot(githubapi.CoreResource).InFlight)
}

func TestRateLimitStateDecrementsOptimistically(testInstance *testing.T) {
	clock := &steppingClock{now: time.Unix(1_700_000_000, 0)}
	state := githubapi.NewRateLimitState(4, 0, 0, clock, nil)
	state.Observe(githubapi.SearchResource, rateLimitHeaders(30, 10, clock.Now().Add(time.Minute)))

	releases := make([]func(http.Header), 0, 3)
	for attemptIndex := 0; attemptIndex < 3; attemptIndex++ {
		release, acquireError := state.Acquire(context.Background(), githubapi.SearchResource)
		require.NoError(testInstance, acquireError)
		releases = append(releases, release)
	}

	snapshot := state.Snapshot(githubapi.SearchResource)
	require.Equal(testInstance, 7, snapshot.Remaining)
	require.Equal(testInstance, 3, snapshot.InFlight)
	require.Equal(testInstance, 3, snapshot.PeakInFlight)

	releases[0](rateLimitHeaders(30, 8, clock.Now().Add(time.Minute)))
	require.Equal(testInstance, 8, state.Snapshot(githubapi.SearchResource).Remaining)
	releases[1](nil)
	releases[2](nil)
	require.Equal(testInstance, 0, state.Snapshot(githubapi.SearchResource).InFlight)
	require.False(testInstance, state.Snapshot(githubapi.CoreResource).Known)
}

func TestRateLimitStateCancellationDuringWait(testInstance *testing.T) {
	clock := &steppingClock{now: time.Unix(1_700_000_000, 0)}
	state := githubapi.NewRateLimitState(1, 1, 0, clock, githubapi.ContextSleeper)
	state.Observe(githubapi.CoreResource, rateLimitHeaders(60, 0, clock.Now().Add(time.Hour)))

	executionContext, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, acquireError := state.Acquire(executionContext, githubapi.CoreResource)
	require.Error(testInstance, acquireError)
	require.True(testInstance, githubapi.IsCanceled(acquireError))
	require.Equal(testInstance, 0, state.Snapshot(githubapi.CoreResource).InFlight)
}

func TestRateLimitStateKeepsCallerBucket(testInstance *testing.T) {
	testCases := []struct {
		name           string
		headerResource string
	}{
		{name: "code_search_header", headerResource: "code_search"},
		{name: "search_header", headerResource: "search"},
		{name: "no_header"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			clock := &steppingClock{now: time.Unix(1_700_000_000, 0)}
			var observedDelays []time.Duration
			sleeper := func(sleepContext context.Context, duration time.Duration) error {
				observedDelays = append(observedDelays, duration)
				clock.Advance(duration)
				return nil
			}
			state := githubapi.NewRateLimitState(2, 0, 0, clock, sleeper)

			release, acquireError := state.Acquire(context.Background(), githubapi.SearchResource)
			require.NoError(testInstance, acquireError)
			exhaustedHeaders := rateLimitHeaders(30, 0, clock.Now().Add(time.Minute))
			if len(testCase.headerResource) > 0 {
				exhaustedHeaders.Set("X-RateLimit-Resource", testCase.headerResource)
			}
			release(exhaustedHeaders)

			snapshot := state.Snapshot(githubapi.SearchResource)
			require.True(testInstance, snapshot.Known)
			require.Zero(testInstance, snapshot.Remaining)

			secondRelease, secondAcquireError := state.Acquire(context.Background(), githubapi.SearchResource)
			require.NoError(testInstance, secondAcquireError)
			require.Equal(testInstance, []time.Duration{time.Minute}, observedDelays)
			secondRelease(nil)
			require.False(testInstance, state.Snapshot(githubapi.CoreResource).Known)
		})
	}
}
