package pipeline

import (
	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/repository"
)

// TaskEventObserver receives lifecycle notifications for per-repository tasks.
// Methods are called from worker goroutines and must be safe for concurrent use.
type TaskEventObserver interface {
	// TaskStarted notifies observers that a repository task acquired a worker.
	TaskStarted(key repository.FetchKey)
	// TaskServedFromCache reports a task answered without a request.
	TaskServedFromCache(key repository.FetchKey, status cache.Status)
	// TaskFetched reports the status returned by the API.
	TaskFetched(key repository.FetchKey, status githubapi.FileStatus)
	// TaskFailed reports a failure recorded as an outcome.
	TaskFailed(key repository.FetchKey, reason analysis.FailureReason, failure error)
}

// NoopTaskEventObserver discards all task events.
type NoopTaskEventObserver struct{}

// TaskStarted implements TaskEventObserver.
func (NoopTaskEventObserver) TaskStarted(repository.FetchKey) {}

// TaskServedFromCache implements TaskEventObserver.
func (NoopTaskEventObserver) TaskServedFromCache(repository.FetchKey, cache.Status) {}

// TaskFetched implements TaskEventObserver.
func (NoopTaskEventObserver) TaskFetched(repository.FetchKey, githubapi.FileStatus) {}

// TaskFailed implements TaskEventObserver.
func (NoopTaskEventObserver) TaskFailed(repository.FetchKey, analysis.FailureReason, error) {}
