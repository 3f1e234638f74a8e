package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/runerrors"
)

const (
	// DefaultWorkerCount bounds concurrently running repository tasks.
	DefaultWorkerCount = 16

	missingFetcherMessageConstant   = "orchestrator requires a file fetcher"
	missingStoreMessageConstant     = "orchestrator requires a cache store"
	missingAnalyzerMessageConstant  = "orchestrator requires an analyzer"
	clearCacheErrorTemplateConstant = "unable to clear cache before run: %w"
	cacheWriteFailedLogConstant     = "Failed to persist cache entry"
	runStartedLogConstant           = "Starting repository tasks"
	runFinishedLogConstant          = "Repository tasks finished"
	runAbortedLogConstant           = "Repository tasks aborted"
	cacheClearedLogConstant         = "Cleared cache before run"
	logFieldRepositoriesConstant    = "repositories"
	logFieldWorkersConstant         = "workers"
	logFieldFetchKeyConstant        = "fetch_key"
	logFieldFileNameConstant        = "file_name"
	logFieldCacheDirectoryConstant  = "cache_directory"
	logFieldDurationConstant        = "duration"
)

// FileFetcher retrieves one file, optionally conditioned on an ETag.
type FileFetcher interface {
	FetchFile(executionContext context.Context, key repository.FetchKey, etag string) (githubapi.FileResult, error)
}

// EntryStore caches fetch results.
type EntryStore interface {
	Get(key repository.FetchKey) (cache.Entry, bool)
	Put(key repository.FetchKey, entry cache.Entry) error
	Clear() error
}

// Options controls a run.
type Options struct {
	FileName   string
	Ref        string
	Workers    int
	ClearCache bool
	Revalidate bool
}

// Dependencies carries optional collaborators.
type Dependencies struct {
	Observer TaskEventObserver
	Logger   *zap.Logger
	Now      func() time.Time
}

// Orchestrator drives cache-through fetching and analysis across a bounded worker pool.
type Orchestrator struct {
	fetcher  FileFetcher
	store    EntryStore
	analyzer analysis.Analyzer
	options  Options
	observer TaskEventObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrchestrator validates collaborators and fills defaults.
func NewOrchestrator(fetcher FileFetcher, store EntryStore, analyzer analysis.Analyzer, options Options, dependencies Dependencies) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, errors.New(missingFetcherMessageConstant)
	}
	if store == nil {
		return nil, errors.New(missingStoreMessageConstant)
	}
	if analyzer == nil {
		return nil, errors.New(missingAnalyzerMessageConstant)
	}
	if options.Workers <= 0 {
		options.Workers = DefaultWorkerCount
	}

	observer := dependencies.Observer
	if observer == nil {
		observer = NoopTaskEventObserver{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := dependencies.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		fetcher:  fetcher,
		store:    store,
		analyzer: analyzer,
		options:  options,
		observer: observer,
		logger:   logger,
		now:      now,
	}, nil
}

// Run produces one outcome per repository, in input order. Only fatal errors are returned;
// they cancel every outstanding task.
func (orchestrator *Orchestrator) Run(executionContext context.Context, repositories []repository.Reference) ([]analysis.Outcome, error) {
	if orchestrator.options.ClearCache {
		if clearError := orchestrator.store.Clear(); clearError != nil {
			return nil, fmt.Errorf(clearCacheErrorTemplateConstant, clearError)
		}
		orchestrator.logger.Info(cacheClearedLogConstant, zap.String(logFieldCacheDirectoryConstant, directoryOf(orchestrator.store)))
	}

	startedAt := orchestrator.now()
	orchestrator.logger.Debug(runStartedLogConstant,
		zap.Int(logFieldRepositoriesConstant, len(repositories)),
		zap.Int(logFieldWorkersConstant, orchestrator.options.Workers),
		zap.String(logFieldFileNameConstant, orchestrator.options.FileName),
	)

	outcomes := make([]analysis.Outcome, len(repositories))
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(orchestrator.options.Workers)

	for repositoryIndex, reference := range repositories {
		repositoryIndex, reference := repositoryIndex, reference
		group.Go(func() error {
			outcome, fatalError := orchestrator.process(groupContext, reference)
			if fatalError != nil {
				return fatalError
			}
			outcomes[repositoryIndex] = outcome
			return nil
		})
	}

	if waitError := group.Wait(); waitError != nil {
		orchestrator.logger.Debug(runAbortedLogConstant, zap.Error(waitError))
		return nil, waitError
	}

	orchestrator.logger.Debug(runFinishedLogConstant,
		zap.Int(logFieldRepositoriesConstant, len(repositories)),
		zap.Duration(logFieldDurationConstant, orchestrator.now().Sub(startedAt)),
	)
	return outcomes, nil
}

func (orchestrator *Orchestrator) process(executionContext context.Context, reference repository.Reference) (analysis.Outcome, error) {
	key := repository.FetchKey{Repository: reference, FilePath: orchestrator.options.FileName, Ref: orchestrator.options.Ref}
	orchestrator.observer.TaskStarted(key)

	if contextError := executionContext.Err(); contextError != nil {
		return orchestrator.failed(key, analysis.FailureReasonCanceled, contextError), nil
	}

	cachedEntry, cacheHit := orchestrator.store.Get(key)
	if cacheHit && !orchestrator.options.Revalidate {
		orchestrator.observer.TaskServedFromCache(key, cachedEntry.Status)
		return orchestrator.analyzeEntry(reference, cachedEntry), nil
	}

	conditionalETag := ""
	if cacheHit && cachedEntry.Status == cache.StatusFound {
		conditionalETag = cachedEntry.ETag
	}

	fileResult, fetchError := orchestrator.fetcher.FetchFile(executionContext, key, conditionalETag)
	if fetchError != nil {
		if runerrors.IsFatal(fetchError) {
			return nil, fetchError
		}
		return orchestrator.failed(key, ClassifyFailure(fetchError), fetchError), nil
	}
	orchestrator.observer.TaskFetched(key, fileResult.Status)

	var freshEntry cache.Entry
	switch fileResult.Status {
	case githubapi.FileStatusNotModified:
		if !cacheHit {
			return orchestrator.failed(key, analysis.FailureReasonUnexpectedStatus, githubapi.UnexpectedStatusError{Operation: githubapi.FetchFileOperationName, StatusCode: http.StatusNotModified}), nil
		}
		freshEntry = cachedEntry
		freshEntry.FetchedAt = orchestrator.now()
	case githubapi.FileStatusNotFound:
		freshEntry = cache.Entry{Key: key, Status: cache.StatusNotFound, FetchedAt: orchestrator.now()}
	default:
		freshEntry = cache.Entry{Key: key, Status: cache.StatusFound, Content: fileResult.Content, ETag: fileResult.ETag, FetchedAt: orchestrator.now()}
	}

	if putError := orchestrator.store.Put(key, freshEntry); putError != nil {
		orchestrator.logger.Warn(cacheWriteFailedLogConstant, zap.String(logFieldFetchKeyConstant, key.String()), zap.Error(putError))
	}
	return orchestrator.analyzeEntry(reference, freshEntry), nil
}

func (orchestrator *Orchestrator) analyzeEntry(reference repository.Reference, entry cache.Entry) analysis.Outcome {
	if entry.Status == cache.StatusNotFound {
		return analysis.FileAbsent{Repository: reference}
	}
	return orchestrator.analyzer.Analyze(reference, entry.Content)
}

func (orchestrator *Orchestrator) failed(key repository.FetchKey, reason analysis.FailureReason, cause error) analysis.Outcome {
	orchestrator.observer.TaskFailed(key, reason, cause)
	return analysis.FetchFailed{Repository: key.Repository, Reason: reason, Cause: cause}
}

// ClassifyFailure maps a non-fatal fetch error to a failure reason.
func ClassifyFailure(fetchError error) analysis.FailureReason {
	var (
		rateLimitError   githubapi.RateLimitError
		serverError      githubapi.ServerError
		networkError     githubapi.NetworkError
		responseTooLarge githubapi.ResponseTooLargeError
	)
	switch {
	case githubapi.IsCanceled(fetchError):
		return analysis.FailureReasonCanceled
	case errors.As(fetchError, &rateLimitError):
		return analysis.FailureReasonRateLimited
	case errors.As(fetchError, &serverError):
		return analysis.FailureReasonServer
	case errors.As(fetchError, &networkError):
		return analysis.FailureReasonNetwork
	case errors.As(fetchError, &responseTooLarge):
		return analysis.FailureReasonResponseTooLarge
	default:
		return analysis.FailureReasonUnexpectedStatus
	}
}

type directoryReporter interface {
	Directory() string
}

func directoryOf(store EntryStore) string {
	if reporter, ok := store.(directoryReporter); ok {
		return reporter.Directory()
	}
	return ""
}
