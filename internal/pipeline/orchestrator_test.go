package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/pipeline"
	"github.com/temirov/ygg/internal/repository"
)

const leftPadLockfileConstant = `{"lockfileVersion":3,"packages":{"node_modules/left-pad":{"version":"1.3.0"}}}`

type scriptedResponse struct {
	result githubapi.FileResult
	err    error
}

type scriptedFetcher struct {
	responses    map[string]scriptedResponse
	delay        time.Duration
	calls        atomic.Int32
	inFlight     atomic.Int32
	peakInFlight atomic.Int32
	mutex        sync.Mutex
	etags        map[string]string
}

func newScriptedFetcher(responses map[string]scriptedResponse) *scriptedFetcher {
	return &scriptedFetcher{responses: responses, etags: make(map[string]string)}
}

func (fetcher *scriptedFetcher) FetchFile(executionContext context.Context, key repository.FetchKey, etag string) (githubapi.FileResult, error) {
	fetcher.calls.Add(1)
	current := fetcher.inFlight.Add(1)
	defer fetcher.inFlight.Add(-1)
	for {
		peak := fetcher.peakInFlight.Load()
		if current <= peak || fetcher.peakInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	fetcher.mutex.Lock()
	fetcher.etags[key.Repository.Key()] = etag
	fetcher.mutex.Unlock()

	if fetcher.delay > 0 {
		select {
		case <-executionContext.Done():
			return githubapi.FileResult{}, executionContext.Err()
		case <-time.After(fetcher.delay):
		}
	}

	response, exists := fetcher.responses[key.Repository.Key()]
	if !exists {
		return githubapi.FileResult{Status: githubapi.FileStatusNotFound}, nil
	}
	return response.result, response.err
}

func (fetcher *scriptedFetcher) etagFor(identifier string) string {
	fetcher.mutex.Lock()
	defer fetcher.mutex.Unlock()
	return fetcher.etags[identifier]
}

func openStore(testInstance *testing.T) *cache.Store {
	testInstance.Helper()
	store, openError := cache.Open(cache.Options{Directory: testInstance.TempDir()})
	require.NoError(testInstance, openError)
	return store
}

func mustReferences(testInstance *testing.T, identifiers ...string) []repository.Reference {
	testInstance.Helper()
	references := make([]repository.Reference, 0, len(identifiers))
	for _, identifier := range identifiers {
		reference, parseError := repository.Parse(identifier)
		require.NoError(testInstance, parseError)
		references = append(references, reference)
	}
	return references
}

func runPipeline(testInstance *testing.T, fetcher pipeline.FileFetcher, store pipeline.EntryStore, resolved analysis.ResolvedMode, options pipeline.Options, repositories []repository.Reference) ([]analysis.Outcome, error) {
	testInstance.Helper()
	options.FileName = resolved.FileName
	orchestrator, constructionError := pipeline.NewOrchestrator(fetcher, store, analysis.NewAnalyzer(resolved), options, pipeline.Dependencies{})
	require.NoError(testInstance, constructionError)
	return orchestrator.Run(context.Background(), repositories)
}

func TestPackageAuditScenario(testInstance *testing.T) {
	fetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/app": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte(leftPadLockfileConstant), ETag: `"v1"`}},
	})
	resolved, resolveError := analysis.ResolveMode(analysis.ModeOptions{PackageName: "left-pad"})
	require.NoError(testInstance, resolveError)

	repositories := mustReferences(testInstance, "acme/app", "acme/lib")
	outcomes, runError := runPipeline(testInstance, fetcher, openStore(testInstance), resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, runError)
	require.Len(testInstance, outcomes, 2)

	require.Equal(testInstance, analysis.VersionFound{Repository: repositories[0], Versions: []string{"1.3.0"}}, outcomes[0])
	require.Equal(testInstance, analysis.FileAbsent{Repository: repositories[1]}, outcomes[1])

	report := pipeline.BuildReport(resolved, repositories, outcomes, false)
	require.Len(testInstance, report.VersionGroups, 1)
	require.Equal(testInstance, "1.3.0", report.VersionGroups[0].Version)
	require.Equal(testInstance, "acme/app", report.VersionGroups[0].Repositories[0].String())
	require.Equal(testInstance, "acme/lib", report.Absent[0].String())
	require.Empty(testInstance, report.Failed)
}

func TestStringSearchScenario(testInstance *testing.T) {
	matchingConfiguration := []byte("name: service\nenable-feature: true\n")
	fetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/api": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: matchingConfiguration}},
		"acme/web": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: matchingConfiguration}},
	})
	resolved, resolveError := analysis.ResolveMode(analysis.ModeOptions{FileName: "config.yaml", SearchString: "enable-feature: true"})
	require.NoError(testInstance, resolveError)

	repositories := mustReferences(testInstance, "acme/web", "acme/infra", "acme/api")
	outcomes, runError := runPipeline(testInstance, fetcher, openStore(testInstance), resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, runError)

	report := pipeline.BuildReport(resolved, repositories, outcomes, false)
	require.Len(testInstance, report.Matches, 2)
	require.Equal(testInstance, "acme/api", report.Matches[0].Repository.String())
	require.Equal(testInstance, "acme/web", report.Matches[1].Repository.String())
	require.Equal(testInstance, 2, report.Matches[0].LineNumber)
	require.Equal(testInstance, []string{"acme/infra"}, []string{report.Absent[0].String()})
	require.Empty(testInstance, report.Failed)
	require.Empty(testInstance, report.NoMatch)
	require.Equal(testInstance, pipeline.Summary{Repositories: 3, Found: 2, Absent: 1}, report.Summary())
}

func TestCacheServesRepeatRuns(testInstance *testing.T) {
	fetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/app": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte(leftPadLockfileConstant)}},
	})
	store := openStore(testInstance)
	resolved := analysis.ResolvedMode{Mode: analysis.ModePackageAudit, FileName: "package-lock.json", Query: "left-pad"}
	repositories := mustReferences(testInstance, "acme/app", "acme/lib")

	firstOutcomes, firstError := runPipeline(testInstance, fetcher, store, resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, int32(2), fetcher.calls.Load())

	secondOutcomes, secondError := runPipeline(testInstance, fetcher, store, resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, int32(2), fetcher.calls.Load())
	require.Equal(testInstance, firstOutcomes, secondOutcomes)

	_, clearedError := runPipeline(testInstance, fetcher, store, resolved, pipeline.Options{ClearCache: true}, repositories)
	require.NoError(testInstance, clearedError)
	require.Equal(testInstance, int32(4), fetcher.calls.Load())
}

func TestRevalidationSendsStoredETag(testInstance *testing.T) {
	store := openStore(testInstance)
	resolved := analysis.ResolvedMode{Mode: analysis.ModePackageAudit, FileName: "package-lock.json", Query: "left-pad"}
	repositories := mustReferences(testInstance, "acme/app")

	initialFetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/app": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte(leftPadLockfileConstant), ETag: `"v1"`}},
	})
	_, initialError := runPipeline(testInstance, initialFetcher, store, resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, initialError)

	revalidatingFetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/app": {result: githubapi.FileResult{Status: githubapi.FileStatusNotModified, ETag: `"v1"`}},
	})
	outcomes, revalidationError := runPipeline(testInstance, revalidatingFetcher, store, resolved, pipeline.Options{Revalidate: true}, repositories)
	require.NoError(testInstance, revalidationError)
	require.Equal(testInstance, `"v1"`, revalidatingFetcher.etagFor("acme/app"))
	require.Equal(testInstance, analysis.VersionFound{Repository: repositories[0], Versions: []string{"1.3.0"}}, outcomes[0])
}

func TestFailuresAreRecordedPerRepository(testInstance *testing.T) {
	fetcher := newScriptedFetcher(map[string]scriptedResponse{
		"acme/flaky":  {err: githubapi.RetryExhaustedError{Operation: githubapi.FetchFileOperationName, Attempts: 4, Cause: githubapi.ServerError{Operation: githubapi.FetchFileOperationName, StatusCode: 502}}},
		"acme/broken": {result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte("{not json")}},
		"acme/down":   {err: githubapi.NetworkError{Operation: githubapi.FetchFileOperationName, Cause: errors.New("connection reset")}},
	})
	store := openStore(testInstance)
	resolved := analysis.ResolvedMode{Mode: analysis.ModePackageAudit, FileName: "package-lock.json", Query: "left-pad"}
	repositories := mustReferences(testInstance, "acme/flaky", "acme/broken", "acme/down")

	outcomes, runError := runPipeline(testInstance, fetcher, store, resolved, pipeline.Options{}, repositories)
	require.NoError(testInstance, runError)

	reasons := make(map[string]analysis.FailureReason)
	for _, outcome := range outcomes {
		failure, isFailure := outcome.(analysis.FetchFailed)
		require.True(testInstance, isFailure)
		reasons[failure.Repository.String()] = failure.Reason
	}
	require.Equal(testInstance, map[string]analysis.FailureReason{
		"acme/flaky":  analysis.FailureReasonServer,
		"acme/broken": analysis.FailureReasonParse,
		"acme/down":   analysis.FailureReasonNetwork,
	}, reasons)

	_, flakyCached := store.Get(repository.FetchKey{Repository: repositories[0], FilePath: "package-lock.json"})
	require.False(testInstance, flakyCached)
}

func TestFatalErrorCancelsRun(testInstance *testing.T) {
	responses := map[string]scriptedResponse{
		"acme/denied": {err: githubapi.AuthenticationError{Operation: githubapi.FetchFileOperationName, StatusCode: 401}},
	}
	identifiers := []string{"acme/denied"}
	for repositoryIndex := 0; repositoryIndex < 20; repositoryIndex++ {
		identifier := fmt.Sprintf("acme/service-%02d", repositoryIndex)
		identifiers = append(identifiers, identifier)
		responses[identifier] = scriptedResponse{result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte(leftPadLockfileConstant)}}
	}
	fetcher := newScriptedFetcher(responses)
	fetcher.delay = 20 * time.Millisecond

	resolved := analysis.ResolvedMode{Mode: analysis.ModePackageAudit, FileName: "package-lock.json", Query: "left-pad"}
	outcomes, runError := runPipeline(testInstance, fetcher, openStore(testInstance), resolved, pipeline.Options{Workers: 2}, mustReferences(testInstance, identifiers...))

	var authenticationError githubapi.AuthenticationError
	require.ErrorAs(testInstance, runError, &authenticationError)
	require.Nil(testInstance, outcomes)
	require.Less(testInstance, fetcher.calls.Load(), int32(len(identifiers)))
}

func TestWorkerPoolBoundsInFlightFetches(testInstance *testing.T) {
	const workerCount = 3
	responses := make(map[string]scriptedResponse)
	identifiers := make([]string, 0, 30)
	for repositoryIndex := 0; repositoryIndex < 30; repositoryIndex++ {
		identifier := fmt.Sprintf("acme/repo-%02d", repositoryIndex)
		identifiers = append(identifiers, identifier)
		responses[identifier] = scriptedResponse{result: githubapi.FileResult{Status: githubapi.FileStatusFound, Content: []byte(leftPadLockfileConstant)}}
	}
	fetcher := newScriptedFetcher(responses)
	fetcher.delay = 5 * time.Millisecond

	resolved := analysis.ResolvedMode{Mode: analysis.ModePackageAudit, FileName: "package-lock.json", Query: "left-pad"}
	outcomes, runError := runPipeline(testInstance, fetcher, openStore(testInstance), resolved, pipeline.Options{Workers: workerCount}, mustReferences(testInstance, identifiers...))
	require.NoError(testInstance, runError)
	require.Len(testInstance, outcomes, 30)
	require.LessOrEqual(testInstance, fetcher.peakInFlight.Load(), int32(workerCount))
	require.Equal(testInstance, int32(30), fetcher.calls.Load())
}

func TestNewOrchestratorRequiresAnalyzer(testInstance *testing.T) {
	_, constructionError := pipeline.NewOrchestrator(newScriptedFetcher(nil), openStore(testInstance), nil, pipeline.Options{}, pipeline.Dependencies{})
	require.Error(testInstance, constructionError)
}
