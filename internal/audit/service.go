package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/discovery"
	"github.com/temirov/ygg/internal/githubauth"
	"github.com/temirov/ygg/internal/pipeline"
	"github.com/temirov/ygg/internal/runerrors"
)

const (
	tokenSourceFieldConstant                 = "token_source"
	tokenUnavailableMessageConstant          = "an access token is required for code search and file retrieval"
	tokenResolutionFailedMessageConstant     = "unable to resolve the access token"
	clientFactoryFailedMessageConstant       = "unable to construct the GitHub client"
	cacheOpenErrorTemplateConstant           = "unable to open cache: %w"
	repositoryListWriteErrorTemplateConstant = "unable to write repository list: %w"
	fileNameIgnoredLogConstant               = "File name given without package or search; listing repositories only"
	repositoriesDiscoveredLogConstant        = "Repositories discovered"
	repositoryListWrittenLogConstant         = "Repository list written"
	runCompletedLogConstant                  = "Audit completed"
	logFieldModeConstant                     = "mode"
	logFieldFileNameConstant                 = "file_name"
	logFieldSourceConstant                   = "source"
	logFieldRepositoryCountConstant          = "repositories"
	logFieldPartialConstant                  = "partial"
	logFieldPathConstant                     = "path"
	logFieldFoundConstant                    = "found"
	logFieldFailedConstant                   = "failed"
)

// Service coordinates discovery, fetching, analysis, and reporting for one audit run.
type Service struct {
	dependencies Dependencies
	outputWriter io.Writer
	errorWriter  io.Writer
}

// NewService constructs a Service using the provided dependencies.
func NewService(dependencies Dependencies, outputWriter io.Writer, errorWriter io.Writer) *Service {
	if outputWriter == nil {
		outputWriter = io.Discard
	}
	if errorWriter == nil {
		errorWriter = io.Discard
	}
	return &Service{
		dependencies: dependencies.withDefaults(),
		outputWriter: outputWriter,
		errorWriter:  errorWriter,
	}
}

// Run executes the service according to the provided options. Configuration problems are
// reported before any network request is issued.
func (service *Service) Run(executionContext context.Context, options CommandOptions) error {
	logger := service.dependencies.Logger

	resolved, modeError := analysis.ResolveMode(analysis.ModeOptions{
		PackageName:  options.PackageName,
		FileName:     options.FileName,
		SearchString: options.SearchString,
	})
	if modeError != nil {
		return modeError
	}
	if trimmedFileName := strings.TrimSpace(options.FileName); resolved.Mode == analysis.ModeListing && len(trimmedFileName) > 0 {
		logger.Warn(fileNameIgnoredLogConstant, zap.String(logFieldFileNameConstant, trimmedFileName))
	}

	var client APIClient
	if len(options.Query) > 0 || resolved.FetchesContent() {
		constructedClient, clientError := service.buildClient(options)
		if clientError != nil {
			return clientError
		}
		client = constructedClient
	}

	var searcher discovery.CodeSearcher
	if client != nil {
		searcher = client
	}
	discoverer, selectError := discovery.Select(discovery.Options{
		RepositoryListPath: options.RepositoryListPath,
		Query:              options.Query,
		Organization:       options.Organization,
		ResultCeiling:      options.ResultCeiling,
	}, searcher, logger)
	if selectError != nil {
		return selectError
	}

	discovered, discoverError := discoverer.Discover(executionContext)
	if discoverError != nil {
		return discoverError
	}
	logger.Info(repositoriesDiscoveredLogConstant,
		zap.String(logFieldSourceConstant, string(discovered.Source)),
		zap.Int(logFieldRepositoryCountConstant, len(discovered.Repositories)),
		zap.Bool(logFieldPartialConstant, discovered.Partial),
	)

	if options.WriteRepositoryList && discovered.Source == discovery.SourceSearch {
		if writeError := service.dependencies.RepositoryListWriter(options.RepositoryListPath, discovered.Repositories); writeError != nil {
			return fmt.Errorf(repositoryListWriteErrorTemplateConstant, writeError)
		}
		logger.Info(repositoryListWrittenLogConstant, zap.String(logFieldPathConstant, options.RepositoryListPath))
	}

	var outcomes []analysis.Outcome
	if resolved.FetchesContent() {
		runOutcomes, runError := service.runPipeline(executionContext, client, resolved, options, discovered)
		if runError != nil {
			return runError
		}
		outcomes = runOutcomes
	}

	report := pipeline.BuildReport(resolved, discovered.Repositories, outcomes, discovered.Partial)
	summary := report.Summary()
	logger.Info(runCompletedLogConstant,
		zap.String(logFieldModeConstant, string(resolved.Mode)),
		zap.Int(logFieldRepositoryCountConstant, summary.Repositories),
		zap.Int(logFieldFoundConstant, summary.Found),
		zap.Int(logFieldFailedConstant, summary.Failed),
	)

	renderer := ReportRenderer{Format: options.Format, OutputWriter: service.outputWriter, ErrorWriter: service.errorWriter}
	return renderer.Render(report)
}

func (service *Service) buildClient(options CommandOptions) (APIClient, error) {
	token, tokenError := service.dependencies.TokenResolver.ResolveToken(options.TokenSource)
	if tokenError != nil {
		var missingTokenError githubauth.MissingTokenError
		if errors.As(tokenError, &missingTokenError) {
			return nil, runerrors.ConfigurationError{Field: tokenSourceFieldConstant, Message: tokenUnavailableMessageConstant, Cause: missingTokenError}
		}
		return nil, runerrors.ConfigurationError{Field: tokenSourceFieldConstant, Message: tokenResolutionFailedMessageConstant, Cause: tokenError}
	}

	client, clientError := service.dependencies.ClientFactory(options.API, token)
	if clientError != nil {
		if runerrors.IsFatal(clientError) {
			return nil, clientError
		}
		return nil, runerrors.ConfigurationError{Field: tokenSourceFieldConstant, Message: clientFactoryFailedMessageConstant, Cause: clientError}
	}
	return client, nil
}

func (service *Service) runPipeline(executionContext context.Context, client APIClient, resolved analysis.ResolvedMode, options CommandOptions, discovered discovery.Result) ([]analysis.Outcome, error) {
	store, openError := service.dependencies.StoreOpener(cache.Options{
		Directory:     options.CacheDirectory,
		MemoryEntries: options.CacheMemoryEntries,
		Logger:        service.dependencies.Logger,
	})
	if openError != nil {
		return nil, fmt.Errorf(cacheOpenErrorTemplateConstant, openError)
	}

	orchestrator, orchestratorError := pipeline.NewOrchestrator(client, store, analysis.NewAnalyzer(resolved), pipeline.Options{
		FileName:   resolved.FileName,
		Ref:        options.Ref,
		Workers:    options.Workers,
		ClearCache: options.ClearCache,
		Revalidate: options.Revalidate,
	}, pipeline.Dependencies{
		Observer: service.dependencies.Observer,
		Logger:   service.dependencies.Logger,
		Now:      service.dependencies.Now,
	})
	if orchestratorError != nil {
		return nil, orchestratorError
	}

	return orchestrator.Run(executionContext, discovered.Repositories)
}
