package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/runerrors"
)

const (
	// DefaultRepositoryListPath is the static list consulted when no query is given.
	DefaultRepositoryListPath = "repos.json"
	// DefaultResultCeiling bounds the number of code search results consumed per run.
	DefaultResultCeiling = 1000

	repositorySourceFieldConstant  = "repos"
	missingSourceMessageConstant   = "either a repository list path or a search query is required"
	missingSearcherMessageConstant = "code search is unavailable"
	queryFieldConstant             = "query"
	precedenceLogMessageConstant   = "Search query takes precedence over repository list"
	repositoryListLogFieldConstant = "repos"
	searchQueryLogFieldConstant    = "query"
)

// Source identifies where a repository set came from.
type Source string

// Supported sources.
const (
	SourceStatic Source = Source("static")
	SourceSearch Source = Source("search")
)

// Result is a deduplicated repository set in discovery order.
type Result struct {
	Repositories []repository.Reference
	Partial      bool
	Source       Source
	TotalCount   int
}

// Discoverer resolves the repositories targeted by a run.
type Discoverer interface {
	Discover(executionContext context.Context) (Result, error)
}

// CodeSearcher returns one page of code search results.
type CodeSearcher interface {
	SearchCode(executionContext context.Context, query string, pageURL string) (githubapi.SearchPage, error)
}

// Options selects a discovery mode.
type Options struct {
	RepositoryListPath string
	Query              string
	Organization       string
	ResultCeiling      int
}

// Select returns exactly one discoverer. A non-empty query wins over a repository list path.
func Select(options Options, searcher CodeSearcher, logger *zap.Logger) (Discoverer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmedQuery := strings.TrimSpace(options.Query)
	trimmedPath := strings.TrimSpace(options.RepositoryListPath)

	if len(trimmedQuery) > 0 {
		if searcher == nil {
			return nil, runerrors.ConfigurationError{Field: queryFieldConstant, Message: missingSearcherMessageConstant}
		}
		if len(trimmedPath) > 0 && trimmedPath != DefaultRepositoryListPath {
			logger.Info(precedenceLogMessageConstant,
				zap.String(searchQueryLogFieldConstant, trimmedQuery),
				zap.String(repositoryListLogFieldConstant, trimmedPath),
			)
		}
		return NewSearchDiscoverer(searcher, trimmedQuery, options.Organization, options.ResultCeiling, logger), nil
	}

	if len(trimmedPath) > 0 {
		return NewStaticListDiscoverer(trimmedPath, nil), nil
	}

	return nil, runerrors.ConfigurationError{Field: repositorySourceFieldConstant, Message: missingSourceMessageConstant}
}
