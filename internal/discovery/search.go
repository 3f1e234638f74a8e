package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/repository"
)

const (
	organizationQualifierPrefixConstant = "org:"
	querySeparatorConstant              = " "
	partialResultsLogMessageConstant    = "Code search results are partial"
	searchPageLogMessageConstant        = "Fetched code search page"
	itemsSeenLogFieldConstant           = "items_seen"
	repositoriesLogFieldConstant        = "repositories"
	totalCountLogFieldConstant          = "total_count"
	resultCeilingLogFieldConstant       = "result_ceiling"
)

// SearchDiscoverer resolves repositories from a paginated code search.
type SearchDiscoverer struct {
	searcher      CodeSearcher
	query         string
	resultCeiling int
	logger        *zap.Logger
}

// NewSearchDiscoverer scopes query to organization when one is given. A non-positive ceiling uses DefaultResultCeiling.
func NewSearchDiscoverer(searcher CodeSearcher, query string, organization string, resultCeiling int, logger *zap.Logger) *SearchDiscoverer {
	if resultCeiling <= 0 {
		resultCeiling = DefaultResultCeiling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchDiscoverer{
		searcher:      searcher,
		query:         ScopeQuery(query, organization),
		resultCeiling: resultCeiling,
		logger:        logger,
	}
}

// Query returns the scoped query sent to the API.
func (discoverer *SearchDiscoverer) Query() string {
	return discoverer.query
}

// ScopeQuery prefixes an org: qualifier unless organization is blank.
func ScopeQuery(query string, organization string) string {
	trimmedQuery := strings.TrimSpace(query)
	trimmedOrganization := strings.TrimSpace(organization)
	if len(trimmedOrganization) == 0 {
		return trimmedQuery
	}
	return organizationQualifierPrefixConstant + trimmedOrganization + querySeparatorConstant + trimmedQuery
}

// Discover follows pagination until exhausted or until the result ceiling is reached.
// Hitting the ceiling with results remaining, or an incomplete API response, marks the result partial.
func (discoverer *SearchDiscoverer) Discover(executionContext context.Context) (Result, error) {
	repositorySet := repository.NewSet()
	result := Result{Source: SourceSearch}
	itemsSeen := 0
	pageURL := ""

	for {
		page, searchError := discoverer.searcher.SearchCode(executionContext, discoverer.query, pageURL)
		if searchError != nil {
			return Result{}, searchError
		}
		if page.TotalCount > result.TotalCount {
			result.TotalCount = page.TotalCount
		}
		if page.Incomplete {
			result.Partial = true
		}

		ceilingReached := false
		for _, reference := range page.Repositories {
			if itemsSeen >= discoverer.resultCeiling {
				ceilingReached = true
				break
			}
			itemsSeen++
			repositorySet.Add(reference)
		}

		discoverer.logger.Debug(searchPageLogMessageConstant,
			zap.Int(itemsSeenLogFieldConstant, itemsSeen),
			zap.Int(repositoriesLogFieldConstant, repositorySet.Len()),
			zap.Int(totalCountLogFieldConstant, page.TotalCount),
		)

		pageURL = page.NextURL
		if ceilingReached || (itemsSeen >= discoverer.resultCeiling && len(pageURL) > 0) {
			result.Partial = true
			break
		}
		if len(pageURL) == 0 {
			break
		}
	}

	if result.TotalCount > itemsSeen {
		result.Partial = true
	}

	if result.Partial {
		discoverer.logger.Warn(partialResultsLogMessageConstant,
			zap.Int(itemsSeenLogFieldConstant, itemsSeen),
			zap.Int(totalCountLogFieldConstant, result.TotalCount),
			zap.Int(resultCeilingLogFieldConstant, discoverer.resultCeiling),
		)
	}

	result.Repositories = repositorySet.References()
	return result, nil
}
