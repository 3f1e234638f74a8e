package audit

import (
	"strings"

	"github.com/temirov/ygg/internal/discovery"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/githubauth"
	"github.com/temirov/ygg/internal/pipeline"
	pathutils "github.com/temirov/ygg/internal/utils/path"
)

const (
	configurationKeySeparatorConstant          = "."
	configurationReposKeyConstant              = "repos"
	configurationFormatKeyConstant             = "format"
	configurationTokenSourceKeyConstant        = "token_source"
	configurationResultCeilingKeyConstant      = "result_ceiling"
	configurationConcurrencyKeyConstant        = "concurrency"
	configurationAPIKeyConstant                = "api"
	configurationBaseURLKeyConstant            = "base_url"
	configurationUserAgentKeyConstant          = "user_agent"
	configurationMaxConcurrencyKeyConstant     = "max_concurrency"
	configurationRetryLimitKeyConstant         = "retry_limit"
	configurationRetryBaseDelayKeyConstant     = "retry_base_delay"
	configurationRetryMaxDelayKeyConstant      = "retry_max_delay"
	configurationRetryMultiplierKeyConstant    = "retry_multiplier"
	configurationRateLimitThresholdKeyConstant = "rate_limit_threshold"
	configurationSearchPageSizeKeyConstant     = "search_page_size"
	configurationMaxResponseBytesKeyConstant   = "max_response_bytes"
)

var auditConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// CommandConfiguration captures persistent settings for the audit command.
type CommandConfiguration struct {
	RepositoryListPath  string                  `mapstructure:"repos"`
	Query               string                  `mapstructure:"query"`
	Organization        string                  `mapstructure:"org"`
	PackageName         string                  `mapstructure:"package"`
	FileName            string                  `mapstructure:"filename"`
	SearchString        string                  `mapstructure:"search"`
	Ref                 string                  `mapstructure:"ref"`
	Format              string                  `mapstructure:"format"`
	ClearCache          bool                    `mapstructure:"clear_cache"`
	Revalidate          bool                    `mapstructure:"revalidate"`
	WriteRepositoryList bool                    `mapstructure:"write_repos"`
	TokenSource         string                  `mapstructure:"token_source"`
	ResultCeiling       int                     `mapstructure:"result_ceiling"`
	Concurrency         int                     `mapstructure:"concurrency"`
	API                 githubapi.Configuration `mapstructure:"api"`
}

// DefaultCommandConfiguration returns baseline configuration values for the audit command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryListPath: discovery.DefaultRepositoryListPath,
		Format:             string(ReportFormatText),
		TokenSource:        githubauth.DefaultTokenSource,
		ResultCeiling:      discovery.DefaultResultCeiling,
		Concurrency:        pipeline.DefaultWorkerCount,
		API:                githubapi.DefaultConfiguration(),
	}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	apiKey := rootKey + configurationKeySeparatorConstant + configurationAPIKeyConstant + configurationKeySeparatorConstant
	rootPrefix := rootKey + configurationKeySeparatorConstant
	return map[string]any{
		rootPrefix + configurationReposKeyConstant:          defaults.RepositoryListPath,
		rootPrefix + configurationFormatKeyConstant:         defaults.Format,
		rootPrefix + configurationTokenSourceKeyConstant:    defaults.TokenSource,
		rootPrefix + configurationResultCeilingKeyConstant:  defaults.ResultCeiling,
		rootPrefix + configurationConcurrencyKeyConstant:    defaults.Concurrency,
		apiKey + configurationBaseURLKeyConstant:            defaults.API.BaseURL,
		apiKey + configurationUserAgentKeyConstant:          defaults.API.UserAgent,
		apiKey + configurationMaxConcurrencyKeyConstant:     defaults.API.MaxConcurrency,
		apiKey + configurationRetryLimitKeyConstant:         defaults.API.RetryLimit,
		apiKey + configurationRetryBaseDelayKeyConstant:     defaults.API.RetryBaseDelay,
		apiKey + configurationRetryMaxDelayKeyConstant:      defaults.API.RetryMaxDelay,
		apiKey + configurationRetryMultiplierKeyConstant:    defaults.API.RetryMultiplier,
		apiKey + configurationRateLimitThresholdKeyConstant: defaults.API.RateLimitThreshold,
		apiKey + configurationSearchPageSizeKeyConstant:     defaults.API.SearchPageSize,
		apiKey + configurationMaxResponseBytesKeyConstant:   defaults.API.MaxResponseBytes,
	}
}

// Sanitize trims whitespace and applies defaults to unset configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.RepositoryListPath = auditConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.RepositoryListPath))
	sanitized.Query = strings.TrimSpace(configuration.Query)
	sanitized.Organization = strings.TrimSpace(configuration.Organization)
	sanitized.PackageName = strings.TrimSpace(configuration.PackageName)
	sanitized.FileName = strings.TrimSpace(configuration.FileName)
	sanitized.Ref = strings.TrimSpace(configuration.Ref)
	sanitized.Format = strings.ToLower(strings.TrimSpace(configuration.Format))
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)

	if len(sanitized.Format) == 0 {
		sanitized.Format = defaults.Format
	}
	if len(sanitized.TokenSource) == 0 {
		sanitized.TokenSource = defaults.TokenSource
	}
	if sanitized.ResultCeiling <= 0 {
		sanitized.ResultCeiling = defaults.ResultCeiling
	}
	if sanitized.Concurrency <= 0 {
		sanitized.Concurrency = defaults.Concurrency
	}
	sanitized.API = configuration.API.Sanitize()

	return sanitized
}
