package githubapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/runerrors"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultMaxConcurrency bounds in-flight requests across the process.
	DefaultMaxConcurrency = 16
	// DefaultRetryLimit is the total number of attempts per request.
	DefaultRetryLimit = 4
	// DefaultRetryBaseDelay is the first backoff delay.
	DefaultRetryBaseDelay = 500 * time.Millisecond
	// DefaultRetryMaxDelay caps a single backoff delay.
	DefaultRetryMaxDelay = 30 * time.Second
	// DefaultRetryMultiplier grows the delay between attempts.
	DefaultRetryMultiplier = 2.0
	// DefaultRateLimitThreshold is the remaining quota at which requests wait for the reset.
	DefaultRateLimitThreshold = 2
	// DefaultSearchPageSize is the per_page value for code search.
	DefaultSearchPageSize = 100
	// DefaultMaxResponseBytes bounds a single response body.
	DefaultMaxResponseBytes int64 = 64 << 20
	// DefaultUserAgent identifies the client to the API.
	DefaultUserAgent = "ygg"

	apiVersionHeaderConstant      = "X-GitHub-Api-Version"
	apiVersionValueConstant       = "2022-11-28"
	authorizationHeaderConstant   = "Authorization"
	authorizationPrefixConstant   = "Bearer "
	acceptHeaderConstant          = "Accept"
	rawContentAcceptConstant      = "application/vnd.github.raw"
	jsonAcceptConstant            = "application/vnd.github+json"
	userAgentHeaderConstant       = "User-Agent"
	ifNoneMatchHeaderConstant     = "If-None-Match"
	etagHeaderConstant            = "ETag"
	retryAfterHeaderConstant      = "Retry-After"
	emptyTokenMessageConstant     = "a GitHub token is required"
	tokenFieldNameConstant        = "token"
	baseURLFieldNameConstant      = "api.base_url"
	invalidBaseURLMessageConstant = "invalid API base URL"
	requestLogMessageConstant     = "GitHub API request"
	retryLogMessageConstant       = "Retrying GitHub API request"
	operationLogFieldConstant     = "operation"
	urlLogFieldConstant           = "url"
	statusLogFieldConstant        = "status"
	attemptLogFieldConstant       = "attempt"
	delayLogFieldConstant         = "delay"
)

// Configuration captures client tunables.
type Configuration struct {
	BaseURL            string        `mapstructure:"base_url"`
	UserAgent          string        `mapstructure:"user_agent"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	RetryLimit         int           `mapstructure:"retry_limit"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay      time.Duration `mapstructure:"retry_max_delay"`
	RetryMultiplier    float64       `mapstructure:"retry_multiplier"`
	RateLimitThreshold int           `mapstructure:"rate_limit_threshold"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	SearchPageSize     int           `mapstructure:"search_page_size"`
	MaxResponseBytes   int64         `mapstructure:"max_response_bytes"`
}

// DefaultConfiguration returns the client defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		BaseURL:            DefaultBaseURL,
		UserAgent:          DefaultUserAgent,
		MaxConcurrency:     DefaultMaxConcurrency,
		RetryLimit:         DefaultRetryLimit,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		RetryMaxDelay:      DefaultRetryMaxDelay,
		RetryMultiplier:    DefaultRetryMultiplier,
		RateLimitThreshold: DefaultRateLimitThreshold,
		SearchPageSize:     DefaultSearchPageSize,
		MaxResponseBytes:   DefaultMaxResponseBytes,
	}
}

// Sanitize fills zero values with defaults.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration
	sanitized.BaseURL = strings.TrimRight(strings.TrimSpace(sanitized.BaseURL), "/")
	if len(sanitized.BaseURL) == 0 {
		sanitized.BaseURL = defaults.BaseURL
	}
	if len(strings.TrimSpace(sanitized.UserAgent)) == 0 {
		sanitized.UserAgent = defaults.UserAgent
	}
	if sanitized.MaxConcurrency <= 0 {
		sanitized.MaxConcurrency = defaults.MaxConcurrency
	}
	if sanitized.RetryLimit <= 0 {
		sanitized.RetryLimit = defaults.RetryLimit
	}
	if sanitized.RetryBaseDelay <= 0 {
		sanitized.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if sanitized.RetryMaxDelay <= 0 {
		sanitized.RetryMaxDelay = defaults.RetryMaxDelay
	}
	if sanitized.RetryMaxDelay < sanitized.RetryBaseDelay {
		sanitized.RetryMaxDelay = sanitized.RetryBaseDelay
	}
	if sanitized.RetryMultiplier < 1 {
		sanitized.RetryMultiplier = defaults.RetryMultiplier
	}
	if sanitized.RateLimitThreshold < 0 {
		sanitized.RateLimitThreshold = 0
	}
	if sanitized.RequestsPerSecond < 0 {
		sanitized.RequestsPerSecond = 0
	}
	if sanitized.SearchPageSize <= 0 || sanitized.SearchPageSize > DefaultSearchPageSize {
		sanitized.SearchPageSize = defaults.SearchPageSize
	}
	if sanitized.MaxResponseBytes <= 0 {
		sanitized.MaxResponseBytes = defaults.MaxResponseBytes
	}
	return sanitized
}

// HTTPClient issues HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Dependencies carries optional collaborators; zero values select production defaults.
type Dependencies struct {
	HTTPClient HTTPClient
	Logger     *zap.Logger
	Clock      Clock
	Sleeper    Sleeper
}

// Client talks to the GitHub REST API under the shared rate limit state.
type Client struct {
	configuration  Configuration
	token          string
	baseURL        *url.URL
	httpClient     HTTPClient
	logger         *zap.Logger
	rateLimitState *RateLimitState
	retry          retryPolicy
}

type apiResponse struct {
	statusCode int
	headers    http.Header
	body       []byte
}

// NewClient validates the token and builds a client. No request is made.
func NewClient(configuration Configuration, token string, dependencies Dependencies) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		return nil, runerrors.ConfigurationError{Field: tokenFieldNameConstant, Message: emptyTokenMessageConstant}
	}

	sanitized := configuration.Sanitize()
	parsedBaseURL, parseError := url.Parse(sanitized.BaseURL)
	if parseError != nil || len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, runerrors.ConfigurationError{Field: baseURLFieldNameConstant, Message: invalidBaseURLMessageConstant, Cause: parseError}
	}

	httpClient := dependencies.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleeper := dependencies.Sleeper
	if sleeper == nil {
		sleeper = ContextSleeper
	}

	return &Client{
		configuration:  sanitized,
		token:          trimmedToken,
		baseURL:        parsedBaseURL,
		httpClient:     httpClient,
		logger:         logger,
		rateLimitState: NewRateLimitState(sanitized.MaxConcurrency, sanitized.RateLimitThreshold, sanitized.RequestsPerSecond, dependencies.Clock, sleeper),
		retry: retryPolicy{
			maximumAttempts: sanitized.RetryLimit,
			baseDelay:       sanitized.RetryBaseDelay,
			maximumDelay:    sanitized.RetryMaxDelay,
			multiplier:      sanitized.RetryMultiplier,
			sleeper:         sleeper,
		},
	}, nil
}

// Configuration returns the sanitized configuration in effect.
func (client *Client) Configuration() Configuration {
	return client.configuration
}

// RateLimitSnapshot exposes the shared state for one quota bucket.
func (client *Client) RateLimitSnapshot(resource string) RateLimitSnapshot {
	return client.rateLimitState.Snapshot(resource)
}

// get performs a GET with retries. Statuses other than 401, rate limits, and 5xx are returned to the caller.
func (client *Client) get(executionContext context.Context, operation OperationName, resource string, requestURL string, requestHeaders map[string]string) (apiResponse, error) {
	var response apiResponse
	retryObserver := func(attemptNumber int, delay time.Duration, cause error) {
		client.logger.Debug(retryLogMessageConstant,
			zap.String(operationLogFieldConstant, string(operation)),
			zap.String(urlLogFieldConstant, requestURL),
			zap.Int(attemptLogFieldConstant, attemptNumber),
			zap.Duration(delayLogFieldConstant, delay),
			zap.Error(cause),
		)
	}

	executionError := client.retry.execute(executionContext, operation, func(attemptContext context.Context) error {
		attemptResponse, attemptError := client.attempt(attemptContext, operation, resource, requestURL, requestHeaders)
		if attemptError != nil {
			return attemptError
		}
		response = attemptResponse
		return nil
	}, retryObserver)
	if executionError != nil {
		return apiResponse{}, executionError
	}
	return response, nil
}

func (client *Client) attempt(executionContext context.Context, operation OperationName, resource string, requestURL string, requestHeaders map[string]string) (apiResponse, error) {
	release, acquireError := client.rateLimitState.Acquire(executionContext, resource)
	if acquireError != nil {
		return apiResponse{}, acquireError
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, requestURL, nil)
	if requestError != nil {
		release(nil)
		return apiResponse{}, OperationError{Operation: operation, Cause: requestError}
	}
	request.Header.Set(authorizationHeaderConstant, authorizationPrefixConstant+client.token)
	request.Header.Set(apiVersionHeaderConstant, apiVersionValueConstant)
	request.Header.Set(userAgentHeaderConstant, client.configuration.UserAgent)
	for headerName, headerValue := range requestHeaders {
		request.Header.Set(headerName, headerValue)
	}

	httpResponse, doError := client.httpClient.Do(request)
	if doError != nil {
		release(nil)
		if contextError := executionContext.Err(); contextError != nil {
			return apiResponse{}, contextError
		}
		return apiResponse{}, NetworkError{Operation: operation, Cause: doError}
	}
	defer httpResponse.Body.Close()

	body, readError := io.ReadAll(io.LimitReader(httpResponse.Body, client.configuration.MaxResponseBytes+1))
	release(httpResponse.Header)
	if readError != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return apiResponse{}, contextError
		}
		return apiResponse{}, NetworkError{Operation: operation, Cause: readError}
	}

	client.logger.Debug(requestLogMessageConstant,
		zap.String(operationLogFieldConstant, string(operation)),
		zap.String(urlLogFieldConstant, requestURL),
		zap.Int(statusLogFieldConstant, httpResponse.StatusCode),
	)

	if int64(len(body)) > client.configuration.MaxResponseBytes {
		return apiResponse{}, ResponseTooLargeError{Operation: operation, Limit: client.configuration.MaxResponseBytes}
	}

	if classificationError := classifyStatus(operation, httpResponse, client.rateLimitState.clock.Now()); classificationError != nil {
		return apiResponse{}, classificationError
	}

	return apiResponse{statusCode: httpResponse.StatusCode, headers: httpResponse.Header, body: body}, nil
}

func classifyStatus(operation OperationName, httpResponse *http.Response, now time.Time) error {
	statusCode := httpResponse.StatusCode
	switch {
	case statusCode == http.StatusUnauthorized:
		return AuthenticationError{Operation: operation, StatusCode: statusCode}
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusForbidden:
		return RateLimitError{Operation: operation, StatusCode: statusCode, RetryAfter: parseRetryAfter(httpResponse.Header, now)}
	case statusCode >= http.StatusInternalServerError:
		return ServerError{Operation: operation, StatusCode: statusCode}
	default:
		return nil
	}
}

func parseRetryAfter(responseHeaders http.Header, now time.Time) time.Duration {
	headerValue := strings.TrimSpace(responseHeaders.Get(retryAfterHeaderConstant))
	if len(headerValue) == 0 {
		return 0
	}
	if seconds, parseError := strconv.Atoi(headerValue); parseError == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if retryAt, parseError := http.ParseTime(headerValue); parseError == nil {
		if delay := retryAt.Sub(now); delay > 0 {
			return delay
		}
	}
	return 0
}

// IsCanceled reports whether err stems from context cancellation or deadline expiry.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
