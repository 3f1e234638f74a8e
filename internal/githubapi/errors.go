package githubapi

import (
	"errors"
	"fmt"
	"time"
)

const (
	authenticationErrorTemplateConstant   = "%s: authentication failed (HTTP %d)"
	rateLimitErrorTemplateConstant        = "%s: rate limited (HTTP %d)"
	serverErrorTemplateConstant           = "%s: server error (HTTP %d)"
	networkErrorTemplateConstant          = "%s: network failure: %v"
	unexpectedStatusErrorTemplateConstant = "%s: unexpected status HTTP %d"
	responseTooLargeTemplateConstant      = "%s: response exceeds %d bytes"
	retryExhaustedTemplateConstant        = "%s: giving up after %d attempts: %v"
	invalidQueryTemplateConstant          = "%s: invalid search query: %s"
	operationErrorTemplateConstant        = "%s operation failed: %v"
	decodingErrorTemplateConstant         = "%s response decoding failed: %v"
	untrustedLinkTemplateConstant         = "%s: refusing to follow pagination link to %s"
)

// OperationName describes a named API workflow supported by the client.
type OperationName string

// Supported operations.
const (
	FetchFileOperationName  OperationName = OperationName("FetchFile")
	SearchCodeOperationName OperationName = OperationName("SearchCode")
)

// AuthenticationError reports a rejected token. It aborts the whole run.
type AuthenticationError struct {
	Operation  OperationName
	StatusCode int
}

// Error describes the authentication failure.
func (authenticationError AuthenticationError) Error() string {
	return fmt.Sprintf(authenticationErrorTemplateConstant, authenticationError.Operation, authenticationError.StatusCode)
}

// Fatal marks authentication failures as run-aborting.
func (AuthenticationError) Fatal() bool {
	return true
}

// InvalidQueryError reports a search query the API refused to run.
type InvalidQueryError struct {
	Operation OperationName
	Message   string
}

// Error describes the rejected query.
func (queryError InvalidQueryError) Error() string {
	return fmt.Sprintf(invalidQueryTemplateConstant, queryError.Operation, queryError.Message)
}

// Fatal marks query errors as run-aborting.
func (InvalidQueryError) Fatal() bool {
	return true
}

// RateLimitError reports a primary or secondary rate limit response.
type RateLimitError struct {
	Operation  OperationName
	StatusCode int
	RetryAfter time.Duration
}

// Error describes the rate limit.
func (rateLimitError RateLimitError) Error() string {
	return fmt.Sprintf(rateLimitErrorTemplateConstant, rateLimitError.Operation, rateLimitError.StatusCode)
}

// ServerError reports a 5xx response.
type ServerError struct {
	Operation  OperationName
	StatusCode int
}

// Error describes the server failure.
func (serverError ServerError) Error() string {
	return fmt.Sprintf(serverErrorTemplateConstant, serverError.Operation, serverError.StatusCode)
}

// NetworkError reports a transport-level failure.
type NetworkError struct {
	Operation OperationName
	Cause     error
}

// Error describes the network failure.
func (networkError NetworkError) Error() string {
	return fmt.Sprintf(networkErrorTemplateConstant, networkError.Operation, networkError.Cause)
}

// Unwrap exposes the transport error.
func (networkError NetworkError) Unwrap() error {
	return networkError.Cause
}

// UnexpectedStatusError reports a response status the operation does not handle.
type UnexpectedStatusError struct {
	Operation  OperationName
	StatusCode int
}

// Error describes the status.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusErrorTemplateConstant, statusError.Operation, statusError.StatusCode)
}

// ResponseTooLargeError reports a body above the configured size limit.
type ResponseTooLargeError struct {
	Operation OperationName
	Limit     int64
}

// Error describes the oversized response.
func (sizeError ResponseTooLargeError) Error() string {
	return fmt.Sprintf(responseTooLargeTemplateConstant, sizeError.Operation, sizeError.Limit)
}

// RetryExhaustedError wraps the last transient failure once the retry budget is spent.
type RetryExhaustedError struct {
	Operation OperationName
	Attempts  int
	Cause     error
}

// Error describes the exhausted retries.
func (exhaustedError RetryExhaustedError) Error() string {
	return fmt.Sprintf(retryExhaustedTemplateConstant, exhaustedError.Operation, exhaustedError.Attempts, exhaustedError.Cause)
}

// Unwrap exposes the last transient failure.
func (exhaustedError RetryExhaustedError) Unwrap() error {
	return exhaustedError.Cause
}

// OperationError wraps request construction failures.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf(operationErrorTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(decodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// UntrustedLinkError reports a pagination link pointing away from the configured API host.
type UntrustedLinkError struct {
	Operation OperationName
	Link      string
}

// Error describes the rejected link.
func (linkError UntrustedLinkError) Error() string {
	return fmt.Sprintf(untrustedLinkTemplateConstant, linkError.Operation, linkError.Link)
}

func isTransient(err error) bool {
	var rateLimitError RateLimitError
	var serverError ServerError
	var networkError NetworkError
	return errors.As(err, &rateLimitError) || errors.As(err, &serverError) || errors.As(err, &networkError)
}

func retryAfterOf(err error) time.Duration {
	var rateLimitError RateLimitError
	if errors.As(err, &rateLimitError) {
		return rateLimitError.RetryAfter
	}
	return 0
}
