// Package githubapi fetches repository files and runs code searches against the GitHub REST API.
//
// Every request passes through one RateLimitState that caps in-flight requests, paces them, and waits
// out exhausted quotas. Transient failures are retried with exponential backoff; authentication
// failures abort immediately.
package githubapi
