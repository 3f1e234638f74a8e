package githubapi

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type retryPhase int

const (
	retryPhaseAttempting retryPhase = iota
	retryPhaseWaiting
	retryPhaseExhausted
)

// RetryObserver is notified before each backoff wait.
type RetryObserver func(attemptNumber int, delay time.Duration, cause error)

type retryPolicy struct {
	maximumAttempts int
	baseDelay       time.Duration
	maximumDelay    time.Duration
	multiplier      float64
	sleeper         Sleeper
}

func (policy retryPolicy) newBackOff() *backoff.ExponentialBackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = policy.baseDelay
	exponentialBackOff.MaxInterval = policy.maximumDelay
	exponentialBackOff.Multiplier = policy.multiplier
	exponentialBackOff.RandomizationFactor = 0
	exponentialBackOff.MaxElapsedTime = 0
	exponentialBackOff.Reset()
	return exponentialBackOff
}

// execute runs attempt until it succeeds, fails permanently, or the attempt budget is spent.
func (policy retryPolicy) execute(executionContext context.Context, operation OperationName, attempt func(context.Context) error, observer RetryObserver) error {
	delays := policy.newBackOff()
	phase := retryPhaseAttempting
	attemptNumber := 0
	var lastError error

	for {
		switch phase {
		case retryPhaseAttempting:
			attemptNumber++
			lastError = attempt(executionContext)
			if lastError == nil {
				return nil
			}
			if !isTransient(lastError) {
				return lastError
			}
			if attemptNumber >= policy.maximumAttempts {
				phase = retryPhaseExhausted
				continue
			}
			phase = retryPhaseWaiting
		case retryPhaseWaiting:
			delay := delays.NextBackOff()
			if retryAfter := retryAfterOf(lastError); retryAfter > delay {
				delay = retryAfter
			}
			if observer != nil {
				observer(attemptNumber, delay, lastError)
			}
			if sleepError := policy.sleeper(executionContext, delay); sleepError != nil {
				return sleepError
			}
			phase = retryPhaseAttempting
		case retryPhaseExhausted:
			return RetryExhaustedError{Operation: operation, Attempts: attemptNumber, Cause: lastError}
		}
	}
}
