package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/repository"
)

const (
	taskStartedMessageTemplateConstant     = "Checking %s"
	taskCacheHitMessageTemplateConstant    = "Using cached %s (%s)"
	taskFetchedMessageTemplateConstant     = "Fetched %s (%s)"
	taskFailedMessageTemplateConstant      = "%s failed with %s: %s"
	taskFailedWithoutCauseTemplateConstant = "%s failed with %s"
	unknownFailureMessageConstant          = "unknown error"
)

// TaskEventFormatter builds human-readable messages for repository task lifecycle events.
type TaskEventFormatter struct{}

// BuildStartedMessage formats the message describing a task that acquired a worker.
func (formatter TaskEventFormatter) BuildStartedMessage(key repository.FetchKey) string {
	return fmt.Sprintf(taskStartedMessageTemplateConstant, key)
}

// BuildCacheHitMessage formats the message describing a task answered from the cache.
func (formatter TaskEventFormatter) BuildCacheHitMessage(key repository.FetchKey, status cache.Status) string {
	return fmt.Sprintf(taskCacheHitMessageTemplateConstant, key, status)
}

// BuildFetchedMessage formats the message describing a completed request.
func (formatter TaskEventFormatter) BuildFetchedMessage(key repository.FetchKey, status githubapi.FileStatus) string {
	return fmt.Sprintf(taskFetchedMessageTemplateConstant, key, status)
}

// BuildFailureMessage formats the message describing a failure recorded as an outcome.
func (formatter TaskEventFormatter) BuildFailureMessage(key repository.FetchKey, reason analysis.FailureReason, failure error) string {
	if failure == nil {
		return fmt.Sprintf(taskFailedMessageTemplateConstant, key, reason, unknownFailureMessageConstant)
	}
	failureMessage := strings.TrimSpace(failure.Error())
	if len(failureMessage) == 0 {
		return fmt.Sprintf(taskFailedWithoutCauseTemplateConstant, key, reason)
	}
	return fmt.Sprintf(taskFailedMessageTemplateConstant, key, reason, failureMessage)
}

// ConsoleTaskEventLogger renders task lifecycle events using a zap logger configured for human-readable output.
type ConsoleTaskEventLogger struct {
	logger    *zap.Logger
	formatter TaskEventFormatter
}

// NewConsoleTaskEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleTaskEventLogger(logger *zap.Logger) *ConsoleTaskEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleTaskEventLogger{logger: logger, formatter: TaskEventFormatter{}}
}

// TaskStarted implements pipeline.TaskEventObserver.
func (eventLogger *ConsoleTaskEventLogger) TaskStarted(key repository.FetchKey) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildStartedMessage(key))
}

// TaskServedFromCache implements pipeline.TaskEventObserver.
func (eventLogger *ConsoleTaskEventLogger) TaskServedFromCache(key repository.FetchKey, status cache.Status) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Debug(eventLogger.formatter.BuildCacheHitMessage(key, status))
}

// TaskFetched implements pipeline.TaskEventObserver.
func (eventLogger *ConsoleTaskEventLogger) TaskFetched(key repository.FetchKey, status githubapi.FileStatus) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildFetchedMessage(key, status))
}

// TaskFailed implements pipeline.TaskEventObserver by logging recorded failures as warnings.
func (eventLogger *ConsoleTaskEventLogger) TaskFailed(key repository.FetchKey, reason analysis.FailureReason, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(key, reason, failure))
}
