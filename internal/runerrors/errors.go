package runerrors

import (
	"errors"
	"fmt"
)

const (
	configurationErrorTemplateConstant          = "configuration error: %s"
	configurationErrorWithFieldTemplateConstant = "configuration error: %s: %s"
	configurationCauseSuffixTemplateConstant    = "%s: %v"
)

// FatalError marks failures that abort the whole run rather than a single repository.
type FatalError interface {
	error
	Fatal() bool
}

// ConfigurationError reports invalid input detected before or instead of network activity.
type ConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

// Error describes the configuration problem.
func (configurationError ConfigurationError) Error() string {
	message := configurationError.Message
	if configurationError.Cause != nil {
		message = fmt.Sprintf(configurationCauseSuffixTemplateConstant, message, configurationError.Cause)
	}
	if len(configurationError.Field) == 0 {
		return fmt.Sprintf(configurationErrorTemplateConstant, message)
	}
	return fmt.Sprintf(configurationErrorWithFieldTemplateConstant, configurationError.Field, message)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// Fatal reports that configuration errors abort the run.
func (ConfigurationError) Fatal() bool {
	return true
}

// IsFatal reports whether err, or any error it wraps, aborts the run.
func IsFatal(err error) bool {
	var fatalError FatalError
	if errors.As(err, &fatalError) {
		return fatalError.Fatal()
	}
	return false
}
