// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader layers embedded defaults, an optional configuration
// file, and YGG_ environment overrides through Viper. LoggerFactory builds
// zap loggers, and CommandContextAccessor carries the configuration path and
// run identifier through cobra command contexts.
package utils
