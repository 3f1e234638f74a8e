package audit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ygg/internal/cache"
	"github.com/temirov/ygg/internal/githubauth"
	"github.com/temirov/ygg/internal/runerrors"
	"github.com/temirov/ygg/internal/utils/flags"
)

const (
	commandUseConstant                       = "audit"
	commandShortDescriptionConstant          = "Audit lockfiles or grep a file across GitHub repositories"
	commandLongDescriptionConstant           = "audit discovers repositories from a static list or a code search query, then reports the resolved versions of a package, the matches of a literal string, or just the repository set."
	unexpectedArgumentsErrorMessageConstant  = "audit does not accept positional arguments"
	reposFlagNameConstant                    = "repos"
	reposFlagDescriptionConstant             = "Path to a JSON array of owner/repo strings"
	queryFlagNameConstant                    = "query"
	queryFlagDescriptionConstant             = "Code search query used to discover repositories"
	orgFlagNameConstant                      = "org"
	orgFlagDescriptionConstant               = "Restrict the search query to an organization"
	packageFlagNameConstant                  = "package"
	packageFlagDescriptionConstant           = "Package whose resolved versions are reported"
	fileNameFlagNameConstant                 = "filename"
	fileNameFlagDescriptionConstant          = "Repository file to fetch (defaults to package-lock.json in package mode)"
	searchFlagNameConstant                   = "search"
	searchFlagDescriptionConstant            = "Literal string searched in the fetched file"
	refFlagNameConstant                      = "ref"
	refFlagDescriptionConstant               = "Branch, tag, or commit to read files from"
	formatFlagNameConstant                   = "format"
	formatFlagDescriptionConstant            = "Report format"
	clearCacheFlagNameConstant               = "clear-cache"
	clearCacheFlagDescriptionConstant        = "Remove every cached entry before the run"
	revalidateFlagNameConstant               = "revalidate"
	revalidateFlagDescriptionConstant        = "Revalidate cached files with conditional requests"
	writeReposFlagNameConstant               = "write-repos"
	writeReposFlagDescriptionConstant        = "Write search results to the --repos path"
	tokenSourceFlagNameConstant              = "token-source"
	tokenSourceFlagDescriptionConstant       = "Token source (env:NAME or file:/path)"
	cacheDirectoryFlagNameConstant           = "cache-dir"
	cacheDirectoryFlagDescriptionConstant    = "Cache directory (defaults to the configured cache.dir)"
	concurrencyFlagNameConstant              = "concurrency"
	concurrencyFlagDescriptionConstant       = "Maximum number of repositories processed at once"
	formatFieldConstant                      = "format"
	tokenSourceParseErrorTemplateConstant    = "invalid token source: %v"
	unsupportedFormatMessageTemplateConstant = "unsupported format %q"
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current audit configuration.
type ConfigurationProvider func() CommandConfiguration

// CacheConfigurationProvider returns the current cache configuration.
type CacheConfigurationProvider func() cache.Configuration

// CommandBuilder assembles the audit cobra command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider             LoggerProvider
	ConfigurationProvider      ConfigurationProvider
	CacheConfigurationProvider CacheConfigurationProvider
	Dependencies               Dependencies
}

// Build constructs the cobra command for audit runs.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(reposFlagNameConstant, "", reposFlagDescriptionConstant)
	command.Flags().String(queryFlagNameConstant, "", queryFlagDescriptionConstant)
	command.Flags().String(orgFlagNameConstant, "", orgFlagDescriptionConstant)
	command.Flags().String(packageFlagNameConstant, "", packageFlagDescriptionConstant)
	command.Flags().String(fileNameFlagNameConstant, "", fileNameFlagDescriptionConstant)
	command.Flags().String(searchFlagNameConstant, "", searchFlagDescriptionConstant)
	command.Flags().String(refFlagNameConstant, "", refFlagDescriptionConstant)
	command.Flags().Var(
		flags.NewChoiceValue(string(ReportFormatText), SupportedReportFormats()),
		formatFlagNameConstant,
		flags.FormatChoiceUsage(string(ReportFormatText), SupportedReportFormats(), formatFlagDescriptionConstant),
	)
	command.Flags().Bool(clearCacheFlagNameConstant, false, clearCacheFlagDescriptionConstant)
	command.Flags().Bool(revalidateFlagNameConstant, false, revalidateFlagDescriptionConstant)
	command.Flags().Bool(writeReposFlagNameConstant, false, writeReposFlagDescriptionConstant)
	command.Flags().String(tokenSourceFlagNameConstant, "", tokenSourceFlagDescriptionConstant)
	command.Flags().String(cacheDirectoryFlagNameConstant, "", cacheDirectoryFlagDescriptionConstant)
	command.Flags().Int(concurrencyFlagNameConstant, 0, concurrencyFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	dependencies := builder.Dependencies
	dependencies.Logger = builder.resolveLogger()
	service := NewService(dependencies, command.OutOrStdout(), command.ErrOrStderr())
	return service.Run(command.Context(), options)
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (CommandOptions, error) {
	configuration := builder.resolveConfiguration()
	cacheConfiguration := builder.resolveCacheConfiguration()

	stringSelections := []struct {
		flagName string
		target   *string
	}{
		{flagName: reposFlagNameConstant, target: &configuration.RepositoryListPath},
		{flagName: queryFlagNameConstant, target: &configuration.Query},
		{flagName: orgFlagNameConstant, target: &configuration.Organization},
		{flagName: packageFlagNameConstant, target: &configuration.PackageName},
		{flagName: fileNameFlagNameConstant, target: &configuration.FileName},
		{flagName: refFlagNameConstant, target: &configuration.Ref},
		{flagName: tokenSourceFlagNameConstant, target: &configuration.TokenSource},
		{flagName: cacheDirectoryFlagNameConstant, target: &cacheConfiguration.Directory},
	}
	for _, selection := range stringSelections {
		flagValue, flagError := command.Flags().GetString(selection.flagName)
		if flagError != nil {
			return CommandOptions{}, flagError
		}
		*selection.target = selectStringValue(flagValue, *selection.target)
	}

	if command.Flags().Changed(searchFlagNameConstant) {
		searchValue, searchError := command.Flags().GetString(searchFlagNameConstant)
		if searchError != nil {
			return CommandOptions{}, searchError
		}
		configuration.SearchString = searchValue
	}

	booleanSelections := []struct {
		flagName string
		target   *bool
	}{
		{flagName: clearCacheFlagNameConstant, target: &configuration.ClearCache},
		{flagName: revalidateFlagNameConstant, target: &configuration.Revalidate},
		{flagName: writeReposFlagNameConstant, target: &configuration.WriteRepositoryList},
	}
	for _, selection := range booleanSelections {
		if !command.Flags().Changed(selection.flagName) {
			continue
		}
		flagValue, flagError := command.Flags().GetBool(selection.flagName)
		if flagError != nil {
			return CommandOptions{}, flagError
		}
		*selection.target = flagValue
	}

	if command.Flags().Changed(concurrencyFlagNameConstant) {
		concurrencyValue, concurrencyError := command.Flags().GetInt(concurrencyFlagNameConstant)
		if concurrencyError != nil {
			return CommandOptions{}, concurrencyError
		}
		configuration.Concurrency = concurrencyValue
	}
	if command.Flags().Changed(formatFlagNameConstant) {
		configuration.Format = command.Flags().Lookup(formatFlagNameConstant).Value.String()
	}

	configuration = configuration.Sanitize()
	cacheConfiguration = cacheConfiguration.Sanitize()

	format, formatError := parseReportFormat(configuration.Format)
	if formatError != nil {
		return CommandOptions{}, formatError
	}

	tokenSource, tokenSourceError := githubauth.ParseTokenSource(configuration.TokenSource)
	if tokenSourceError != nil {
		return CommandOptions{}, runerrors.ConfigurationError{
			Field:   tokenSourceFieldConstant,
			Message: fmt.Sprintf(tokenSourceParseErrorTemplateConstant, tokenSourceError),
		}
	}

	return CommandOptions{
		RepositoryListPath:  configuration.RepositoryListPath,
		Query:               configuration.Query,
		Organization:        configuration.Organization,
		PackageName:         configuration.PackageName,
		FileName:            configuration.FileName,
		SearchString:        configuration.SearchString,
		Ref:                 configuration.Ref,
		Format:              format,
		ClearCache:          configuration.ClearCache,
		Revalidate:          configuration.Revalidate,
		WriteRepositoryList: configuration.WriteRepositoryList,
		TokenSource:         tokenSource,
		ResultCeiling:       configuration.ResultCeiling,
		Workers:             configuration.Concurrency,
		CacheDirectory:      cacheConfiguration.Directory,
		CacheMemoryEntries:  cacheConfiguration.MemoryEntries,
		API:                 configuration.API,
	}, nil
}

func parseReportFormat(value string) (ReportFormat, error) {
	for _, supportedFormat := range SupportedReportFormats() {
		if value == supportedFormat {
			return ReportFormat(supportedFormat), nil
		}
	}
	return "", runerrors.ConfigurationError{Field: formatFieldConstant, Message: fmt.Sprintf(unsupportedFormatMessageTemplateConstant, value)}
}

func selectStringValue(flagValue string, configurationValue string) string {
	if len(strings.TrimSpace(flagValue)) > 0 {
		return flagValue
	}
	return configurationValue
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveCacheConfiguration() cache.Configuration {
	if builder.CacheConfigurationProvider == nil {
		return cache.DefaultConfiguration()
	}
	return builder.CacheConfigurationProvider()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
