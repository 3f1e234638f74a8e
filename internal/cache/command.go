package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	cacheCommandUseConstant                 = "cache"
	cacheCommandShortDescriptionConstant    = "Inspect or reset the fetch cache"
	cacheCommandLongDescriptionConstant     = "cache manages the on-disk store of fetched repository files shared by audit runs."
	clearCommandUseConstant                 = "clear"
	clearCommandShortDescriptionConstant    = "Remove every cached entry"
	infoCommandUseConstant                  = "info"
	infoCommandShortDescriptionConstant     = "Show cache location and size"
	directoryFlagNameConstant               = "cache-dir"
	directoryFlagDescriptionConstant        = "Cache directory (defaults to the configured cache.dir)"
	unexpectedArgumentsErrorMessageConstant = "cache commands do not accept positional arguments"
	openErrorTemplateConstant               = "unable to open cache: %w"
	statsErrorTemplateConstant              = "unable to inspect cache: %w"
	clearedMessageTemplateConstant          = "Cleared %d entries from %s\n"
	infoDirectoryTemplateConstant           = "directory\t: %s\n"
	infoEntriesTemplateConstant             = "entries\t: %d\n"
	infoBytesTemplateConstant               = "bytes\t: %d\n"
	cacheClearedLogConstant                 = "Cache cleared"
	logFieldEntriesConstant                 = "entries"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current cache configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the cache command hierarchy.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
}

// Build constructs the cache command with clear and info subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	cacheCommand := &cobra.Command{
		Use:   cacheCommandUseConstant,
		Short: cacheCommandShortDescriptionConstant,
		Long:  cacheCommandLongDescriptionConstant,
	}
	cacheCommand.PersistentFlags().String(directoryFlagNameConstant, "", directoryFlagDescriptionConstant)

	clearCommand := &cobra.Command{
		Use:   clearCommandUseConstant,
		Short: clearCommandShortDescriptionConstant,
		RunE:  builder.runClear,
	}
	infoCommand := &cobra.Command{
		Use:   infoCommandUseConstant,
		Short: infoCommandShortDescriptionConstant,
		RunE:  builder.runInfo,
	}

	cacheCommand.AddCommand(clearCommand, infoCommand)
	return cacheCommand, nil
}

func (builder *CommandBuilder) runClear(command *cobra.Command, arguments []string) error {
	store, openError := builder.openStore(command, arguments)
	if openError != nil {
		return openError
	}

	statsBefore, statsError := store.Stats()
	if statsError != nil {
		return fmt.Errorf(statsErrorTemplateConstant, statsError)
	}
	if clearError := store.Clear(); clearError != nil {
		return clearError
	}

	builder.resolveLogger().Info(cacheClearedLogConstant,
		zap.String(logFieldDirectoryConstant, store.Directory()),
		zap.Int(logFieldEntriesConstant, statsBefore.Entries),
	)
	_, writeError := fmt.Fprintf(command.OutOrStdout(), clearedMessageTemplateConstant, statsBefore.Entries, store.Directory())
	return writeError
}

func (builder *CommandBuilder) runInfo(command *cobra.Command, arguments []string) error {
	store, openError := builder.openStore(command, arguments)
	if openError != nil {
		return openError
	}

	stats, statsError := store.Stats()
	if statsError != nil {
		return fmt.Errorf(statsErrorTemplateConstant, statsError)
	}

	output := command.OutOrStdout()
	for _, line := range []string{
		fmt.Sprintf(infoDirectoryTemplateConstant, stats.Directory),
		fmt.Sprintf(infoEntriesTemplateConstant, stats.Entries),
		fmt.Sprintf(infoBytesTemplateConstant, stats.TotalBytes),
	} {
		if _, writeError := fmt.Fprint(output, line); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (builder *CommandBuilder) openStore(command *cobra.Command, arguments []string) (*Store, error) {
	if len(arguments) > 0 {
		return nil, errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	configuration := builder.resolveConfiguration()
	directoryFlagValue, directoryFlagError := command.Flags().GetString(directoryFlagNameConstant)
	if directoryFlagError != nil {
		return nil, directoryFlagError
	}
	if trimmedDirectory := strings.TrimSpace(directoryFlagValue); len(trimmedDirectory) > 0 {
		configuration.Directory = trimmedDirectory
	}
	configuration = configuration.Sanitize()

	store, openError := Open(Options{
		Directory:     configuration.Directory,
		MemoryEntries: configuration.MemoryEntries,
		Logger:        builder.resolveLogger(),
	})
	if openError != nil {
		return nil, fmt.Errorf(openErrorTemplateConstant, openError)
	}
	return store, nil
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
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
