package cache

import (
	"strings"

	pathutils "github.com/temirov/ygg/internal/utils/path"
)

const (
	// DefaultDirectory is the configured cache location before home expansion.
	DefaultDirectory = "~/.cache/ygg"

	directoryConfigurationKeyConstant     = "dir"
	memoryEntriesConfigurationKeyConstant = "memory_entries"
)

var cacheConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// Configuration stores persistent cache settings.
type Configuration struct {
	Directory     string `mapstructure:"dir"`
	MemoryEntries int    `mapstructure:"memory_entries"`
}

// DefaultConfiguration supplies baseline cache settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Directory:     DefaultDirectory,
		MemoryEntries: defaultMemoryEntriesConstant,
	}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		prefix + "." + directoryConfigurationKeyConstant:     defaults.Directory,
		prefix + "." + memoryEntriesConfigurationKeyConstant: defaults.MemoryEntries,
	}
}

// Sanitize expands the home shortcut and falls back to the platform cache directory.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Directory = cacheConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.Directory))
	if len(sanitized.Directory) == 0 {
		sanitized.Directory = pathutils.DefaultCacheDirectory(nil)
	}
	if sanitized.MemoryEntries <= 0 {
		sanitized.MemoryEntries = defaultMemoryEntriesConstant
	}
	return sanitized
}
