package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testRunIdentifierConstant = "run-0001"
)

func executeApplication(testInstance *testing.T, application *Application, arguments ...string) (string, error) {
	testInstance.Helper()
	outputBuffer := &bytes.Buffer{}
	application.rootCommand.SetOut(outputBuffer)
	application.rootCommand.SetErr(&bytes.Buffer{})
	application.rootCommand.SetArgs(arguments)
	executionError := application.Execute()
	return outputBuffer.String(), executionError
}

func writeTestFile(testInstance *testing.T, directory string, name string, contents string) string {
	testInstance.Helper()
	filePath := filepath.Join(directory, name)
	require.NoError(testInstance, os.WriteFile(filePath, []byte(contents), 0o600))
	return filePath
}

func TestApplicationVersionFlag(testInstance *testing.T) {
	originalVersion := Version
	testInstance.Cleanup(func() { Version = originalVersion })
	Version = "v1.2.3"

	output, executionError := executeApplication(testInstance, NewApplication(), "--version")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "ygg version: v1.2.3\n", output)
}

func TestApplicationAuditListsRepositoriesFromConfiguration(testInstance *testing.T) {
	directory := testInstance.TempDir()
	listPath := writeTestFile(testInstance, directory, "repos.json", `["acme/web", "acme/app"]`)
	configurationPath := writeTestFile(testInstance, directory, "config.yaml",
		"common:\n  log_level: error\naudit:\n  repos: "+listPath+"\ncache:\n  dir: "+filepath.Join(directory, "cache")+"\n")

	output, executionError := executeApplication(testInstance, NewApplication(), "--config", configurationPath, "audit")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "acme/app\nacme/web\n", output)
}

func TestApplicationEnvironmentOverridesCacheDirectory(testInstance *testing.T) {
	cacheDirectory := testInstance.TempDir()
	testInstance.Setenv("YGG_CACHE_DIR", cacheDirectory)
	testInstance.Setenv("YGG_COMMON_LOG_LEVEL", "error")

	output, executionError := executeApplication(testInstance, NewApplication(), "cache", "info")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "directory\t: "+cacheDirectory+"\n")
	require.Contains(testInstance, output, "entries\t: 0\n")
}

func TestApplicationInitializeConfigurationStoresRunIdentifier(testInstance *testing.T) {
	application := NewApplication()
	application.runIdentifierGenerator = func() string { return testRunIdentifierConstant }
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "error"))

	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	runIdentifier, found := application.commandContextAccessor.RunIdentifier(application.rootCommand.Context())
	require.True(testInstance, found)
	require.Equal(testInstance, testRunIdentifierConstant, runIdentifier)
	require.Equal(testInstance, "error", application.configuration.Common.LogLevel)
}

func TestApplicationRejectsUnsupportedLogFormat(testInstance *testing.T) {
	_, executionError := executeApplication(testInstance, NewApplication(), "--log-format", "xml", "cache", "info", "--cache-dir", testInstance.TempDir())
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "unable to create logger")
}
