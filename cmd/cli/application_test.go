package cli_test

import (
	"bytes"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/cmd/cli"
	"github.com/temirov/ygg/internal/audit"
	"github.com/temirov/ygg/internal/cache"
)

func decodeEmbeddedDefaults(testInstance *testing.T) cli.ApplicationConfiguration {
	testInstance.Helper()
	embeddedContent, embeddedType := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, embeddedContent)

	viperInstance := viper.New()
	viperInstance.SetConfigType(embeddedType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(embeddedContent)))

	var configuration cli.ApplicationConfiguration
	require.NoError(testInstance, viperInstance.Unmarshal(&configuration, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())))
	return configuration
}

func TestEmbeddedDefaultsMatchCommandDefaults(testInstance *testing.T) {
	configuration := decodeEmbeddedDefaults(testInstance)

	testCases := []struct {
		name      string
		assertion func(testing.TB)
	}{
		{
			name: "common",
			assertion: func(assertionTarget testing.TB) {
				require.Equal(assertionTarget, "info", configuration.Common.LogLevel)
				require.Equal(assertionTarget, "structured", configuration.Common.LogFormat)
			},
		},
		{
			name: "audit",
			assertion: func(assertionTarget testing.TB) {
				require.Equal(assertionTarget, audit.DefaultCommandConfiguration(), configuration.Audit)
			},
		},
		{
			name: "cache",
			assertion: func(assertionTarget testing.TB) {
				require.Equal(assertionTarget, cache.DefaultConfiguration(), configuration.Cache)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testCase.assertion(testInstance)
		})
	}
}

func TestEmbeddedDefaultConfigurationReturnsCopy(testInstance *testing.T) {
	firstContent, _ := cli.EmbeddedDefaultConfiguration()
	firstContent[0] = '#'
	secondContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstContent[0], secondContent[0])
}
