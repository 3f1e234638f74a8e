package pathutils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/ygg/internal/utils/path"
)

const testHomeDirectoryConstant = "/home/auditor"

func TestHomeExpanderExpand(testInstance *testing.T) {
	testCases := []struct {
		name         string
		input        string
		expectedPath string
	}{
		{name: "bare_tilde", input: "~", expectedPath: testHomeDirectoryConstant},
		{name: "tilde_prefix", input: "~/.cache/ygg", expectedPath: filepath.Join(testHomeDirectoryConstant, ".cache/ygg")},
		{name: "other_user_untouched", input: "~someone/repos.json", expectedPath: "~someone/repos.json"},
		{name: "absolute_untouched", input: "/var/cache/ygg", expectedPath: "/var/cache/ygg"},
		{name: "relative_untouched", input: "repos.json", expectedPath: "repos.json"},
		{name: "empty_untouched", input: "", expectedPath: ""},
	}

	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.input))
		})
	}
}

func TestHomeExpanderLeavesPathWhenHomeUnknown(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "", errors.New("no home") })
	require.Equal(testInstance, "~/.cache", expander.Expand("~/.cache"))
}

func TestDefaultCacheDirectory(testInstance *testing.T) {
	require.Equal(testInstance, filepath.Join("/srv/cache", "ygg"), pathutils.DefaultCacheDirectory(func() (string, error) { return "/srv/cache", nil }))
	require.Equal(testInstance, filepath.Join(os.TempDir(), "ygg"), pathutils.DefaultCacheDirectory(func() (string, error) { return "", errors.New("unset") }))
}
