package versions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/internal/versions"
)

func TestCompare(testInstance *testing.T) {
	testCases := []struct {
		name     string
		left     string
		right    string
		expected int
	}{
		{name: "numeric_minor", left: "1.2.0", right: "1.10.0", expected: -1},
		{name: "numeric_major", left: "10.0.0", right: "9.0.0", expected: 1},
		{name: "prerelease_before_release", left: "2.0.0-beta", right: "2.0.0", expected: -1},
		{name: "prerelease_ordering", left: "2.0.0-alpha", right: "2.0.0-beta", expected: -1},
		{name: "build_before_release", left: "1.0.0+build.5", right: "1.0.0", expected: -1},
		{name: "missing_fields_default_zero", left: "1.2", right: "1.2.0", expected: 0},
		{name: "leading_v", left: "v1.3.0", right: "1.3.0", expected: 0},
		{name: "unparsable_after_valid", left: "latest", right: "99.0.0", expected: 1},
		{name: "valid_before_unparsable", left: "0.0.1", right: "file:../local", expected: -1},
		{name: "unparsable_pair_equal", left: "latest", right: "next", expected: 0},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, versions.Compare(testCase.left, testCase.right))
			require.Equal(testInstance, -testCase.expected, versions.Compare(testCase.right, testCase.left))
		})
	}
}

func TestSortKeepsUnparsableLastInOriginalOrder(testInstance *testing.T) {
	input := []string{"latest", "1.10.0", "github:acme/fork", "2.0.0-beta", "1.2.0", "2.0.0", "next"}

	versions.Sort(input)

	require.Equal(testInstance, []string{"1.2.0", "1.10.0", "2.0.0-beta", "2.0.0", "latest", "github:acme/fork", "next"}, input)
}

func TestParseFlagsInvalidVersions(testInstance *testing.T) {
	require.True(testInstance, versions.Parse("1.3.0").Valid)
	require.False(testInstance, versions.Parse("not-a-version").Valid)
	require.Equal(testInstance, "not-a-version", versions.Parse("not-a-version").Original)
}
