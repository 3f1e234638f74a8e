package analysis_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/repository"
)

func TestStringSearchAnalyzer(testInstance *testing.T) {
	reference, parseError := repository.Parse("acme/api")
	require.NoError(testInstance, parseError)

	testCases := []struct {
		name               string
		needle             string
		content            string
		expectedMatched    bool
		expectedSnippet    string
		expectedLineNumber int
		expectedMatchCount int
	}{
		{
			name:               "first_line_reported",
			needle:             "legacy-endpoint",
			content:            "service:\n  url: https://legacy-endpoint.example\n  fallback: legacy-endpoint\r\n",
			expectedMatched:    true,
			expectedSnippet:    "url: https://legacy-endpoint.example",
			expectedLineNumber: 2,
			expectedMatchCount: 2,
		},
		{
			name:            "case_sensitive",
			needle:          "Legacy",
			content:         "legacy: true\n",
			expectedMatched: false,
		},
		{
			name:               "match_without_trailing_newline",
			needle:             "true",
			content:            "enabled: true",
			expectedMatched:    true,
			expectedSnippet:    "enabled: true",
			expectedLineNumber: 1,
			expectedMatchCount: 1,
		},
		{
			name:            "empty_file",
			needle:          "anything",
			content:         "",
			expectedMatched: false,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			outcome := analysis.NewStringSearchAnalyzer(testCase.needle).Analyze(reference, []byte(testCase.content))
			match, isMatch := outcome.(analysis.StringMatch)
			require.True(testInstance, isMatch)
			require.Equal(testInstance, testCase.expectedMatched, match.Matched)
			require.Equal(testInstance, testCase.expectedSnippet, match.Snippet)
			require.Equal(testInstance, testCase.expectedLineNumber, match.LineNumber)
			require.Equal(testInstance, testCase.expectedMatchCount, match.MatchCount)
		})
	}
}

func TestStringSearchSnippetIsBounded(testInstance *testing.T) {
	reference, parseError := repository.Parse("acme/api")
	require.NoError(testInstance, parseError)

	longLine := strings.Repeat("é", 300) + " needle"
	outcome := analysis.NewStringSearchAnalyzer("needle").Analyze(reference, []byte(longLine))
	match := outcome.(analysis.StringMatch)
	require.True(testInstance, match.Matched)
	require.Equal(testInstance, analysis.SnippetRuneLimit+1, utf8.RuneCountInString(match.Snippet))
	require.True(testInstance, strings.HasSuffix(match.Snippet, "…"))
}
