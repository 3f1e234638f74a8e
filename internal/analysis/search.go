package analysis

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/temirov/ygg/internal/repository"
)

const (
	// SnippetRuneLimit bounds the length of a reported match snippet.
	SnippetRuneLimit = 160

	snippetTrimCutsetConstant = " \t\r"
	snippetEllipsisConstant   = "…"
)

var lineSeparator = []byte("\n")

// StringSearchAnalyzer looks for a literal, case-sensitive needle.
type StringSearchAnalyzer struct {
	Needle string
}

// NewStringSearchAnalyzer builds an analyzer for needle.
func NewStringSearchAnalyzer(needle string) StringSearchAnalyzer {
	return StringSearchAnalyzer{Needle: needle}
}

// Analyze reports the first matching line and the number of lines containing the needle.
func (analyzer StringSearchAnalyzer) Analyze(reference repository.Reference, content []byte) Outcome {
	needle := []byte(analyzer.Needle)
	firstIndex := -1
	if len(needle) > 0 {
		firstIndex = bytes.Index(content, needle)
	}
	if firstIndex < 0 {
		return StringMatch{Repository: reference}
	}

	lineStart := bytes.LastIndex(content[:firstIndex], lineSeparator) + 1
	lineEnd := len(content)
	if separatorOffset := bytes.Index(content[firstIndex:], lineSeparator); separatorOffset >= 0 {
		lineEnd = firstIndex + separatorOffset
	}

	return StringMatch{
		Repository: reference,
		Matched:    true,
		Snippet:    boundSnippet(strings.Trim(string(content[lineStart:lineEnd]), snippetTrimCutsetConstant)),
		LineNumber: bytes.Count(content[:firstIndex], lineSeparator) + 1,
		MatchCount: countMatchingLines(content, needle),
	}
}

func countMatchingLines(content []byte, needle []byte) int {
	if bytes.Contains(needle, lineSeparator) {
		return bytes.Count(content, needle)
	}
	matchingLines := 0
	for _, line := range bytes.Split(content, lineSeparator) {
		if bytes.Contains(line, needle) {
			matchingLines++
		}
	}
	return matchingLines
}

func boundSnippet(line string) string {
	line = strings.ToValidUTF8(line, "")
	if utf8.RuneCountInString(line) <= SnippetRuneLimit {
		return line
	}
	runes := []rune(line)
	return string(runes[:SnippetRuneLimit]) + snippetEllipsisConstant
}
