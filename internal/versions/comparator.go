package versions

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version pairs the original string with its parsed form.
type Version struct {
	Original string
	Valid    bool
	parsed   *semver.Version
}

// Parse interprets a version string. Missing minor and patch fields default to zero
// and a leading "v" is accepted. Unparsable input yields a Version with Valid set to false.
func Parse(versionText string) Version {
	trimmedText := strings.TrimSpace(versionText)
	parsedVersion, parseError := semver.NewVersion(trimmedText)
	if parseError != nil {
		return Version{Original: versionText}
	}
	return Version{Original: versionText, Valid: true, parsed: parsedVersion}
}

// Compare orders two version strings and returns -1, 0, or 1.
func Compare(left string, right string) int {
	return Parse(left).Compare(Parse(right))
}

// Less reports whether left sorts strictly before right.
func Less(left string, right string) bool {
	return Compare(left, right) < 0
}

// Compare orders the receiver against another parsed version.
// Invalid versions sort after every valid version and compare equal to each other,
// so stable sorting keeps their original order.
func (version Version) Compare(other Version) int {
	switch {
	case !version.Valid && !other.Valid:
		return 0
	case !version.Valid:
		return 1
	case !other.Valid:
		return -1
	}

	if comparison := version.parsed.Compare(other.parsed); comparison != 0 {
		return comparison
	}

	return compareMetadata(version.parsed.Metadata(), other.parsed.Metadata())
}

// a build suffix sorts before the bare release
func compareMetadata(left string, right string) int {
	switch {
	case left == right:
		return 0
	case len(left) == 0:
		return 1
	case len(right) == 0:
		return -1
	default:
		return strings.Compare(left, right)
	}
}

// Sort orders version strings in place, keeping unparsable values last in their original order.
func Sort(versionTexts []string) {
	parsedVersions := make(map[string]Version, len(versionTexts))
	for _, versionText := range versionTexts {
		if _, exists := parsedVersions[versionText]; !exists {
			parsedVersions[versionText] = Parse(versionText)
		}
	}
	sort.SliceStable(versionTexts, func(leftIndex int, rightIndex int) bool {
		return parsedVersions[versionTexts[leftIndex]].Compare(parsedVersions[versionTexts[rightIndex]]) < 0
	})
}
