package analysis

import (
	"strings"

	"github.com/temirov/ygg/internal/runerrors"
)

const (
	// DefaultLockfileName is the target file in package-audit mode when none is given.
	DefaultLockfileName = "package-lock.json"

	packageFieldConstant            = "package"
	searchFieldConstant             = "search"
	conflictingModesMessageConstant = "package and search cannot be combined"
	searchNeedsFileMessageConstant  = "search requires a filename"
)

// Mode is the kind of work a run performs.
type Mode string

// Supported modes.
const (
	ModeListing      Mode = Mode("listing")
	ModePackageAudit Mode = Mode("package")
	ModeStringSearch Mode = Mode("search")
)

// ModeOptions carries the user-facing selectors.
type ModeOptions struct {
	PackageName  string
	FileName     string
	SearchString string
}

// ResolvedMode is a validated mode with its target file and query.
type ResolvedMode struct {
	Mode     Mode
	FileName string
	Query    string
}

// FetchesContent reports whether the mode retrieves files.
func (resolved ResolvedMode) FetchesContent() bool {
	return resolved.Mode != ModeListing
}

// ResolveMode validates the selectors. It performs no I/O.
func ResolveMode(options ModeOptions) (ResolvedMode, error) {
	packageName := strings.TrimSpace(options.PackageName)
	fileName := strings.TrimSpace(options.FileName)
	searchString := options.SearchString
	searchRequested := len(searchString) > 0

	switch {
	case len(packageName) > 0 && searchRequested:
		return ResolvedMode{}, runerrors.ConfigurationError{Field: packageFieldConstant, Message: conflictingModesMessageConstant}
	case searchRequested && len(fileName) == 0:
		return ResolvedMode{}, runerrors.ConfigurationError{Field: searchFieldConstant, Message: searchNeedsFileMessageConstant}
	case searchRequested:
		return ResolvedMode{Mode: ModeStringSearch, FileName: fileName, Query: searchString}, nil
	case len(packageName) > 0:
		if len(fileName) == 0 {
			fileName = DefaultLockfileName
		}
		return ResolvedMode{Mode: ModePackageAudit, FileName: fileName, Query: packageName}, nil
	default:
		return ResolvedMode{Mode: ModeListing}, nil
	}
}
