package analysis

import (
	"github.com/temirov/ygg/internal/repository"
)

// Analyzer turns fetched file content into an outcome. Implementations never return nil.
type Analyzer interface {
	Analyze(reference repository.Reference, content []byte) Outcome
}

// NewAnalyzer returns the analyzer for a resolved mode, or nil in listing mode.
func NewAnalyzer(resolved ResolvedMode) Analyzer {
	switch resolved.Mode {
	case ModePackageAudit:
		return NewLockfileAnalyzer(resolved.Query, resolved.FileName)
	case ModeStringSearch:
		return NewStringSearchAnalyzer(resolved.Query)
	default:
		return nil
	}
}
