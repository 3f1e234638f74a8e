package pipeline

import (
	"sort"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/repository"
	"github.com/temirov/ygg/internal/versions"
)

// VersionGroup lists the repositories resolving one version of the audited package.
type VersionGroup struct {
	Version      string
	Valid        bool
	Repositories []repository.Reference
}

// Report is the aggregated, deterministically ordered view of a run.
type Report struct {
	Mode          analysis.Mode
	FileName      string
	Query         string
	Partial       bool
	Repositories  []repository.Reference
	VersionGroups []VersionGroup
	Matches       []analysis.StringMatch
	NoMatch       []repository.Reference
	Absent        []repository.Reference
	Failed        []analysis.FetchFailed
}

// Summary counts repositories per report bucket.
type Summary struct {
	Repositories int
	Found        int
	NoMatch      int
	Absent       int
	Failed       int
}

// BuildReport groups outcomes. Every bucket is sorted; completion order never leaks into the report.
func BuildReport(resolved analysis.ResolvedMode, repositories []repository.Reference, outcomes []analysis.Outcome, partial bool) Report {
	report := Report{
		Mode:         resolved.Mode,
		FileName:     resolved.FileName,
		Query:        resolved.Query,
		Partial:      partial,
		Repositories: append([]repository.Reference(nil), repositories...),
	}
	repository.SortReferences(report.Repositories)

	groupsByVersion := make(map[string]*VersionGroup)
	var versionTexts []string
	for _, outcome := range outcomes {
		switch typedOutcome := outcome.(type) {
		case analysis.VersionFound:
			for _, version := range typedOutcome.Versions {
				group, exists := groupsByVersion[version]
				if !exists {
					group = &VersionGroup{Version: version, Valid: versions.Parse(version).Valid}
					groupsByVersion[version] = group
					versionTexts = append(versionTexts, version)
				}
				group.Repositories = append(group.Repositories, typedOutcome.Repository)
			}
		case analysis.PackageAbsent:
			report.NoMatch = append(report.NoMatch, typedOutcome.Repository)
		case analysis.StringMatch:
			if typedOutcome.Matched {
				report.Matches = append(report.Matches, typedOutcome)
			} else {
				report.NoMatch = append(report.NoMatch, typedOutcome.Repository)
			}
		case analysis.FileAbsent:
			report.Absent = append(report.Absent, typedOutcome.Repository)
		case analysis.FetchFailed:
			report.Failed = append(report.Failed, typedOutcome)
		}
	}

	versions.Sort(versionTexts)
	for _, version := range versionTexts {
		group := groupsByVersion[version]
		repository.SortReferences(group.Repositories)
		report.VersionGroups = append(report.VersionGroups, *group)
	}

	sort.SliceStable(report.Matches, func(leftIndex int, rightIndex int) bool {
		return report.Matches[leftIndex].Repository.Less(report.Matches[rightIndex].Repository)
	})
	sort.SliceStable(report.Failed, func(leftIndex int, rightIndex int) bool {
		return report.Failed[leftIndex].Repository.Less(report.Failed[rightIndex].Repository)
	})
	repository.SortReferences(report.NoMatch)
	repository.SortReferences(report.Absent)
	return report
}

// Summary counts distinct repositories per bucket.
func (report Report) Summary() Summary {
	foundRepositories := repository.NewSet()
	for _, group := range report.VersionGroups {
		for _, reference := range group.Repositories {
			foundRepositories.Add(reference)
		}
	}
	for _, match := range report.Matches {
		foundRepositories.Add(match.Repository)
	}
	return Summary{
		Repositories: len(report.Repositories),
		Found:        foundRepositories.Len(),
		NoMatch:      len(report.NoMatch),
		Absent:       len(report.Absent),
		Failed:       len(report.Failed),
	}
}
