package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/temirov/ygg/internal/analysis"
	"github.com/temirov/ygg/internal/pipeline"
	"github.com/temirov/ygg/internal/repository"
)

const (
	versionLineTemplateConstant            = "%s\t: %s\n"
	unrecognizedVersionSuffixConstant      = " (unrecognized version)"
	matchLineTemplateConstant              = "%s:%d\t: %s\n"
	repositoryLineTemplateConstant         = "%s\n"
	failureLineTemplateConstant            = "%s\t: %s\n"
	noMatchLineTemplateConstant            = "no match\t: %s\n"
	absentLineTemplateConstant             = "not found\t: %s\n"
	summaryLineTemplateConstant            = "repositories: %d, found: %d, no match: %d, absent: %d, failed: %d\n"
	partialWarningMessageConstant          = "warning: search results were truncated; the report covers a partial repository set\n"
	unsupportedFormatErrorTemplateConstant = "unsupported report format %q"
	jsonIndentConstant                     = "  "
	yamlIndentConstant                     = 2
	csvKindVersionConstant                 = "version"
	csvKindMatchConstant                   = "match"
	csvKindNoMatchConstant                 = "no_match"
	csvKindAbsentConstant                  = "absent"
	csvKindFailedConstant                  = "failed"
	csvKindRepositoryConstant              = "repository"
)

var csvHeader = []string{"kind", "repository", "value", "line", "detail"}

type reportDocument struct {
	Mode         string            `json:"mode" yaml:"mode"`
	FileName     string            `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Query        string            `json:"query,omitempty" yaml:"query,omitempty"`
	Partial      bool              `json:"partial" yaml:"partial"`
	Summary      summaryDocument   `json:"summary" yaml:"summary"`
	Repositories []string          `json:"repositories,omitempty" yaml:"repositories,omitempty"`
	Versions     []versionDocument `json:"versions,omitempty" yaml:"versions,omitempty"`
	Matches      []matchDocument   `json:"matches,omitempty" yaml:"matches,omitempty"`
	NoMatch      []string          `json:"no_match,omitempty" yaml:"no_match,omitempty"`
	Absent       []string          `json:"absent,omitempty" yaml:"absent,omitempty"`
	Failed       []failureDocument `json:"failed,omitempty" yaml:"failed,omitempty"`
}

type summaryDocument struct {
	Repositories int `json:"repositories" yaml:"repositories"`
	Found        int `json:"found" yaml:"found"`
	NoMatch      int `json:"no_match" yaml:"no_match"`
	Absent       int `json:"absent" yaml:"absent"`
	Failed       int `json:"failed" yaml:"failed"`
}

type versionDocument struct {
	Version      string   `json:"version" yaml:"version"`
	Valid        bool     `json:"valid" yaml:"valid"`
	Repositories []string `json:"repositories" yaml:"repositories"`
}

type matchDocument struct {
	Repository string `json:"repository" yaml:"repository"`
	Line       int    `json:"line" yaml:"line"`
	Snippet    string `json:"snippet" yaml:"snippet"`
	Count      int    `json:"count" yaml:"count"`
}

type failureDocument struct {
	Repository string `json:"repository" yaml:"repository"`
	Reason     string `json:"reason" yaml:"reason"`
	Message    string `json:"message" yaml:"message"`
}

// ReportRenderer writes a report in one format. Diagnostics go to the error writer.
type ReportRenderer struct {
	Format       ReportFormat
	OutputWriter io.Writer
	ErrorWriter  io.Writer
}

// Render writes the report.
func (renderer ReportRenderer) Render(report pipeline.Report) error {
	switch renderer.Format {
	case ReportFormatText, "":
		return renderer.renderText(report)
	case ReportFormatCSV:
		return renderer.renderCSV(report)
	case ReportFormatJSON:
		encoder := json.NewEncoder(renderer.OutputWriter)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(newReportDocument(report))
	case ReportFormatYAML:
		encoder := yaml.NewEncoder(renderer.OutputWriter)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(newReportDocument(report)); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	default:
		return fmt.Errorf(unsupportedFormatErrorTemplateConstant, renderer.Format)
	}
}

func (renderer ReportRenderer) renderText(report pipeline.Report) error {
	switch report.Mode {
	case analysis.ModeListing:
		for _, reference := range report.Repositories {
			if _, writeError := fmt.Fprintf(renderer.OutputWriter, repositoryLineTemplateConstant, reference); writeError != nil {
				return writeError
			}
		}
	case analysis.ModePackageAudit:
		for _, group := range report.VersionGroups {
			versionText := group.Version
			if !group.Valid {
				versionText += unrecognizedVersionSuffixConstant
			}
			for _, reference := range group.Repositories {
				if _, writeError := fmt.Fprintf(renderer.OutputWriter, versionLineTemplateConstant, versionText, reference); writeError != nil {
					return writeError
				}
			}
		}
	case analysis.ModeStringSearch:
		for _, match := range report.Matches {
			if _, writeError := fmt.Fprintf(renderer.OutputWriter, matchLineTemplateConstant, match.Repository, match.LineNumber, match.Snippet); writeError != nil {
				return writeError
			}
		}
	}

	if renderer.ErrorWriter == nil {
		return nil
	}
	for _, reference := range report.NoMatch {
		fmt.Fprintf(renderer.ErrorWriter, noMatchLineTemplateConstant, reference)
	}
	for _, reference := range report.Absent {
		fmt.Fprintf(renderer.ErrorWriter, absentLineTemplateConstant, reference)
	}
	for _, failure := range report.Failed {
		fmt.Fprintf(renderer.ErrorWriter, failureLineTemplateConstant, failure.Repository, failure.Message())
	}
	if report.Mode != analysis.ModeListing {
		summary := report.Summary()
		fmt.Fprintf(renderer.ErrorWriter, summaryLineTemplateConstant, summary.Repositories, summary.Found, summary.NoMatch, summary.Absent, summary.Failed)
	}
	if report.Partial {
		fmt.Fprint(renderer.ErrorWriter, partialWarningMessageConstant)
	}
	return nil
}

func (renderer ReportRenderer) renderCSV(report pipeline.Report) error {
	writer := csv.NewWriter(renderer.OutputWriter)
	if writeError := writer.Write(csvHeader); writeError != nil {
		return writeError
	}

	records := make([][]string, 0, len(report.Repositories))
	if report.Mode == analysis.ModeListing {
		for _, reference := range report.Repositories {
			records = append(records, []string{csvKindRepositoryConstant, reference.String(), "", "", ""})
		}
	}
	for _, group := range report.VersionGroups {
		for _, reference := range group.Repositories {
			records = append(records, []string{csvKindVersionConstant, reference.String(), group.Version, "", strconv.FormatBool(group.Valid)})
		}
	}
	for _, match := range report.Matches {
		records = append(records, []string{csvKindMatchConstant, match.Repository.String(), match.Snippet, strconv.Itoa(match.LineNumber), strconv.Itoa(match.MatchCount)})
	}
	for _, reference := range report.NoMatch {
		records = append(records, []string{csvKindNoMatchConstant, reference.String(), "", "", ""})
	}
	for _, reference := range report.Absent {
		records = append(records, []string{csvKindAbsentConstant, reference.String(), "", "", ""})
	}
	for _, failure := range report.Failed {
		records = append(records, []string{csvKindFailedConstant, failure.Repository.String(), string(failure.Reason), "", failure.Message()})
	}

	return writer.WriteAll(records)
}

func newReportDocument(report pipeline.Report) reportDocument {
	summary := report.Summary()
	document := reportDocument{
		Mode:     string(report.Mode),
		FileName: report.FileName,
		Query:    report.Query,
		Partial:  report.Partial,
		Summary: summaryDocument{
			Repositories: summary.Repositories,
			Found:        summary.Found,
			NoMatch:      summary.NoMatch,
			Absent:       summary.Absent,
			Failed:       summary.Failed,
		},
		NoMatch: referenceTexts(report.NoMatch),
		Absent:  referenceTexts(report.Absent),
	}
	if report.Mode == analysis.ModeListing {
		document.Repositories = referenceTexts(report.Repositories)
	}
	for _, group := range report.VersionGroups {
		document.Versions = append(document.Versions, versionDocument{
			Version:      group.Version,
			Valid:        group.Valid,
			Repositories: referenceTexts(group.Repositories),
		})
	}
	for _, match := range report.Matches {
		document.Matches = append(document.Matches, matchDocument{
			Repository: match.Repository.String(),
			Line:       match.LineNumber,
			Snippet:    match.Snippet,
			Count:      match.MatchCount,
		})
	}
	for _, failure := range report.Failed {
		document.Failed = append(document.Failed, failureDocument{
			Repository: failure.Repository.String(),
			Reason:     string(failure.Reason),
			Message:    failure.Message(),
		})
	}
	return document
}

func referenceTexts(references []repository.Reference) []string {
	if len(references) == 0 {
		return nil
	}
	texts := make([]string, 0, len(references))
	for _, reference := range references {
		texts = append(texts, reference.String())
	}
	return texts
}
