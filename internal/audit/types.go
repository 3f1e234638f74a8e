package audit

import (
	"github.com/temirov/ygg/internal/githubapi"
	"github.com/temirov/ygg/internal/githubauth"
)

// ReportFormat selects how the final report is rendered.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatText ReportFormat = "text"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

// SupportedReportFormats lists the accepted format names in display order.
func SupportedReportFormats() []string {
	return []string{string(ReportFormatText), string(ReportFormatCSV), string(ReportFormatJSON), string(ReportFormatYAML)}
}

// CommandOptions captures the resolved parameters of one audit run.
type CommandOptions struct {
	RepositoryListPath  string
	Query               string
	Organization        string
	PackageName         string
	FileName            string
	SearchString        string
	Ref                 string
	Format              ReportFormat
	ClearCache          bool
	Revalidate          bool
	WriteRepositoryList bool
	TokenSource         githubauth.TokenSource
	ResultCeiling       int
	Workers             int
	CacheDirectory      string
	CacheMemoryEntries  int
	API                 githubapi.Configuration
}
