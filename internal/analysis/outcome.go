package analysis

import (
	"github.com/temirov/ygg/internal/repository"
)

// FailureReason classifies a per-repository failure.
type FailureReason string

// Failure reasons recorded in FetchFailed outcomes.
const (
	FailureReasonParse            FailureReason = FailureReason("parse_error")
	FailureReasonNetwork          FailureReason = FailureReason("network_error")
	FailureReasonServer           FailureReason = FailureReason("server_error")
	FailureReasonRateLimited      FailureReason = FailureReason("rate_limited")
	FailureReasonUnexpectedStatus FailureReason = FailureReason("unexpected_status")
	FailureReasonResponseTooLarge FailureReason = FailureReason("response_too_large")
	FailureReasonCanceled         FailureReason = FailureReason("canceled")
)

// Outcome is the result of processing one repository. The concrete types are
// VersionFound, PackageAbsent, StringMatch, FileAbsent, and FetchFailed.
type Outcome interface {
	Reference() repository.Reference
	outcome()
}

// VersionFound lists every distinct resolved version of the audited package, in comparator order.
type VersionFound struct {
	Repository repository.Reference
	Versions   []string
}

// PackageAbsent reports a lockfile that parsed but does not contain the package.
type PackageAbsent struct {
	Repository repository.Reference
}

// StringMatch reports a literal search. Matched is false when the file exists without the needle.
type StringMatch struct {
	Repository repository.Reference
	Matched    bool
	Snippet    string
	LineNumber int
	MatchCount int
}

// FileAbsent reports that the target file does not exist in the repository.
type FileAbsent struct {
	Repository repository.Reference
}

// FetchFailed records a failure that did not abort the run.
type FetchFailed struct {
	Repository repository.Reference
	Reason     FailureReason
	Cause      error
}

// Reference identifies the repository.
func (outcome VersionFound) Reference() repository.Reference { return outcome.Repository }

// Reference identifies the repository.
func (outcome PackageAbsent) Reference() repository.Reference { return outcome.Repository }

// Reference identifies the repository.
func (outcome StringMatch) Reference() repository.Reference { return outcome.Repository }

// Reference identifies the repository.
func (outcome FileAbsent) Reference() repository.Reference { return outcome.Repository }

// Reference identifies the repository.
func (outcome FetchFailed) Reference() repository.Reference { return outcome.Repository }

func (VersionFound) outcome()  {}
func (PackageAbsent) outcome() {}
func (StringMatch) outcome()   {}
func (FileAbsent) outcome()    {}
func (FetchFailed) outcome()   {}

// Message renders the failure cause, or the reason when no cause was recorded.
func (outcome FetchFailed) Message() string {
	if outcome.Cause == nil {
		return string(outcome.Reason)
	}
	return outcome.Cause.Error()
}
