package analysis

import (
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// Reasons a pull request is not analyzed.
const (
	ReasonDraft          = "PR is in draft status"
	ReasonNoLinkedIssues = "PR does not link to any issues"
)

// Candidate is the part of a pull request eligibility depends on.
type Candidate struct {
	Owner   string
	Repo    string
	Body    string
	IsDraft bool
}

// Eligibility is the outcome of ShouldAnalyzePR.
type Eligibility struct {
	Eligible     bool
	Reason       string
	LinkedIssues []core.LinkedIssue
}

// ShouldAnalyzePR decides whether a pull request gets an AI review. It is pure and
// must be consulted before any network call is spent on the PR.
func ShouldAnalyzePR(c Candidate) Eligibility {
	if c.IsDraft {
		return Eligibility{Reason: ReasonDraft}
	}

	linked := ExtractLinkedIssues(c.Body, c.Owner, c.Repo)
	if len(linked) == 0 {
		return Eligibility{Reason: ReasonNoLinkedIssues}
	}
	return Eligibility{Eligible: true, LinkedIssues: linked}
}
