package core

import (
	"encoding/json"
	"time"
)

// ReviewStatus is the outcome classification of a review.
type ReviewStatus string

const (
	ReviewReadyToMerge ReviewStatus = "READY_TO_MERGE"
	ReviewNeedsWork    ReviewStatus = "NEEDS_WORK"
	ReviewMajorIssues  ReviewStatus = "MAJOR_ISSUES"
	ReviewFailed       ReviewStatus = "FAILED"
)

// ReviewStatusForScore maps a merge score onto a review status.
func ReviewStatusForScore(score int) ReviewStatus {
	switch {
	case score >= 75:
		return ReviewReadyToMerge
	case score >= 50:
		return ReviewNeedsWork
	default:
		return ReviewMajorIssues
	}
}

// Severity grades rules and suggestions.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RuleEvaluation is a single rule checked against a pull request.
type RuleEvaluation struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Severity    Severity `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Description string   `json:"description,omitempty"`
	Details     string   `json:"details,omitempty"`
}

// CodeSuggestion is an actionable improvement the reviewer proposes.
type CodeSuggestion struct {
	File          string   `json:"file"`
	LineNumber    int      `json:"lineNumber,omitempty" validate:"gte=0"`
	Type          string   `json:"type,omitempty"`
	Severity      Severity `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Description   string   `json:"description" validate:"required"`
	SuggestedCode string   `json:"suggestedCode,omitempty"`
}

// ReviewResult is the outcome of analyzing one pull request. The slices are never nil
// once a result has been normalized.
type ReviewResult struct {
	InstallationID int64            `json:"installationId" validate:"required"`
	RepositoryName string           `json:"repositoryName" validate:"required"`
	PRNumber       int              `json:"prNumber" validate:"required,gt=0"`
	MergeScore     int              `json:"mergeScore" validate:"gte=0,lte=100"`
	RulesViolated  []RuleEvaluation `json:"rulesViolated" validate:"required,dive"`
	RulesPassed    []RuleEvaluation `json:"rulesPassed" validate:"required,dive"`
	Suggestions    []CodeSuggestion `json:"suggestions" validate:"required,dive"`
	ReviewStatus   ReviewStatus     `json:"reviewStatus" validate:"required"`
	Summary        string           `json:"summary"`
	Confidence     float64          `json:"confidence" validate:"gte=0,lte=1"`
	ProcessingTime time.Duration    `json:"-"`
	CreatedAt      time.Time        `json:"createdAt"`
	CommentID      *int64           `json:"commentId,omitempty"`
}

type reviewResultJSON ReviewResult

// MarshalJSON renders ProcessingTime as milliseconds.
func (r ReviewResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		reviewResultJSON
		ProcessingTimeMs int64 `json:"processingTimeMs"`
	}{reviewResultJSON(r), r.ProcessingTime.Milliseconds()})
}

// Normalize clamps the score and replaces nil collections with empty ones.
func (r *ReviewResult) Normalize() {
	if r.MergeScore < 0 {
		r.MergeScore = 0
	}
	if r.MergeScore > 100 {
		r.MergeScore = 100
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.RulesViolated == nil {
		r.RulesViolated = []RuleEvaluation{}
	}
	if r.RulesPassed == nil {
		r.RulesPassed = []RuleEvaluation{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []CodeSuggestion{}
	}
	if r.ReviewStatus == "" {
		r.ReviewStatus = ReviewStatusForScore(r.MergeScore)
	}
}
