package review

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func sampleResult() *core.ReviewResult {
	r := &core.ReviewResult{
		InstallationID: 42,
		RepositoryName: "acme/widgets",
		PRNumber:       7,
		MergeScore:     62,
		Summary:        "Solid change with a couple of gaps in error handling.",
		Confidence:     0.84,
		RulesViolated: []core.RuleEvaluation{
			{ID: "tests", Name: "Tests included", Severity: core.SeverityHigh, Details: "No test covers the new parser."},
		},
		RulesPassed: []core.RuleEvaluation{
			{ID: "naming", Name: "Naming conventions"},
			{ID: "docs", Name: "Documentation"},
		},
		Suggestions: []core.CodeSuggestion{
			{File: "parser.go", LineNumber: 40, Type: "bug", Severity: core.SeverityCritical, Description: "Nil map write.", SuggestedCode: "m := map[string]int{}"},
			{File: "parser.go", Severity: core.SeverityLow, Description: "Rename tmp."},
			{Severity: core.SeverityLow, Description: "Add a changelog entry."},
		},
		ProcessingTime: 2400 * time.Millisecond,
	}
	r.Normalize()
	return r
}

func TestMarker(t *testing.T) {
	body := "intro\n" + Marker(42, 7) + "\nrest"

	assert.True(t, HasMarker(body, 42, 7))
	assert.False(t, HasMarker(body, 42, 8))
	assert.False(t, HasMarker(body, 41, 7))
	assert.False(t, HasMarker("no marker here", 42, 7))
}

func TestFormatReviewComment(t *testing.T) {
	body := FormatReviewComment(sampleResult())

	assert.True(t, strings.HasPrefix(body, Marker(42, 7)+"\n"))
	assert.Contains(t, body, "## 🛠️ DevAsign AI Review")
	assert.Contains(t, body, "**Merge score:** 62/100 · **Status:** Needs work · **Confidence:** 84%")
	assert.Contains(t, body, "Solid change with a couple of gaps in error handling.")
	assert.Contains(t, body, "### ❌ Rules violated")
	assert.Contains(t, body, "**Tests included**: No test covers the new parser.")
	assert.Contains(t, body, "<summary>✅ Rules passed (2)</summary>")
	assert.Contains(t, body, "| `parser.go:40`")
	assert.Contains(t, body, "```\nm := map[string]int{}\n```")
	assert.Contains(t, body, "| 🔴 Critical | 1 |")
	assert.Contains(t, body, "| 🟢 Low | 2 |")
	assert.NotContains(t, body, "| 🟠 High |")
	assert.Contains(t, body, "Reviewed in 2.4s.")

	// Sections appear in a fixed order.
	violated := strings.Index(body, "Rules violated")
	passed := strings.Index(body, "Rules passed")
	suggestions := strings.Index(body, "Suggestions")
	stats := strings.Index(body, "Issue Statistics")
	assert.Less(t, violated, passed)
	assert.Less(t, passed, suggestions)
	assert.Less(t, suggestions, stats)
}

func TestFormatReviewComment_EmptySections(t *testing.T) {
	r := &core.ReviewResult{InstallationID: 1, RepositoryName: "a/b", PRNumber: 2, MergeScore: 90}
	r.Normalize()

	body := FormatReviewComment(r)

	assert.Contains(t, body, "## ✅ DevAsign AI Review")
	assert.NotContains(t, body, "Rules violated")
	assert.NotContains(t, body, "Rules passed")
	assert.NotContains(t, body, "Suggestions")
}

func TestFormatErrorComment(t *testing.T) {
	body := FormatErrorComment(42, 7, core.NewError(core.KindAnalysis, "AI review failed", errors.New("timeout")))

	assert.True(t, HasMarker(body, 42, 7))
	assert.Contains(t, body, "> [!WARNING]")
	assert.Contains(t, body, "`GEMINI_SERVICE_ERROR`")
	assert.NotContains(t, body, "timeout")

	assert.NotContains(t, FormatErrorComment(42, 7, nil), "Error code")
}
