// Package review publishes AI review results as a single canonical pull request
// comment.
package review

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

var markerRegexp = regexp.MustCompile(`<!-- devasign-ai-review installation:(\d+) pr:(\d+) -->`)

// Marker is the hidden tag that identifies the AI comment on a pull request.
func Marker(installationID int64, prNumber int) string {
	return fmt.Sprintf("<!-- devasign-ai-review installation:%d pr:%d -->", installationID, prNumber)
}

// HasMarker reports whether body carries the marker of the given PR.
func HasMarker(body string, installationID int64, prNumber int) bool {
	for _, m := range markerRegexp.FindAllStringSubmatch(body, -1) {
		id, _ := strconv.ParseInt(m[1], 10, 64)
		pr, _ := strconv.Atoi(m[2])
		if id == installationID && pr == prNumber {
			return true
		}
	}
	return false
}

var severityOrder = []core.Severity{
	core.SeverityCritical,
	core.SeverityHigh,
	core.SeverityMedium,
	core.SeverityLow,
}

// FormatReviewComment renders a ReviewResult as the PR comment body.
func FormatReviewComment(r *core.ReviewResult) string {
	var sb strings.Builder

	sb.WriteString(Marker(r.InstallationID, r.PRNumber))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "## %s DevAsign AI Review\n\n", statusIcon(r.ReviewStatus))
	fmt.Fprintf(&sb, "**Merge score:** %d/100 · **Status:** %s · **Confidence:** %d%%\n\n",
		r.MergeScore, statusLabel(r.ReviewStatus), int(r.Confidence*100+0.5))

	if summary := strings.TrimSpace(r.Summary); summary != "" {
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}

	if len(r.RulesViolated) > 0 {
		sb.WriteString("### ❌ Rules violated\n\n")
		for _, rule := range r.RulesViolated {
			fmt.Fprintf(&sb, "- %s **%s**", severityEmoji(rule.Severity), rule.Name)
			if rule.Details != "" {
				fmt.Fprintf(&sb, ": %s", rule.Details)
			} else if rule.Description != "" {
				fmt.Fprintf(&sb, ": %s", rule.Description)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(r.RulesPassed) > 0 {
		sb.WriteString("<details>\n<summary>✅ Rules passed (")
		sb.WriteString(strconv.Itoa(len(r.RulesPassed)))
		sb.WriteString(")</summary>\n\n")
		for _, rule := range r.RulesPassed {
			fmt.Fprintf(&sb, "- %s\n", rule.Name)
		}
		sb.WriteString("\n</details>\n\n")
	}

	if len(r.Suggestions) > 0 {
		sb.WriteString("### 💡 Suggestions\n\n")
		for _, s := range r.Suggestions {
			writeSuggestion(&sb, s)
		}
		writeStatistics(&sb, r.Suggestions)
	}

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "<sub>Reviewed in %.1fs. This comment is updated on every push.</sub>\n", r.ProcessingTime.Seconds())
	return sb.String()
}

func writeSuggestion(sb *strings.Builder, s core.CodeSuggestion) {
	fmt.Fprintf(sb, "#### %s %s", severityEmoji(s.Severity), severityTitle(s.Severity))
	if s.Type != "" {
		fmt.Fprintf(sb, " | %s", s.Type)
	}
	if s.File != "" {
		fmt.Fprintf(sb, " | `%s", s.File)
		if s.LineNumber > 0 {
			fmt.Fprintf(sb, ":%d", s.LineNumber)
		}
		sb.WriteString("`")
	}
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(s.Description))
	sb.WriteString("\n\n")
	if code := strings.TrimSpace(s.SuggestedCode); code != "" {
		fmt.Fprintf(sb, "```\n%s\n```\n\n", code)
	}
}

func writeStatistics(sb *strings.Builder, suggestions []core.CodeSuggestion) {
	counts := make(map[core.Severity]int, len(severityOrder))
	for _, s := range suggestions {
		counts[s.Severity]++
	}

	sb.WriteString("#### 📊 Issue Statistics\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("|----------|-------|\n")
	for _, sev := range severityOrder {
		if n := counts[sev]; n > 0 {
			fmt.Fprintf(sb, "| %s %s | %d |\n", severityEmoji(sev), severityTitle(sev), n)
		}
	}
	sb.WriteString("\n")
}

// FormatErrorComment renders the comment posted when a review could not be
// produced or published. It carries the same marker as a review so that a later
// successful review replaces it.
func FormatErrorComment(installationID int64, prNumber int, cause error) string {
	var sb strings.Builder
	sb.WriteString(Marker(installationID, prNumber))
	sb.WriteString("\n")
	sb.WriteString("## ⚠️ DevAsign AI Review unavailable\n\n")
	sb.WriteString("> [!WARNING]\n")
	sb.WriteString("> The automated review for this pull request could not be completed.\n")
	sb.WriteString("> It will be retried on the next push. Maintainers can also trigger a manual analysis.\n\n")
	if code := errorCode(cause); code != "" {
		fmt.Fprintf(&sb, "<sub>Error code: `%s`</sub>\n", code)
	}
	return sb.String()
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return core.KindOf(err).Code()
}

func statusIcon(s core.ReviewStatus) string {
	switch s {
	case core.ReviewReadyToMerge:
		return "✅"
	case core.ReviewNeedsWork:
		return "🛠️"
	case core.ReviewMajorIssues:
		return "🚫"
	default:
		return "📝"
	}
}

func statusLabel(s core.ReviewStatus) string {
	switch s {
	case core.ReviewReadyToMerge:
		return "Ready to merge"
	case core.ReviewNeedsWork:
		return "Needs work"
	case core.ReviewMajorIssues:
		return "Major issues"
	default:
		return string(s)
	}
}

func severityTitle(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return "Critical"
	case core.SeverityHigh:
		return "High"
	case core.SeverityMedium:
		return "Medium"
	case core.SeverityLow:
		return "Low"
	default:
		return "Note"
	}
}

func severityEmoji(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return "🔴"
	case core.SeverityHigh:
		return "🟠"
	case core.SeverityMedium:
		return "🟡"
	case core.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}
