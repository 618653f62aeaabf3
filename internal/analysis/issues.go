// Package analysis turns a pull request into a review: it resolves linked issues,
// decides eligibility, builds the prompt context and asks the AI provider for a
// verdict.
package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// closingRefRegexp matches a GitHub closing keyword followed by an issue reference:
// "#12", "owner/repo#12" or "https://github.com/owner/repo/issues/12".
var closingRefRegexp = regexp.MustCompile(
	`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)\b:?\s+` +
		`(?:https?://github\.com/([\w.-]+)/([\w.-]+)/issues/(\d+)|([\w.-]+)/([\w.-]+)#(\d+)|#(\d+))\b`)

// ExtractLinkedIssues returns the issues a PR body closes, in order of first
// appearance and without duplicates. Bare "#N" references resolve to owner/repo.
func ExtractLinkedIssues(body, owner, repo string) []core.LinkedIssue {
	matches := closingRefRegexp.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	issues := make([]core.LinkedIssue, 0, len(matches))

	for _, m := range matches {
		var issue core.LinkedIssue
		switch {
		case m[3] != "":
			issue = core.LinkedIssue{Owner: m[1], Repo: m[2], Number: atoi(m[3])}
		case m[6] != "":
			issue = core.LinkedIssue{Owner: m[4], Repo: m[5], Number: atoi(m[6])}
		default:
			issue = core.LinkedIssue{Owner: owner, Repo: repo, Number: atoi(m[7])}
		}
		if issue.Number <= 0 {
			continue
		}

		key := strings.ToLower(issue.FullName())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		issues = append(issues, issue)
	}
	return issues
}

// IssuesInRepo keeps the issues that belong to owner/repo (case-insensitive).
func IssuesInRepo(issues []core.LinkedIssue, owner, repo string) []core.LinkedIssue {
	var out []core.LinkedIssue
	for _, i := range issues {
		if strings.EqualFold(i.Owner, owner) && strings.EqualFold(i.Repo, repo) {
			out = append(out, i)
		}
	}
	return out
}

// IssueNumbers returns the numbers of issues.
func IssueNumbers(issues []core.LinkedIssue) []int {
	nums := make([]int, 0, len(issues))
	for _, i := range issues {
		nums = append(nums, i.Number)
	}
	return nums
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
