package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

const (
	maxPatchChars     = 12000
	maxIssueBodyChars = 2000
	maxDocChars       = 4000
	truncationMarker  = "\n... [truncated]"
)

// PromptInput is everything FormatPRContext renders.
type PromptInput struct {
	PR          *core.PullRequestData
	RepoConfig  *core.RepoConfig
	RepoContext RepoContext
}

// FormatPRContext renders a pull request into the text blob sent to the reviewer.
// The output depends only on its input: files keep API order, and nothing is keyed
// by map iteration or time.
func FormatPRContext(in PromptInput) string {
	pr := in.PR
	var sb strings.Builder

	fmt.Fprintf(&sb, "Repository: %s\n", pr.RepoFullName)
	fmt.Fprintf(&sb, "Pull request #%d: %s\n", pr.PRNumber, pr.PRTitle)
	if pr.PRAuthor != "" {
		fmt.Fprintf(&sb, "Author: %s\n", pr.PRAuthor)
	}
	if pr.BaseBranch != "" {
		fmt.Fprintf(&sb, "Base branch: %s\n", pr.BaseBranch)
	}

	sb.WriteString("\n### Description\n")
	if body := strings.TrimSpace(pr.PRBody); body != "" {
		sb.WriteString(body)
	} else {
		sb.WriteString("(no description)")
	}
	sb.WriteString("\n")

	if len(pr.LinkedIssues) > 0 {
		sb.WriteString("\n### Linked issues\n")
		for _, issue := range pr.LinkedIssues {
			fmt.Fprintf(&sb, "#### %s", issue.FullName())
			if issue.Title != "" {
				fmt.Fprintf(&sb, ": %s", issue.Title)
			}
			sb.WriteString("\n")
			if len(issue.Labels) > 0 {
				fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(issue.Labels, ", "))
			}
			if body := strings.TrimSpace(issue.Body); body != "" {
				sb.WriteString(truncate(body, maxIssueBodyChars))
				sb.WriteString("\n")
			}
		}
	}

	writeChangedFiles(&sb, pr.ChangedFiles, in.RepoConfig)
	writeRepoContext(&sb, in.RepoContext)

	return sb.String()
}

func writeChangedFiles(sb *strings.Builder, files []core.ChangedFile, repoCfg *core.RepoConfig) {
	additions, deletions := 0, 0
	for _, f := range files {
		additions += f.Additions
		deletions += f.Deletions
	}

	fmt.Fprintf(sb, "\n### Changed files (%d, +%d -%d)\n", len(files), additions, deletions)
	for _, f := range files {
		fmt.Fprintf(sb, "- %s (%s, +%d -%d)", f.Filename, f.Status, f.Additions, f.Deletions)
		if f.PreviousFilename != "" {
			fmt.Fprintf(sb, " renamed from %s", f.PreviousFilename)
		}
		sb.WriteString("\n")
	}

	for _, f := range files {
		fmt.Fprintf(sb, "\n#### %s\n", f.Filename)
		switch {
		case isExcluded(f.Filename, repoCfg):
			sb.WriteString("(diff omitted: excluded by repository configuration)\n")
		case f.Patch == "":
			sb.WriteString("(no textual diff)\n")
		default:
			fmt.Fprintf(sb, "```diff\n%s\n```\n", truncate(f.Patch, maxPatchChars))
		}
	}
}

func writeRepoContext(sb *strings.Builder, rc RepoContext) {
	if len(rc.Guidelines) > 0 {
		sb.WriteString("\n### Repository guidelines\n")
		for _, d := range rc.Guidelines {
			fmt.Fprintf(sb, "#### %s\n%s\n", d.Source, truncate(strings.TrimSpace(d.Content), maxDocChars))
		}
	}
	if len(rc.Related) > 0 {
		sb.WriteString("\n### Related code\n")
		for _, d := range rc.Related {
			fmt.Fprintf(sb, "#### %s\n```\n%s\n```\n", d.Source, truncate(strings.TrimSpace(d.Content), maxDocChars))
		}
	}
}

func isExcluded(path string, repoCfg *core.RepoConfig) bool {
	if repoCfg == nil {
		return false
	}
	for _, prefix := range repoCfg.ExcludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
