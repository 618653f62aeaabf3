package analysis

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func samplePR() *core.PullRequestData {
	return &core.PullRequestData{
		InstallationID: 42,
		RepoOwner:      "acme",
		RepoName:       "widgets",
		RepoFullName:   "acme/widgets",
		PRNumber:       7,
		PRTitle:        "Add widget sorting",
		PRBody:         "Fixes #12",
		PRAuthor:       "octo",
		BaseBranch:     "main",
		LinkedIssues: []core.LinkedIssue{
			{Owner: "acme", Repo: "widgets", Number: 12, Title: "Sort widgets", Labels: []string{"bounty"}, Body: "Please sort."},
		},
		ChangedFiles: []core.ChangedFile{
			{Filename: "sort.go", Status: "added", Additions: 3, Deletions: 0, Patch: "+package widgets"},
			{Filename: "dist/app.js", Status: "modified", Additions: 1, Deletions: 1, Patch: "-a\n+b"},
		},
	}
}

func TestFormatPRContext(t *testing.T) {
	cfg := core.DefaultRepoConfig()
	cfg.ExcludePaths = []string{"dist/"}

	got := FormatPRContext(PromptInput{PR: samplePR(), RepoConfig: cfg})

	want := "Repository: acme/widgets\n" +
		"Pull request #7: Add widget sorting\n" +
		"Author: octo\n" +
		"Base branch: main\n" +
		"\n### Description\n" +
		"Fixes #12\n" +
		"\n### Linked issues\n" +
		"#### acme/widgets#12: Sort widgets\n" +
		"Labels: bounty\n" +
		"Please sort.\n" +
		"\n### Changed files (2, +4 -1)\n" +
		"- sort.go (added, +3 -0)\n" +
		"- dist/app.js (modified, +1 -1)\n" +
		"\n#### sort.go\n" +
		"```diff\n+package widgets\n```\n" +
		"\n#### dist/app.js\n" +
		"(diff omitted: excluded by repository configuration)\n"
	assert.Equal(t, want, got)
}

func TestFormatPRContextIsDeterministic(t *testing.T) {
	in := PromptInput{
		PR:         samplePR(),
		RepoConfig: core.DefaultRepoConfig(),
		RepoContext: RepoContext{
			Guidelines: []Document{{Source: "CONTRIBUTING.md", Content: "Write tests."}},
			Related:    []Document{{Source: "util.go", Content: "func helper() {}"}},
		},
	}
	first := FormatPRContext(in)
	for range 5 {
		assert.Equal(t, first, FormatPRContext(in))
	}
	assert.Contains(t, first, "### Repository guidelines\n#### CONTRIBUTING.md\nWrite tests.\n")
	assert.Contains(t, first, "### Related code\n#### util.go\n```\nfunc helper() {}\n```\n")
}

func TestFormatPRContextEdgeCases(t *testing.T) {
	pr := samplePR()
	pr.PRBody = "  "
	pr.LinkedIssues = nil
	pr.ChangedFiles = []core.ChangedFile{
		{Filename: "logo.png", Status: "renamed", PreviousFilename: "old.png"},
		{Filename: "big.go", Status: "modified", Patch: strings.Repeat("x", maxPatchChars+10)},
	}

	got := FormatPRContext(PromptInput{PR: pr})

	assert.Contains(t, got, "### Description\n(no description)\n")
	assert.NotContains(t, got, "### Linked issues")
	assert.Contains(t, got, "- logo.png (renamed, +0 -0) renamed from old.png\n")
	assert.Contains(t, got, "#### logo.png\n(no textual diff)\n")
	assert.Contains(t, got, truncationMarker)
}

func TestPromptRules(t *testing.T) {
	cfg := core.DefaultRepoConfig()
	cfg.CustomRules = []core.CustomRule{
		{ID: "tests", Name: "Table tests", Description: "Use table tests.", Severity: core.SeverityLow},
		{ID: "no-panics", Name: "No panics", Description: "Library code never panics.", Severity: core.SeverityHigh},
	}

	rules := promptRules(cfg)

	assert.Len(t, rules, len(DefaultRules)+1)
	assert.Equal(t, "tests", rules[2].ID)
	assert.Equal(t, "Table tests", rules[2].Name)
	assert.Equal(t, "low", rules[2].Severity)
	assert.Equal(t, "no-panics", rules[len(rules)-1].ID)

	assert.Len(t, promptRules(nil), len(DefaultRules))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a limit of 3 lands inside the second one.
	got := truncate("éé€", 3)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "é"+truncationMarker, got)

	// "€" is three bytes; every cut inside it backs off to its start.
	for limit := 5; limit < 7; limit++ {
		got := truncate("éé€x", limit)
		assert.True(t, utf8.ValidString(got), "limit %d", limit)
		assert.Equal(t, "éé"+truncationMarker, got, "limit %d", limit)
	}

	assert.Equal(t, "éé€"+truncationMarker, truncate("éé€x", 7))
	assert.Equal(t, "éé€", truncate("éé€", 7))
}
