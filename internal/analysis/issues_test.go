package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func TestExtractLinkedIssues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "empty body", body: "", want: nil},
		{name: "mention without keyword", body: "see #12 for context", want: nil},
		{name: "bare reference", body: "Fixes #12", want: []string{"acme/widgets#12"}},
		{name: "keyword with colon", body: "Resolves: #7", want: []string{"acme/widgets#7"}},
		{
			name: "all keyword forms",
			body: "close #1, closes #2, closed #3, fix #4, fixes #5, fixed #6, resolve #7, resolves #8, resolved #9",
			want: []string{
				"acme/widgets#1", "acme/widgets#2", "acme/widgets#3",
				"acme/widgets#4", "acme/widgets#5", "acme/widgets#6",
				"acme/widgets#7", "acme/widgets#8", "acme/widgets#9",
			},
		},
		{name: "case insensitive keyword", body: "FIXES #3", want: []string{"acme/widgets#3"}},
		{name: "cross repository", body: "closes other/lib#44", want: []string{"other/lib#44"}},
		{
			name: "issue url",
			body: "Fixes https://github.com/acme/widgets/issues/99",
			want: []string{"acme/widgets#99"},
		},
		{
			name: "duplicates keep first appearance",
			body: "Fixes #5\nAlso closes #2 and resolves acme/widgets#5",
			want: []string{"acme/widgets#5", "acme/widgets#2"},
		},
		{name: "issue zero is ignored", body: "fixes #0", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLinkedIssues(tt.body, "acme", "widgets")
			var names []string
			for _, i := range got {
				names = append(names, i.FullName())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestIssuesInRepo(t *testing.T) {
	issues := []core.LinkedIssue{
		{Owner: "acme", Repo: "widgets", Number: 1},
		{Owner: "other", Repo: "lib", Number: 2},
		{Owner: "ACME", Repo: "Widgets", Number: 3},
	}

	got := IssuesInRepo(issues, "acme", "widgets")
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 3}, IssueNumbers(got))
}

func TestShouldAnalyzePR(t *testing.T) {
	t.Run("draft is rejected before parsing", func(t *testing.T) {
		e := ShouldAnalyzePR(Candidate{Owner: "acme", Repo: "widgets", Body: "Fixes #1", IsDraft: true})
		assert.False(t, e.Eligible)
		assert.Equal(t, ReasonDraft, e.Reason)
		assert.Empty(t, e.LinkedIssues)
	})

	t.Run("no linked issues", func(t *testing.T) {
		e := ShouldAnalyzePR(Candidate{Owner: "acme", Repo: "widgets", Body: "small refactor"})
		assert.False(t, e.Eligible)
		assert.Equal(t, ReasonNoLinkedIssues, e.Reason)
	})

	t.Run("eligible", func(t *testing.T) {
		e := ShouldAnalyzePR(Candidate{Owner: "acme", Repo: "widgets", Body: "Closes #8"})
		assert.True(t, e.Eligible)
		assert.Empty(t, e.Reason)
		require.Len(t, e.LinkedIssues, 1)
		assert.Equal(t, 8, e.LinkedIssues[0].Number)
	})
}
