package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		name     string
		id       int64
		repo     string
		embedder string
		want     string
	}{
		{name: "simple", id: 42, repo: "Acme/Widgets", embedder: "nomic-embed-text", want: "devasign-42-acme-widgets-nomic-embed-text"},
		{name: "model tag dropped", id: 1, repo: "a/b", embedder: "nomic-embed-text:latest", want: "devasign-1-a-b-nomic-embed-text"},
		{name: "unsafe characters removed", id: 7, repo: "o.rg/re po!", embedder: "text-embedding-004", want: "devasign-7-org-repo-text-embedding-004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectionName(tt.id, tt.repo, tt.embedder))
		})
	}

	long := CollectionName(1, "owner/"+strings.Repeat("x", 400), "m")
	assert.Len(t, long, maxCollectionNameLength)
}

func TestSplitRepoFullName(t *testing.T) {
	owner, repo, ok := SplitRepoFullName("acme/widgets")
	assert.True(t, ok)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)

	for _, bad := range []string{"", "acme", "acme/", "/widgets", "a/b/c"} {
		_, _, ok := SplitRepoFullName(bad)
		assert.False(t, ok, bad)
	}
}

func TestParsePullRequestURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{name: "https", url: "https://github.com/acme/widgets/pull/42", owner: "acme", repo: "widgets", number: 42},
		{name: "no scheme", url: "github.com/acme/widgets/pull/7", owner: "acme", repo: "widgets", number: 7},
		{name: "trailing slash", url: "https://github.com/acme/widgets/pull/9/", owner: "acme", repo: "widgets", number: 9},
		{name: "issue url", url: "https://github.com/acme/widgets/issues/42", wantErr: true},
		{name: "not a number", url: "https://github.com/acme/widgets/pull/abc", wantErr: true},
		{name: "zero", url: "https://github.com/acme/widgets/pull/0", wantErr: true},
		{name: "files tab", url: "https://github.com/acme/widgets/pull/42/files", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, number, err := ParsePullRequestURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.number, number)
		})
	}
}
