// Package util holds small naming and parsing helpers shared across packages.
package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var collectionNameRegexp = regexp.MustCompile("[^a-z0-9_-]+")

const maxCollectionNameLength = 255

// CollectionName builds the vector store collection that holds a repository's
// indexed chunks. Collections are scoped per installation so a reinstalled App
// never reads another account's vectors, and per embedding model so vectors of
// different dimensions never share a collection.
func CollectionName(installationID int64, repoFullName, embedderName string) string {
	safeRepoName := strings.ToLower(strings.ReplaceAll(repoFullName, "/", "-"))
	safeEmbedderName := strings.ToLower(strings.Split(embedderName, ":")[0])

	safeRepoName = collectionNameRegexp.ReplaceAllString(safeRepoName, "")
	safeEmbedderName = collectionNameRegexp.ReplaceAllString(safeEmbedderName, "")

	name := fmt.Sprintf("devasign-%d-%s-%s", installationID, safeRepoName, safeEmbedderName)
	if len(name) > maxCollectionNameLength {
		name = name[:maxCollectionNameLength]
	}
	return name
}

// SplitRepoFullName splits owner/repo. It returns ok=false for anything else.
func SplitRepoFullName(fullName string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(strings.TrimSpace(fullName), "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

var pullRequestURLRegexp = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)$`)

// ParsePullRequestURL extracts owner, repo and number from a GitHub pull request
// URL such as https://github.com/acme/widgets/pull/42. The scheme is optional.
func ParsePullRequestURL(raw string) (owner, repo string, number int, err error) {
	m := pullRequestURLRegexp.FindStringSubmatch(strings.TrimSuffix(strings.TrimSpace(raw), "/"))
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid pull request URL: %s", raw)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number in %s", raw)
	}
	return m[1], m[2], number, nil
}
