// Package core defines the essential interfaces and data structures that form the
// backbone of the application. Transport, storage and AI layers depend on core;
// core depends on nothing inside the module.
package core

import (
	"fmt"

	"github.com/google/go-github/v73/github"
)

// WebhookEvent is an incoming delivery as received from GitHub. Payload holds the raw
// request bytes, which are the only valid input for signature verification.
type WebhookEvent struct {
	EventType  string
	Action     string
	DeliveryID string
	Signature  string
	Payload    []byte
}

// PullRequestEvent is the internal view of a pull_request webhook.
type PullRequestEvent struct {
	Action         string
	InstallationID int64
	RepoOwner      string
	RepoName       string
	RepoFullName   string
	DefaultBranch  string

	PRNumber   int
	PRTitle    string
	PRBody     string
	PRAuthor   string
	PRURL      string
	IsDraft    bool
	IsMerged   bool
	BaseBranch string
	HeadSHA    string
	Labels     []string
}

// EventFromPullRequest transforms a go-github PullRequestEvent into the internal
// representation. It rejects payloads that lack the fields every downstream
// consumer relies on.
func EventFromPullRequest(event *github.PullRequestEvent) (*PullRequestEvent, error) {
	repo := event.GetRepo()
	if repo == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	pr := event.GetPullRequest()
	if pr == nil || event.GetNumber() <= 0 && pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("pull request information is missing from the event")
	}

	if event.GetInstallation().GetID() == 0 {
		return nil, fmt.Errorf("installation ID is missing from the event")
	}

	number := pr.GetNumber()
	if number == 0 {
		number = event.GetNumber()
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	fullName := repo.GetFullName()
	if fullName == "" {
		fullName = repo.GetOwner().GetLogin() + "/" + repo.GetName()
	}

	return &PullRequestEvent{
		Action:         event.GetAction(),
		InstallationID: event.GetInstallation().GetID(),
		RepoOwner:      repo.GetOwner().GetLogin(),
		RepoName:       repo.GetName(),
		RepoFullName:   fullName,
		DefaultBranch:  repo.GetDefaultBranch(),
		PRNumber:       number,
		PRTitle:        pr.GetTitle(),
		PRBody:         pr.GetBody(),
		PRAuthor:       pr.GetUser().GetLogin(),
		PRURL:          pr.GetHTMLURL(),
		IsDraft:        pr.GetDraft(),
		IsMerged:       pr.GetMerged(),
		BaseBranch:     pr.GetBase().GetRef(),
		HeadSHA:        pr.GetHead().GetSHA(),
		Labels:         labels,
	}, nil
}

// PullRequestData is everything the analysis pipeline knows about a pull request
// before any AI call is made.
type PullRequestData struct {
	InstallationID int64
	RepoOwner      string
	RepoName       string
	RepoFullName   string
	PRNumber       int
	PRTitle        string
	PRBody         string
	PRAuthor       string
	PRURL          string
	IsDraft        bool
	BaseBranch     string
	HeadSHA        string
	Labels         []string

	LinkedIssues []LinkedIssue
	ChangedFiles []ChangedFile
}

// LinkedIssue is an issue referenced by a closing keyword in a PR body.
type LinkedIssue struct {
	Owner  string   `json:"owner"`
	Repo   string   `json:"repo"`
	Number int      `json:"number"`
	Title  string   `json:"title,omitempty"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
	URL    string   `json:"url,omitempty"`
}

// FullName returns owner/repo#number.
func (i LinkedIssue) FullName() string {
	return fmt.Sprintf("%s/%s#%d", i.Owner, i.Repo, i.Number)
}

// ChangedFile is a single file in a pull request diff.
type ChangedFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Patch            string `json:"patch,omitempty"`
	PreviousFilename string `json:"previousFilename,omitempty"`
}
