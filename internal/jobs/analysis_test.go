package jobs

import (
	"context"
	"errors"
	"testing"

	gh "github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
	"github.com/devasignhq/devasign-api-sub002/mocks"
)

type fakeAnalyzer struct {
	got    *core.PullRequestData
	result *core.ReviewResult
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ github.Client, pr *core.PullRequestData) (*core.ReviewResult, error) {
	f.got = pr
	return f.result, f.err
}

type fakePoster struct {
	posted     []*core.ReviewResult
	postErr    error
	errorCalls []error
}

func (f *fakePoster) PostReviewComment(_ context.Context, r *core.ReviewResult) (int64, error) {
	if f.postErr != nil {
		return 0, f.postErr
	}
	f.posted = append(f.posted, r)
	id := int64(100)
	r.CommentID = &id
	return id, nil
}

func (f *fakePoster) PostAnalysisError(_ context.Context, _ int64, _ string, _ int, cause error) error {
	f.errorCalls = append(f.errorCalls, cause)
	return nil
}

type fakeResults struct {
	saved []*core.ReviewResult
	err   error
}

func (f *fakeResults) SaveReviewResult(_ context.Context, r *core.ReviewResult) error {
	f.saved = append(f.saved, r)
	return f.err
}

func analysisJob() *core.AnalysisJob {
	return &core.AnalysisJob{
		ID:   "job-1",
		Type: core.JobTypePRAnalysis,
		Data: core.AnalysisRequest{InstallationID: 42, RepositoryName: "acme/widgets", PRNumber: 7, HeadSHA: "abc"},
	}
}

func factoryFor(client github.Client) github.ClientFactory {
	return github.ClientFactoryFunc(func(context.Context, int64) (github.Client, error) { return client, nil })
}

func TestAnalysisHandler_Handle(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetPullRequest(gomock.Any(), "acme", "widgets", 7).Return(&gh.PullRequest{
		Number: gh.Ptr(7),
		Title:  gh.Ptr("Fix parser"),
		Body:   gh.Ptr("Fixes #12"),
		Head:   &gh.PullRequestBranch{SHA: gh.Ptr("def")},
		User:   &gh.User{Login: gh.Ptr("dev")},
	}, nil)

	result := &core.ReviewResult{InstallationID: 42, RepositoryName: "acme/widgets", PRNumber: 7, MergeScore: 80}
	analyzer := &fakeAnalyzer{result: result}
	poster := &fakePoster{}
	results := &fakeResults{err: errors.New("db down")}

	h := NewAnalysisHandler(factoryFor(client), analyzer, poster, results, logger.Discard())
	out, err := h.Handle(t.Context(), analysisJob())

	require.NoError(t, err)
	assert.Same(t, result, out)
	require.NotNil(t, analyzer.got)
	assert.Equal(t, "acme/widgets", analyzer.got.RepoFullName)
	assert.Equal(t, "def", analyzer.got.HeadSHA)
	assert.Equal(t, 7, analyzer.got.PRNumber)
	require.Len(t, poster.posted, 1)
	// Persistence failures do not fail the job.
	require.Len(t, results.saved, 1)
	require.NotNil(t, results.saved[0].CommentID)
}

func TestAnalysisHandler_HandleErrors(t *testing.T) {
	t.Run("invalid repository", func(t *testing.T) {
		h := NewAnalysisHandler(nil, &fakeAnalyzer{}, &fakePoster{}, nil, logger.Discard())
		job := analysisJob()
		job.Data.RepositoryName = "widgets"

		_, err := h.Handle(t.Context(), job)
		assert.True(t, core.IsKind(err, core.KindValidation))
	})

	t.Run("client factory failure", func(t *testing.T) {
		factory := github.ClientFactoryFunc(func(context.Context, int64) (github.Client, error) {
			return nil, core.Errorf(core.KindConfiguration, "GitHub App credentials are not configured")
		})
		h := NewAnalysisHandler(factory, &fakeAnalyzer{}, &fakePoster{}, nil, logger.Discard())

		_, err := h.Handle(t.Context(), analysisJob())
		assert.True(t, core.IsKind(err, core.KindConfiguration))
	})

	t.Run("analysis failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().GetPullRequest(gomock.Any(), "acme", "widgets", 7).Return(&gh.PullRequest{Number: gh.Ptr(7)}, nil)
		poster := &fakePoster{}
		h := NewAnalysisHandler(factoryFor(client), &fakeAnalyzer{err: core.NewError(core.KindAnalysis, "AI review failed", nil)}, poster, nil, logger.Discard())

		_, err := h.Handle(t.Context(), analysisJob())
		assert.True(t, core.IsKind(err, core.KindAnalysis))
		assert.Empty(t, poster.posted)
	})

	t.Run("publish failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mocks.NewMockClient(ctrl)
		client.EXPECT().GetPullRequest(gomock.Any(), "acme", "widgets", 7).Return(&gh.PullRequest{Number: gh.Ptr(7)}, nil)
		results := &fakeResults{}
		poster := &fakePoster{postErr: core.NewError(core.KindTransient, "github create comment failed", nil)}
		h := NewAnalysisHandler(factoryFor(client), &fakeAnalyzer{result: &core.ReviewResult{}}, poster, results, logger.Discard())

		_, err := h.Handle(t.Context(), analysisJob())
		assert.True(t, core.IsKind(err, core.KindTransient))
		assert.Empty(t, results.saved)
	})
}

func TestAnalysisHandler_OnJobFailed(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantPosts int
	}{
		{name: "analysis failure", err: core.NewError(core.KindAnalysis, "AI review failed", nil), wantPosts: 1},
		{name: "untyped failure", err: errors.New("boom"), wantPosts: 1},
		{name: "ineligible", err: core.Errorf(core.KindValidation, "PR is in draft status")},
		{name: "no access", err: core.Errorf(core.KindPermission, "installation lacks access")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &fakePoster{}
			h := NewAnalysisHandler(nil, &fakeAnalyzer{}, poster, nil, logger.Discard())

			h.OnJobFailed(t.Context(), analysisJob(), tt.err)

			assert.Len(t, poster.errorCalls, tt.wantPosts)
		})
	}
}
