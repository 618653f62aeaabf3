package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
	"github.com/devasignhq/devasign-api-sub002/mocks"
)

type prPayload struct {
	action string
	draft  bool
	merged bool
	body   string
	base   string
}

func (p prPayload) bytes(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"action": p.action,
		"number": 7,
		"pull_request": map[string]any{
			"number": 7,
			"title":  "Add sorting",
			"body":   p.body,
			"draft":  p.draft,
			"merged": p.merged,
			"user":   map[string]any{"login": "octo"},
			"base":   map[string]any{"ref": p.base},
			"head":   map[string]any{"sha": "abc123"},
		},
		"repository": map[string]any{
			"name":           "widgets",
			"full_name":      "acme/widgets",
			"default_branch": "main",
			"owner":          map[string]any{"login": "acme"},
		},
		"installation": map[string]any{"id": 42},
	})
	require.NoError(t, err)
	return data
}

func newClassifierWithBranch(t *testing.T, branch string, lookupErr error) (*Classifier, *mocks.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().GetDefaultBranch(gomock.Any(), "acme", "widgets").Return(branch, lookupErr).AnyTimes()
	factory := github.ClientFactoryFunc(func(context.Context, int64) (github.Client, error) { return client, nil })
	return NewClassifier(factory, logger.Discard()), client
}

func TestClassifyPullRequest(t *testing.T) {
	tests := []struct {
		name       string
		payload    prPayload
		wantRoute  Route
		wantCode   string
		wantReason string
	}{
		{
			name:      "opened eligible PR",
			payload:   prPayload{action: "opened", body: "Closes #1", base: "main"},
			wantRoute: RouteAnalyze,
		},
		{
			name:      "synchronize eligible PR",
			payload:   prPayload{action: "synchronize", body: "fixes #2", base: "main"},
			wantRoute: RouteAnalyze,
		},
		{
			name:      "ready for review",
			payload:   prPayload{action: "ready_for_review", body: "resolves #3", base: "main"},
			wantRoute: RouteAnalyze,
		},
		{
			name:       "draft PR",
			payload:    prPayload{action: "opened", draft: true, body: "Closes #1", base: "main"},
			wantRoute:  RouteSkip,
			wantCode:   CodeNotEligible,
			wantReason: "PR is in draft status",
		},
		{
			name:       "no linked issues",
			payload:    prPayload{action: "opened", body: "refactor", base: "main"},
			wantRoute:  RouteSkip,
			wantCode:   CodeNotEligible,
			wantReason: "PR does not link to any issues",
		},
		{
			name:       "not default branch",
			payload:    prPayload{action: "opened", body: "Closes #1", base: "develop"},
			wantRoute:  RouteSkip,
			wantCode:   CodeNotDefaultBranch,
			wantReason: "not_default_branch",
		},
		{
			name:      "merged PR pays out",
			payload:   prPayload{action: "closed", merged: true, body: "Closes #5", base: "main"},
			wantRoute: RoutePayout,
		},
		{
			name:       "merged PR into other branch is skipped",
			payload:    prPayload{action: "closed", merged: true, body: "Closes #5", base: "release"},
			wantRoute:  RouteSkip,
			wantCode:   CodeNotDefaultBranch,
			wantReason: "not_default_branch",
		},
		{
			name:       "closed without merge",
			payload:    prPayload{action: "closed", body: "Closes #5", base: "main"},
			wantRoute:  RouteSkip,
			wantCode:   CodeActionNotProcessed,
			wantReason: "action not processed",
		},
		{
			name:       "edited",
			payload:    prPayload{action: "edited", body: "Closes #5", base: "main"},
			wantRoute:  RouteSkip,
			wantCode:   CodeActionNotProcessed,
			wantReason: "action not processed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newClassifierWithBranch(t, "main", nil)

			v, err := c.Classify(t.Context(), "pull_request", tt.payload.action, tt.payload.bytes(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, v.Route)
			assert.Equal(t, tt.wantCode, v.Code)
			assert.Equal(t, tt.wantReason, v.Reason)
			if tt.wantRoute != RouteSkip {
				require.NotNil(t, v.Event)
				assert.Equal(t, int64(42), v.InstallationID)
				assert.Equal(t, 7, v.Event.PRNumber)
			}
		})
	}
}

func TestClassifyDefaultBranchLookupFailureContinues(t *testing.T) {
	c, _ := newClassifierWithBranch(t, "", errors.New("github unavailable"))

	p := prPayload{action: "opened", body: "Closes #1", base: "feature"}
	v, err := c.Classify(t.Context(), "pull_request", "opened", p.bytes(t))
	require.NoError(t, err)
	assert.Equal(t, RouteAnalyze, v.Route)
}

func TestClassifyClientFactoryFailureContinues(t *testing.T) {
	factory := github.ClientFactoryFunc(func(context.Context, int64) (github.Client, error) {
		return nil, core.NewError(core.KindConfiguration, "GitHub App credentials are not configured", nil)
	})
	c := NewClassifier(factory, logger.Discard())

	p := prPayload{action: "closed", merged: true, body: "Closes #1", base: "feature"}
	v, err := c.Classify(t.Context(), "pull_request", "closed", p.bytes(t))
	require.NoError(t, err)
	assert.Equal(t, RoutePayout, v.Route)
}

func TestClassifyIneligibleSkipsNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	factory := github.ClientFactoryFunc(func(context.Context, int64) (github.Client, error) { return client, nil })
	c := NewClassifier(factory, logger.Discard())

	p := prPayload{action: "opened", draft: true, body: "Closes #1", base: "main"}
	v, err := c.Classify(t.Context(), "pull_request", "opened", p.bytes(t))
	require.NoError(t, err)
	assert.Equal(t, RouteSkip, v.Route)
}

func TestClassifyOtherEvents(t *testing.T) {
	c := NewClassifier(nil, logger.Discard())

	v, err := c.Classify(t.Context(), "issues", "opened", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, RouteSkip, v.Route)
	assert.Equal(t, CodeEventNotProcessed, v.Code)
	assert.Equal(t, "issues", v.EventType)

	v, err = c.Classify(t.Context(), "installation", "created", []byte(`{"action":"created","installation":{"id":9}}`))
	require.NoError(t, err)
	assert.Equal(t, RouteSkip, v.Route)
	assert.Equal(t, CodeActionNotProcessed, v.Code)

	v, err = c.Classify(t.Context(), "installation", "deleted", []byte(`{"action":"deleted","installation":{"id":9}}`))
	require.NoError(t, err)
	assert.Equal(t, RouteInstallationDeleted, v.Route)
	assert.Equal(t, int64(9), v.InstallationID)
}

func TestClassifyMalformedPayload(t *testing.T) {
	c := NewClassifier(nil, logger.Discard())

	_, err := c.Classify(t.Context(), "pull_request", "opened", []byte(`{"action":"opened"}`))
	require.Error(t, err)
	assert.Equal(t, core.KindMalformedPayload, core.KindOf(err))

	_, err = c.Classify(t.Context(), "pull_request", "opened", []byte(`[`))
	assert.Equal(t, core.KindMalformedPayload, core.KindOf(err))

	_, err = c.Classify(t.Context(), "installation", "deleted", []byte(`{"action":"deleted"}`))
	assert.Equal(t, core.KindMalformedPayload, core.KindOf(err))
}
