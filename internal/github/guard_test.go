package github

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/mocks"
)

type stubGuard struct {
	calls int
	open  bool
}

func (g *stubGuard) Execute(ctx context.Context, fn func(context.Context) error) error {
	g.calls++
	if g.open {
		return core.NewError(core.KindCircuitOpen, "github is temporarily unavailable", nil)
	}
	return fn(ctx)
}

func TestGuardedFactory(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockClient(ctrl)
	inner.EXPECT().GetDefaultBranch(gomock.Any(), "acme", "widgets").Return("main", nil)
	inner.EXPECT().CreateComment(gomock.Any(), "acme", "widgets", 3, "hi").Return(int64(9), nil)

	guard := &stubGuard{}
	factory := GuardedFactory(ClientFactoryFunc(func(context.Context, int64) (Client, error) { return inner, nil }), guard)

	client, err := factory.ForInstallation(t.Context(), 42)
	require.NoError(t, err)

	branch, err := client.GetDefaultBranch(t.Context(), "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	id, err := client.CreateComment(t.Context(), "acme", "widgets", 3, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, 2, guard.calls)

	// An open circuit never reaches the API.
	guard.open = true
	err = client.DeleteComment(t.Context(), "acme", "widgets", 1)
	assert.True(t, core.IsKind(err, core.KindCircuitOpen))
}
