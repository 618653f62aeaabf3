package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func TestValidateResult(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *core.ReviewResult)
		wantErr bool
		field   string
	}{
		{name: "valid", mutate: func(*core.ReviewResult) {}},
		{name: "missing repository", mutate: func(r *core.ReviewResult) { r.RepositoryName = "" }, wantErr: true, field: "ReviewResult.RepositoryName (required)"},
		{name: "zero pr number", mutate: func(r *core.ReviewResult) { r.PRNumber = 0 }, wantErr: true, field: "ReviewResult.PRNumber (required)"},
		{name: "score out of range", mutate: func(r *core.ReviewResult) { r.MergeScore = 101 }, wantErr: true, field: "ReviewResult.MergeScore (lte)"},
		{name: "nil suggestions", mutate: func(r *core.ReviewResult) { r.Suggestions = nil }, wantErr: true, field: "ReviewResult.Suggestions (required)"},
		{name: "suggestion without description", mutate: func(r *core.ReviewResult) { r.Suggestions[0].Description = "" }, wantErr: true, field: "ReviewResult.Suggestions[0].Description (required)"},
		{name: "unknown severity", mutate: func(r *core.ReviewResult) { r.RulesViolated[0].Severity = "blocker" }, wantErr: true, field: "ReviewResult.RulesViolated[0].Severity (oneof)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleResult()
			tt.mutate(r)

			err := ValidateResult(r)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			e, ok := core.AsError(err)
			require.True(t, ok)
			assert.Equal(t, core.KindValidation, e.Kind)
			assert.Contains(t, e.Details["fields"], tt.field)
		})
	}

	assert.True(t, core.IsKind(ValidateResult(nil), core.KindValidation))
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retry(t.Context(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return transientErr()
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		err := retry(t.Context(), policy, func(context.Context) error {
			calls++
			return transientErr()
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry not found", func(t *testing.T) {
		calls := 0
		err := retry(t.Context(), policy, func(context.Context) error {
			calls++
			return notFoundErr()
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		calls := 0
		err := retry(ctx, RetryPolicy{Attempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
			calls++
			cancel()
			return errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
