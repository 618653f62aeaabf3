package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
)

func TestParseReviewVerdict(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantScore int
		wantErr   bool
		check     func(t *testing.T, v *ReviewVerdict)
	}{
		{
			name:      "plain json",
			input:     `{"mergeScore": 82, "rulesViolated": [], "rulesPassed": [{"id":"tests","name":"Tests","severity":"High"}], "suggestions": [], "summary": " Looks good. ", "confidence": 0.9}`,
			wantScore: 82,
			check: func(t *testing.T, v *ReviewVerdict) {
				assert.Equal(t, "Looks good.", v.Summary)
				require.Len(t, v.RulesPassed, 1)
				assert.Equal(t, core.SeverityHigh, v.RulesPassed[0].Severity)
				assert.InDelta(t, 0.9, v.Confidence, 0.0001)
			},
		},
		{
			name:      "fenced json with prose",
			input:     "Here is my review:\n```json\n{\"mergeScore\": 55.6, \"summary\": \"ok\"}\n```",
			wantScore: 56,
		},
		{
			name:      "string score above range is clamped",
			input:     `{"mergeScore": "140", "summary": "great"}`,
			wantScore: 100,
		},
		{
			name:      "negative score is clamped",
			input:     `{"mergeScore": -3}`,
			wantScore: 0,
		},
		{
			name:  "unknown severity becomes medium",
			input: `{"mergeScore": 40, "suggestions": [{"file":"a.go","lineNumber":-2,"severity":"urgent","description":"fix"}]}`,
			check: func(t *testing.T, v *ReviewVerdict) {
				require.Len(t, v.Suggestions, 1)
				assert.Equal(t, core.SeverityMedium, v.Suggestions[0].Severity)
				assert.Equal(t, 0, v.Suggestions[0].LineNumber)
			},
			wantScore: 40,
		},
		{name: "no json", input: "I cannot review this.", wantErr: true},
		{name: "missing score", input: `{"summary": "x"}`, wantErr: true},
		{name: "garbage score", input: `{"mergeScore": "high"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseReviewVerdict(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, v.MergeScore)
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestPromptManager_Render(t *testing.T) {
	pm, err := NewPromptManager()
	require.NoError(t, err)

	data := ReviewPromptData{
		Context:      "PR #7: Fix login",
		Rules:        []ReviewRule{{ID: "tests", Name: "Tests cover new behavior", Description: "New code paths have tests.", Severity: "high"}},
		Instructions: []string{"Prefer table-driven tests."},
	}

	out, err := pm.Render(PRReviewPrompt, GeminiProvider, data)
	require.NoError(t, err)
	assert.Contains(t, out, "- [tests] Tests cover new behavior (high): New code paths have tests.")
	assert.Contains(t, out, "- Prefer table-driven tests.")
	assert.Contains(t, out, "PR #7: Fix login")

	again, err := pm.Render(PRReviewPrompt, GeminiProvider, data)
	require.NoError(t, err)
	assert.Equal(t, out, again, "rendering must be deterministic")

	local, err := pm.Render(PRReviewPrompt, OllamaProvider, data)
	require.NoError(t, err)
	assert.Contains(t, local, "Output ONLY one JSON object")

	_, err = pm.Render("unknown", DefaultProvider, data)
	assert.Error(t, err)
}

func TestParsePromptFileName(t *testing.T) {
	key, provider, err := parsePromptFileName("pr_review_ollama.prompt")
	require.NoError(t, err)
	assert.Equal(t, PRReviewPrompt, key)
	assert.Equal(t, OllamaProvider, provider)

	for _, bad := range []string{"review.prompt", "_ollama.prompt", "review_.prompt"} {
		_, _, err := parsePromptFileName(bad)
		assert.Error(t, err, bad)
	}
}

func TestReviewer_Unconfigured(t *testing.T) {
	r := NewReviewer(nil, nil, DefaultProvider, 0, logger.Discard())

	_, err := r.GenerateReview(t.Context(), "prompt")
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))

	_, err = r.GenerateEmbedding(t.Context(), "text")
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
}
