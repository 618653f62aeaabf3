package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// ReviewVerdict is the reviewer model's answer before it is attached to a pull request.
type ReviewVerdict struct {
	MergeScore    int                   `json:"-"`
	RulesViolated []core.RuleEvaluation `json:"rulesViolated"`
	RulesPassed   []core.RuleEvaluation `json:"rulesPassed"`
	Suggestions   []core.CodeSuggestion `json:"suggestions"`
	Summary       string                `json:"summary"`
	Confidence    float64               `json:"confidence"`
}

var errNoJSONObject = errors.New("response contains no JSON object")

// ParseReviewVerdict extracts the JSON verdict from a model response. It tolerates
// the usual quirks: code fences, prose around the object, and fractional or string
// scores. Severities are lower-cased; the score is clamped to 0..100.
func ParseReviewVerdict(raw string) (*ReviewVerdict, error) {
	body, err := extractJSONObject(stripCodeFence(raw))
	if err != nil {
		return nil, err
	}

	var wire struct {
		ReviewVerdict
		MergeScore json.RawMessage `json:"mergeScore"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, fmt.Errorf("failed to decode review verdict: %w", err)
	}

	verdict := wire.ReviewVerdict
	score, err := parseScore(wire.MergeScore)
	if err != nil {
		return nil, err
	}
	verdict.MergeScore = score

	for i := range verdict.RulesViolated {
		verdict.RulesViolated[i].Severity = normalizeSeverity(verdict.RulesViolated[i].Severity)
	}
	for i := range verdict.RulesPassed {
		verdict.RulesPassed[i].Severity = normalizeSeverity(verdict.RulesPassed[i].Severity)
	}
	for i := range verdict.Suggestions {
		verdict.Suggestions[i].Severity = normalizeSeverity(verdict.Suggestions[i].Severity)
		if verdict.Suggestions[i].LineNumber < 0 {
			verdict.Suggestions[i].LineNumber = 0
		}
	}
	verdict.Summary = strings.TrimSpace(verdict.Summary)
	return &verdict, nil
}

func parseScore(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("review verdict is missing mergeScore")
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("invalid mergeScore %s", string(raw))
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &f); err != nil {
			return 0, fmt.Errorf("invalid mergeScore %q", s)
		}
	}
	return int(math.Max(0, math.Min(100, math.Round(f)))), nil
}

func normalizeSeverity(s core.Severity) core.Severity {
	switch core.Severity(strings.ToLower(strings.TrimSpace(string(s)))) {
	case core.SeverityLow:
		return core.SeverityLow
	case core.SeverityHigh:
		return core.SeverityHigh
	case core.SeverityCritical:
		return core.SeverityCritical
	case "":
		return ""
	default:
		return core.SeverityMedium
	}
}

// stripCodeFence removes a wrapping ``` fence (with or without a language tag).
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	idx := strings.Index(trimmed, "\n")
	if idx < 0 {
		return s
	}
	inner := trimmed[idx+1:]
	if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
		inner = inner[:lastFence]
	}
	return strings.TrimSpace(inner)
}

func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}
