package analysis

import (
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/llm"
)

// DefaultRules are evaluated on every pull request.
var DefaultRules = []core.CustomRule{
	{ID: "issue-scope", Name: "Resolves the linked issue", Severity: core.SeverityCritical,
		Description: "The change implements what the linked issues ask for and nothing unrelated."},
	{ID: "code-quality", Name: "Readable, idiomatic code", Severity: core.SeverityMedium,
		Description: "Names are clear, functions are focused, and the code follows the project's conventions."},
	{ID: "tests", Name: "Tests cover new behavior", Severity: core.SeverityHigh,
		Description: "New or changed code paths are exercised by tests."},
	{ID: "security", Name: "No security regressions", Severity: core.SeverityCritical,
		Description: "No committed secrets, injection risks, or disabled security checks."},
	{ID: "error-handling", Name: "Errors are handled", Severity: core.SeverityHigh,
		Description: "Failures are checked and surfaced, not silently ignored."},
	{ID: "documentation", Name: "User-facing changes are documented", Severity: core.SeverityLow,
		Description: "Public APIs, configuration, and behavior changes are documented."},
}

// promptRules merges the default rules with a repository's custom rules. A custom
// rule with the ID of a default rule replaces it in place.
func promptRules(repoCfg *core.RepoConfig) []llm.ReviewRule {
	custom := make(map[string]core.CustomRule)
	var extra []core.CustomRule
	if repoCfg != nil {
		for _, r := range repoCfg.CustomRules {
			if _, isDefault := defaultRuleIDs[r.ID]; isDefault {
				custom[r.ID] = r
			} else {
				extra = append(extra, r)
			}
		}
	}

	rules := make([]llm.ReviewRule, 0, len(DefaultRules)+len(extra))
	for _, r := range DefaultRules {
		if override, ok := custom[r.ID]; ok {
			r = override
		}
		rules = append(rules, toPromptRule(r))
	}
	for _, r := range extra {
		rules = append(rules, toPromptRule(r))
	}
	return rules
}

var defaultRuleIDs = func() map[string]struct{} {
	ids := make(map[string]struct{}, len(DefaultRules))
	for _, r := range DefaultRules {
		ids[r.ID] = struct{}{}
	}
	return ids
}()

func toPromptRule(r core.CustomRule) llm.ReviewRule {
	return llm.ReviewRule{ID: r.ID, Name: r.Name, Description: r.Description, Severity: string(r.Severity)}
}
