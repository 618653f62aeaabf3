package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// RepoConfigFile is the path of the per-repository review configuration.
const RepoConfigFile = ".devasign.yml"

var ErrConfigParsing = errors.New("config parsing failed")

// ParseRepoConfig parses the contents of a .devasign.yml file. Empty input yields the
// defaults. Rules without an ID or name are dropped; severities default to medium.
func ParseRepoConfig(data []byte) (*core.RepoConfig, error) {
	cfg := core.DefaultRepoConfig()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return core.DefaultRepoConfig(), fmt.Errorf("%w: %w", ErrConfigParsing, err)
	}

	rules := cfg.CustomRules[:0]
	for _, r := range cfg.CustomRules {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Name) == "" {
			continue
		}
		if r.Severity == "" {
			r.Severity = core.SeverityMedium
		}
		rules = append(rules, r)
	}
	cfg.CustomRules = rules

	paths := cfg.ExcludePaths[:0]
	for _, p := range cfg.ExcludePaths {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if p != "" {
			paths = append(paths, p)
		}
	}
	cfg.ExcludePaths = paths

	return cfg, nil
}
