package core

// RepoConfig represents the structure of the .devasign.yml file a repository may
// carry to tune its reviews.
type RepoConfig struct {
	// Extra instructions appended to the review prompt.
	CustomInstructions []string `yaml:"custom_instructions"`

	// Project-specific rules evaluated alongside the built-in ones.
	CustomRules []CustomRule `yaml:"custom_rules"`

	// Path prefixes whose diffs are listed but not sent to the reviewer.
	// Example: ["dist/", "vendor/", "docs/generated/"]
	ExcludePaths []string `yaml:"exclude_paths"`
}

// CustomRule is a repository-defined review rule.
type CustomRule struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Severity    Severity `yaml:"severity"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		CustomInstructions: []string{},
		CustomRules:        []CustomRule{},
		ExcludePaths:       []string{},
	}
}
