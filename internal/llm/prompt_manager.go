// Package llm talks to the AI provider: it renders prompts, calls the generator
// and embedding models, and parses their answers.
package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

type ModelProvider string
type PromptKey string

const (
	DefaultProvider ModelProvider = "default"
	GeminiProvider  ModelProvider = "gemini"
	OllamaProvider  ModelProvider = "ollama"

	PRReviewPrompt PromptKey = "pr_review"
)

// PromptManager holds the embedded prompt templates, indexed by key and provider.
// Files are named key_provider.prompt; a "default" provider is the fallback.
type PromptManager struct {
	prompts map[PromptKey]map[ModelProvider]*template.Template
}

func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[PromptKey]map[ModelProvider]*template.Template),
	}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		key, provider, err := parsePromptFileName(file.Name())
		if err != nil {
			return nil, err
		}

		content, err := promptFiles.ReadFile("prompts/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", file.Name(), err)
		}

		if err := pm.register(key, provider, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register prompt from file %s: %w", file.Name(), err)
		}
	}

	return pm, nil
}

func parsePromptFileName(fileName string) (PromptKey, ModelProvider, error) {
	baseName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	i := strings.LastIndex(baseName, "_")
	if i <= 0 || i == len(baseName)-1 {
		return "", "", fmt.Errorf("invalid prompt filename format: %s (expected 'key_provider.prompt')", fileName)
	}
	return PromptKey(baseName[:i]), ModelProvider(baseName[i+1:]), nil
}

func (pm *PromptManager) register(key PromptKey, provider ModelProvider, content string) error {
	tmpl, err := template.New(string(key) + "_" + string(provider)).Option("missingkey=error").Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}

	if _, ok := pm.prompts[key]; !ok {
		pm.prompts[key] = make(map[ModelProvider]*template.Template)
	}
	pm.prompts[key][provider] = tmpl
	return nil
}

// Get returns the provider-specific template for key, falling back to the default.
func (pm *PromptManager) Get(key PromptKey, provider ModelProvider) (*template.Template, error) {
	taskPrompts, ok := pm.prompts[key]
	if !ok {
		return nil, fmt.Errorf("no prompts found for key '%s'", key)
	}

	if tmpl, ok := taskPrompts[provider]; ok {
		return tmpl, nil
	}
	if tmpl, ok := taskPrompts[DefaultProvider]; ok {
		return tmpl, nil
	}

	return nil, fmt.Errorf("no template found for key '%s' and provider '%s', and no default was available", key, provider)
}

func (pm *PromptManager) Render(key PromptKey, provider ModelProvider, data any) (string, error) {
	tmpl, err := pm.Get(key, provider)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return buf.String(), nil
}

// ReviewRule is a rule rendered into the review prompt.
type ReviewRule struct {
	ID          string
	Name        string
	Description string
	Severity    string
}

// ReviewPromptData feeds the pr_review templates.
type ReviewPromptData struct {
	Context      string
	Rules        []ReviewRule
	Instructions []string
}
