package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"agent-deck/internal/domain"
)

// PromptPlaceholder marks the argument that receives the full prompt text.
// Profiles without it deliver the prompt over standard input instead.
const PromptPlaceholder = "{PROMPT}"

// ProviderProfile describes how to invoke one coding-agent CLI.
type ProviderProfile struct {
	Name    domain.Provider `yaml:"name"`
	Command string          `yaml:"command"`
	Args    []string        `yaml:"args"`
}

// UsesPromptArg reports whether the prompt is passed as an argument.
func (p ProviderProfile) UsesPromptArg() bool {
	for _, arg := range p.Args {
		if strings.Contains(arg, PromptPlaceholder) {
			return true
		}
	}
	return false
}

// providersFile is the on-disk shape of an optional providers.yaml.
type providersFile struct {
	Providers []ProviderProfile `yaml:"providers"`
}

// BuiltinProfiles returns the two built-in provider command shapes.
// claude reads the task from stdin in print mode; codex takes it as the
// final exec argument.
func BuiltinProfiles() map[domain.Provider]ProviderProfile {
	return map[domain.Provider]ProviderProfile{
		domain.ProviderClaude: {
			Name:    domain.ProviderClaude,
			Command: "claude",
			Args:    []string{"-p", "--dangerously-skip-permissions"},
		},
		domain.ProviderCodex: {
			Name:    domain.ProviderCodex,
			Command: "codex",
			Args:    []string{"exec", "--full-auto", PromptPlaceholder},
		},
	}
}

// LoadProfiles returns built-in profiles merged with overrides from the
// given YAML catalog. A missing file yields the built-ins unchanged.
func LoadProfiles(path string) (map[domain.Provider]ProviderProfile, error) {
	profiles := BuiltinProfiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return profiles, nil
		}
		return nil, err
	}

	var parsed providersFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse provider catalog %s: %w", path, err)
	}

	for _, profile := range parsed.Providers {
		if profile.Name == "" {
			return nil, fmt.Errorf("provider catalog %s: profile without a name", path)
		}
		if strings.TrimSpace(profile.Command) == "" {
			return nil, fmt.Errorf("provider catalog %s: profile %q has no command", path, profile.Name)
		}
		profiles[profile.Name] = profile
	}

	return profiles, nil
}
