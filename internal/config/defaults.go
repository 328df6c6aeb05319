package config

import (
	"os"
	"path/filepath"

	"agent-deck/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	dataDir := filepath.Join(homeDir, ".agent-deck")
	return domain.Settings{
		DataDir:         dataDir,
		DatabasePath:    filepath.Join(dataDir, "agent-deck.db"),
		ProvidersPath:   filepath.Join(dataDir, "providers.yaml"),
		DefaultProvider: domain.ProviderClaude,
	}
}
