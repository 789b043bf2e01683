package authoring

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/davidthor/smartcfg/pkg/config"
)

// SettingsFileName is the conventional name of the authoring settings file.
const SettingsFileName = "smartcfg-authoring.yaml"

// Category is an authoring category and the key prefix its entries should use.
type Category struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Settings is authoring state that never ships in the document itself.
type Settings struct {
	DefaultLanguage config.Language   `yaml:"defaultLanguage,omitempty"`
	Languages       []config.Language `yaml:"languages,omitempty"`
	Categories      []Category        `yaml:"categories,omitempty"`
}

// Prefixes returns the configured prefix of every category.
func (s *Settings) Prefixes() map[string]string {
	prefixes := make(map[string]string, len(s.Categories))
	for _, c := range s.Categories {
		prefixes[c.Name] = c.Prefix
	}
	return prefixes
}

// LoadSettings reads settings from path. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	for _, lang := range s.Languages {
		if _, err := config.ParseLanguage(string(lang)); err != nil {
			return nil, fmt.Errorf("settings file %s: %w", path, err)
		}
	}

	return &s, nil
}

// SaveSettings writes s to path as YAML.
func SaveSettings(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
