package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// SettingsFile represents a detected settings file
type SettingsFile struct {
	Path   string
	Format string
}

// settingsCandidates lists the settings file names in priority order
var settingsCandidates = []string{"ghdevice.yaml", "ghdevice.yml", "ghdevice.toml", "ghdevice.json"}

// FindSettingsFile looks for a settings file in each directory, in order.
// It returns nil without error when none exists; settings files are optional.
func FindSettingsFile(dirs ...string) (*SettingsFile, error) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range settingsCandidates {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
			}
			if info.IsDir() {
				continue
			}
			return &SettingsFile{Path: path, Format: detectFormat(path)}, nil
		}
	}
	return nil, nil
}

func detectFormat(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "unknown"
	}
}
