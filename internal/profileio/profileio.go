// Package profileio resolves and loads a therapy Profile from disk. The
// config-directory resolution is carried over from the teacher's
// internal/models/settings.go GetConfigDir/GetConfigPath (the same
// per-OS convention), switched from a JSON settings blob to a YAML
// therapy-profile file.
package profileio

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/orefng/orefng/internal/profile"
)

// ConfigDir returns the per-OS configuration directory for orefng,
// creating it if necessary.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "orefng")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}
	return appDir, nil
}

// DefaultProfilePath returns the path orefng looks for a profile.yaml at
// when none is given explicitly.
func DefaultProfilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.yaml"), nil
}

// Load reads and parses a therapy profile YAML file, overlaying it onto
// profile.Default() so unset fields keep their oref0-standard defaults.
func Load(path string) (*profile.Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled, not user input
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	p := profile.Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}

// Save writes a therapy profile to path as YAML.
func Save(path string, p *profile.Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
