package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// homeDirName is the per-project state directory.
const homeDirName = ".neuralaunch"

// Home returns the orchestrator home directory, creating it if needed.
// Priority order:
//  1. NEURALAUNCH_HOME environment variable
//  2. .neuralaunch under the nearest ancestor containing go.mod or .git
//  3. .neuralaunch under the current working directory
func Home() (string, error) {
	if home := os.Getenv("NEURALAUNCH_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create home directory: %w", err)
		}
		return home, nil
	}

	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if root := findProjectRoot(base); root != "" {
		base = root
	}

	home := filepath.Join(base, homeDirName)
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create home directory: %w", err)
	}
	return home, nil
}

// ConfigPath returns the config file location inside the home directory.
func ConfigPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// findProjectRoot walks up from dir looking for a repository or module
// marker. Returns "" when none is found.
func findProjectRoot(dir string) string {
	current := dir
	for {
		for _, marker := range []string{"go.mod", ".git"} {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
