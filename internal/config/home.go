package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetStreamfmtHome returns the streamfmt home directory
// Priority order:
//  1. STREAMFMT_HOME environment variable (if set)
//  2. ~/.streamfmt
//
// The directory is not created; a missing home simply means defaults.
func GetStreamfmtHome() (string, error) {
	if home := os.Getenv("STREAMFMT_HOME"); home != "" {
		return home, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home directory: %w", err)
	}

	return filepath.Join(userHome, ".streamfmt"), nil
}

// DefaultConfigPath returns $STREAMFMT_HOME/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := GetStreamfmtHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}
