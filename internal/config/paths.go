package config

import (
	"os"
	"path/filepath"
)

// ResolveHome returns the TOOLSEL_HOME directory.
// Priority: TOOLSEL_HOME env > ~/.toolsel/
func ResolveHome() string {
	if home := os.Getenv("TOOLSEL_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".toolsel"
	}
	return filepath.Join(userHome, ".toolsel")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > TOOLSEL_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}
