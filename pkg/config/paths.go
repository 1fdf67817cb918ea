package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "vantage"
	defaultConfigFile    = "config.yaml"
	defaultTokenDirName  = "token"
)

func DefaultConfigPath() string {
	if env := os.Getenv("VANTAGE_CONFIG"); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vantage", defaultConfigFile)
}

// DefaultTokenCacheDir is the directory holding per-profile token files.
func DefaultTokenCacheDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultTokenDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vantage", defaultTokenDirName)
}
