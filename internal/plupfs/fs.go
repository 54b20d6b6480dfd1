// Package plupfs knows where plup keeps its files.
package plupfs

import (
	"os"
	"path/filepath"
)

const appName = "plup"

// ConfigDir holds config.toml.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(UserHome(), ".config", appName)
}

// DataDir holds the lookup cache.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(UserHome(), ".local", "share", appName)
}

func CachePath() string {
	return filepath.Join(DataDir(), "cache.db")
}

// DownloadDir is the shared temp directory marketplace downloads land in.
// It is never cleaned up.
func DownloadDir() string {
	return filepath.Join(os.TempDir(), appName)
}

func UserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// nothing works without a home directory
		panic(err)
	}
	return home
}
