package common

import (
	"os"
	"path/filepath"
)

const appName = "soundstage"

func CacheDir() string {
	return filepath.Join(cacheHome(), appName)
}

// https://specifications.freedesktop.org/basedir/latest/#variables
func cacheHome() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".cache")
	}
	return dir
}

// ConfigDir holds persisted player state, ~/.soundstage.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

func DefaultSettingsPath() string {
	return filepath.Join(ConfigDir(), "player_state.json")
}

// DefaultLogPath is where the TUI logs, since it owns stdout.
func DefaultLogPath() string {
	return filepath.Join(CacheDir(), appName+".log")
}
