package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory flowdriver keeps per-user state in.
const HomeEnv = "FLOWDRIVER_HOME"

const homeDirName = ".flowdriver"

// Home returns the directory for state that outlives a run, such as the
// history database: $FLOWDRIVER_HOME, else ~/.flowdriver, else .flowdriver
// under the working directory when no user home is known.
func Home() string {
	if env := os.Getenv(HomeEnv); env != "" {
		return env
	}
	if userHome, err := os.UserHomeDir(); err == nil && userHome != "" {
		return filepath.Join(userHome, homeDirName)
	}
	return homeDirName
}

// HistoryPath returns the configured history database, or history.db in Home.
func (c *Config) HistoryPath() string {
	if c.HistoryDB != "" {
		return c.Resolve(c.HistoryDB)
	}
	return filepath.Join(Home(), "history.db")
}
