package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the active log file inside the log directory.
const LogFileName = "settingsearch.log"

// LogDir returns the log directory for dataDir.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the active log file for dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), LogFileName)
}

// FindLogFile returns explicit if it exists, else the log file of dataDir.
func FindLogFile(explicit, dataDir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := LogPath(dataDir)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found, expected at: %s", path)
}
