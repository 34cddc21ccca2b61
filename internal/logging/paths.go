package logging

import (
	"os"
	"path/filepath"
)

// LogDirName is the directory under the user home where logs live.
const LogDirName = ".jurisearch/logs"

// DefaultLogPath returns the default log file path (~/.jurisearch/logs/jurisearch.log).
func DefaultLogPath() string {
	return filepath.Join(LogDir(), "jurisearch.log")
}

// LogDir returns the log directory path.
func LogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to the working directory when home cannot be determined.
		return LogDirName
	}
	return filepath.Join(home, LogDirName)
}

// EnsureLogDir creates the log directory if it does not exist.
func EnsureLogDir() error {
	return os.MkdirAll(LogDir(), 0o755)
}
