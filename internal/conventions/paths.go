package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default taskscope data directory name (relative to home).
	DefaultDataDir = ".taskscope"
	// DBFile is the SQLite database filename.
	DBFile = "taskscope.db"
	// SanitizeConfigFile is the sanitizer rules filename loaded when present.
	SanitizeConfigFile = "sanitize.yaml"
	// EnvFile is the dotenv file loaded on startup when present.
	EnvFile = ".env"
)

// DataDir returns the taskscope data directory of a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// DBPath returns the default database path of a home directory.
func DBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DBFile)
}

// SanitizeConfigPath returns the default sanitizer rules path of a home directory.
func SanitizeConfigPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), SanitizeConfigFile)
}
