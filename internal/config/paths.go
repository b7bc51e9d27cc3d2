package config

import (
	"os"
	"path/filepath"
)

// Paths locates the files Helix keeps under its home directory.
type Paths struct {
	Home   string // ~/.helix, or $HELIX_HOME
	Config string // helix.yaml
	DotEnv string // .env with provider keys
	Data   string // sqlite database
	Logs   string // log files written by logging.file
}

// ResolvePaths derives Paths from $HELIX_HOME, falling back to ~/.helix.
func ResolvePaths() (Paths, error) {
	home := os.Getenv("HELIX_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		home = filepath.Join(userHome, ".helix")
	}
	return PathsAt(home), nil
}

// PathsAt lays out Paths under home.
func PathsAt(home string) Paths {
	return Paths{
		Home:   home,
		Config: filepath.Join(home, "helix.yaml"),
		DotEnv: filepath.Join(home, ".env"),
		Data:   filepath.Join(home, "data"),
		Logs:   filepath.Join(home, "logs"),
	}
}

// DatabasePath is the SQLite file used when store.dsn is empty.
func (p Paths) DatabasePath() string {
	return filepath.Join(p.Data, "helix.db")
}

// DotEnvFiles lists the .env files to load. The working directory comes
// first so a project-local file wins over the home one.
func (p Paths) DotEnvFiles() []string {
	return []string{".env", p.DotEnv}
}

// EnsureDirs creates the home, data and log directories.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Home, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
