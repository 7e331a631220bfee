package options

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// ConfigEnv overrides the settings file location.
const ConfigEnv = "RFIND_CONFIG"

// Store loads and saves Options.
type Store interface {
	Load() (Options, error)
	Save(Options) error
}

// FileStore keeps Options in a TOML file. Concurrent processes are
// serialized by a lock file next to it.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns $RFIND_CONFIG or rfind/config.toml under the user
// config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("couldn't find config dir: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "rfind", "config.toml"), nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns Default() when the file does not exist. Keys missing from
// the file keep their default values.
func (s *FileStore) Load() (Options, error) {
	opts := Default()

	lock := flock.New(s.lockPath())
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return opts, fmt.Errorf("couldn't create config dir: %w", err)
	}
	if err := lock.RLock(); err != nil {
		return opts, fmt.Errorf("couldn't lock %s: %w", s.lockPath(), err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("couldn't read config: %w", err)
	}

	if err := toml.Unmarshal(data, &opts); err != nil {
		return Default(), fmt.Errorf("couldn't parse config %s: %w", s.path, err)
	}
	if err := opts.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", s.path, err)
	}
	return opts, nil
}

// Save writes opts with histories trimmed to the history limit.
func (s *FileStore) Save(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(opts.Trimmed())
	if err != nil {
		return fmt.Errorf("couldn't encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("couldn't create config dir: %w", err)
	}
	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("couldn't lock %s: %w", s.lockPath(), err)
	}
	defer lock.Unlock()

	return atomicWrite(s.path, data)
}

func (s *FileStore) lockPath() string {
	return s.path + ".lock"
}

// atomicWrite replaces path through a temp file in the same directory, so
// readers never observe a partial file.
func atomicWrite(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("couldn't create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("couldn't write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("couldn't sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("couldn't close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("couldn't set permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("couldn't replace %s: %w", path, err)
	}
	return nil
}
