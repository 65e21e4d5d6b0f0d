package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Cache file names inside the cache dir.
const (
	ConfigFile = "site-config.json"
	ThemeFile  = "theme.css"
)

func configPath(dir string) string { return filepath.Join(dir, ConfigFile) }
func themePath(dir string) string  { return filepath.Join(dir, ThemeFile) }

// writeCache stores s as site-config.json and its stylesheet as theme.css.
// An empty dir disables the cache.
func writeCache(dir string, s State) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cached config: %w", err)
	}
	if err := writeFileAtomic(configPath(dir), append(data, '\n')); err != nil {
		return err
	}
	return writeFileAtomic(themePath(dir), []byte(s.StyleSheet))
}

// readCache loads a cached state. It returns nil, nil when there is none.
func readCache(dir string) (*State, error) {
	if dir == "" {
		return nil, nil
	}
	data, err := os.ReadFile(configPath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached config: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding cached config: %w", err)
	}
	return &s, nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
