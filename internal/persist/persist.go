// Package persist keeps the operator-tunable staging settings on disk as a
// JSON file. Writes go through a temp file and rename so a crash mid-save
// never leaves a torn file; a missing or corrupt file degrades to defaults.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akhgr1-design/chillerd/internal/staging"
)

// FileStore implements staging.SettingsStore on a single JSON file.
type FileStore struct {
	path string
	lg   *slog.Logger
}

func NewFileStore(path string, lg *slog.Logger) *FileStore {
	return &FileStore{
		path: path,
		lg:   lg.With(slog.String("component", "settings")),
	}
}

// Load reads the settings file. Absence is normal on first boot; corrupt
// content is logged and treated as absent.
func (s *FileStore) Load() (staging.Settings, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.lg.Warn("settings read failed", "path", s.path, "error", err)
		}
		return staging.Settings{}, false
	}
	var out staging.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		s.lg.Warn("settings file corrupt, using defaults", "path", s.path, "error", err)
		return staging.Settings{}, false
	}
	return out, true
}

// Save writes the settings atomically: temp file in the same directory,
// fsync, rename over the target.
func (s *FileStore) Save(set staging.Settings) error {
	content, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	s.lg.Debug("settings saved", "path", s.path)
	return nil
}
