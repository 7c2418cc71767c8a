package persist

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/akhgr1-design/chillerd/internal/staging"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "settings.json"), discard())
	if _, ok := s.Load(); ok {
		t.Error("missing file reported as loaded")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "settings.json")
	s := NewFileStore(path, discard())

	in := staging.Settings{
		Algorithm: "runtime_balanced",
		Strategy:  "adaptive",
		MaxTier:   3,
		CondenserWeights: []staging.WeightSetting{
			{Unit: 0, Runtime: 0.5, Performance: 0.3, Maintenance: 0.2},
		},
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, ok := s.Load()
	if !ok {
		t.Fatal("saved settings did not load")
	}
	if out.Algorithm != in.Algorithm || out.Strategy != in.Strategy || out.MaxTier != in.MaxTier {
		t.Errorf("round trip = %+v", out)
	}
	if len(out.CondenserWeights) != 1 || out.CondenserWeights[0].Runtime != 0.5 {
		t.Errorf("weights = %+v", out.CondenserWeights)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the settings file", len(entries))
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewFileStore(path, discard())

	if err := s.Save(staging.Settings{Algorithm: "sequential", MaxTier: 4}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(staging.Settings{Algorithm: "manual", MaxTier: 2}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	out, ok := s.Load()
	if !ok || out.Algorithm != "manual" || out.MaxTier != 2 {
		t.Errorf("after overwrite: %+v ok=%v", out, ok)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewFileStore(path, discard())
	if _, ok := s.Load(); ok {
		t.Error("corrupt file reported as loaded")
	}
}
