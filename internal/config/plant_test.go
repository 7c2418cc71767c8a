package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeProps(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chillerd.properties")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	return path
}

func TestPlantSourceParsesLayout(t *testing.T) {
	body := "# plant layout\n" +
		"compressors.installed=6\n" +
		"condensers.installed=3\n" +
		"compressor.3.enabled=false\n" +
		"condenser.1.enabled=false\n" +
		"setpoint.supply=6.5\n" +
		"setpoint.return=11.5\n" +
		"setpoint.tolerance=2.0\n"
	src, err := NewPlantSource(writeProps(t, body), discard())
	if err != nil {
		t.Fatalf("NewPlantSource: %v", err)
	}

	if got := src.InstalledCount(plant.KindCompressor); got != 6 {
		t.Errorf("compressors installed = %d, want 6", got)
	}
	if got := src.InstalledCount(plant.KindCondenser); got != 3 {
		t.Errorf("condensers installed = %d, want 3", got)
	}
	if src.Installed(plant.KindCompressor, 6) {
		t.Error("unit beyond installed count reported installed")
	}
	if src.Enabled(plant.KindCompressor, 3) {
		t.Error("disabled compressor reported enabled")
	}
	if !src.Enabled(plant.KindCompressor, 2) {
		t.Error("enabled compressor reported disabled")
	}
	if src.Enabled(plant.KindCondenser, 1) {
		t.Error("disabled condenser reported enabled")
	}
	supply, ret, tol := src.Setpoints()
	if supply != 6.5 || ret != 11.5 || tol != 2.0 {
		t.Errorf("setpoints = %v/%v/%v", supply, ret, tol)
	}
}

func TestPlantSourceDefaultsAndClamps(t *testing.T) {
	body := "compressors.installed=20\ncondensers.installed=9\n"
	src, err := NewPlantSource(writeProps(t, body), discard())
	if err != nil {
		t.Fatalf("NewPlantSource: %v", err)
	}
	if got := src.InstalledCount(plant.KindCompressor); got != plant.MaxCompressors {
		t.Errorf("compressors not clamped: %d", got)
	}
	if got := src.InstalledCount(plant.KindCondenser); got != plant.MaxCondensers {
		t.Errorf("condensers not clamped: %d", got)
	}
	supply, ret, tol := src.Setpoints()
	if supply != 7.0 || ret != 12.0 || tol != 1.5 {
		t.Errorf("default setpoints = %v/%v/%v", supply, ret, tol)
	}
}

func TestPlantSourceRequiresCounts(t *testing.T) {
	if _, err := NewPlantSource(writeProps(t, "condensers.installed=4\n"), discard()); err == nil {
		t.Error("missing compressors.installed accepted")
	}
	if _, err := NewPlantSource(writeProps(t, "compressors.installed=8\n"), discard()); err == nil {
		t.Error("missing condensers.installed accepted")
	}
	if _, err := NewPlantSource(filepath.Join(t.TempDir(), "missing.properties"), discard()); err == nil {
		t.Error("missing file accepted")
	}
}

func TestPlantSourceChannelOverrides(t *testing.T) {
	body := "compressors.installed=8\n" +
		"condensers.installed=4\n" +
		"relay.compressor.0=16\n" +
		"relay.condenser.3=31\n"
	src, err := NewPlantSource(writeProps(t, body), discard())
	if err != nil {
		t.Fatalf("NewPlantSource: %v", err)
	}
	m := src.ChannelMap()
	if m.Compressors[0] != 16 {
		t.Errorf("compressor 0 channel = %d, want 16", m.Compressors[0])
	}
	if m.Compressors[1] != 1 {
		t.Errorf("compressor 1 channel = %d, want default 1", m.Compressors[1])
	}
	if m.Condensers[3] != 31 {
		t.Errorf("condenser 3 channel = %d, want 31", m.Condensers[3])
	}
}

func TestPlantSourceReload(t *testing.T) {
	path := writeProps(t, "compressors.installed=8\ncondensers.installed=4\n")
	src, err := NewPlantSource(path, discard())
	if err != nil {
		t.Fatalf("NewPlantSource: %v", err)
	}
	if !src.Enabled(plant.KindCompressor, 5) {
		t.Fatal("unit 5 disabled before reload")
	}

	next := "compressors.installed=8\ncondensers.installed=4\ncompressor.5.enabled=false\n"
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatalf("rewrite properties: %v", err)
	}
	if err := src.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if src.Enabled(plant.KindCompressor, 5) {
		t.Error("reload did not apply the disable flag")
	}

	// A broken rewrite keeps the last good layout.
	if err := os.WriteFile(path, []byte("condensers.installed=4\n"), 0o644); err != nil {
		t.Fatalf("rewrite properties: %v", err)
	}
	if err := src.Reload(); err == nil {
		t.Fatal("invalid reload accepted")
	}
	if got := src.InstalledCount(plant.KindCompressor); got != 8 {
		t.Errorf("layout lost after failed reload: %d compressors", got)
	}
}
