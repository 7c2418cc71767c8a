package config

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/relay"
)

// PlantSource is the properties-file-backed equipment configuration. The
// staging controller polls it every tick, so an edit plus reload changes
// availability without a restart. Reads and reloads share an RWMutex; a
// failed reload keeps the last good layout.
//
// File format, one key=value per line, # and // comments:
//
//	compressors.installed=8
//	condensers.installed=4
//	compressor.3.enabled=false
//	condenser.1.enabled=false
//	setpoint.supply=7.0
//	setpoint.return=12.0
//	setpoint.tolerance=1.5
//	relay.compressor.0=0
//	relay.condenser.0=8
type PlantSource struct {
	mu   sync.RWMutex
	path string
	lg   *slog.Logger

	compressors int
	condensers  int
	disabled    map[string]bool
	supplyC     float64
	returnC     float64
	toleranceC  float64
	channels    relay.ChannelMap
}

// NewPlantSource parses the properties file at path. A missing or invalid
// file is a boot error; the plant layout has no sensible default.
func NewPlantSource(path string, lg *slog.Logger) (*PlantSource, error) {
	s := &PlantSource{
		path: path,
		lg:   lg.With(slog.String("component", "plant_config")),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the properties file. On error the previous layout stays
// in effect.
func (s *PlantSource) Reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	compressors, condensers := -1, -1
	disabled := map[string]bool{}
	supplyC, returnC, toleranceC := 7.0, 12.0, 1.5
	channels := relay.DefaultChannelMap()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		switch k {
		case "compressors.installed":
			if n, err := strconv.Atoi(v); err == nil {
				compressors = n
			}
		case "condensers.installed":
			if n, err := strconv.Atoi(v); err == nil {
				condensers = n
			}
		case "setpoint.supply":
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				supplyC = x
			}
		case "setpoint.return":
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				returnC = x
			}
		case "setpoint.tolerance":
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				toleranceC = x
			}
		default:
			if kind, index, suffix, ok := splitUnitKey(k); ok {
				switch suffix {
				case "enabled":
					if b, err := strconv.ParseBool(v); err == nil && !b {
						disabled[fmt.Sprintf("%s.%d", kind, index)] = true
					}
				}
				continue
			}
			if rest, ok := strings.CutPrefix(k, "relay."); ok {
				applyChannelOverride(&channels, rest, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	if compressors < 0 {
		return fmt.Errorf("%s: compressors.installed must be set", s.path)
	}
	if condensers < 0 {
		return fmt.Errorf("%s: condensers.installed must be set", s.path)
	}
	if compressors > plant.MaxCompressors {
		s.lg.Warn("compressor count clamped to hardware maximum", "requested", compressors)
		compressors = plant.MaxCompressors
	}
	if condensers > plant.MaxCondensers {
		s.lg.Warn("condenser count clamped to hardware maximum", "requested", condensers)
		condensers = plant.MaxCondensers
	}

	s.mu.Lock()
	s.compressors = compressors
	s.condensers = condensers
	s.disabled = disabled
	s.supplyC, s.returnC, s.toleranceC = supplyC, returnC, toleranceC
	s.channels = channels
	s.mu.Unlock()
	s.lg.Info("plant layout loaded",
		"compressors", compressors, "condensers", condensers, "disabled", len(disabled))
	return nil
}

// splitUnitKey parses "compressor.3.enabled" into its parts.
func splitUnitKey(k string) (kind string, index int, suffix string, ok bool) {
	parts := strings.Split(k, ".")
	if len(parts) != 3 {
		return "", 0, "", false
	}
	if parts[0] != "compressor" && parts[0] != "condenser" {
		return "", 0, "", false
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], i, parts[2], true
}

func applyChannelOverride(m *relay.ChannelMap, key, val string) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}
	ch, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return
	}
	switch parts[0] {
	case "compressor":
		if index >= 0 && index < plant.MaxCompressors {
			m.Compressors[index] = uint8(ch)
		}
	case "condenser":
		if index >= 0 && index < plant.MaxCondensers {
			m.Condensers[index] = uint8(ch)
		}
	}
}

func (s *PlantSource) InstalledCount(k plant.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k == plant.KindCompressor {
		return s.compressors
	}
	return s.condensers
}

func (s *PlantSource) Installed(k plant.Kind, index int) bool {
	return index >= 0 && index < s.InstalledCount(k)
}

func (s *PlantSource) Enabled(k plant.Kind, index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[fmt.Sprintf("%s.%d", k.String(), index)]
}

func (s *PlantSource) Setpoints() (supplyC, returnC, toleranceC float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supplyC, s.returnC, s.toleranceC
}

// ChannelMap returns the relay wiring read at the last successful load.
// Wiring changes need a restart; availability changes do not.
func (s *PlantSource) ChannelMap() relay.ChannelMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels
}

// Watch reloads the properties file whenever its directory reports a write,
// until the context ends. Editor rename-and-replace shows up as Create, so
// both ops trigger.
func (s *PlantSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)
	s.lg.Info("watching plant properties", "dir", dir, "file", base)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				s.lg.Debug("properties changed", "op", event.Op.String())
				if err := s.Reload(); err != nil {
					s.lg.Error("properties reload failed", "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.lg.Error("fsnotify error", "error", err)
		}
	}
}
