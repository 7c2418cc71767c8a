package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Init sets up slog to write to both stdout and a file under dir.
// Stdlib log output is redirected to the same writer so third-party
// libraries logging through log.Printf land in the same place.
func Init(dir, file string, level slog.Level) (*slog.Logger, *os.File) {
	_ = os.MkdirAll(dir, 0o755)
	fp := filepath.Join(dir, file)
	opts := &slog.HandlerOptions{Level: level}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		lg := slog.New(slog.NewTextHandler(os.Stdout, opts))
		lg.Error("log file open failed; using stdout only", "error", err)
		return lg, os.Stdout
	}
	mw := io.MultiWriter(f, os.Stdout)
	lg := slog.New(slog.NewTextHandler(mw, opts))
	log.SetOutput(mw)
	return lg, f
}

// ParseLevel maps a configured level name onto a slog.Level.
// Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
