// Package breaker provides a small circuit breaker used to guard the
// telemetry and history sinks. The staging engine must never stall on a
// slow broker, so failing sinks trip open and fast-fail until a probe
// window elapses.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned on fast-fail while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open; fast-fail")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // wait before allowing a half-open attempt
	SuccessesToClose int           // successes required in half-open before closing
}

// DefaultConfig returns the tunables used when none are configured.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, SuccessesToClose: 1}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFailures < 1 {
		c.MaxFailures = d.MaxFailures
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.SuccessesToClose < 1 {
		c.SuccessesToClose = d.SuccessesToClose
	}
	return c
}

// Breaker guards one sink. Safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	lg   *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	successes   int
	openedAt    time.Time
}

// New builds a breaker. Zero config fields fall back to defaults.
func New(name string, cfg Config, lg *slog.Logger) *Breaker {
	b := &Breaker{name: name, cfg: cfg.withDefaults(), lg: lg, state: Closed}
	lg.Info("breaker created", "name", name, "maxFailures", b.cfg.MaxFailures, "resetTimeout", b.cfg.ResetTimeout.String())
	return b
}

// Execute runs op under the breaker. When open and inside the reset window
// it returns ErrOpen without invoking op.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
		b.successes = 0
		b.mu.Unlock()
		b.lg.Info("breaker half-open", "name", b.name)
	default:
		b.mu.Unlock()
	}

	err := op(ctx)
	if err != nil {
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessesToClose {
			b.state = Closed
			b.recentFails = 0
			b.lg.Info("breaker closed", "name", b.name)
		}
	case Closed:
		b.recentFails = 0
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		b.lg.Warn("breaker reopened", "name", b.name, "error", err)
		return
	}
	b.recentFails++
	if b.recentFails >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = time.Now()
		b.lg.Error("breaker opened", "name", b.name, "failures", b.recentFails, "error", err)
	}
}

// State reports the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
