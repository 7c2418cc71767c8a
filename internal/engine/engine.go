// Package engine drives the staging controller on a fixed-period tick
// and flushes history samples on a coarser interval.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/akhgr1-design/chillerd/internal/staging"
)

const historyWriteTimeout = 5 * time.Second

// SnapshotWriter receives periodic plant and unit samples. A nil writer
// disables history entirely.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, at time.Time, s staging.Status, units staging.UnitsStatus) error
}

// Engine owns the control loop. It is not safe to call Run twice.
type Engine struct {
	lg        *slog.Logger
	ctl       *staging.Controller
	tick      time.Duration
	hist      SnapshotWriter
	histEvery time.Duration
	lastHist  time.Time
}

func New(ctl *staging.Controller, tick time.Duration, hist SnapshotWriter, histEvery time.Duration, lg *slog.Logger) *Engine {
	return &Engine{
		lg:        lg.With(slog.String("component", "engine")),
		ctl:       ctl,
		tick:      tick,
		hist:      hist,
		histEvery: histEvery,
	}
}

// Run ticks the controller until ctx is cancelled. History write failures
// are logged and never stall the control loop.
func (e *Engine) Run(ctx context.Context) {
	e.lg.Info("engine start", "tick", e.tick.String())
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.lg.Info("engine stop")
			return
		case now := <-ticker.C:
			e.ctl.ProcessTick(now)
			e.flushHistory(ctx, now)
		}
	}
}

func (e *Engine) flushHistory(ctx context.Context, now time.Time) {
	if e.hist == nil || e.histEvery <= 0 {
		return
	}
	if !e.lastHist.IsZero() && now.Sub(e.lastHist) < e.histEvery {
		return
	}
	e.lastHist = now
	wctx, cancel := context.WithTimeout(ctx, historyWriteTimeout)
	defer cancel()
	if err := e.hist.WriteSnapshot(wctx, now, e.ctl.Status(), e.ctl.Units()); err != nil {
		e.lg.Warn("history write failed", "err", err)
	}
}
