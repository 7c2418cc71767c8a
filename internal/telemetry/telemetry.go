// Package telemetry publishes staging events to the plant event bus.
// Recording is fire-and-forget: the staging engine never blocks on a sink,
// and a dead broker costs events, not control.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the staging engine.
const (
	EventUnitStarted          = "unit_started"
	EventUnitStopped          = "unit_stopped"
	EventEmergencyStop        = "emergency_stop"
	EventAutoResumed          = "auto_staging_resumed"
	EventLeadRotated          = "lead_rotated"
	EventMaintenanceState     = "maintenance_state"
	EventMaintenanceCompleted = "maintenance_completed"
	EventModeChanged          = "mode_changed"
	EventControlChanged       = "control_changed"
)

// Event is one ledger entry. Unit is -1 for plant-wide events. At is RFC3339
// in UTC. The snapshot fields capture plant state at the moment of the event
// so consumers need no joins.
type Event struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type"`
	At                 string  `json:"at"`
	Kind               string  `json:"kind,omitempty"`
	Unit               int     `json:"unit"`
	Reason             string  `json:"reason,omitempty"`
	CapacityPercent    float64 `json:"capacityPercent"`
	Tier               int     `json:"tier"`
	RunningCompressors int     `json:"runningCompressors"`
	RunningCondensers  int     `json:"runningCondensers"`
}

func stampEvent(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return ev
}

// Recorder accepts events for publication. Record must return quickly;
// implementations buffer or drop rather than block.
type Recorder interface {
	Record(ev Event)
	Close()
}

// LogRecorder writes events to the service log. It is the fallback sink for
// bench runs without a broker.
type LogRecorder struct {
	lg *slog.Logger
}

func NewLogRecorder(lg *slog.Logger) *LogRecorder {
	return &LogRecorder{lg: lg.With(slog.String("component", "events"))}
}

func (r *LogRecorder) Record(ev Event) {
	ev = stampEvent(ev)
	r.lg.Info("event",
		"type", ev.Type, "kind", ev.Kind, "unit", ev.Unit, "reason", ev.Reason,
		"capacity", ev.CapacityPercent, "tier", ev.Tier,
		"compressors", ev.RunningCompressors, "condensers", ev.RunningCondensers)
}

func (r *LogRecorder) Close() {}
