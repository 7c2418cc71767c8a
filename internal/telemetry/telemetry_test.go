package telemetry

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestStampEvent(t *testing.T) {
	ev := stampEvent(Event{Type: EventUnitStarted, Unit: 2})
	if ev.ID == "" {
		t.Errorf("stamp did not assign an id")
	}
	if _, err := time.Parse(time.RFC3339Nano, ev.At); err != nil {
		t.Errorf("stamped time %q not RFC3339: %v", ev.At, err)
	}

	fixed := Event{ID: "abc", At: "2025-01-01T00:00:00Z", Type: EventUnitStopped}
	if got := stampEvent(fixed); got.ID != "abc" || got.At != "2025-01-01T00:00:00Z" {
		t.Errorf("stamp overwrote caller fields: %+v", got)
	}
}

func TestEventJSONShape(t *testing.T) {
	ev := stampEvent(Event{
		Type: EventUnitStarted, Kind: "compressor", Unit: 3,
		Reason: "capacity", CapacityPercent: 62.5, Tier: 3,
		RunningCompressors: 4, RunningCondensers: 2,
	})
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "type", "at", "kind", "unit", "reason", "capacityPercent", "tier", "runningCompressors", "runningCondensers"} {
		if _, ok := m[key]; !ok {
			t.Errorf("marshalled event missing %q: %s", key, b)
		}
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewLogRecorder(lg)
	r.Record(Event{Type: EventEmergencyStop, Unit: -1, Reason: "operator"})
	r.Close()
	out := buf.String()
	if !strings.Contains(out, EventEmergencyStop) || !strings.Contains(out, "operator") {
		t.Errorf("log output missing event fields: %s", out)
	}
}

func TestKafkaRecorderDropsWhenFull(t *testing.T) {
	// Built by hand without the drain goroutine so the buffer stays full.
	r := &KafkaRecorder{
		lg: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ch: make(chan Event, 1),
	}
	r.Record(Event{Type: EventUnitStarted, Unit: 0})
	r.Record(Event{Type: EventUnitStarted, Unit: 1})
	if got := r.Dropped(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	select {
	case ev := <-r.ch:
		if ev.Unit != 0 {
			t.Errorf("buffered event unit = %d, want first event kept", ev.Unit)
		}
	default:
		t.Errorf("buffer empty, expected first event retained")
	}
}

func TestKafkaRecorderRecordAfterClose(t *testing.T) {
	// Full wiring minus the broker: the drain goroutine runs so Close can
	// join it, and the writer is never dialled.
	r := &KafkaRecorder{
		lg:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		w:    &kafka.Writer{Addr: kafka.TCP("127.0.0.1:1")},
		ch:   make(chan Event, 1),
		done: make(chan struct{}),
	}
	go r.run()
	r.Close()

	// Shutdown can leave a tick in flight; a late Record must be a no-op,
	// not a send on the closed channel.
	r.Record(Event{Type: EventUnitStarted, Unit: 0})
	if got := r.Dropped(); got != 0 {
		t.Errorf("dropped = %d, want late record discarded without counting", got)
	}
	r.Close() // second close is a no-op
}

func TestEventKey(t *testing.T) {
	unitEv := Event{Type: EventUnitStarted, Kind: "condenser", Unit: 2}
	if got := eventKey(unitEv); got != "condenser-2" {
		t.Errorf("unit event key = %q, want condenser-2", got)
	}
	plantEv := Event{Type: EventEmergencyStop, Unit: -1}
	if got := eventKey(plantEv); got != EventEmergencyStop {
		t.Errorf("plant event key = %q, want event type", got)
	}
}
