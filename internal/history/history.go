// Package history writes periodic plant and per-unit samples to InfluxDB
// for wear and efficiency analysis. Writes are time-gated by the engine
// loop; a failed write is logged and the sample dropped.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/akhgr1-design/chillerd/internal/staging"
)

const (
	plantMeasurement = "chiller_plant"
	unitMeasurement  = "chiller_unit"
)

// Writer holds the InfluxDB client. Callers Close() it on shutdown.
type Writer struct {
	client influxdb2.Client
	api    api.WriteAPIBlocking
	lg     *slog.Logger
}

func NewWriter(url, token, org, bucket string, lg *slog.Logger) *Writer {
	client := influxdb2.NewClient(url, token)
	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(org, bucket),
		lg:     lg.With(slog.String("component", "history")),
	}
}

func (w *Writer) Close() {
	w.client.Close()
}

// Health checks that InfluxDB is reachable and the token is valid.
func (w *Writer) Health(ctx context.Context) error {
	_, err := w.client.Health(ctx)
	return err
}

// WriteSnapshot stores one plant-level point and one point per unit.
func (w *Writer) WriteSnapshot(ctx context.Context, at time.Time, s staging.Status, units staging.UnitsStatus) error {
	plant := influxdb2.NewPointWithMeasurement(plantMeasurement).
		AddField("capacityPercent", s.CapacityPercent).
		AddField("tier", s.Tier).
		AddField("runningCompressors", s.RunningCompressors).
		AddField("targetCompressors", s.TargetCompressors).
		AddField("runningCondensers", s.RunningCondensers).
		AddField("targetCondensers", s.TargetCondensers).
		AddField("emergencyStopped", s.EmergencyStopped).
		SetTime(at)
	if s.AmbientTempC != nil {
		plant.AddField("ambientTempC", *s.AmbientTempC)
	}
	if err := w.api.WritePoint(ctx, plant); err != nil {
		return fmt.Errorf("influx write plant: %w", err)
	}

	for _, u := range units.Compressors {
		if err := w.api.WritePoint(ctx, unitPoint(u, at)); err != nil {
			return fmt.Errorf("influx write %s %d: %w", u.Kind, u.Unit, err)
		}
	}
	for _, cu := range units.Condensers {
		p := unitPoint(cu.UnitStatus, at).
			AddField("priorityScore", cu.PriorityScore).
			AddField("ambientCompensation", cu.AmbientCompensation).
			AddField("maintenanceState", cu.Maintenance.State)
		if cu.Performance != nil {
			p.AddField("efficiencyRating", cu.Performance.EfficiencyRating).
				AddField("powerDrawKw", cu.Performance.PowerDrawKW).
				AddField("coolingCapacityKw", cu.Performance.CoolingCapacityKW).
				AddField("efficiencyTrend", cu.Performance.Trend)
		}
		if err := w.api.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("influx write %s %d: %w", cu.Kind, cu.Unit, err)
		}
	}
	w.lg.Debug("history sample written",
		"compressors", len(units.Compressors), "condensers", len(units.Condensers))
	return nil
}

func unitPoint(u staging.UnitStatus, at time.Time) *write.Point {
	return influxdb2.NewPointWithMeasurement(unitMeasurement).
		AddTag("kind", u.Kind).
		AddTag("unit", fmt.Sprintf("%d", u.Unit)).
		AddField("running", u.Running).
		AddField("runtimeMinutes", u.RuntimeMinutes).
		AddField("startCycles", u.StartCycles).
		AddField("faultCount", u.FaultCount).
		SetTime(at)
}
