package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/akhgr1-design/chillerd/internal/metrics"
	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/relay"
	"github.com/akhgr1-design/chillerd/internal/telemetry"
)

// Deps are the collaborators a Controller is wired with. Log, Source and
// Actuator are required; the rest default to safe stand-ins (log recorder,
// stock channel map, wall clock, no metrics, no persistence).
type Deps struct {
	Log      *slog.Logger
	Source   plant.EquipmentSource
	Actuator relay.Actuator
	Channels *relay.ChannelMap
	Recorder telemetry.Recorder
	Metrics  *metrics.Metrics
	Store    SettingsStore
	Now      func() time.Time
}

// Controller owns all staging state behind one mutex. The engine goroutine
// drives ProcessTick; HTTP and MQTT adapters call the exposed operations.
// Within a tick there is no internal concurrency, mirroring the plant
// controller's single mutating task.
type Controller struct {
	mu    sync.Mutex
	lg    *slog.Logger
	par   Params
	reg   *plant.Registry
	src   plant.EquipmentSource
	act   relay.Actuator
	chans relay.ChannelMap
	rec   telemetry.Recorder
	met   *metrics.Metrics
	store SettingsStore
	nowFn func() time.Time

	ctl             Control
	capacityPercent float64
	seasonalFactor  float64
	ambientC        float64
	ambientValid    bool
	zone            AmbientZone
	compStartCursor int
	compStopCursor  int
	ticks           int64
}

// NewController builds the controller, restores persisted settings and
// derives the initial targets. Persistence failures fall back to defaults.
func NewController(par Params, d Deps) (*Controller, error) {
	if d.Log == nil || d.Source == nil || d.Actuator == nil {
		return nil, errors.New("staging: logger, equipment source and actuator are required")
	}
	nowFn := d.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	rec := d.Recorder
	if rec == nil {
		rec = telemetry.NewLogRecorder(d.Log)
	}
	chans := relay.DefaultChannelMap()
	if d.Channels != nil {
		chans = *d.Channels
	}
	if par.MaxTier < 1 || par.MaxTier > 4 {
		par.MaxTier = 4
	}
	now := nowFn()
	c := &Controller{
		lg:             d.Log.With(slog.String("component", "staging")),
		par:            par,
		reg:            plant.NewRegistry(now, par.MaintenanceInterval),
		src:            d.Source,
		act:            d.Actuator,
		chans:          chans,
		rec:            rec,
		met:            d.Metrics,
		store:          d.Store,
		nowFn:          nowFn,
		seasonalFactor: seasonalFor(now.Month()),
		ctl: Control{
			AutoStaging: true,
			Algorithm:   par.Algorithm,
			Strategy:    par.Strategy,
			MaxTier:     par.MaxTier,
		},
	}
	c.loadSettings()
	c.reg.Refresh(c.src)
	c.refreshTargets()
	c.lg.Info("staging controller ready",
		"algorithm", c.ctl.Algorithm.String(), "strategy", c.ctl.Strategy.String(),
		"maxTier", c.ctl.MaxTier,
		"compressors", c.reg.AvailableCount(plant.KindCompressor),
		"condensers", c.reg.AvailableCount(plant.KindCondenser))
	return c, nil
}

// ProcessTick is the periodic entry point. Availability and runtime refresh
// every tick; maintenance scanning and the seasonal factor run on the
// scheduler period; staging moves each class at most one step toward its
// target. Guards defer rather than fail, and every deferred action is
// retried naturally on a later tick.
func (c *Controller) ProcessTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	c.reg.Refresh(c.src)
	c.reg.Accrue(now)
	c.refreshTargets()
	if elapsed(now, c.ctl.LastMaintenanceScan, c.par.MaintenanceScanEvery) {
		c.seasonalFactor = seasonalFor(now.Month())
		c.scanMaintenance(now)
		c.ctl.LastMaintenanceScan = now
	}
	c.maybeRotate(now)
	if c.ctl.AutoStaging && c.ctl.Algorithm != AlgorithmManual {
		c.stageCompressors(now)
		c.stageCondensers(now)
	}
	c.publishGauges()
}

func (c *Controller) refreshTargets() {
	tier, comps, conds := deriveTargets(
		c.capacityPercent,
		c.reg.AvailableCount(plant.KindCompressor),
		c.reg.AvailableCount(plant.KindCondenser),
		c.ctl.MaxTier,
	)
	c.ctl.Tier, c.ctl.TargetCompressors, c.ctl.TargetCondensers = tier, comps, conds
	c.met.SetTier(tier)
	c.met.SetTarget("compressor", comps)
	c.met.SetTarget("condenser", conds)
}

func (c *Controller) stageCompressors(now time.Time) {
	running := c.reg.RunningCount(plant.KindCompressor)
	switch {
	case running < c.ctl.TargetCompressors:
		c.startNextCompressor(now)
	case running > c.ctl.TargetCompressors:
		c.stopNextCompressor(now)
	}
}

func (c *Controller) startNextCompressor(now time.Time) {
	if !elapsed(now, c.ctl.LastCompressorStart, c.par.CompressorStageDelay) {
		c.deferAction(plant.KindCompressor, "stage_delay")
		return
	}
	idx, ok := c.selectCompressorToStart()
	if !ok {
		c.deferAction(plant.KindCompressor, "no_candidate")
		return
	}
	u := &c.reg.Compressors[idx]
	if err := c.commandRelay(u, true); err != nil {
		c.deferAction(plant.KindCompressor, "relay_error")
		return
	}
	u.StartAt(now)
	c.ctl.LastCompressorStart = now
	c.compStartCursor = (idx + 1) % plant.MaxCompressors
	c.met.UnitStarted("compressor")
	c.lg.Info("compressor started", "unit", idx,
		"running", c.reg.RunningCount(plant.KindCompressor), "target", c.ctl.TargetCompressors)
	c.recordUnit(telemetry.EventUnitStarted, plant.KindCompressor, idx, "capacity")
}

func (c *Controller) stopNextCompressor(now time.Time) {
	if !elapsed(now, c.ctl.LastCompressorStop, c.par.CompressorStageDelay) {
		c.deferAction(plant.KindCompressor, "stage_delay")
		return
	}
	idx, ok := c.selectCompressorToStop()
	if !ok {
		c.deferAction(plant.KindCompressor, "no_candidate")
		return
	}
	u := &c.reg.Compressors[idx]
	if now.Sub(u.StartedAt) < c.par.MinimumRunTime {
		c.deferAction(plant.KindCompressor, "min_run_time")
		return
	}
	if err := c.commandRelay(u, false); err != nil {
		c.deferAction(plant.KindCompressor, "relay_error")
		return
	}
	u.StopAt(now)
	c.ctl.LastCompressorStop = now
	c.compStopCursor = (idx + 1) % plant.MaxCompressors
	c.met.UnitStopped("compressor")
	c.lg.Info("compressor stopped", "unit", idx,
		"running", c.reg.RunningCount(plant.KindCompressor), "target", c.ctl.TargetCompressors)
	c.recordUnit(telemetry.EventUnitStopped, plant.KindCompressor, idx, "capacity")
}

func (c *Controller) stageCondensers(now time.Time) {
	running := c.reg.RunningCount(plant.KindCondenser)
	switch {
	case running < c.ctl.TargetCondensers:
		c.startNextCondenser(now)
	case running > c.ctl.TargetCondensers:
		c.stopNextCondenser(now)
	}
}

func (c *Controller) startNextCondenser(now time.Time) {
	if !elapsed(now, c.ctl.LastCondenserStart, c.par.CondenserStageDelay) {
		c.deferAction(plant.KindCondenser, "stage_delay")
		return
	}
	picks := c.selectCondensersToStart(1)
	if len(picks) == 0 {
		c.deferAction(plant.KindCondenser, "no_candidate")
		return
	}
	idx := picks[0]
	u := &c.reg.Condensers[idx]
	if err := c.commandRelay(&u.UnitState, true); err != nil {
		c.deferAction(plant.KindCondenser, "relay_error")
		return
	}
	u.StartAt(now)
	c.ctl.LastCondenserStart = now
	c.met.UnitStarted("condenser")
	c.lg.Info("condenser started", "unit", idx, "score", u.Score,
		"running", c.reg.RunningCount(plant.KindCondenser), "target", c.ctl.TargetCondensers)
	c.recordUnit(telemetry.EventUnitStarted, plant.KindCondenser, idx, "capacity")
}

func (c *Controller) stopNextCondenser(now time.Time) {
	if !elapsed(now, c.ctl.LastCondenserStop, c.par.CondenserStageDelay) {
		c.deferAction(plant.KindCondenser, "stage_delay")
		return
	}
	picks := c.selectCondensersToStop(1)
	if len(picks) == 0 {
		c.deferAction(plant.KindCondenser, "no_candidate")
		return
	}
	idx := picks[0]
	u := &c.reg.Condensers[idx]
	if err := c.commandRelay(&u.UnitState, false); err != nil {
		c.deferAction(plant.KindCondenser, "relay_error")
		return
	}
	u.StopAt(now)
	c.ctl.LastCondenserStop = now
	c.met.UnitStopped("condenser")
	c.lg.Info("condenser stopped", "unit", idx,
		"running", c.reg.RunningCount(plant.KindCondenser), "target", c.ctl.TargetCondensers)
	c.recordUnit(telemetry.EventUnitStopped, plant.KindCondenser, idx, "capacity")
}

// UpdateCapacity stores the demanded capacity and recomputes targets
// immediately. Out-of-range demand clamps to 0..100; the clamped value is
// returned.
func (c *Controller) UpdateCapacity(pct float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	clamped := pct
	if math.IsNaN(clamped) {
		clamped = 0
	}
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}
	if clamped != pct {
		c.lg.Warn("capacity demand clamped", "requested", pct, "applied", clamped)
	}
	c.capacityPercent = clamped
	c.refreshTargets()
	c.met.SetCapacity(clamped)
	return clamped
}

// EmergencyStop drops every relay and clears every running flag
// unconditionally, then disables auto staging until an explicit resume.
// This is the only transition that bypasses all guards.
func (c *Controller) EmergencyStop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	for _, k := range []plant.Kind{plant.KindCompressor, plant.KindCondenser} {
		for _, u := range c.reg.Units(k) {
			if ch, err := c.chans.Channel(k, u.Index); err == nil {
				if err := c.act.Set(ch, false); err != nil {
					c.lg.Error("emergency relay drop failed", "kind", k.String(), "unit", u.Index, "error", err)
				}
			}
			if u.Running {
				u.StopAt(now)
				c.met.UnitStopped(k.String())
			} else {
				u.RelayOn = false
			}
		}
	}
	c.ctl.AutoStaging = false
	c.ctl.EmergencyStopped = true
	c.met.EmergencyStop()
	c.lg.Warn("emergency stop engaged", "reason", reason)
	c.recordPlant(telemetry.EventEmergencyStop, reason)
	c.publishGauges()
}

// ResumeAutoStaging clears the emergency latch and re-enables staging.
// Staging resumes from the retained capacity demand on the next tick.
func (c *Controller) ResumeAutoStaging() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl.AutoStaging && !c.ctl.EmergencyStopped {
		return
	}
	c.ctl.EmergencyStopped = false
	c.ctl.AutoStaging = true
	c.lg.Info("auto staging resumed")
	c.recordPlant(telemetry.EventAutoResumed, "")
}

// SetAlgorithm switches the compressor ordering policy.
func (c *Controller) SetAlgorithm(a Algorithm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl.Algorithm == a {
		return
	}
	c.ctl.Algorithm = a
	c.lg.Info("algorithm changed", "algorithm", a.String())
	c.recordPlant(telemetry.EventControlChanged, "algorithm="+a.String())
	c.saveSettings()
}

// SetStrategy switches the condenser scoring formula.
func (c *Controller) SetStrategy(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctl.Strategy == s {
		return
	}
	c.ctl.Strategy = s
	c.lg.Info("strategy changed", "strategy", s.String())
	c.recordPlant(telemetry.EventControlChanged, "strategy="+s.String())
	c.saveSettings()
}

// SetMaxTier bounds the plant at a capacity tier between 1 and 4.
func (c *Controller) SetMaxTier(t int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < 1 || t > 4 {
		return fmt.Errorf("%w: %d", ErrTierRange, t)
	}
	if c.ctl.MaxTier == t {
		return nil
	}
	c.ctl.MaxTier = t
	c.refreshTargets()
	c.lg.Info("max tier changed", "maxTier", t)
	c.recordPlant(telemetry.EventControlChanged, fmt.Sprintf("maxTier=%d", t))
	c.saveSettings()
	return nil
}

// SetUnitMode applies an operator mode change. ManualOn starts the unit
// immediately (refused during an emergency stop or when the unit is not
// available); ManualOff and Disabled stop it; Fault stops it and bumps the
// fault counter. Auto hands the unit back to staging on the next tick.
func (c *Controller) SetUnitMode(k plant.Kind, index int, m plant.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Unit(k, index)
	if err != nil {
		return err
	}
	if u.Mode == m {
		return nil
	}
	now := c.nowFn()
	switch m {
	case plant.ModeManualOn:
		if c.ctl.EmergencyStopped {
			return ErrEmergencyActive
		}
		if !u.Available {
			return fmt.Errorf("%w: %s %d", ErrUnitUnavailable, k, index)
		}
		if !u.Running {
			if err := c.commandRelay(u, true); err != nil {
				return err
			}
			u.StartAt(now)
			c.met.UnitStarted(k.String())
			c.recordUnit(telemetry.EventUnitStarted, k, index, "manual")
		}
	case plant.ModeManualOff, plant.ModeDisabled:
		if u.Running {
			if err := c.commandRelay(u, false); err != nil {
				return err
			}
			u.StopAt(now)
			c.met.UnitStopped(k.String())
			c.recordUnit(telemetry.EventUnitStopped, k, index, "manual")
		}
	case plant.ModeFault:
		if u.Running {
			if err := c.commandRelay(u, false); err != nil {
				c.lg.Error("relay drop on fault failed", "kind", k.String(), "unit", index, "error", err)
			}
			u.StopAt(now)
			c.met.UnitStopped(k.String())
			c.recordUnit(telemetry.EventUnitStopped, k, index, "fault")
		}
		u.FaultCount++
	}
	prev := u.Mode
	u.Mode = m
	c.lg.Info("unit mode changed", "kind", k.String(), "unit", index, "from", prev.String(), "to", m.String())
	c.recordUnit(telemetry.EventModeChanged, k, index, m.String())
	return nil
}

// UpdatePerformance stores a condenser performance sample and refreshes the
// bank's ambient compensation.
func (c *Controller) UpdatePerformance(index int, s plant.PerformanceSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Condenser(index)
	if err != nil {
		return err
	}
	if math.IsNaN(s.EfficiencyRating) || s.EfficiencyRating < 0 || s.EfficiencyRating > 1 {
		return fmt.Errorf("%w: %v", ErrPerformanceRange, s.EfficiencyRating)
	}
	var trend float64
	if u.Perf.Valid {
		trend = s.EfficiencyRating - u.Perf.EfficiencyRating
	}
	u.Perf = plant.Performance{
		EfficiencyRating:  s.EfficiencyRating,
		PowerDrawKW:       s.PowerDrawKW,
		CoolingCapacityKW: s.CoolingCapacityKW,
		TemperatureDeltaC: s.TemperatureDeltaC,
		Trend:             trend,
		UpdatedAt:         c.nowFn(),
		Valid:             true,
	}
	c.applyAmbientComp(u)
	c.lg.Debug("performance updated", "unit", index, "efficiency", s.EfficiencyRating, "trend", trend)
	return nil
}

// UpdateAmbient stores an outdoor temperature sample, rebuckets the ambient
// zone and recomputes every bank's compensation.
func (c *Controller) UpdateAmbient(tempC float64) error {
	if math.IsNaN(tempC) || tempC < -60 || tempC > 70 {
		return fmt.Errorf("%w: %v", ErrAmbientRange, tempC)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ambientC = tempC
	c.ambientValid = true
	c.zone = zoneFor(tempC)
	for i := range c.reg.Condensers {
		c.applyAmbientComp(&c.reg.Condensers[i])
	}
	c.lg.Debug("ambient updated", "tempC", tempC, "zone", c.zone.String())
	return nil
}

// applyAmbientComp rebuilds one bank's stored compensation factor. Without
// an ambient sample the factor stays neutral.
func (c *Controller) applyAmbientComp(u *plant.Condenser) {
	if !c.ambientValid {
		u.AmbientComp = 1.0
		return
	}
	corr := 0.0
	if u.Perf.Valid {
		corr = (u.Perf.TemperatureDeltaC - c.par.NominalDeltaTC) / 100
	}
	comp := 1 + (c.par.DesignAmbientC-c.ambientC)/50 + corr
	if comp < 0.5 {
		comp = 0.5
	}
	if comp > 1.5 {
		comp = 1.5
	}
	u.AmbientComp = comp
}

// SetCondenserWeights tunes one bank's scoring blend.
func (c *Controller) SetCondenserWeights(index int, w plant.ScoreWeights) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Condenser(index)
	if err != nil {
		return err
	}
	u.Weights = w
	c.lg.Info("condenser weights changed", "unit", index,
		"runtime", w.Runtime, "performance", w.Performance, "maintenance", w.Maintenance)
	c.saveSettings()
	return nil
}

func (c *Controller) commandRelay(u *plant.UnitState, on bool) error {
	ch, err := c.chans.Channel(u.Kind, u.Index)
	if err != nil {
		return err
	}
	if err := c.act.Set(ch, on); err != nil {
		c.lg.Warn("relay command failed",
			"kind", u.Kind.String(), "unit", u.Index, "channel", ch, "on", on, "error", err)
		return fmt.Errorf("%w: channel %d: %v", ErrRelayWrite, ch, err)
	}
	return nil
}

func (c *Controller) deferAction(k plant.Kind, reason string) {
	c.lg.Debug("staging deferred", "kind", k.String(), "reason", reason)
	c.met.Deferral(k.String(), reason)
}

func (c *Controller) recordUnit(typ string, k plant.Kind, index int, reason string) {
	c.rec.Record(telemetry.Event{
		Type:               typ,
		Kind:               k.String(),
		Unit:               index,
		Reason:             reason,
		CapacityPercent:    c.capacityPercent,
		Tier:               c.ctl.Tier,
		RunningCompressors: c.reg.RunningCount(plant.KindCompressor),
		RunningCondensers:  c.reg.RunningCount(plant.KindCondenser),
	})
}

func (c *Controller) recordPlant(typ, reason string) {
	c.rec.Record(telemetry.Event{
		Type:               typ,
		Unit:               -1,
		Reason:             reason,
		CapacityPercent:    c.capacityPercent,
		Tier:               c.ctl.Tier,
		RunningCompressors: c.reg.RunningCount(plant.KindCompressor),
		RunningCondensers:  c.reg.RunningCount(plant.KindCondenser),
	})
}

func (c *Controller) publishGauges() {
	c.met.SetCapacity(c.capacityPercent)
	for _, k := range []plant.Kind{plant.KindCompressor, plant.KindCondenser} {
		c.met.SetRunning(k.String(), c.reg.RunningCount(k))
		c.met.SetAvailable(k.String(), c.reg.AvailableCount(k))
	}
	for i := range c.reg.Compressors {
		c.met.SetRuntime("compressor", i, c.reg.Compressors[i].RuntimeMinutes)
	}
	for i := range c.reg.Condensers {
		c.met.SetRuntime("condenser", i, c.reg.Condensers[i].RuntimeMinutes)
	}
}

func (c *Controller) loadSettings() {
	if c.store == nil {
		return
	}
	s, ok := c.store.Load()
	if !ok {
		return
	}
	if a, err := ParseAlgorithm(s.Algorithm); err == nil {
		c.ctl.Algorithm = a
	} else if s.Algorithm != "" {
		c.lg.Warn("persisted algorithm invalid; keeping default", "value", s.Algorithm)
	}
	if st, err := ParseStrategy(s.Strategy); err == nil {
		c.ctl.Strategy = st
	} else if s.Strategy != "" {
		c.lg.Warn("persisted strategy invalid; keeping default", "value", s.Strategy)
	}
	if s.MaxTier >= 1 && s.MaxTier <= 4 {
		c.ctl.MaxTier = s.MaxTier
	} else if s.MaxTier != 0 {
		c.lg.Warn("persisted max tier invalid; keeping default", "value", s.MaxTier)
	}
	for _, w := range s.CondenserWeights {
		if w.Unit < 0 || w.Unit >= plant.MaxCondensers {
			c.lg.Warn("persisted weights for unknown bank skipped", "unit", w.Unit)
			continue
		}
		c.reg.Condensers[w.Unit].Weights = plant.ScoreWeights{
			Runtime:     w.Runtime,
			Performance: w.Performance,
			Maintenance: w.Maintenance,
		}
	}
	c.lg.Info("settings restored",
		"algorithm", c.ctl.Algorithm.String(), "strategy", c.ctl.Strategy.String(), "maxTier", c.ctl.MaxTier)
}

func (c *Controller) saveSettings() {
	if c.store == nil {
		return
	}
	s := Settings{
		Algorithm: c.ctl.Algorithm.String(),
		Strategy:  c.ctl.Strategy.String(),
		MaxTier:   c.ctl.MaxTier,
	}
	for i := range c.reg.Condensers {
		w := c.reg.Condensers[i].Weights
		s.CondenserWeights = append(s.CondenserWeights, WeightSetting{
			Unit:        i,
			Runtime:     w.Runtime,
			Performance: w.Performance,
			Maintenance: w.Maintenance,
		})
	}
	if err := c.store.Save(s); err != nil {
		c.lg.Warn("settings save failed", "error", err)
	}
}

// elapsed reports whether d has passed since last; a zero last always
// passes, so the first action of each class is never delayed.
func elapsed(now, last time.Time, d time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= d
}
