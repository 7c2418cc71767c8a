package staging

import (
	"time"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

// Status is the plant-level snapshot served by the HTTP API and sampled
// into history. Timestamps are RFC3339 in UTC.
type Status struct {
	Timestamp            string   `json:"timestamp"`
	CapacityPercent      float64  `json:"capacityPercent"`
	Tier                 int      `json:"tier"`
	MaxTier              int      `json:"maxTier"`
	Algorithm            string   `json:"algorithm"`
	Strategy             string   `json:"strategy"`
	AutoStaging          bool     `json:"autoStaging"`
	EmergencyStopped     bool     `json:"emergencyStopped"`
	TargetCompressors    int      `json:"targetCompressors"`
	RunningCompressors   int      `json:"runningCompressors"`
	AvailableCompressors int      `json:"availableCompressors"`
	TargetCondensers     int      `json:"targetCondensers"`
	RunningCondensers    int      `json:"runningCondensers"`
	AvailableCondensers  int      `json:"availableCondensers"`
	LeadCondenser        int      `json:"leadCondenser"`
	LagCondenser         int      `json:"lagCondenser"`
	AmbientTempC         *float64 `json:"ambientTempC,omitempty"`
	AmbientZone          string   `json:"ambientZone,omitempty"`
	SeasonalFactor       float64  `json:"seasonalFactor"`
	Ticks                int64    `json:"ticks"`
}

// UnitStatus is the wire form of one unit's state.
type UnitStatus struct {
	Kind           string `json:"kind"`
	Unit           int    `json:"unit"`
	Running        bool   `json:"running"`
	RelayOn        bool   `json:"relayOn"`
	Mode           string `json:"mode"`
	Available      bool   `json:"available"`
	RuntimeMinutes int64  `json:"runtimeMinutes"`
	StartCycles    int64  `json:"startCycles"`
	FaultCount     int64  `json:"faultCount"`
	StartedAt      string `json:"startedAt,omitempty"`
	StoppedAt      string `json:"stoppedAt,omitempty"`
}

// MaintenanceStatus is the wire form of one condenser's maintenance record.
type MaintenanceStatus struct {
	State          string `json:"state"`
	LastService    string `json:"lastService"`
	NextDue        string `json:"nextDue"`
	CompletedCount int64  `json:"completedCount"`
	Notes          string `json:"notes,omitempty"`
}

// PerformanceStatus is the wire form of the last performance sample.
type PerformanceStatus struct {
	EfficiencyRating  float64 `json:"efficiencyRating"`
	PowerDrawKW       float64 `json:"powerDrawKw"`
	CoolingCapacityKW float64 `json:"coolingCapacityKw"`
	TemperatureDeltaC float64 `json:"temperatureDeltaC"`
	Trend             float64 `json:"trend"`
	UpdatedAt         string  `json:"updatedAt"`
}

// WeightsStatus is the wire form of a condenser's scoring blend.
type WeightsStatus struct {
	Runtime     float64 `json:"runtime"`
	Performance float64 `json:"performance"`
	Maintenance float64 `json:"maintenance"`
}

// CondenserStatus extends UnitStatus with the selection and maintenance
// detail only condensers carry.
type CondenserStatus struct {
	UnitStatus
	PriorityScore       float64            `json:"priorityScore"`
	AmbientCompensation float64            `json:"ambientCompensation"`
	Lead                bool               `json:"lead"`
	Weights             WeightsStatus      `json:"weights"`
	Maintenance         MaintenanceStatus  `json:"maintenance"`
	Performance         *PerformanceStatus `json:"performance,omitempty"`
}

// UnitsStatus bundles both equipment classes for the units endpoint.
type UnitsStatus struct {
	Compressors []UnitStatus      `json:"compressors"`
	Condensers  []CondenserStatus `json:"condensers"`
}

// Status returns the plant-level snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Timestamp:            c.nowFn().UTC().Format(time.RFC3339Nano),
		CapacityPercent:      c.capacityPercent,
		Tier:                 c.ctl.Tier,
		MaxTier:              c.ctl.MaxTier,
		Algorithm:            c.ctl.Algorithm.String(),
		Strategy:             c.ctl.Strategy.String(),
		AutoStaging:          c.ctl.AutoStaging,
		EmergencyStopped:     c.ctl.EmergencyStopped,
		TargetCompressors:    c.ctl.TargetCompressors,
		RunningCompressors:   c.reg.RunningCount(plant.KindCompressor),
		AvailableCompressors: c.reg.AvailableCount(plant.KindCompressor),
		TargetCondensers:     c.ctl.TargetCondensers,
		RunningCondensers:    c.reg.RunningCount(plant.KindCondenser),
		AvailableCondensers:  c.reg.AvailableCount(plant.KindCondenser),
		LeadCondenser:        c.ctl.LeadCondenser,
		LagCondenser:         c.ctl.LagCondenser,
		SeasonalFactor:       c.seasonalFactor,
		Ticks:                c.ticks,
	}
	if c.ambientValid {
		t := c.ambientC
		s.AmbientTempC = &t
		s.AmbientZone = c.zone.String()
	}
	return s
}

// Units returns every unit's state, with condenser scores freshly computed.
func (c *Controller) Units() UnitsStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rescoreCondensers()
	out := UnitsStatus{
		Compressors: make([]UnitStatus, 0, plant.MaxCompressors),
		Condensers:  make([]CondenserStatus, 0, plant.MaxCondensers),
	}
	for i := range c.reg.Compressors {
		out.Compressors = append(out.Compressors, unitStatus(&c.reg.Compressors[i]))
	}
	for i := range c.reg.Condensers {
		out.Condensers = append(out.Condensers, c.condenserStatus(&c.reg.Condensers[i]))
	}
	return out
}

// UnitStatusOf returns one unit's state, scored when it is a condenser.
func (c *Controller) UnitStatusOf(k plant.Kind, index int) (UnitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Unit(k, index)
	if err != nil {
		return UnitStatus{}, err
	}
	return unitStatus(u), nil
}

// CondenserStatusOf returns one condenser's full state.
func (c *Controller) CondenserStatusOf(index int) (CondenserStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Condenser(index)
	if err != nil {
		return CondenserStatus{}, err
	}
	c.rescoreCondensers()
	return c.condenserStatus(u), nil
}

func unitStatus(u *plant.UnitState) UnitStatus {
	s := UnitStatus{
		Kind:           u.Kind.String(),
		Unit:           u.Index,
		Running:        u.Running,
		RelayOn:        u.RelayOn,
		Mode:           u.Mode.String(),
		Available:      u.Available,
		RuntimeMinutes: u.RuntimeMinutes,
		StartCycles:    u.StartCycles,
		FaultCount:     u.FaultCount,
	}
	if !u.StartedAt.IsZero() {
		s.StartedAt = u.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if !u.StoppedAt.IsZero() {
		s.StoppedAt = u.StoppedAt.UTC().Format(time.RFC3339Nano)
	}
	return s
}

func (c *Controller) condenserStatus(u *plant.Condenser) CondenserStatus {
	s := CondenserStatus{
		UnitStatus:          unitStatus(&u.UnitState),
		PriorityScore:       u.Score,
		AmbientCompensation: u.AmbientComp,
		Lead:                u.Index == c.ctl.LeadCondenser,
		Weights: WeightsStatus{
			Runtime:     u.Weights.Runtime,
			Performance: u.Weights.Performance,
			Maintenance: u.Weights.Maintenance,
		},
		Maintenance: MaintenanceStatus{
			State:          u.Maintenance.State.String(),
			LastService:    u.Maintenance.LastService.UTC().Format(time.RFC3339Nano),
			NextDue:        u.Maintenance.NextDue.UTC().Format(time.RFC3339Nano),
			CompletedCount: u.Maintenance.Completed,
			Notes:          u.Maintenance.Notes,
		},
	}
	if u.Perf.Valid {
		s.Performance = &PerformanceStatus{
			EfficiencyRating:  u.Perf.EfficiencyRating,
			PowerDrawKW:       u.Perf.PowerDrawKW,
			CoolingCapacityKW: u.Perf.CoolingCapacityKW,
			TemperatureDeltaC: u.Perf.TemperatureDeltaC,
			Trend:             u.Perf.Trend,
			UpdatedAt:         u.Perf.UpdatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return s
}
