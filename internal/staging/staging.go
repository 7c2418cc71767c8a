// Package staging implements the capacity staging engine of the chiller
// plant: demand-to-tier mapping, compressor and condenser staging with
// protection guards, weighted condenser selection, runtime balancing and
// the maintenance ladder. The controller owns all staging state behind one
// mutex; the engine goroutine drives it through ProcessTick and the HTTP
// and MQTT adapters call the exposed operations.
package staging

import (
	"errors"
	"fmt"
	"time"
)

// Scoring constants of the selection engine.
const (
	runtimeDecayK      = 0.0001
	maintenancePenalty = 0.5
	stopScoreEpsilon   = 1e-3
)

var (
	// ErrUnknownAlgorithm is returned when parsing a staging algorithm fails.
	ErrUnknownAlgorithm = errors.New("unknown staging algorithm")
	// ErrUnknownStrategy is returned when parsing a selection strategy fails.
	ErrUnknownStrategy = errors.New("unknown selection strategy")
	// ErrTierRange rejects a max tier outside 1..4.
	ErrTierRange = errors.New("tier outside range 1..4")
	// ErrEmergencyActive rejects manual starts while the emergency stop holds.
	ErrEmergencyActive = errors.New("emergency stop active")
	// ErrUnitUnavailable rejects manual starts of units that are not wired in.
	ErrUnitUnavailable = errors.New("unit not available")
	// ErrPerformanceRange rejects efficiency samples outside 0..1.
	ErrPerformanceRange = errors.New("efficiency rating outside 0..1")
	// ErrAmbientRange rejects ambient samples outside plausible outdoor range.
	ErrAmbientRange = errors.New("ambient temperature outside -60..70")
	// ErrRelayWrite reports that the relay transport refused a manual command.
	ErrRelayWrite = errors.New("relay write failed")
)

// Algorithm chooses how the staging machine orders compressor candidates.
// Manual suspends automatic staging entirely.
type Algorithm int

const (
	AlgorithmSequential Algorithm = iota
	AlgorithmRuntimeBalanced
	AlgorithmPerformanceBased
	AlgorithmManual
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmSequential:
		return "sequential"
	case AlgorithmRuntimeBalanced:
		return "runtime_balanced"
	case AlgorithmPerformanceBased:
		return "performance_based"
	case AlgorithmManual:
		return "manual"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps the wire form onto an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "sequential":
		return AlgorithmSequential, nil
	case "runtime_balanced":
		return AlgorithmRuntimeBalanced, nil
	case "performance_based":
		return AlgorithmPerformanceBased, nil
	case "manual":
		return AlgorithmManual, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Strategy chooses the condenser priority-score formula.
type Strategy int

const (
	StrategyRuntime Strategy = iota
	StrategyPerformance
	StrategyHybrid
	StrategyMaintenance
	StrategyAdaptive
)

func (s Strategy) String() string {
	switch s {
	case StrategyRuntime:
		return "runtime"
	case StrategyPerformance:
		return "performance"
	case StrategyHybrid:
		return "hybrid"
	case StrategyMaintenance:
		return "maintenance"
	case StrategyAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps the wire form onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "runtime":
		return StrategyRuntime, nil
	case "performance":
		return StrategyPerformance, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "maintenance":
		return StrategyMaintenance, nil
	case "adaptive":
		return StrategyAdaptive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Params are the staging tunables, loaded from configuration at boot.
type Params struct {
	MinimumRunTime           time.Duration
	CompressorStageDelay     time.Duration
	CondenserStageDelay      time.Duration
	RotationThresholdMinutes int64
	RotationCooldown         time.Duration
	MaintenanceInterval      time.Duration
	DueSoonWindow            time.Duration
	MaintenanceScanEvery     time.Duration
	EfficiencyCritical       float64
	DesignAmbientC           float64
	NominalDeltaTC           float64
	MaxTier                  int
	Algorithm                Algorithm
	Strategy                 Strategy
}

// DefaultParams returns the commissioning defaults.
func DefaultParams() Params {
	return Params{
		MinimumRunTime:           5 * time.Minute,
		CompressorStageDelay:     15 * time.Second,
		CondenserStageDelay:      10 * time.Second,
		RotationThresholdMinutes: 60,
		RotationCooldown:         time.Hour,
		MaintenanceInterval:      180 * 24 * time.Hour,
		DueSoonWindow:            30 * 24 * time.Hour,
		MaintenanceScanEvery:     time.Minute,
		EfficiencyCritical:       0.75,
		DesignAmbientC:           30.0,
		NominalDeltaTC:           8.0,
		MaxTier:                  4,
		Algorithm:                AlgorithmSequential,
		Strategy:                 StrategyHybrid,
	}
}

// Control is the staging engine's own state, distinct from the plant
// equipment records: demand targets, the active tier, the algorithm knobs
// and the per-class action stamps the guards evaluate.
type Control struct {
	AutoStaging         bool
	EmergencyStopped    bool
	Algorithm           Algorithm
	Strategy            Strategy
	MaxTier             int
	Tier                int
	TargetCompressors   int
	TargetCondensers    int
	LeadCondenser       int
	LagCondenser        int
	LastCompressorStart time.Time
	LastCompressorStop  time.Time
	LastCondenserStart  time.Time
	LastCondenserStop   time.Time
	LastRotation        time.Time
	LastMaintenanceScan time.Time
}

// Settings is the operator-tunable subset persisted across restarts.
type Settings struct {
	Algorithm        string          `json:"algorithm"`
	Strategy         string          `json:"strategy"`
	MaxTier          int             `json:"maxTier"`
	CondenserWeights []WeightSetting `json:"condenserWeights,omitempty"`
}

// WeightSetting pins one condenser bank's scoring blend.
type WeightSetting struct {
	Unit        int     `json:"unit"`
	Runtime     float64 `json:"runtime"`
	Performance float64 `json:"performance"`
	Maintenance float64 `json:"maintenance"`
}

// SettingsStore loads and saves persisted settings. Load returns false when
// nothing usable is on disk; the controller then keeps its defaults. Save
// failures are logged and ignored, never fatal.
type SettingsStore interface {
	Load() (Settings, bool)
	Save(Settings) error
}
