// Package plant models the physical equipment of an air-cooled chiller
// plant: compressor banks, condenser banks, their runtime counters and
// maintenance records. It carries no staging logic; the staging package
// decides, plant remembers.
package plant

import (
	"errors"
	"fmt"
	"time"
)

// Hardware ceilings of the relay board. Banks beyond the installed count
// exist in the arrays but are never available.
const (
	MaxCompressors = 8
	MaxCondensers  = 4
)

// ErrUnknownUnit is returned when an operation references an equipment index
// outside the hardware range.
var ErrUnknownUnit = errors.New("unknown equipment unit")

// ErrUnknownKind is returned when parsing an equipment kind string fails.
var ErrUnknownKind = errors.New("unknown equipment kind")

// ErrUnknownMode is returned when parsing an operating mode string fails.
var ErrUnknownMode = errors.New("unknown operating mode")

// Kind distinguishes the two staged equipment classes.
type Kind int

const (
	KindCompressor Kind = iota
	KindCondenser
)

func (k Kind) String() string {
	switch k {
	case KindCompressor:
		return "compressor"
	case KindCondenser:
		return "condenser"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Max returns the hardware ceiling for the kind.
func (k Kind) Max() int {
	if k == KindCompressor {
		return MaxCompressors
	}
	return MaxCondensers
}

// ParseKind maps the wire form ("compressor"/"condenser") onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "compressor", "compressors":
		return KindCompressor, nil
	case "condenser", "condensers":
		return KindCondenser, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Mode is the per-unit operating mode. Only units in ModeAuto participate in
// automatic staging; the manual modes pin a unit on or off, ModeDisabled
// parks it, and ModeFault records a tripped unit until an operator clears it.
type Mode int

const (
	ModeAuto Mode = iota
	ModeManualOn
	ModeManualOff
	ModeDisabled
	ModeFault
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManualOn:
		return "manual_on"
	case ModeManualOff:
		return "manual_off"
	case ModeDisabled:
		return "disabled"
	case ModeFault:
		return "fault"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the wire form onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto":
		return ModeAuto, nil
	case "manual_on":
		return ModeManualOn, nil
	case "manual_off":
		return ModeManualOff, nil
	case "disabled":
		return ModeDisabled, nil
	case "fault":
		return ModeFault, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MaintState is the maintenance escalation ladder for condenser banks.
// The scheduler walks Ok -> DueSoon -> DueNow -> Critical on calendar time;
// InProgress is set manually while a bank is being serviced.
type MaintState int

const (
	MaintOk MaintState = iota
	MaintDueSoon
	MaintDueNow
	MaintCritical
	MaintInProgress
)

func (s MaintState) String() string {
	switch s {
	case MaintOk:
		return "ok"
	case MaintDueSoon:
		return "due_soon"
	case MaintDueNow:
		return "due_now"
	case MaintCritical:
		return "critical"
	case MaintInProgress:
		return "in_progress"
	default:
		return fmt.Sprintf("maint(%d)", int(s))
	}
}

// UnitState is the live record of one staged bank. Running mirrors the
// commanded relay: both flip together inside the same transition, so the
// relay image never drifts from the logical state.
type UnitState struct {
	Kind           Kind
	Index          int
	Running        bool
	RelayOn        bool
	Mode           Mode
	Available      bool
	RuntimeMinutes int64
	StartCycles    int64
	FaultCount     int64
	StartedAt      time.Time
	StoppedAt      time.Time

	runtimeMark time.Time
}

// StartAt transitions the unit to running and stamps the bookkeeping.
func (u *UnitState) StartAt(now time.Time) {
	u.Running = true
	u.RelayOn = true
	u.StartedAt = now
	u.runtimeMark = now
	u.StartCycles++
}

// StopAt transitions the unit to stopped, folding any whole minutes run
// since the last accrual into the runtime counter.
func (u *UnitState) StopAt(now time.Time) {
	u.Accrue(now)
	u.Running = false
	u.RelayOn = false
	u.StoppedAt = now
}

// Accrue folds elapsed whole minutes into RuntimeMinutes. Sub-minute
// remainders stay pending until the next call.
func (u *UnitState) Accrue(now time.Time) {
	if !u.Running {
		return
	}
	if u.runtimeMark.IsZero() {
		u.runtimeMark = now
		return
	}
	for now.Sub(u.runtimeMark) >= time.Minute {
		u.RuntimeMinutes++
		u.runtimeMark = u.runtimeMark.Add(time.Minute)
	}
}

// RunDuration reports how long the unit has been running, zero if stopped.
func (u *UnitState) RunDuration(now time.Time) time.Duration {
	if !u.Running || u.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(u.StartedAt)
}

// Performance is the last reported condenser performance sample. Valid stays
// false until the first report arrives so scoring can tell "no data" from
// "bad data". TemperatureDeltaC is the water-side temperature rise across
// the bank. Trend is the efficiency delta against the previous sample,
// zero until a second sample exists.
type Performance struct {
	EfficiencyRating  float64
	PowerDrawKW       float64
	CoolingCapacityKW float64
	TemperatureDeltaC float64
	Trend             float64
	UpdatedAt         time.Time
	Valid             bool
}

// PerformanceSample is one measured report from a condenser bank, as
// delivered by the BMS or a field gateway.
type PerformanceSample struct {
	EfficiencyRating  float64
	PowerDrawKW       float64
	CoolingCapacityKW float64
	TemperatureDeltaC float64
}

// MaintenanceRecord tracks the service schedule of a condenser bank.
type MaintenanceRecord struct {
	State       MaintState
	LastService time.Time
	NextDue     time.Time
	Completed   int64
	Notes       string
}

// ScoreWeights are the per-unit blend factors for hybrid priority scoring.
type ScoreWeights struct {
	Runtime     float64
	Performance float64
	Maintenance float64
}

// DefaultWeights returns the factory blend used until an operator tunes it.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{Runtime: 0.4, Performance: 0.4, Maintenance: 0.2}
}

// Condenser extends UnitState with the condenser-only bookkeeping used by
// priority scoring and the maintenance scheduler.
type Condenser struct {
	UnitState
	Perf        Performance
	Maintenance MaintenanceRecord
	Weights     ScoreWeights
	AmbientComp float64
	Score       float64
}

// EquipmentSource answers the plant layout questions the registry refreshes
// from every cycle. Implementations read commissioning data (properties
// file, defaults) and may change answers at runtime on reload.
type EquipmentSource interface {
	// InstalledCount reports how many banks of the kind are physically wired.
	InstalledCount(k Kind) int
	// Installed reports whether the bank at index is physically wired.
	Installed(k Kind, index int) bool
	// Enabled reports whether the bank at index is released for use.
	Enabled(k Kind, index int) bool
	// Setpoints returns the commissioned supply and return water temperatures
	// and the control tolerance around them.
	Setpoints() (supplyC, returnC, toleranceC float64)
}
