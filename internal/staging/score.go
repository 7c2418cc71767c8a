package staging

import (
	"time"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

// AmbientZone classifies the outdoor temperature for the adaptive strategy.
type AmbientZone int

const (
	ZoneMild AmbientZone = iota
	ZoneCold
	ZoneHot
)

func (z AmbientZone) String() string {
	switch z {
	case ZoneCold:
		return "cold"
	case ZoneHot:
		return "hot"
	default:
		return "mild"
	}
}

// zoneFor buckets an ambient sample: cold below 10, hot above 28, mild
// in between.
func zoneFor(ambientC float64) AmbientZone {
	switch {
	case ambientC < 10:
		return ZoneCold
	case ambientC > 28:
		return ZoneHot
	default:
		return ZoneMild
	}
}

// seasonalFor returns the seasonal derate: winter months favour staging
// slightly (1.05), high summer derates (0.95).
func seasonalFor(m time.Month) float64 {
	switch m {
	case time.December, time.January, time.February:
		return 1.05
	case time.June, time.July, time.August:
		return 0.95
	default:
		return 1.0
	}
}

// ScoreEnv carries the fleet-level inputs of a scoring pass so that
// PriorityScore stays a pure function of its arguments.
type ScoreEnv struct {
	Strategy        Strategy
	SeasonalFactor  float64
	FleetAvgRuntime float64
	Zone            AmbientZone
}

// PriorityScore computes the selection score of one condenser bank under
// the given environment. Higher is better. The maintenance penalty halves
// the score of any bank not in the Ok state, compounding with the
// per-strategy maintenance terms.
func PriorityScore(u plant.Condenser, env ScoreEnv) float64 {
	runtimeTerm := func() float64 {
		return u.Weights.Runtime / (1 + float64(u.RuntimeMinutes)*runtimeDecayK)
	}
	maintOk := u.Maintenance.State == plant.MaintOk

	var base float64
	switch env.Strategy {
	case StrategyRuntime:
		base = runtimeTerm()
	case StrategyPerformance:
		base = u.Weights.Performance * u.Perf.EfficiencyRating
	case StrategyHybrid:
		maintFactor := 0.5
		if maintOk {
			maintFactor = 1.0
		}
		base = runtimeTerm() + u.Weights.Performance*u.Perf.EfficiencyRating + u.Weights.Maintenance*maintFactor
	case StrategyMaintenance:
		maintFactor := 0.1
		if maintOk {
			maintFactor = 1.0
		}
		base = u.Weights.Maintenance * maintFactor
	case StrategyAdaptive:
		belowAvg := 0.0
		if float64(u.RuntimeMinutes) < env.FleetAvgRuntime {
			belowAvg = 1.0
		}
		base = 0.4*u.Perf.EfficiencyRating + 0.3*belowAvg + 0.3*zoneBonus(env.Zone, belowAvg == 1.0, u.Perf.EfficiencyRating)
	}

	score := base * u.AmbientComp * env.SeasonalFactor
	if !maintOk {
		score *= maintenancePenalty
	}
	return score
}

// zoneBonus is the ambient-dependent term of the adaptive strategy: cold
// weather wear-levels onto rested banks, hot weather chases efficiency,
// mild weather is neutral.
func zoneBonus(zone AmbientZone, belowAvgRuntime bool, efficiency float64) float64 {
	switch zone {
	case ZoneCold:
		if belowAvgRuntime {
			return 1.0
		}
		return 0
	case ZoneHot:
		return efficiency
	default:
		return 0.5
	}
}

// startEligible reports whether a condenser bank may be picked for an
// automatic start: wired in, idle, in Auto, and not maintenance-critical.
func startEligible(u *plant.Condenser) bool {
	return u.Available && !u.Running && u.Mode == plant.ModeAuto && u.Maintenance.State != plant.MaintCritical
}
