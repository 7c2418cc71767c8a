package plant

import (
	"fmt"
	"time"
)

// Registry owns the fixed-size equipment arrays. All mutation happens under
// the staging controller's lock; the registry itself carries no locking.
type Registry struct {
	Compressors [MaxCompressors]UnitState
	Condensers  [MaxCondensers]Condenser
}

// NewRegistry builds the equipment arrays with factory defaults: every bank
// in ModeAuto, condenser weights at the factory blend, ambient compensation
// neutral, and maintenance due one interval from now.
func NewRegistry(now time.Time, maintenanceInterval time.Duration) *Registry {
	r := &Registry{}
	for i := range r.Compressors {
		r.Compressors[i] = UnitState{Kind: KindCompressor, Index: i, Mode: ModeAuto}
	}
	for i := range r.Condensers {
		r.Condensers[i] = Condenser{
			UnitState:   UnitState{Kind: KindCondenser, Index: i, Mode: ModeAuto},
			Weights:     DefaultWeights(),
			AmbientComp: 1.0,
			Maintenance: MaintenanceRecord{
				State:       MaintOk,
				LastService: now,
				NextDue:     now.Add(maintenanceInterval),
			},
		}
	}
	return r
}

// Unit returns the live record for the bank at index, for either kind.
// Condensers hand back the embedded UnitState.
func (r *Registry) Unit(k Kind, index int) (*UnitState, error) {
	if index < 0 || index >= k.Max() {
		return nil, fmt.Errorf("%w: %s %d", ErrUnknownUnit, k, index)
	}
	if k == KindCompressor {
		return &r.Compressors[index], nil
	}
	return &r.Condensers[index].UnitState, nil
}

// Condenser returns the full condenser record at index.
func (r *Registry) Condenser(index int) (*Condenser, error) {
	if index < 0 || index >= MaxCondensers {
		return nil, fmt.Errorf("%w: condenser %d", ErrUnknownUnit, index)
	}
	return &r.Condensers[index], nil
}

// Units returns pointers to every bank of the kind in index order.
func (r *Registry) Units(k Kind) []*UnitState {
	out := make([]*UnitState, 0, k.Max())
	if k == KindCompressor {
		for i := range r.Compressors {
			out = append(out, &r.Compressors[i])
		}
		return out
	}
	for i := range r.Condensers {
		out = append(out, &r.Condensers[i].UnitState)
	}
	return out
}

// Refresh re-derives per-bank availability from the equipment source.
// A bank is available when it is both installed and enabled; everything
// downstream (targets, selection) keys off this flag, so layout changes
// take effect on the next cycle without restarts.
func (r *Registry) Refresh(src EquipmentSource) {
	for i := range r.Compressors {
		u := &r.Compressors[i]
		u.Available = src.Installed(KindCompressor, i) && src.Enabled(KindCompressor, i)
	}
	for i := range r.Condensers {
		u := &r.Condensers[i].UnitState
		u.Available = src.Installed(KindCondenser, i) && src.Enabled(KindCondenser, i)
	}
}

// Accrue folds elapsed runtime into every running bank.
func (r *Registry) Accrue(now time.Time) {
	for i := range r.Compressors {
		r.Compressors[i].Accrue(now)
	}
	for i := range r.Condensers {
		r.Condensers[i].Accrue(now)
	}
}

// RunningCount counts banks of the kind currently running.
func (r *Registry) RunningCount(k Kind) int {
	n := 0
	for _, u := range r.Units(k) {
		if u.Running {
			n++
		}
	}
	return n
}

// AvailableCount counts banks of the kind currently available.
func (r *Registry) AvailableCount(k Kind) int {
	n := 0
	for _, u := range r.Units(k) {
		if u.Available {
			n++
		}
	}
	return n
}
