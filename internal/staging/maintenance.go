package staging

import (
	"time"

	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/telemetry"
)

// scanMaintenance walks the escalation ladder for every condenser bank.
// An efficiency reading under the critical threshold forces Critical no
// matter where the bank sits on the calendar ladder; banks being serviced
// stay InProgress until the visit completes.
func (c *Controller) scanMaintenance(now time.Time) {
	for i := range c.reg.Condensers {
		u := &c.reg.Condensers[i]
		prev := u.Maintenance.State
		if prev == plant.MaintInProgress {
			continue
		}
		next := prev
		switch {
		case u.Perf.Valid && u.Perf.EfficiencyRating < c.par.EfficiencyCritical:
			next = plant.MaintCritical
		case (prev == plant.MaintOk || prev == plant.MaintDueSoon) && now.After(u.Maintenance.NextDue):
			next = plant.MaintDueNow
		case prev == plant.MaintOk && u.Maintenance.NextDue.Sub(now) < c.par.DueSoonWindow:
			next = plant.MaintDueSoon
		}
		if next == prev {
			continue
		}
		u.Maintenance.State = next
		c.met.SetMaintenanceState(i, int(next))
		c.lg.Info("maintenance state", "unit", i, "from", prev.String(), "to", next.String())
		c.recordUnit(telemetry.EventMaintenanceState, plant.KindCondenser, i, next.String())
	}
}

// CompleteMaintenance closes out a service visit: the ladder resets to Ok,
// the schedule advances one interval from now, and the notes stay on the
// record. If measured efficiency is still under the critical threshold the
// next scan re-asserts Critical.
func (c *Controller) CompleteMaintenance(index int, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Condenser(index)
	if err != nil {
		return err
	}
	now := c.nowFn()
	u.Maintenance.State = plant.MaintOk
	u.Maintenance.LastService = now
	u.Maintenance.NextDue = now.Add(c.par.MaintenanceInterval)
	u.Maintenance.Completed++
	u.Maintenance.Notes = notes
	c.met.SetMaintenanceState(index, int(plant.MaintOk))
	c.lg.Info("maintenance completed", "unit", index, "nextDue", u.Maintenance.NextDue)
	c.recordUnit(telemetry.EventMaintenanceCompleted, plant.KindCondenser, index, notes)
	return nil
}

// StartMaintenance marks a bank as being serviced. The scheduler leaves
// InProgress banks alone; the bank still scores with the maintenance
// penalty while the crew works.
func (c *Controller) StartMaintenance(index int, notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.reg.Condenser(index)
	if err != nil {
		return err
	}
	u.Maintenance.State = plant.MaintInProgress
	u.Maintenance.Notes = notes
	c.met.SetMaintenanceState(index, int(plant.MaintInProgress))
	c.lg.Info("maintenance started", "unit", index)
	c.recordUnit(telemetry.EventMaintenanceState, plant.KindCondenser, index, plant.MaintInProgress.String())
	return nil
}
