package staging

import (
	"fmt"
	"time"

	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/telemetry"
)

// maybeRotate re-designates the lead and lag condensers when the runtime
// spread across available banks exceeds the balance threshold. It runs on
// the rotation cooldown and never actuates equipment; the designation
// biases subsequent selection passes.
func (c *Controller) maybeRotate(now time.Time) {
	if !elapsed(now, c.ctl.LastRotation, c.par.RotationCooldown) {
		return
	}
	minIdx, maxIdx := -1, -1
	for i := range c.reg.Condensers {
		u := &c.reg.Condensers[i]
		if !u.Available {
			continue
		}
		if minIdx < 0 || u.RuntimeMinutes < c.reg.Condensers[minIdx].RuntimeMinutes {
			minIdx = i
		}
		if maxIdx < 0 || u.RuntimeMinutes > c.reg.Condensers[maxIdx].RuntimeMinutes {
			maxIdx = i
		}
	}
	if minIdx < 0 || minIdx == maxIdx {
		return
	}
	spread := c.reg.Condensers[maxIdx].RuntimeMinutes - c.reg.Condensers[minIdx].RuntimeMinutes
	if spread <= c.par.RotationThresholdMinutes {
		return
	}
	if c.ctl.LeadCondenser == minIdx && c.ctl.LagCondenser == maxIdx {
		return
	}
	c.ctl.LeadCondenser = minIdx
	c.ctl.LagCondenser = maxIdx
	c.ctl.LastRotation = now
	c.lg.Info("lead rotation", "lead", minIdx, "lag", maxIdx, "spreadMinutes", spread)
	c.recordUnit(telemetry.EventLeadRotated, plant.KindCondenser, minIdx, fmt.Sprintf("spread %dm", spread))
}
