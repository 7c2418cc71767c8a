package staging

import (
	"testing"
	"time"

	"github.com/akhgr1-design/chillerd/internal/plant"
	"github.com/akhgr1-design/chillerd/internal/telemetry"
)

func TestRotationDesignatesLeastRunBank(t *testing.T) {
	src := &stubSource{comps: 8, conds: 2}
	rec := &captureRecorder{}
	c, _, clk := newTestController(t, src, func(p *Params, d *Deps) {
		p.RotationThresholdMinutes = 50
		d.Recorder = rec
	})

	c.reg.Condensers[0].RuntimeMinutes = 600
	c.reg.Condensers[1].RuntimeMinutes = 50
	c.ProcessTick(clk.t)

	s := c.Status()
	if s.LeadCondenser != 1 || s.LagCondenser != 0 {
		t.Fatalf("lead/lag = %d/%d, want 1/0", s.LeadCondenser, s.LagCondenser)
	}
	evs := rec.ofType(telemetry.EventLeadRotated)
	if len(evs) != 1 {
		t.Fatalf("rotation events = %d, want 1", len(evs))
	}
	if evs[0].Unit != 1 || evs[0].Reason != "spread 550m" {
		t.Errorf("rotation event = %+v", evs[0])
	}
}

func TestRotationCooldown(t *testing.T) {
	src := &stubSource{comps: 8, conds: 2}
	rec := &captureRecorder{}
	c, _, clk := newTestController(t, src, func(_ *Params, d *Deps) { d.Recorder = rec })

	c.reg.Condensers[0].RuntimeMinutes = 600
	c.reg.Condensers[1].RuntimeMinutes = 50
	c.ProcessTick(clk.t)
	if s := c.Status(); s.LeadCondenser != 1 {
		t.Fatalf("first rotation missed, lead = %d", s.LeadCondenser)
	}

	// Spread inverts immediately, designation holds through the cooldown.
	c.reg.Condensers[0].RuntimeMinutes = 50
	c.reg.Condensers[1].RuntimeMinutes = 600
	clk.t = clk.t.Add(time.Minute)
	c.ProcessTick(clk.t)
	if s := c.Status(); s.LeadCondenser != 1 {
		t.Errorf("rotation ran inside cooldown, lead = %d", s.LeadCondenser)
	}

	clk.t = clk.t.Add(61 * time.Minute)
	c.ProcessTick(clk.t)
	if s := c.Status(); s.LeadCondenser != 0 || s.LagCondenser != 1 {
		t.Errorf("rotation after cooldown: lead/lag = %d/%d, want 0/1", s.LeadCondenser, s.LagCondenser)
	}
	if got := len(rec.ofType(telemetry.EventLeadRotated)); got != 2 {
		t.Errorf("rotation events = %d, want 2", got)
	}
}

func TestRotationSpreadAtThresholdHolds(t *testing.T) {
	src := &stubSource{comps: 8, conds: 2}
	rec := &captureRecorder{}
	c, _, clk := newTestController(t, src, func(p *Params, d *Deps) {
		p.RotationThresholdMinutes = 50
		d.Recorder = rec
	})

	c.reg.Condensers[0].RuntimeMinutes = 100
	c.reg.Condensers[1].RuntimeMinutes = 50
	c.ProcessTick(clk.t)

	if got := len(rec.ofType(telemetry.EventLeadRotated)); got != 0 {
		t.Errorf("rotation fired at exactly the threshold, events = %d", got)
	}
}

func TestRotationNeedsTwoAvailableBanks(t *testing.T) {
	src := &stubSource{comps: 8, conds: 1}
	rec := &captureRecorder{}
	c, _, clk := newTestController(t, src, func(_ *Params, d *Deps) { d.Recorder = rec })

	c.reg.Condensers[0].RuntimeMinutes = 900
	c.ProcessTick(clk.t)
	if got := len(rec.ofType(telemetry.EventLeadRotated)); got != 0 {
		t.Errorf("rotation fired with a single bank, events = %d", got)
	}
}

func TestRotationIgnoresUnavailableBanks(t *testing.T) {
	src := &stubSource{comps: 8, conds: 4, disabled: map[string]bool{disabledKey(plant.KindCondenser, 2): true}}
	c, _, clk := newTestController(t, src, nil)

	c.reg.Condensers[0].RuntimeMinutes = 10
	c.reg.Condensers[1].RuntimeMinutes = 200
	c.reg.Condensers[2].RuntimeMinutes = 9999
	c.reg.Condensers[3].RuntimeMinutes = 30
	c.ProcessTick(clk.t)

	s := c.Status()
	if s.LeadCondenser != 0 || s.LagCondenser != 1 {
		t.Errorf("lead/lag = %d/%d, want 0/1 (disabled bank excluded)", s.LeadCondenser, s.LagCondenser)
	}
}
