package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Simulator holds the synthetic plant state. Time is scaled by Speedup so
// a whole load/weather day passes in minutes of wall time.
type Simulator struct {
	cfg    simConfig
	lg     *slog.Logger
	client mqtt.Client
	start  time.Time
	eff    []float64
}

func newSimulator(cfg simConfig, client mqtt.Client, lg *slog.Logger) *Simulator {
	s := &Simulator{
		cfg:    cfg,
		lg:     lg,
		client: client,
		start:  time.Now(),
		eff:    make([]float64, cfg.Condensers),
	}
	for i := range s.eff {
		s.eff[i] = 0.88 + 0.06*rand.Float64()
	}
	return s
}

// simTime maps wall time onto the accelerated plant day.
func (s *Simulator) simTime(now time.Time) time.Time {
	elapsed := now.Sub(s.start)
	return s.start.Add(time.Duration(float64(elapsed) * s.cfg.Speedup))
}

// dayFraction returns the position within the simulated day in 0..1.
func dayFraction(t time.Time) float64 {
	secs := float64(t.Hour()*3600 + t.Minute()*60 + t.Second())
	return secs / 86400
}

// demandAt follows a commercial cooling profile: a night base load, a
// morning ramp, an afternoon plateau and an evening rampdown.
func demandAt(t time.Time) float64 {
	h := dayFraction(t) * 24
	var pct float64
	switch {
	case h < 6:
		pct = 15
	case h < 9:
		pct = 15 + (h-6)/3*55
	case h < 17:
		pct = 70 + 10*math.Sin((h-9)/8*math.Pi)
	case h < 22:
		pct = 70 - (h-17)/5*50
	default:
		pct = 20
	}
	pct += jitter(4)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ambientAt is a sinusoid with its minimum near 03:00 and maximum near
// 15:00, around a 24C mean with 8C swing.
func ambientAt(t time.Time) float64 {
	h := dayFraction(t) * 24
	return 24 + 8*math.Sin((h-9)/24*2*math.Pi) + jitter(0.6)
}

func (s *Simulator) startDemandLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.DemandEvery)
	s.lg.Info("demand loop started", "every", s.cfg.DemandEvery.String())
	go func() {
		defer t.Stop()
		for {
			select {
			case now := <-t.C:
				pct := demandAt(s.simTime(now))
				s.publish(s.cfg.DemandTopic, map[string]float64{"capacityPercent": round1(pct)})
			case <-ctx.Done():
				s.lg.Info("demand loop stopped")
				return
			}
		}
	}()
}

func (s *Simulator) startAmbientLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.AmbientEvery)
	s.lg.Info("ambient loop started", "every", s.cfg.AmbientEvery.String())
	go func() {
		defer t.Stop()
		for {
			select {
			case now := <-t.C:
				tempC := ambientAt(s.simTime(now))
				s.publish(s.cfg.AmbientTopic, map[string]float64{"temperatureC": round1(tempC)})
			case <-ctx.Done():
				s.lg.Info("ambient loop stopped")
				return
			}
		}
	}()
}

func (s *Simulator) startPerformanceLoop(ctx context.Context) {
	t := time.NewTicker(s.cfg.PerfEvery)
	s.lg.Info("performance loop started", "every", s.cfg.PerfEvery.String())
	go func() {
		defer t.Stop()
		for {
			select {
			case now := <-t.C:
				for i := range s.eff {
					s.driftEfficiency(i)
					topic := fmt.Sprintf(s.cfg.PerfTopicFormat, i)
					ambient := ambientAt(s.simTime(now))
					s.publish(topic, map[string]float64{
						"efficiencyRating":  round3(s.eff[i]),
						"powerDrawKw":       round1(32 + 14*s.eff[i] + jitter(2)),
						"coolingCapacityKw": round1(240*s.eff[i] + jitter(5)),
						"temperatureDeltaC": round1(8 + (ambient-24)/10 + jitter(0.4)),
					})
				}
			case <-ctx.Done():
				s.lg.Info("performance loop stopped")
				return
			}
		}
	}()
}

// driftEfficiency fouls a coil slowly; dropping under 0.70 triggers a
// simulated service visit that restores it.
func (s *Simulator) driftEfficiency(i int) {
	s.eff[i] += jitter(0.004) - 0.001
	if s.eff[i] < 0.70 {
		s.lg.Info("condenser serviced", "unit", i, "efficiency", round3(s.eff[i]))
		s.eff[i] = 0.90 + 0.04*rand.Float64()
	}
	if s.eff[i] > 0.99 {
		s.eff[i] = 0.99
	}
}

func (s *Simulator) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.lg.Error("marshal", "topic", topic, "error", err)
		return
	}
	token := s.client.Publish(topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		s.lg.Warn("publish failed", "topic", topic, "error", token.Error())
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
