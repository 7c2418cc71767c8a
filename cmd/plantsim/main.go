// Command plantsim feeds a running chillerd synthetic plant signals over
// MQTT: a daily capacity-demand profile, an ambient temperature curve and
// drifting per-condenser performance samples. Point it at the compose
// stack's broker to exercise the whole staging path without hardware.
package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type simConfig struct {
	Broker          string
	ClientID        string
	DemandTopic     string
	AmbientTopic    string
	PerfTopicFormat string
	Condensers      int
	DemandEvery     time.Duration
	AmbientEvery    time.Duration
	PerfEvery       time.Duration
	Speedup         float64
}

func loadConfig() simConfig {
	return simConfig{
		Broker:          getenv("MQTT_BROKER", "tcp://localhost:1883"),
		ClientID:        getenv("MQTT_CLIENT_ID", "plantsim"),
		DemandTopic:     getenv("DEMAND_TOPIC", "chiller/capacity/demand"),
		AmbientTopic:    getenv("AMBIENT_TOPIC", "chiller/ambient/temperature"),
		PerfTopicFormat: getenv("PERF_TOPIC_FORMAT", "chiller/condenser/%d/performance"),
		Condensers:      geti("CONDENSERS", 4),
		DemandEvery:     getd("DEMAND_EVERY", 15*time.Second),
		AmbientEvery:    getd("AMBIENT_EVERY", 30*time.Second),
		PerfEvery:       getd("PERF_EVERY", time.Minute),
		Speedup:         getf("SPEEDUP", 60),
	}
}

func main() {
	cfg := loadConfig()
	lg := slog.New(slog.NewTextHandler(os.Stdout, nil))

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		lg.Error("mqtt connect", "broker", cfg.Broker, "error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)
	lg.Info("plantsim publishing", "broker", cfg.Broker,
		"condensers", cfg.Condensers, "speedup", cfg.Speedup)

	s := newSimulator(cfg, client, lg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.startDemandLoop(ctx)
	s.startAmbientLoop(ctx)
	s.startPerformanceLoop(ctx)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	lg.Info("plantsim stopped")
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func geti(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func getf(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getd(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func jitter(span float64) float64 {
	return (rand.Float64()*2 - 1) * span
}
