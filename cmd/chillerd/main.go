package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/handlers"

	"github.com/akhgr1-design/chillerd/internal/breaker"
	"github.com/akhgr1-design/chillerd/internal/config"
	"github.com/akhgr1-design/chillerd/internal/engine"
	"github.com/akhgr1-design/chillerd/internal/history"
	"github.com/akhgr1-design/chillerd/internal/httpapi"
	"github.com/akhgr1-design/chillerd/internal/logging"
	"github.com/akhgr1-design/chillerd/internal/metrics"
	"github.com/akhgr1-design/chillerd/internal/mqtt"
	"github.com/akhgr1-design/chillerd/internal/persist"
	"github.com/akhgr1-design/chillerd/internal/relay"
	"github.com/akhgr1-design/chillerd/internal/staging"
	"github.com/akhgr1-design/chillerd/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("config", "error", err)
		os.Exit(1)
	}

	lg, lf := logging.Init(cfg.LogDir, cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	defer func(lf *os.File) {
		if err := lf.Close(); err != nil {
			lg.Error("log file close", "error", err)
		}
	}(lf)
	lg.Info("chillerd starting", "bind", cfg.HTTPBind, "tick", cfg.TickInterval.String())

	src, err := config.NewPlantSource(cfg.PropertiesPath, lg)
	if err != nil {
		lg.Error("plant properties", "path", cfg.PropertiesPath, "error", err)
		os.Exit(1)
	}

	store := persist.NewFileStore(cfg.SettingsPath, lg)
	met := metrics.New()

	var rec telemetry.Recorder
	if len(cfg.KafkaBrokers) > 0 {
		brk := breaker.New("kafka-events", breaker.Config{}, lg)
		kr := telemetry.NewKafkaRecorder(cfg.KafkaBrokers, cfg.EventTopic,
			cfg.TopicPartitions, cfg.TopicReplication, brk, lg)
		defer kr.Close()
		rec = kr
	} else {
		rec = telemetry.NewLogRecorder(lg)
	}

	var act relay.Actuator
	var mqttClient pahomqtt.Client
	if cfg.MQTTBroker != "" {
		opts := pahomqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientID).
			SetAutoReconnect(true)
		mqttClient = pahomqtt.NewClient(opts)
		if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
			lg.Error("mqtt connect", "broker", cfg.MQTTBroker, "error", token.Error())
			os.Exit(1)
		}
		defer mqttClient.Disconnect(250)
		act = mqtt.NewPublishingActuator(mqttClient, cfg.RelayTopicPrefix, lg)
		lg.Info("mqtt connected", "broker", cfg.MQTTBroker)
	} else {
		lg.Warn("no MQTT broker configured; relay commands stay in memory")
		act = relay.NewMemoryBank()
	}

	chanMap := src.ChannelMap()
	ctl, err := staging.NewController(cfg.Staging, staging.Deps{
		Log:      lg,
		Source:   src,
		Actuator: act,
		Channels: &chanMap,
		Recorder: rec,
		Metrics:  met,
		Store:    store,
	})
	if err != nil {
		lg.Error("controller", "error", err)
		os.Exit(1)
	}

	if mqttClient != nil {
		bridge := mqtt.NewBridge(mqttClient, mqtt.Topics{
			Demand:      cfg.DemandTopic,
			Ambient:     cfg.AmbientTopic,
			Performance: cfg.PerformanceTopics,
		}, ctl, lg)
		if err := bridge.Subscribe(); err != nil {
			lg.Error("mqtt subscribe", "error", err)
			os.Exit(1)
		}
	}

	var snapshots engine.SnapshotWriter
	if cfg.InfluxURL != "" {
		hw := history.NewWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, lg)
		defer hw.Close()
		hctx, hcancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := hw.Health(hctx); err != nil {
			lg.Warn("influx unreachable; history writes will retry", "url", cfg.InfluxURL, "error", err)
		}
		hcancel()
		snapshots = hw
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := src.Watch(ctx); err != nil {
			lg.Warn("properties watch ended", "error", err)
		}
	}()

	eng := engine.New(ctl, cfg.TickInterval, snapshots, cfg.HistoryInterval, lg)
	engDone := make(chan struct{})
	go func() {
		defer close(engDone)
		eng.Run(ctx)
	}()

	api := httpapi.NewServer(ctl, met, src, lg)
	srv := &http.Server{
		Addr:    cfg.HTTPBind,
		Handler: handlers.LoggingHandler(os.Stdout, httpapi.NewRouter(api)),
	}
	go func() {
		lg.Info("http listening", "bind", cfg.HTTPBind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	sh, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(sh)
	cancel()
	// Wait for the last tick to finish before the deferred closes tear
	// down the recorder and the history client.
	<-engDone
	lg.Info("chillerd stopped")
}
