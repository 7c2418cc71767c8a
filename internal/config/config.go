// Package config loads the service configuration: environment variables for
// endpoints and staging tunables, a properties file for the plant equipment
// layout. The properties file is the live part; it can be re-read at runtime
// through the reload endpoint or the fsnotify watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akhgr1-design/chillerd/internal/staging"
)

type Config struct {
	HTTPBind string
	LogDir   string
	LogFile  string
	LogLevel string

	TickInterval   time.Duration
	PropertiesPath string
	SettingsPath   string

	KafkaBrokers     []string
	EventTopic       string
	TopicPartitions  int
	TopicReplication int

	MQTTBroker        string
	MQTTClientID      string
	DemandTopic       string
	AmbientTopic      string
	PerformanceTopics string
	RelayTopicPrefix  string

	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
	HistoryInterval time.Duration

	Staging staging.Params
}

// Load reads the environment. Kafka, MQTT and Influx endpoints are optional;
// leaving them empty runs the engine with log-only telemetry, no bridge and
// no history. Invalid staging enums are a boot error, not a silent default.
func Load() (*Config, error) {
	c := &Config{
		HTTPBind: getenv("HTTP_BIND", ":8080"),
		LogDir:   getenv("LOG_DIR", "./logs"),
		LogFile:  getenv("LOG_FILE", "chillerd.log"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		TickInterval:   getd("TICK_INTERVAL", time.Second),
		PropertiesPath: getenv("PROPERTIES_PATH", "./configs/chillerd.properties"),
		SettingsPath:   getenv("SETTINGS_PATH", "./data/settings.json"),

		KafkaBrokers:     split(getenv("KAFKA_BROKERS", ""), ","),
		EventTopic:       getenv("EVENT_TOPIC", "chiller.staging.events"),
		TopicPartitions:  geti("TOPIC_PARTITIONS", 1),
		TopicReplication: geti("TOPIC_REPLICATION", 1),

		MQTTBroker:        getenv("MQTT_BROKER", ""),
		MQTTClientID:      getenv("MQTT_CLIENT_ID", "chillerd"),
		DemandTopic:       getenv("DEMAND_TOPIC", "chiller/capacity/demand"),
		AmbientTopic:      getenv("AMBIENT_TOPIC", "chiller/ambient/temperature"),
		PerformanceTopics: getenv("PERFORMANCE_TOPICS", "chiller/condenser/+/performance"),
		RelayTopicPrefix:  getenv("RELAY_TOPIC_PREFIX", "chiller/relay/"),

		InfluxURL:       getenv("INFLUX_URL", ""),
		InfluxToken:     getenv("INFLUX_TOKEN", ""),
		InfluxOrg:       getenv("INFLUX_ORG", "nrg"),
		InfluxBucket:    getenv("INFLUX_BUCKET", "chiller_history"),
		HistoryInterval: getd("HISTORY_INTERVAL", time.Minute),

		Staging: staging.Params{
			MinimumRunTime:           getd("MINIMUM_RUN_TIME", 5*time.Minute),
			CompressorStageDelay:     getd("COMPRESSOR_STAGE_DELAY", 15*time.Second),
			CondenserStageDelay:      getd("CONDENSER_STAGE_DELAY", 10*time.Second),
			RotationThresholdMinutes: int64(geti("ROTATION_THRESHOLD_MIN", 60)),
			RotationCooldown:         getd("ROTATION_COOLDOWN", time.Hour),
			MaintenanceInterval:      getd("MAINTENANCE_INTERVAL", 180*24*time.Hour),
			DueSoonWindow:            getd("DUE_SOON_WINDOW", 30*24*time.Hour),
			MaintenanceScanEvery:     getd("MAINTENANCE_SCAN_EVERY", time.Minute),
			EfficiencyCritical:       getf("EFFICIENCY_CRITICAL", 0.75),
			DesignAmbientC:           getf("DESIGN_AMBIENT_C", 30.0),
			NominalDeltaTC:           getf("NOMINAL_DELTA_T_C", 8.0),
			MaxTier:                  geti("MAX_TIER", 4),
		},
	}

	var err error
	if c.Staging.Algorithm, err = staging.ParseAlgorithm(getenv("STAGING_ALGORITHM", "sequential")); err != nil {
		return nil, fmt.Errorf("STAGING_ALGORITHM: %w", err)
	}
	if c.Staging.Strategy, err = staging.ParseStrategy(getenv("CONDENSER_STRATEGY", "hybrid")); err != nil {
		return nil, fmt.Errorf("CONDENSER_STRATEGY: %w", err)
	}
	if c.Staging.MaxTier < 1 || c.Staging.MaxTier > 4 {
		return nil, fmt.Errorf("MAX_TIER %d outside 1..4", c.Staging.MaxTier)
	}
	if c.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive")
	}
	return c, nil
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

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
