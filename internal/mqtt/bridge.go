// Package mqtt bridges broker topics to staging operations: capacity
// demand, ambient temperature and condenser performance flow in, relay
// commands flow out through PublishingActuator.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

const qosTelemetry = 0

// Commands is the slice of controller operations the bridge drives.
type Commands interface {
	UpdateCapacity(pct float64) float64
	UpdateAmbient(tempC float64) error
	UpdatePerformance(index int, s plant.PerformanceSample) error
}

// Topics carries the configured subscription filters. Performance must
// contain exactly one + wildcard in the condenser-index position.
type Topics struct {
	Demand      string
	Ambient     string
	Performance string
}

type Bridge struct {
	client mqtt.Client
	topics Topics
	ctl    Commands
	lg     *slog.Logger
}

func NewBridge(client mqtt.Client, topics Topics, ctl Commands, lg *slog.Logger) *Bridge {
	return &Bridge{
		client: client,
		topics: topics,
		ctl:    ctl,
		lg:     lg.With(slog.String("component", "mqtt")),
	}
}

// Subscribe installs all three handlers. Callers own the client lifecycle.
func (b *Bridge) Subscribe() error {
	subs := []struct {
		filter  string
		handler mqtt.MessageHandler
	}{
		{b.topics.Demand, func(_ mqtt.Client, m mqtt.Message) { b.onDemand(m.Payload()) }},
		{b.topics.Ambient, func(_ mqtt.Client, m mqtt.Message) { b.onAmbient(m.Payload()) }},
		{b.topics.Performance, func(_ mqtt.Client, m mqtt.Message) { b.onPerformance(m.Topic(), m.Payload()) }},
	}
	for _, s := range subs {
		token := b.client.Subscribe(s.filter, qosTelemetry, s.handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.filter, token.Error())
		}
		b.lg.Info("subscribed", "topic", s.filter)
	}
	return nil
}

func (b *Bridge) onDemand(payload []byte) {
	pct, err := parseNumberPayload(payload, "capacityPercent")
	if err != nil {
		b.lg.Warn("bad demand payload", "err", err)
		return
	}
	b.ctl.UpdateCapacity(pct)
}

func (b *Bridge) onAmbient(payload []byte) {
	tempC, err := parseNumberPayload(payload, "temperatureC")
	if err != nil {
		b.lg.Warn("bad ambient payload", "err", err)
		return
	}
	if err := b.ctl.UpdateAmbient(tempC); err != nil {
		b.lg.Warn("ambient rejected", "tempC", tempC, "err", err)
	}
}

func (b *Bridge) onPerformance(topic string, payload []byte) {
	index, ok := indexFromTopic(b.topics.Performance, topic)
	if !ok {
		b.lg.Warn("bad performance topic", "topic", topic)
		return
	}
	var msg struct {
		EfficiencyRating  float64 `json:"efficiencyRating"`
		PowerDrawKW       float64 `json:"powerDrawKw"`
		CoolingCapacityKW float64 `json:"coolingCapacityKw"`
		TemperatureDeltaC float64 `json:"temperatureDeltaC"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.lg.Warn("bad performance payload", "topic", topic, "err", err)
		return
	}
	sample := plant.PerformanceSample{
		EfficiencyRating:  msg.EfficiencyRating,
		PowerDrawKW:       msg.PowerDrawKW,
		CoolingCapacityKW: msg.CoolingCapacityKW,
		TemperatureDeltaC: msg.TemperatureDeltaC,
	}
	if err := b.ctl.UpdatePerformance(index, sample); err != nil {
		b.lg.Warn("performance rejected", "unit", index, "err", err)
	}
}

// parseNumberPayload accepts either a bare number ("72.5") or a JSON
// object carrying the value under field. BMS gateways send both forms.
func parseNumberPayload(payload []byte, field string) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return 0, fmt.Errorf("payload %q is neither number nor object", text)
	}
	raw, ok := obj[field]
	if !ok {
		return 0, fmt.Errorf("payload missing field %q", field)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}

// indexFromTopic extracts the integer occupying the + position of the
// subscription filter, e.g. filter "chiller/condenser/+/performance"
// and topic "chiller/condenser/2/performance" yield 2.
func indexFromTopic(filter, topic string) (int, bool) {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return 0, false
	}
	index, captured := 0, false
	for i, part := range fp {
		if part == "+" {
			n, err := strconv.Atoi(tp[i])
			if err != nil || captured {
				return 0, false
			}
			index, captured = n, true
			continue
		}
		if part != tp[i] {
			return 0, false
		}
	}
	return index, captured
}
