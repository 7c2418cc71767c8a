package mqtt

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosCommand     = 1
	publishTimeout = 5 * time.Second
)

// PublishingActuator drives relay channels over the broker: channel N is
// commanded by publishing "1" or "0" to prefix+N. Get reflects the last
// successfully published state, not hardware feedback.
type PublishingActuator struct {
	client mqtt.Client
	prefix string
	lg     *slog.Logger

	mu    sync.Mutex
	state map[uint8]bool
}

func NewPublishingActuator(client mqtt.Client, prefix string, lg *slog.Logger) *PublishingActuator {
	return &PublishingActuator{
		client: client,
		prefix: prefix,
		lg:     lg.With(slog.String("component", "relay-mqtt")),
		state:  make(map[uint8]bool),
	}
}

func (a *PublishingActuator) Set(channel uint8, on bool) error {
	payload := "0"
	if on {
		payload = "1"
	}
	topic := a.prefix + strconv.Itoa(int(channel))
	token := a.client.Publish(topic, qosCommand, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	a.mu.Lock()
	a.state[channel] = on
	a.mu.Unlock()
	a.lg.Debug("relay command published", "channel", channel, "on", on)
	return nil
}

func (a *PublishingActuator) Get(channel uint8) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state[channel]
}
