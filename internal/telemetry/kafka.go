package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akhgr1-design/chillerd/internal/breaker"
)

// KafkaRecorder publishes events to a Kafka topic through a bounded buffer
// and a single writer goroutine. When the buffer fills, new events are
// dropped and counted; the breaker fast-fails writes while the broker is
// down so the drain loop never piles up timeouts.
type KafkaRecorder struct {
	lg  *slog.Logger
	w   *kafka.Writer
	brk *breaker.Breaker

	mu      sync.RWMutex
	closed  bool
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64
}

// NewKafkaRecorder wires the writer and starts the drain goroutine. Topic
// creation is best-effort: a broker that is down at boot only costs the
// events recorded until it returns.
func NewKafkaRecorder(brokers []string, topic string, partitions, replication int, brk *breaker.Breaker, lg *slog.Logger) *KafkaRecorder {
	r := &KafkaRecorder{
		lg: lg.With(slog.String("component", "kafka-events")),
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		brk:  brk,
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
	if err := ensureTopic(context.Background(), brokers[0], topic, partitions, replication, lg); err != nil {
		r.lg.Warn("topic ensure failed", "topic", topic, "error", err)
	}
	go r.run()
	r.lg.Info("kafka events wired", "topic", topic, "brokers", brokers)
	return r
}

// Record buffers the event for the drain goroutine. Events recorded after
// Close are discarded; shutdown may still have a tick in flight.
func (r *KafkaRecorder) Record(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- stampEvent(ev):
	default:
		n := r.dropped.Add(1)
		if n%100 == 1 {
			r.lg.Warn("event buffer full; dropping", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (r *KafkaRecorder) Dropped() int64 { return r.dropped.Load() }

func (r *KafkaRecorder) run() {
	defer close(r.done)
	for ev := range r.ch {
		b, err := json.Marshal(ev)
		if err != nil {
			r.lg.Error("event marshal", "type", ev.Type, "error", err)
			continue
		}
		msg := kafka.Message{Key: []byte(eventKey(ev)), Value: b, Time: time.Now()}
		err = r.brk.Execute(context.Background(), func(ctx context.Context) error {
			ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return r.w.WriteMessages(ctx2, msg)
		})
		if err != nil {
			r.lg.Warn("event publish failed", "type", ev.Type, "error", err)
			continue
		}
		r.lg.Debug("event published", "type", ev.Type, "id", ev.ID)
	}
}

// eventKey keeps per-unit ordering under the hash balancer; plant-wide
// events partition by type.
func eventKey(ev Event) string {
	if ev.Unit >= 0 {
		return ev.Kind + "-" + strconv.Itoa(ev.Unit)
	}
	return ev.Type
}

// Close drains the buffer, stops the goroutine and closes the writer.
// It is idempotent and safe to race with Record.
func (r *KafkaRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
	_ = r.w.Close()
}

func ensureTopic(ctx context.Context, broker, topic string, partitions, replication int, lg *slog.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			lg.Warn("broker conn close", "error", err)
		}
	}()
	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	c, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ctrl.Host, ctrl.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("controller conn close", "error", err)
		}
	}()
	if err := c.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: partitions, ReplicationFactor: replication}); err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	return nil
}
