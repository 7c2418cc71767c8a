// Package relay abstracts the switching hardware behind the staging engine.
// The engine only ever asks for one channel transition at a time; transports
// (in-memory image, MQTT relay gateway) implement Actuator.
package relay

import (
	"fmt"
	"sync"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

// Actuator drives one relay channel at a time. Set returns an error when the
// transport could not deliver the command; callers treat that as "the
// contactor did not move" and leave their state untouched.
type Actuator interface {
	Set(channel uint8, on bool) error
	Get(channel uint8) bool
}

// ChannelMap binds equipment banks to relay board channels. The stock layout
// puts compressors on channels 0-7 and condensers on 8-11; commissioning can
// rewire individual banks through the properties file.
type ChannelMap struct {
	Compressors [plant.MaxCompressors]uint8
	Condensers  [plant.MaxCondensers]uint8
}

// DefaultChannelMap returns the stock wiring.
func DefaultChannelMap() ChannelMap {
	var m ChannelMap
	for i := range m.Compressors {
		m.Compressors[i] = uint8(i)
	}
	for i := range m.Condensers {
		m.Condensers[i] = uint8(plant.MaxCompressors + i)
	}
	return m
}

// Channel resolves the relay channel for a bank.
func (m ChannelMap) Channel(k plant.Kind, index int) (uint8, error) {
	if index < 0 || index >= k.Max() {
		return 0, fmt.Errorf("%w: %s %d", plant.ErrUnknownUnit, k, index)
	}
	if k == plant.KindCompressor {
		return m.Compressors[index], nil
	}
	return m.Condensers[index], nil
}

// MemoryBank is an in-process relay image. It backs bench runs without a
// relay gateway and serves as the local read-back mirror for transports
// that are write-only.
type MemoryBank struct {
	mu    sync.Mutex
	state map[uint8]bool
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{state: make(map[uint8]bool)}
}

func (b *MemoryBank) Set(channel uint8, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[channel] = on
	return nil
}

func (b *MemoryBank) Get(channel uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[channel]
}

// Snapshot copies the current relay image for status reporting.
func (b *MemoryBank) Snapshot() map[uint8]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint8]bool, len(b.state))
	for ch, on := range b.state {
		out[ch] = on
	}
	return out
}
