// Package netquality classifies connections by measured round-trip time.
package netquality

import (
	"context"
	"sync"
	"time"

	"arena/server/logging"
	loggingNetwork "arena/server/logging/network"
)

// Tier is a coarse connection quality bucket.
type Tier uint8

const (
	TierExcellent Tier = iota
	TierGood
	TierMedium
	TierPoor
)

// Tier boundaries. A sample equal to a bound falls in the worse tier.
const (
	ExcellentBelow = 50 * time.Millisecond
	GoodBelow      = 100 * time.Millisecond
	MediumBelow    = 200 * time.Millisecond
)

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "excellent"
	case TierGood:
		return "good"
	case TierMedium:
		return "medium"
	case TierPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// Classify maps a single RTT sample onto a tier.
func Classify(rtt time.Duration) Tier {
	switch {
	case rtt < ExcellentBelow:
		return TierExcellent
	case rtt < GoodBelow:
		return TierGood
	case rtt < MediumBelow:
		return TierMedium
	default:
		return TierPoor
	}
}

// Summary aggregates every tracked connection.
type Summary struct {
	Connections int
	MeanRTT     time.Duration
	PoorRatio   float64
}

type sample struct {
	rtt  time.Duration
	tier Tier
}

// Monitor records the latest RTT per connection. Connections without a
// sample yet are treated as excellent and do not count toward the summary.
type Monitor struct {
	mu        sync.RWMutex
	conns     map[uint64]sample
	publisher logging.Publisher
}

func NewMonitor(publisher logging.Publisher) *Monitor {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Monitor{conns: make(map[uint64]sample), publisher: publisher}
}

// Observe records rtt for connID and reports the resulting tier and whether
// it differs from the previous one. The first sample counts as a change
// only when it is not excellent.
func (m *Monitor) Observe(connID uint64, rtt time.Duration) (Tier, bool) {
	if rtt < 0 {
		rtt = 0
	}
	tier := Classify(rtt)

	m.mu.Lock()
	prev, known := m.conns[connID]
	m.conns[connID] = sample{rtt: rtt, tier: tier}
	m.mu.Unlock()

	previous := TierExcellent
	if known {
		previous = prev.tier
	}
	changed := previous != tier
	if changed {
		loggingNetwork.QualityChanged(context.Background(), m.publisher, logging.ConnectionRef(connID), loggingNetwork.QualityPayload{
			Previous:  previous.String(),
			Current:   tier.String(),
			RTTMillis: rtt.Milliseconds(),
		})
	}
	return tier, changed
}

// Tier returns the current tier for connID.
func (m *Monitor) Tier(connID uint64) Tier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[connID].tier
}

// RTT returns the last sample for connID.
func (m *Monitor) RTT(connID uint64) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.conns[connID]
	return s.rtt, ok
}

func (m *Monitor) Remove(connID uint64) {
	m.mu.Lock()
	delete(m.conns, connID)
	m.mu.Unlock()
}

func (m *Monitor) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.conns) == 0 {
		return Summary{}
	}
	var total time.Duration
	poor := 0
	for _, s := range m.conns {
		total += s.rtt
		if s.tier == TierPoor {
			poor++
		}
	}
	n := len(m.conns)
	return Summary{
		Connections: n,
		MeanRTT:     total / time.Duration(n),
		PoorRatio:   float64(poor) / float64(n),
	}
}
