package sim

import (
	"math/rand"

	"github.com/segmentio/ksuid"

	"arena/server/internal/telemetry"
	"arena/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	RNG       *rand.Rand
	Publisher logging.Publisher
	// NewID names projectiles. Defaults to KSUIDs.
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NewCounters()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.RNG == nil {
		d.RNG = rand.New(rand.NewSource(1))
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.NewID == nil {
		d.NewID = func() string { return ksuid.New().String() }
	}
	return d
}
