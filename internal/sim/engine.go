package sim

import (
	"errors"
	"time"
)

// ErrMissingEngineCore indicates NewEngine was invoked without a core.
var ErrMissingEngineCore = errors.New("sim: engine core is nil")

// EngineCore is the single-threaded simulation driven by the loop.
type EngineCore interface {
	Deps() Deps
	Apply([]Command) error
	Step(LoopTickContext)
	DrainEvents() []Event
	RemovedPlayers() []uint32
}

// Engine is the surface the hub and transport layers consume.
type Engine interface {
	Deps() Deps
	Enqueue(Command) (bool, string)
	Advance(LoopTickContext) LoopStepResult
	Pending() int
	Run(stop <-chan struct{})
}

// LoopTickContext describes one fixed-timestep tick. Delta is in seconds.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises a completed tick for AfterStep.
type LoopStepResult struct {
	Tick           uint64
	Now            time.Time
	Delta          float64
	Duration       time.Duration
	Budget         time.Duration
	ClampedDelta   bool
	MaxDelta       float64
	Commands       []Command
	Events         []Event
	RemovedPlayers []uint32
}

// LoopHooks are optional callbacks invoked by the loop. AfterStep runs on
// the simulation goroutine and may read the core's state.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	NextTick       func() uint64
	AfterStep      func(LoopStepResult)
	OnQueueWarning func(length int)
	OnCommandDrop  func(reason string, cmd Command)
}

// EngineOption configures NewEngine. Later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	loopConfig LoopConfig
	loopHooks  LoopHooks
}

// WithLoopConfig overrides queue sizing and tick rate.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies loop callbacks.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = hooks
	})
}

// NewEngine wraps core in a command queue and fixed-timestep loop.
func NewEngine(core EngineCore, opts ...EngineOption) (Engine, error) {
	if core == nil {
		return nil, ErrMissingEngineCore
	}
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	return NewLoop(core, cfg.loopConfig, cfg.loopHooks), nil
}

var _ EngineCore = (*Arena)(nil)
