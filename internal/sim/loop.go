package sim

import (
	"context"
	"sync"
	"time"

	"arena/server/internal/telemetry"
	"arena/server/logging"
	loggingSimulation "arena/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	metricTickOverruns = "sim.tick_overruns_total"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core      EngineCore
	buffer    *CommandBuffer
	hooks     LoopHooks
	config    LoopConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	queueMu       sync.Mutex
	perActorCount map[uint32]int
	dropCounts    map[uint32]uint64

	tick          uint64
	overrunStreak uint64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	deps := core.Deps()
	return &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		publisher:     deps.Publisher,
		perActorCount: make(map[uint32]int),
		dropCounts:    make(map[uint32]uint64),
	}
}

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity
// limits. Joins and leaves are always accepted.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.Type.Lifecycle() {
		l.buffer.PushLifecycle(cmd)
		return true, ""
	}

	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != 0 {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	_ = l.core.Apply(commands)
	l.core.Step(ctx)
	removed := l.core.RemovedPlayers()
	if len(removed) > 0 {
		l.queueMu.Lock()
		for _, id := range removed {
			delete(l.dropCounts, id)
		}
		l.queueMu.Unlock()
	}
	return LoopStepResult{
		Tick:           ctx.Tick,
		Now:            ctx.Now,
		Delta:          ctx.Delta,
		Commands:       commands,
		Events:         l.core.DrainEvents(),
		RemovedPlayers: removed,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 30
	}
	budgetDuration := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budgetDuration)
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	last := clock.Now()
	budgetSeconds := budgetDuration.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			tick := l.nextTick()
			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt
			l.checkBudget(result)

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) nextTick() uint64 {
	if l.hooks.NextTick != nil {
		return l.hooks.NextTick()
	}
	l.tick++
	return l.tick
}

func (l *Loop) checkBudget(result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	if l.metrics != nil {
		l.metrics.Add(metricTickOverruns, 1)
	}
	loggingSimulation.TickBudgetOverrun(context.Background(), l.publisher, result.Tick, loggingSimulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
	}, map[string]any{"clamped": result.ClampedDelta})
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		clear(l.perActorCount)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID uint32) uint64 {
	if actorID == 0 {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two so a flooding client cannot flood the log too.
	if count > 0 && count&(count-1) == 0 {
		if l.logger != nil {
			l.logger.Printf(
				"[backpressure] dropping command actor=%d type=%s count=%d limit=%d",
				cmd.ActorID,
				cmd.Type,
				count,
				l.config.PerActorLimit,
			)
		}
		loggingSimulation.CommandDropped(context.Background(), l.publisher, cmd.OriginTick, logging.PlayerRef(cmd.ActorID), loggingSimulation.CommandDroppedPayload{
			Reason:  reason,
			Command: string(cmd.Type),
		})
	}
}

// Ensure Loop implements Engine.
var _ Engine = (*Loop)(nil)

var _ telemetryMetrics = (telemetry.Metrics)(nil)
