package simulation

import (
	"context"

	"arena/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when the simulation loop exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventCommandDropped is emitted when backpressure rejects a staged command.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// CommandDroppedPayload captures a backpressure rejection.
type CommandDroppedPayload struct {
	Reason  string `json:"reason"`
	Command string `json:"command"`
}

// CommandDropped publishes a warning when the command buffer rejects input.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: "simulation",
		Payload:  payload,
	})
}
