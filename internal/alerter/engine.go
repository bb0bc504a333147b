package alerter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coldwatch/coldwatch/internal/evaluator"
	"github.com/coldwatch/coldwatch/internal/types"
)

// Notifier delivers a plain-text alert to the configured destination.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
}

// Engine owns the alert state and turns rising edges into notifications.
//
// Process must only be called from the single ingestion loop that feeds it
// readings in order. State and LastAlert may be read from any goroutine.
type Engine struct {
	evaluator *evaluator.Evaluator
	notifier  Notifier
	label     string
	timeout   time.Duration
	logger    zerolog.Logger

	mu        sync.RWMutex
	state     types.AlertState
	lastAlert *types.Alert
}

// NewEngine creates a new alert engine starting in the disarmed state
func NewEngine(eval *evaluator.Evaluator, notifier Notifier, label string, timeout time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		evaluator: eval,
		notifier:  notifier,
		label:     label,
		timeout:   timeout,
		logger:    logger.With().Str("component", "alerter").Logger(),
	}
}

// Process evaluates one reading, commits the new state and, on a rising
// edge, delivers the alert. Delivery failures are logged; the state change
// stands regardless.
func (e *Engine) Process(ctx context.Context, reading types.Reading) evaluator.Decision {
	e.mu.Lock()
	decision := e.evaluator.Evaluate(reading.Value, e.state)
	e.state = decision.State
	e.mu.Unlock()

	switch decision.Transition {
	case evaluator.Raised:
		e.fire(ctx, reading)
	case evaluator.Cleared:
		e.logger.Info().
			Float64("value", reading.Value).
			Float64("threshold", e.evaluator.Threshold()).
			Msg("Alert cleared")
	case evaluator.Held:
		e.logger.Debug().
			Float64("value", reading.Value).
			Msg("Alert already firing, skipping duplicate")
	}

	return decision
}

func (e *Engine) fire(ctx context.Context, reading types.Reading) {
	alert := &types.Alert{
		ID:        uuid.NewString(),
		Value:     reading.Value,
		Threshold: e.evaluator.Threshold(),
		FiredAt:   reading.Timestamp,
		Message:   FormatAlert(e.label, reading.Value),
	}
	e.mu.Lock()
	e.lastAlert = alert
	e.mu.Unlock()

	e.logger.Info().
		Str("alert_id", alert.ID).
		Float64("value", alert.Value).
		Float64("threshold", alert.Threshold).
		Msg("Alert fired")

	if e.notifier == nil {
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.notifier.Deliver(deliverCtx, alert.Message); err != nil {
		e.logger.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Msg("Failed to send alert notification")
		return
	}

	e.mu.Lock()
	alert.Delivered = true
	e.mu.Unlock()
}

// State returns the current alert state
func (e *Engine) State() types.AlertState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastAlert returns a copy of the most recently fired alert, if any
func (e *Engine) LastAlert() (types.Alert, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastAlert == nil {
		return types.Alert{}, false
	}
	return *e.lastAlert, true
}

// FormatAlert renders the text sent on a rising edge
func FormatAlert(label string, value float64) string {
	return fmt.Sprintf("\U0001F198 Temperature exceeded in %s: %s °C", label, types.FormatValue(value))
}
