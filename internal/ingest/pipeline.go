package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coldwatch/coldwatch/internal/evaluator"
	"github.com/coldwatch/coldwatch/internal/types"
)

// ErrMalformedPayload is returned for payloads that are not a single finite number.
var ErrMalformedPayload = errors.New("malformed payload")

// ParsePayload decodes a sensor payload holding one floating-point value.
func ParsePayload(payload []byte) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, truncate(text, 32))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite value %q", ErrMalformedPayload, text)
	}
	return v, nil
}

// Pipeline runs the per-reading steps: persist, evaluate, notify.
type Pipeline struct {
	store   ReadingStore
	alerts  AlertProcessor
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline; timeout bounds each persistence call.
func NewPipeline(store ReadingStore, alerts AlertProcessor, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		alerts:  alerts,
		timeout: timeout,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		now:     time.Now,
	}
}

// Handle processes one raw payload. Malformed payloads are logged and
// returned as an error without touching the store or the alert state.
func (p *Pipeline) Handle(ctx context.Context, payload []byte) (types.Reading, evaluator.Decision, error) {
	value, err := ParsePayload(payload)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Dropping message")
		return types.Reading{}, evaluator.Decision{}, err
	}

	reading := types.NewReading(value, p.now())
	p.logger.Debug().Float64("value", value).Msg("Reading received")

	p.persist(ctx, "last reading", reading, p.store.PersistLast)
	p.persist(ctx, "record", reading, p.store.AppendRecord)

	decision := p.alerts.Process(ctx, reading)
	return reading, decision, nil
}

func (p *Pipeline) persist(ctx context.Context, what string, r types.Reading, fn func(context.Context, types.Reading) error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := fn(callCtx, r); err != nil {
		p.logger.Error().
			Err(err).
			Str("target", what).
			Float64("value", r.Value).
			Msg("Failed to persist reading")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
