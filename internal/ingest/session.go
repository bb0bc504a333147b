package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultPollInterval  = time.Second
	defaultRetryInterval = 5 * time.Second
)

var (
	// ErrStale means the link stayed silent for longer than the stale timeout.
	ErrStale = errors.New("no message within stale timeout")
	// ErrAlreadyRunning is returned by Run on a session that is already running.
	ErrAlreadyRunning = errors.New("ingestion session already running")

	errLinkClosed = errors.New("link closed")
)

// Options tunes the receive loop
type Options struct {
	// PollInterval bounds every wait of the receive loop.
	PollInterval time.Duration
	// RetryInterval is the fixed delay before reconnecting; never below PollInterval.
	RetryInterval time.Duration
	// StaleTimeout, when positive, treats a silent link as failed.
	StaleTimeout time.Duration
}

// Session keeps one subscription alive and feeds every message through the pipeline.
type Session struct {
	dialer   Dialer
	pipeline *Pipeline
	opts     Options
	logger   zerolog.Logger

	mu      sync.RWMutex
	health  Health
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a new ingestion session
func NewSession(dialer Dialer, pipeline *Pipeline, opts Options, logger zerolog.Logger) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.RetryInterval < opts.PollInterval {
		opts.RetryInterval = opts.PollInterval
	}
	return &Session{
		dialer:   dialer,
		pipeline: pipeline,
		opts:     opts,
		logger:   logger.With().Str("component", "ingest").Logger(),
		health:   Health{State: StateDisconnected},
	}
}

// Run generates a new client identifier, connects, subscribes and processes
// messages until ctx is cancelled or Stop is called. Transport failures never
// end the loop; they are logged and followed by a reconnect.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	s.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for it to disconnect. Safe to call more
// than once and before Run.
func (s *Session) Stop() {
	s.mu.RLock()
	cancel, done := s.cancel, s.done
	s.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Health returns the current health status
func (s *Session) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

func (s *Session) loop(ctx context.Context) {
	clientID := NewClientID()
	s.mu.Lock()
	s.health.ClientID = clientID
	s.mu.Unlock()

	log := s.logger.With().Str("client_id", clientID).Logger()
	log.Info().Msg("New client id")

	attempt := 0
	for ctx.Err() == nil {
		attempt++
		s.setState(StateConnecting)

		link, err := s.dialer.Dial(ctx, clientID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.recordFailure(err, false)
			log.Error().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_in", s.opts.RetryInterval).
				Msg("Failed to connect, will retry")
			if !sleep(ctx, s.opts.RetryInterval) {
				break
			}
			continue
		}

		attempt = 0
		s.markConnected()
		log.Info().Msg("Connected and subscribed")

		err = s.receive(ctx, link)
		if ctx.Err() != nil {
			s.setState(StateShuttingDown)
			s.closeLink(log, link)
			break
		}

		s.closeLink(log, link)
		s.recordFailure(err, true)
		log.Error().
			Err(err).
			Dur("retry_in", s.opts.RetryInterval).
			Msg("Connection lost, will reconnect")
		if !sleep(ctx, s.opts.RetryInterval) {
			break
		}
	}

	s.setState(StateDisconnected)
	log.Info().Msg("Ingestion session stopped")
}

// receive blocks on the link for at most one poll interval at a time so the
// loop can notice shutdown and a stale link.
func (s *Session) receive(ctx context.Context, link Link) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-link.Errors():
			if !ok || err == nil {
				return errLinkClosed
			}
			return err
		case msg, ok := <-link.Messages():
			if !ok {
				return errLinkClosed
			}
			lastActivity = time.Now()
			s.handle(ctx, msg)
		case <-ticker.C:
			if s.opts.StaleTimeout > 0 && time.Since(lastActivity) > s.opts.StaleTimeout {
				return fmt.Errorf("%w (%s)", ErrStale, s.opts.StaleTimeout)
			}
		}
	}
}

// handle runs the pipeline detached from cancellation so a message that was
// taken off the link is always fully processed; sink calls stay bounded by
// the pipeline timeout. The message is acknowledged only afterwards.
// Malformed payloads are acknowledged too: redelivery cannot fix them.
func (s *Session) handle(ctx context.Context, msg Message) {
	reading, decision, err := s.pipeline.Handle(context.WithoutCancel(ctx), msg.Payload)

	if msg.Ack != nil {
		if ackErr := msg.Ack(); ackErr != nil {
			s.logger.Warn().Err(ackErr).Msg("Failed to acknowledge message")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.health.ParseErrors++
		return
	}
	s.health.MessageCount++
	s.health.LastMessage = reading.Timestamp
	s.health.LastValue = reading.Value
	if decision.Notify {
		s.health.AlertsFired++
	}
}

func (s *Session) closeLink(log zerolog.Logger, link Link) {
	if err := link.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing broker link")
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.health.State = state
	s.mu.Unlock()
}

func (s *Session) markConnected() {
	s.mu.Lock()
	s.health.State = StateConnected
	s.health.ConnectedSince = time.Now()
	s.health.LastError = ""
	s.mu.Unlock()
}

// recordFailure counts a failed dial, or a lost link when wasConnected is set
func (s *Session) recordFailure(err error, wasConnected bool) {
	s.mu.Lock()
	s.health.State = StateDisconnected
	s.health.ConnectedSince = time.Time{}
	s.health.LastError = err.Error()
	if wasConnected {
		s.health.ReconnectCount++
	} else {
		s.health.ConnectFailures++
	}
	s.mu.Unlock()
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
